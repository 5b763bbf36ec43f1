// Package trigger хранит скриптовые триггеры, привязанные к координатам блоков.
//
// Store держит триггеры в памяти, сгруппированными по чанкам, и сохраняет
// каждый в отдельную запись хранилища с именем "<slot>. <world>@<x>,<y>,<z>".
// Реестр слотов (Ledger) связывает номер слота с координатой.
//
// Использование:
//
//	backend, _ := storage.NewDirBackend("data/LocationTriggers")
//	store, report, err := trigger.NewStore(ctx, backend, script.NewLexer(),
//		trigger.WithLogger(logging.GetTriggerLogger()))
//	store.Set(loc, t)          // память сразу, запись на диск в фоне
//	store.SaveAll(ctx)         // полное сохранение
//	store.Close()
package trigger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/annel0/trigger-store/internal/eventbus"
	"github.com/annel0/trigger-store/internal/logging"
	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/storage"
	"github.com/annel0/trigger-store/internal/world"
	"github.com/cespare/xxhash/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultFolder имя папки триггеров по координатам
const DefaultFolder = "LocationTriggers"

// SlotPolicy поведение при сохранении триггера без слота в реестре
type SlotPolicy string

const (
	// SlotPolicyLegacy триггер без слота не сохраняется до перезагрузки
	SlotPolicyLegacy SlotPolicy = "legacy"
	// SlotPolicyAllocate расширение: выдать новый наибольший слот при первом сохранении
	SlotPolicyAllocate SlotPolicy = "allocate"
)

// ParseSlotPolicy разбирает значение из конфигурации
func ParseSlotPolicy(s string) (SlotPolicy, error) {
	switch SlotPolicy(s) {
	case "", SlotPolicyLegacy:
		return SlotPolicyLegacy, nil
	case SlotPolicyAllocate:
		return SlotPolicyAllocate, nil
	}
	return "", fmt.Errorf("unknown slot policy %q", s)
}

type options struct {
	folder     string
	logger     *logging.Logger
	bus        eventbus.EventBus
	registerer prometheus.Registerer
	policy     SlotPolicy
	queueSize  int
	tracer     trace.Tracer
}

// Option настраивает Store
type Option func(*options)

// WithFolder имя папки (используется в логах, метриках и событиях)
func WithFolder(folder string) Option {
	return func(o *options) { o.folder = folder }
}

// WithLogger логгер хранилища
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEventBus шина, в которую публикуются изменения
func WithEventBus(bus eventbus.EventBus) Option {
	return func(o *options) { o.bus = bus }
}

// WithRegisterer регистр Prometheus-метрик
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSlotPolicy политика выдачи слотов
func WithSlotPolicy(p SlotPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithQueueSize размер очереди фонового сохранения
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// WithTracer трейсер для Reload и SaveAll
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// Store потокобезопасное хранилище триггеров по координатам.
//
// Блокировки:
//   - batchMu: Reload и SaveAll берут на запись, остальные изменяющие операции на чтение;
//   - stripes: сериализуют запись и удаление файла одной координаты;
//   - индекс и реестр имеют собственные мьютексы.
type Store struct {
	folder  string
	backend storage.Backend
	engine  script.Engine
	logger  *logging.Logger
	metrics *Metrics
	tracer  trace.Tracer
	policy  SlotPolicy

	index  *SpatialIndex
	ledger *Ledger

	batchMu sync.RWMutex
	stripes stripedLock

	persister *persister
	notifier  *notifier

	clipboard *clipboard
	sessions  *sessions

	closeOnce sync.Once
}

// NewStore создаёт хранилище и выполняет первичную загрузку.
// Ошибку возвращает только при ConfigurationError или недоступном хранилище;
// остальные проблемы загрузки попадают в ReloadReport.
func NewStore(ctx context.Context, backend storage.Backend, engine script.Engine, opts ...Option) (*Store, *ReloadReport, error) {
	o := options{
		folder:    DefaultFolder,
		policy:    SlotPolicyLegacy,
		queueSize: 1024,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLoggerWithWriter("triggers", os.Stdout, logging.INFO)
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("github.com/annel0/trigger-store/internal/trigger")
	}
	if o.queueSize <= 0 {
		o.queueSize = 1024
	}

	s := &Store{
		folder:    o.folder,
		backend:   backend,
		engine:    engine,
		logger:    o.logger,
		metrics:   NewMetrics(o.folder, o.registerer),
		tracer:    o.tracer,
		policy:    o.policy,
		index:     NewSpatialIndex(),
		ledger:    NewLedger(),
		clipboard: newClipboard(),
		sessions:  newSessions(),
	}
	s.notifier = newNotifier(o.bus, o.folder, o.logger)
	s.persister = newPersister(s, o.queueSize)

	report, err := s.Reload(ctx)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, report, nil
}

// Folder имя папки хранилища
func (s *Store) Folder() string {
	return s.folder
}

// Get возвращает триггер на координате
func (s *Store) Get(loc world.Location) (*script.Trigger, bool) {
	return s.index.Get(loc)
}

// Protected сообщает, что блок с триггером нельзя ломать
func (s *Store) Protected(loc world.Location) bool {
	_, ok := s.index.Get(loc)
	return ok
}

// TriggersInChunk возвращает триггеры одного чанка
func (s *Store) TriggersInChunk(key world.ChunkKey) []Binding {
	return s.index.InChunk(key)
}

// Len количество триггеров в памяти
func (s *Store) Len() int {
	return s.index.Len()
}

// LedgerLen длина реестра слотов вместе с tombstone
func (s *Store) LedgerLen() int {
	return s.ledger.Len()
}

// SlotOf слот координаты в реестре
func (s *Store) SlotOf(loc world.Location) (int, bool) {
	return s.ledger.FindSlot(loc)
}

// Set ставит триггер в память немедленно, запись в хранилище выполняется в фоне
func (s *Store) Set(loc world.Location, t *script.Trigger) {
	if err := s.set(loc, t); err != nil {
		s.logger.Warn("⚠️ op=set loc=%s err=%v", loc, err)
	}
}

func (s *Store) set(loc world.Location, t *script.Trigger) error {
	if t == nil {
		return errors.New("nil trigger")
	}

	s.batchMu.RLock()
	prev := s.index.Put(loc, t)
	s.batchMu.RUnlock()

	if prev == nil {
		s.metrics.loaded.Inc()
	}
	s.notifier.location(eventbus.EventTriggerSet, loc, -1)

	return s.persister.enqueue(loc)
}

// Remove удаляет триггер из памяти и синхронно удаляет его файл.
// Ошибка удаления файла только логируется.
func (s *Store) Remove(loc world.Location) (*script.Trigger, bool) {
	t, ok, _ := s.remove(loc)
	return t, ok
}

// remove возвращает ошибку удаления файла, чтобы Paste мог её залогировать
func (s *Store) remove(loc world.Location) (*script.Trigger, bool, error) {
	return s.removeAt(loc, false)
}

// removeAt удаляет привязку и файл её слота. При onlyBound координата без
// триггера в памяти не трогается вовсе (ни реестр, ни файл).
func (s *Store) removeAt(loc world.Location, onlyBound bool) (*script.Trigger, bool, error) {
	var ioErr error

	s.batchMu.RLock()
	mu := s.stripes.get(loc)
	mu.Lock()

	if onlyBound {
		if _, bound := s.index.Get(loc); !bound {
			mu.Unlock()
			s.batchMu.RUnlock()
			return nil, false, nil
		}
	}

	t, ok := s.index.Delete(loc)
	slot, found := s.ledger.FindSlot(loc)
	if found {
		s.ledger.Tombstone(slot)
		name := EncodeFilename(slot, loc)
		if err := s.backend.Delete(context.Background(), name); err != nil {
			ioErr = &IOError{Op: "delete", Name: name, Err: err}
			s.metrics.failures.WithLabelValues("delete").Inc()
			s.logger.Error("❌ op=remove loc=%s slot=%d file=%q err=%v", loc, slot, name, err)
		}
	} else if ok {
		s.metrics.failures.WithLabelValues("slot").Inc()
		s.logger.Error("❌ op=remove err=%v: file not deleted", &LedgerInconsistency{Op: "remove", Location: loc})
	}

	mu.Unlock()
	s.batchMu.RUnlock()

	if ok {
		s.metrics.loaded.Dec()
		s.notifier.location(eventbus.EventTriggerRemoved, loc, slot)
	}
	if ok || found {
		if err := s.persister.enqueue(loc); err != nil && !errors.Is(err, ErrStoreClosed) {
			s.logger.Warn("⚠️ op=remove loc=%s err=%v", loc, err)
		}
	}
	return t, ok, ioErr
}

// Flush ждёт, пока применятся все запросы сохранения, поставленные до вызова
func (s *Store) Flush(ctx context.Context) error {
	return s.persister.flush(ctx)
}

// Close останавливает фоновое сохранение, дожидаясь очереди.
// Хранилище (backend) не закрывается: им владеет вызывающий.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.persister.close()
		s.notifier.close()
		s.logger.Info("🔒 Хранилище триггеров %s закрыто", s.folder)
	})
	return nil
}

// slotFor возвращает слот координаты для записи. При политике allocate
// выдаёт новый слот, иначе логирует рассинхронизацию реестра.
func (s *Store) slotFor(op string, loc world.Location) (int, error) {
	if slot, ok := s.ledger.FindSlot(loc); ok {
		return slot, nil
	}
	if s.policy == SlotPolicyAllocate {
		if err := CheckEncodable(loc); err != nil {
			return -1, err
		}
		slot := s.ledger.Allocate(loc)
		s.metrics.ledgerSlots.Set(float64(s.ledger.Len()))
		s.logger.Info("op=%s loc=%s: allocated slot=%d", op, loc, slot)
		return slot, nil
	}
	return -1, &LedgerInconsistency{Op: op, Location: loc}
}

// persistLocation записывает текущее состояние одной координаты
func (s *Store) persistLocation(loc world.Location) {
	s.batchMu.RLock()
	defer s.batchMu.RUnlock()

	mu := s.stripes.get(loc)
	mu.Lock()
	defer mu.Unlock()

	t, ok := s.index.Get(loc)
	if !ok {
		// удалён: файл уже удалён синхронно в remove
		return
	}

	slot, err := s.slotFor("persist", loc)
	if err != nil {
		s.metrics.failures.WithLabelValues("slot").Inc()
		s.logger.Error("❌ op=persist loc=%s err=%v", loc, err)
		return
	}

	name := EncodeFilename(slot, loc)
	if err := s.backend.Write(context.Background(), name, t.Script()); err != nil {
		s.metrics.failures.WithLabelValues("write").Inc()
		s.logger.Error("❌ op=persist loc=%s slot=%d file=%q err=%v", loc, slot, name, err)
		return
	}
	s.logger.Trace("op=persist loc=%s slot=%d file=%q", loc, slot, name)
}

const stripeCount = 64

// stripedLock набор мьютексов, выбираемых по хешу координаты
type stripedLock [stripeCount]sync.Mutex

func (sl *stripedLock) get(loc world.Location) *sync.Mutex {
	h := xxhash.Sum64String(loc.String())
	return &sl[h%stripeCount]
}
