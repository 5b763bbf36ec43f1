package trigger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/annel0/trigger-store/internal/eventbus"
	"github.com/annel0/trigger-store/internal/script"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Reload заново строит индекс и реестр из хранилища.
//
// Вложенная папка приводит к ConfigurationError до того, как состояние
// очищено. Файлы с ошибками имени, чтения или компиляции пропускаются и
// занимают пустой слот в конце реестра; загрузка продолжается.
func (s *Store) Reload(ctx context.Context) (*ReloadReport, error) {
	s.batchMu.Lock()
	defer s.batchMu.Unlock()
	return s.reload(ctx)
}

// reload вызывается под batchMu.Lock
func (s *Store) reload(ctx context.Context) (*ReloadReport, error) {
	ctx, span := s.tracer.Start(ctx, "triggers.Reload")
	defer span.End()
	start := time.Now()

	entries, err := s.backend.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("list %s: %w", s.folder, err)
	}
	for _, e := range entries {
		if e.IsDir {
			cfgErr := &ConfigurationError{Folder: s.folder, Entry: e.Name}
			span.RecordError(cfgErr)
			span.SetStatus(codes.Error, "configuration error")
			s.logger.Error("❌ op=reload err=%v", cfgErr)
			return nil, cfgErr
		}
	}

	s.index.Clear()
	s.ledger.Reset()

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	sortByIndex(names)

	report := &ReloadReport{Scanned: len(names)}
	for _, name := range names {
		if f, ok := s.loadOne(ctx, name); !ok {
			report.Failures = append(report.Failures, f)
			s.ledger.AppendTombstone()
			s.logger.Warn("⚠️ op=reload %s", f)
			continue
		}
		report.Loaded++
	}

	report.LedgerSize = s.ledger.Len()
	report.Duration = time.Since(start)

	s.metrics.loaded.Set(float64(report.Loaded))
	s.metrics.ledgerSlots.Set(float64(report.LedgerSize))
	s.metrics.recordFailures(report.Failures)
	s.metrics.batch.WithLabelValues("reload").Observe(report.Duration.Seconds())

	span.SetAttributes(
		attribute.String("triggers.folder", s.folder),
		attribute.Int("triggers.loaded", report.Loaded),
		attribute.Int("triggers.failed", len(report.Failures)),
	)

	s.notifier.publish(eventbus.EventTriggerReloaded, "", BatchEvent{Loaded: report.Loaded, Failed: len(report.Failures)})
	s.logger.Info("📂 %s: загружено %d триггеров, ошибок %d, слотов %d (%v)",
		s.folder, report.Loaded, len(report.Failures), report.LedgerSize, report.Duration)

	return report, nil
}

// loadOne читает и компилирует одну запись. Вызывается под batchMu.Lock.
func (s *Store) loadOne(ctx context.Context, name string) (Failure, bool) {
	index, loc, err := DecodeFilename(name)
	if err != nil {
		if i, ierr := DecodeIndex(name); ierr == nil {
			s.ledger.NoteIndex(i)
		}
		return Failure{Op: "decode", Name: name, Slot: -1, Err: err}, false
	}
	s.ledger.NoteIndex(index)

	text, err := s.backend.Read(ctx, name)
	if err != nil {
		return Failure{Op: "read", Name: name, Location: &loc, Slot: index, Err: &IOError{Op: "read", Name: name, Err: err}}, false
	}

	t, err := s.engine.Compile(text)
	if err != nil {
		var ce *script.CompileError
		if !errors.As(err, &ce) {
			err = &script.CompileError{Msg: err.Error()}
		}
		return Failure{Op: "compile", Name: name, Location: &loc, Slot: index, Err: err}, false
	}

	s.index.Put(loc, t)
	s.ledger.Assign(index, loc)
	return Failure{}, true
}

// SaveAll записывает каждый триггер из памяти в файл его слота.
//
// Как и Reload, выполняется эксклюзивно: set/remove и фоновое сохранение
// ждут окончания прохода. Триггер без слота пропускается (LedgerInconsistency).
// Триггер, который не удалось записать, удаляется из памяти. Ошибка одной
// записи не мешает остальным.
func (s *Store) SaveAll(ctx context.Context) *SaveReport {
	ctx, span := s.tracer.Start(ctx, "triggers.SaveAll")
	defer span.End()
	start := time.Now()

	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	report := &SaveReport{}
	for _, b := range s.index.All() {
		loc := b.Location
		report.Attempted++

		slot, err := s.slotFor("save", loc)
		if err != nil {
			report.Skipped++
			report.Failures = append(report.Failures, Failure{Op: "slot", Location: &loc, Slot: -1, Err: err})
			s.logger.Error("❌ op=save loc=%s err=%v", loc, err)
			continue
		}

		name := EncodeFilename(slot, loc)
		if err := s.backend.Write(ctx, name, b.Trigger.Script()); err != nil {
			s.index.Delete(loc)
			report.Evicted++
			report.Failures = append(report.Failures, Failure{
				Op: "write", Name: name, Location: &loc, Slot: slot,
				Err: &IOError{Op: "write", Name: name, Err: err},
			})
			s.logger.Error("❌ op=save loc=%s slot=%d file=%q err=%v: trigger evicted from memory", loc, slot, name, err)
			continue
		}
		report.Saved++
	}

	report.Duration = time.Since(start)

	s.metrics.loaded.Set(float64(s.index.Len()))
	s.metrics.ledgerSlots.Set(float64(s.ledger.Len()))
	s.metrics.recordFailures(report.Failures)
	s.metrics.batch.WithLabelValues("save").Observe(report.Duration.Seconds())

	span.SetAttributes(
		attribute.String("triggers.folder", s.folder),
		attribute.Int("triggers.saved", report.Saved),
		attribute.Int("triggers.failed", len(report.Failures)),
	)
	if len(report.Failures) > 0 {
		span.SetStatus(codes.Error, "partial save")
	}

	s.notifier.publish(eventbus.EventTriggerSaved, "", BatchEvent{Loaded: report.Saved, Failed: len(report.Failures)})
	s.logger.Info("💾 %s: сохранено %d из %d, пропущено %d, выгружено %d (%v)",
		s.folder, report.Saved, report.Attempted, report.Skipped, report.Evicted, report.Duration)

	return report
}

// sortByIndex сортирует имена по числовому префиксу; имена без префикса в конце
func sortByIndex(names []string) {
	type keyed struct {
		name  string
		index int
		ok    bool
	}
	keys := make([]keyed, len(names))
	for i, n := range names {
		idx, err := DecodeIndex(n)
		keys[i] = keyed{name: n, index: idx, ok: err == nil}
	}
	sort.SliceStable(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && a.index != b.index {
			return a.index < b.index
		}
		return a.name < b.name
	})
	for i, k := range keys {
		names[i] = k.name
	}
}
