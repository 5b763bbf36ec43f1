package trigger

import (
	"errors"
	"sync"

	"github.com/annel0/trigger-store/internal/eventbus"
	"github.com/annel0/trigger-store/internal/world"
	"github.com/google/uuid"
)

// ClipboardMode режим ожидающей вставки
type ClipboardMode int

const (
	ModeCut ClipboardMode = iota
	ModeCopy
)

func (m ClipboardMode) String() string {
	if m == ModeCut {
		return "cut"
	}
	return "copy"
}

// PasteOutcome результат Paste
type PasteOutcome int

const (
	// PasteNothingPending у актёра нет ожидающей операции
	PasteNothingPending PasteOutcome = iota
	// PasteSourceLost на исходной координате больше нет триггера
	PasteSourceLost
	// Pasted вставка выполнена (в том числе после отката CUT)
	Pasted
)

func (o PasteOutcome) String() string {
	switch o {
	case PasteNothingPending:
		return "nothing_pending"
	case PasteSourceLost:
		return "source_lost"
	case Pasted:
		return "pasted"
	}
	return "unknown"
}

// ClipboardEntry ожидающая операция актёра
type ClipboardEntry struct {
	Mode   ClipboardMode
	Source world.Location
}

// clipboard не более одной операции на актёра; новая заменяет старую
type clipboard struct {
	mu      sync.Mutex
	entries map[uuid.UUID]ClipboardEntry
}

func newClipboard() *clipboard {
	return &clipboard{entries: make(map[uuid.UUID]ClipboardEntry)}
}

func (c *clipboard) put(actor uuid.UUID, e ClipboardEntry) {
	c.mu.Lock()
	c.entries[actor] = e
	c.mu.Unlock()
}

func (c *clipboard) take(actor uuid.UUID) (ClipboardEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[actor]
	if ok {
		delete(c.entries, actor)
	}
	return e, ok
}

func (c *clipboard) peek(actor uuid.UUID) (ClipboardEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[actor]
	return e, ok
}

func (c *clipboard) drop(actor uuid.UUID) {
	c.mu.Lock()
	delete(c.entries, actor)
	c.mu.Unlock()
}

// BeginCut запоминает координату для переноса. false если там нет триггера.
func (s *Store) BeginCut(actor uuid.UUID, loc world.Location) bool {
	return s.begin(actor, loc, ModeCut)
}

// BeginCopy запоминает координату для копирования. false если там нет триггера.
func (s *Store) BeginCopy(actor uuid.UUID, loc world.Location) bool {
	return s.begin(actor, loc, ModeCopy)
}

func (s *Store) begin(actor uuid.UUID, loc world.Location, mode ClipboardMode) bool {
	if _, ok := s.index.Get(loc); !ok {
		return false
	}
	s.clipboard.put(actor, ClipboardEntry{Mode: mode, Source: loc})
	s.logger.Debug("op=%s actor=%s loc=%s", mode, actor, loc)
	return true
}

// PendingClipboard ожидающая операция актёра
func (s *Store) PendingClipboard(actor uuid.UUID) (ClipboardEntry, bool) {
	return s.clipboard.peek(actor)
}

// InvalidateClipboard сбрасывает ожидающую операцию (например, при выходе актёра)
func (s *Store) InvalidateClipboard(actor uuid.UUID) {
	s.clipboard.drop(actor)
}

// Paste выполняет ожидающую операцию актёра на dest. Запись буфера
// расходуется при любом исходе.
//
// CUT: триггер снимается с исходной координаты и ставится на dest. Ошибка
// удаления исходного файла только логируется. Если не удалась установка на
// dest, исходный триггер возвращается на место копией; результат всё равно Pasted.
// COPY: на dest ставится независимая копия.
func (s *Store) Paste(actor uuid.UUID, dest world.Location) PasteOutcome {
	entry, ok := s.clipboard.take(actor)
	if !ok {
		return PasteNothingPending
	}

	switch entry.Mode {
	case ModeCut:
		// снятие и проверка наличия атомарны: чужой Remove между ними невозможен
		moved, ok, ioErr := s.removeAt(entry.Source, true)
		if !ok {
			s.logger.Debug("op=paste actor=%s loc=%s: source lost", actor, entry.Source)
			return PasteSourceLost
		}
		if ioErr != nil {
			s.logger.Warn("⚠️ op=paste mode=cut actor=%s from=%s err=%v: source file left on disk", actor, entry.Source, ioErr)
		}
		if err := s.set(dest, moved); errors.Is(err, ErrStoreClosed) {
			// в памяти перенос состоялся, на диск его уже не записать
			s.logger.Warn("⚠️ op=paste mode=cut actor=%s to=%s err=%v: not persisted", actor, dest, err)
		} else if err != nil {
			s.logger.Error("❌ op=paste mode=cut actor=%s from=%s to=%s err=%v: restoring source", actor, entry.Source, dest, err)
			if rerr := s.set(entry.Source, moved.Duplicate()); rerr != nil {
				s.logger.Error("❌ op=paste rollback loc=%s err=%v", entry.Source, rerr)
			}
		}
	case ModeCopy:
		src, ok := s.index.Get(entry.Source)
		if !ok {
			s.logger.Debug("op=paste actor=%s loc=%s: source lost", actor, entry.Source)
			return PasteSourceLost
		}
		if err := s.set(dest, src.Duplicate()); err != nil {
			s.logger.Error("❌ op=paste mode=copy actor=%s from=%s to=%s err=%v", actor, entry.Source, dest, err)
		}
	}

	s.notifier.publish(eventbus.EventTriggerPasted, actor.String(), PasteEvent{
		Actor: actor.String(),
		Mode:  entry.Mode.String(),
		From:  entry.Source.String(),
		To:    dest.String(),
	})
	return Pasted
}
