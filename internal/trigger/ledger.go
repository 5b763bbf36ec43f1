package trigger

import (
	"sync"

	"github.com/annel0/trigger-store/internal/world"
)

// Ledger реестр слотов: slots[i]: координата, занимающая файл со слотом i,
// или nil (tombstone). Длина только растёт, слоты не переиспользуются.
type Ledger struct {
	mu    sync.Mutex
	slots []*world.Location
	// highWater наибольший индекс, встреченный в именах файлов при загрузке
	highWater int
}

// NewLedger создаёт пустой реестр
func NewLedger() *Ledger {
	return &Ledger{highWater: -1}
}

// Reset очищает реестр перед повторной загрузкой
func (l *Ledger) Reset() {
	l.mu.Lock()
	l.slots = nil
	l.highWater = -1
	l.mu.Unlock()
}

// Assign дополняет реестр tombstone'ами до длины index+1 и занимает слот
func (l *Ledger) Assign(index int, loc world.Location) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(l.slots) <= index {
		l.slots = append(l.slots, nil)
	}
	l.slots[index] = &loc
	if index > l.highWater {
		l.highWater = index
	}
}

// AppendTombstone добавляет пустой слот в конец (запись не загрузилась)
func (l *Ledger) AppendTombstone() {
	l.mu.Lock()
	l.slots = append(l.slots, nil)
	l.mu.Unlock()
}

// NoteIndex запоминает индекс из имени файла, даже если сам файл не загрузился
func (l *Ledger) NoteIndex(index int) {
	l.mu.Lock()
	if index > l.highWater {
		l.highWater = index
	}
	l.mu.Unlock()
}

// FindSlot ищет первый слот с данной координатой
func (l *Ledger) FindSlot(loc world.Location) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.findLocked(loc)
}

func (l *Ledger) findLocked(loc world.Location) (int, bool) {
	for i, slot := range l.slots {
		if slot != nil && *slot == loc {
			return i, true
		}
	}
	return -1, false
}

// Tombstone освобождает слот, не меняя длину реестра
func (l *Ledger) Tombstone(index int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index >= 0 && index < len(l.slots) {
		l.slots[index] = nil
	}
}

// Allocate выдаёт координате новый наибольший слот (расширение "allocate").
// Если у координаты уже есть слот, возвращает его.
func (l *Ledger) Allocate(loc world.Location) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i, ok := l.findLocked(loc); ok {
		return i
	}

	index := len(l.slots)
	if l.highWater >= index {
		index = l.highWater + 1
	}
	for len(l.slots) <= index {
		l.slots = append(l.slots, nil)
	}
	l.slots[index] = &loc
	l.highWater = index
	return index
}

// Len возвращает длину реестра вместе с tombstone'ами
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

// Slot возвращает координату слота; false для tombstone или индекса вне реестра
func (l *Ledger) Slot(index int) (world.Location, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.slots) || l.slots[index] == nil {
		return world.Location{}, false
	}
	return *l.slots[index], true
}
