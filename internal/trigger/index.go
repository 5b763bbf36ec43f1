package trigger

import (
	"sort"
	"sync"

	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/world"
)

// Binding пара координата -> триггер
type Binding struct {
	Location world.Location
	Trigger  *script.Trigger
}

// SpatialIndex держит триггеры, сгруппированные по чанкам.
// Таблица чанков и каждый чанк защищены отдельными RWMutex, поэтому
// операции в разных чанках не блокируют друг друга.
type SpatialIndex struct {
	chunks   map[world.ChunkKey]*chunkData
	chunksMu sync.RWMutex
}

// chunkData триггеры одного чанка
type chunkData struct {
	triggers map[world.Location]*script.Trigger
	mu       sync.RWMutex
}

// NewSpatialIndex создаёт пустой индекс
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{
		chunks: make(map[world.ChunkKey]*chunkData),
	}
}

// Get возвращает триггер координаты
func (si *SpatialIndex) Get(loc world.Location) (*script.Trigger, bool) {
	chunk := si.chunk(loc.Chunk())
	if chunk == nil {
		return nil, false
	}

	chunk.mu.RLock()
	defer chunk.mu.RUnlock()
	t, ok := chunk.triggers[loc]
	return t, ok
}

// Put ставит триггер и возвращает предыдущий (или nil)
func (si *SpatialIndex) Put(loc world.Location, t *script.Trigger) *script.Trigger {
	chunk := si.getOrCreateChunk(loc.Chunk())

	chunk.mu.Lock()
	defer chunk.mu.Unlock()
	prev := chunk.triggers[loc]
	chunk.triggers[loc] = t
	return prev
}

// Delete удаляет привязку. Пустой чанк остаётся в таблице.
func (si *SpatialIndex) Delete(loc world.Location) (*script.Trigger, bool) {
	chunk := si.chunk(loc.Chunk())
	if chunk == nil {
		return nil, false
	}

	chunk.mu.Lock()
	defer chunk.mu.Unlock()
	t, ok := chunk.triggers[loc]
	if ok {
		delete(chunk.triggers, loc)
	}
	return t, ok
}

// InChunk возвращает снимок привязок чанка
func (si *SpatialIndex) InChunk(key world.ChunkKey) []Binding {
	chunk := si.chunk(key)
	if chunk == nil {
		return nil
	}

	chunk.mu.RLock()
	out := make([]Binding, 0, len(chunk.triggers))
	for loc, t := range chunk.triggers {
		out = append(out, Binding{Location: loc, Trigger: t})
	}
	chunk.mu.RUnlock()

	sortBindings(out)
	return out
}

// All возвращает снимок всех привязок в детерминированном порядке
func (si *SpatialIndex) All() []Binding {
	si.chunksMu.RLock()
	chunks := make([]*chunkData, 0, len(si.chunks))
	for _, c := range si.chunks {
		chunks = append(chunks, c)
	}
	si.chunksMu.RUnlock()

	var out []Binding
	for _, c := range chunks {
		c.mu.RLock()
		for loc, t := range c.triggers {
			out = append(out, Binding{Location: loc, Trigger: t})
		}
		c.mu.RUnlock()
	}

	sortBindings(out)
	return out
}

// Len количество привязок
func (si *SpatialIndex) Len() int {
	si.chunksMu.RLock()
	defer si.chunksMu.RUnlock()

	n := 0
	for _, c := range si.chunks {
		c.mu.RLock()
		n += len(c.triggers)
		c.mu.RUnlock()
	}
	return n
}

// Clear удаляет все чанки
func (si *SpatialIndex) Clear() {
	si.chunksMu.Lock()
	si.chunks = make(map[world.ChunkKey]*chunkData)
	si.chunksMu.Unlock()
}

func (si *SpatialIndex) chunk(key world.ChunkKey) *chunkData {
	si.chunksMu.RLock()
	defer si.chunksMu.RUnlock()
	return si.chunks[key]
}

// getOrCreateChunk возвращает чанк или создаёт новый (double-checked)
func (si *SpatialIndex) getOrCreateChunk(key world.ChunkKey) *chunkData {
	if c := si.chunk(key); c != nil {
		return c
	}

	si.chunksMu.Lock()
	defer si.chunksMu.Unlock()

	if c, exists := si.chunks[key]; exists {
		return c
	}
	c := &chunkData{
		triggers: make(map[world.Location]*script.Trigger),
	}
	si.chunks[key] = c
	return c
}

func sortBindings(b []Binding) {
	sort.Slice(b, func(i, j int) bool {
		li, lj := b[i].Location, b[j].Location
		if li.World != lj.World {
			return li.World < lj.World
		}
		if li.X != lj.X {
			return li.X < lj.X
		}
		if li.Y != lj.Y {
			return li.Y < lj.Y
		}
		return li.Z < lj.Z
	})
}
