package trigger

import (
	"testing"

	"github.com/annel0/trigger-store/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AssignPads(t *testing.T) {
	l := NewLedger()
	a := world.NewLocation("w", 1, 2, 3)

	l.Assign(3, a)
	assert.Equal(t, 4, l.Len())

	for i := 0; i < 3; i++ {
		_, ok := l.Slot(i)
		assert.False(t, ok, "слот %d должен быть пустым", i)
	}
	got, ok := l.Slot(3)
	require.True(t, ok)
	assert.Equal(t, a, got)

	slot, ok := l.FindSlot(a)
	require.True(t, ok)
	assert.Equal(t, 3, slot)
}

func TestLedger_TombstoneKeepsLength(t *testing.T) {
	l := NewLedger()
	a := world.NewLocation("w", 0, 0, 0)
	b := world.NewLocation("w", 1, 0, 0)
	l.Assign(0, a)
	l.Assign(1, b)

	l.Tombstone(0)
	assert.Equal(t, 2, l.Len())

	_, ok := l.FindSlot(a)
	assert.False(t, ok)
	slot, ok := l.FindSlot(b)
	require.True(t, ok)
	assert.Equal(t, 1, slot)

	// вне диапазона ничего не делает
	l.Tombstone(10)
	l.Tombstone(-1)
	assert.Equal(t, 2, l.Len())
}

func TestLedger_FindSlotReturnsFirst(t *testing.T) {
	l := NewLedger()
	a := world.NewLocation("w", 5, 5, 5)
	l.Assign(4, a)
	l.Assign(1, a)

	slot, ok := l.FindSlot(a)
	require.True(t, ok)
	assert.Equal(t, 1, slot)
}

func TestLedger_AppendTombstoneAndReset(t *testing.T) {
	l := NewLedger()
	l.Assign(0, world.NewLocation("w", 0, 0, 0))
	l.AppendTombstone()
	assert.Equal(t, 2, l.Len())

	l.Reset()
	assert.Equal(t, 0, l.Len())
}

func TestLedger_Allocate(t *testing.T) {
	l := NewLedger()
	a := world.NewLocation("w", 0, 0, 0)
	b := world.NewLocation("w", 1, 0, 0)
	c := world.NewLocation("w", 2, 0, 0)

	l.Assign(0, a)
	l.AppendTombstone()
	// файл с индексом 5 встречался при загрузке, но не загрузился
	l.NoteIndex(5)

	slot := l.Allocate(b)
	assert.Equal(t, 6, slot, "новый слот выше всех известных индексов")
	assert.Equal(t, 7, l.Len())

	assert.Equal(t, 6, l.Allocate(b), "повторный вызов возвращает тот же слот")
	assert.Equal(t, 0, l.Allocate(a))
	assert.Equal(t, 7, l.Allocate(c))
}
