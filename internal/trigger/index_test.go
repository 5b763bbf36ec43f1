package trigger

import (
	"sync"
	"testing"

	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpatialIndex_Basic(t *testing.T) {
	si := NewSpatialIndex()
	a := world.NewLocation("w", 1, 64, 1)
	t1 := script.NewTrigger("a", nil)
	t2 := script.NewTrigger("b", nil)

	assert.Nil(t, si.Put(a, t1))
	assert.Same(t, t1, si.Put(a, t2))

	got, ok := si.Get(a)
	require.True(t, ok)
	assert.Same(t, t2, got)
	assert.Equal(t, 1, si.Len())

	removed, ok := si.Delete(a)
	require.True(t, ok)
	assert.Same(t, t2, removed)

	_, ok = si.Delete(a)
	assert.False(t, ok)
	_, ok = si.Get(world.NewLocation("other", 0, 0, 0))
	assert.False(t, ok)
}

func TestSpatialIndex_InChunk(t *testing.T) {
	si := NewSpatialIndex()
	in1 := world.NewLocation("w", 0, 10, 0)
	in2 := world.NewLocation("w", 15, 70, 15)
	neg := world.NewLocation("w", -1, 10, -1)
	otherWorld := world.NewLocation("v", 3, 10, 3)

	for _, loc := range []world.Location{in1, in2, neg, otherWorld} {
		si.Put(loc, script.NewTrigger(loc.String(), nil))
	}

	got := si.InChunk(world.ChunkKey{World: "w", X: 0, Z: 0})
	require.Len(t, got, 2)
	assert.Equal(t, in1, got[0].Location)
	assert.Equal(t, in2, got[1].Location)

	got = si.InChunk(world.ChunkKey{World: "w", X: -1, Z: -1})
	require.Len(t, got, 1)
	assert.Equal(t, neg, got[0].Location)

	assert.Empty(t, si.InChunk(world.ChunkKey{World: "w", X: 9, Z: 9}))
	assert.Len(t, si.All(), 4)

	si.Clear()
	assert.Equal(t, 0, si.Len())
}

func TestSpatialIndex_Concurrent(t *testing.T) {
	si := NewSpatialIndex()
	var wg sync.WaitGroup

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				loc := world.NewLocation("w", i, g, i%7)
				si.Put(loc, script.NewTrigger("x", nil))
				si.Get(loc)
				if i%3 == 0 {
					si.Delete(loc)
				}
				si.InChunk(loc.Chunk())
			}
		}(g)
	}
	wg.Wait()

	// на каждую горутину 200 вставок, из них 67 удалены (i%3==0)
	assert.Equal(t, 8*(200-67), si.Len())
}
