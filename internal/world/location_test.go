package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocationChunk(t *testing.T) {
	cases := []struct {
		loc  Location
		want ChunkKey
	}{
		{NewLocation("world", 0, 64, 0), ChunkKey{World: "world", X: 0, Z: 0}},
		{NewLocation("world", 15, 64, 15), ChunkKey{World: "world", X: 0, Z: 0}},
		{NewLocation("world", 16, 1, 31), ChunkKey{World: "world", X: 1, Z: 1}},
		{NewLocation("world", -1, 1, -16), ChunkKey{World: "world", X: -1, Z: -1}},
		{NewLocation("world", -17, 1, 0), ChunkKey{World: "world", X: -2, Z: 0}},
		{NewLocation("nether", 10, 64, 10), ChunkKey{World: "nether", X: 0, Z: 0}},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, c.loc.Chunk(), "чанк для %s", c.loc)
		assert.True(t, c.want.Contains(c.loc))
	}
}

func TestLocationEquality(t *testing.T) {
	a := NewLocation("world", 1, 2, 3)
	b := NewLocation("world", 1, 2, 3)
	c := NewLocation("world2", 1, 2, 3)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	m := map[Location]int{a: 1}
	_, ok := m[b]
	assert.True(t, ok, "равные координаты должны давать один ключ map")
	_, ok = m[c]
	assert.False(t, ok)
}

func TestLocationString(t *testing.T) {
	assert.Equal(t, "world@10,64,-3", NewLocation("world", 10, 64, -3).String())
	assert.Equal(t, "world[0,-1]", NewLocation("world", 10, 64, -3).Chunk().String())
}
