package trigger

import (
	"errors"
	"testing"

	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/storage"
	"github.com/annel0/trigger-store/internal/world"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationSetSession(t *testing.T) {
	b := storage.NewMemoryBackend()
	seed(t, b, map[string]string{"0. w@0,0,0": "say taken"})
	s, _, _ := newTestStore(t, b)
	actor := uuid.New()

	require.True(t, s.StartLocationSet(actor, "say placed"))
	assert.False(t, s.StartLocationSet(actor, "say again"), "одна сессия на актёра")

	text, ok := s.PendingLocationScript(actor)
	require.True(t, ok)
	assert.Equal(t, "say placed", text)

	err := s.CompleteLocationSet(actor, world.NewLocation("w", 0, 0, 0))
	assert.ErrorIs(t, err, ErrLocationOccupied)
	_, ok = s.PendingLocationScript(actor)
	assert.True(t, ok, "сессия остаётся после отказа")

	target := world.NewLocation("w", 3, 3, 3)
	require.NoError(t, s.CompleteLocationSet(actor, target))

	got, ok := s.Get(target)
	require.True(t, ok)
	assert.Equal(t, "say placed", got.Script())
	_, ok = s.PendingLocationScript(actor)
	assert.False(t, ok)

	assert.ErrorIs(t, s.CompleteLocationSet(actor, target), ErrNoPendingLocationSet)
}

func TestLocationSetSession_CompileError(t *testing.T) {
	s, _, _ := newTestStore(t, storage.NewMemoryBackend())
	actor := uuid.New()

	require.True(t, s.StartLocationSet(actor, "IF broken"))
	err := s.CompleteLocationSet(actor, world.NewLocation("w", 1, 1, 1))

	var ce *script.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 0, s.Len())

	assert.True(t, s.StopLocationSet(actor))
	assert.False(t, s.StopLocationSet(actor))
}
