package trigger

import (
	"bytes"
	"context"
	"testing"

	"github.com/annel0/trigger-store/internal/storage"
	"github.com/annel0/trigger-store/internal/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_ExportImport(t *testing.T) {
	src := storage.NewMemoryBackend()
	seed(t, src, map[string]string{
		"0. world@10,64,10": "say hi",
		"1. world@20,64,20": "say bye",
	})
	s, _, _ := newTestStore(t, src)

	// Ещё не сохранённое изменение попадает в архив после Flush внутри Export
	s.Set(world.NewLocation("world", 10, 64, 10), compile(t, "say changed"))

	var buf bytes.Buffer
	n, err := s.Export(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	dst := storage.NewMemoryBackend()
	seed(t, dst, map[string]string{"5. other@0,0,0": "say old"})
	restored, _, _ := newTestStore(t, dst)
	require.Equal(t, 1, restored.Len())

	report, err := restored.Import(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 3, restored.Len())

	got, ok := restored.Get(world.NewLocation("world", 10, 64, 10))
	require.True(t, ok)
	assert.Equal(t, "say changed", got.Script())
	_, ok = restored.Get(world.NewLocation("world", 20, 64, 20))
	assert.True(t, ok)
}

func TestStore_ImportGarbage(t *testing.T) {
	b := storage.NewMemoryBackend()
	seed(t, b, map[string]string{"0. world@1,1,1": "say hi"})
	s, _, logs := newTestStore(t, b)

	_, err := s.Import(context.Background(), bytes.NewReader([]byte("not zstd")))
	assert.Error(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Contains(t, logs.String(), "op=import")
}
