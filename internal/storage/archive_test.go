package storage

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchive_ExportImport(t *testing.T) {
	ctx := context.Background()
	src := NewMemoryBackend()
	require.NoError(t, src.Write(ctx, "0. world@10,64,10", "say hi"))
	require.NoError(t, src.Write(ctx, "1. nether@-1,0,-1", "say \"bye\"\nsay again"))
	require.NoError(t, src.Write(ctx, "Quests/intro", "say welcome"))

	var buf bytes.Buffer
	n, err := ExportArchive(ctx, src, "LocationTriggers", &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	dst := NewMemoryBackend()
	require.NoError(t, dst.Write(ctx, "keep", "untouched"))

	header, imported, err := ImportArchive(ctx, &buf, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, imported)
	assert.Equal(t, "LocationTriggers", header.Folder)
	assert.Equal(t, 3, header.Count)

	snap := dst.Snapshot()
	assert.Len(t, snap, 4)
	assert.Equal(t, "say \"bye\"\nsay again", snap["1. nether@-1,0,-1"])
	assert.Equal(t, "untouched", snap["keep"])
}

func TestArchive_RejectsBadNames(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write([]byte(`{"version":1,"folder":"x","count":1}` + "\n" + `{"name":"../escape","text":"x"}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	dst := NewMemoryBackend()
	_, imported, err := ImportArchive(context.Background(), &buf, dst)
	assert.Error(t, err)
	assert.Equal(t, 0, imported)
	assert.Equal(t, 0, dst.Count())
}

func TestArchive_RejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write([]byte(`{"version":99}` + "\n"))
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	_, _, err = ImportArchive(context.Background(), &buf, NewMemoryBackend())
	assert.Error(t, err)
}
