package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendContract общие проверки для всех реализаций Backend
func backendContract(t *testing.T, b Backend) {
	ctx := context.Background()

	t.Run("Write and Read", func(t *testing.T) {
		require.NoError(t, b.Write(ctx, "0. world@10,64,10", "say hi"))

		text, err := b.Read(ctx, "0. world@10,64,10")
		require.NoError(t, err)
		assert.Equal(t, "say hi", text)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, b.Write(ctx, "1. world@1,2,3", "first"))
		require.NoError(t, b.Write(ctx, "1. world@1,2,3", "second"))

		text, err := b.Read(ctx, "1. world@1,2,3")
		require.NoError(t, err)
		assert.Equal(t, "second", text)
	})

	t.Run("Read missing", func(t *testing.T) {
		_, err := b.Read(ctx, "nope")
		assert.True(t, errors.Is(err, ErrNotFound), "ожидался ErrNotFound, получено %v", err)
	})

	t.Run("Nested names", func(t *testing.T) {
		require.NoError(t, b.Write(ctx, "Folder/Sub/name", "nested"))

		entries, err := b.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, entries, Entry{Name: "Folder", IsDir: true})
		assert.Contains(t, entries, Entry{Name: "0. world@10,64,10", IsDir: false})

		names, err := b.Walk(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, "Folder/Sub/name")
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, b.Delete(ctx, "1. world@1,2,3"))
		_, err := b.Read(ctx, "1. world@1,2,3")
		assert.True(t, errors.Is(err, ErrNotFound))

		// Повторное удаление ошибкой не считается
		assert.NoError(t, b.Delete(ctx, "1. world@1,2,3"))
	})

	t.Run("Invalid names", func(t *testing.T) {
		assert.Error(t, b.Write(ctx, "", "x"))
		assert.Error(t, b.Write(ctx, "../escape", "x"))
		assert.Error(t, b.Write(ctx, "/abs", "x"))
	})
}

func TestMemoryBackend(t *testing.T) {
	b := NewMemoryBackend()
	backendContract(t, b)
	assert.Equal(t, 2, b.Count())
}

func TestDirBackend(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "LocationTriggers")
	b, err := NewDirBackend(dir)
	require.NoError(t, err)
	defer b.Close()

	backendContract(t, b)

	data, err := os.ReadFile(filepath.Join(dir, "0. world@10,64,10"))
	require.NoError(t, err)
	assert.Equal(t, "say hi", string(data), "каждая запись должна быть отдельным файлом")
}

func TestBadgerBackend(t *testing.T) {
	b, err := NewBadgerBackend(t.TempDir(), "LocationTriggers")
	require.NoError(t, err)
	defer b.Close()

	backendContract(t, b)
}

func TestBadgerBackend_FoldersAreIsolated(t *testing.T) {
	db, err := OpenBadgerDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	a := NewBadgerBackendFromDB(db, "A")
	b := NewBadgerBackendFromDB(db, "B")

	require.NoError(t, a.Write(ctx, "x", "from a"))

	names, err := b.Walk(ctx)
	require.NoError(t, err)
	assert.Empty(t, names)

	// Close общего backend'а не закрывает БД
	require.NoError(t, a.Close())
	require.NoError(t, b.Write(ctx, "y", "from b"))
}

func TestRedisBackend(t *testing.T) {
	addr := os.Getenv("TRIGGERS_TEST_REDIS")
	if addr == "" {
		addr = "localhost:6379"
	}
	cfg := DefaultRedisConfig()
	cfg.Addr = addr
	cfg.KeyPrefix = "triggers-test:"

	b, err := NewRedisBackend(cfg, t.Name())
	if err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	defer b.Close()
	defer b.client.Del(context.Background(), b.key)

	backendContract(t, b)
}

func TestMySQLBackend(t *testing.T) {
	dsn := os.Getenv("TRIGGERS_TEST_MYSQL")
	if dsn == "" {
		dsn = "root@tcp(localhost:3306)/triggers_test"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	b, err := NewMySQLBackend(ctx, dsn, t.Name())
	if err != nil {
		t.Skipf("MariaDB not available, skipping test: %v", err)
	}
	defer b.Close()
	defer b.db.Exec(`DELETE FROM trigger_files WHERE folder = ?`, b.folder)

	backendContract(t, b)

	other := NewMySQLBackendFromDB(b.db, t.Name()+"-other")
	names, err := other.Walk(context.Background())
	require.NoError(t, err)
	assert.Empty(t, names, "папки в одной таблице изолированы")
	require.NoError(t, other.Close())
}

func TestMongoBackend(t *testing.T) {
	cfg := DefaultMongoConfig()
	if uri := os.Getenv("TRIGGERS_TEST_MONGO"); uri != "" {
		cfg.URI = uri
	}
	cfg.Database = "triggers_test"
	cfg.Timeout = 2 * time.Second

	b, err := NewMongoBackend(context.Background(), cfg, t.Name())
	if err != nil {
		t.Skipf("MongoDB not available, skipping test: %v", err)
	}
	defer b.Close()
	defer b.coll.DeleteMany(context.Background(), bson.M{"folder": b.folder})

	backendContract(t, b)
}

func TestFactory(t *testing.T) {
	_, err := NewFactory(FactoryConfig{Kind: "ftp"})
	assert.Error(t, err)

	_, err = NewFactory(FactoryConfig{Kind: KindDir})
	assert.Error(t, err, "для dir нужна директория данных")

	_, err = NewFactory(FactoryConfig{Kind: KindMySQL})
	assert.Error(t, err, "для mysql нужен DSN")

	f, err := NewFactory(FactoryConfig{Kind: KindMemory})
	require.NoError(t, err)
	a, err := f.Open("LocationTriggers")
	require.NoError(t, err)
	again, err := f.Open("LocationTriggers")
	require.NoError(t, err)
	assert.Same(t, a, again, "memory backend папки должен переиспользоваться")

	dir := t.TempDir()
	f, err = NewFactory(FactoryConfig{Kind: KindDir, DataDir: dir})
	require.NoError(t, err)
	_, err = f.Open("NamedTriggers")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(dir, "NamedTriggers"))
	assert.NoError(t, f.Close())
}
