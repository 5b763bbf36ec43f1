package trigger

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/annel0/trigger-store/internal/logging"
	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/storage"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected I/O failure")

// faultyBackend оборачивает MemoryBackend и отказывает на выбранных именах
type faultyBackend struct {
	*storage.MemoryBackend

	mu         sync.Mutex
	failWrite  map[string]bool
	failDelete map[string]bool
	failRead   map[string]bool
	writes     []string
}

func newFaultyBackend() *faultyBackend {
	return &faultyBackend{
		MemoryBackend: storage.NewMemoryBackend(),
		failWrite:     make(map[string]bool),
		failDelete:    make(map[string]bool),
		failRead:      make(map[string]bool),
	}
}

func (f *faultyBackend) Read(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	fail := f.failRead[name]
	f.mu.Unlock()
	if fail {
		return "", errInjected
	}
	return f.MemoryBackend.Read(ctx, name)
}

func (f *faultyBackend) Write(ctx context.Context, name, text string) error {
	f.mu.Lock()
	fail := f.failWrite[name]
	f.writes = append(f.writes, name)
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.MemoryBackend.Write(ctx, name, text)
}

func (f *faultyBackend) Delete(ctx context.Context, name string) error {
	f.mu.Lock()
	fail := f.failDelete[name]
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.MemoryBackend.Delete(ctx, name)
}

func (f *faultyBackend) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

// safeBuffer буфер для логгера, который пишут несколько горутин
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func seed(t *testing.T, b storage.Backend, files map[string]string) {
	t.Helper()
	for name, text := range files {
		require.NoError(t, b.Write(context.Background(), name, text))
	}
}

func newTestStore(t *testing.T, b storage.Backend, opts ...Option) (*Store, *ReloadReport, *safeBuffer) {
	t.Helper()
	logs := &safeBuffer{}
	opts = append([]Option{WithLogger(logging.NewLoggerWithWriter("triggers", logs, logging.DEBUG))}, opts...)

	s, report, err := NewStore(context.Background(), b, script.NewLexer(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, report, logs
}

func compile(t *testing.T, text string) *script.Trigger {
	t.Helper()
	trig, err := script.NewLexer().Compile(text)
	require.NoError(t, err)
	return trig
}

func flush(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
}
