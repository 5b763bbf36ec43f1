package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/annel0/trigger-store/internal/logging"
	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/storage"
	"github.com/annel0/trigger-store/internal/trigger"
	"github.com/annel0/trigger-store/internal/world"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	server  *RestServer
	store   *trigger.Store
	backend *storage.MemoryBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewLoggerWithWriter("api", io.Discard, logging.ERROR)

	b := storage.NewMemoryBackend()
	require.NoError(t, b.Write(ctx, "0. world@10,64,10", "say hi"))
	require.NoError(t, b.Write(ctx, "1. world@20,64,20", "say bye"))

	store, _, err := trigger.NewStore(ctx, b, script.NewLexer(), trigger.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	nb := storage.NewMemoryBackend()
	require.NoError(t, nb.Write(ctx, "Quests/intro", "say welcome"))
	named, _, err := trigger.NewNamedStore(ctx, nb, script.NewLexer(), logger)
	require.NoError(t, err)

	server := NewRestServer(Config{
		Store:      store,
		Named:      named,
		Logger:     logger,
		Registerer: prometheus.NewRegistry(),
	})
	return &fixture{server: server, store: store, backend: b}
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader) (*httptest.ResponseRecorder, GenericResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)

	var resp GenericResponse
	if w.Body.Len() > 0 && strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func locBody(world string, x, y, z int) io.Reader {
	data, _ := json.Marshal(LocationRequest{World: world, X: x, Y: y, Z: z})
	return bytes.NewReader(data)
}

func TestTriggerCRUD(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, "GET", "/api/triggers/world/10/64/10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "say hi", data["script"])
	assert.Equal(t, float64(0), data["slot"])
	assert.Equal(t, "world[0,0]", data["chunk"])

	w, _ = f.do(t, "GET", "/api/triggers/world/1/1/1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, "GET", "/api/triggers/world/a/b/c", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, "PUT", "/api/triggers/world/1/2/3", strings.NewReader("say new"))
	require.Equal(t, http.StatusOK, w.Code)
	got, ok := f.store.Get(world.NewLocation("world", 1, 2, 3))
	require.True(t, ok)
	assert.Equal(t, "say new", got.Script())

	w, resp = f.do(t, "PUT", "/api/triggers/world/1/2/3", strings.NewReader("IF broken"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Message, "compile error")

	w, _ = f.do(t, "DELETE", "/api/triggers/world/10/64/10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.store.Protected(world.NewLocation("world", 10, 64, 10)))

	w, _ = f.do(t, "DELETE", "/api/triggers/world/10/64/10", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestChunkListing(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, "GET", "/api/chunks/world/0/0", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	w, resp = f.do(t, "GET", "/api/chunks/world/1/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, resp.Data.([]interface{}), 1)

	w, _ = f.do(t, "GET", "/api/chunks/world/x/0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReloadAndSave(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.backend.Write(context.Background(), "garbage.txt", ""))

	w, resp := f.do(t, "POST", "/api/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["loaded"])
	assert.Len(t, data["failures"], 1)
	assert.False(t, resp.Success)

	w, resp = f.do(t, "POST", "/api/save", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data = resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["saved"])
	assert.True(t, resp.Success)

	require.NoError(t, f.backend.Write(context.Background(), "dir/0. world@0,0,0", "say x"))
	w, _ = f.do(t, "POST", "/api/reload", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestClipboardFlow(t *testing.T) {
	f := newFixture(t)
	actor := uuid.New().String()

	w, _ := f.do(t, "POST", "/api/clipboard/"+actor+"/paste", locBody("world", 0, 0, 0))
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = f.do(t, "POST", "/api/clipboard/"+actor+"/cut", locBody("world", 5, 5, 5))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, "POST", "/api/clipboard/"+actor+"/cut", locBody("world", 10, 64, 10))
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := f.do(t, "POST", "/api/clipboard/"+actor+"/paste", locBody("world", 0, 0, 0))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pasted", resp.Message)

	_, ok := f.store.Get(world.NewLocation("world", 10, 64, 10))
	assert.False(t, ok)
	_, ok = f.store.Get(world.NewLocation("world", 0, 0, 0))
	assert.True(t, ok)

	w, _ = f.do(t, "POST", "/api/clipboard/"+actor+"/copy", locBody("world", 20, 64, 20))
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = f.do(t, "DELETE", "/api/clipboard/"+actor, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = f.do(t, "POST", "/api/clipboard/"+actor+"/paste", locBody("world", 1, 1, 1))
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = f.do(t, "POST", "/api/clipboard/not-a-uuid/cut", locBody("world", 20, 64, 20))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNamedAndHealth(t *testing.T) {
	f := newFixture(t)

	w, resp := f.do(t, "GET", "/api/named/Quests/intro", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Quests:intro", resp.Message)

	w, resp = f.do(t, "GET", "/api/named/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"Quests:intro"}, resp.Data)

	w, _ = f.do(t, "GET", "/api/named/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(2), health["triggers"])

	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "triggers_admin_http_requests_inflight")
}

func TestServerMetrics_Uptime(t *testing.T) {
	sm := NewServerMetrics()
	assert.Equal(t, "0с", sm.GetUptime())

	mem, err := sm.GetMemoryUsage()
	require.NoError(t, err)
	assert.Greater(t, mem, 0.0)
	assert.NotEmpty(t, sm.GetDetailedMemoryStats())
}

func TestExportImport(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/api/export", nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/zstd", rec.Header().Get("Content-Type"))
	assert.Equal(t, "2", rec.Header().Get("X-Trigger-Count"))
	archive := rec.Body.Bytes()

	f.store.Remove(world.NewLocation("world", 10, 64, 10))
	require.Equal(t, 1, f.store.Len())

	w, resp := f.do(t, "POST", "/api/import", bytes.NewReader(archive))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, f.store.Len())

	w, _ = f.do(t, "POST", "/api/import", strings.NewReader("garbage"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
