package trigger

import (
	"context"
	"errors"
	"testing"

	"github.com/annel0/trigger-store/internal/logging"
	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameToPath(t *testing.T) {
	assert.Equal(t, "Quests/Intro/start", NameToPath("Quests:Intro:start"))
	assert.Equal(t, "Quests:Intro:start", PathToName("Quests/Intro/start"))
	assert.Equal(t, "plain", NameToPath("plain"))
}

func TestNamedStore_ReloadAndSave(t *testing.T) {
	dir := t.TempDir()
	b, err := storage.NewDirBackend(dir)
	require.NoError(t, err)
	seed(t, b, map[string]string{
		"Quests/Intro/start": "say welcome",
		"Quests/broken":      "IF x",
		"greet":              "say hello",
	})

	logs := &safeBuffer{}
	logger := logging.NewLoggerWithWriter("triggers", logs, logging.DEBUG)
	ns, report, err := NewNamedStore(context.Background(), b, script.NewLexer(), logger)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Loaded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "compile", report.Failures[0].Op)
	var ce *script.CompileError
	assert.True(t, errors.As(report.Failures[0].Err, &ce))

	got, ok := ns.Get("Quests:Intro:start")
	require.True(t, ok)
	assert.Equal(t, "say welcome", got.Script())
	assert.Equal(t, []string{"Quests:Intro:start", "greet"}, ns.Names())

	require.NoError(t, ns.Put("Quests:Outro:end", compile(t, "say bye")))
	assert.Error(t, ns.Put("Quests::end", compile(t, "say bye")))
	assert.Error(t, ns.Put("", compile(t, "say bye")))

	save := ns.SaveAll(context.Background())
	assert.Equal(t, 3, save.Attempted)
	assert.Equal(t, 3, save.Saved)

	text, err := b.Read(context.Background(), "Quests/Outro/end")
	require.NoError(t, err)
	assert.Equal(t, "say bye", text)

	// файл с ошибкой компиляции не удаляется
	_, err = b.Read(context.Background(), "Quests/broken")
	assert.NoError(t, err)
}

func TestNamedStore_SaveFailuresReported(t *testing.T) {
	b := newFaultyBackend()
	ns, _, err := NewNamedStore(context.Background(), b, script.NewLexer(), nil)
	require.NoError(t, err)

	require.NoError(t, ns.Put("a:b", compile(t, "say one")))
	require.NoError(t, ns.Put("c", compile(t, "say two")))
	b.failWrite["a/b"] = true

	report := ns.SaveAll(context.Background())
	assert.Equal(t, 2, report.Attempted)
	assert.Equal(t, 1, report.Saved)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "a/b", report.Failures[0].Name)

	_, ok := ns.Get("a:b")
	assert.True(t, ok, "именованный триггер не выгружается при ошибке записи")
}
