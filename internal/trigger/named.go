package trigger

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/annel0/trigger-store/internal/logging"
	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/storage"
)

// DefaultNamedFolder имя папки именованных триггеров
const DefaultNamedFolder = "NamedTriggers"

// NamedStore триггеры по имени вида "Folder:Sub:name", хранящиеся как
// вложенные записи "Folder/Sub/name". Без пространственного индекса и
// без удаления файлов.
type NamedStore struct {
	backend storage.Backend
	engine  script.Engine
	logger  *logging.Logger

	mu       sync.RWMutex
	triggers map[string]*script.Trigger
}

// NewNamedStore создаёт хранилище и загружает его
func NewNamedStore(ctx context.Context, backend storage.Backend, engine script.Engine, logger *logging.Logger) (*NamedStore, *ReloadReport, error) {
	if logger == nil {
		logger = logging.NewLoggerWithWriter("triggers", os.Stdout, logging.INFO)
	}
	ns := &NamedStore{
		backend:  backend,
		engine:   engine,
		logger:   logger,
		triggers: make(map[string]*script.Trigger),
	}
	report, err := ns.Reload(ctx)
	if err != nil {
		return nil, nil, err
	}
	return ns, report, nil
}

// NameToPath "a:b:c" -> "a/b/c"
func NameToPath(name string) string {
	return strings.ReplaceAll(name, ":", "/")
}

// PathToName "a/b/c" -> "a:b:c"
func PathToName(path string) string {
	return strings.ReplaceAll(path, "/", ":")
}

func validateTriggerName(name string) error {
	if name == "" {
		return fmt.Errorf("empty trigger name")
	}
	for _, part := range strings.Split(name, ":") {
		if part == "" || part == "." || part == ".." || strings.Contains(part, "/") {
			return fmt.Errorf("invalid trigger name %q", name)
		}
	}
	return nil
}

// Reload перечитывает все записи, включая вложенные
func (ns *NamedStore) Reload(ctx context.Context) (*ReloadReport, error) {
	start := time.Now()

	paths, err := ns.backend.Walk(ctx)
	if err != nil {
		return nil, fmt.Errorf("walk named triggers: %w", err)
	}
	sort.Strings(paths)

	loaded := make(map[string]*script.Trigger, len(paths))
	report := &ReloadReport{Scanned: len(paths)}

	for _, path := range paths {
		text, err := ns.backend.Read(ctx, path)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Op: "read", Name: path, Slot: -1, Err: &IOError{Op: "read", Name: path, Err: err}})
			continue
		}
		t, err := ns.engine.Compile(text)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Op: "compile", Name: path, Slot: -1, Err: err})
			continue
		}
		loaded[PathToName(path)] = t
	}

	for _, f := range report.Failures {
		ns.logger.Warn("⚠️ op=named-reload %s", f)
	}

	ns.mu.Lock()
	ns.triggers = loaded
	ns.mu.Unlock()

	report.Loaded = len(loaded)
	report.Duration = time.Since(start)
	ns.logger.Info("📂 Именованных триггеров загружено %d, ошибок %d", report.Loaded, len(report.Failures))
	return report, nil
}

// Get возвращает триггер по имени
func (ns *NamedStore) Get(name string) (*script.Trigger, bool) {
	ns.mu.RLock()
	defer ns.mu.RUnlock()
	t, ok := ns.triggers[name]
	return t, ok
}

// Put ставит триггер в память; на диск попадёт при SaveAll
func (ns *NamedStore) Put(name string, t *script.Trigger) error {
	if err := validateTriggerName(name); err != nil {
		return err
	}
	if t == nil {
		return fmt.Errorf("nil trigger for %q", name)
	}
	ns.mu.Lock()
	ns.triggers[name] = t
	ns.mu.Unlock()
	return nil
}

// Names отсортированный список имён
func (ns *NamedStore) Names() []string {
	ns.mu.RLock()
	names := make([]string, 0, len(ns.triggers))
	for name := range ns.triggers {
		names = append(names, name)
	}
	ns.mu.RUnlock()

	sort.Strings(names)
	return names
}

// SaveAll записывает все триггеры. Неудачные записи только попадают в отчёт.
func (ns *NamedStore) SaveAll(ctx context.Context) *SaveReport {
	start := time.Now()

	ns.mu.RLock()
	snapshot := make(map[string]*script.Trigger, len(ns.triggers))
	for name, t := range ns.triggers {
		snapshot[name] = t
	}
	ns.mu.RUnlock()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	report := &SaveReport{}
	for _, name := range names {
		report.Attempted++
		path := NameToPath(name)
		if err := ns.backend.Write(ctx, path, snapshot[name].Script()); err != nil {
			report.Failures = append(report.Failures, Failure{Op: "write", Name: path, Slot: -1, Err: &IOError{Op: "write", Name: path, Err: err}})
			ns.logger.Error("❌ op=named-save name=%s err=%v", name, err)
			continue
		}
		report.Saved++
	}

	report.Duration = time.Since(start)
	return report
}
