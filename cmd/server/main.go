package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/annel0/trigger-store/internal/api"
	"github.com/annel0/trigger-store/internal/config"
	"github.com/annel0/trigger-store/internal/eventbus"
	"github.com/annel0/trigger-store/internal/logging"
	"github.com/annel0/trigger-store/internal/observability"
	"github.com/annel0/trigger-store/internal/script"
	"github.com/annel0/trigger-store/internal/storage"
	"github.com/annel0/trigger-store/internal/trigger"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "", "путь к YAML конфигурации (или ENV TRIGGERS_CONFIG)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}

	// === ЛОГИРОВАНИЕ ===
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Logging.ToFile {
		if err := logging.InitDefaultLogger("server"); err != nil {
			log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
		}
		defer logging.CloseDefaultLogger()
	} else {
		logging.SetDefaultLogger(logging.NewLoggerWithWriter("server", os.Stdout, level))
		logging.GetLoggerManager().SetFactory(func(component string) (*logging.Logger, error) {
			return logging.NewLoggerWithWriter(component, os.Stdout, level), nil
		})
	}
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🗂️  Запуск хранилища триггеров (backend=%s, slot_policy=%s)", cfg.Storage.Backend, cfg.Triggers.SlotPolicy)

	ctx := context.Background()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("❌ Ошибка инициализации OpenTelemetry: %v", err)
	}
	defer shutdownTelemetry(ctx)

	// === ШИНА СОБЫТИЙ ===
	bus, err := newEventBus(cfg.EventBus)
	if err != nil {
		log.Fatalf("❌ Ошибка создания шины событий: %v", err)
	}
	defer bus.Close()

	if _, err := eventbus.StartLoggingListener(bus, logging.GetComponentLogger("events")); err != nil {
		logging.Warn("⚠️ Не удалось подписать логгер событий: %v", err)
	}

	exporter := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	exporter.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()))
	defer exporter.Stop()

	// === ХРАНИЛИЩЕ ===
	factory, err := storage.NewFactory(storage.FactoryConfig{
		Kind:    storage.Kind(cfg.Storage.Backend),
		DataDir: dataDir(cfg.Storage),
		Redis: &storage.RedisConfig{
			Addr:      cfg.Storage.RedisAddr,
			Password:  cfg.Storage.RedisPassword,
			DB:        cfg.Storage.RedisDB,
			KeyPrefix: cfg.Storage.RedisPrefix,
		},
		MySQL: cfg.Storage.MySQLDSN,
		Mongo: &storage.MongoConfig{
			URI:      cfg.Storage.MongoURI,
			Database: cfg.Storage.MongoDatabase,
		},
	})
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации хранилища: %v", err)
	}
	defer factory.Close()

	locationBackend, err := factory.Open(cfg.Storage.LocationDir)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия папки %s: %v", cfg.Storage.LocationDir, err)
	}
	defer locationBackend.Close()

	namedBackend, err := factory.Open(cfg.Storage.NamedDir)
	if err != nil {
		log.Fatalf("❌ Ошибка открытия папки %s: %v", cfg.Storage.NamedDir, err)
	}
	defer namedBackend.Close()

	policy, err := trigger.ParseSlotPolicy(cfg.Triggers.SlotPolicy)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	engine := script.NewLexer()

	store, report, err := trigger.NewStore(ctx, locationBackend, engine,
		trigger.WithFolder(cfg.Storage.LocationDir),
		trigger.WithLogger(logging.GetTriggerLogger()),
		trigger.WithEventBus(bus),
		trigger.WithRegisterer(prometheus.DefaultRegisterer),
		trigger.WithSlotPolicy(policy),
		trigger.WithQueueSize(cfg.Triggers.PersistQueueSize),
	)
	if err != nil {
		var cfgErr *trigger.ConfigurationError
		if errors.As(err, &cfgErr) {
			log.Fatalf("❌ Папка %s содержит вложенную директорию %q, удалите её и перезапустите сервер", cfgErr.Folder, cfgErr.Entry)
		}
		log.Fatalf("❌ Ошибка загрузки триггеров: %v", err)
	}
	logging.Info("✅ Загружено %d триггеров по координатам (%d ошибок)", report.Loaded, len(report.Failures))

	named, namedReport, err := trigger.NewNamedStore(ctx, namedBackend, engine, logging.GetComponentLogger("named"))
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки именованных триггеров: %v", err)
	}
	logging.Info("✅ Загружено %d именованных триггеров (%d ошибок)", namedReport.Loaded, len(namedReport.Failures))

	// === REST API ===
	restServer := api.NewRestServer(api.Config{
		Port:   fmt.Sprintf(":%d", cfg.Server.GetAdminPort()),
		Store:  store,
		Named:  named,
		Engine: engine,
		Logger: logging.GetAPILogger(),
	})
	if err := restServer.Start(); err != nil {
		log.Fatalf("❌ Ошибка запуска REST API: %v", err)
	}

	// === АВТОСОХРАНЕНИЕ ===
	stopAutoSave := make(chan struct{})
	autoSaveDone := make(chan struct{})
	go func() {
		defer close(autoSaveDone)
		interval := cfg.Triggers.AutoSaveInterval()
		if interval == 0 {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				saveAll(ctx, store, named)
			case <-stopAutoSave:
				return
			}
		}
	}()

	logging.Info("✅ Все сервисы запущены")
	logging.Info("   🌐 REST API: http://localhost:%d", cfg.Server.GetAdminPort())
	logging.Info("   📈 Метрики: http://localhost:%d/metrics", cfg.Server.GetMetricsPort())

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	if err := restServer.Stop(ctx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}

	close(stopAutoSave)
	<-autoSaveDone

	saveAll(ctx, store, named)
	if err := store.Close(); err != nil {
		logging.Error("❌ Ошибка закрытия хранилища: %v", err)
	}

	logging.Info("👋 Сервер успешно остановлен")
}

// newEventBus создаёт шину по конфигурации
func newEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.Kind == "jetstream" {
		return eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionDuration())
	}
	return eventbus.NewMemoryBus(cfg.Buffer), nil
}

// dataDir корень данных: для badger отдельная поддиректория с БД
func dataDir(cfg config.StorageConfig) string {
	if cfg.Backend == string(storage.KindBadger) {
		return filepath.Join(cfg.DataDir, "badger")
	}
	return cfg.DataDir
}

func saveAll(ctx context.Context, store *trigger.Store, named *trigger.NamedStore) {
	report := store.SaveAll(ctx)
	namedReport := named.SaveAll(ctx)
	if len(report.Failures) > 0 || len(namedReport.Failures) > 0 {
		logging.Warn("⚠️ Сохранение завершено с ошибками: %d по координатам, %d именованных",
			len(report.Failures), len(namedReport.Failures))
	}
}
