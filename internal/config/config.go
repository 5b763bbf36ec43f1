package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config корневая структура конфигурации приложения.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Triggers  TriggersConfig  `yaml:"triggers"`
	EventBus  EventBusConfig  `yaml:"eventbus"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// StorageConfig где хранятся файлы триггеров
type StorageConfig struct {
	Backend       string `yaml:"backend"` // dir | badger | redis | memory | mysql | mongo
	DataDir       string `yaml:"data_dir"`
	LocationDir   string `yaml:"location_folder"`
	NamedDir      string `yaml:"named_folder"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
	MySQLDSN      string `yaml:"mysql_dsn"` // user:pass@tcp(host:port)/dbname
	MongoURI      string `yaml:"mongo_uri"`
	MongoDatabase string `yaml:"mongo_database"`
}

// TriggersConfig поведение хранилища триггеров
type TriggersConfig struct {
	// SlotPolicy: "legacy" (слот только при загрузке) или "allocate"
	// (расширение: новый слот при первом сохранении).
	SlotPolicy       string `yaml:"slot_policy"`
	PersistQueueSize int    `yaml:"persist_queue_size"`
	AutoSaveSeconds  int    `yaml:"autosave_seconds"`
}

type EventBusConfig struct {
	Kind      string `yaml:"kind"` // memory | jetstream
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
	Buffer    int    `yaml:"buffer"`
}

type ServerConfig struct {
	AdminPort   int `yaml:"admin_port"`
	MetricsPort int `yaml:"metrics_port"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	ToFile bool   `yaml:"to_file"`
}

// Default возвращает полностью рабочую конфигурацию
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend:       "dir",
			DataDir:       "data",
			LocationDir:   "LocationTriggers",
			NamedDir:      "NamedTriggers",
			RedisAddr:     "localhost:6379",
			RedisPrefix:   "triggers:",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "triggers",
		},
		Triggers: TriggersConfig{
			SlotPolicy:       "legacy",
			PersistQueueSize: 1024,
			AutoSaveSeconds:  300,
		},
		EventBus: EventBusConfig{
			Kind:      "memory",
			URL:       "nats://127.0.0.1:4222",
			Stream:    "TRIGGERS",
			Retention: 24,
			Buffer:    1024,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "trigger-store",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// AutoSaveInterval интервал автосохранения; 0 отключает его
func (t *TriggersConfig) AutoSaveInterval() time.Duration {
	if t.AutoSaveSeconds <= 0 {
		return 0
	}
	return time.Duration(t.AutoSaveSeconds) * time.Second
}

// RetentionDuration время хранения событий в JetStream
func (e *EventBusConfig) RetentionDuration() time.Duration {
	return time.Duration(e.Retention) * time.Hour
}

// GetAdminPort возвращает порт админского REST API
func (s *ServerConfig) GetAdminPort() int {
	return getPortWithEnvFallback(s.AdminPort, "TRIGGERS_ADMIN_PORT", 8088)
}

// GetMetricsPort возвращает порт Prometheus метрик
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "TRIGGERS_METRICS_PORT", 2112)
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

// Validate проверяет значения, которые нельзя исправить дефолтами
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "dir", "badger", "redis", "memory", "mongo":
	case "mysql":
		if c.Storage.MySQLDSN == "" {
			return fmt.Errorf("storage.mysql_dsn: обязателен для backend=mysql")
		}
	default:
		return fmt.Errorf("storage.backend: неизвестное значение %q", c.Storage.Backend)
	}
	switch c.Triggers.SlotPolicy {
	case "legacy", "allocate":
	default:
		return fmt.Errorf("triggers.slot_policy: неизвестное значение %q", c.Triggers.SlotPolicy)
	}
	switch c.EventBus.Kind {
	case "memory", "jetstream":
	default:
		return fmt.Errorf("eventbus.kind: неизвестное значение %q", c.EventBus.Kind)
	}
	if c.Storage.LocationDir == c.Storage.NamedDir {
		return fmt.Errorf("storage: location_folder и named_folder совпадают (%q)", c.Storage.LocationDir)
	}
	return nil
}

// Load читает YAML файл конфигурации поверх Default().
// Если path == "", пытается прочитать из ENV TRIGGERS_CONFIG,
// а если и там пусто, возвращает Default().
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("TRIGGERS_CONFIG")
		if path == "" {
			return cfg, nil // конфиг не задан: использовать дефолты
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
