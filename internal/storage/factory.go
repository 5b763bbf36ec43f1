package storage

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// Kind тип backend'а
type Kind string

const (
	KindDir    Kind = "dir"
	KindBadger Kind = "badger"
	KindRedis  Kind = "redis"
	KindMemory Kind = "memory"
	KindMySQL  Kind = "mysql"
	KindMongo  Kind = "mongo"
)

// FactoryConfig настройки фабрики backend'ов
type FactoryConfig struct {
	Kind    Kind
	DataDir string // корень данных: папки для dir, БД для badger
	Redis   *RedisConfig
	MySQL   string // DSN для mysql
	Mongo   *MongoConfig
}

// Factory создаёт backend'ы для папок, разделяя между ними
// одно подключение к BadgerDB, Redis, MariaDB или MongoDB.
type Factory struct {
	cfg FactoryConfig

	mu          sync.Mutex
	db          *badger.DB
	client      *redis.Client
	sqlDB       *sql.DB
	mongoClient *mongo.Client
	coll        *mongo.Collection
	memory      map[string]*MemoryBackend
}

// NewFactory проверяет конфигурацию и создаёт фабрику
func NewFactory(cfg FactoryConfig) (*Factory, error) {
	if cfg.Kind == "" {
		cfg.Kind = KindDir
	}
	switch cfg.Kind {
	case KindDir, KindBadger, KindRedis, KindMemory, KindMySQL, KindMongo:
	default:
		return nil, fmt.Errorf("неизвестный тип хранилища %q", cfg.Kind)
	}
	if cfg.DataDir == "" && (cfg.Kind == KindDir || cfg.Kind == KindBadger) {
		return nil, fmt.Errorf("не задана директория данных для хранилища %q", cfg.Kind)
	}
	if cfg.Kind == KindMySQL && cfg.MySQL == "" {
		return nil, fmt.Errorf("не задан DSN для хранилища %q", cfg.Kind)
	}
	return &Factory{cfg: cfg, memory: make(map[string]*MemoryBackend)}, nil
}

// Kind возвращает тип создаваемых backend'ов
func (f *Factory) Kind() Kind {
	return f.cfg.Kind
}

// Open возвращает backend папки folder
func (f *Factory) Open(folder string) (Backend, error) {
	if err := validateName(folder); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch f.cfg.Kind {
	case KindDir:
		return NewDirBackend(filepath.Join(f.cfg.DataDir, folder))

	case KindBadger:
		if f.db == nil {
			db, err := OpenBadgerDB(f.cfg.DataDir)
			if err != nil {
				return nil, err
			}
			f.db = db
		}
		return NewBadgerBackendFromDB(f.db, folder), nil

	case KindRedis:
		cfg := f.cfg.Redis
		if cfg == nil {
			cfg = DefaultRedisConfig()
		}
		if f.client == nil {
			client, err := NewRedisClient(cfg)
			if err != nil {
				return nil, err
			}
			f.client = client
		}
		return NewRedisBackendFromClient(f.client, cfg.KeyPrefix, folder), nil

	case KindMySQL:
		if f.sqlDB == nil {
			db, err := OpenMySQL(context.Background(), f.cfg.MySQL)
			if err != nil {
				return nil, err
			}
			f.sqlDB = db
		}
		return NewMySQLBackendFromDB(f.sqlDB, folder), nil

	case KindMongo:
		if f.mongoClient == nil {
			client, coll, err := OpenMongo(context.Background(), f.cfg.Mongo)
			if err != nil {
				return nil, err
			}
			f.mongoClient, f.coll = client, coll
		}
		return NewMongoBackendFromCollection(f.mongoClient, f.coll, folder), nil

	default:
		if b, ok := f.memory[folder]; ok {
			return b, nil
		}
		b := NewMemoryBackend()
		f.memory[folder] = b
		return b, nil
	}
}

// Close закрывает общие подключения
func (f *Factory) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var lastErr error
	if f.db != nil {
		if err := f.db.Close(); err != nil {
			lastErr = fmt.Errorf("ошибка закрытия BadgerDB: %w", err)
		}
		f.db = nil
	}
	if f.client != nil {
		if err := f.client.Close(); err != nil {
			lastErr = fmt.Errorf("ошибка закрытия Redis: %w", err)
		}
		f.client = nil
	}
	if f.sqlDB != nil {
		if err := f.sqlDB.Close(); err != nil {
			lastErr = fmt.Errorf("ошибка закрытия MariaDB: %w", err)
		}
		f.sqlDB = nil
	}
	if f.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := f.mongoClient.Disconnect(ctx); err != nil {
			lastErr = fmt.Errorf("ошибка закрытия MongoDB: %w", err)
		}
		cancel()
		f.mongoClient, f.coll = nil, nil
	}
	return lastErr
}
