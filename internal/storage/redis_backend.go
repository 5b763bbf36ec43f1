package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс ключей
	Timeout   time.Duration // Таймаут проверки соединения
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "triggers:",
		Timeout:   5 * time.Second,
	}
}

// RedisBackend хранит папку как один hash: поле = имя записи, значение = текст
type RedisBackend struct {
	client *redis.Client
	key    string
	owned  bool
}

// NewRedisClient создаёт клиент и проверяет подключение
func NewRedisClient(config *RedisConfig) (*redis.Client, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisBackend подключается к Redis и создаёт backend одной папки
func NewRedisBackend(config *RedisConfig, folder string) (*RedisBackend, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	client, err := NewRedisClient(config)
	if err != nil {
		return nil, err
	}
	b := NewRedisBackendFromClient(client, config.KeyPrefix, folder)
	b.owned = true
	return b, nil
}

// NewRedisBackendFromClient создаёт backend поверх общего клиента
func NewRedisBackendFromClient(client *redis.Client, keyPrefix, folder string) *RedisBackend {
	return &RedisBackend{
		client: client,
		key:    keyPrefix + folder,
	}
}

// List возвращает записи верхнего уровня
func (r *RedisBackend) List(ctx context.Context) ([]Entry, error) {
	names, err := r.Walk(ctx)
	if err != nil {
		return nil, err
	}
	return topLevel(names), nil
}

// Walk возвращает все поля hash
func (r *RedisBackend) Walk(ctx context.Context) ([]string, error) {
	names, err := r.client.HKeys(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hkeys %s: %w", r.key, err)
	}
	sort.Strings(names)
	return names, nil
}

// Read читает поле hash
func (r *RedisBackend) Read(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	text, err := r.client.HGet(ctx, r.key, name).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("redis hget %s: %w", name, err)
	}
	return text, nil
}

// Write записывает поле hash
func (r *RedisBackend) Write(ctx context.Context, name, text string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key, name, text).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", name, err)
	}
	return nil
}

// Delete удаляет поле hash
func (r *RedisBackend) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := r.client.HDel(ctx, r.key, name).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", name, err)
	}
	return nil
}

// Close закрывает клиент, если backend им владеет
func (r *RedisBackend) Close() error {
	if !r.owned {
		return nil
	}
	return r.client.Close()
}
