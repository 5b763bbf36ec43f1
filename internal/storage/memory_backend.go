package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryBackend реализует Backend в памяти.
// Используется в тестах и как fallback без диска.
// ВНИМАНИЕ: данные теряются при перезапуске!
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[string]string // имя -> текст
}

// NewMemoryBackend создаёт пустой backend в памяти
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[string]string),
	}
}

// List возвращает записи верхнего уровня
func (m *MemoryBackend) List(ctx context.Context) ([]Entry, error) {
	names, err := m.Walk(ctx)
	if err != nil {
		return nil, err
	}
	return topLevel(names), nil
}

// Walk возвращает все имена в отсортированном порядке
func (m *MemoryBackend) Walk(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.data))
	for name := range m.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Read возвращает текст записи
func (m *MemoryBackend) Read(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	text, ok := m.data[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return text, nil
}

// Write сохраняет запись
func (m *MemoryBackend) Write(ctx context.Context, name, text string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[name] = text
	return nil
}

// Delete удаляет запись
func (m *MemoryBackend) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, name)
	return nil
}

// Close ничего не делает
func (m *MemoryBackend) Close() error {
	return nil
}

// Snapshot возвращает копию всех записей (для тестов и отладки)
func (m *MemoryBackend) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]string, len(m.data))
	for name, text := range m.data {
		result[name] = text
	}
	return result
}

// Count возвращает количество записей
func (m *MemoryBackend) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
