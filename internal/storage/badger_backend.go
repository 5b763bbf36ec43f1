package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v3"
)

// BadgerBackend хранит записи папки как ключи "<folder>/<name>" в BadgerDB
type BadgerBackend struct {
	db     *badger.DB
	prefix string
	owned  bool // закрывать ли db в Close
}

// OpenBadgerDB открывает BadgerDB в dataPath/triggers
func OpenBadgerDB(dataPath string) (*badger.DB, error) {
	dbPath := filepath.Join(dataPath, "triggers")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return db, nil
}

// NewBadgerBackend открывает собственную BadgerDB для одной папки
func NewBadgerBackend(dataPath, folder string) (*BadgerBackend, error) {
	db, err := OpenBadgerDB(dataPath)
	if err != nil {
		return nil, err
	}
	b := NewBadgerBackendFromDB(db, folder)
	b.owned = true
	return b, nil
}

// NewBadgerBackendFromDB создаёт backend поверх общей BadgerDB.
// Close такого backend не закрывает db.
func NewBadgerBackendFromDB(db *badger.DB, folder string) *BadgerBackend {
	return &BadgerBackend{
		db:     db,
		prefix: folder + "/",
	}
}

// List возвращает записи верхнего уровня папки
func (b *BadgerBackend) List(ctx context.Context) ([]Entry, error) {
	names, err := b.Walk(ctx)
	if err != nil {
		return nil, err
	}
	return topLevel(names), nil
}

// Walk перечисляет все ключи папки
func (b *BadgerBackend) Walk(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var names []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(b.prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			names = append(names, strings.TrimPrefix(key, b.prefix))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения ключей из BadgerDB: %w", err)
	}

	sort.Strings(names)
	return names, nil
}

// Read читает значение ключа
func (b *BadgerBackend) Read(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(b.prefix + name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return string(data), nil
}

// Write сохраняет значение ключа
func (b *BadgerBackend) Write(ctx context.Context, name, text string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(b.prefix+name), []byte(text))
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Delete удаляет ключ
func (b *BadgerBackend) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(b.prefix + name))
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

// Close закрывает BadgerDB, если backend ею владеет
func (b *BadgerBackend) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}
