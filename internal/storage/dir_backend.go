package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DirBackend хранит каждую запись отдельным файлом в директории
type DirBackend struct {
	basePath string
}

// NewDirBackend создаёт файловый backend, создавая директорию если её нет
func NewDirBackend(basePath string) (*DirBackend, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", basePath, err)
	}
	return &DirBackend{basePath: basePath}, nil
}

// Path возвращает путь директории
func (d *DirBackend) Path() string {
	return d.basePath
}

// List возвращает содержимое директории верхнего уровня
func (d *DirBackend) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(d.basePath)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения директории %s: %w", d.basePath, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		entries = append(entries, Entry{Name: de.Name(), IsDir: de.IsDir()})
	}
	return entries, nil
}

// Walk обходит директорию рекурсивно
func (d *DirBackend) Walk(ctx context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(d.basePath, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if de.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.basePath, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка обхода директории %s: %w", d.basePath, err)
	}
	sort.Strings(names)
	return names, nil
}

// Read читает файл записи
func (d *DirBackend) Read(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(d.filename(name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения файла %s: %w", name, err)
	}
	return string(data), nil
}

// Write записывает файл, создавая промежуточные директории
func (d *DirBackend) Write(ctx context.Context, name, text string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	filename := d.filename(name)
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	if err := os.WriteFile(filename, []byte(text), 0644); err != nil {
		return fmt.Errorf("ошибка записи файла %s: %w", filename, err)
	}
	return nil
}

// Delete удаляет файл записи
func (d *DirBackend) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := os.Remove(d.filename(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %w", name, err)
	}
	return nil
}

// Close ничего не делает: файлы не держатся открытыми
func (d *DirBackend) Close() error {
	return nil
}

func (d *DirBackend) filename(name string) string {
	return filepath.Join(d.basePath, filepath.FromSlash(name))
}
