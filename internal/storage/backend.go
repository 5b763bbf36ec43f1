package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound запись с таким именем отсутствует в хранилище
var ErrNotFound = errors.New("storage: entry not found")

// Entry запись верхнего уровня папки хранилища
type Entry struct {
	Name  string
	IsDir bool
}

// Backend плоское пространство имён "файл на триггер".
// Имена вложенных записей разделяются '/'.
//
// Использование:
//
//	backend, _ := storage.NewDirBackend("data/LocationTriggers")
//	entries, _ := backend.List(ctx)
//	text, _ := backend.Read(ctx, "0. world@10,64,10")
type Backend interface {
	// List возвращает записи верхнего уровня (вложенные папки с IsDir=true).
	List(ctx context.Context) ([]Entry, error)

	// Walk возвращает имена всех файлов, включая вложенные ("a/b/c").
	Walk(ctx context.Context) ([]string, error)

	// Read читает текст записи. Возвращает ErrNotFound если записи нет.
	Read(ctx context.Context, name string) (string, error)

	// Write создаёт или перезаписывает запись.
	Write(ctx context.Context, name, text string) error

	// Delete удаляет запись. Отсутствие записи ошибкой не считается.
	Delete(ctx context.Context, name string) error

	// Close освобождает ресурсы хранилища.
	Close() error
}

// validateName проверяет, что имя не выходит за пределы папки
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("пустое имя записи")
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("абсолютное имя записи %q", name)
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return fmt.Errorf("недопустимое имя записи %q", name)
		}
	}
	return nil
}

// topLevel сворачивает полный список имён в записи верхнего уровня
func topLevel(names []string) []Entry {
	seen := make(map[string]bool, len(names))
	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		head, _, nested := strings.Cut(name, "/")
		if _, ok := seen[head]; ok {
			continue
		}
		seen[head] = nested
		entries = append(entries, Entry{Name: head, IsDir: nested})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}
