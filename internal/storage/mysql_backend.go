package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLBackend хранит записи папки в таблице trigger_files MariaDB/MySQL.
// Ключ строки: (folder, name), текст скрипта лежит в колонке text как есть.
type MySQLBackend struct {
	db     *sql.DB
	folder string
	owned  bool
}

// OpenMySQL подключается к базе и создаёт таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения (user:pass@tcp(host:port)/dbname)
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	query := `
		CREATE TABLE IF NOT EXISTS trigger_files (
			folder     VARCHAR(255) NOT NULL,
			name       VARCHAR(255) NOT NULL,
			text       MEDIUMTEXT   NOT NULL,
			updated_at TIMESTAMP    DEFAULT CURRENT_TIMESTAMP
			           ON UPDATE    CURRENT_TIMESTAMP,
			PRIMARY KEY (folder, name)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin
	`
	if _, err := db.ExecContext(ctx, query); err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания таблицы trigger_files: %w", err)
	}
	return db, nil
}

// NewMySQLBackend подключается к базе и создаёт backend одной папки
func NewMySQLBackend(ctx context.Context, dsn, folder string) (*MySQLBackend, error) {
	db, err := OpenMySQL(ctx, dsn)
	if err != nil {
		return nil, err
	}
	b := NewMySQLBackendFromDB(db, folder)
	b.owned = true
	return b, nil
}

// NewMySQLBackendFromDB создаёт backend поверх общего пула соединений
func NewMySQLBackendFromDB(db *sql.DB, folder string) *MySQLBackend {
	return &MySQLBackend{db: db, folder: folder}
}

// List возвращает записи верхнего уровня
func (m *MySQLBackend) List(ctx context.Context) ([]Entry, error) {
	names, err := m.Walk(ctx)
	if err != nil {
		return nil, err
	}
	return topLevel(names), nil
}

// Walk возвращает имена всех строк папки
func (m *MySQLBackend) Walk(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT name FROM trigger_files WHERE folder = ? ORDER BY name`, m.folder)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения папки %s: %w", m.folder, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ошибка чтения папки %s: %w", m.folder, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Read читает текст записи
func (m *MySQLBackend) Read(ctx context.Context, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	var text string
	err := m.db.QueryRowContext(ctx,
		`SELECT text FROM trigger_files WHERE folder = ? AND name = ?`, m.folder, name).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("ошибка чтения %s: %w", name, err)
	}
	return text, nil
}

// Write создаёт или перезаписывает запись.
// Использует INSERT ... ON DUPLICATE KEY UPDATE.
func (m *MySQLBackend) Write(ctx context.Context, name, text string) error {
	if err := validateName(name); err != nil {
		return err
	}

	query := `
		INSERT INTO trigger_files (folder, name, text)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			text = VALUES(text),
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := m.db.ExecContext(ctx, query, m.folder, name, text); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", name, err)
	}
	return nil
}

// Delete удаляет запись; отсутствующая запись не ошибка
func (m *MySQLBackend) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx,
		`DELETE FROM trigger_files WHERE folder = ? AND name = ?`, m.folder, name); err != nil {
		return fmt.Errorf("ошибка удаления %s: %w", name, err)
	}
	return nil
}

// Close закрывает пул, если backend им владеет
func (m *MySQLBackend) Close() error {
	if !m.owned || m.db == nil {
		return nil
	}
	return m.db.Close()
}
