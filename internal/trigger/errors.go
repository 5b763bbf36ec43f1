package trigger

import (
	"errors"
	"fmt"
	"time"

	"github.com/annel0/trigger-store/internal/world"
)

var (
	// ErrStoreClosed хранилище закрыто, фоновое сохранение больше не принимается
	ErrStoreClosed = errors.New("trigger store closed")

	// ErrLocationOccupied на координате уже есть триггер
	ErrLocationOccupied = errors.New("another trigger is set at this location")

	// ErrNoPendingLocationSet у актёра нет ожидающей установки триггера
	ErrNoPendingLocationSet = errors.New("no pending location set")
)

// DecodeError имя файла не соответствует формату "<index>. <world>@<x>,<y>,<z>"
type DecodeError struct {
	Name   string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %q: %s: %v", e.Name, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %q: %s", e.Name, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError координату нельзя записать в имя файла слота
type EncodeError struct {
	Location world.Location
	Reason   string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %q: %s", e.Location.World, e.Reason)
}

// IOError ошибка чтения, записи или удаления записи хранилища
type IOError struct {
	Op   string // read | write | delete
	Name string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Name, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// LedgerInconsistency триггер есть в памяти, но у координаты нет слота
type LedgerInconsistency struct {
	Op       string
	Location world.Location
}

func (e *LedgerInconsistency) Error() string {
	return fmt.Sprintf("location %s had no index (op=%s)", e.Location, e.Op)
}

// ConfigurationError в папке триггеров найдена вложенная директория
type ConfigurationError struct {
	Folder string
	Entry  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s/%s: directory is not allowed in trigger folder", e.Folder, e.Entry)
}

// Failure одна неудача внутри пакетной операции
type Failure struct {
	Op       string // decode | read | compile | write | slot
	Name     string // имя файла, если известно
	Location *world.Location
	Slot     int // -1 если слот неизвестен
	Err      error
}

func (f Failure) String() string {
	loc := "-"
	if f.Location != nil {
		loc = f.Location.String()
	}
	return fmt.Sprintf("op=%s file=%q loc=%s slot=%d err=%v", f.Op, f.Name, loc, f.Slot, f.Err)
}

// ReloadReport итог полной перезагрузки
type ReloadReport struct {
	Scanned    int
	Loaded     int
	LedgerSize int
	Failures   []Failure
	Duration   time.Duration
}

// SaveReport итог SaveAll
type SaveReport struct {
	Attempted int
	Saved     int
	Skipped   int // без слота в реестре
	Evicted   int // не удалось записать, удалены из памяти
	Failures  []Failure
	Duration  time.Duration
}
