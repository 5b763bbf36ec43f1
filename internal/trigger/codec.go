package trigger

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/annel0/trigger-store/internal/world"
)

// EncodeFilename возвращает имя файла слота: "<index>. <world>@<x>,<y>,<z>".
// Текст скрипта хранится внутри файла как есть, без экранирования.
func EncodeFilename(index int, loc world.Location) string {
	return strconv.Itoa(index) + ". " + loc.World + "@" +
		strconv.Itoa(loc.X) + "," + strconv.Itoa(loc.Y) + "," + strconv.Itoa(loc.Z)
}

// MaxSlotIndex наибольший номер слота в имени файла. Реестр занимает память
// до наибольшего номера, поэтому файл с номером выше считается битым.
const MaxSlotIndex = 1 << 20

// DecodeIndex возвращает числовой префикс имени (всё до первой '.')
func DecodeIndex(name string) (int, error) {
	prefix, _, found := strings.Cut(name, ".")
	if !found {
		return 0, &DecodeError{Name: name, Reason: "missing '.' after index"}
	}
	index, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, &DecodeError{Name: name, Reason: "index is not an integer", Err: err}
	}
	if index < 0 {
		return 0, &DecodeError{Name: name, Reason: "negative index"}
	}
	if index > MaxSlotIndex {
		return 0, &DecodeError{Name: name, Reason: fmt.Sprintf("index exceeds %d", MaxSlotIndex)}
	}
	return index, nil
}

// DecodeFilename разбирает имя файла обратно в слот и координату
func DecodeFilename(name string) (int, world.Location, error) {
	index, err := DecodeIndex(name)
	if err != nil {
		return 0, world.Location{}, err
	}

	_, rest, _ := strings.Cut(name, ".")
	rest = strings.TrimSpace(rest)

	worldName, coords, found := strings.Cut(rest, "@")
	if !found {
		return 0, world.Location{}, &DecodeError{Name: name, Reason: "missing '@'"}
	}
	if worldName == "" {
		return 0, world.Location{}, &DecodeError{Name: name, Reason: "empty world name"}
	}

	parts := strings.Split(coords, ",")
	if len(parts) != 3 {
		return 0, world.Location{}, &DecodeError{Name: name, Reason: fmt.Sprintf("expected 3 coordinates, got %d", len(parts))}
	}

	var xyz [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, world.Location{}, &DecodeError{Name: name, Reason: "coordinate is not an integer", Err: err}
		}
		xyz[i] = v
	}

	return index, world.NewLocation(worldName, xyz[0], xyz[1], xyz[2]), nil
}

// CheckEncodable проверяет, что имя файла координаты прочитается обратно в
// ту же координату и не станет вложенным путём хранилища.
func CheckEncodable(loc world.Location) error {
	w := loc.World
	switch {
	case w == "":
		return &EncodeError{Location: loc, Reason: "empty world name"}
	case strings.TrimSpace(w) != w:
		return &EncodeError{Location: loc, Reason: "world name has surrounding spaces"}
	case strings.ContainsAny(w, "@/\\"):
		return &EncodeError{Location: loc, Reason: "world name contains '@', '/' or '\\'"}
	case strings.IndexFunc(w, unicode.IsControl) >= 0:
		return &EncodeError{Location: loc, Reason: "world name contains control characters"}
	}
	return nil
}
