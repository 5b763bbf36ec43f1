package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zstd"
)

// ArchiveVersion версия формата архива папки
const ArchiveVersion = 1

// ArchiveHeader первая строка архива
type ArchiveHeader struct {
	Version int       `json:"version"`
	Folder  string    `json:"folder"`
	Created time.Time `json:"created"`
	Count   int       `json:"count"`
}

// archiveEntry одна запись архива
type archiveEntry struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// ExportArchive пишет все записи backend'а в w: zstd поверх JSON-строк,
// первая строка заголовок. Возвращает количество записей.
func ExportArchive(ctx context.Context, b Backend, folder string, w io.Writer) (int, error) {
	names, err := b.Walk(ctx)
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", folder, err)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	je := json.NewEncoder(bw)

	header := ArchiveHeader{Version: ArchiveVersion, Folder: folder, Created: time.Now().UTC(), Count: len(names)}
	if err := je.Encode(header); err != nil {
		enc.Close()
		return 0, err
	}

	written := 0
	for _, name := range names {
		text, err := b.Read(ctx, name)
		if errors.Is(err, ErrNotFound) {
			// удалена после Walk
			continue
		}
		if err != nil {
			enc.Close()
			return written, fmt.Errorf("read %s: %w", name, err)
		}
		if err := je.Encode(archiveEntry{Name: name, Text: text}); err != nil {
			enc.Close()
			return written, err
		}
		written++
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		return written, err
	}
	return written, enc.Close()
}

// ImportArchive читает архив из r и записывает все записи в backend.
// Существующие записи с теми же именами перезаписываются, остальные не трогаются.
func ImportArchive(ctx context.Context, r io.Reader, b Backend) (*ArchiveHeader, int, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, 0, err
	}
	defer dec.Close()

	jd := json.NewDecoder(bufio.NewReaderSize(dec, 64*1024))

	var header ArchiveHeader
	if err := jd.Decode(&header); err != nil {
		return nil, 0, fmt.Errorf("archive header: %w", err)
	}
	if header.Version != ArchiveVersion {
		return &header, 0, fmt.Errorf("неподдерживаемая версия архива %d", header.Version)
	}

	imported := 0
	for {
		var e archiveEntry
		err := jd.Decode(&e)
		if err == io.EOF {
			break
		}
		if err != nil {
			return &header, imported, fmt.Errorf("archive entry %d: %w", imported, err)
		}
		if err := validateName(e.Name); err != nil {
			return &header, imported, err
		}
		if err := b.Write(ctx, e.Name, e.Text); err != nil {
			return &header, imported, fmt.Errorf("write %s: %w", e.Name, err)
		}
		imported++
	}
	return &header, imported, nil
}
