package trigger

import (
	"context"
	"fmt"
	"io"

	"github.com/annel0/trigger-store/internal/storage"
)

// Export пишет zstd-архив папки в w после применения очереди сохранения
func (s *Store) Export(ctx context.Context, w io.Writer) (int, error) {
	if err := s.Flush(ctx); err != nil {
		return 0, err
	}

	s.batchMu.RLock()
	defer s.batchMu.RUnlock()

	n, err := storage.ExportArchive(ctx, s.backend, s.folder, w)
	if err != nil {
		s.logger.Error("❌ op=export err=%v", err)
		return n, err
	}
	s.logger.Info("📦 %s: экспортировано %d файлов", s.folder, n)
	return n, nil
}

// Import записывает файлы архива в папку и перезагружает хранилище.
// Файлы, которых нет в архиве, остаются на месте.
func (s *Store) Import(ctx context.Context, r io.Reader) (*ReloadReport, error) {
	if err := s.Flush(ctx); err != nil {
		return nil, err
	}

	s.batchMu.Lock()
	defer s.batchMu.Unlock()

	header, n, err := storage.ImportArchive(ctx, r, s.backend)
	if err != nil {
		s.logger.Error("❌ op=import imported=%d err=%v", n, err)
		return nil, fmt.Errorf("import into %s: %w", s.folder, err)
	}
	s.logger.Info("📦 %s: импортировано %d файлов из архива папки %s", s.folder, n, header.Folder)
	return s.reload(ctx)
}
