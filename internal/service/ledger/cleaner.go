package ledger

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"time"
)

const DefaultCleanupInterval = time.Hour

// StartCleaner removes expired files on every tick until ctx ends.
func (s *Service) StartCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupExpired(ctx); err != nil {
				log.Printf("cleanup stored files error: %v", err)
			}
		}
	}
}

// CleanupExpired deletes expired files and their rows, returning how many
// were removed.
func (s *Service) CleanupExpired(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, stored_path FROM stored_files
		WHERE expires_at IS NOT NULL AND expires_at <= ?`, s.now())
	if err != nil {
		return 0, err
	}

	type fileRow struct {
		id   int64
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			rows.Close()
			return 0, err
		}
		files = append(files, fr)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	removed := 0
	for _, f := range files {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Printf("remove stored file %s failed: %v", f.path, err)
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM stored_files WHERE id = ?`, f.id); err != nil {
			log.Printf("delete stored file record %d failed: %v", f.id, err)
			continue
		}
		removed++
	}
	return removed, nil
}
