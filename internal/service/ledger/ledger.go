package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pdfchat/internal/models"
)

// Service records the files written during extraction.
type Service struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// New builds a ledger. A zero ttl keeps files until removed by hand.
func New(db *sql.DB, ttl time.Duration) *Service {
	return &Service{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// RecordFile inserts a ledger row for f.
func (s *Service) RecordFile(ctx context.Context, f models.StoredFile) error {
	if f.StoredPath == "" {
		return errors.New("stored path required")
	}
	now := s.now()
	var expires sql.NullTime
	if s.ttl > 0 {
		expires = sql.NullTime{Time: now.Add(s.ttl), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stored_files (session_id, kind, file_name, stored_path, size, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.SessionID, string(f.Kind), f.FileName, f.StoredPath, f.Size, now, expires,
	)
	if err != nil {
		return fmt.Errorf("insert stored file: %w", err)
	}
	return nil
}

// ListBySession returns the files recorded for a session, oldest first.
func (s *Service) ListBySession(ctx context.Context, sessionID string) ([]models.StoredFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, kind, file_name, stored_path, size, created_at, expires_at
		 FROM stored_files WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list stored files: %w", err)
	}
	defer rows.Close()

	var files []models.StoredFile
	for rows.Next() {
		var (
			f       models.StoredFile
			kind    string
			expires sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.SessionID, &kind, &f.FileName, &f.StoredPath, &f.Size, &f.CreatedAt, &expires); err != nil {
			return nil, fmt.Errorf("scan stored file: %w", err)
		}
		f.Kind = models.FileKind(kind)
		if expires.Valid {
			f.ExpiresAt = expires.Time
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
