package models

import "time"

type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindImage FileKind = "image"
)

// StoredFile records a file written to disk during extraction.
type StoredFile struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Kind       FileKind  `json:"kind"`
	FileName   string    `json:"file_name"`
	StoredPath string    `json:"stored_path"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}
