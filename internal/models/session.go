package models

import "time"

// SessionState is the per-client record kept by the session store.
type SessionState struct {
	ID        string           `json:"id"`
	Content   ExtractedContent `json:"content"`
	UpdatedAt time.Time        `json:"updated_at"`
}
