package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"pdfchat/internal/models"
)

// ErrNotFound is returned when nothing has been stored for a session id.
var ErrNotFound = errors.New("session not found")

// Store keeps the extracted content of the latest upload per session.
type Store interface {
	Get(ctx context.Context, id string) (*models.SessionState, error)
	// Put replaces whatever was stored for id.
	Put(ctx context.Context, id string, content models.ExtractedContent) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store. State is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]models.SessionState)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.SessionState, error) {
	s.mu.RLock()
	state, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (s *MemoryStore) Put(_ context.Context, id string, content models.ExtractedContent) error {
	if id == "" {
		return errors.New("session id required")
	}
	s.mu.Lock()
	s.sessions[id] = models.SessionState{ID: id, Content: content, UpdatedAt: time.Now().UTC()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}
