package docqa

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"pdfchat/internal/models"
	"pdfchat/internal/service/answer"
	"pdfchat/internal/session"
)

var (
	ErrNoSessionContent = errors.New("no pdf uploaded for session")
	ErrMissingQuestion  = errors.New("question is required")
)

// Extractor turns an upload batch into session content.
type Extractor interface {
	Extract(ctx context.Context, docs []models.UploadedDocument) (*models.ExtractedContent, error)
}

// Runner executes fn on behalf of key. The worker dispatcher satisfies it.
type Runner interface {
	Do(ctx context.Context, key string, fn func(context.Context) error) error
}

// inlineRunner runs jobs on the calling goroutine.
type inlineRunner struct{}

func (inlineRunner) Do(ctx context.Context, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}

type Options struct {
	ExtractTimeout  time.Duration
	GenerateTimeout time.Duration
	// Validate runs before extraction is scheduled.
	Validate func([]models.UploadedDocument) error
}

// AskResult is the answer plus the tables and images of the session.
type AskResult struct {
	Answer string         `json:"answer"`
	Tables []models.Table `json:"tables"`
	Images []string       `json:"images"`
}

// Service composes extraction, session storage and answer generation.
type Service struct {
	extractor Extractor
	store     session.Store
	generator answer.Generator
	runner    Runner
	opts      Options
}

func NewService(extractor Extractor, store session.Store, generator answer.Generator, runner Runner, opts Options) *Service {
	if runner == nil {
		runner = inlineRunner{}
	}
	return &Service{
		extractor: extractor,
		store:     store,
		generator: generator,
		runner:    runner,
		opts:      opts,
	}
}

// Upload extracts docs and replaces the session content. On any failure
// the previous content is left as it was.
func (s *Service) Upload(ctx context.Context, sessionID string, docs []models.UploadedDocument) (*models.ExtractedContent, error) {
	if s.opts.Validate != nil {
		if err := s.opts.Validate(docs); err != nil {
			return nil, err
		}
	}
	ctx = session.WithID(ctx, sessionID)

	var content *models.ExtractedContent
	err := s.run(ctx, sessionID, s.opts.ExtractTimeout, func(ctx context.Context) error {
		extracted, err := s.extractor.Extract(ctx, docs)
		if err != nil {
			return err
		}
		content = extracted
		return nil
	})
	if err != nil {
		log.Printf("extract upload for session %s: %v", shortID(sessionID), err)
		return nil, err
	}
	if err := s.store.Put(ctx, sessionID, *content); err != nil {
		return nil, fmt.Errorf("store session content: %w", err)
	}
	return content, nil
}

// Ask answers question against the session content.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (*AskResult, error) {
	state, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoSessionContent
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if state.Content.Empty() {
		return nil, ErrNoSessionContent
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrMissingQuestion
	}

	var reply string
	err = s.run(ctx, sessionID, s.opts.GenerateTimeout, func(ctx context.Context) error {
		out, err := s.generator.Answer(ctx, question, state.Content.Text)
		if err != nil {
			return err
		}
		reply = out
		return nil
	})
	if err != nil {
		log.Printf("generate answer for session %s: %v", shortID(sessionID), err)
		return nil, err
	}

	result := &AskResult{
		Answer: reply,
		Tables: state.Content.Tables,
		Images: state.Content.Images,
	}
	if result.Tables == nil {
		result.Tables = []models.Table{}
	}
	if result.Images == nil {
		result.Images = []string{}
	}
	return result, nil
}

// State returns what is stored for the session.
func (s *Service) State(ctx context.Context, sessionID string) (*models.SessionState, error) {
	state, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoSessionContent
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	return state, nil
}

// Reset forgets the session content.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

func (s *Service) run(ctx context.Context, key string, timeout time.Duration, fn func(context.Context) error) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.runner.Do(ctx, key, fn)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
