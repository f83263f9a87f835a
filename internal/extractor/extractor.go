package extractor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/google/uuid"

	"pdfchat/internal/models"
	"pdfchat/internal/session"
)

// FileRecorder is told about every file the extractor writes to disk.
type FileRecorder interface {
	RecordFile(ctx context.Context, file models.StoredFile) error
}

type Options struct {
	UploadDir     string
	StaticDir     string
	ExtractImages bool
	Recorder      FileRecorder
}

// Extractor turns uploaded PDFs into ExtractedContent.
type Extractor struct {
	opts   Options
	loader document.Loader
}

func New(ctx context.Context, opts Options) (*Extractor, error) {
	if opts.UploadDir == "" {
		return nil, errors.New("upload dir required")
	}
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".pdf": &pdfParser{},
		},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      extParser,
	})
	if err != nil {
		return nil, fmt.Errorf("init loader: %w", err)
	}
	return &Extractor{opts: opts, loader: loader}, nil
}

// IsPDF reports whether name carries a .pdf extension, ignoring case.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// Validate checks a batch before any document is touched.
func Validate(docs []models.UploadedDocument) error {
	if len(docs) == 0 {
		return ErrMissingUploadFiles
	}
	for _, doc := range docs {
		if !IsPDF(doc.FileName) {
			return ErrInvalidFileType
		}
	}
	return nil
}

// Extract stores each document, then collects page text, tables and
// (optionally) images in upload order.
func (e *Extractor) Extract(ctx context.Context, docs []models.UploadedDocument) (*models.ExtractedContent, error) {
	if err := Validate(docs); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(e.opts.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	content := &models.ExtractedContent{
		Tables: []models.Table{},
		Images: []string{},
	}
	var fragments []string
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		storedPath, err := e.store(ctx, doc)
		if err != nil {
			return nil, err
		}
		pages, err := e.loader.Load(ctx, document.Source{URI: storedPath})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			var extractErr *ExtractionError
			if errors.As(err, &extractErr) {
				return nil, &ExtractionError{FileName: doc.FileName, Err: extractErr.Err}
			}
			return nil, &ExtractionError{FileName: doc.FileName, Err: err}
		}

		source := models.SourceInfo{FileName: doc.FileName, Pages: len(pages)}
		for _, page := range pages {
			if text := strings.TrimSpace(page.Content); text != "" {
				fragments = append(fragments, text)
			}
			tables := tablesFromMeta(page)
			content.Tables = append(content.Tables, tables...)
			source.Tables += len(tables)
		}

		if e.opts.ExtractImages {
			urls, err := e.extractImages(ctx, storedPath)
			if err != nil {
				log.Printf("extract images from %s: %v", doc.FileName, err)
			}
			content.Images = append(content.Images, urls...)
			source.Images = len(urls)
		}
		content.Sources = append(content.Sources, source)
	}

	content.Text = strings.Join(fragments, " ")
	if content.Empty() {
		return nil, ErrNoContentExtracted
	}
	return content, nil
}

// store writes the upload under a random name that keeps the .pdf extension.
func (e *Extractor) store(ctx context.Context, doc models.UploadedDocument) (string, error) {
	name := uuid.NewString() + ".pdf"
	dst := filepath.Join(e.opts.UploadDir, name)
	if err := os.WriteFile(dst, doc.Content, 0o644); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	e.record(ctx, models.StoredFile{
		Kind:       models.FileKindPDF,
		FileName:   doc.FileName,
		StoredPath: dst,
		Size:       int64(len(doc.Content)),
	})
	return dst, nil
}

func (e *Extractor) record(ctx context.Context, f models.StoredFile) {
	if e.opts.Recorder == nil {
		return
	}
	f.SessionID = session.IDFromContext(ctx)
	if err := e.opts.Recorder.RecordFile(ctx, f); err != nil {
		log.Printf("record file %s: %v", f.StoredPath, err)
	}
}
