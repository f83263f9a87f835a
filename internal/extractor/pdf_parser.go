package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
	"github.com/ledongthuc/pdf"

	"pdfchat/internal/models"
)

// Metadata keys set on every page document.
const (
	MetaPage   = "pdf_page"
	MetaTables = "pdf_tables"
)

// pdfParser turns a PDF into one schema.Document per page. Page tables are
// carried in metadata under MetaTables.
type pdfParser struct{}

var _ parser.Parser = (*pdfParser)(nil)

func (p *pdfParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	options := parser.GetCommonOptions(&parser.Options{}, opts...)

	readerAt, size, err := asReaderAt(reader)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	doc, err := pdf.NewReader(readerAt, size)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}

	var pages []*schema.Document
	for i := 1; i <= doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		layout, err := readPage(page)
		if err != nil {
			return nil, &ExtractionError{Err: err}
		}
		meta := make(map[string]any, len(options.ExtraMeta)+2)
		for k, v := range options.ExtraMeta {
			meta[k] = v
		}
		meta[MetaPage] = i
		meta[MetaTables] = layout.tables
		pages = append(pages, &schema.Document{
			ID:       fmt.Sprintf("%s#%d", options.URI, i),
			Content:  layout.text,
			MetaData: meta,
		})
	}
	return pages, nil
}

// readPage lays out the positioned glyphs of a page. Pages whose content
// stream yields no glyphs fall back to the library's plain text.
func readPage(page pdf.Page) (layout pageLayout, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	layout = layoutPage(page.Content().Text)
	if strings.TrimSpace(layout.text) == "" {
		text, err := page.GetPlainText(nil)
		if err != nil {
			return pageLayout{}, err
		}
		layout.text = text
	}
	return layout, nil
}

func asReaderAt(r io.Reader) (io.ReaderAt, int64, error) {
	if s, ok := r.(interface {
		io.ReaderAt
		io.Seeker
	}); ok {
		size, err := s.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, err
		}
		if _, err := s.Seek(0, io.SeekStart); err != nil {
			return nil, 0, err
		}
		return s, size, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

func tablesFromMeta(doc *schema.Document) []models.Table {
	if doc == nil || doc.MetaData == nil {
		return nil
	}
	tables, _ := doc.MetaData[MetaTables].([]models.Table)
	return tables
}
