package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"pdfchat/internal/models"
	"pdfchat/internal/pdftest"
	"pdfchat/internal/session"
)

type recordingRecorder struct {
	mu    sync.Mutex
	files []models.StoredFile
}

func (r *recordingRecorder) RecordFile(_ context.Context, f models.StoredFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, f)
	return nil
}

func newTestExtractor(t *testing.T, rec FileRecorder) (*Extractor, string) {
	t.Helper()
	dir := t.TempDir()
	ex, err := New(context.Background(), Options{
		UploadDir: dir,
		StaticDir: t.TempDir(),
		Recorder:  rec,
	})
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	return ex, dir
}

func TestExtractSinglePageText(t *testing.T) {
	rec := &recordingRecorder{}
	ex, dir := newTestExtractor(t, rec)
	pdfBytes := pdftest.Build(pdftest.TextPage("The quick brown fox", "jumps over the lazy dog"))

	ctx := session.WithID(context.Background(), "sess-1")
	content, err := ex.Extract(ctx, []models.UploadedDocument{{FileName: "fox.pdf", Content: pdfBytes}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := "The quick brown fox jumps over the lazy dog"
	if strings.Join(strings.Fields(content.Text), " ") != want {
		t.Fatalf("text = %q", content.Text)
	}
	if len(content.Tables) != 0 || len(content.Images) != 0 {
		t.Fatalf("unexpected tables/images: %+v", content)
	}
	if len(content.Sources) != 1 || content.Sources[0].FileName != "fox.pdf" || content.Sources[0].Pages != 1 {
		t.Fatalf("unexpected sources: %+v", content.Sources)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".pdf") || entries[0].Name() == "fox.pdf" {
		t.Fatalf("expected one randomly named pdf, got %v", entries)
	}
	if len(rec.files) != 1 || rec.files[0].SessionID != "sess-1" || rec.files[0].Kind != models.FileKindPDF {
		t.Fatalf("unexpected recorded files: %+v", rec.files)
	}
}

func TestExtractKeepsWordBoundariesAcrossFonts(t *testing.T) {
	fonts := map[string]pdftest.Font{
		"courier":             pdftest.Courier,
		"times-with-widths":   pdftest.TimesRoman,
		"helvetica-no-widths": pdftest.Helvetica,
	}
	for name, font := range fonts {
		t.Run(name, func(t *testing.T) {
			ex, _ := newTestExtractor(t, nil)
			doc := pdftest.BuildWithFont(font, pdftest.TextPage("Hello World from a PDF", "second line here"))
			content, err := ex.Extract(context.Background(), []models.UploadedDocument{{FileName: "hello.pdf", Content: doc}})
			if err != nil {
				t.Fatalf("extract: %v", err)
			}
			if got := strings.Join(strings.Fields(content.Text), " "); got != "Hello World from a PDF second line here" {
				t.Fatalf("text = %q", content.Text)
			}
		})
	}
}

func TestExtractTablesWithoutFontWidths(t *testing.T) {
	ex, _ := newTestExtractor(t, nil)
	grid := [][]string{
		{"City", "Population"},
		{"Oslo", "709000"},
	}
	doc := pdftest.BuildWithFont(pdftest.Helvetica, pdftest.TablePage(grid))
	content, err := ex.Extract(context.Background(), []models.UploadedDocument{{FileName: "cities.pdf", Content: doc}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(content.Tables) != 1 || !reflect.DeepEqual([][]string(content.Tables[0]), grid) {
		t.Fatalf("tables = %v", content.Tables)
	}
}

func TestExtractJoinsDocumentsAndPagesInOrder(t *testing.T) {
	ex, _ := newTestExtractor(t, nil)
	first := pdftest.Build(pdftest.TextPage("one"), pdftest.TextPage("two"))
	second := pdftest.Build(pdftest.TextPage("three"))

	content, err := ex.Extract(context.Background(), []models.UploadedDocument{
		{FileName: "a.PDF", Content: first},
		{FileName: "b.pdf", Content: second},
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if content.Text != "one two three" {
		t.Fatalf("text = %q", content.Text)
	}
	if len(content.Sources) != 2 || content.Sources[0].Pages != 2 || content.Sources[1].Pages != 1 {
		t.Fatalf("unexpected sources: %+v", content.Sources)
	}
}

func TestExtractTables(t *testing.T) {
	ex, _ := newTestExtractor(t, nil)
	grid := [][]string{
		{"Name", "Qty", "Price"},
		{"Apple", "3", "1.20"},
		{"Pear", "10", "0.75"},
	}
	page := pdftest.TextPage("Inventory report").Append(pdftest.TablePage(grid))

	content, err := ex.Extract(context.Background(), []models.UploadedDocument{{FileName: "inv.pdf", Content: pdftest.Build(page)}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(content.Tables) != 1 {
		t.Fatalf("expected one table, got %d: %+v", len(content.Tables), content.Tables)
	}
	if !reflect.DeepEqual([][]string(content.Tables[0]), grid) {
		t.Fatalf("table = %v, want %v", content.Tables[0], grid)
	}
	if !strings.HasPrefix(content.Text, "Inventory report") || !strings.Contains(content.Text, "Apple") {
		t.Fatalf("page text should include table cells, got %q", content.Text)
	}
	if content.Sources[0].Tables != 1 {
		t.Fatalf("source table count = %d", content.Sources[0].Tables)
	}
}

func TestExtractRejectsNonPDFBeforeWriting(t *testing.T) {
	rec := &recordingRecorder{}
	ex, dir := newTestExtractor(t, rec)
	_, err := ex.Extract(context.Background(), []models.UploadedDocument{
		{FileName: "ok.pdf", Content: pdftest.Build(pdftest.TextPage("fine"))},
		{FileName: "notes.txt", Content: []byte("plain")},
	})
	if !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("expected ErrInvalidFileType, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 || len(rec.files) != 0 {
		t.Fatalf("no document should be processed, found %d files", len(entries))
	}
}

func TestExtractEmptyBatch(t *testing.T) {
	ex, _ := newTestExtractor(t, nil)
	if _, err := ex.Extract(context.Background(), nil); !errors.Is(err, ErrMissingUploadFiles) {
		t.Fatalf("expected ErrMissingUploadFiles, got %v", err)
	}
}

func TestExtractNoContent(t *testing.T) {
	ex, _ := newTestExtractor(t, nil)
	blank := pdftest.Build(pdftest.Page{})
	if _, err := ex.Extract(context.Background(), []models.UploadedDocument{{FileName: "blank.pdf", Content: blank}}); !errors.Is(err, ErrNoContentExtracted) {
		t.Fatalf("expected ErrNoContentExtracted, got %v", err)
	}
}

func TestExtractMalformedPDF(t *testing.T) {
	ex, _ := newTestExtractor(t, nil)
	_, err := ex.Extract(context.Background(), []models.UploadedDocument{{FileName: "broken.pdf", Content: []byte("definitely not a pdf")}})
	var extractErr *ExtractionError
	if !errors.As(err, &extractErr) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if extractErr.FileName != "broken.pdf" || extractErr.Error() == "" {
		t.Fatalf("unexpected extraction error: %+v", extractErr)
	}
}

func TestExtractImagesOptionToleratesImagelessPDF(t *testing.T) {
	ex, err := New(context.Background(), Options{
		UploadDir:     t.TempDir(),
		StaticDir:     t.TempDir(),
		ExtractImages: true,
	})
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	content, err := ex.Extract(context.Background(), []models.UploadedDocument{{FileName: "text.pdf", Content: pdftest.Build(pdftest.TextPage("only words"))}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if content.Text != "only words" || len(content.Images) != 0 {
		t.Fatalf("unexpected content: %+v", content)
	}
}

func TestExtractImagesWritesAndRecordsFiles(t *testing.T) {
	rec := &recordingRecorder{}
	staticDir := t.TempDir()
	ex, err := New(context.Background(), Options{
		UploadDir:     t.TempDir(),
		StaticDir:     staticDir,
		ExtractImages: true,
		Recorder:      rec,
	})
	if err != nil {
		t.Fatalf("new extractor: %v", err)
	}
	page := pdftest.TextPage("chart below")
	page.Image = true

	ctx := session.WithID(context.Background(), "sess-img")
	content, err := ex.Extract(ctx, []models.UploadedDocument{{FileName: "chart.pdf", Content: pdftest.Build(page)}})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(content.Images) != 1 {
		t.Fatalf("expected one image, got %v", content.Images)
	}
	url := content.Images[0]
	if !strings.HasPrefix(url, ImagesURLPrefix) || !strings.HasSuffix(url, ".png") {
		t.Fatalf("unexpected image path %q", url)
	}
	name := strings.TrimPrefix(url, ImagesURLPrefix)
	info, err := os.Stat(filepath.Join(staticDir, "images", name))
	if err != nil || info.Size() == 0 {
		t.Fatalf("image file missing: %v", err)
	}
	if content.Sources[0].Images != 1 {
		t.Fatalf("source image count = %d", content.Sources[0].Images)
	}

	var images []models.StoredFile
	for _, f := range rec.files {
		if f.Kind == models.FileKindImage {
			images = append(images, f)
		}
	}
	if len(images) != 1 {
		t.Fatalf("expected one recorded image, got %+v", rec.files)
	}
	if images[0].SessionID != "sess-img" || images[0].FileName != name || images[0].StoredPath != filepath.Join(staticDir, "images", name) {
		t.Fatalf("unexpected image record: %+v", images[0])
	}
}

func TestIsPDF(t *testing.T) {
	cases := map[string]bool{
		"a.pdf":     true,
		"B.PDF":     true,
		"c.pdf.txt": false,
		"pdf":       false,
		"":          false,
	}
	for name, want := range cases {
		if got := IsPDF(name); got != want {
			t.Errorf("IsPDF(%q) = %v, want %v", name, got, want)
		}
	}
}
