package extractor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdfchat/internal/models"
)

// ImagesURLPrefix is the public path extracted images are served under.
const ImagesURLPrefix = "/static/images/"

var disablePdfcpuConfig sync.Once

// extractImages saves every embedded raster image of the stored PDF under
// <staticDir>/images and returns their public paths.
func (e *Extractor) extractImages(ctx context.Context, storedPath string) ([]string, error) {
	disablePdfcpuConfig.Do(api.DisableConfigDir)

	f, err := os.Open(storedPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	dir := filepath.Join(e.opts.StaticDir, "images")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	var urls []string
	digest := func(img model.Image, _ bool, _ int) error {
		ext := strings.TrimPrefix(strings.ToLower(img.FileType), ".")
		if ext == "" {
			ext = "png"
		}
		name := uuid.NewString() + "." + ext
		dst := filepath.Join(dir, name)
		out, err := os.Create(dst)
		if err != nil {
			return fmt.Errorf("create image: %w", err)
		}
		n, err := io.Copy(out, img)
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(dst)
			return fmt.Errorf("write image: %w", err)
		}
		e.record(ctx, models.StoredFile{
			Kind:       models.FileKindImage,
			FileName:   name,
			StoredPath: dst,
			Size:       n,
		})
		urls = append(urls, path.Join(ImagesURLPrefix, name))
		return nil
	}
	if err := api.ExtractImages(f, nil, digest, nil); err != nil {
		return urls, fmt.Errorf("extract images: %w", err)
	}
	return urls, nil
}
