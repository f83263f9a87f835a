package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"pdfchat/internal/config"
	"pdfchat/internal/extractor"
	"pdfchat/internal/models"
)

func newExtractCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var withImages bool

	cmd := &cobra.Command{
		Use:   "extract FILE.pdf [FILE.pdf...]",
		Short: "Extract text, tables and images from local PDFs and print them as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			uploadDir, err := os.MkdirTemp("", "pdfchat-extract-")
			if err != nil {
				return fmt.Errorf("create work dir: %w", err)
			}
			defer os.RemoveAll(uploadDir)

			docs := make([]models.UploadedDocument, 0, len(args))
			for _, path := range args {
				content, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read %s: %w", path, err)
				}
				docs = append(docs, models.UploadedDocument{FileName: filepath.Base(path), Content: content})
			}

			ex, err := extractor.New(cmd.Context(), extractor.Options{
				UploadDir:     uploadDir,
				StaticDir:     cfg.BasicConfig.StaticDir,
				ExtractImages: withImages || cfg.BasicConfig.ExtractImages,
			})
			if err != nil {
				return err
			}
			content, err := ex.Extract(cmd.Context(), docs)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(content)
		},
	}
	cmd.Flags().BoolVar(&withImages, "images", false, "also extract embedded images into the static dir")
	return cmd
}
