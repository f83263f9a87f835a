package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"pdfchat/internal/models"
	"pdfchat/internal/pdftest"
)

func TestExtractCommandPrintsJSON(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "memo.pdf")
	if err := os.WriteFile(pdfPath, pdftest.Build(pdftest.TextPage("Meeting moved to Friday")), 0o600); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "missing.json"), "extract", pdfPath})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var content models.ExtractedContent
	if err := json.Unmarshal(out.Bytes(), &content); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if content.Text != "Meeting moved to Friday" {
		t.Fatalf("text = %q", content.Text)
	}
	if len(content.Sources) != 1 || content.Sources[0].FileName != "memo.pdf" {
		t.Fatalf("unexpected sources: %+v", content.Sources)
	}
}

func TestExtractCommandRejectsNonPDF(t *testing.T) {
	dir := t.TempDir()
	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("hello"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", filepath.Join(dir, "missing.json"), "extract", txtPath})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error for non-pdf input")
	}
}

func TestServeFailsWithoutLocalModel(t *testing.T) {
	t.Setenv("OLLAMA_MODEL", "")
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(cfgPath, []byte(`{"generator": {"strategy": "local"}, "local": {"model": ""}}`), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath, "serve"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("serve should fail without a local model")
	}
}
