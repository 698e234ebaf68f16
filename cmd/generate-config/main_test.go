package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/debemdeboas/wikidraft/internal/config"
)

func TestWriteExample(t *testing.T) {
	var buf bytes.Buffer
	if err := writeExample(&buf); err != nil {
		t.Fatalf("writeExample failed: %v", err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, "# wikidraft configuration example") {
		t.Errorf("Missing header, got %q", out[:min(len(out), 40)])
	}
	for _, want := range []string{"draft_dir: draft", "ticket_ttl: 2h", "backend: fs"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected example to contain %q", want)
		}
	}

	// The example must load as a valid configuration.
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		t.Fatalf("Example config does not load: %v", err)
	}
	if cfg.Storage.DraftDir != "draft" {
		t.Errorf("Expected draft dir 'draft', got %q", cfg.Storage.DraftDir)
	}
}
