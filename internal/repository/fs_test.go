package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/debemdeboas/wikidraft/internal/util"
)

func TestFSPageRepository(t *testing.T) {
	repo, err := NewFSPageRepository(filepath.Join(t.TempDir(), "wiki"))
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}

	exercise(t, repo)
}

func TestFSPageRepositoryLayout(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFSPageRepository(dir)
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}

	if err := repo.Write(context.Background(), "FrontPage", []byte("x")); err != nil {
		t.Fatalf(errUnexpected, err)
	}

	if _, err := os.Stat(filepath.Join(dir, util.EncodeName("FrontPage")+".txt")); err != nil {
		t.Errorf("Expected hex-encoded page file: %v", err)
	}

	// No temporary files are left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected exactly one file, got %d", len(entries))
	}
}

func TestFSPageRepositorySkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewFSPageRepository(dir)
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}

	os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(dir, "zz.txt"), []byte("x"), 0o644)

	pages, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if len(pages) != 0 {
		t.Errorf("Expected no pages, got %d", len(pages))
	}
}

func TestFSPageRepositoryCanceledContext(t *testing.T) {
	repo, err := NewFSPageRepository(t.TempDir())
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := repo.Write(ctx, "Page", []byte("x")); err == nil {
		t.Error("Expected error for canceled context")
	}
}
