package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/debemdeboas/wikidraft/internal/config"
)

func TestOpen(t *testing.T) {
	testCases := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{"Filesystem", config.BackendFS, false},
		{"SQLite", config.BackendSQLite, false},
		{"Unknown", "ftp", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			storage := config.StorageConfig{
				Backend:     tc.backend,
				PagesDir:    filepath.Join(dir, "wiki"),
				SQLitePath:  filepath.Join(dir, "wiki.db"),
				Compression: "zstd",
			}

			repo, closeRepo, err := Open(context.Background(), storage)
			if tc.wantErr {
				if err == nil {
					t.Error("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf(errUnexpected, err)
			}
			defer closeRepo()

			exercise(t, repo)
		})
	}
}

func TestOpenRejectsUnknownCompression(t *testing.T) {
	storage := config.StorageConfig{
		Backend:     config.BackendSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "wiki.db"),
		Compression: "lz4",
	}
	if _, _, err := Open(context.Background(), storage); err == nil {
		t.Error("Expected error for unknown compression")
	}
}
