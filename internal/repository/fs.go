package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/util"
)

const pageSuffix = ".txt"

// FSPageRepository keeps one file per page, named like the draft files.
type FSPageRepository struct { // implements PageRepository
	pagesPath string
}

func NewFSPageRepository(pagesPath string) (*FSPageRepository, error) {
	if err := os.MkdirAll(pagesPath, 0o755); err != nil {
		return nil, domain.NewIOError("mkdir", pagesPath, err)
	}
	return &FSPageRepository{pagesPath: pagesPath}, nil
}

func (r *FSPageRepository) path(key model.PageKey) string {
	return filepath.Join(r.pagesPath, util.EncodeName(string(key))+pageSuffix)
}

func (r *FSPageRepository) GetSource(ctx context.Context, key model.PageKey) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	source, err := os.ReadFile(r.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("page %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.NewIOError("read page", string(key), err)
	}
	return source, nil
}

func (r *FSPageRepository) GetModifiedTime(ctx context.Context, key model.PageKey) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	info, err := os.Stat(r.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, fmt.Errorf("page %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, domain.NewIOError("stat page", string(key), err)
	}
	return info.ModTime(), nil
}

// Write replaces the page atomically through a temporary file in the same directory.
func (r *FSPageRepository) Write(ctx context.Context, key model.PageKey, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := r.path(key)
	tmp, err := os.CreateTemp(r.pagesPath, ".page-*")
	if err != nil {
		return domain.NewIOError("write page", string(key), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return domain.NewIOError("write page", string(key), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return domain.NewIOError("sync page", string(key), err)
	}
	if err := tmp.Close(); err != nil {
		return domain.NewIOError("close page", string(key), err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return domain.NewIOError("chmod page", string(key), err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return domain.NewIOError("rename page", string(key), err)
	}

	repoLogger.Debug().Str("key", string(key)).Int("bytes", len(content)).Msg("Page written")
	return nil
}

func (r *FSPageRepository) List(ctx context.Context) ([]model.Page, error) {
	entries, err := os.ReadDir(r.pagesPath)
	if err != nil {
		return nil, domain.NewIOError("list pages", r.pagesPath, err)
	}

	var pages []model.Page
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), pageSuffix) {
			continue
		}

		name, err := util.DecodeName(strings.TrimSuffix(entry.Name(), pageSuffix))
		if err != nil {
			repoLogger.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping page with undecodable name")
			continue
		}

		source, err := os.ReadFile(filepath.Join(r.pagesPath, entry.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, domain.NewIOError("read page", name, err)
		}

		fileInfo, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, domain.NewIOError("stat page", name, err)
		}

		pages = append(pages, newPage(model.PageKey(name), source, fileInfo.ModTime()))
	}

	sortPages(pages)
	return pages, nil
}
