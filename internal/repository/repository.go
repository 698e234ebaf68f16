// Package repository holds the live page stores drafts are published into.
package repository

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/util"
)

var repoLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	repoLogger = l
}

// PageRepository is the live document store. A missing page yields domain.ErrNotFound.
type PageRepository interface {
	GetSource(ctx context.Context, key model.PageKey) ([]byte, error)
	GetModifiedTime(ctx context.Context, key model.PageKey) (time.Time, error)
	Write(ctx context.Context, key model.PageKey, content []byte) error
	List(ctx context.Context) ([]model.Page, error)
}

// Snapshot reads the content and modification time of a page. A missing page
// is returned with Exists unset rather than as an error.
func Snapshot(ctx context.Context, repo PageRepository, key model.PageKey) (*model.Page, error) {
	page := &model.Page{Key: key}

	source, err := repo.GetSource(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return page, nil
	}
	if err != nil {
		return nil, err
	}

	mtime, err := repo.GetModifiedTime(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		// Deleted between the two reads.
		return page, nil
	}
	if err != nil {
		return nil, err
	}

	page.Source = source
	page.ModifiedDate = mtime
	page.Exists = true
	return page, nil
}

func newPage(key model.PageKey, source []byte, mtime time.Time) model.Page {
	page := model.Page{
		Key:          key,
		Source:       source,
		ModifiedDate: mtime,
		Exists:       true,
	}
	if info, err := util.GetFrontMatter(source); err == nil {
		page.Info = info
	}
	return page
}

func sortPages(pages []model.Page) {
	slices.SortStableFunc(pages, func(a, b model.Page) int {
		if c := b.ModifiedDate.Compare(a.ModifiedDate); c != 0 {
			return c
		}
		return strings.Compare(string(a.Key), string(b.Key))
	})
}
