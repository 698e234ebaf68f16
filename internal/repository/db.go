package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/debemdeboas/wikidraft/internal/db"
	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/util"
	"github.com/debemdeboas/wikidraft/internal/util/compression"
)

type DBPageRepository struct { // implements PageRepository
	db         db.DB
	compressor compression.Compressor

	now func() time.Time
}

func NewDBPageRepository(db db.DB, compressor compression.Compressor) *DBPageRepository {
	if compressor == nil {
		compressor = compression.ZstdCompressor{}
	}
	return &DBPageRepository{
		db:         db,
		compressor: compressor,
		now:        time.Now,
	}
}

func (r *DBPageRepository) GetSource(ctx context.Context, key model.PageKey) ([]byte, error) {
	var compressed []byte
	err := r.db.QueryRowContext(ctx, `SELECT content FROM pages WHERE key = ?`, string(key)).Scan(&compressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("page %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, domain.NewIOError("query page", string(key), err)
	}

	content, err := r.compressor.Decompress(compressed)
	if err != nil {
		return nil, domain.NewIOError("decompress page", string(key), err)
	}
	return content, nil
}

func (r *DBPageRepository) GetModifiedTime(ctx context.Context, key model.PageKey) (time.Time, error) {
	var modified time.Time
	err := r.db.QueryRowContext(ctx, `SELECT modified_at FROM pages WHERE key = ?`, string(key)).Scan(&modified)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("page %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return time.Time{}, domain.NewIOError("query page", string(key), err)
	}
	return modified, nil
}

// GetContentHash returns the stored digest without decompressing the page.
func (r *DBPageRepository) GetContentHash(ctx context.Context, key model.PageKey) (string, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT content_hash FROM pages WHERE key = ?`, string(key)).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("page %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return "", domain.NewIOError("query page", string(key), err)
	}
	return hash, nil
}

func (r *DBPageRepository) Write(ctx context.Context, key model.PageKey, content []byte) error {
	compressed, err := r.compressor.Compress(content)
	if err != nil {
		return domain.NewIOError("compress page", string(key), err)
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO pages (key, content, content_hash, modified_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
    content = excluded.content,
    content_hash = excluded.content_hash,
    modified_at = excluded.modified_at`,
		string(key), compressed, util.ContentHash(content), r.now().UTC(),
	)
	if err != nil {
		return domain.NewIOError("save page", string(key), err)
	}

	repoLogger.Debug().Str("key", string(key)).Interface("result", res).Msg("Page saved")
	return nil
}

func (r *DBPageRepository) List(ctx context.Context) ([]model.Page, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, content, modified_at FROM pages`)
	if err != nil {
		return nil, domain.NewIOError("query pages", "", err)
	}
	defer rows.Close()

	pages := make([]model.Page, 0)
	for rows.Next() {
		var key string
		var compressed []byte
		var modified time.Time

		if err := rows.Scan(&key, &compressed, &modified); err != nil {
			return nil, domain.NewIOError("scan page", "", err)
		}

		content, err := r.compressor.Decompress(compressed)
		if err != nil {
			return nil, domain.NewIOError("decompress page", key, err)
		}

		pages = append(pages, newPage(model.PageKey(key), content, modified))
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewIOError("query pages", "", err)
	}

	sortPages(pages)
	return pages, nil
}
