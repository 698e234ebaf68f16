package repository

import (
	"context"
	"fmt"
	"os"

	"github.com/debemdeboas/wikidraft/internal/config"
	"github.com/debemdeboas/wikidraft/internal/db"
	"github.com/debemdeboas/wikidraft/internal/util/compression"
)

// Open returns the live page store selected by storage.Backend and a func
// releasing it. S3 credentials come from the environment.
func Open(ctx context.Context, storage config.StorageConfig) (PageRepository, func() error, error) {
	noop := func() error { return nil }

	switch storage.Backend {
	case config.BackendSQLite:
		compressor, err := compression.New(storage.Compression)
		if err != nil {
			return nil, nil, err
		}
		database := db.NewSQLite(storage.SQLitePath)
		if err := database.InitDB(); err != nil {
			return nil, nil, fmt.Errorf(config.ErrInitializeDatabaseFmt, err)
		}
		return NewDBPageRepository(database, compressor), database.Close, nil

	case config.BackendS3:
		repo, err := NewS3PageRepository(ctx, S3Options{
			Bucket:          storage.S3.Bucket,
			Prefix:          storage.S3.Prefix,
			Endpoint:        storage.S3.Endpoint,
			Region:          storage.S3.Region,
			AccessKeyID:     os.Getenv(config.EnvS3AccessKey),
			AccessKeySecret: os.Getenv(config.EnvS3AccessSecret),
		})
		if err != nil {
			return nil, nil, err
		}
		return repo, noop, nil

	case config.BackendFS:
		repo, err := NewFSPageRepository(storage.PagesDir)
		if err != nil {
			return nil, nil, err
		}
		return repo, noop, nil

	default:
		return nil, nil, fmt.Errorf("unknown page backend %q", storage.Backend)
	}
}
