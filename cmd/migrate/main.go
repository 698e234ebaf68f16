// Command migrate copies the pages of a filesystem wiki into the SQLite page
// store. Pages whose content is already stored unchanged are skipped, so the
// command can be re-run.
package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/db"
	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/logger"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/repository"
	"github.com/debemdeboas/wikidraft/internal/util"
	"github.com/debemdeboas/wikidraft/internal/util/compression"
)

type stats struct {
	Imported  int
	Unchanged int
	Failed    int
}

// hashedStore is a page store that can report the digest of a stored page.
type hashedStore interface {
	repository.PageRepository
	GetContentHash(ctx context.Context, key model.PageKey) (string, error)
}

func main() {
	path := flag.String("path", "", "directory holding the page files")
	dbPath := flag.String("db", "wiki.db", "SQLite database to import into")
	compress := flag.String("compression", "zstd", "page compression: zstd, gzip or none")
	dryRun := flag.Bool("dry-run", false, "report what would be imported without writing")
	level := flag.String("log-level", "info", "log level")
	flag.Parse()

	log := logger.New(*level)
	repository.SetLogger(log)
	db.SetLogger(log)

	if *path == "" {
		log.Fatal().Msg("--path is required")
	}

	src, err := repository.NewFSPageRepository(*path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open source pages")
	}

	compressor, err := compression.New(*compress)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid compression")
	}

	database := db.NewSQLite(*dbPath)
	if err := database.InitDB(); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}

	st, err := migrate(context.Background(), log, src, repository.NewDBPageRepository(database, compressor), *dryRun)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list source pages")
	}
	log.Info().
		Int("imported", st.Imported).
		Int("unchanged", st.Unchanged).
		Int("failed", st.Failed).
		Bool("dry_run", *dryRun).
		Msg("Migration finished")

	database.Close()
	if err != nil || st.Failed > 0 {
		os.Exit(1)
	}
}

func migrate(ctx context.Context, log zerolog.Logger, src repository.PageRepository, dst hashedStore, dryRun bool) (stats, error) {
	var st stats

	pages, err := src.List(ctx)
	if err != nil {
		return st, err
	}

	for _, page := range pages {
		l := log.With().Str("key", string(page.Key)).Logger()

		stored, err := dst.GetContentHash(ctx, page.Key)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			l.Error().Err(err).Msg("Failed to read stored page")
			st.Failed++
			continue
		}
		if stored == util.ContentHash(page.Source) {
			st.Unchanged++
			continue
		}

		if !dryRun {
			if err := dst.Write(ctx, page.Key, page.Source); err != nil {
				l.Error().Err(err).Msg("Failed to import page")
				st.Failed++
				continue
			}
		}
		l.Info().Str("title", page.GetTitle()).Int("bytes", len(page.Source)).Msg("Imported page")
		st.Imported++
	}

	return st, nil
}
