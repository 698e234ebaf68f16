package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/auth"
	"github.com/debemdeboas/wikidraft/internal/config"
	"github.com/debemdeboas/wikidraft/internal/db"
	"github.com/debemdeboas/wikidraft/internal/diff"
	"github.com/debemdeboas/wikidraft/internal/draft"
	"github.com/debemdeboas/wikidraft/internal/handler"
	"github.com/debemdeboas/wikidraft/internal/logger"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/publish"
	"github.com/debemdeboas/wikidraft/internal/render"
	"github.com/debemdeboas/wikidraft/internal/repository"
	"github.com/debemdeboas/wikidraft/internal/sse"
	"github.com/debemdeboas/wikidraft/internal/util"
)

func main() {
	// A missing .env is fine, the environment may already be set.
	_ = godotenv.Load()

	configPath := os.Getenv(config.EnvConfigPath)
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level)
	setLoggers(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func setLoggers(log zerolog.Logger) {
	config.SetLogger(log.With().Str("component", "config").Logger())
	draft.SetLogger(log.With().Str("component", "draft").Logger())
	repository.SetLogger(log.With().Str("component", "repository").Logger())
	db.SetLogger(log.With().Str("component", "db").Logger())
	diff.SetLogger(log.With().Str("component", "diff").Logger())
	render.SetLogger(log.With().Str("component", "render").Logger())
	auth.SetLogger(log.With().Str("component", "auth").Logger())
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	drafts, err := draft.NewStore(cfg.Storage.DraftDir, draft.WithReadOnly(cfg.Features.ReadOnly))
	if err != nil {
		return fmt.Errorf(config.ErrOpenDraftStoreFmt, err)
	}

	pages, closePages, err := repository.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf(config.ErrOpenPageStoreFmt, err)
	}
	defer closePages()

	provider, err := newAuthProvider(cfg)
	if err != nil {
		return fmt.Errorf(config.ErrCreateProviderFmt, err)
	}

	tickets, err := auth.NewTickets(ticketSecret(log), cfg.Features.Authentication.TicketDuration())
	if err != nil {
		return err
	}

	clients := sse.NewClients()
	coord := publish.NewCoordinator(drafts, pages, diff.NewUnified(cfg.Diff.Context),
		publish.WithReadOnly(cfg.Features.ReadOnly),
		publish.WithLogger(log.With().Str("component", "publish").Logger()),
		publish.WithNotifier(func(key model.PageKey, ev publish.Event) {
			clients.Broadcast(key, sse.Message{Event: string(ev), Data: string(key)})
			if ev == publish.EventSaved {
				warmPreview(drafts, key, cfg.Diff.Style)
			}
		}),
	)

	h, err := handler.New(coord, handler.Options{
		Auth:      provider,
		Tickets:   tickets,
		Policy:    auth.NewEditPolicy(cfg.Features.FrozenPages),
		SiteName:  cfg.Site.Name,
		DiffStyle: cfg.Diff.Style,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET "+config.PathSSE, sse.Handler(clients, provider))
	if ed, ok := provider.(*auth.Ed25519AuthProvider); ok {
		auth.RegisterEd25519Routes(mux, ed)
	}
	mux.HandleFunc("GET /robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(config.HCType, "text/plain")
		w.Write([]byte("User-agent: *\nDisallow: /\n"))
	})

	var root http.Handler = mux
	root = provider.Middleware()(root)
	root = handler.SecureHeaders(root)
	root = handler.RequestID(log)(root)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("backend", cfg.Storage.Backend).
			Bool("read_only", cfg.Features.ReadOnly).
			Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// warmPreview renders a freshly saved draft so the editor's next preview is a cache hit.
func warmPreview(drafts *draft.Store, key model.PageKey, theme string) {
	d, err := drafts.Read(key)
	if err != nil {
		return
	}
	render.WarmCache([]byte(d.Body), util.ContentHashString(d.Body), theme)
}
