// Package handler exposes the publish coordinator over HTTP: a JSON API used
// by the editor's autosave script and server-rendered pages for managing
// drafts and confirming forced publishes.
package handler

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/auth"
	"github.com/debemdeboas/wikidraft/internal/config"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/publish"
	"github.com/debemdeboas/wikidraft/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

type Options struct {
	// Auth defaults to auth.AnonymousProvider.
	Auth    auth.AuthProvider
	Tickets *auth.Tickets
	Policy  *auth.EditPolicy

	SiteName  string
	DiffStyle string
}

type Handler struct {
	coord   *publish.Coordinator
	auth    auth.AuthProvider
	tickets *auth.Tickets
	policy  *auth.EditPolicy

	siteName  string
	diffStyle string

	templates map[string]*template.Template
}

func New(coord *publish.Coordinator, opts Options) (*Handler, error) {
	if opts.Tickets == nil {
		return nil, errors.New("handler: tickets are required")
	}
	if opts.Auth == nil {
		opts.Auth = auth.AnonymousProvider{}
	}
	if opts.DiffStyle == "" {
		opts.DiffStyle = config.DefaultSyntaxTheme
	}
	if !slices.Contains(render.GetSyntaxThemes(), opts.DiffStyle) {
		return nil, fmt.Errorf("handler: unknown diff style %q", opts.DiffStyle)
	}

	h := &Handler{
		coord:     coord,
		auth:      opts.Auth,
		tickets:   opts.Tickets,
		policy:    opts.Policy,
		siteName:  opts.SiteName,
		diffStyle: opts.DiffStyle,
		templates: make(map[string]*template.Template),
	}

	for _, page := range []string{config.TemplateList, config.TemplateNotice, config.TemplateDiff} {
		tmpl, err := template.ParseFS(templateFS,
			config.TemplatesLocalDir+"/"+config.TemplateLayout,
			config.TemplatesLocalDir+"/"+page,
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", page, err)
		}
		h.templates[page] = tmpl
	}

	return h, nil
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+config.PathAPIDrafts, h.apiList)
	mux.HandleFunc("GET "+config.PathAPIDraft, h.apiGet)
	mux.HandleFunc("POST "+config.PathAPIDraft, h.apiSave)
	mux.HandleFunc("DELETE "+config.PathAPIDraft, h.apiDelete)
	mux.HandleFunc("GET "+config.PathAPIDraftTicket, h.apiTicket)
	mux.HandleFunc("POST "+config.PathAPIDraftPublish, h.apiPublish(false))
	mux.HandleFunc("POST "+config.PathAPIDraftForce, h.apiPublish(true))

	mux.HandleFunc("GET "+config.PathDrafts, h.serveDrafts)
	mux.HandleFunc("POST "+config.PathDraftsDelete, h.serveDelete)
	mux.HandleFunc("POST "+config.PathDraftsPublish, h.servePublish(false))
	mux.HandleFunc("POST "+config.PathDraftsForce, h.servePublish(true))
	mux.HandleFunc("POST "+config.PathPreview, h.servePreview)
	mux.HandleFunc("GET "+config.PathSyntaxCSS, h.serveSyntaxCSS)
}

// authorize admits a mutating request: a signed-in user holding a ticket for
// an editable page.
func (h *Handler) authorize(r *http.Request, key model.PageKey) (model.UserID, error) {
	user, err := h.auth.UserFromRequest(r)
	if err != nil {
		return "", err
	}
	if err := publish.ValidateKey(key); err != nil {
		return "", err
	}
	if err := h.policy.Check(key); err != nil {
		return "", err
	}
	if err := h.tickets.Verify(r.FormValue(config.FormTicket), user, key); err != nil {
		return "", err
	}
	return user, nil
}

func pageKey(r *http.Request) model.PageKey {
	return model.PageKey(r.FormValue(config.FormPage))
}

// RequestID tags every request with an id and a request-scoped logger.
// An incoming X-Request-Id is kept when it looks sane.
func RequestID(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(config.HRequestID)
			if id == "" || len(id) > 64 {
				id = uuid.NewString()
			}
			w.Header().Set(config.HRequestID, id)

			l := base.With().
				Str("request_id", id).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger()
			l.Debug().Msg("Request")

			next.ServeHTTP(w, r.WithContext(l.WithContext(r.Context())))
		})
	}
}

func SecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Frame-Options", "deny")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "same-origin")

		next.ServeHTTP(w, r)
	})
}
