package handler

import (
	"html/template"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/config"
	"github.com/debemdeboas/wikidraft/internal/diff"
	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/render"
	"github.com/debemdeboas/wikidraft/internal/util"
)

const previewPlaceholder = "Start typing in the editor to see a preview here."

type pageData struct {
	SiteName string
	Title    string
	ReadOnly bool
}

type draftRow struct {
	Key      model.PageKey
	Title    string
	Modified time.Time
	Ticket   string
	Editable bool
}

type noticeData struct {
	pageData
	OK      bool
	Message string
}

type diffData struct {
	pageData
	Key       model.PageKey
	Ticket    string
	Diff      template.HTML
	Added     int
	Removed   int
	Identical bool
}

func (h *Handler) page(title string) pageData {
	return pageData{SiteName: h.siteName, Title: title, ReadOnly: h.coord.ReadOnly()}
}

func (h *Handler) renderPage(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(status)
	if err := h.templates[name].ExecuteTemplate(w, config.TemplateLayout, data); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("Failed to render template")
	}
}

func (h *Handler) renderNotice(w http.ResponseWriter, r *http.Request, status int, title, msg string) {
	h.renderPage(w, r, status, config.TemplateNotice, noticeData{
		pageData: h.page(title),
		OK:       status < http.StatusBadRequest,
		Message:  msg,
	})
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.StatusCode(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Request failed")
		msg = config.ErrInternalServerError
	}
	h.renderNotice(w, r, status, http.StatusText(status), msg)
}

// serveDrafts lists every draft with its timestamp and the forms to publish
// or discard it. Each row carries its own ticket.
func (h *Handler) serveDrafts(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.UserFromRequest(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	entries, err := h.coord.List(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}

	rows := make([]draftRow, 0, len(entries))
	for _, e := range entries {
		row := draftRow{Key: e.Key, Modified: e.ModifiedDate, Editable: h.policy.IsEditable(e.Key)}
		if d, err := h.coord.Get(r.Context(), e.Key); err == nil {
			row.Title = util.TitleOf([]byte(d.Body))
		}
		if row.Editable && !h.coord.ReadOnly() {
			if row.Ticket, err = h.tickets.Issue(user, e.Key); err != nil {
				h.renderError(w, r, err)
				return
			}
		}
		rows = append(rows, row)
	}

	h.renderPage(w, r, http.StatusOK, config.TemplateList, struct {
		pageData
		Drafts []draftRow
	}{
		pageData: h.page("Drafts"),
		Drafts:   rows,
	})
}

func (h *Handler) serveDelete(w http.ResponseWriter, r *http.Request) {
	key := pageKey(r)
	if _, err := h.authorize(r, key); err != nil {
		h.renderError(w, r, err)
		return
	}

	if err := h.coord.Delete(r.Context(), key); err != nil {
		h.renderError(w, r, err)
		return
	}

	h.renderNotice(w, r, http.StatusOK, "Draft deleted", "The draft of "+string(key)+" was deleted.")
}

// servePublish publishes a draft, or shows the changes made to the live page
// since the draft was saved together with a control to publish anyway.
func (h *Handler) servePublish(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := pageKey(r)
		if _, err := h.authorize(r, key); err != nil {
			h.renderError(w, r, err)
			return
		}

		res, err := h.doPublish(r, force)
		if err != nil {
			h.renderError(w, r, err)
			return
		}

		if !res.Conflicted() {
			h.renderNotice(w, r, http.StatusOK, "Draft published", "The draft of "+string(key)+" is now live.")
			return
		}

		highlighted, err := diff.HTML(res.Diff, render.SyntaxThemeFromRequest(r, h.diffStyle))
		if err != nil {
			h.renderError(w, r, err)
			return
		}

		h.renderPage(w, r, http.StatusConflict, config.TemplateDiff, diffData{
			pageData:  h.page("Page changed since the draft was saved"),
			Key:       key,
			Ticket:    r.FormValue(config.FormTicket),
			Diff:      highlighted,
			Added:     res.Diff.Added,
			Removed:   res.Diff.Removed,
			Identical: res.Diff.Empty(),
		})
	}
}

// servePreview renders the posted draft body. Saving is left to the autosave call.
func (h *Handler) servePreview(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.UserFromRequest(r); err != nil {
		http.Error(w, err.Error(), domain.StatusCode(err))
		return
	}

	body := r.FormValue(config.FormMsg)
	if body == "" {
		body = previewPlaceholder
	}

	theme := render.SyntaxThemeFromRequest(r, h.diffStyle)
	html, _ := render.RenderMarkdownCached([]byte(body), util.ContentHashString(body), theme)

	w.Header().Set(config.HCType, config.CTypeHTML)
	w.WriteHeader(http.StatusOK)
	w.Write(html)
}

func (h *Handler) serveSyntaxCSS(w http.ResponseWriter, r *http.Request) {
	css := []byte(render.GenerateSyntaxCSS(render.SyntaxThemeFromRequest(r, h.diffStyle)))

	w.Header().Set(config.HCType, config.CTypeCSS)
	w.Header().Set(config.HETag, util.ContentHash(css))
	w.WriteHeader(http.StatusOK)
	w.Write(css)
}

