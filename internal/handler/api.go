package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/config"
	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/publish"
)

type draftEntryJSON struct {
	Key      string    `json:"key"`
	Modified time.Time `json:"modified"`
}

type draftJSON struct {
	Key     string     `json:"key"`
	Body    string     `json:"body"`
	SavedAt *time.Time `json:"saved_at,omitempty"`
	Digest  string     `json:"digest,omitempty"`
}

type ticketJSON struct {
	Key      string `json:"key"`
	Ticket   string `json:"ticket"`
	Digest   string `json:"digest"`
	ReadOnly bool   `json:"read_only"`
}

// noticeJSON is the success or failure notice the autosave script checks.
type noticeJSON struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type diffJSON struct {
	Unified string `json:"unified"`
	Added   int    `json:"added"`
	Removed int    `json:"removed"`
}

type publishJSON struct {
	*publish.Result
	Diff *diffJSON `json:"diff,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := domain.StatusCode(err)
	l := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Msg("Request failed")
	} else {
		l.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}

	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = config.ErrInternalServerError
	}
	writeJSON(w, status, noticeJSON{OK: false, Error: msg})
}

func (h *Handler) apiList(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.UserFromRequest(r); err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.coord.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]draftEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, draftEntryJSON{Key: string(e.Key), Modified: e.ModifiedDate.UTC()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) apiGet(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.UserFromRequest(r); err != nil {
		writeError(w, r, err)
		return
	}

	d, err := h.coord.Get(r.Context(), pageKey(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := draftJSON{Key: string(d.Key), Body: d.Body, Digest: d.Meta.Digest}
	if d.Meta.HasSavedAt() {
		saved := d.Meta.SavedAt.UTC()
		out.SavedAt = &saved
	}
	writeJSON(w, http.StatusOK, out)
}

// apiTicket opens an editing session: it hands out the ticket later saves
// must carry and the digest of the live page the editor starts from.
func (h *Handler) apiTicket(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.UserFromRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := pageKey(r)
	if err := publish.ValidateKey(key); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.policy.Check(key); err != nil {
		writeError(w, r, err)
		return
	}

	live, err := h.coord.Live(r.Context(), key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	ticket, err := h.tickets.Issue(user, key)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ticketJSON{
		Key:      string(key),
		Ticket:   ticket,
		Digest:   live.Digest(),
		ReadOnly: h.coord.ReadOnly(),
	})
}

func (h *Handler) apiSave(w http.ResponseWriter, r *http.Request) {
	key := pageKey(r)
	if _, err := h.authorize(r, key); err != nil {
		writeError(w, r, err)
		return
	}

	req := publish.SaveRequest{
		Key:        key,
		Body:       r.FormValue(config.FormMsg),
		BaseDigest: r.FormValue(config.FormDigest),
	}
	if err := h.coord.Save(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, noticeJSON{OK: true, Message: "Draft saved"})
}

func (h *Handler) apiDelete(w http.ResponseWriter, r *http.Request) {
	key := pageKey(r)
	if _, err := h.authorize(r, key); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.coord.Delete(r.Context(), key); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, noticeJSON{OK: true, Message: "Draft deleted"})
}

func (h *Handler) apiPublish(force bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := pageKey(r)
		if _, err := h.authorize(r, key); err != nil {
			writeError(w, r, err)
			return
		}

		res, err := h.doPublish(r, force)
		if err != nil {
			writeError(w, r, err)
			return
		}

		out := publishJSON{Result: res}
		status := http.StatusOK
		if res.Conflicted() {
			status = http.StatusConflict
			out.Diff = &diffJSON{Unified: res.Diff.Unified, Added: res.Diff.Added, Removed: res.Diff.Removed}
		}
		writeJSON(w, status, out)
	}
}

func (h *Handler) doPublish(r *http.Request, force bool) (*publish.Result, error) {
	publishDraft := h.coord.Publish
	if force {
		publishDraft = h.coord.ForcePublish
	}

	res, err := publishDraft(r.Context(), pageKey(r))
	if err != nil && res != nil && res.State == publish.StatePublished {
		return nil, fmt.Errorf("page published but the draft could not be removed: %w", err)
	}
	return res, err
}
