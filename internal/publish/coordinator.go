// Package publish reconciles drafts with the live page store. A draft is
// published only when the live page is unchanged since the draft was based on
// it; otherwise the caller gets a diff and may force the publish.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/diff"
	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/draft"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/repository"
	"github.com/debemdeboas/wikidraft/internal/util"
)

// DraftStore is the subset of *draft.Store the coordinator needs.
type DraftStore interface {
	Read(key model.PageKey) (*draft.Draft, error)
	Write(key model.PageKey, body, digest string) error
	Delete(key model.PageKey) error
	List() ([]draft.Entry, error)
}

type State int

const (
	StateStart State = iota
	StateDraftMissing
	StateNoConflict
	StateConflicted
	StateAwaitingForce
	StatePublished
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateDraftMissing:
		return "draft_missing"
	case StateNoConflict:
		return "no_conflict"
	case StateConflicted:
		return "conflicted"
	case StateAwaitingForce:
		return "awaiting_force"
	case StatePublished:
		return "published"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Event string

const (
	EventSaved     Event = "draft-saved"
	EventDeleted   Event = "draft-deleted"
	EventPublished Event = "draft-published"
)

// Result describes where a publish attempt ended.
type Result struct {
	Key    model.PageKey `json:"key"`
	State  State         `json:"state"`
	Forced bool          `json:"forced"`

	// Diff from the live page to the draft, set when the publish is awaiting force.
	Diff *diff.Result `json:"-"`

	DraftDigest string `json:"draft_digest,omitempty"`
	LiveDigest  string `json:"live_digest,omitempty"`
}

// Conflicted reports whether the caller has to confirm a force publish.
func (r *Result) Conflicted() bool {
	return r != nil && r.State == StateAwaitingForce
}

type Coordinator struct {
	drafts DraftStore
	pages  repository.PageRepository
	differ diff.Renderer

	readOnly bool
	logger   zerolog.Logger
	notify   func(model.PageKey, Event)
}

type Option func(*Coordinator)

func WithReadOnly(readOnly bool) Option {
	return func(c *Coordinator) {
		c.readOnly = readOnly
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = l
	}
}

// WithNotifier registers a callback for draft lifecycle events. It runs
// synchronously after the operation succeeded.
func WithNotifier(notify func(model.PageKey, Event)) Option {
	return func(c *Coordinator) {
		c.notify = notify
	}
}

func NewCoordinator(drafts DraftStore, pages repository.PageRepository, differ diff.Renderer, opts ...Option) *Coordinator {
	c := &Coordinator{
		drafts: drafts,
		pages:  pages,
		differ: differ,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) ReadOnly() bool {
	return c.readOnly
}

func (c *Coordinator) emit(key model.PageKey, ev Event) {
	if c.notify != nil {
		c.notify(key, ev)
	}
}

// List returns every draft, most recently saved first.
func (c *Coordinator) List(ctx context.Context) ([]draft.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.drafts.List()
}

// Get loads the draft of key so the editor can resume it.
func (c *Coordinator) Get(ctx context.Context, key model.PageKey) (*draft.Draft, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.drafts.Read(key)
}

// Live returns the current live page of key. The editor records its digest
// as the base of the drafts it saves.
func (c *Coordinator) Live(ctx context.Context, key model.PageKey) (*model.Page, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	return repository.Snapshot(ctx, c.pages, key)
}

// Save stores req.Body as the draft of req.Key, replacing any earlier draft.
func (c *Coordinator) Save(ctx context.Context, req SaveRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if c.readOnly {
		return fmt.Errorf("save draft %q: %w", req.Key, domain.ErrReadOnly)
	}

	digest := req.BaseDigest
	if digest == "" {
		live, err := repository.Snapshot(ctx, c.pages, req.Key)
		if err != nil {
			return err
		}
		digest = live.Digest()
	}

	if err := c.drafts.Write(req.Key, req.Body, digest); err != nil {
		return err
	}

	c.logger.Info().Str("key", string(req.Key)).Int("bytes", len(req.Body)).Msg("Draft saved")
	c.emit(req.Key, EventSaved)
	return nil
}

// Delete discards the draft of key. Discarding a missing draft succeeds.
func (c *Coordinator) Delete(ctx context.Context, key model.PageKey) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if c.readOnly {
		return fmt.Errorf("delete draft %q: %w", key, domain.ErrReadOnly)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.drafts.Delete(key); err != nil {
		return err
	}

	c.logger.Info().Str("key", string(key)).Msg("Draft deleted")
	c.emit(key, EventDeleted)
	return nil
}

// Publish writes the draft to the live page store unless the live page changed
// after the draft was based on it. On conflict nothing is modified and the
// result carries a diff from the live page to the draft.
func (c *Coordinator) Publish(ctx context.Context, key model.PageKey) (*Result, error) {
	return c.publish(ctx, key, false)
}

// ForcePublish publishes the draft without the conflict check.
func (c *Coordinator) ForcePublish(ctx context.Context, key model.PageKey) (*Result, error) {
	return c.publish(ctx, key, true)
}

func (c *Coordinator) publish(ctx context.Context, key model.PageKey, force bool) (*Result, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if c.readOnly {
		return nil, fmt.Errorf("publish draft %q: %w", key, domain.ErrReadOnly)
	}

	res := &Result{Key: key, State: StateStart, Forced: force}
	log := c.logger.With().Str("key", string(key)).Bool("forced", force).Logger()

	d, err := c.drafts.Read(key)
	if errors.Is(err, domain.ErrNotFound) || (err == nil && d.Body == "") {
		res.State = StateDraftMissing
		return res, fmt.Errorf("publish draft %q: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	res.DraftDigest = d.Meta.Digest

	live, err := repository.Snapshot(ctx, c.pages, key)
	if err != nil {
		return nil, err
	}
	res.LiveDigest = live.Digest()

	if !force {
		if hasConflict(d, live) {
			res.State = StateConflicted
			res.Diff = c.differ.Diff(string(live.Source), d.Body)
			res.State = StateAwaitingForce

			log.Info().
				Str("draft_digest", res.DraftDigest).
				Str("live_digest", res.LiveDigest).
				Int("added", res.Diff.Added).
				Int("removed", res.Diff.Removed).
				Msg("Publish conflict, awaiting force")
			return res, nil
		}
		res.State = StateNoConflict
	}

	if err := c.pages.Write(ctx, key, []byte(d.Body)); err != nil {
		return nil, err
	}
	res.State = StatePublished
	res.LiveDigest = util.ContentHashString(d.Body)

	if err := c.drafts.Delete(key); err != nil {
		// The page is live; the stale draft will conflict on the next publish.
		log.Error().Err(err).Msg("Page published but draft could not be removed")
		return res, err
	}

	log.Info().Msg("Draft published")
	c.emit(key, EventPublished)
	return res, nil
}

// hasConflict prefers the digest check. Drafts saved before digests were
// recorded fall back to comparing the live modification time, at second
// precision, with the draft timestamp. A draft with neither never conflicts.
func hasConflict(d *draft.Draft, live *model.Page) bool {
	if d.Meta.HasDigest() {
		return d.Meta.Digest != live.Digest()
	}
	if d.Meta.HasSavedAt() {
		return live.ModifiedDate.Truncate(time.Second).After(d.Meta.SavedAt)
	}
	return false
}
