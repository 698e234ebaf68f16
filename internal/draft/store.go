// Package draft implements the draft staging store: at most one unpublished
// revision per page, kept as a flat file with a small metadata header.
//
// Readers take a shared flock for the duration of the read and writers an
// exclusive one while truncating and rewriting, so a reader never observes a
// half-written draft.
package draft

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
	"github.com/debemdeboas/wikidraft/internal/util"
)

const (
	fileSuffix  = ".txt"
	tempPattern = ".draft-*"
)

// A write that loses a race with a concurrent delete or create is retried at
// most this many times.
const maxReopen = 3

var draftLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	draftLogger = l
}

// Draft is a staged revision of a page.
type Draft struct {
	Key  model.PageKey
	Meta Meta
	Body string
}

// Lines returns the body split into lines, each keeping its trailing newline.
func (d *Draft) Lines() []string {
	if d.Body == "" {
		return nil
	}
	lines := strings.SplitAfter(d.Body, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Entry is one element of a draft listing.
type Entry struct {
	Key          model.PageKey
	ModifiedDate time.Time
}

type Store struct {
	dir      string
	readOnly bool
	now      func() time.Time
}

// Option customizes a Store during construction.
type Option func(*Store)

// WithReadOnly denies every mutating operation.
func WithReadOnly(readOnly bool) Option {
	return func(s *Store) {
		s.readOnly = readOnly
	}
}

// WithClock overrides the clock used for the #draft_saved header.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		s.now = clock
	}
}

// NewStore opens the draft directory, creating it when missing.
func NewStore(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir: dir,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.NewIOError("mkdir", dir, err)
	}

	return s, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Path returns the file backing the draft of key.
func (s *Store) Path(key model.PageKey) string {
	return filepath.Join(s.dir, util.EncodeName(string(key))+fileSuffix)
}

// Exists is a best-effort presence check; it takes no lock.
func (s *Store) Exists(key model.PageKey) bool {
	info, err := os.Stat(s.Path(key))
	return err == nil && !info.IsDir()
}

// LastModified returns the file modification time, or the zero time when there is no draft.
func (s *Store) LastModified(key model.PageKey) time.Time {
	info, err := os.Stat(s.Path(key))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Read loads the draft of key. A draft that does not exist, including one that
// disappears before it can be opened, yields domain.ErrNotFound.
func (s *Store) Read(key model.PageKey) (*Draft, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("draft %q: %w", key, domain.ErrNotFound)
		}
		return nil, domain.NewIOError("open", string(key), err)
	}
	defer f.Close()

	data, err := readLocked(f, key)
	if err != nil {
		return nil, err
	}

	meta, body := Parse(data)
	return &Draft{Key: key, Meta: meta, Body: body}, nil
}

func readLocked(f *os.File, key model.PageKey) ([]byte, error) {
	if err := lockShared(f); err != nil {
		return nil, domain.NewIOError("lock", string(key), err)
	}
	defer unlock(f)

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.NewIOError("read", string(key), err)
	}
	return data, nil
}

// Write replaces the draft of key with body, stamping the current time and the
// digest of the live page the draft was based on. A body starting with a header
// tag is rejected with domain.ErrInvalidRequest.
func (s *Store) Write(key model.PageKey, body, digest string) error {
	if s.readOnly {
		return fmt.Errorf("write draft %q: %w", key, domain.ErrReadOnly)
	}
	if StartsWithHeader(body) {
		return fmt.Errorf("write draft %q: %w", key, &domain.ValidationError{Message: "body must not start with a draft header tag"})
	}

	content := Encode(Meta{SavedAt: s.now(), Digest: digest}, body)
	path := s.Path(key)

	for attempt := 0; attempt < maxReopen; attempt++ {
		f, err := os.OpenFile(path, os.O_WRONLY, 0)
		if errors.Is(err, fs.ErrNotExist) {
			created, err := s.create(path, key, content)
			if err != nil {
				return err
			}
			if created {
				draftLogger.Debug().Str("key", string(key)).Int("bytes", len(content)).Msg("Draft created")
				return nil
			}
			// Another writer created it first; rewrite in place.
			continue
		}
		if err != nil {
			return domain.NewIOError("open", string(key), err)
		}

		stale, err := writeLocked(f, path, key, content)
		closeErr := f.Close()
		if err != nil {
			return err
		}
		if stale {
			draftLogger.Debug().Str("key", string(key)).Int("attempt", attempt).Msg("Draft file replaced while waiting for lock, reopening")
			continue
		}
		if closeErr != nil {
			return domain.NewIOError("close", string(key), closeErr)
		}

		draftLogger.Debug().Str("key", string(key)).Int("bytes", len(content)).Msg("Draft written")
		return nil
	}

	return domain.NewIOError("write", string(key), errors.New("draft file kept changing underneath the writer"))
}

// create writes content to a temporary file and links it in at path, so a new
// draft never becomes visible before its content. It reports false when path
// already exists.
func (s *Store) create(path string, key model.PageKey, content []byte) (bool, error) {
	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return false, domain.NewIOError("create", string(key), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return false, domain.NewIOError("write", string(key), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return false, domain.NewIOError("chmod", string(key), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return false, domain.NewIOError("sync", string(key), err)
	}
	if err := tmp.Close(); err != nil {
		return false, domain.NewIOError("close", string(key), err)
	}

	if err := os.Link(tmpName, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, domain.NewIOError("link", string(key), err)
	}
	return true, nil
}

// writeLocked truncates and rewrites f under an exclusive lock. It reports
// stale when f no longer is the file at path (a concurrent delete won the lock).
func writeLocked(f *os.File, path string, key model.PageKey, content []byte) (stale bool, err error) {
	if err := lockExclusive(f); err != nil {
		return false, domain.NewIOError("lock", string(key), err)
	}
	defer unlock(f)

	if !isCurrent(f, path) {
		return true, nil
	}

	if err := f.Truncate(0); err != nil {
		return false, domain.NewIOError("truncate", string(key), err)
	}
	if _, err := f.WriteAt(content, 0); err != nil {
		return false, domain.NewIOError("write", string(key), err)
	}
	if err := f.Sync(); err != nil {
		return false, domain.NewIOError("sync", string(key), err)
	}
	return false, nil
}

func isCurrent(f *os.File, path string) bool {
	held, err := f.Stat()
	if err != nil {
		return false
	}
	onDisk, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(held, onDisk)
}

// Delete removes the draft of key. Deleting a missing draft succeeds.
func (s *Store) Delete(key model.PageKey) error {
	if s.readOnly {
		return fmt.Errorf("delete draft %q: %w", key, domain.ErrReadOnly)
	}

	path := s.Path(key)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return domain.NewIOError("open", string(key), err)
	}
	defer f.Close()

	// Let an in-flight write finish before the file goes away.
	if err := lockExclusive(f); err != nil {
		return domain.NewIOError("lock", string(key), err)
	}
	defer unlock(f)

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.NewIOError("delete", string(key), err)
	}

	draftLogger.Debug().Str("key", string(key)).Msg("Draft deleted")
	return nil
}

// List enumerates every draft, most recently modified first. Equal times are
// ordered by key.
func (s *Store) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, domain.NewIOError("list", s.dir, err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileSuffix) {
			continue
		}

		key, err := util.DecodeName(strings.TrimSuffix(de.Name(), fileSuffix))
		if err != nil {
			draftLogger.Warn().Err(err).Str("file", de.Name()).Msg("Skipping file with undecodable name")
			continue
		}

		info, err := de.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, domain.NewIOError("stat", key, err)
		}

		entries = append(entries, Entry{Key: model.PageKey(key), ModifiedDate: info.ModTime()})
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := b.ModifiedDate.Compare(a.ModifiedDate); c != 0 {
			return c
		}
		return strings.Compare(string(a.Key), string(b.Key))
	})

	return entries, nil
}
