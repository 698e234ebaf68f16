package draft

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/debemdeboas/wikidraft/internal/domain"
	"github.com/debemdeboas/wikidraft/internal/model"
)

const errUnexpected = "Unexpected error: %v"

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	s, err := NewStore(filepath.Join(t.TempDir(), "draft"), opts...)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return s
}

func TestNewStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "draft")
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Errorf("Expected directory %s to exist", dir)
	}
	if s.Dir() != dir {
		t.Errorf("Expected dir %q, got %q", dir, s.Dir())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	testCases := []struct {
		name     string
		key      model.PageKey
		body     string
		digest   string
		wantBody string
	}{
		{"Plain", "FrontPage", "hello\nworld\n", "abc", "hello\nworld\n"},
		{"CRLF normalized", "Windows", "a\r\nb\r\n", "def", "a\nb\n"},
		{"No digest", "Legacy", "body", "", "body"},
		{"Nested key", "Help/Editing", "* Heading\n", "0123", "* Heading\n"},
		{"Unicode key", "日本語", "本文\n", "", "本文\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := s.Write(tc.key, tc.body, tc.digest); err != nil {
				t.Fatalf(errUnexpected, err)
			}

			d, err := s.Read(tc.key)
			if err != nil {
				t.Fatalf(errUnexpected, err)
			}
			if d.Key != tc.key {
				t.Errorf("Expected key %q, got %q", tc.key, d.Key)
			}
			if d.Body != tc.wantBody {
				t.Errorf("Expected body %q, got %q", tc.wantBody, d.Body)
			}
			if d.Meta.Digest != tc.digest {
				t.Errorf("Expected digest %q, got %q", tc.digest, d.Meta.Digest)
			}
			if !d.Meta.SavedAt.Equal(fixedNow) {
				t.Errorf("Expected saved %v, got %v", fixedNow, d.Meta.SavedAt)
			}
		})
	}
}

func TestDraftLines(t *testing.T) {
	testCases := []struct {
		body string
		want []string
	}{
		{"", nil},
		{"one", []string{"one"}},
		{"one\ntwo\n", []string{"one\n", "two\n"}},
		{"one\n\nthree", []string{"one\n", "\n", "three"}},
	}

	for _, tc := range testCases {
		d := &Draft{Body: tc.body}
		got := d.Lines()
		if strings.Join(got, "") != tc.body || len(got) != len(tc.want) {
			t.Errorf("Lines(%q) = %q, want %q", tc.body, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("Lines(%q)[%d] = %q, want %q", tc.body, i, got[i], tc.want[i])
			}
		}
	}
}

func TestReadMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Read("Nowhere")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, domain.ErrIO) {
		t.Error("A missing draft must not be reported as an I/O error")
	}
}

func TestReadEmptyFile(t *testing.T) {
	s := newTestStore(t)

	if err := os.WriteFile(s.Path("Empty"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := s.Read("Empty")
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if d.Body != "" || d.Meta.HasDigest() || d.Meta.HasSavedAt() {
		t.Errorf("Expected empty draft, got %+v", d)
	}
}

func TestReadLegacyFile(t *testing.T) {
	s := newTestStore(t)

	content := "#draft_saved:2024-01-02T03:04:05+09:00\r\nold body\r\n"
	if err := os.WriteFile(s.Path("Old"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := s.Read("Old")
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if d.Body != "old body\n" {
		t.Errorf("Expected normalized body, got %q", d.Body)
	}
	if d.Meta.HasDigest() {
		t.Error("Legacy draft must not carry a digest")
	}
	want := time.Date(2024, 1, 1, 18, 4, 5, 0, time.UTC)
	if !d.Meta.SavedAt.Equal(want) {
		t.Errorf("Expected saved %v, got %v", want, d.Meta.SavedAt)
	}
}

func TestReadIOError(t *testing.T) {
	s := newTestStore(t)

	// A directory where the draft file should be cannot be read as a draft.
	if err := os.Mkdir(s.Path("Dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := s.Read("Dir")
	if !errors.Is(err, domain.ErrIO) {
		t.Errorf("Expected ErrIO, got %v", err)
	}
}

func TestExistsAndLastModified(t *testing.T) {
	s := newTestStore(t)

	if s.Exists("Page") {
		t.Error("Expected no draft before write")
	}
	if !s.LastModified("Page").IsZero() {
		t.Error("Expected zero time for a missing draft")
	}

	if err := s.Write("Page", "x", ""); err != nil {
		t.Fatalf(errUnexpected, err)
	}

	mtime := time.Date(2023, 3, 3, 3, 3, 3, 0, time.UTC)
	if err := os.Chtimes(s.Path("Page"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	if !s.Exists("Page") {
		t.Error("Expected draft after write")
	}
	if !s.LastModified("Page").Equal(mtime) {
		t.Errorf("Expected %v, got %v", mtime, s.LastModified("Page"))
	}
}

func TestDeleteIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Delete("Nowhere"); err != nil {
		t.Errorf("Deleting a missing draft should succeed, got %v", err)
	}

	if err := s.Write("Page", "x", ""); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if err := s.Delete("Page"); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if s.Exists("Page") {
		t.Error("Expected draft to be gone")
	}
	if err := s.Delete("Page"); err != nil {
		t.Errorf("Second delete should succeed, got %v", err)
	}
}

func TestAtMostOneDraftPerKey(t *testing.T) {
	s := newTestStore(t)

	if err := s.Write("Page", "A", "da"); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if err := s.Write("Page", "B", "db"); err != nil {
		t.Fatalf(errUnexpected, err)
	}

	d, err := s.Read("Page")
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if d.Body != "B" || d.Meta.Digest != "db" {
		t.Errorf("Expected only the second write, got %+v", d)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 draft, got %d", len(entries))
	}
}

func TestShorterRewriteLeavesNoTail(t *testing.T) {
	s := newTestStore(t)

	if err := s.Write("Page", strings.Repeat("long line\n", 100), ""); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if err := s.Write("Page", "short", ""); err != nil {
		t.Fatalf(errUnexpected, err)
	}

	d, err := s.Read("Page")
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if d.Body != "short" {
		t.Errorf("Expected %q, got %q", "short", d.Body)
	}
}

func TestListOrdering(t *testing.T) {
	s := newTestStore(t)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	drafts := []struct {
		key   model.PageKey
		mtime time.Time
	}{
		{"First", t1},
		{"Third", t3},
		{"Second", t2},
		{"AlsoSecond", t2},
	}
	for _, d := range drafts {
		if err := s.Write(d.key, "x", ""); err != nil {
			t.Fatalf(errUnexpected, err)
		}
		if err := os.Chtimes(s.Path(d.key), d.mtime, d.mtime); err != nil {
			t.Fatal(err)
		}
	}

	// Files the store did not write are ignored.
	os.WriteFile(filepath.Join(s.Dir(), "README"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(s.Dir(), "not-hex.txt"), []byte("x"), 0o644)
	os.Mkdir(filepath.Join(s.Dir(), "sub.txt"), 0o755)

	entries, err := s.List()
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}

	want := []model.PageKey{"Third", "AlsoSecond", "Second", "First"}
	if len(entries) != len(want) {
		t.Fatalf("Expected %d entries, got %d: %+v", len(want), len(entries), entries)
	}
	for i, key := range want {
		if entries[i].Key != key {
			t.Errorf("Position %d: expected %q, got %q", i, key, entries[i].Key)
		}
	}
	if !entries[0].ModifiedDate.Equal(t3) {
		t.Errorf("Expected %v, got %v", t3, entries[0].ModifiedDate)
	}
}

func TestListEmpty(t *testing.T) {
	s := newTestStore(t)

	entries, err := s.List()
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(entries))
	}
}

func TestReadOnlyDenial(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "draft")

	writable, err := NewStore(dir, WithClock(func() time.Time { return fixedNow }))
	if err != nil {
		t.Fatal(err)
	}
	if err := writable.Write("Page", "original", "d1"); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	before, err := os.ReadFile(writable.Path("Page"))
	if err != nil {
		t.Fatal(err)
	}

	ro, err := NewStore(dir, WithReadOnly(true))
	if err != nil {
		t.Fatal(err)
	}
	if !ro.ReadOnly() {
		t.Error("Expected read-only store")
	}

	if err := ro.Write("Page", "changed", "d2"); !errors.Is(err, domain.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly on write, got %v", err)
	}
	if err := ro.Write("NewPage", "x", ""); !errors.Is(err, domain.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly on create, got %v", err)
	}
	if err := ro.Delete("Page"); !errors.Is(err, domain.ErrReadOnly) {
		t.Errorf("Expected ErrReadOnly on delete, got %v", err)
	}

	after, err := os.ReadFile(ro.Path("Page"))
	if err != nil {
		t.Fatal(err)
	}
	if string(after) != string(before) {
		t.Errorf("Draft changed in read-only mode: %q -> %q", before, after)
	}
	if ro.Exists("NewPage") {
		t.Error("Read-only write must not create a file")
	}

	// Reading still works.
	if _, err := ro.Read("Page"); err != nil {
		t.Errorf("Read should work in read-only mode: %v", err)
	}
}

func TestConcurrentWriters(t *testing.T) {
	s := newTestStore(t)

	const writers = 16
	bodies := make(map[string]string, writers)
	for i := 0; i < writers; i++ {
		// Different lengths make interleaving or leftover tails detectable.
		body := strings.Repeat(fmt.Sprintf("writer %02d line\n", i), 50*(i+1))
		bodies[body] = fmt.Sprintf("digest-%02d", i)
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for body, digest := range bodies {
		wg.Add(1)
		go func(body, digest string) {
			defer wg.Done()
			errs <- s.Write("Shared", body, digest)
		}(body, digest)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Concurrent write failed: %v", err)
		}
	}

	d, err := s.Read("Shared")
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	digest, ok := bodies[d.Body]
	if !ok {
		t.Fatalf("Final draft is not one complete write (%d bytes)", len(d.Body))
	}
	if d.Meta.Digest != digest {
		t.Errorf("Header and body come from different writes: %q vs %q", d.Meta.Digest, digest)
	}
}

func TestConcurrentReadersSeeCompleteDrafts(t *testing.T) {
	s := newTestStore(t)

	small := "small\n"
	large := strings.Repeat("large body line\n", 4096)
	if err := s.Write("Page", small, "s"); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	bad := make(chan string, 1)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				d, err := s.Read("Page")
				if err != nil {
					select {
					case bad <- err.Error():
					default:
					}
					return
				}
				if d.Body != small && d.Body != large {
					select {
					case bad <- fmt.Sprintf("partial draft of %d bytes", len(d.Body)):
					default:
					}
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		body, digest := small, "s"
		if i%2 == 0 {
			body, digest = large, "l"
		}
		if err := s.Write("Page", body, digest); err != nil {
			t.Fatalf(errUnexpected, err)
		}
	}
	close(stop)
	wg.Wait()

	select {
	case msg := <-bad:
		t.Errorf("Reader observed an inconsistent draft: %s", msg)
	default:
	}
}

func TestWriteAndDeleteRace(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := s.Write("Racy", "content", "d"); err != nil {
				t.Errorf("Write failed: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := s.Delete("Racy"); err != nil {
				t.Errorf("Delete failed: %v", err)
			}
		}()
	}
	wg.Wait()

	// Whatever survived must be a complete draft.
	d, err := s.Read("Racy")
	if errors.Is(err, domain.ErrNotFound) {
		return
	}
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if d.Body != "content" {
		t.Errorf("Unexpected body %q", d.Body)
	}
}

func TestWriteRejectsHeaderLikeBody(t *testing.T) {
	s := newTestStore(t)

	body := "#draft_saved:2000-01-01T00:00:00Z\n#draft_digest:deadbeef\nreal text\n"
	err := s.Write("P", body, "")
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("Expected ErrInvalidRequest, got %v", err)
	}
	if _, err := s.Read("P"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Expected no draft after a rejected write, got %v", err)
	}

	// The same lines further down the body are plain text and survive.
	body = "real text\n#draft_saved:2000-01-01T00:00:00Z\n#draft_digest:deadbeef\n"
	if err := s.Write("P", body, "abc"); err != nil {
		t.Fatalf(errUnexpected, err)
	}
	d, err := s.Read("P")
	if err != nil {
		t.Fatalf(errUnexpected, err)
	}
	if d.Body != body {
		t.Errorf("Expected body %q, got %q", body, d.Body)
	}
	if d.Meta.Digest != "abc" || !d.Meta.SavedAt.Equal(fixedNow) {
		t.Errorf("Header was overridden by the body: %+v", d.Meta)
	}
}

func TestNewDraftIsNeverEmpty(t *testing.T) {
	s := newTestStore(t)
	const keys = 100

	var wg sync.WaitGroup
	stop := make(chan struct{})
	bad := make(chan string, 1)
	report := func(msg string) {
		select {
		case bad <- msg:
		default:
		}
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				entries, err := s.List()
				if err != nil {
					report(err.Error())
					return
				}
				for _, e := range entries {
					d, err := s.Read(e.Key)
					if err != nil {
						report(err.Error())
						return
					}
					if d.Body == "" || !d.Meta.HasSavedAt() {
						report(fmt.Sprintf("draft %s listed before its content was written", e.Key))
						return
					}
				}
			}
		}()
	}

	for i := 0; i < keys; i++ {
		if err := s.Write(model.PageKey(fmt.Sprintf("Page%03d", i)), "content\n", ""); err != nil {
			t.Fatalf(errUnexpected, err)
		}
	}
	close(stop)
	wg.Wait()

	select {
	case msg := <-bad:
		t.Errorf("Reader observed an incomplete draft: %s", msg)
	default:
	}
}

func TestWriteLeavesNoTemporaryFiles(t *testing.T) {
	s := newTestStore(t)

	for _, key := range []model.PageKey{"A", "B", "A"} {
		if err := s.Write(key, "x\n", ""); err != nil {
			t.Fatalf(errUnexpected, err)
		}
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("Expected two draft files, got %v", names)
	}
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), fileSuffix) {
			t.Errorf("Unexpected file %s", e.Name())
		}
		info, err := e.Info()
		if err != nil {
			t.Fatal(err)
		}
		if perm := info.Mode().Perm(); perm != 0o644 {
			t.Errorf("Expected mode 0644 for %s, got %o", e.Name(), perm)
		}
	}
}
