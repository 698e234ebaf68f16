package diff

import (
	"strings"
	"testing"
)

func TestUnifiedDiff(t *testing.T) {
	testCases := []struct {
		name        string
		oldText     string
		newText     string
		wantAdded   int
		wantRemoved int
		wantEmpty   bool
	}{
		{"Identical", "a\nb\n", "a\nb\n", 0, 0, true},
		{"Line added", "a\nb\n", "a\nb\nc\n", 1, 0, false},
		{"Line removed", "a\nb\nc\n", "a\nc\n", 0, 1, false},
		{"Line changed", "a\nb\nc\n", "a\nB\nc\n", 1, 1, false},
		{"From empty", "", "new page\n", 1, 0, false},
		{"To empty", "old\nlines\n", "", 0, 2, false},
	}

	u := NewUnified(DefaultContext)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := u.Diff(tc.oldText, tc.newText)

			if res.Empty() != tc.wantEmpty {
				t.Fatalf("Expected empty=%v, got %q", tc.wantEmpty, res.Unified)
			}
			if res.Added != tc.wantAdded {
				t.Errorf("Expected %d added, got %d", tc.wantAdded, res.Added)
			}
			if res.Removed != tc.wantRemoved {
				t.Errorf("Expected %d removed, got %d", tc.wantRemoved, res.Removed)
			}
		})
	}
}

func TestUnifiedDiffHeaders(t *testing.T) {
	res := NewUnified(1).Diff("one\ntwo\nthree\n", "one\n2\nthree\n")

	if !strings.HasPrefix(res.Unified, "--- live\n+++ draft\n") {
		t.Errorf("Expected live/draft headers, got %q", res.Unified)
	}

	kinds := map[LineKind]int{}
	for _, l := range res.Lines {
		kinds[l.Kind]++
		if strings.HasSuffix(l.Text, "\n") {
			t.Errorf("Line text keeps its newline: %q", l.Text)
		}
	}
	if kinds[LineHeader] != 2 || kinds[LineHunk] != 1 || kinds[LineContext] != 2 {
		t.Errorf("Unexpected line kinds %v in %q", kinds, res.Unified)
	}
}

func TestRemovedLineLookingLikeHeader(t *testing.T) {
	res := NewUnified(DefaultContext).Diff("-- signature\n", "++ signature\n")

	if res.Added != 1 || res.Removed != 1 {
		t.Errorf("Expected 1 added and 1 removed, got %d and %d", res.Added, res.Removed)
	}
}

func TestNewUnifiedNegativeContext(t *testing.T) {
	if u := NewUnified(-1); u.Context != DefaultContext {
		t.Errorf("Expected default context, got %d", u.Context)
	}
}

func TestHTML(t *testing.T) {
	res := NewUnified(DefaultContext).Diff("old <b>\n", "new <i>\n")

	out, err := HTML(res, "monokai")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(string(out), "<pre") {
		t.Errorf("Expected highlighted markup, got %q", out)
	}
	if strings.Contains(string(out), "<b>") {
		t.Error("Diff content must be escaped")
	}

	empty, err := HTML(NewUnified(DefaultContext).Diff("x\n", "x\n"), "monokai")
	if err != nil || empty != "" {
		t.Errorf("Expected no markup for an empty diff, got %q, %v", empty, err)
	}
}
