// Package diff renders the live page against a draft so a conflicting editor
// can decide whether to force publish. It is display-only; nothing is merged.
package diff

import (
	"html/template"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/wikidraft/internal/render"
)

const DefaultContext = 3

var diffLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	diffLogger = l
}

// Renderer produces a diff from the live text to the draft text.
type Renderer interface {
	Diff(oldText, newText string) *Result
}

type LineKind int

const (
	LineContext LineKind = iota
	LineAdded
	LineRemoved
	LineHunk
	LineHeader
)

type Line struct {
	Kind LineKind
	Text string
}

type Result struct {
	Unified string
	Lines   []Line
	Added   int
	Removed int
}

// Empty reports whether the two sides were identical.
func (r *Result) Empty() bool {
	return r == nil || r.Unified == ""
}

// Unified renders unified diffs with go-difflib.
type Unified struct {
	FromName string
	ToName   string
	Context  int
}

func NewUnified(context int) *Unified {
	if context < 0 {
		context = DefaultContext
	}
	return &Unified{
		FromName: "live",
		ToName:   "draft",
		Context:  context,
	}
}

func (u *Unified) Diff(oldText, newText string) *Result {
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(oldText),
		B:        difflib.SplitLines(newText),
		FromFile: u.FromName,
		ToFile:   u.ToName,
		Context:  u.Context,
	})
	if err != nil {
		// Only fails on write errors, which a strings.Builder never returns.
		diffLogger.Error().Err(err).Msg("Error building unified diff")
		return &Result{}
	}

	return parse(text)
}

func parse(text string) *Result {
	res := &Result{Unified: text}
	if text == "" {
		return res
	}

	inHunk := false
	for _, line := range strings.SplitAfter(text, "\n") {
		if line == "" {
			continue
		}
		trimmed := strings.TrimSuffix(line, "\n")

		var kind LineKind
		switch {
		case strings.HasPrefix(line, "@@"):
			kind = LineHunk
			inHunk = true
		case !inHunk:
			kind = LineHeader
		case strings.HasPrefix(line, "+"):
			kind = LineAdded
			res.Added++
		case strings.HasPrefix(line, "-"):
			kind = LineRemoved
			res.Removed++
		default:
			kind = LineContext
		}
		res.Lines = append(res.Lines, Line{Kind: kind, Text: trimmed})
	}
	return res
}

// HTML highlights a unified diff with chroma's diff lexer.
func HTML(res *Result, theme string) (template.HTML, error) {
	if res.Empty() {
		return "", nil
	}
	return render.Highlight(res.Unified, "diff", theme)
}
