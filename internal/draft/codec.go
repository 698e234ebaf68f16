package draft

import (
	"bytes"
	"strings"
	"time"

	"github.com/debemdeboas/wikidraft/internal/util"
)

const (
	tagSaved  = "#draft_saved:"
	tagDigest = "#draft_digest:"
)

// Meta is the header of a draft file.
type Meta struct {
	// SavedAt is zero when the header is missing or could not be parsed.
	SavedAt time.Time
	// SavedRaw keeps the header value as written.
	SavedRaw string
	// Digest of the live page when the draft was saved. Empty for legacy drafts.
	Digest string
}

func (m Meta) HasDigest() bool {
	return m.Digest != ""
}

func (m Meta) HasSavedAt() bool {
	return !m.SavedAt.IsZero()
}

// Accepted layouts for #draft_saved, most specific first.
var savedFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseSaved(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, format := range savedFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Encode renders the header lines followed by the body.
// A zero SavedAt or an empty Digest omits the corresponding line.
func Encode(meta Meta, body string) []byte {
	var buf bytes.Buffer
	if !meta.SavedAt.IsZero() {
		buf.WriteString(tagSaved)
		buf.WriteString(meta.SavedAt.Format(time.RFC3339))
		buf.WriteByte('\n')
	}
	if meta.Digest != "" {
		buf.WriteString(tagDigest)
		buf.WriteString(meta.Digest)
		buf.WriteByte('\n')
	}
	buf.Write(util.NormalizeNewlines([]byte(body)))
	return buf.Bytes()
}

// StartsWithHeader reports whether body, once normalized, begins with a
// recognized header tag. Such a body cannot be stored: Parse would read its
// first lines back as metadata.
func StartsWithHeader(body string) bool {
	normalized := util.NormalizeNewlines([]byte(body))
	return bytes.HasPrefix(normalized, []byte(tagSaved)) || bytes.HasPrefix(normalized, []byte(tagDigest))
}

// Parse splits a draft file into its header and body. Header lines may come in
// any order; the first line that is not a recognized header starts the body,
// even when it is empty. A repeated header overrides the earlier one.
func Parse(data []byte) (Meta, string) {
	data = util.NormalizeNewlines(data)

	var meta Meta
	for len(data) > 0 {
		line, rest, _ := bytes.Cut(data, []byte("\n"))
		switch {
		case bytes.HasPrefix(line, []byte(tagSaved)):
			meta.SavedRaw = string(line[len(tagSaved):])
			meta.SavedAt = parseSaved(meta.SavedRaw)
		case bytes.HasPrefix(line, []byte(tagDigest)):
			meta.Digest = strings.TrimSpace(string(line[len(tagDigest):]))
		default:
			return meta, string(data)
		}
		data = rest
	}
	return meta, ""
}
