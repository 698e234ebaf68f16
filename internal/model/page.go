// Package model defines the core data structures shared across the draft and page stores.
package model

import (
	"strings"
	"time"

	"github.com/debemdeboas/wikidraft/internal/util"
)

// PageKey identifies a page. Drafts and live pages share the same namespace.
type PageKey string

type UserID string

// Page is a snapshot of a live document.
type Page struct {
	Key PageKey

	Source       []byte
	ModifiedDate time.Time

	// Exists is false when the page store has no document for Key.
	Exists bool

	// Optional data from front matter.
	Info *util.ExtendedTitleData
}

// Digest is the content hash compared against a draft's saved digest.
// A missing page has no digest.
func (p *Page) Digest() string {
	if !p.Exists {
		return ""
	}
	return util.ContentHash(p.Source)
}

func (p *Page) GetTitle() string {
	if p.Info != nil && p.Info.Title != "" {
		var s strings.Builder

		if p.Info.SeriesInfo.Name != "" && p.Info.SeriesInfo.Value != "" {
			s.WriteString("[")
			s.WriteString(p.Info.SeriesInfo.Name)
			s.WriteString("-")
			s.WriteString(p.Info.SeriesInfo.Value)
			s.WriteString("] ")
		}

		s.WriteString(p.Info.Title)

		return s.String()
	}
	return string(p.Key)
}
