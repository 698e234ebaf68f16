package model

import (
	"testing"

	"github.com/debemdeboas/wikidraft/internal/util"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mast/reference"
)

func TestPageDigest(t *testing.T) {
	t.Run("Existing page", func(t *testing.T) {
		p := &Page{Key: "FrontPage", Source: []byte("hello"), Exists: true}
		if p.Digest() != util.ContentHash([]byte("hello")) {
			t.Errorf("Expected digest of source, got %q", p.Digest())
		}
	})

	t.Run("Missing page has no digest", func(t *testing.T) {
		p := &Page{Key: "Nowhere"}
		if p.Digest() != "" {
			t.Errorf("Expected empty digest, got %q", p.Digest())
		}
	})

	t.Run("Empty existing page is digested", func(t *testing.T) {
		p := &Page{Key: "Empty", Exists: true}
		if p.Digest() == "" {
			t.Error("Expected a digest for an existing empty page")
		}
	})
}

func TestPageGetTitle(t *testing.T) {
	testCases := []struct {
		name string
		page Page
		want string
	}{
		{
			name: "No info falls back to key",
			page: Page{Key: "Help/Editing"},
			want: "Help/Editing",
		},
		{
			name: "Front matter title",
			page: Page{Key: "k", Info: &util.ExtendedTitleData{TitleData: &mast.TitleData{Title: "Editing Help"}}},
			want: "Editing Help",
		},
		{
			name: "Series prefix",
			page: Page{Key: "k", Info: &util.ExtendedTitleData{TitleData: &mast.TitleData{
				Title:      "Part One",
				SeriesInfo: reference.SeriesInfo{Name: "guide", Value: "1"},
			}}},
			want: "[guide-1] Part One",
		},
		{
			name: "Empty title falls back to key",
			page: Page{Key: "k", Info: &util.ExtendedTitleData{TitleData: &mast.TitleData{}}},
			want: "k",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.page.GetTitle(); got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}
