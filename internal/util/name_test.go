package util

import "testing"

func TestEncodeName(t *testing.T) {
	testCases := []struct {
		key  string
		want string
	}{
		{"FrontPage", "46726F6E7450616765"},
		{"a/b", "612F62"},
		{"", ""},
		{"日本", "E697A5E69CAC"},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			if got := EncodeName(tc.key); got != tc.want {
				t.Errorf("Expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNameRoundTrip(t *testing.T) {
	keys := []string{"FrontPage", "Help/Editing", "with space", "../escape", "日本語ページ", ":config/plugin", "a\tb"}

	for _, key := range keys {
		got, err := DecodeName(EncodeName(key))
		if err != nil {
			t.Fatalf("Unexpected error for %q: %v", key, err)
		}
		if got != key {
			t.Errorf("Round trip mismatch: got %q, want %q", got, key)
		}
	}
}

func TestDecodeNameInvalid(t *testing.T) {
	for _, name := range []string{"XYZ", "ABC", "notes"} {
		if _, err := DecodeName(name); err == nil {
			t.Errorf("Expected error decoding %q", name)
		}
	}
}

func TestContentHash(t *testing.T) {
	if ContentHash([]byte("a")) == ContentHash([]byte("b")) {
		t.Error("Different content should produce different hashes")
	}
	if ContentHashString("same") != ContentHash([]byte("same")) {
		t.Error("ContentHashString should match ContentHash")
	}
	if len(ContentHash(nil)) != 64 {
		t.Errorf("Expected 64 hex characters, got %d", len(ContentHash(nil)))
	}
}
