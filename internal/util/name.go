package util

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeName maps a page key to a filesystem-safe name: the uppercase hex of its bytes.
func EncodeName(key string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(key)))
}

// DecodeName reverses EncodeName. Lowercase hex is accepted.
func DecodeName(name string) (string, error) {
	b, err := hex.DecodeString(name)
	if err != nil {
		return "", fmt.Errorf("invalid encoded name %q: %w", name, err)
	}
	return string(b), nil
}
