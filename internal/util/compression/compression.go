// Package compression provides the codecs used to store page content.
package compression

import "fmt"

type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// None stores data as is.
type None struct{}

func (None) Compress(data []byte) ([]byte, error)   { return data, nil }
func (None) Decompress(data []byte) ([]byte, error) { return data, nil }

// New returns the compressor registered under name: zstd, gzip or none.
func New(name string) (Compressor, error) {
	switch name {
	case "zstd", "":
		return ZstdCompressor{}, nil
	case "gzip":
		return GzipCompressor{}, nil
	case "none":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}
