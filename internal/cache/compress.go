package cache

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compression names accepted by config.CacheConfig.CompressionAlgo.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionZstd   = "zstd"
)

// compressMinSize is the smallest payload worth paying compression
// overhead for; smaller variants are stored as-is regardless of algorithm.
const compressMinSize = 256

// compress applies algorithm to content, returning the stored bytes and
// the algorithm tag actually used (which may be CompressionNone if
// content was below the size threshold or algorithm was unrecognized).
func compress(content []byte, algorithm string) ([]byte, string, error) {
	if algorithm == "" || algorithm == CompressionNone || len(content) < compressMinSize {
		return content, CompressionNone, nil
	}
	switch algorithm {
	case CompressionSnappy:
		return s2.EncodeSnappy(nil, content), CompressionSnappy, nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, "", fmt.Errorf("zstd encoder: %w", err)
		}
		defer enc.Close()
		return enc.EncodeAll(content, nil), CompressionZstd, nil
	default:
		return content, CompressionNone, nil
	}
}

// decompress reverses compress given the algorithm tag stored alongside
// the payload.
func decompress(content []byte, algorithm string) ([]byte, error) {
	switch algorithm {
	case "", CompressionNone:
		return content, nil
	case CompressionSnappy:
		return s2.Decode(nil, content)
	case CompressionZstd:
		dec, err := zstd.NewReader(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer dec.Close()
		return io.ReadAll(dec)
	default:
		return nil, fmt.Errorf("unknown compression algorithm: %q", algorithm)
	}
}
