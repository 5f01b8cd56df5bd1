package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/pkg/iiif"
)

// FilesystemVariantCache stores encoded variants as files under root, one
// directory per identifier so Purge can remove a whole subtree. Writes are
// atomic: bytes land in a ".tmp" sibling first, then os.Rename swaps it
// into place, so a reader never observes a partial file.
type FilesystemVariantCache struct {
	root        string
	compression string
	logger      *zap.Logger
}

// NewFilesystemVariantCache creates a backend rooted at root. compression
// is one of CompressionNone/CompressionSnappy/CompressionZstd.
func NewFilesystemVariantCache(root, compression string, logger *zap.Logger) *FilesystemVariantCache {
	return &FilesystemVariantCache{root: root, compression: compression, logger: logger}
}

func (f *FilesystemVariantCache) identifierDir(identifier iiif.Identifier) string {
	safe := strings.ReplaceAll(string(identifier), "/", "_")
	return filepath.Join(f.root, safe)
}

func (f *FilesystemVariantCache) path(identifier iiif.Identifier, fingerprint string) string {
	return filepath.Join(f.identifierDir(identifier), fingerprint+".bin")
}

// flatPath is used by NewReader, which is only given the
// fingerprint (the handler resolves a reader before it necessarily has the
// identifier on hand in every caller); variants are therefore also indexed
// by a flat fingerprint file so a reader lookup doesn't require a
// directory scan.
func (f *FilesystemVariantCache) flatPath(fingerprint string) string {
	return filepath.Join(f.root, "_by_fingerprint", fingerprint+".bin")
}

func ensureDirectory(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

func (f *FilesystemVariantCache) NewReader(ctx context.Context, fingerprint string) (io.ReadCloser, bool) {
	raw, err := os.ReadFile(f.flatPath(fingerprint))
	if err != nil {
		if f.logger != nil && !os.IsNotExist(err) {
			f.logger.Warn("filesystem variant read failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		return nil, false
	}
	content, err := decompress(raw, f.compression)
	if err != nil {
		if f.logger != nil {
			f.logger.Warn("filesystem variant decompress failed", zap.String("fingerprint", fingerprint), zap.Error(err))
		}
		return nil, false
	}
	return io.NopCloser(bytes.NewReader(content)), true
}

func (f *FilesystemVariantCache) NewWriter(ctx context.Context, identifier iiif.Identifier, fingerprint string) VariantWriter {
	return &filesystemWriter{
		cache:       f,
		identifier:  identifier,
		fingerprint: fingerprint,
		buf:         &bytes.Buffer{},
	}
}

func (f *FilesystemVariantCache) Purge(ctx context.Context, identifier iiif.Identifier) error {
	dir := f.identifierDir(identifier)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read identifier dir: %w", err)
	}
	var firstErr error
	for _, e := range entries {
		fingerprint := strings.TrimSuffix(e.Name(), ".bin")
		if rmErr := deleteFile(f.flatPath(fingerprint)); rmErr != nil && firstErr == nil {
			firstErr = rmErr
		}
	}
	if rmErr := os.RemoveAll(dir); rmErr != nil && firstErr == nil {
		firstErr = rmErr
	}
	return firstErr
}

// deleteFile removes path, treating an already-missing file as success.
func deleteFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// writeFileAtomic writes content to path via a temp-file-then-rename,
// so a concurrent reader never observes a partially written file.
func writeFileAtomic(path string, content []byte) error {
	if err := ensureDirectory(path); err != nil {
		return fmt.Errorf("ensure directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

// filesystemWriter buffers writes in memory; nothing touches disk until
// Commit, and Abort (or simply letting the writer go out of scope without
// a Commit) leaves no trace.
type filesystemWriter struct {
	cache       *FilesystemVariantCache
	identifier  iiif.Identifier
	fingerprint string
	buf         *bytes.Buffer
	done        bool
}

func (w *filesystemWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, fmt.Errorf("write after commit/abort")
	}
	return w.buf.Write(p)
}

func (w *filesystemWriter) Commit() error {
	if w.done {
		return nil
	}
	w.done = true
	content, _, err := compress(w.buf.Bytes(), w.cache.compression)
	if err != nil {
		return fmt.Errorf("compress variant: %w", err)
	}
	if err := writeFileAtomic(w.cache.path(w.identifier, w.fingerprint), content); err != nil {
		return err
	}
	if err := writeFileAtomic(w.cache.flatPath(w.fingerprint), content); err != nil {
		return err
	}
	return nil
}

func (w *filesystemWriter) Abort() {
	w.done = true
	w.buf = nil
}
