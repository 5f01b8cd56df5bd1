package cache

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/galia-project/iiifcore/pkg/iiif"
)

// MemoryVariantCache is an in-process, unbounded variant-cache backend.
// It exists for tests and for small single-process deployments that don't
// want a filesystem or Redis dependency; it does not survive a restart.
type MemoryVariantCache struct {
	mu   sync.RWMutex
	byFP map[string][]byte
	byID map[iiif.Identifier]map[string]struct{}
}

// NewMemoryVariantCache creates an empty in-process variant-cache backend.
func NewMemoryVariantCache() *MemoryVariantCache {
	return &MemoryVariantCache{
		byFP: make(map[string][]byte),
		byID: make(map[iiif.Identifier]map[string]struct{}),
	}
}

func (m *MemoryVariantCache) NewReader(ctx context.Context, fingerprint string) (io.ReadCloser, bool) {
	m.mu.RLock()
	content, ok := m.byFP[fingerprint]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return io.NopCloser(bytes.NewReader(content)), true
}

func (m *MemoryVariantCache) NewWriter(ctx context.Context, identifier iiif.Identifier, fingerprint string) VariantWriter {
	return &memoryWriter{cache: m, identifier: identifier, fingerprint: fingerprint, buf: &bytes.Buffer{}}
}

func (m *MemoryVariantCache) Purge(ctx context.Context, identifier iiif.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for fp := range m.byID[identifier] {
		delete(m.byFP, fp)
	}
	delete(m.byID, identifier)
	return nil
}

type memoryWriter struct {
	cache       *MemoryVariantCache
	identifier  iiif.Identifier
	fingerprint string
	buf         *bytes.Buffer
	done        bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, io.ErrClosedPipe
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Commit() error {
	if w.done {
		return nil
	}
	w.done = true
	content := append([]byte(nil), w.buf.Bytes()...)
	w.cache.mu.Lock()
	defer w.cache.mu.Unlock()
	w.cache.byFP[w.fingerprint] = content
	if w.cache.byID[w.identifier] == nil {
		w.cache.byID[w.identifier] = make(map[string]struct{})
	}
	w.cache.byID[w.identifier][w.fingerprint] = struct{}{}
	return nil
}

func (w *memoryWriter) Abort() {
	w.done = true
	w.buf = nil
}

// MemoryInfoCache is an in-process, unbounded info-cache backend.
type MemoryInfoCache struct {
	mu    sync.RWMutex
	items map[iiif.Identifier]iiif.Info
}

// NewMemoryInfoCache creates an empty in-process info-cache backend.
func NewMemoryInfoCache() *MemoryInfoCache {
	return &MemoryInfoCache{items: make(map[iiif.Identifier]iiif.Info)}
}

func (m *MemoryInfoCache) Get(ctx context.Context, identifier iiif.Identifier) (iiif.Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.items[identifier]
	return info, ok
}

func (m *MemoryInfoCache) Put(ctx context.Context, identifier iiif.Identifier, info iiif.Info) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[identifier] = info
}

func (m *MemoryInfoCache) Purge(ctx context.Context, identifier iiif.Identifier) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, identifier)
	return nil
}
