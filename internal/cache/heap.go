package cache

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/galia-project/iiifcore/pkg/iiif"
)

// LRUHeapInfoCache is the in-process mirror of an InfoCache, bounded to a
// fixed entry capacity. It exists purely to save a round trip to the
// backing info-cache for identifiers requested repeatedly by the same
// process.
type LRUHeapInfoCache struct {
	cache *lru.Cache
}

// NewLRUHeapInfoCache creates a heap-info-cache holding at most capacity
// entries, evicting least-recently-used on overflow.
func NewLRUHeapInfoCache(capacity int) (*LRUHeapInfoCache, error) {
	if capacity <= 0 {
		capacity = 1
	}
	c, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &LRUHeapInfoCache{cache: c}, nil
}

func (h *LRUHeapInfoCache) Get(identifier iiif.Identifier) (iiif.Info, bool) {
	v, ok := h.cache.Get(string(identifier))
	if !ok {
		return iiif.Info{}, false
	}
	info, ok := v.(iiif.Info)
	return info, ok
}

func (h *LRUHeapInfoCache) Put(identifier iiif.Identifier, info iiif.Info) {
	h.cache.Add(string(identifier), info)
}

func (h *LRUHeapInfoCache) Purge(identifier iiif.Identifier) {
	h.cache.Remove(string(identifier))
}
