// Package source resolves a decoded identifier to the concrete backend
// location a Decoder should open, using the `source.{name}` pattern
// table from configuration. Only the filesystem backend is implemented
// here; an identifier matched by a source with any other backend name
// fails with an Internal error (plugin discovery is out of scope for this
// server core).
package source

import (
	"context"
	"os"
	"path/filepath"

	"github.com/galia-project/iiifcore/internal/config"
	"github.com/galia-project/iiifcore/pkg/iiif"
)

// Resolution is the outcome of resolving an identifier: the concrete path
// a Decoder should open, and the source entry that matched.
type Resolution struct {
	Path   string
	Source config.SourceConfig
}

// Resolver matches identifiers against the configured source table and
// probes filesystem-backed sources for existence.
type Resolver struct {
	cfg *config.ServerConfig
}

// New creates a Resolver reading the current config from cfg.
func New(cfg *config.ServerConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve maps identifier to a Resolution via the first matching
// `source.{name}` pattern. Returns iiif.NotFound if nothing matches.
func (r *Resolver) Resolve(identifier iiif.Identifier) (Resolution, error) {
	src, ok := r.cfg.MatchSource(string(identifier))
	if !ok {
		return Resolution{}, iiif.NotFound("no configured source matches identifier %q", identifier)
	}
	switch src.Backend {
	case "filesystem", "":
		return Resolution{Path: filepath.Join(src.BasePath, string(identifier)), Source: src}, nil
	default:
		return Resolution{}, iiif.Internal(nil, "source backend %q has no registered resolver", src.Backend)
	}
}

// Stat probes whether the resolved path exists, for the resolve-first
// policy and for evict-missing purges. It never opens or decodes the
// source; it is a cheap existence check only.
func (r *Resolver) Stat(ctx context.Context, res Resolution) (bool, error) {
	switch res.Source.Backend {
	case "filesystem", "":
		_, err := os.Stat(res.Path)
		if err == nil {
			return true, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, iiif.Internal(err, "stat source %q", res.Path)
	default:
		return false, iiif.Internal(nil, "source backend %q has no registered stat", res.Source.Backend)
	}
}
