package config

import (
	"sync/atomic"

	"github.com/galia-project/iiifcore/internal/common/yamlutil"
)

// Manager holds the live ServerConfig behind an atomic pointer so readers
// never observe a partially-applied reload. The zero Manager is not usable;
// construct one with Load.
type Manager struct {
	current atomic.Pointer[ServerConfig]
}

// Load reads and strictly unmarshals the YAML document at path, compiles
// its source patterns, and publishes it as the Manager's current config.
func Load(path string) (*Manager, error) {
	cfg := Default()
	if _, err := yamlutil.UnmarshalStrictFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Compile(); err != nil {
		return nil, err
	}

	m := &Manager{}
	m.current.Store(cfg)
	return m, nil
}

// Get returns the currently active configuration. Safe for concurrent use;
// the returned pointer is immutable and may be held across a reload.
func (m *Manager) Get() *ServerConfig {
	return m.current.Load()
}

// Reload re-reads path and atomically swaps the active configuration,
// validating it fully before publishing so a malformed reload never
// replaces a working config.
func (m *Manager) Reload(path string) error {
	cfg := Default()
	if _, err := yamlutil.UnmarshalStrictFile(path, cfg); err != nil {
		return err
	}
	if err := cfg.Compile(); err != nil {
		return err
	}
	m.current.Store(cfg)
	return nil
}
