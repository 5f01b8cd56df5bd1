// Package config defines the static configuration schema loaded at startup
// and an atomically-swappable holder so in-process readers never observe a
// partially-updated configuration.
package config

import (
	"fmt"

	"github.com/galia-project/iiifcore/pkg/pattern"
)

// LogConfig mirrors the console/file dual-output logger configuration.
type LogConfig struct {
	Level   string        `yaml:"level"`
	Console ConsoleConfig `yaml:"console"`
	File    FileConfig    `yaml:"file"`
}

type ConsoleConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
}

type FileConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Level      string `yaml:"level"`
	Path       string `yaml:"path"`
	Format     string `yaml:"format"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// RedisConfig addresses a single Redis instance used by the variant-cache
// and/or info-cache backends.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CacheBackend names which storage a cache tier uses.
type CacheBackend string

const (
	BackendNone       CacheBackend = "none"
	BackendRedis      CacheBackend = "redis"
	BackendFilesystem CacheBackend = "filesystem"
	BackendMemory     CacheBackend = "memory"
)

// CacheConfig configures the three cache tiers behind the Cache Facade.
type CacheConfig struct {
	VariantBackend   CacheBackend `yaml:"variant_backend"`
	InfoBackend      CacheBackend `yaml:"info_backend"`
	HeapInfoCapacity int          `yaml:"heap_info_capacity"`
	FilesystemRoot   string       `yaml:"filesystem_root"`
	CompressionAlgo  string       `yaml:"compression_algorithm"` // "none", "snappy", "zstd"
	ResolveFirst     bool         `yaml:"resolve_first"`
	EvictMissing     bool         `yaml:"evict_missing"`
}

// EndpointConfig toggles which API surfaces are routed.
type EndpointConfig struct {
	IIIF1Enabled bool   `yaml:"iiif1_enabled"`
	IIIF1Prefix  string `yaml:"iiif1_prefix"`
	IIIF2Enabled bool   `yaml:"iiif2_enabled"`
	IIIF2Prefix  string `yaml:"iiif2_prefix"`
	IIIF3Enabled bool   `yaml:"iiif3_enabled"`
	IIIF3Prefix  string `yaml:"iiif3_prefix"`
	DZIEnabled   bool   `yaml:"dzi_enabled"`
	DZIPrefix    string `yaml:"dzi_prefix"`
}

// ImagingConfig bounds the dimensions and resolution levels the server will
// produce or advertise.
type ImagingConfig struct {
	MaxPixels       int     `yaml:"max_pixels"`
	MinSize         int     `yaml:"min_size"`
	MaxScale        float64 `yaml:"max_scale"`
	AllowUpscaling  bool    `yaml:"allow_upscaling"`
	TileSize        int     `yaml:"tile_size"`
	RestrictToSizes bool    `yaml:"restrict_to_sizes"`
}

// ClientCacheConfig controls the Cache-Control/Last-Modified headers set
// on image responses (the Link header is set regardless); it governs what
// downstream HTTP caches (CDN, browser) are told to do, independent of
// this server's own variant cache.
type ClientCacheConfig struct {
	Enabled bool `yaml:"enabled"`
	MaxAge  int  `yaml:"max_age"`
}

// SourceConfig is one `source.{name}` entry: a pattern matched against the
// decoded identifier, naming which backend resolves matching identifiers.
type SourceConfig struct {
	Name              string `yaml:"name"`
	IdentifierPattern string `yaml:"identifier_pattern"`
	Backend           string `yaml:"backend"` // e.g. "filesystem", "s3", "http"
	BasePath          string `yaml:"base_path"`

	compiled *pattern.Pattern
}

// ServerConfig is the root configuration document.
type ServerConfig struct {
	Host            string            `yaml:"host"`
	Port            int               `yaml:"port"`
	BaseURI         string            `yaml:"base_uri"`
	SlashSubstitute string            `yaml:"slash_substitute"`
	Log             LogConfig         `yaml:"log"`
	Redis           RedisConfig       `yaml:"redis"`
	Cache           CacheConfig       `yaml:"cache"`
	Endpoints       EndpointConfig    `yaml:"endpoints"`
	Imaging         ImagingConfig     `yaml:"imaging"`
	ClientCache     ClientCacheConfig `yaml:"client_cache"`
	Sources         []SourceConfig    `yaml:"sources"`
	MetricsAddr     string            `yaml:"metrics_addr"`
}

// Compile pre-compiles every source pattern. Call once after loading; the
// config is rejected (rather than failing lazily mid-request) if any
// pattern does not compile.
func (c *ServerConfig) Compile() error {
	for i := range c.Sources {
		p, err := pattern.Compile(c.Sources[i].IdentifierPattern)
		if err != nil {
			return fmt.Errorf("source %q: invalid identifier_pattern: %w", c.Sources[i].Name, err)
		}
		c.Sources[i].compiled = p
	}
	return nil
}

// MatchSource returns the first SourceConfig whose pattern matches the
// given identifier, in declaration order.
func (c *ServerConfig) MatchSource(identifier string) (SourceConfig, bool) {
	for _, s := range c.Sources {
		if s.compiled != nil && s.compiled.Match(identifier) {
			return s, true
		}
	}
	return SourceConfig{}, false
}

// Default returns a conservative, fully-populated configuration suitable
// as a base for tests and for documenting every key's default.
func Default() *ServerConfig {
	return &ServerConfig{
		Host:            "0.0.0.0",
		Port:            8182,
		SlashSubstitute: "-",
		Log: LogConfig{
			Level:   "info",
			Console: ConsoleConfig{Enabled: true, Level: "info", Format: "console"},
		},
		Cache: CacheConfig{
			VariantBackend:   BackendFilesystem,
			InfoBackend:      BackendMemory,
			HeapInfoCapacity: 10_000,
			CompressionAlgo:  "none",
			ResolveFirst:     false,
			EvictMissing:     true,
		},
		Endpoints: EndpointConfig{
			IIIF2Enabled: true,
			IIIF2Prefix:  "iiif/2",
			IIIF3Enabled: true,
			IIIF3Prefix:  "iiif/3",
			DZIEnabled:   true,
			DZIPrefix:    "dzi",
		},
		Imaging: ImagingConfig{
			MaxPixels: 100_000_000,
			MinSize:   64,
			MaxScale:  2.0,
			TileSize:  512,
		},
		ClientCache: ClientCacheConfig{
			Enabled: true,
			MaxAge:  86400,
		},
	}
}
