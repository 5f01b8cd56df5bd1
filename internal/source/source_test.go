package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/galia-project/iiifcore/internal/config"
)

func testConfig(t *testing.T, basePath string) *config.ServerConfig {
	cfg := &config.ServerConfig{
		Sources: []config.SourceConfig{
			{Name: "islandora", IdentifierPattern: "islandora:*", Backend: "filesystem", BasePath: basePath},
		},
	}
	require.NoError(t, cfg.Compile())
	return cfg
}

func TestResolve_MatchesConfiguredSourcePattern(t *testing.T) {
	dir := t.TempDir()
	r := New(testConfig(t, dir))

	res, err := r.Resolve("islandora:123")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "islandora:123"), res.Path)
}

func TestResolve_NoMatchIsNotFound(t *testing.T) {
	r := New(testConfig(t, t.TempDir()))
	_, err := r.Resolve("loc:999")
	require.Error(t, err)
}

func TestStat_ReflectsFileExistence(t *testing.T) {
	dir := t.TempDir()
	r := New(testConfig(t, dir))

	res, err := r.Resolve("islandora:123")
	require.NoError(t, err)

	ok, err := r.Stat(context.Background(), res)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(res.Path, []byte("data"), 0o644))
	ok, err = r.Stat(context.Background(), res)
	require.NoError(t, err)
	assert.True(t, ok)
}
