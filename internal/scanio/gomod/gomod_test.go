package gomod

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestScanParsesSingleLineRequire(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/foo\n\ngo 1.23\n\nrequire github.com/pkg/errors v0.9.1\n")

	deps, err := New().Scan(dir)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "github.com/pkg/errors", deps[0].Name)
	assert.Equal(t, "v0.9.1", deps[0].Version)
	assert.True(t, deps[0].Direct)
}

func TestScanParsesRequireBlock(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/foo\n\nrequire (\n\tgithub.com/a/b v1.0.0\n\tgithub.com/c/d v2.1.0\n)\n")

	deps, err := New().Scan(dir)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "github.com/a/b", deps[0].Name)
	assert.Equal(t, "github.com/c/d", deps[1].Name)
}

func TestScanAddsGoSumOnlyEntriesAsIndirect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "go.mod", "module example.com/foo\n\nrequire github.com/a/b v1.0.0\n")
	writeFile(t, dir, "go.sum", "github.com/a/b v1.0.0 h1:abc=\ngithub.com/a/b v1.0.0/go.mod h1:def=\ngithub.com/e/f v3.0.0 h1:ghi=\n")

	deps, err := New().Scan(dir)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "github.com/a/b", deps[0].Name)
	assert.True(t, deps[0].Direct)
	assert.Equal(t, "github.com/e/f", deps[1].Name)
	assert.False(t, deps[1].Direct)
}

func TestScanReturnsEmptyWhenNoManifestsPresent(t *testing.T) {
	deps, err := New().Scan(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestEcosystemAndManifestsMetadata(t *testing.T) {
	s := New()
	assert.Equal(t, "go", s.Ecosystem())
	assert.Contains(t, s.Manifests(), "go.sum")
}
