package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, int64(16), cfg.GlobalConcurrency)
	assert.Equal(t, 100, cfg.OSV.BatchSize)
	assert.Equal(t, 4, cfg.OSV.MaxConcurrency)
	assert.Equal(t, 6, cfg.GitHub.MaxConcurrency)
	assert.Equal(t, 540, cfg.Thresholds.AbandonmentDays)
}

func TestLoadWithNoPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().GlobalConcurrency, cfg.GlobalConcurrency)
	assert.NotEmpty(t, cfg.Managers)
}

func TestLoadParsesTOMLDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtx.toml")
	doc := "global_concurrency = 32\n\n[osv]\nbatch_size = 50\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(32), cfg.GlobalConcurrency)
	assert.Equal(t, 50, cfg.OSV.BatchSize)
}

func TestLoadReturnsErrorForMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/rtx.toml")
	assert.Error(t, err)
}

func TestEnvOverrideTakesPrecedenceOverTOMLValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtx.toml")
	require.NoError(t, os.WriteFile(path, []byte("global_concurrency = 32\n"), 0o644))

	t.Setenv("RTX_POLICY_CONCURRENCY", "8")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(8), cfg.GlobalConcurrency)
}

func TestEnvOverrideIgnoresMalformedValueAndKeepsFallback(t *testing.T) {
	t.Setenv("RTX_POLICY_CONCURRENCY", "not-a-number")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(16), cfg.GlobalConcurrency)
}

func TestEnvOverrideIgnoresNonPositiveConcurrency(t *testing.T) {
	t.Setenv("RTX_POLICY_CONCURRENCY", "0")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, int64(16), cfg.GlobalConcurrency)
}

func TestLoadWarnsOnUnrecognizedTopLevelKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtx.toml")
	require.NoError(t, os.WriteFile(path, []byte("global_concurrency = 32\ntotally_made_up_key = true\n"), 0o644))

	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(32), cfg.GlobalConcurrency)
	assert.Contains(t, buf.String(), "totally_made_up_key")
}

func TestGitHubProviderConfigReadsTokenFromConfiguredEnvVar(t *testing.T) {
	t.Setenv("MY_GH_TOKEN", "abc123")
	cfg := Default()
	cfg.GitHub.TokenEnv = "MY_GH_TOKEN"
	providerCfg := cfg.GitHubProviderConfig()
	assert.Equal(t, "abc123", providerCfg.Token)
}
