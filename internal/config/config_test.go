package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "codegraf.hcl")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadAppliesOverridesOverDefaults(t *testing.T) {
	p := writeTempConfig(t, `
max_file_size = 1048576
exclude_globs = ["vendor/*", "*.generated.go"]
context_strategy = "naive"
cache_enabled = false
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	require.Equal(t, 1048576, cfg.MaxFileSize)
	require.Equal(t, []string{"vendor/*", "*.generated.go"}, cfg.ExcludeGlobs)
	require.Equal(t, StrategyNaive, cfg.ContextStrategy)
	require.False(t, cfg.CacheEnabled)
	// Untouched fields keep their documented defaults.
	require.Equal(t, 20, cfg.MaxContextTokens)
	require.Equal(t, 4096, cfg.CacheCapacity)
}

func TestLoadRejectsUnknownField(t *testing.T) {
	p := writeTempConfig(t, `unknown_option = "oops"`)
	_, err := Load(p)
	require.Error(t, err)
}

func TestValidateRejectsBadContextStrategy(t *testing.T) {
	cfg := Default()
	cfg.ContextStrategy = "aggressive"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveMaxFileSize(t *testing.T) {
	cfg := Default()
	cfg.MaxFileSize = 0
	require.Error(t, cfg.Validate())
}

func TestExcludesPathMatchesGlob(t *testing.T) {
	cfg := Default()
	cfg.ExcludeGlobs = []string{"vendor/*", "*_test.go"}
	require.True(t, cfg.ExcludesPath("vendor/foo.go"))
	require.True(t, cfg.ExcludesPath("engine_test.go"))
	require.False(t, cfg.ExcludesPath("internal/engine.go"))
}

func TestLanguageEnabledEmptyMeansAll(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.LanguageEnabled("go"))
	require.True(t, cfg.LanguageEnabled("rust"))

	cfg.EnabledLanguages = []string{"go", "python"}
	require.True(t, cfg.LanguageEnabled("go"))
	require.False(t, cfg.LanguageEnabled("rust"))
}
