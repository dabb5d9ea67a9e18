package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, FormatText, cfg.Format)
	assert.True(t, cfg.Simplify)
	assert.True(t, cfg.PiBlocks)
	assert.True(t, cfg.SolveReachability)
}

func TestValidateRejectsUnknownFormat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Format = "yaml"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyOutputDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputDir = ""
	assert.Error(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
format: dot
simplify: false
pi_blocks: true
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatDOT, cfg.Format)
	assert.False(t, cfg.Simplify)
	assert.True(t, cfg.PiBlocks)
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("format: text\n"), 0o644))

	t.Setenv("TSAR_FORMAT", "json")
	t.Setenv("TSAR_SIMPLIFY", "false")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, cfg.Format)
	assert.False(t, cfg.Simplify)
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
