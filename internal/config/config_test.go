package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpecConstants(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 5000*time.Millisecond, cfg.ActionTimeout)
	assert.Equal(t, 10000*time.Millisecond, cfg.DropTimeout)
	assert.Equal(t, 3000*time.Millisecond, cfg.MaxRTO)
}

func TestLoadOverlaysOnlySpecifiedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rudp.yaml")
	content := "max_rto: 1500ms\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1500*time.Millisecond, cfg.MaxRTO)
	assert.Equal(t, Default().ActionTimeout, cfg.ActionTimeout)
	assert.Equal(t, Default().DropTimeout, cfg.DropTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
