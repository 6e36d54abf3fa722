package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultServerConfiguration()
	assert.Equal(t, 4280, cfg.Port)
	assert.Equal(t, "handlers", cfg.HandlerDir)
	assert.True(t, cfg.Watch)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mocksmith.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 3000
handlerDir: ./api
specFile: openapi.yaml
watch: false
logLevel: debug
readTimeout: 5
`), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "./api", cfg.HandlerDir)
	assert.Equal(t, "openapi.yaml", cfg.SpecFile)
	assert.False(t, cfg.Watch)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeoutDuration())
	// Unset fields keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.WriteTimeoutDuration())
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("port: [nope"), 0o644))
	_, err = LoadFile(bad)
	require.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("port: 99999\nhandlerDir: x\n"), 0o644))
	_, err = LoadFile(invalid)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultServerConfiguration()
	cfg.HandlerDir = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultServerConfiguration()
	cfg.Port = -1
	assert.Error(t, cfg.Validate())
}
