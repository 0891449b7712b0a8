package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, dir, cfg.ConfigDir)
	assert.Equal(t, filepath.Join(dir, "stockcount.db"), cfg.DataPath)
	assert.Equal(t, []int{3000, 3001, 8080, 5000}, cfg.LANPorts)
	assert.Equal(t, 800*time.Millisecond, cfg.LANProbeTimeout)
	assert.Equal(t, 30*time.Second, cfg.BLEScanTimeout)
	assert.Equal(t, 5, cfg.BLEChunkSize)
	assert.Equal(t, "http://localhost:8080", cfg.BaseURL())
	assert.NotEmpty(t, cfg.DeviceID)
}

func TestLoad_DeviceIDIsStable(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)

	first, err := Load("")
	require.NoError(t, err)
	second, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID, second.DeviceID)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("LAN_PORTS", "9000, 9001")
	t.Setenv("ENABLE_TLS", "true")
	t.Setenv("SERVER_ADDRESS", "inv.example.com")
	t.Setenv("SESSION_ID", "s-42")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, []int{9000, 9001}, cfg.LANPorts)
	assert.Equal(t, "https://inv.example.com", cfg.BaseURL())
	assert.Equal(t, "s-42", cfg.SessionID)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	file := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("session_id: from-file\nble_chunk_size: 8\n"), 0600))

	cfg, err := Load(file)

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.SessionID)
	assert.Equal(t, 8, cfg.BLEChunkSize)
}

func TestLoad_InvalidPort(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("LAN_PORTS", "3000,abc")

	_, err := Load("")

	assert.Error(t, err)
}
