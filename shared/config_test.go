package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "gpt-realtime", cfg.Upstream.Model)
	assert.Equal(t, 5*time.Second, cfg.Session.DrainGracePeriod)
	assert.Equal(t, 64, cfg.Session.EventBuffer)
}

func TestLoadConfigFromFile(t *testing.T) {
	raw := `
listen_addr: ":9000"
upstream:
  base_url: wss://upstream.example.com/v1
  model: gpt-realtime-mini
  connect_timeout: 3s
session:
  drain_grace_period: 2s
  event_buffer: 128
agents:
  file: /etc/voice-gateway/agents.yaml
log:
  file: /var/log/voice-gateway.log
  max_size_mb: 20
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ListenAddr)
	assert.Equal(t, "wss://upstream.example.com/v1", cfg.Upstream.BaseURL)
	assert.Equal(t, "gpt-realtime-mini", cfg.Upstream.Model)
	assert.Equal(t, 3*time.Second, cfg.Upstream.ConnectTimeout)
	assert.Equal(t, 2*time.Second, cfg.Session.DrainGracePeriod)
	assert.Equal(t, 128, cfg.Session.EventBuffer)
	assert.Equal(t, "/etc/voice-gateway/agents.yaml", cfg.Agents.File)
	assert.Equal(t, 20, cfg.Log.MaxSizeMB)
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [:::"), 0o600))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigClampsBadSessionValues(t *testing.T) {
	raw := `
session:
  drain_grace_period: -1s
  event_buffer: 0
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.Session.DrainGracePeriod)
	assert.Equal(t, 64, cfg.Session.EventBuffer)
}

func TestGetenv(t *testing.T) {
	t.Setenv("VOICE_GATEWAY_TEST_INT", "42")

	v, err := Getenv(GetenvInt, "VOICE_GATEWAY_TEST_INT", true, 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	fallback, err := Getenv(GetenvDuration, "VOICE_GATEWAY_TEST_UNSET", false, time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, fallback)

	_, err = Getenv(GetenvString, "VOICE_GATEWAY_TEST_UNSET", true, "")
	assert.Error(t, err)

	t.Setenv("VOICE_GATEWAY_TEST_INT", "not-a-number")
	_, err = Getenv(GetenvInt, "VOICE_GATEWAY_TEST_INT", true, 0)
	assert.Error(t, err)
}
