package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(EnvRefineURL, "")
	t.Setenv(EnvMaxDownloadBytes, "")
	t.Setenv(EnvRequestTimeout, "")

	require.NoError(t, LoadConfig(""))
	c := Config()
	assert.Equal(t, DefaultRefineURL, c.RefineURL)
	assert.Equal(t, int64(0), c.MaxDownloadBytes)
	assert.Equal(t, DefaultRequestTimeout, c.GetRequestTimeoutOrDefault())
	assert.Equal(t, DefaultServerHostName, c.Server.HostName)
	assert.Equal(t, DefaultServerPort, c.Server.Port)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv(EnvRefineURL, "")
	t.Setenv(EnvMaxDownloadBytes, "")
	t.Setenv(EnvRequestTimeout, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "refine-mcp.conf")
	content := `
refine_url = "http://refine.internal:3333"
request_timeout = "45s"
max_download_bytes = 1048576

[server]
hostname = "0.0.0.0"
port = "9200"
handle_cors = true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	require.NoError(t, LoadConfig(path))
	c := Config()
	assert.Equal(t, "http://refine.internal:3333", c.RefineURL)
	assert.Equal(t, 45*time.Second, c.GetRequestTimeoutOrDefault())
	assert.Equal(t, int64(1048576), c.MaxDownloadBytes)
	assert.Equal(t, "0.0.0.0", c.Server.HostName)
	assert.Equal(t, "9200", c.Server.Port)
	assert.True(t, c.Server.HandleCORS)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "refine-mcp.conf")
	require.NoError(t, os.WriteFile(path, []byte(`refine_url = "http://from-file:3333"`), 0600))

	t.Setenv(EnvRefineURL, "http://from-env:3333")
	t.Setenv(EnvMaxDownloadBytes, "2048")
	t.Setenv(EnvRequestTimeout, "10s")

	require.NoError(t, LoadConfig(path))
	c := Config()
	assert.Equal(t, "http://from-env:3333", c.RefineURL)
	assert.Equal(t, int64(2048), c.MaxDownloadBytes)
	assert.Equal(t, 10*time.Second, c.GetRequestTimeoutOrDefault())
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv(EnvRefineURL, "not-a-url")
	t.Setenv(EnvMaxDownloadBytes, "")
	t.Setenv(EnvRequestTimeout, "")
	assert.Error(t, LoadConfig(""))

	t.Setenv(EnvRefineURL, "")
	t.Setenv(EnvMaxDownloadBytes, "not-a-number")
	assert.Error(t, LoadConfig(""))

	t.Setenv(EnvMaxDownloadBytes, "")
	t.Setenv(EnvRequestTimeout, "soon")
	assert.Error(t, LoadConfig(""))

	missing := filepath.Join(t.TempDir(), "absent.conf")
	t.Setenv(EnvRequestTimeout, "")
	assert.Error(t, LoadConfig(missing))
}
