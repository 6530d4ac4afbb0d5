package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mxws.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ".", c.DataDir)
	assert.Equal(t, "files", c.Backend)
	assert.Equal(t, "default", c.Tab)
	assert.Equal(t, 30, c.MaxDepth)
	assert.Equal(t, 10*time.Minute, c.CompactEvery())
	assert.Equal(t, 2*time.Second, c.RenderTimeoutDuration())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/mxws
backend: sqlite
tab: planning
max_depth: 12
compact_interval: 30s
render_timeout: 0s
unicode: true
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/mxws", c.DataDir)
	assert.Equal(t, "sqlite", c.Backend)
	assert.Equal(t, "planning", c.Tab)
	assert.Equal(t, 12, c.MaxDepth)
	assert.Equal(t, 30*time.Second, c.CompactEvery())
	assert.Equal(t, time.Duration(0), c.RenderTimeoutDuration())
	assert.True(t, c.Unicode)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"backend":  "backend: etcd\n",
		"interval": "compact_interval: soon\n",
		"tab":      "tab: a/b\n",
		"yaml":     "max_depth: [\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestFinish_AfterOverride(t *testing.T) {
	c := Default()
	c.Backend = "memory"
	c.MaxDepth = 0
	require.NoError(t, c.Finish())
	assert.Equal(t, "memory", c.Backend)
	assert.Equal(t, 30, c.MaxDepth)
}
