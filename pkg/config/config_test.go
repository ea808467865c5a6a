package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sqlite:\n  path: /tmp/rights.db\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/rights.db", cfg.SQLite.Path)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://127.0.0.1:11434/api/generate", cfg.Ollama.GenerateURL())
	assert.Equal(t, []string{"ollama", "serve"}, cfg.Ollama.StartCommand)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL())
	assert.Contains(t, cfg.Rights.Seed, "derecho a la vida")
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
ollama:
  host: model-host
  port: 9000
  model: llama3
  startCommand: []
rights:
  seed:
    - derecho a la salud
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("RIGHTS_MONITOR_SERVER_PORT", "9090")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "model-host:9000", cfg.Ollama.Address())
	assert.Equal(t, "llama3", cfg.Ollama.Model)
	assert.Empty(t, cfg.Ollama.StartCommand)
	assert.Equal(t, []string{"derecho a la salud"}, cfg.Rights.Seed)
}

func TestLoadFileMissingExplicitPath(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
