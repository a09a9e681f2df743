package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.WorkerCommand)
	assert.Equal(t, []string{"--print", "--dangerously-skip-permissions"}, cfg.WorkerBaseArgs)
	assert.Equal(t, "qwen3-coder", cfg.LocalModel)
	assert.Equal(t, DefaultOllamaBaseURL, cfg.OllamaBaseURL)
	assert.Equal(t, DefaultMaxTurns, cfg.MaxTurns)
	assert.Equal(t, "ghcli", cfg.Tracker.Provider)
}

func TestLoadFromFile(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, ConfigFileName), []byte(`
worker_command: my-worker
max_turns: 10
tracker:
  provider: github
  concurrency: 8
`), 0644))

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, "my-worker", cfg.WorkerCommand)
	assert.Equal(t, 10, cfg.MaxTurns)
	assert.Equal(t, "github", cfg.Tracker.Provider)
	assert.Equal(t, 8, cfg.Tracker.Concurrency)
	// Unset keys keep their defaults.
	assert.Equal(t, "qwen3-coder", cfg.LocalModel)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://models.internal:11434")
	t.Setenv("FLEET_WORKER_CMD", "claude-next")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://models.internal:11434", cfg.OllamaBaseURL)
	assert.Equal(t, "claude-next", cfg.WorkerCommand)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestWriteDefault(t *testing.T) {
	ws := t.TempDir()
	path, err := WriteDefault(ws)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws, ConfigFileName), path)

	cfg, err := Load(ws)
	require.NoError(t, err)
	assert.Equal(t, Default().WorkerCommand, cfg.WorkerCommand)

	_, err = WriteDefault(ws)
	assert.Error(t, err, "refuses to overwrite an existing config")
}
