package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, FileName), []byte(content), 0644))
	return ws
}

func TestLoadValid(t *testing.T) {
	ws := writeRegistry(t, `{
		"version": 1,
		"projects": [
			{"name": "alpha", "path": "alpha", "status": "buildable", "language": "go"},
			{"name": "beta", "path": "services/beta", "status": "blocked"}
		]
	}`)

	reg, err := Load(ws)
	require.NoError(t, err)
	require.Len(t, reg.Projects, 2)

	alpha := reg.Get("alpha")
	require.NotNil(t, alpha)
	assert.Equal(t, StatusBuildable, alpha.Status)
	assert.Equal(t, filepath.Join(ws, "alpha", ".claude", "tasks", "tasks.json"), alpha.TasksPath(ws))
	assert.Equal(t, filepath.Join(ws, "alpha", "CLAUDE.md"), alpha.MemoryPath(ws))

	assert.Nil(t, reg.Get("gamma"))
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, fleeterrors.HasCode(err, fleeterrors.CodeRegistryNotFound))
}

func TestLoadMalformedJSON(t *testing.T) {
	ws := writeRegistry(t, `{"projects": [`)
	_, err := Load(ws)
	require.Error(t, err)
	assert.True(t, fleeterrors.HasCode(err, fleeterrors.CodeRegistryMalformed))
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"duplicate name", `{"projects": [
			{"name": "alpha", "path": "a", "status": "buildable"},
			{"name": "alpha", "path": "b", "status": "buildable"}
		]}`},
		{"missing name", `{"projects": [{"path": "a", "status": "buildable"}]}`},
		{"missing path", `{"projects": [{"name": "alpha", "status": "buildable"}]}`},
		{"unknown status", `{"projects": [{"name": "alpha", "path": "a", "status": "shipping"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ws := writeRegistry(t, tc.content)
			_, err := Load(ws)
			require.Error(t, err)
			assert.True(t, fleeterrors.HasCode(err, fleeterrors.CodeRegistryMalformed))
		})
	}
}

func TestEmptyRegistryIsValid(t *testing.T) {
	ws := writeRegistry(t, `{"version": 1, "projects": []}`)
	reg, err := Load(ws)
	require.NoError(t, err)
	assert.Empty(t, reg.Projects)
}
