package taskfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestReadValidFile(t *testing.T) {
	path := writeFile(t, `{
		"version": 1,
		"project": "alpha",
		"tasks": [
			{"id": "alpha/setup", "title": "Set up", "status": "pending"},
			{"id": "alpha/api", "title": "API", "status": "completed", "complexity": "L"}
		]
	}`)

	res, err := Read(path)
	require.NoError(t, err)
	require.Len(t, res.File.Tasks, 2)
	assert.Empty(t, res.Dropped)
	assert.Empty(t, res.Warnings)

	setup := res.File.Find("alpha/setup")
	require.NotNil(t, setup)
	assert.Equal(t, StatusPending, setup.Status)
	assert.Equal(t, ComplexityM, setup.Complexity, "complexity defaults to M")
	assert.NotNil(t, setup.BlockedBy)
	assert.NotNil(t, setup.Labels)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope", "tasks.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestReadMalformedJSON(t *testing.T) {
	path := writeFile(t, `{"version": 1, "project": `)
	_, err := Read(path)
	require.Error(t, err)
	assert.True(t, fleeterrors.HasCode(err, fleeterrors.CodeParseError))
}

func TestReadMissingProject(t *testing.T) {
	path := writeFile(t, `{"version": 1, "tasks": []}`)
	_, err := Read(path)
	require.Error(t, err)
	assert.True(t, fleeterrors.HasCode(err, fleeterrors.CodeSchemaError))
}

func TestReadDropsInvalidTasks(t *testing.T) {
	path := writeFile(t, `{
		"version": 1,
		"project": "alpha",
		"tasks": [
			{"id": "alpha/good", "title": "Good", "status": "pending"},
			{"id": "alpha/notitle", "status": "pending"},
			{"id": "alpha/badstatus", "title": "Bad", "status": "paused"},
			{"id": "beta/wrong", "title": "Wrong project", "status": "pending"},
			{"id": "alpha/badsize", "title": "Bad size", "status": "pending", "complexity": "XXL"}
		]
	}`)

	res, err := Read(path)
	require.NoError(t, err)
	require.Len(t, res.File.Tasks, 1)
	assert.Equal(t, "alpha/good", res.File.Tasks[0].ID)

	require.Len(t, res.Dropped, 4)
	fields := make([]string, 0, len(res.Dropped))
	for _, d := range res.Dropped {
		fields = append(fields, d.Field)
		assert.Equal(t, "validation_error", d.Type)
	}
	assert.ElementsMatch(t, []string{"title", "status", "id", "complexity"}, fields)
}

func TestUnknownFieldsSurvivesRoundTrip(t *testing.T) {
	path := writeFile(t, `{
		"version": 1,
		"project": "alpha",
		"custom_top": {"nested": true},
		"tasks": [
			{"id": "alpha/x", "title": "X", "status": "pending", "sprint": 7}
		]
	}`)

	res, err := Read(path)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "custom_top", res.Warnings[0].Field)
	assert.Equal(t, -1, res.Warnings[0].TaskIndex)
	assert.Equal(t, "sprint", res.Warnings[1].Field)

	out := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, Write(out, res.File))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.JSONEq(t, `{"nested": true}`, string(raw["custom_top"]))

	reread, err := Read(out)
	require.NoError(t, err)
	task := reread.File.Find("alpha/x")
	require.NotNil(t, task)
	assert.JSONEq(t, `7`, string(task.Extra["sprint"]))
}

func TestMarshalKeepsKnownFieldOrder(t *testing.T) {
	task := &Task{
		ID:     "alpha/x",
		Title:  "X",
		Status: StatusPending,
		Extra: map[string]json.RawMessage{
			"sprint": json.RawMessage(`7`),
			"aaa":    json.RawMessage(`"first extra"`),
		},
	}

	data, err := json.Marshal(task)
	require.NoError(t, err)

	s := string(data)
	id := strings.Index(s, `"id"`)
	title := strings.Index(s, `"title"`)
	status := strings.Index(s, `"status"`)
	aaa := strings.Index(s, `"aaa"`)
	sprint := strings.Index(s, `"sprint"`)

	assert.True(t, id < title && title < status, "known fields keep declaration order: %s", s)
	assert.True(t, status < aaa && aaa < sprint, "extras follow, sorted: %s", s)
}

func TestWritePreservesTaskOrder(t *testing.T) {
	path := writeFile(t, `{
		"version": 1,
		"project": "alpha",
		"tasks": [
			{"id": "alpha/z", "title": "Z", "status": "pending"},
			{"id": "alpha/a", "title": "A", "status": "pending"}
		]
	}`)

	res, err := Read(path)
	require.NoError(t, err)
	out := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, Write(out, res.File))

	reread, err := Read(out)
	require.NoError(t, err)
	require.Len(t, reread.File.Tasks, 2)
	assert.Equal(t, "alpha/z", reread.File.Tasks[0].ID)
	assert.Equal(t, "alpha/a", reread.File.Tasks[1].ID)
}

func TestProjectOf(t *testing.T) {
	assert.Equal(t, "alpha", ProjectOf("alpha/task"))
	assert.Equal(t, "alpha", ProjectOf("alpha/nested/task"))
	assert.Equal(t, "", ProjectOf("noslash"))
	assert.Equal(t, "", ProjectOf("/leading"))
}
