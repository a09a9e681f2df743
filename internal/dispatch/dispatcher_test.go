package dispatch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/fleet/internal/config"
	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
	"github.com/randalmurphal/fleet/internal/journal"
	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/taskfile"
)

type fixture struct {
	ws         string
	projectDir string
	dispatcher *Dispatcher
	journal    *journal.Journal
}

func newFixture(t *testing.T, tasks string) *fixture {
	t.Helper()
	ws := t.TempDir()
	projectDir := filepath.Join(ws, "alpha")
	dir := filepath.Join(projectDir, ".claude", "tasks")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"), []byte(tasks), 0644))

	reg := &registry.Registry{Projects: []registry.Project{
		{Name: "alpha", Path: "alpha", Status: registry.StatusBuildable, TestCommand: "go test ./..."},
	}}
	j := journal.New(ws, reg)
	return &fixture{
		ws:         ws,
		projectDir: projectDir,
		dispatcher: New(ws, config.Default(), j),
		journal:    j,
	}
}

func (f *fixture) writeProjectFile(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.projectDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestDispatchBuildsDescriptorAndClaimsTask(t *testing.T) {
	f := newFixture(t, `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/t","title":"Wire the API","status":"pending","description":"Add the endpoint.",
		 "feature":{"description":"REST API","acceptance_criteria":["returns 200"]},
		 "relevant_files":["alpha/src/api.go"]}]}`)
	f.writeProjectFile(t, "src/api.go", "package api\n")
	f.writeProjectFile(t, "CLAUDE.md", "Always run gofmt.")

	desc, err := f.dispatcher.Dispatch("alpha/t", Options{})
	require.NoError(t, err)

	assert.Equal(t, "alpha/t", desc.TaskID)
	assert.Equal(t, f.projectDir, desc.WorkingDirectory)
	assert.Equal(t, "claude", desc.Command)
	assert.Contains(t, desc.Args, "--print")
	assert.Contains(t, desc.Args, "--dangerously-skip-permissions")
	assert.Contains(t, desc.Args, "--max-turns")
	assert.NotContains(t, desc.Args, "--model", "opus tier needs no model flag")
	assert.Empty(t, desc.Env)

	assert.Contains(t, desc.Prompt, "Wire the API")
	assert.Contains(t, desc.Prompt, "Add the endpoint.")
	assert.Contains(t, desc.Prompt, "returns 200")
	assert.Contains(t, desc.Prompt, "Always run gofmt.")
	assert.Contains(t, desc.Prompt, "package api")
	assert.Contains(t, desc.Prompt, "go test ./...")

	assert.Equal(t, []string{filepath.Join("alpha", "src", "api.go")}, desc.Meta.FilesIncluded)
	assert.Empty(t, desc.Meta.FilesMissing)
	assert.Equal(t, EstimateTokens(desc.Prompt), desc.Meta.TokenEstimate)
	assert.LessOrEqual(t, desc.Meta.TokenEstimate, TokenBudget)

	status, err := f.journal.GetStatus("alpha/t")
	require.NoError(t, err)
	assert.Equal(t, taskfile.StatusInProgress, status)
}

func TestDispatchRejectsRunningTask(t *testing.T) {
	f := newFixture(t, `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/t","title":"T","status":"in_progress"}]}`)

	_, err := f.dispatcher.Dispatch("alpha/t", Options{})
	require.Error(t, err)
	assert.True(t, fleeterrors.HasCode(err, fleeterrors.CodeTaskAlreadyRunning))
}

func TestDispatchUnknownTask(t *testing.T) {
	f := newFixture(t, `{"version":1,"project":"alpha","tasks":[]}`)
	_, err := f.dispatcher.Dispatch("alpha/nope", Options{})
	assert.True(t, fleeterrors.HasCode(err, fleeterrors.CodeTaskNotFound))
}

func TestDispatchTrimsOversizedFiles(t *testing.T) {
	f := newFixture(t, `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/t","title":"T","status":"pending",
		 "relevant_files":["alpha/small.txt","alpha/huge.txt"]}]}`)
	f.writeProjectFile(t, "small.txt", "small content\n")
	// Well past the budget on its own: 4 chars ≈ 1 token.
	f.writeProjectFile(t, "huge.txt", strings.Repeat("x", TokenBudget*4+1000))

	desc, err := f.dispatcher.Dispatch("alpha/t", Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join("alpha", "small.txt")}, desc.Meta.FilesIncluded)
	assert.Equal(t, 1, desc.Meta.FilesTrimmed)
	assert.LessOrEqual(t, desc.Meta.TokenEstimate, TokenBudget)
	assert.Contains(t, desc.Prompt, "small content")
	assert.Contains(t, desc.Prompt, "omitted to fit")
}

func TestDispatchDropsFromTail(t *testing.T) {
	f := newFixture(t, `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/t","title":"T","status":"pending",
		 "relevant_files":["alpha/a.txt","alpha/huge.txt","alpha/z.txt"]}]}`)
	f.writeProjectFile(t, "a.txt", "first file\n")
	f.writeProjectFile(t, "huge.txt", strings.Repeat("x", TokenBudget*4+1000))
	f.writeProjectFile(t, "z.txt", "last file\n")

	desc, err := f.dispatcher.Dispatch("alpha/t", Options{})
	require.NoError(t, err)

	// Everything after the first file that does not fit is dropped, even
	// when a later file would have fit on its own.
	assert.Equal(t, []string{filepath.Join("alpha", "a.txt")}, desc.Meta.FilesIncluded)
	assert.Equal(t, 2, desc.Meta.FilesTrimmed)
	assert.NotContains(t, desc.Prompt, "last file")
}

func TestDispatchTrimNoteStaysWithinBudget(t *testing.T) {
	const tasks = `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/t","title":"T","status":"pending",
		 "relevant_files":["alpha/big.txt","alpha/huge.txt"]}]}`

	// Tune big.txt so the prompt with it included sits exactly at the
	// cap. The estimate is linear in the file size, so the adjustment
	// converges in a couple of rounds.
	size := TokenBudget * 2
	for range 4 {
		f := newFixture(t, tasks)
		f.writeProjectFile(t, "big.txt", strings.Repeat("a", size))
		desc, err := f.dispatcher.Dispatch("alpha/t", Options{})
		require.NoError(t, err)
		require.Equal(t, 0, desc.Meta.FilesTrimmed)
		if desc.Meta.TokenEstimate == TokenBudget {
			break
		}
		size += (TokenBudget - desc.Meta.TokenEstimate) * 4
	}

	// Forcing a trim now must not let the omission note push the final
	// prompt past the cap.
	f := newFixture(t, tasks)
	f.writeProjectFile(t, "big.txt", strings.Repeat("a", size))
	f.writeProjectFile(t, "huge.txt", strings.Repeat("b", 8000))

	desc, err := f.dispatcher.Dispatch("alpha/t", Options{})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, desc.Meta.FilesTrimmed, 1)
	assert.Contains(t, desc.Prompt, "omitted to fit")
	assert.LessOrEqual(t, desc.Meta.TokenEstimate, TokenBudget)
	assert.LessOrEqual(t, EstimateTokens(desc.Prompt), TokenBudget)
}

func TestDispatchReportsMissingPatterns(t *testing.T) {
	f := newFixture(t, `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/t","title":"T","status":"pending",
		 "relevant_files":["does-not-exist/**/*.go"]}]}`)

	desc, err := f.dispatcher.Dispatch("alpha/t", Options{})
	require.NoError(t, err)
	assert.Empty(t, desc.Meta.FilesIncluded)
	assert.Equal(t, []string{"does-not-exist/**/*.go"}, desc.Meta.FilesMissing)
}

func TestDispatchGlobExpansion(t *testing.T) {
	f := newFixture(t, `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/t","title":"T","status":"pending",
		 "relevant_files":["alpha/src/**/*.go"]}]}`)
	f.writeProjectFile(t, "src/a.go", "package a\n")
	f.writeProjectFile(t, "src/sub/b.go", "package b\n")
	f.writeProjectFile(t, "src/ignore.txt", "nope\n")

	desc, err := f.dispatcher.Dispatch("alpha/t", Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join("alpha", "src", "a.go"),
		filepath.Join("alpha", "src", "sub", "b.go"),
	}, desc.Meta.FilesIncluded)
}

func TestDispatchLocalTier(t *testing.T) {
	f := newFixture(t, `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/t","title":"T","status":"pending","model_tier":"local"}]}`)

	desc, err := f.dispatcher.Dispatch("alpha/t", Options{})
	require.NoError(t, err)

	assert.Equal(t, taskfile.TierLocal, desc.Tier)
	assert.Contains(t, desc.Args, "--model")
	assert.Contains(t, desc.Args, "qwen3-coder")
	assert.Contains(t, desc.Env, "ANTHROPIC_BASE_URL="+config.DefaultOllamaBaseURL)
}

func TestDispatchIsDeterministic(t *testing.T) {
	content := `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/t","title":"T","status":"pending","relevant_files":["alpha/src/a.go"]}]}`

	f1 := newFixture(t, content)
	f1.writeProjectFile(t, "src/a.go", "package a\n")
	d1, err := f1.dispatcher.Dispatch("alpha/t", Options{})
	require.NoError(t, err)

	f2 := newFixture(t, content)
	f2.writeProjectFile(t, "src/a.go", "package a\n")
	d2, err := f2.dispatcher.Dispatch("alpha/t", Options{})
	require.NoError(t, err)

	assert.Equal(t, d1.Prompt, d2.Prompt, "same inputs produce the same prompt")
}
