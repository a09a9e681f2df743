package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/fleet/internal/journal"
	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/scanner"
	"github.com/randalmurphal/fleet/internal/taskfile"
	"github.com/randalmurphal/fleet/internal/tracker"
)

// fakeProvider is an in-memory tracker.
type fakeProvider struct {
	mu     sync.Mutex
	next   int
	issues map[int]*tracker.Issue
	fail   map[string]error // op name → injected failure
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{next: 42, issues: map[int]*tracker.Issue{}, fail: map[string]error{}}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) CheckAuth(context.Context) error { return nil }

func (f *fakeProvider) CreateIssue(_ context.Context, opts tracker.CreateOptions) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail["create"]; err != nil {
		return nil, err
	}
	issue := &tracker.Issue{
		Number: f.next, Title: opts.Title, Body: opts.Body,
		State: "open", Labels: opts.Labels,
	}
	f.issues[f.next] = issue
	f.next++
	return issue, nil
}

func (f *fakeProvider) UpdateIssue(_ context.Context, number int, opts tracker.UpdateOptions) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		return nil, errors.New("not found")
	}
	if opts.Title != "" {
		issue.Title = opts.Title
	}
	if opts.Body != "" {
		issue.Body = opts.Body
	}
	if opts.ReplaceLabels {
		issue.Labels = opts.Labels
	} else {
		issue.Labels = append(issue.Labels, opts.Labels...)
	}
	return issue, nil
}

func (f *fakeProvider) CloseIssue(_ context.Context, number int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		return errors.New("not found")
	}
	issue.State = "closed"
	return nil
}

func (f *fakeProvider) GetIssue(_ context.Context, number int) (*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[number]
	if !ok {
		return nil, errors.New("not found")
	}
	return issue, nil
}

func (f *fakeProvider) ListOpenIssues(_ context.Context, label string) ([]*tracker.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*tracker.Issue
	for _, issue := range f.issues {
		if issue.State != "open" {
			continue
		}
		if label != "" && !issue.HasLabel(label) {
			continue
		}
		out = append(out, issue)
	}
	return out, nil
}

type fixture struct {
	ws       string
	journal  *journal.Journal
	provider *fakeProvider
	bridge   *Bridge
	reg      *registry.Registry
}

func newFixture(t *testing.T, tasks string) *fixture {
	t.Helper()
	ws := t.TempDir()
	dir := filepath.Join(ws, "alpha", ".claude", "tasks")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tasks.json"), []byte(tasks), 0644))

	reg := &registry.Registry{Projects: []registry.Project{
		{Name: "alpha", Path: "alpha", Status: registry.StatusBuildable},
	}}
	j := journal.New(ws, reg)
	p := newFakeProvider()
	return &fixture{ws: ws, journal: j, provider: p, bridge: New(ws, p, j, 2), reg: reg}
}

func (f *fixture) scan(t *testing.T) []*scanner.Task {
	t.Helper()
	res, err := scanner.Scan(f.ws, f.reg, scanner.Options{})
	require.NoError(t, err)
	return res.Tasks
}

const pendingTask = `{"version":1,"project":"alpha","tasks":[
	{"id":"alpha/t","title":"Fix the bug","status":"pending","complexity":"S"}]}`

func TestPushCreatesIssueAndMapping(t *testing.T) {
	f := newFixture(t, pendingTask)

	res, err := f.bridge.Push(context.Background(), f.scan(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Empty(t, res.Errors)

	issue := f.provider.issues[42]
	require.NotNil(t, issue)
	assert.Equal(t, "Fix the bug", issue.Title)
	assert.Contains(t, issue.Body, "fleet:task_id=alpha/t")
	assert.Contains(t, issue.Labels, ManagedLabel)
	assert.Contains(t, issue.Labels, "status:pending")
	assert.Contains(t, issue.Labels, "size:small")

	imap, err := LoadIssueMap(f.ws)
	require.NoError(t, err)
	n, ok := imap.IssueFor("alpha/t")
	require.True(t, ok)
	assert.Equal(t, 42, n)
	id, ok := imap.TaskFor(42)
	require.True(t, ok)
	assert.Equal(t, "alpha/t", id)
}

func TestPushIsIdempotent(t *testing.T) {
	f := newFixture(t, pendingTask)

	_, err := f.bridge.Push(context.Background(), f.scan(t), Options{})
	require.NoError(t, err)
	res, err := f.bridge.Push(context.Background(), f.scan(t), Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, res.Created, "second push updates instead of duplicating")
	assert.Equal(t, 1, res.Updated)
	assert.Len(t, f.provider.issues, 1)
}

func TestPushClosesCompletedTask(t *testing.T) {
	f := newFixture(t, pendingTask)
	_, err := f.bridge.Push(context.Background(), f.scan(t), Options{})
	require.NoError(t, err)

	require.NoError(t, f.journal.UpdateStatus("alpha/t", taskfile.StatusCompleted,
		journal.UpdateOptions{Summary: "done"}))

	res, err := f.bridge.Push(context.Background(), f.scan(t), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Closed)
	assert.Equal(t, "closed", f.provider.issues[42].State)
}

func TestPushErrorDoesNotAbortBatch(t *testing.T) {
	f := newFixture(t, `{"version":1,"project":"alpha","tasks":[
		{"id":"alpha/a","title":"A","status":"pending"},
		{"id":"alpha/b","title":"B","status":"pending"}]}`)
	f.provider.fail["create"] = errors.New("rate limited")

	res, err := f.bridge.Push(context.Background(), f.scan(t), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Errors, 2, "each failure is recorded, none aborts the pass")
	assert.Equal(t, 0, res.Created)
}

func TestPullAppliesLabelStatus(t *testing.T) {
	f := newFixture(t, pendingTask)
	_, err := f.bridge.Push(context.Background(), f.scan(t), Options{})
	require.NoError(t, err)

	// Someone drags the issue to in-progress on the tracker side.
	f.provider.issues[42].Labels = []string{ManagedLabel, "status:in-progress", "size:small"}

	res, err := f.bridge.Pull(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	loc, err := f.journal.Locate("alpha/t")
	require.NoError(t, err)
	assert.Equal(t, taskfile.StatusInProgress, loc.Task.Status)
	// Push never touched the task file, so this is the only transition.
	assert.Len(t, loc.Task.History, 1)
}

func TestPullClosedIssueCompletesTask(t *testing.T) {
	f := newFixture(t, pendingTask)
	_, err := f.bridge.Push(context.Background(), f.scan(t), Options{})
	require.NoError(t, err)

	require.NoError(t, f.provider.CloseIssue(context.Background(), 42, ""))

	res, err := f.bridge.Pull(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	status, err := f.journal.GetStatus("alpha/t")
	require.NoError(t, err)
	assert.Equal(t, taskfile.StatusCompleted, status)
}

func TestPullIssueWithoutMetadataIsAnError(t *testing.T) {
	f := newFixture(t, pendingTask)
	f.provider.issues[7] = &tracker.Issue{
		Number: 7, Title: "hand-made", Body: "no marker here",
		State: "open", Labels: []string{ManagedLabel, "status:pending"},
	}

	res, err := f.bridge.Pull(context.Background(), Options{})
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "identify", res.Errors[0].Op)
	assert.Equal(t, 7, res.Errors[0].Issue)
}

func TestPullSkipsUnchangedStatus(t *testing.T) {
	f := newFixture(t, pendingTask)
	_, err := f.bridge.Push(context.Background(), f.scan(t), Options{})
	require.NoError(t, err)

	res, err := f.bridge.Pull(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Applied)
	assert.Equal(t, 1, res.Skipped)

	loc, err := f.journal.Locate("alpha/t")
	require.NoError(t, err)
	assert.Empty(t, loc.Task.History, "no-op pulls leave no history")
}

func TestPushDryRunTouchesNothing(t *testing.T) {
	f := newFixture(t, pendingTask)

	res, err := f.bridge.Push(context.Background(), f.scan(t), Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created, "dry run reports what would happen")
	assert.Empty(t, f.provider.issues)

	_, err = os.Stat(IssueMapPath(f.ws))
	assert.True(t, os.IsNotExist(err))
}
