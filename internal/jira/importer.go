package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/randalmurphal/fleet/internal/lock"
	"github.com/randalmurphal/fleet/internal/logging"
	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/taskfile"
)

// ImportResult summarizes one import pass.
type ImportResult struct {
	Fetched int
	Added   int
	Updated int
	Skipped int
}

// Importer merges Jira issues into one project's task file.
type Importer struct {
	client    *Client
	workspace string
	reg       *registry.Registry
	log       *slog.Logger
}

// NewImporter creates an importer.
func NewImporter(client *Client, workspace string, reg *registry.Registry) *Importer {
	return &Importer{
		client:    client,
		workspace: workspace,
		reg:       reg,
		log:       logging.Module("jira"),
	}
}

// Import fetches issues matching jql and merges them into the named
// project's task file. Imports are idempotent on the Jira key: a task
// already imported gets its title, description, labels, and blockers
// refreshed while its status and history stay untouched. dryRun reports
// without writing.
func (im *Importer) Import(ctx context.Context, project, jql string, dryRun bool) (*ImportResult, error) {
	proj := im.reg.Get(project)
	if proj == nil {
		return nil, fmt.Errorf("unknown project %q", project)
	}

	issues, err := im.client.SearchAll(ctx, jql)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Fetched: len(issues)}
	path := proj.TasksPath(im.workspace)

	err = lock.With(path, func() error {
		file, err := im.loadOrInit(path, project)
		if err != nil {
			return err
		}

		byKey := indexByJiraKey(file.Tasks)
		for _, issue := range issues {
			mapped := MapIssue(project, issue)
			existing := byKey[issue.Key]
			if existing == nil {
				existing = file.Find(mapped.ID)
			}
			if existing == nil {
				file.Tasks = append(file.Tasks, mapped)
				res.Added++
				continue
			}
			if refresh(existing, mapped) {
				res.Updated++
			} else {
				res.Skipped++
			}
		}

		if dryRun {
			return nil
		}
		return taskfile.Write(path, file)
	})
	if err != nil {
		return nil, err
	}

	im.log.Info("jira import complete",
		"project", project,
		"fetched", res.Fetched,
		"added", res.Added,
		"updated", res.Updated,
		"dry_run", dryRun,
	)
	return res, nil
}

// loadOrInit reads the project task file, creating an empty container
// when the project has none yet.
func (im *Importer) loadOrInit(path, project string) (*taskfile.File, error) {
	read, err := taskfile.Read(path)
	if err == nil {
		return read.File, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	if mkErr := os.MkdirAll(filepath.Dir(path), 0755); mkErr != nil {
		return nil, fmt.Errorf("create tasks dir: %w", mkErr)
	}
	return &taskfile.File{Version: 1, Project: project}, nil
}

// indexByJiraKey maps preserved Jira keys to their tasks.
func indexByJiraKey(tasks []*taskfile.Task) map[string]*taskfile.Task {
	idx := make(map[string]*taskfile.Task)
	for _, t := range tasks {
		raw, ok := t.Extra["jira"]
		if !ok {
			continue
		}
		var meta jiraMeta
		if json.Unmarshal(raw, &meta) == nil && meta.Key != "" {
			idx[meta.Key] = t
		}
	}
	return idx
}

// refresh copies the Jira-owned fields onto an existing task, reporting
// whether anything changed. Status and history belong to fleet once the
// task exists.
func refresh(dst, src *taskfile.Task) bool {
	changed := false
	if dst.Title != src.Title {
		dst.Title = src.Title
		changed = true
	}
	if dst.Description != src.Description {
		dst.Description = src.Description
		changed = true
	}
	if !equalStrings(dst.Labels, src.Labels) {
		dst.Labels = src.Labels
		changed = true
	}
	if !equalStrings(dst.BlockedBy, src.BlockedBy) {
		dst.BlockedBy = src.BlockedBy
		changed = true
	}
	return changed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
