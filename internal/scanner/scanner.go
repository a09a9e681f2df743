// Package scanner discovers pending work across all registered projects.
//
// It loads every project's task file through the codec, merges the tasks
// into one in-memory collection, and attaches transient backrefs (project
// entry, project name, file-level milestone). Backrefs are never written
// back to disk.
package scanner

import (
	"fmt"
	"log/slog"
	"os"

	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
	"github.com/randalmurphal/fleet/internal/logging"
	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/taskfile"
)

// Task is the scanner's enriched view of a persisted task. It embeds the
// on-disk record and carries the in-memory backrefs.
type Task struct {
	*taskfile.Task

	Project       *registry.Project
	ProjectName   string
	FileMilestone *taskfile.Milestone
	FilePath      string
}

// Error is one scan diagnostic. Type is "parse_error" for unreadable
// files, "validation_error" for dropped tasks, and "unknown_field" for
// preserved unknown attributes (warnings only).
type Error struct {
	Type      string `json:"type"`
	Project   string `json:"project"`
	Path      string `json:"path"`
	TaskIndex int    `json:"task_index,omitempty"`
	TaskID    string `json:"task_id,omitempty"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}

func (e Error) String() string {
	return fmt.Sprintf("%s [%s] %s: %s", e.Type, e.Project, e.Path, e.Message)
}

// Result is the merged output of one scan.
type Result struct {
	Tasks    []*Task
	Errors   []Error
	Warnings []Error
}

// TaskByID returns the scanned task with the given id, or nil.
func (r *Result) TaskByID(id string) *Task {
	for _, t := range r.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// Collection returns the merged tasks keyed by id, as needed by the
// scorer's dependency resolution.
func (r *Result) Collection() map[string]*taskfile.Task {
	m := make(map[string]*taskfile.Task, len(r.Tasks))
	for _, t := range r.Tasks {
		m[t.ID] = t.Task
	}
	return m
}

// Options controls scan behavior.
type Options struct {
	// Strict fails the whole scan with an aggregated error if any error
	// or warning is present, instead of returning partial results.
	Strict bool
}

// Scan loads every registered project's task file and merges the tasks.
//
// A missing project directory or task file degrades gracefully to zero
// tasks for that project. Parse errors and dropped tasks are recorded and
// the scan continues with the remaining projects.
func Scan(workspace string, reg *registry.Registry, opts Options) (*Result, error) {
	log := logging.Module("scanner")
	res := &Result{}

	for i := range reg.Projects {
		proj := &reg.Projects[i]
		scanProject(workspace, proj, res, log)
	}

	if opts.Strict && (len(res.Errors) > 0 || len(res.Warnings) > 0) {
		return nil, fleeterrors.ErrScanFailed(len(res.Errors), len(res.Warnings))
	}
	return res, nil
}

func scanProject(workspace string, proj *registry.Project, res *Result, log *slog.Logger) {
	dir := proj.Dir(workspace)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		log.Debug("project directory missing, skipping", "project", proj.Name, "dir", dir)
		return
	}

	path := proj.TasksPath(workspace)
	read, err := taskfile.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("no task file for project", "project", proj.Name, "path", path)
			return
		}
		res.Errors = append(res.Errors, Error{
			Type:    "parse_error",
			Project: proj.Name,
			Path:    path,
			Message: err.Error(),
		})
		log.Warn("task file unreadable", "project", proj.Name, "path", path, "error", err)
		return
	}

	for _, d := range read.Dropped {
		res.Errors = append(res.Errors, Error{
			Type:      "validation_error",
			Project:   proj.Name,
			Path:      d.Path,
			TaskIndex: d.TaskIndex,
			TaskID:    d.TaskID,
			Field:     d.Field,
			Message:   d.Message,
		})
	}
	for _, d := range read.Warnings {
		res.Warnings = append(res.Warnings, Error{
			Type:      "unknown_field",
			Project:   proj.Name,
			Path:      d.Path,
			TaskIndex: d.TaskIndex,
			TaskID:    d.TaskID,
			Field:     d.Field,
			Message:   d.Message,
		})
	}

	for _, t := range read.File.Tasks {
		res.Tasks = append(res.Tasks, &Task{
			Task:          t,
			Project:       proj,
			ProjectName:   proj.Name,
			FileMilestone: read.File.Milestone,
			FilePath:      path,
		})
	}
}

// ScanWorkspace loads the registry from the workspace root and scans it.
func ScanWorkspace(workspace string, opts Options) (*Result, *registry.Registry, error) {
	reg, err := registry.Load(workspace)
	if err != nil {
		return nil, nil, err
	}
	res, err := Scan(workspace, reg, opts)
	if err != nil {
		return nil, reg, err
	}
	return res, reg, nil
}
