// Package journal is the single writer of task status on disk.
//
// Every mutation locates the task in its project's task file, appends
// exactly one history entry, updates status and updated_at, and commits
// with an atomic write while holding the file's in-process lock.
package journal

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
	"github.com/randalmurphal/fleet/internal/lock"
	"github.com/randalmurphal/fleet/internal/logging"
	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/taskfile"
	"github.com/randalmurphal/fleet/internal/util"
)

// Journal mutates task files on behalf of the dispatcher, executor, and
// bridge.
type Journal struct {
	workspace string
	reg       *registry.Registry
	log       *slog.Logger
}

// New creates a journal over a workspace and its registry. All journals
// in a process share the lock registry, so two journal instances over
// the same file still serialize.
func New(workspace string, reg *registry.Registry) *Journal {
	return &Journal{
		workspace: workspace,
		reg:       reg,
		log:       logging.Module("journal"),
	}
}

// UpdateOptions carries the optional parts of a status update.
type UpdateOptions struct {
	// Summary is recorded as the history entry's agent_summary.
	Summary string
	// Now overrides the transition timestamp; zero means time.Now().
	Now time.Time
}

func (o UpdateOptions) now() time.Time {
	if o.Now.IsZero() {
		return time.Now().UTC()
	}
	return o.Now
}

// Located identifies a task together with its containing file.
type Located struct {
	Task    *taskfile.Task
	File    *taskfile.File
	Project *registry.Project
	Path    string
}

// Locate resolves a task id to its project file and record. The project
// is derived from the id prefix; an unknown project or missing task is
// TASK_NOT_FOUND.
func (j *Journal) Locate(taskID string) (*Located, error) {
	projName := taskfile.ProjectOf(taskID)
	if projName == "" {
		return nil, fleeterrors.ErrTaskNotFound(taskID)
	}
	proj := j.reg.Get(projName)
	if proj == nil {
		return nil, fleeterrors.ErrTaskNotFound(taskID)
	}

	path := proj.TasksPath(j.workspace)
	read, err := taskfile.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fleeterrors.ErrTaskNotFound(taskID)
		}
		return nil, err
	}

	t := read.File.Find(taskID)
	if t == nil {
		return nil, fleeterrors.ErrTaskNotFound(taskID)
	}
	return &Located{Task: t, File: read.File, Project: proj, Path: path}, nil
}

// GetStatus returns the task's current status.
func (j *Journal) GetStatus(taskID string) (taskfile.Status, error) {
	loc, err := j.Locate(taskID)
	if err != nil {
		return "", err
	}
	return loc.Task.Status, nil
}

// UpdateStatus transitions a task to newStatus, appending the history
// entry {from_status, to_status, timestamp, agent_summary}.
//
// The in_progress → in_progress transition is rejected with
// TASK_ALREADY_RUNNING: that guard is what guarantees at most one worker
// per task id. The terminal write is durable before this returns.
func (j *Journal) UpdateStatus(taskID string, newStatus taskfile.Status, opts UpdateOptions) error {
	if !taskfile.IsValidStatus(newStatus) {
		return fleeterrors.ErrInvalidStatus(string(newStatus))
	}

	projName := taskfile.ProjectOf(taskID)
	proj := j.reg.Get(projName)
	if proj == nil {
		return fleeterrors.ErrTaskNotFound(taskID)
	}
	path := proj.TasksPath(j.workspace)

	return lock.With(path, func() error {
		read, err := taskfile.Read(path)
		if err != nil {
			if os.IsNotExist(err) {
				return fleeterrors.ErrTaskNotFound(taskID)
			}
			return err
		}

		t := read.File.Find(taskID)
		if t == nil {
			return fleeterrors.ErrTaskNotFound(taskID)
		}
		if t.Status == taskfile.StatusInProgress && newStatus == taskfile.StatusInProgress {
			return fleeterrors.ErrTaskAlreadyRunning(taskID)
		}

		now := opts.now()
		t.History = append(t.History, taskfile.HistoryEntry{
			FromStatus:   t.Status,
			ToStatus:     newStatus,
			Timestamp:    now,
			AgentSummary: opts.Summary,
		})
		from := t.Status
		t.Status = newStatus
		t.UpdatedAt = now

		if err := taskfile.Write(path, read.File); err != nil {
			return err
		}

		j.log.Info("status transition",
			"task_id", taskID,
			"from", from,
			"to", newStatus,
		)
		return nil
	})
}

// stderrSummaryLines bounds how much stderr lands in a failure summary.
const stderrSummaryLines = 5

// RecordCompletion records a worker's terminal state: exit code 0 is
// completed, anything else is failed with a summary carrying the exit
// code and the head of stderr.
func (j *Journal) RecordCompletion(taskID string, exitCode int, stderr string) error {
	if exitCode == 0 {
		return j.UpdateStatus(taskID, taskfile.StatusCompleted, UpdateOptions{
			Summary: "worker exited 0",
		})
	}
	summary := fmt.Sprintf("worker exited %d", exitCode)
	if head := util.HeadLines(stderr, stderrSummaryLines); head != "" {
		summary += ": " + head
	}
	return j.UpdateStatus(taskID, taskfile.StatusFailed, UpdateOptions{Summary: summary})
}

// WatchWorkerCompletion waits for a started worker process and records
// its terminal status through RecordCompletion. stderr supplies whatever
// stderr output the caller captured; it feeds the failure summary. The
// exit code is returned, -1 when the wait produced none.
func (j *Journal) WatchWorkerCompletion(taskID string, cmd *exec.Cmd, stderr func() string) (int, error) {
	code := exitCode(cmd.Wait())
	var tail string
	if stderr != nil {
		tail = stderr()
	}
	return code, j.RecordCompletion(taskID, code, tail)
}

// exitCode extracts the process exit code from a Wait error. A nil error
// is exit 0; a failure that produced no exit code is reported as -1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if ok := asExitError(err, &exitErr); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func asExitError(err error, target **exec.ExitError) bool {
	for err != nil {
		if ee, ok := err.(*exec.ExitError); ok {
			*target = ee
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
