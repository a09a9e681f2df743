// Package dispatch turns a selected task into a ready-to-run worker
// descriptor: the assembled prompt, the subprocess arguments and
// environment for the task's model tier, and the working directory.
//
// Dispatching a task transitions it to in_progress through the journal
// before the descriptor is returned, so a task can never be handed to two
// workers.
package dispatch

import (
	"fmt"
	"log/slog"

	"github.com/randalmurphal/fleet/internal/config"
	"github.com/randalmurphal/fleet/internal/journal"
	"github.com/randalmurphal/fleet/internal/logging"
	"github.com/randalmurphal/fleet/internal/taskfile"
)

// Meta describes how the prompt was assembled.
type Meta struct {
	TokenEstimate int      `json:"token_estimate"`
	FilesIncluded []string `json:"files_included,omitempty"`
	FilesTrimmed  int      `json:"files_trimmed,omitempty"`
	FilesMissing  []string `json:"files_missing,omitempty"`
}

// Descriptor is everything the executor needs to spawn a worker.
type Descriptor struct {
	TaskID           string
	Prompt           string
	WorkingDirectory string
	Command          string
	Args             []string
	Env              []string
	MaxTurns         int
	Tier             taskfile.ModelTier
	Meta             Meta
}

// Options controls a dispatch.
type Options struct {
	// DryRun is advisory for callers that print the descriptor instead of
	// spawning a worker. The in_progress transition still happens so the
	// dry run exercises the same claim path as a real dispatch.
	DryRun bool
}

// Dispatcher assembles worker descriptors.
type Dispatcher struct {
	workspace string
	cfg       *config.Config
	journal   *journal.Journal
	log       *slog.Logger
}

// New creates a dispatcher.
func New(workspace string, cfg *config.Config, j *journal.Journal) *Dispatcher {
	return &Dispatcher{
		workspace: workspace,
		cfg:       cfg,
		journal:   j,
		log:       logging.Module("dispatch"),
	}
}

// Dispatch prepares a worker descriptor for taskID and marks the task
// in_progress. A task that is already in_progress fails with
// TASK_ALREADY_RUNNING before any descriptor work happens.
func (d *Dispatcher) Dispatch(taskID string, opts Options) (*Descriptor, error) {
	loc, err := d.journal.Locate(taskID)
	if err != nil {
		return nil, err
	}

	if err := d.journal.UpdateStatus(taskID, taskfile.StatusInProgress, journal.UpdateOptions{
		Summary: "dispatched to worker",
	}); err != nil {
		return nil, err
	}

	prompt, meta := buildPrompt(d.workspace, loc)

	tier := loc.Task.GetModelTier()
	desc := &Descriptor{
		TaskID:           taskID,
		Prompt:           prompt,
		WorkingDirectory: loc.Project.Dir(d.workspace),
		Command:          d.cfg.WorkerCommand,
		Args:             d.workerArgs(tier),
		Env:              d.workerEnv(tier),
		MaxTurns:         d.cfg.MaxTurns,
		Tier:             tier,
		Meta:             meta,
	}

	d.log.Info("task dispatched",
		"task_id", taskID,
		"tier", tier,
		"token_estimate", meta.TokenEstimate,
		"files_included", len(meta.FilesIncluded),
		"files_trimmed", meta.FilesTrimmed,
		"dry_run", opts.DryRun,
	)
	return desc, nil
}

// workerArgs builds the subprocess argument list for a model tier.
func (d *Dispatcher) workerArgs(tier taskfile.ModelTier) []string {
	args := append([]string{}, d.cfg.WorkerBaseArgs...)
	args = append(args, "--max-turns", fmt.Sprintf("%d", d.cfg.MaxTurns))
	if tier == taskfile.TierLocal {
		args = append(args, "--model", d.cfg.LocalModel)
	}
	return args
}

// workerEnv returns the extra environment for a model tier. The local
// tier reroutes the worker to the configured local endpoint; the opus
// tier inherits the parent environment unchanged.
func (d *Dispatcher) workerEnv(tier taskfile.ModelTier) []string {
	if tier != taskfile.TierLocal {
		return nil
	}
	return []string{
		"ANTHROPIC_BASE_URL=" + d.cfg.OllamaBaseURL,
		"ANTHROPIC_AUTH_TOKEN=unused",
	}
}
