// Package orchestrator runs the scan → score → dispatch → execute loop.
//
// Each iteration rescans the workspace from disk, so status changes made
// by the previous worker (or by a human editing a task file between
// iterations) feed directly into the next selection. The loop stops when
// no eligible task remains, the iteration cap is reached, or the context
// is cancelled. Cancellation is cooperative: a running worker finishes
// and its outcome is journaled before the loop exits.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/randalmurphal/fleet/internal/config"
	"github.com/randalmurphal/fleet/internal/dispatch"
	"github.com/randalmurphal/fleet/internal/executor"
	"github.com/randalmurphal/fleet/internal/journal"
	"github.com/randalmurphal/fleet/internal/logging"
	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/runlog"
	"github.com/randalmurphal/fleet/internal/scanner"
	"github.com/randalmurphal/fleet/internal/scorer"
	"github.com/randalmurphal/fleet/internal/taskfile"
)

// Options controls one orchestrator run.
type Options struct {
	// FocusLabel biases scoring toward tasks carrying this label.
	FocusLabel string
	// MaxIterations caps the number of worker runs; 0 means unbounded.
	MaxIterations int
	// DryRun dispatches the top candidate and reports it without
	// spawning a worker, then stops.
	DryRun bool
	// Executor options are passed through to each worker run.
	ExecOptions executor.Options
}

// Summary is the outcome of one orchestrator run.
type Summary struct {
	Iterations int
	Succeeded  int
	Failed     int
	// Stopped names why the loop ended: "exhausted", "max_iterations",
	// "cancelled", or "dry_run".
	Stopped string
}

// Orchestrator owns the component wiring for a workspace.
type Orchestrator struct {
	workspace  string
	cfg        *config.Config
	reg        *registry.Registry
	journal    *journal.Journal
	dispatcher *dispatch.Dispatcher
	executor   *executor.Executor
	log        *slog.Logger
}

// New wires an orchestrator over a loaded registry. runs may be nil.
func New(workspace string, cfg *config.Config, reg *registry.Registry, runs *runlog.Store) *Orchestrator {
	j := journal.New(workspace, reg)
	return &Orchestrator{
		workspace:  workspace,
		cfg:        cfg,
		reg:        reg,
		journal:    j,
		dispatcher: dispatch.New(workspace, cfg, j),
		executor:   executor.New(j, runs),
		log:        logging.Module("orchestrator"),
	}
}

// Journal exposes the orchestrator's journal for callers that need to
// apply manual status changes with the same guarantees.
func (o *Orchestrator) Journal() *journal.Journal {
	return o.journal
}

// Run executes the loop until no work remains or a stop condition hits.
// Scan-level errors on individual projects degrade to fewer candidates;
// only a registry-level failure aborts the run.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	for {
		if ctx.Err() != nil {
			sum.Stopped = "cancelled"
			return sum, nil
		}
		if opts.MaxIterations > 0 && sum.Iterations >= opts.MaxIterations {
			sum.Stopped = "max_iterations"
			return sum, nil
		}

		res, err := scanner.Scan(o.workspace, o.reg, scanner.Options{})
		if err != nil {
			return sum, err
		}

		next := o.pick(res, opts.FocusLabel)
		if next == nil {
			sum.Stopped = "exhausted"
			o.log.Info("no eligible tasks remain", "iterations", sum.Iterations)
			return sum, nil
		}

		desc, err := o.dispatcher.Dispatch(next.Task.ID, dispatch.Options{DryRun: opts.DryRun})
		if err != nil {
			return sum, err
		}
		if opts.DryRun {
			o.log.Info("dry run: would execute",
				"task_id", desc.TaskID,
				"score", next.Score.Total,
				"token_estimate", desc.Meta.TokenEstimate,
			)
			sum.Stopped = "dry_run"
			return sum, nil
		}

		run, err := o.executor.Execute(ctx, desc, opts.ExecOptions)
		sum.Iterations++
		if err != nil {
			// Spawn failure or an unrecordable outcome; the journal has
			// already marked the task failed where possible.
			sum.Failed++
			o.log.Error("worker run failed", "task_id", desc.TaskID, "error", err)
			continue
		}
		if run.ExitCode == 0 {
			sum.Succeeded++
		} else {
			sum.Failed++
		}
	}
}

// pick returns the highest-scoring eligible task: not terminal, not
// already running, and not hard-blocked (dependency factor zero).
func (o *Orchestrator) pick(res *scanner.Result, focusLabel string) *scorer.Scored {
	scored := scorer.ScoreTasks(res.Tasks, scorer.Options{FocusLabel: focusLabel})
	for i := range scored {
		s := &scored[i]
		if s.Task.Status == taskfile.StatusInProgress {
			continue
		}
		if s.Score.Dependency == 0 && len(s.Task.BlockedBy) > 0 {
			continue
		}
		return s
	}
	return nil
}
