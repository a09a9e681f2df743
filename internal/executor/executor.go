// Package executor spawns and supervises worker subprocesses.
//
// A worker receives its prompt on stdin and runs in the task's project
// directory. The executor drains stdout and stderr concurrently, waits for
// exit, and records the terminal status through the journal before
// returning. A non-zero worker exit is a recorded outcome, not an
// executor error; only spawn failures are errors.
package executor

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/fleet/internal/dispatch"
	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
	"github.com/randalmurphal/fleet/internal/journal"
	"github.com/randalmurphal/fleet/internal/logging"
	"github.com/randalmurphal/fleet/internal/runlog"
)

// Result is the outcome of one supervised worker run.
type Result struct {
	RunID       string
	TaskID      string
	ExitCode    int
	Stdout      string
	Stderr      string
	StartedAt   time.Time
	CompletedAt time.Time
}

// SpawnFunc starts the worker process described by desc and returns the
// running command with its stdout and stderr pipes. Tests substitute it
// to avoid spawning real processes.
type SpawnFunc func(ctx context.Context, desc *dispatch.Descriptor) (*exec.Cmd, io.ReadCloser, io.ReadCloser, error)

// Options controls one execution.
type Options struct {
	// OnStdout and OnStderr receive each output line as it arrives.
	OnStdout func(line string)
	OnStderr func(line string)
	// Spawn overrides the default process launcher.
	Spawn SpawnFunc
}

// Executor supervises worker subprocesses for the orchestrator.
type Executor struct {
	journal *journal.Journal
	runs    *runlog.Store
	log     *slog.Logger
}

// New creates an executor. runs may be nil to skip run-log recording.
func New(j *journal.Journal, runs *runlog.Store) *Executor {
	return &Executor{
		journal: j,
		runs:    runs,
		log:     logging.Module("executor"),
	}
}

// defaultSpawn launches the worker with exec.CommandContext, writes the
// prompt to stdin, and returns the output pipes.
func defaultSpawn(ctx context.Context, desc *dispatch.Descriptor) (*exec.Cmd, io.ReadCloser, io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, desc.Command, desc.Args...)
	cmd.Dir = desc.WorkingDirectory
	if len(desc.Env) > 0 {
		cmd.Env = append(os.Environ(), desc.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, nil, err
	}

	// The worker reads the whole prompt before producing output, so the
	// write happens off the supervise path.
	go func() {
		defer stdin.Close()
		io.WriteString(stdin, desc.Prompt)
	}()

	return cmd, stdout, stderr, nil
}

// Execute runs the worker described by desc and supervises it to
// completion. The task's terminal status (completed on exit 0, failed
// otherwise) is durably journaled before Execute returns. The returned
// error is non-nil only when the worker could not be spawned or the
// terminal status could not be recorded.
func (e *Executor) Execute(ctx context.Context, desc *dispatch.Descriptor, opts Options) (*Result, error) {
	spawn := opts.Spawn
	if spawn == nil {
		spawn = defaultSpawn
	}

	runID := uuid.NewString()
	started := time.Now()
	e.log.Info("worker starting",
		"run_id", runID,
		"task_id", desc.TaskID,
		"command", desc.Command,
		"tier", desc.Tier,
	)

	cmd, stdout, stderr, err := spawn(ctx, desc)
	if err != nil {
		spawnErr := fleeterrors.ErrSpawn(desc.Command, err)
		if recErr := e.journal.RecordCompletion(desc.TaskID, -1, "spawn failed: "+err.Error()); recErr != nil {
			e.log.Error("failed to record spawn failure", "task_id", desc.TaskID, "error", recErr)
		}
		return nil, spawnErr
	}

	var outBuf, errBuf strings.Builder
	var g errgroup.Group
	g.Go(func() error { return drainLines(stdout, &outBuf, opts.OnStdout) })
	g.Go(func() error { return drainLines(stderr, &errBuf, opts.OnStderr) })
	drainErr := g.Wait()

	code, recErr := e.journal.WatchWorkerCompletion(desc.TaskID, cmd, errBuf.String)
	completed := time.Now()

	res := &Result{
		RunID:       runID,
		TaskID:      desc.TaskID,
		ExitCode:    code,
		Stdout:      outBuf.String(),
		Stderr:      errBuf.String(),
		StartedAt:   started,
		CompletedAt: completed,
	}
	if recErr != nil {
		return res, recErr
	}
	e.recordRun(ctx, desc, res)

	if drainErr != nil {
		e.log.Warn("worker output drain error", "run_id", runID, "error", drainErr)
	}
	e.log.Info("worker finished",
		"run_id", runID,
		"task_id", desc.TaskID,
		"exit_code", code,
		"duration", completed.Sub(started).Round(time.Millisecond),
	)
	return res, nil
}

// recordRun writes the run to the run log. Recording is best-effort: the
// journal already holds the authoritative outcome.
func (e *Executor) recordRun(ctx context.Context, desc *dispatch.Descriptor, res *Result) {
	if e.runs == nil {
		return
	}
	err := e.runs.RecordRun(ctx, runlog.Run{
		RunID:       res.RunID,
		TaskID:      res.TaskID,
		Project:     projectOf(res.TaskID),
		Tier:        string(desc.Tier),
		ExitCode:    res.ExitCode,
		StartedAt:   res.StartedAt,
		CompletedAt: res.CompletedAt,
		StdoutBytes: len(res.Stdout),
		StderrBytes: len(res.Stderr),
	})
	if err != nil {
		e.log.Warn("run log write failed", "run_id", res.RunID, "error", err)
	}
}

func projectOf(taskID string) string {
	if i := strings.IndexByte(taskID, '/'); i > 0 {
		return taskID[:i]
	}
	return ""
}

// drainLines copies r line by line into buf, invoking onLine per line.
func drainLines(r io.Reader, buf *strings.Builder, onLine func(string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		if onLine != nil {
			onLine(line)
		}
	}
	return sc.Err()
}
