// Package bridge mirrors tasks to a remote issue tracker and pulls status
// changes back. Task files stay authoritative for everything except
// statuses applied during a pull.
//
// Push creates one issue per unmapped non-terminal task (with a hidden
// task-id metadata block in the body), refreshes mapped issues, and
// closes issues whose tasks completed. Pull walks the bridge-owned open
// issues, re-derives each task's status from issue state and labels, and
// applies changes through the journal.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/fleet/internal/journal"
	"github.com/randalmurphal/fleet/internal/logging"
	"github.com/randalmurphal/fleet/internal/scanner"
	"github.com/randalmurphal/fleet/internal/taskfile"
	"github.com/randalmurphal/fleet/internal/tracker"
)

// SyncError is one non-fatal problem encountered during a sync pass.
type SyncError struct {
	TaskID string `json:"task_id,omitempty"`
	Issue  int    `json:"issue,omitempty"`
	Op     string `json:"op"`
	Err    string `json:"error"`
}

// SyncResult summarizes one push or pull pass.
type SyncResult struct {
	Created int
	Updated int
	Closed  int
	Applied int
	Skipped int
	Errors  []SyncError
}

// Options controls a sync pass.
type Options struct {
	// DryRun logs what would change without touching the tracker or the
	// task files.
	DryRun bool
}

// Bridge syncs one workspace against one tracker provider.
type Bridge struct {
	workspace   string
	provider    tracker.Provider
	journal     *journal.Journal
	concurrency int
	log         *slog.Logger

	mu sync.Mutex // guards imap mutation and result counters
}

// New creates a bridge. concurrency bounds parallel tracker calls; values
// below 1 are treated as 1.
func New(workspace string, provider tracker.Provider, j *journal.Journal, concurrency int) *Bridge {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Bridge{
		workspace:   workspace,
		provider:    provider,
		journal:     j,
		concurrency: concurrency,
		log:         logging.Module("bridge"),
	}
}

// Push mirrors the scanned tasks outward. The issue map gains one entry
// per created issue and is saved once at the end; a create whose mapping
// could not be persisted is reported as an error so the next push can
// reconcile via the body metadata.
func (b *Bridge) Push(ctx context.Context, tasks []*scanner.Task, opts Options) (*SyncResult, error) {
	imap, err := LoadIssueMap(b.workspace)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for _, t := range tasks {
		g.Go(func() error {
			b.pushTask(gctx, t, imap, opts, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	if !opts.DryRun && res.Created > 0 {
		if err := imap.Save(b.workspace); err != nil {
			return res, fmt.Errorf("save issue map: %w", err)
		}
	}
	b.log.Info("push complete",
		"created", res.Created,
		"updated", res.Updated,
		"closed", res.Closed,
		"errors", len(res.Errors),
		"dry_run", opts.DryRun,
	)
	return res, nil
}

func (b *Bridge) pushTask(ctx context.Context, t *scanner.Task, imap *IssueMap, opts Options, res *SyncResult) {
	b.mu.Lock()
	number, mapped := imap.IssueFor(t.ID)
	b.mu.Unlock()

	switch {
	case !mapped && !t.Status.IsTerminal():
		if opts.DryRun {
			b.log.Info("dry run: would create issue", "task_id", t.ID)
			b.count(res, func(r *SyncResult) { r.Created++ })
			return
		}
		issue, err := b.provider.CreateIssue(ctx, tracker.CreateOptions{
			Title:  t.Title,
			Body:   IssueBody(t.Task),
			Labels: LabelsFor(t.Task),
		})
		if err != nil {
			b.fail(res, SyncError{TaskID: t.ID, Op: "create", Err: err.Error()})
			return
		}
		b.mu.Lock()
		imap.Pair(t.ID, issue.Number)
		res.Created++
		b.mu.Unlock()

	case mapped && t.Status == taskfile.StatusCompleted:
		issue, err := b.provider.GetIssue(ctx, number)
		if err != nil {
			b.fail(res, SyncError{TaskID: t.ID, Issue: number, Op: "get", Err: err.Error()})
			return
		}
		if issue.IsClosed() {
			b.count(res, func(r *SyncResult) { r.Skipped++ })
			return
		}
		if opts.DryRun {
			b.log.Info("dry run: would close issue", "task_id", t.ID, "issue", number)
			b.count(res, func(r *SyncResult) { r.Closed++ })
			return
		}
		comment := "Completed by fleet."
		if s := lastSummary(t.Task); s != "" {
			comment = "Completed by fleet.\n\n" + s
		}
		if err := b.provider.CloseIssue(ctx, number, comment); err != nil {
			b.fail(res, SyncError{TaskID: t.ID, Issue: number, Op: "close", Err: err.Error()})
			return
		}
		b.count(res, func(r *SyncResult) { r.Closed++ })

	case mapped:
		if opts.DryRun {
			b.count(res, func(r *SyncResult) { r.Updated++ })
			return
		}
		_, err := b.provider.UpdateIssue(ctx, number, tracker.UpdateOptions{
			Title:         t.Title,
			Body:          IssueBody(t.Task),
			Labels:        LabelsFor(t.Task),
			ReplaceLabels: true,
		})
		if err != nil {
			b.fail(res, SyncError{TaskID: t.ID, Issue: number, Op: "update", Err: err.Error()})
			return
		}
		b.count(res, func(r *SyncResult) { r.Updated++ })

	default:
		// Terminal and never mirrored; nothing to do.
		b.count(res, func(r *SyncResult) { r.Skipped++ })
	}
}

// Pull applies remote state inward. Open bridge-owned issues drive status
// from their labels; mapped issues that are no longer open mark their
// tasks completed. An owned issue without a task-id metadata block is an
// error, never a guess.
func (b *Bridge) Pull(ctx context.Context, opts Options) (*SyncResult, error) {
	imap, err := LoadIssueMap(b.workspace)
	if err != nil {
		return nil, err
	}

	open, err := b.provider.ListOpenIssues(ctx, ManagedLabel)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{}
	openNums := make(map[int]bool, len(open))
	remapped := false

	for _, issue := range open {
		openNums[issue.Number] = true

		taskID, ok := ExtractTaskID(issue.Body)
		if !ok {
			b.fail(res, SyncError{Issue: issue.Number, Op: "identify",
				Err: "managed issue has no task_id metadata"})
			continue
		}
		if _, mapped := imap.TaskFor(issue.Number); !mapped {
			imap.Pair(taskID, issue.Number)
			remapped = true
		}

		want, ok := StatusFromLabels(issue.Labels)
		if !ok {
			b.count(res, func(r *SyncResult) { r.Skipped++ })
			continue
		}
		b.apply(taskID, issue.Number, want, opts, res)
	}

	// A mapped issue absent from the open set was closed remotely.
	for taskID, number := range imap.TaskToIssue {
		if openNums[number] {
			continue
		}
		b.apply(taskID, number, taskfile.StatusCompleted, opts, res)
	}

	if remapped && !opts.DryRun {
		if err := imap.Save(b.workspace); err != nil {
			return res, fmt.Errorf("save issue map: %w", err)
		}
	}
	b.log.Info("pull complete",
		"applied", res.Applied,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"dry_run", opts.DryRun,
	)
	return res, nil
}

// apply journals one derived status, skipping no-ops and missing tasks.
func (b *Bridge) apply(taskID string, number int, want taskfile.Status, opts Options, res *SyncResult) {
	current, err := b.journal.GetStatus(taskID)
	if err != nil {
		b.fail(res, SyncError{TaskID: taskID, Issue: number, Op: "locate", Err: err.Error()})
		return
	}
	if current == want {
		b.count(res, func(r *SyncResult) { r.Skipped++ })
		return
	}
	if opts.DryRun {
		b.log.Info("dry run: would apply status",
			"task_id", taskID, "issue", number, "from", current, "to", want)
		b.count(res, func(r *SyncResult) { r.Applied++ })
		return
	}
	err = b.journal.UpdateStatus(taskID, want, journal.UpdateOptions{
		Summary: fmt.Sprintf("synced from issue #%d", number),
	})
	if err != nil {
		b.fail(res, SyncError{TaskID: taskID, Issue: number, Op: "apply", Err: err.Error()})
		return
	}
	b.count(res, func(r *SyncResult) { r.Applied++ })
}

func (b *Bridge) count(res *SyncResult, fn func(*SyncResult)) {
	b.mu.Lock()
	fn(res)
	b.mu.Unlock()
}

func (b *Bridge) fail(res *SyncResult, e SyncError) {
	b.mu.Lock()
	res.Errors = append(res.Errors, e)
	b.mu.Unlock()
}

// lastSummary returns the agent summary of the task's most recent
// transition, if any.
func lastSummary(t *taskfile.Task) string {
	for i := len(t.History) - 1; i >= 0; i-- {
		if t.History[i].AgentSummary != "" {
			return t.History[i].AgentSummary
		}
	}
	return ""
}
