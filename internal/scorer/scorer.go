// Package scorer ranks tasks by a bounded multi-factor priority score.
//
// Five factors, each in [0,100], combine under fixed weights that sum to
// 1.0. A numeric priority_override replaces the computed score verbatim.
package scorer

import (
	"math"
	"sort"
	"time"

	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/scanner"
	"github.com/randalmurphal/fleet/internal/taskfile"
)

// Factor weights. They must sum to 1.0.
const (
	WeightMaturity   = 0.20
	WeightImpact     = 0.30
	WeightDependency = 0.20
	WeightEffort     = 0.15
	WeightPreference = 0.15
)

// Score holds the computed factors and the combined total for one task.
type Score struct {
	Total      float64 `json:"total"`
	Maturity   float64 `json:"maturity"`
	Impact     float64 `json:"impact"`
	Dependency float64 `json:"dependency"`
	Effort     float64 `json:"effort"`
	Preference float64 `json:"preference"`
	Overridden bool    `json:"overridden"`
}

// Scored pairs a scanned task with its score.
type Scored struct {
	Task  *scanner.Task
	Score Score
}

// Options controls scoring.
type Options struct {
	// FocusLabel adds a preference bonus to tasks carrying this label.
	FocusLabel string
	// Now anchors the recency bonus; the zero value means time.Now().
	Now time.Time
	// IncludeTerminal keeps completed and failed tasks in batch results.
	IncludeTerminal bool
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// maturityByStatus maps project lifecycle status to the maturity factor.
// Unknown statuses score zero.
var maturityByStatus = map[registry.ProjectStatus]float64{
	registry.StatusBuildable:       100,
	registry.StatusNearBuildable:   80,
	registry.StatusScaffoldingPlus: 60,
	registry.StatusScaffolding:     40,
	registry.StatusBlocked:         10,
}

// effortMultiplier maps complexity to the effort discount. Unknown
// complexity behaves like S.
var effortMultiplier = map[taskfile.Complexity]float64{
	taskfile.ComplexityS:  1.0,
	taskfile.ComplexityM:  0.75,
	taskfile.ComplexityL:  0.5,
	taskfile.ComplexityXL: 0.3,
}

// labelBonus is the per-label impact bonus.
var labelBonus = map[string]float64{
	"bugfix":   10,
	"test":     10,
	"feature":  5,
	"infra":    5,
	"docs":     0,
	"refactor": 0,
}

// ScoreTask computes the score for one task against the merged collection.
// all maps task id to its persisted record for dependency resolution;
// sameProject holds every scanned task (used for last-blocker detection).
func ScoreTask(t *scanner.Task, all map[string]*taskfile.Task, sameProject []*scanner.Task, opts Options) Score {
	s := Score{
		Maturity:   maturity(t),
		Impact:     impact(t, sameProject),
		Dependency: dependency(t.Task, all),
	}
	s.Effort = s.Impact * multiplier(t.GetComplexity())
	s.Preference = preference(t, opts)

	s.Total = s.Maturity*WeightMaturity +
		s.Impact*WeightImpact +
		s.Dependency*WeightDependency +
		s.Effort*WeightEffort +
		s.Preference*WeightPreference
	s.Total = clamp(s.Total)

	if t.PriorityOverride != nil {
		s.Total = *t.PriorityOverride
		s.Overridden = true
	}
	return s
}

// ScoreTasks scores a batch and returns it sorted by descending score.
// Completed and failed tasks are filtered out unless IncludeTerminal is
// set. Ties break on higher impact, then smaller complexity, then
// lexicographic id.
func ScoreTasks(tasks []*scanner.Task, opts Options) []Scored {
	all := make(map[string]*taskfile.Task, len(tasks))
	for _, t := range tasks {
		all[t.ID] = t.Task
	}

	scored := make([]Scored, 0, len(tasks))
	for _, t := range tasks {
		if !opts.IncludeTerminal && t.Status.IsTerminal() {
			continue
		}
		scored = append(scored, Scored{Task: t, Score: ScoreTask(t, all, tasks, opts)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Score.Total != b.Score.Total {
			return a.Score.Total > b.Score.Total
		}
		if a.Score.Impact != b.Score.Impact {
			return a.Score.Impact > b.Score.Impact
		}
		ra, rb := a.Task.GetComplexity().Rank(), b.Task.GetComplexity().Rank()
		if ra != rb {
			return ra < rb
		}
		return a.Task.ID < b.Task.ID
	})
	return scored
}

func maturity(t *scanner.Task) float64 {
	if t.Project == nil {
		return 0
	}
	return maturityByStatus[t.Project.Status]
}

// impact sums the value signals on a task, capped at 100.
func impact(t *scanner.Task, sameProject []*scanner.Task) float64 {
	var v float64
	if len(t.Feature.AcceptanceCriteria) > 0 {
		v += 20
	}
	if t.Feature.Description != "" {
		v += 10
	}
	if t.GithubIssue != "" {
		v += 10
	}
	v += math.Min(float64(len(t.Unlocks))*15, 45)
	if milestoneMatches(t) {
		v += 15
		if lastBlocker(t, sameProject) {
			v += 25
		}
	}
	for _, label := range t.Labels {
		v += labelBonus[label]
	}
	return math.Min(v, 100)
}

// milestoneMatches reports whether the task's milestone equals the
// file-level milestone of its task file.
func milestoneMatches(t *scanner.Task) bool {
	return t.Task.Milestone != "" && t.FileMilestone != nil &&
		t.FileMilestone.Name == t.Task.Milestone
}

// lastBlocker reports whether no other non-completed task in the same
// project shares the task's milestone.
func lastBlocker(t *scanner.Task, tasks []*scanner.Task) bool {
	for _, other := range tasks {
		if other.ID == t.ID || other.ProjectName != t.ProjectName {
			continue
		}
		if other.Task.Milestone == t.Task.Milestone && other.Status != taskfile.StatusCompleted {
			return false
		}
	}
	return true
}

// dependency scores the task's blocker set.
//
//	no blockers, or all blockers completed       → 100
//	any blocker unresolved in the collection     → 0
//	any blocker pending, blocked, or failed      → 0
//	remaining non-completed blockers in progress → 50
func dependency(t *taskfile.Task, all map[string]*taskfile.Task) float64 {
	if len(t.BlockedBy) == 0 {
		return 100
	}
	notCompleted := 0
	for _, id := range t.BlockedBy {
		blocker, ok := all[id]
		if !ok {
			return 0
		}
		switch blocker.Status {
		case taskfile.StatusCompleted:
		case taskfile.StatusInProgress:
			notCompleted++
		default:
			// pending, blocked, failed
			return 0
		}
	}
	if notCompleted == 0 {
		return 100
	}
	return 50
}

func multiplier(c taskfile.Complexity) float64 {
	m, ok := effortMultiplier[c]
	if !ok {
		return 1.0
	}
	return m
}

// preference starts at 50, with +20 for tasks created in the last 24
// hours and +30 for a focus-label match.
func preference(t *scanner.Task, opts Options) float64 {
	v := 50.0
	if !t.CreatedAt.IsZero() && opts.now().Sub(t.CreatedAt) < 24*time.Hour {
		v += 20
	}
	if opts.FocusLabel != "" && t.HasLabel(opts.FocusLabel) {
		v += 30
	}
	return v
}

func clamp(v float64) float64 {
	return math.Min(math.Max(v, 0), 100)
}
