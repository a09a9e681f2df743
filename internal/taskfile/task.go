// Package taskfile provides the task data model and the codec for
// per-project task files (.claude/tasks/tasks.json).
//
// The codec is the only boundary where on-disk task state changes. It is
// schema-tolerant: unknown fields at the file and task level are preserved
// through read/write round-trips and surfaced as warnings rather than
// failures.
package taskfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TasksRelPath is the task file location relative to a project directory.
const TasksRelPath = ".claude/tasks/tasks.json"

// HistoryEntry records one status transition. History is append-only and
// never reordered.
type HistoryEntry struct {
	FromStatus   Status    `json:"from_status"`
	ToStatus     Status    `json:"to_status"`
	Timestamp    time.Time `json:"timestamp"`
	AgentSummary string    `json:"agent_summary,omitempty"`
}

// Feature holds the task's feature description and acceptance criteria.
type Feature struct {
	Description        string   `json:"description,omitempty"`
	AcceptanceCriteria []string `json:"acceptance_criteria,omitempty"`
}

// IsZero reports whether the feature block is entirely empty.
func (f Feature) IsZero() bool {
	return f.Description == "" && len(f.AcceptanceCriteria) == 0
}

// Milestone is the optional file-level milestone of a task file.
type Milestone struct {
	Name       string `json:"name"`
	TargetDate string `json:"target_date,omitempty"`
}

// Task represents one unit of work owned by exactly one project.
//
// The id format is "<project-name>/<slug>" and is globally unique across
// the workspace. Unknown attributes survive in Extra and are written back
// verbatim.
type Task struct {
	ID               string         `json:"id"`
	Title            string         `json:"title"`
	Status           Status         `json:"status"`
	Complexity       Complexity     `json:"complexity,omitempty"`
	BlockedBy        []string       `json:"blocked_by,omitempty"`
	Unlocks          []string       `json:"unlocks,omitempty"`
	Labels           []string       `json:"labels,omitempty"`
	Description      string         `json:"description,omitempty"`
	Feature          Feature        `json:"feature,omitzero"`
	RelevantFiles    []string       `json:"relevant_files,omitempty"`
	Milestone        string         `json:"milestone,omitempty"`
	GithubIssue      string         `json:"github_issue,omitempty"`
	PriorityOverride *float64       `json:"priority_override,omitempty"`
	ModelTier        ModelTier      `json:"model_tier,omitempty"`
	CreatedAt        time.Time      `json:"created_at,omitzero"`
	UpdatedAt        time.Time      `json:"updated_at,omitzero"`
	History          []HistoryEntry `json:"history,omitempty"`

	// Extra preserves unknown task-level attributes byte-for-byte.
	Extra map[string]json.RawMessage `json:"-"`
}

// File is the per-project task container.
type File struct {
	Version   int        `json:"version"`
	Project   string     `json:"project"`
	Milestone *Milestone `json:"milestone,omitempty"`
	Tasks     []*Task    `json:"tasks"`

	// Extra preserves unknown top-level attributes byte-for-byte.
	Extra map[string]json.RawMessage `json:"-"`
}

// ProjectOf returns the project-name prefix of a task id, or "" if the id
// has no "/" separator.
func ProjectOf(taskID string) string {
	i := strings.IndexByte(taskID, '/')
	if i <= 0 {
		return ""
	}
	return taskID[:i]
}

// GetComplexity returns the task's complexity, defaulting to M if unset.
func (t *Task) GetComplexity() Complexity {
	if t.Complexity == "" {
		return DefaultComplexity
	}
	return t.Complexity
}

// GetModelTier returns the task's model tier, defaulting to opus for unset
// or unknown values.
func (t *Task) GetModelTier() ModelTier {
	if t.ModelTier == TierLocal {
		return TierLocal
	}
	return TierOpus
}

// HasLabel reports whether the task carries the given label.
func (t *Task) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Find returns the task with the given id, or nil.
func (f *File) Find(taskID string) *Task {
	for _, t := range f.Tasks {
		if t.ID == taskID {
			return t
		}
	}
	return nil
}

// taskKnownKeys are the task-level attributes owned by the schema.
// Anything else lands in Extra.
var taskKnownKeys = map[string]bool{
	"id": true, "title": true, "status": true, "complexity": true,
	"blocked_by": true, "unlocks": true, "labels": true,
	"description": true, "feature": true, "relevant_files": true,
	"milestone": true, "github_issue": true, "priority_override": true,
	"model_tier": true, "created_at": true, "updated_at": true,
	"history": true,
}

// fileKnownKeys are the file-level attributes owned by the schema.
var fileKnownKeys = map[string]bool{
	"version": true, "project": true, "milestone": true, "tasks": true,
}

// UnmarshalJSON decodes a task, diverting unknown keys into Extra.
func (t *Task) UnmarshalJSON(data []byte) error {
	type alias Task
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if taskKnownKeys[key] {
			delete(raw, key)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}

	*t = Task(known)
	t.Extra = raw
	return nil
}

// MarshalJSON encodes a task, merging Extra back in alongside the known
// attributes.
func (t *Task) MarshalJSON() ([]byte, error) {
	type alias Task
	return marshalWithExtra((*alias)(t), t.Extra)
}

// UnmarshalJSON decodes a file container, diverting unknown keys into
// Extra.
func (f *File) UnmarshalJSON(data []byte) error {
	type alias File
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range raw {
		if fileKnownKeys[key] {
			delete(raw, key)
		}
	}
	if len(raw) == 0 {
		raw = nil
	}

	*f = File(known)
	f.Extra = raw
	return nil
}

// MarshalJSON encodes the file container with Extra merged back in.
func (f *File) MarshalJSON() ([]byte, error) {
	type alias File
	return marshalWithExtra((*alias)(f), f.Extra)
}

// marshalWithExtra marshals v, then splices the preserved raw fields onto
// the end of the encoded object. Known fields keep their declaration
// order and win on key collisions; extras follow in sorted order.
func marshalWithExtra(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}

	var known map[string]json.RawMessage
	if err := json.Unmarshal(base, &known); err != nil {
		return nil, fmt.Errorf("remarshal known fields: %w", err)
	}

	var b bytes.Buffer
	b.Write(base[:len(base)-1])
	for _, key := range ExtraKeys(extra) {
		if _, exists := known[key]; exists {
			continue
		}
		if b.Len() > 1 {
			b.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		b.Write(name)
		b.WriteByte(':')
		b.Write(extra[key])
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// ExtraKeys returns the preserved unknown keys in sorted order.
func ExtraKeys(extra map[string]json.RawMessage) []string {
	if len(extra) == 0 {
		return nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
