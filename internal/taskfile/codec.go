package taskfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
	"github.com/randalmurphal/fleet/internal/util"
)

// Diagnostic locates a per-task validation problem or an unknown-field
// warning within a task file.
type Diagnostic struct {
	Type      string `json:"type"` // "validation_error" or "unknown_field"
	Path      string `json:"path"`
	TaskIndex int    `json:"task_index"` // -1 for file-level diagnostics
	TaskID    string `json:"task_id,omitempty"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}

func (d Diagnostic) String() string {
	if d.TaskIndex >= 0 {
		return fmt.Sprintf("%s: task[%d] %s: %s", d.Path, d.TaskIndex, d.Field, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Path, d.Field, d.Message)
}

// ReadResult is the outcome of reading one task file. Tasks that failed
// validation are absent from File.Tasks and described in Dropped.
type ReadResult struct {
	File     *File
	Warnings []Diagnostic
	Dropped  []Diagnostic
}

// Read loads and validates a task file.
//
// Classified failures: a missing file returns an error satisfying
// os.IsNotExist; unparseable JSON returns a PARSE_ERROR; a broken outer
// shape returns a SCHEMA_ERROR. Per-task problems never fail the read:
// the task is dropped and recorded in Dropped. Unknown fields are kept
// and reported in Warnings.
func Read(path string) (*ReadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("read task file %s: %w", path, err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fleeterrors.ErrParse(path, err)
	}
	if f.Project == "" {
		return nil, fleeterrors.ErrSchema(path, "project", fmt.Errorf("missing project name"))
	}

	res := &ReadResult{File: &f}

	for _, key := range ExtraKeys(f.Extra) {
		res.Warnings = append(res.Warnings, Diagnostic{
			Type:      "unknown_field",
			Path:      path,
			TaskIndex: -1,
			Field:     key,
			Message:   "unknown top-level field preserved",
		})
	}

	kept := make([]*Task, 0, len(f.Tasks))
	for i, t := range f.Tasks {
		if t == nil {
			res.Dropped = append(res.Dropped, Diagnostic{
				Type: "validation_error", Path: path, TaskIndex: i,
				Field: "task", Message: "null task entry",
			})
			continue
		}
		if diag, ok := validateTask(path, i, t, f.Project); !ok {
			res.Dropped = append(res.Dropped, diag)
			continue
		}
		applyDefaults(t)
		for _, key := range ExtraKeys(t.Extra) {
			res.Warnings = append(res.Warnings, Diagnostic{
				Type:      "unknown_field",
				Path:      path,
				TaskIndex: i,
				TaskID:    t.ID,
				Field:     key,
				Message:   "unknown task field preserved",
			})
		}
		kept = append(kept, t)
	}
	f.Tasks = kept

	return res, nil
}

// validateTask checks the required attributes and the structural
// invariants of a single task.
func validateTask(path string, index int, t *Task, project string) (Diagnostic, bool) {
	fail := func(field, msg string) (Diagnostic, bool) {
		return Diagnostic{
			Type: "validation_error", Path: path, TaskIndex: index,
			TaskID: t.ID, Field: field, Message: msg,
		}, false
	}

	if t.ID == "" {
		return fail("id", "missing required field")
	}
	if t.Title == "" {
		return fail("title", "missing required field")
	}
	if t.Status == "" {
		return fail("status", "missing required field")
	}
	if !IsValidStatus(t.Status) {
		return fail("status", fmt.Sprintf("unknown status %q", t.Status))
	}
	if ProjectOf(t.ID) != project {
		return fail("id", fmt.Sprintf("id prefix %q does not match file project %q", ProjectOf(t.ID), project))
	}
	if t.Complexity != "" && !IsValidComplexity(t.Complexity) {
		return fail("complexity", fmt.Sprintf("unknown complexity %q", t.Complexity))
	}
	return Diagnostic{}, true
}

// applyDefaults fills the optional attributes the schema defines defaults
// for. Sequences default to empty rather than nil so callers can range
// without nil checks.
func applyDefaults(t *Task) {
	if t.Complexity == "" {
		t.Complexity = DefaultComplexity
	}
	if t.BlockedBy == nil {
		t.BlockedBy = []string{}
	}
	if t.Unlocks == nil {
		t.Unlocks = []string{}
	}
	if t.Labels == nil {
		t.Labels = []string{}
	}
}

// Write persists a task file atomically, preserving task order and any
// unknown fields captured at read time. Output is pretty-printed with
// two-space indentation.
func Write(path string, f *File) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("marshal task file: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write task file %s: %w", path, err)
	}
	return nil
}
