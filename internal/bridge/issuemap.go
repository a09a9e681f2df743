package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/randalmurphal/fleet/internal/lock"
	"github.com/randalmurphal/fleet/internal/util"
)

// IssueMapRelPath is the issue map location under the workspace root.
const IssueMapRelPath = ".claude/issue-map.json"

// IssueMap is the persisted pairing between task ids and issue numbers.
// Both directions are stored and must stay exact inverses.
type IssueMap struct {
	Version     int               `json:"version"`
	TaskToIssue map[string]int    `json:"taskToIssue"`
	IssueToTask map[string]string `json:"issueToTask"`
}

// NewIssueMap returns an empty map.
func NewIssueMap() *IssueMap {
	return &IssueMap{
		Version:     1,
		TaskToIssue: map[string]int{},
		IssueToTask: map[string]string{},
	}
}

// IssueMapPath resolves the map path for a workspace.
func IssueMapPath(workspace string) string {
	return filepath.Join(workspace, IssueMapRelPath)
}

// LoadIssueMap reads the workspace issue map. A missing file is an empty
// map, not an error.
func LoadIssueMap(workspace string) (*IssueMap, error) {
	data, err := os.ReadFile(IssueMapPath(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return NewIssueMap(), nil
		}
		return nil, fmt.Errorf("read issue map: %w", err)
	}

	m := NewIssueMap()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse issue map: %w", err)
	}
	if m.TaskToIssue == nil {
		m.TaskToIssue = map[string]int{}
	}
	if m.IssueToTask == nil {
		m.IssueToTask = map[string]string{}
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("issue map %s: %w", IssueMapPath(workspace), err)
	}
	return m, nil
}

// Validate checks that the two directions are exact inverses.
func (m *IssueMap) Validate() error {
	if len(m.TaskToIssue) != len(m.IssueToTask) {
		return fmt.Errorf("direction size mismatch: %d tasks vs %d issues",
			len(m.TaskToIssue), len(m.IssueToTask))
	}
	for taskID, number := range m.TaskToIssue {
		back, ok := m.IssueToTask[strconv.Itoa(number)]
		if !ok || back != taskID {
			return fmt.Errorf("task %s maps to issue %d but the reverse entry is %q", taskID, number, back)
		}
	}
	return nil
}

// Pair records a task ↔ issue pairing in both directions.
func (m *IssueMap) Pair(taskID string, number int) {
	m.TaskToIssue[taskID] = number
	m.IssueToTask[strconv.Itoa(number)] = taskID
}

// IssueFor returns the issue number paired with a task.
func (m *IssueMap) IssueFor(taskID string) (int, bool) {
	n, ok := m.TaskToIssue[taskID]
	return n, ok
}

// TaskFor returns the task id paired with an issue number.
func (m *IssueMap) TaskFor(number int) (string, bool) {
	id, ok := m.IssueToTask[strconv.Itoa(number)]
	return id, ok
}

// Save writes the map atomically under the workspace map lock.
func (m *IssueMap) Save(workspace string) error {
	path := IssueMapPath(workspace)
	return lock.With(path, func() error {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create issue map dir: %w", err)
		}
		return util.AtomicWriteJSON(path, m, 0644)
	})
}
