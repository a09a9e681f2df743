// Package registry loads the workspace project registry (projects.json).
//
// The registry is read once at orchestrator start and treated as read-only
// for the duration of a loop iteration.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
)

// FileName is the registry file name inside the workspace root.
const FileName = "projects.json"

// ProjectStatus is the lifecycle status of a project. It feeds the
// scorer's maturity factor.
type ProjectStatus string

const (
	StatusBuildable       ProjectStatus = "buildable"
	StatusNearBuildable   ProjectStatus = "near-buildable"
	StatusScaffoldingPlus ProjectStatus = "scaffolding-plus"
	StatusScaffolding     ProjectStatus = "scaffolding"
	StatusBlocked         ProjectStatus = "blocked"
)

// IsValidProjectStatus returns true if s is a known lifecycle status.
func IsValidProjectStatus(s ProjectStatus) bool {
	switch s {
	case StatusBuildable, StatusNearBuildable, StatusScaffoldingPlus, StatusScaffolding, StatusBlocked:
		return true
	default:
		return false
	}
}

// Project is one registry entry.
type Project struct {
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	Status       ProjectStatus `json:"status"`
	Language     string        `json:"language,omitempty"`
	TestCommand  string        `json:"test_command,omitempty"`
	BuildCommand string        `json:"build_command,omitempty"`
	Repo         string        `json:"repo,omitempty"`
}

// Dir resolves the project directory under the workspace root.
func (p *Project) Dir(workspace string) string {
	return filepath.Join(workspace, p.Path)
}

// TasksPath resolves the project's task file path.
func (p *Project) TasksPath(workspace string) string {
	return filepath.Join(p.Dir(workspace), ".claude", "tasks", "tasks.json")
}

// MemoryPath resolves the project's durable instruction file.
func (p *Project) MemoryPath(workspace string) string {
	return filepath.Join(p.Dir(workspace), "CLAUDE.md")
}

// Registry is the parsed projects.json.
type Registry struct {
	Version      int       `json:"version"`
	ProjectsRoot string    `json:"projects_root,omitempty"`
	Projects     []Project `json:"projects"`
}

// Path returns the registry file path for a workspace root.
func Path(workspace string) string {
	return filepath.Join(workspace, FileName)
}

// Load reads and validates the registry for a workspace. A missing file is
// a REGISTRY_NOT_FOUND error; bad JSON or failed validation is
// REGISTRY_MALFORMED. Both are fatal to the caller.
func Load(workspace string) (*Registry, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fleeterrors.ErrRegistryNotFound(path)
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fleeterrors.ErrRegistryMalformed(path, err)
	}
	if err := reg.Validate(); err != nil {
		return nil, fleeterrors.ErrRegistryMalformed(path, err)
	}
	return &reg, nil
}

// Validate checks structural invariants: non-empty unique names, non-empty
// paths, and known lifecycle statuses.
func (r *Registry) Validate() error {
	seen := make(map[string]bool, len(r.Projects))
	for i, p := range r.Projects {
		if p.Name == "" {
			return fmt.Errorf("project %d: missing name", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("project %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if p.Path == "" {
			return fmt.Errorf("project %q: missing path", p.Name)
		}
		if !IsValidProjectStatus(p.Status) {
			return fmt.Errorf("project %q: unknown status %q", p.Name, p.Status)
		}
	}
	return nil
}

// Get returns the project with the given name, or nil.
func (r *Registry) Get(name string) *Project {
	for i := range r.Projects {
		if r.Projects[i].Name == name {
			return &r.Projects[i]
		}
	}
	return nil
}
