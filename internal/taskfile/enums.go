package taskfile

// Status represents the orchestration state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusBlocked    Status = "blocked"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked}
}

// IsValidStatus returns true if s is a valid status value.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed, StatusBlocked:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if s ends the orchestration lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Complexity classifies the expected size of a task.
type Complexity string

const (
	ComplexityS  Complexity = "S"
	ComplexityM  Complexity = "M"
	ComplexityL  Complexity = "L"
	ComplexityXL Complexity = "XL"
)

// DefaultComplexity is applied when a task carries no complexity.
const DefaultComplexity = ComplexityM

// ValidComplexities returns all valid complexity values.
func ValidComplexities() []Complexity {
	return []Complexity{ComplexityS, ComplexityM, ComplexityL, ComplexityXL}
}

// IsValidComplexity returns true if c is a valid complexity value.
func IsValidComplexity(c Complexity) bool {
	switch c {
	case ComplexityS, ComplexityM, ComplexityL, ComplexityXL:
		return true
	default:
		return false
	}
}

// Rank orders complexities from smallest to largest. Unknown values sort
// as medium.
func (c Complexity) Rank() int {
	switch c {
	case ComplexityS:
		return 0
	case ComplexityM:
		return 1
	case ComplexityL:
		return 2
	case ComplexityXL:
		return 3
	default:
		return 1
	}
}

// ModelTier selects which model backend a worker runs against.
type ModelTier string

const (
	// TierOpus is the default hosted model.
	TierOpus ModelTier = "opus"
	// TierLocal routes the worker to a locally served model.
	TierLocal ModelTier = "local"
)

// IsValidModelTier returns true if t is a known tier.
func IsValidModelTier(t ModelTier) bool {
	return t == TierOpus || t == TierLocal
}
