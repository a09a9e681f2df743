package bridge

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/randalmurphal/fleet/internal/taskfile"
)

// ManagedLabel marks every issue the bridge owns. Pull only considers
// issues carrying it, so hand-filed issues in the same repo are ignored.
const ManagedLabel = "fleet"

// statusLabels maps task status to its tracker label and back. The two
// maps must stay exact inverses.
var statusLabels = map[taskfile.Status]string{
	taskfile.StatusPending:    "status:pending",
	taskfile.StatusInProgress: "status:in-progress",
	taskfile.StatusCompleted:  "status:completed",
	taskfile.StatusFailed:     "status:failed",
	taskfile.StatusBlocked:    "status:blocked",
}

var statusFromLabel = map[string]taskfile.Status{}

// sizeLabels maps complexity to its tracker label.
var sizeLabels = map[taskfile.Complexity]string{
	taskfile.ComplexityS:  "size:small",
	taskfile.ComplexityM:  "size:medium",
	taskfile.ComplexityL:  "size:large",
	taskfile.ComplexityXL: "size:xlarge",
}

func init() {
	for status, label := range statusLabels {
		statusFromLabel[label] = status
	}
}

// LabelsFor builds the full bridge-owned label set for a task.
func LabelsFor(t *taskfile.Task) []string {
	return []string{
		ManagedLabel,
		statusLabels[t.Status],
		sizeLabels[t.GetComplexity()],
	}
}

// StatusFromLabels extracts the task status encoded in an issue's labels.
func StatusFromLabels(labels []string) (taskfile.Status, bool) {
	for _, label := range labels {
		if s, ok := statusFromLabel[label]; ok {
			return s, true
		}
	}
	return "", false
}

// markerRe matches the hidden metadata block the bridge embeds in every
// issue body it creates.
var markerRe = regexp.MustCompile(`<!--\s*fleet:task_id=(\S+)\s*-->`)

// TaskMarker renders the metadata block for a task id.
func TaskMarker(taskID string) string {
	return fmt.Sprintf("<!-- fleet:task_id=%s -->", taskID)
}

// ExtractTaskID pulls the task id out of an issue body's metadata block.
func ExtractTaskID(body string) (string, bool) {
	m := markerRe.FindStringSubmatch(body)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IssueBody renders the full issue body for a task: description, feature
// context, acceptance criteria, and the metadata block last.
func IssueBody(t *taskfile.Task) string {
	var b strings.Builder
	if t.Description != "" {
		b.WriteString(strings.TrimSpace(t.Description))
		b.WriteString("\n\n")
	}
	if t.Feature.Description != "" {
		b.WriteString(strings.TrimSpace(t.Feature.Description))
		b.WriteString("\n\n")
	}
	if len(t.Feature.AcceptanceCriteria) > 0 {
		b.WriteString("### Acceptance Criteria\n\n")
		for _, ac := range t.Feature.AcceptanceCriteria {
			fmt.Fprintf(&b, "- [ ] %s\n", ac)
		}
		b.WriteString("\n")
	}
	b.WriteString(TaskMarker(t.ID))
	b.WriteString("\n")
	return b.String()
}
