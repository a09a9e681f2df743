package jira

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	"github.com/randalmurphal/fleet/internal/taskfile"
)

// jiraMeta is the provenance block preserved on imported tasks under the
// "jira" extra attribute. It is what makes re-imports idempotent.
type jiraMeta struct {
	Key string `json:"key"`
}

// jiraCreatedLayout is the timestamp layout Jira Cloud emits.
const jiraCreatedLayout = "2006-01-02T15:04:05.000-0700"

// TaskID derives the fleet task id for a Jira issue key.
func TaskID(project, key string) string {
	return project + "/" + strings.ToLower(key)
}

// MapIssue converts one Jira issue into a task owned by the given
// project. Status maps coarsely: done-category statuses become completed,
// "In Progress" stays in_progress, and everything else is pending.
func MapIssue(project string, issue *models.IssueScheme) *taskfile.Task {
	t := &taskfile.Task{
		ID:     TaskID(project, issue.Key),
		Status: taskfile.StatusPending,
	}

	meta, _ := json.Marshal(jiraMeta{Key: issue.Key})
	t.Extra = map[string]json.RawMessage{"jira": meta}

	f := issue.Fields
	if f == nil {
		t.Title = issue.Key
		return t
	}

	t.Title = f.Summary
	if t.Title == "" {
		t.Title = issue.Key
	}
	t.Labels = f.Labels
	t.Status = mapStatus(f.Status)
	t.Description = adfText(f.Description)
	t.BlockedBy = blockedBy(project, f.IssueLinks)
	if f.Created != nil {
		t.CreatedAt = time.Time(*f.Created)
	}
	return t
}

func mapStatus(s *models.StatusScheme) taskfile.Status {
	if s == nil {
		return taskfile.StatusPending
	}
	switch strings.ToLower(s.Name) {
	case "done", "closed", "resolved":
		return taskfile.StatusCompleted
	case "in progress":
		return taskfile.StatusInProgress
	default:
		return taskfile.StatusPending
	}
}

// blockedBy extracts blocker ids from "Blocks"-type links. An inward
// issue on such a link is something this issue waits on.
func blockedBy(project string, links []*models.IssueLinkScheme) []string {
	var out []string
	for _, link := range links {
		if link == nil || link.Type == nil || link.Type.Name != "Blocks" {
			continue
		}
		if link.InwardIssue != nil && link.InwardIssue.Key != "" {
			out = append(out, TaskID(project, link.InwardIssue.Key))
		}
	}
	return out
}

// adfText flattens an Atlassian Document Format tree to plain text.
// Paragraph-level nodes become separate lines.
func adfText(node *models.CommentNodeScheme) string {
	if node == nil {
		return ""
	}
	var parts []string
	collectText(node, &parts)
	return strings.TrimSpace(strings.Join(parts, ""))
}

func collectText(node *models.CommentNodeScheme, parts *[]string) {
	if node.Text != "" {
		*parts = append(*parts, node.Text)
	}
	for _, child := range node.Content {
		collectText(child, parts)
	}
	if node.Type == "paragraph" {
		*parts = append(*parts, "\n")
	}
}
