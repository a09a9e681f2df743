package jira

import (
	"testing"
	"time"

	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/fleet/internal/taskfile"
)

func issue(key, summary, status string) *models.IssueScheme {
	return &models.IssueScheme{
		Key: key,
		Fields: &models.IssueFieldsScheme{
			Summary: summary,
			Status:  &models.StatusScheme{Name: status},
		},
	}
}

func TestMapIssueBasics(t *testing.T) {
	src := issue("PROJ-17", "Fix login", "To Do")
	src.Fields.Labels = []string{"auth", "backend"}
	created, err := time.Parse(jiraCreatedLayout, "2026-08-20T09:30:00.000+0000")
	require.NoError(t, err)
	src.Fields.Created = (*models.DateTimeScheme)(&created)

	task := MapIssue("alpha", src)
	assert.Equal(t, "alpha/proj-17", task.ID)
	assert.Equal(t, "Fix login", task.Title)
	assert.Equal(t, taskfile.StatusPending, task.Status)
	assert.Equal(t, []string{"auth", "backend"}, task.Labels)
	assert.False(t, task.CreatedAt.IsZero())

	require.Contains(t, task.Extra, "jira")
	assert.JSONEq(t, `{"key":"PROJ-17"}`, string(task.Extra["jira"]))
}

func TestMapIssueStatuses(t *testing.T) {
	cases := map[string]taskfile.Status{
		"Done":        taskfile.StatusCompleted,
		"Closed":      taskfile.StatusCompleted,
		"Resolved":    taskfile.StatusCompleted,
		"In Progress": taskfile.StatusInProgress,
		"To Do":       taskfile.StatusPending,
		"Backlog":     taskfile.StatusPending,
	}
	for name, want := range cases {
		task := MapIssue("alpha", issue("P-1", "x", name))
		assert.Equal(t, want, task.Status, name)
	}
}

func TestMapIssueBlockedByLinks(t *testing.T) {
	src := issue("PROJ-2", "Dependent", "To Do")
	src.Fields.IssueLinks = []*models.IssueLinkScheme{
		{
			Type:        &models.LinkTypeScheme{Name: "Blocks"},
			InwardIssue: &models.LinkedIssueScheme{Key: "PROJ-1"},
		},
		{
			Type:         &models.LinkTypeScheme{Name: "Blocks"},
			OutwardIssue: &models.LinkedIssueScheme{Key: "PROJ-3"},
		},
		{
			Type:        &models.LinkTypeScheme{Name: "Relates"},
			InwardIssue: &models.LinkedIssueScheme{Key: "PROJ-4"},
		},
	}

	task := MapIssue("alpha", src)
	assert.Equal(t, []string{"alpha/proj-1"}, task.BlockedBy,
		"only inward Blocks links become blockers")
}

func TestMapIssueADFDescription(t *testing.T) {
	src := issue("PROJ-5", "Doc", "To Do")
	src.Fields.Description = &models.CommentNodeScheme{
		Type: "doc",
		Content: []*models.CommentNodeScheme{
			{
				Type: "paragraph",
				Content: []*models.CommentNodeScheme{
					{Type: "text", Text: "First line."},
				},
			},
			{
				Type: "paragraph",
				Content: []*models.CommentNodeScheme{
					{Type: "text", Text: "Second line."},
				},
			},
		},
	}

	task := MapIssue("alpha", src)
	assert.Equal(t, "First line.\nSecond line.", task.Description)
}

func TestMapIssueNilFields(t *testing.T) {
	task := MapIssue("alpha", &models.IssueScheme{Key: "P-9"})
	assert.Equal(t, "alpha/p-9", task.ID)
	assert.Equal(t, "P-9", task.Title, "key stands in for a missing summary")
	assert.Equal(t, taskfile.StatusPending, task.Status)
}
