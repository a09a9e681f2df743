// Package jira imports issues from a Jira project into a fleet project's
// task file. The flow is one-way: Jira is an intake source, and the task
// file stays authoritative after import.
package jira

import (
	"context"
	"fmt"

	v3 "github.com/ctreminiom/go-atlassian/v2/jira/v3"
	"github.com/ctreminiom/go-atlassian/v2/pkg/infra/models"

	"github.com/randalmurphal/fleet/internal/config"
)

// searchPageSize is the page size for JQL search pagination.
const searchPageSize = 50

// issueFields are the fields fetched per issue.
var issueFields = []string{"summary", "status", "labels", "description", "issuelinks", "created"}

// Client wraps the Jira Cloud API for the importer.
type Client struct {
	api *v3.Client
}

// NewClient builds a Jira client from config. Base URL, email, and API
// token are all required.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Email == "" || cfg.APIToken == "" {
		return nil, fmt.Errorf("jira import requires JIRA_BASE_URL, JIRA_EMAIL, and JIRA_API_TOKEN")
	}
	api, err := v3.New(nil, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("jira client: %w", err)
	}
	api.Auth.SetBasicAuth(cfg.Email, cfg.APIToken)
	return &Client{api: api}, nil
}

// CheckAuth verifies the credentials against the authenticated-user
// endpoint.
func (c *Client) CheckAuth(ctx context.Context) error {
	if _, _, err := c.api.MySelf.Details(ctx, nil); err != nil {
		return fmt.Errorf("jira auth: %w", err)
	}
	return nil
}

// SearchAll runs a JQL query and follows pagination to the end.
func (c *Client) SearchAll(ctx context.Context, jql string) ([]*models.IssueScheme, error) {
	var out []*models.IssueScheme
	startAt := 0
	for {
		page, _, err := c.api.Issue.Search.Get(ctx, jql, issueFields, nil, startAt, searchPageSize, "")
		if err != nil {
			return nil, fmt.Errorf("jira search %q: %w", jql, err)
		}
		out = append(out, page.Issues...)
		startAt += len(page.Issues)
		if len(page.Issues) == 0 || startAt >= page.Total {
			return out, nil
		}
	}
}
