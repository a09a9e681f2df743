// Package gitlab implements the tracker provider against the GitLab API.
// Issue numbers are project-scoped IIDs, matching what appears in GitLab
// URLs and what the issue map stores.
package gitlab

import (
	"context"
	"fmt"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
	"github.com/randalmurphal/fleet/internal/tracker"
)

func init() {
	tracker.RegisterProvider("gitlab", func(cfg tracker.Config) (tracker.Provider, error) {
		if cfg.Owner == "" || cfg.Repo == "" {
			return nil, fmt.Errorf("gitlab provider requires owner and repo")
		}
		if cfg.Token == "" {
			return nil, fmt.Errorf("gitlab provider requires a token (GITLAB_TOKEN)")
		}
		var opts []gitlab.ClientOptionFunc
		if cfg.BaseURL != "" {
			opts = append(opts, gitlab.WithBaseURL(cfg.BaseURL))
		}
		client, err := gitlab.NewClient(cfg.Token, opts...)
		if err != nil {
			return nil, fmt.Errorf("gitlab client: %w", err)
		}
		return &provider{client: client, pid: cfg.Owner + "/" + cfg.Repo}, nil
	})
}

type provider struct {
	client *gitlab.Client
	pid    string
}

func (p *provider) Name() string { return "gitlab" }

func (p *provider) CheckAuth(ctx context.Context) error {
	if _, _, err := p.client.Users.CurrentUser(gitlab.WithContext(ctx)); err != nil {
		return fleeterrors.ErrTracker("auth", err)
	}
	return nil
}

func (p *provider) CreateIssue(ctx context.Context, opts tracker.CreateOptions) (*tracker.Issue, error) {
	labels := gitlab.LabelOptions(opts.Labels)
	issue, _, err := p.client.Issues.CreateIssue(p.pid, &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(opts.Title),
		Description: gitlab.Ptr(opts.Body),
		Labels:      &labels,
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fleeterrors.ErrTracker("create issue", err)
	}
	return fromGitlab(issue), nil
}

func (p *provider) UpdateIssue(ctx context.Context, number int, opts tracker.UpdateOptions) (*tracker.Issue, error) {
	req := &gitlab.UpdateIssueOptions{}
	if opts.Title != "" {
		req.Title = gitlab.Ptr(opts.Title)
	}
	if opts.Body != "" {
		req.Description = gitlab.Ptr(opts.Body)
	}
	if opts.ReplaceLabels {
		labels := gitlab.LabelOptions(opts.Labels)
		req.Labels = &labels
	} else if len(opts.Labels) > 0 {
		labels := gitlab.LabelOptions(opts.Labels)
		req.AddLabels = &labels
	}
	issue, _, err := p.client.Issues.UpdateIssue(p.pid, int64(number), req, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fleeterrors.ErrTracker("update issue", err)
	}
	return fromGitlab(issue), nil
}

func (p *provider) CloseIssue(ctx context.Context, number int, comment string) error {
	if comment != "" {
		_, _, err := p.client.Notes.CreateIssueNote(p.pid, int64(number), &gitlab.CreateIssueNoteOptions{
			Body: gitlab.Ptr(comment),
		}, gitlab.WithContext(ctx))
		if err != nil {
			return fleeterrors.ErrTracker("comment on issue", err)
		}
	}
	_, _, err := p.client.Issues.UpdateIssue(p.pid, int64(number), &gitlab.UpdateIssueOptions{
		StateEvent: gitlab.Ptr("close"),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fleeterrors.ErrTracker("close issue", err)
	}
	return nil
}

func (p *provider) GetIssue(ctx context.Context, number int) (*tracker.Issue, error) {
	issue, _, err := p.client.Issues.GetIssue(p.pid, int64(number), gitlab.WithContext(ctx))
	if err != nil {
		return nil, fleeterrors.ErrTracker("get issue", err)
	}
	return fromGitlab(issue), nil
}

func (p *provider) ListOpenIssues(ctx context.Context, label string) ([]*tracker.Issue, error) {
	req := &gitlab.ListProjectIssuesOptions{
		State:       gitlab.Ptr("opened"),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	if label != "" {
		labels := gitlab.LabelOptions{label}
		req.Labels = &labels
	}

	var out []*tracker.Issue
	for {
		page, resp, err := p.client.Issues.ListProjectIssues(p.pid, req, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fleeterrors.ErrTracker("list issues", err)
		}
		for _, issue := range page {
			out = append(out, fromGitlab(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		req.Page = resp.NextPage
	}
	return out, nil
}

// fromGitlab normalizes a GitLab issue. GitLab reports "opened"; the
// neutral model uses "open".
func fromGitlab(issue *gitlab.Issue) *tracker.Issue {
	state := issue.State
	if state == "opened" {
		state = "open"
	}
	return &tracker.Issue{
		Number: int(issue.IID),
		Title:  issue.Title,
		Body:   issue.Description,
		State:  state,
		Labels: []string(issue.Labels),
		URL:    issue.WebURL,
	}
}
