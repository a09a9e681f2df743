// Package github implements the tracker provider against the GitHub REST
// API via go-github, for environments without the gh CLI.
package github

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v82/github"

	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
	"github.com/randalmurphal/fleet/internal/tracker"
)

func init() {
	tracker.RegisterProvider("github", func(cfg tracker.Config) (tracker.Provider, error) {
		if cfg.Owner == "" || cfg.Repo == "" {
			return nil, fmt.Errorf("github provider requires owner and repo")
		}
		if cfg.Token == "" {
			return nil, fmt.Errorf("github provider requires a token (GITHUB_TOKEN)")
		}
		client := gogithub.NewClient(nil).WithAuthToken(cfg.Token)
		if cfg.BaseURL != "" {
			var err error
			client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("github base url: %w", err)
			}
		}
		return &provider{client: client, owner: cfg.Owner, repo: cfg.Repo}, nil
	})
}

type provider struct {
	client *gogithub.Client
	owner  string
	repo   string
}

func (p *provider) Name() string { return "github" }

func (p *provider) CheckAuth(ctx context.Context) error {
	if _, _, err := p.client.Users.Get(ctx, ""); err != nil {
		return fleeterrors.ErrTracker("auth", err)
	}
	return nil
}

func (p *provider) CreateIssue(ctx context.Context, opts tracker.CreateOptions) (*tracker.Issue, error) {
	labels := opts.Labels
	issue, _, err := p.client.Issues.Create(ctx, p.owner, p.repo, &gogithub.IssueRequest{
		Title:  gogithub.Ptr(opts.Title),
		Body:   gogithub.Ptr(opts.Body),
		Labels: &labels,
	})
	if err != nil {
		return nil, fleeterrors.ErrTracker("create issue", err)
	}
	return fromGithub(issue), nil
}

func (p *provider) UpdateIssue(ctx context.Context, number int, opts tracker.UpdateOptions) (*tracker.Issue, error) {
	req := &gogithub.IssueRequest{}
	if opts.Title != "" {
		req.Title = gogithub.Ptr(opts.Title)
	}
	if opts.Body != "" {
		req.Body = gogithub.Ptr(opts.Body)
	}
	if opts.ReplaceLabels {
		labels := opts.Labels
		req.Labels = &labels
	}
	issue, _, err := p.client.Issues.Edit(ctx, p.owner, p.repo, number, req)
	if err != nil {
		return nil, fleeterrors.ErrTracker("update issue", err)
	}
	if !opts.ReplaceLabels && len(opts.Labels) > 0 {
		if _, _, err := p.client.Issues.AddLabelsToIssue(ctx, p.owner, p.repo, number, opts.Labels); err != nil {
			return nil, fleeterrors.ErrTracker("update issue labels", err)
		}
		return p.GetIssue(ctx, number)
	}
	return fromGithub(issue), nil
}

func (p *provider) CloseIssue(ctx context.Context, number int, comment string) error {
	if comment != "" {
		_, _, err := p.client.Issues.CreateComment(ctx, p.owner, p.repo, number, &gogithub.IssueComment{
			Body: gogithub.Ptr(comment),
		})
		if err != nil {
			return fleeterrors.ErrTracker("comment on issue", err)
		}
	}
	_, _, err := p.client.Issues.Edit(ctx, p.owner, p.repo, number, &gogithub.IssueRequest{
		State: gogithub.Ptr("closed"),
	})
	if err != nil {
		return fleeterrors.ErrTracker("close issue", err)
	}
	return nil
}

func (p *provider) GetIssue(ctx context.Context, number int) (*tracker.Issue, error) {
	issue, _, err := p.client.Issues.Get(ctx, p.owner, p.repo, number)
	if err != nil {
		return nil, fleeterrors.ErrTracker("get issue", err)
	}
	return fromGithub(issue), nil
}

func (p *provider) ListOpenIssues(ctx context.Context, label string) ([]*tracker.Issue, error) {
	opts := &gogithub.IssueListByRepoOptions{
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	if label != "" {
		opts.Labels = []string{label}
	}

	var out []*tracker.Issue
	for {
		page, resp, err := p.client.Issues.ListByRepo(ctx, p.owner, p.repo, opts)
		if err != nil {
			return nil, fleeterrors.ErrTracker("list issues", err)
		}
		for _, issue := range page {
			if issue.IsPullRequest() {
				continue
			}
			out = append(out, fromGithub(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return out, nil
}

func fromGithub(issue *gogithub.Issue) *tracker.Issue {
	out := &tracker.Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		State:  issue.GetState(),
		URL:    issue.GetHTMLURL(),
	}
	for _, l := range issue.Labels {
		out.Labels = append(out.Labels, l.GetName())
	}
	return out
}
