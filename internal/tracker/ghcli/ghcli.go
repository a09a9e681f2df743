// Package ghcli implements the tracker provider on top of the gh CLI.
// It shells out with exec.CommandContext and parses gh's --json output
// with gjson, so it works with whatever auth gh itself is logged in with.
package ghcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
	"github.com/randalmurphal/fleet/internal/tracker"
)

const issueFields = "number,title,body,state,labels,url"

func init() {
	tracker.RegisterProvider("ghcli", func(cfg tracker.Config) (tracker.Provider, error) {
		if cfg.Owner == "" || cfg.Repo == "" {
			return nil, fmt.Errorf("ghcli provider requires owner and repo")
		}
		return &provider{repo: cfg.Owner + "/" + cfg.Repo}, nil
	})
}

type provider struct {
	repo string
	// runner is swapped in tests to avoid invoking the real gh binary.
	runner func(ctx context.Context, args ...string) ([]byte, error)
}

func (p *provider) Name() string { return "ghcli" }

func (p *provider) run(ctx context.Context, args ...string) ([]byte, error) {
	if p.runner != nil {
		return p.runner(ctx, args...)
	}
	cmd := exec.CommandContext(ctx, "gh", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("gh %s: %s", args[0], msg)
	}
	return stdout.Bytes(), nil
}

func (p *provider) CheckAuth(ctx context.Context) error {
	if _, err := p.run(ctx, "auth", "status"); err != nil {
		return fleeterrors.ErrTracker("auth", err)
	}
	return nil
}

func (p *provider) CreateIssue(ctx context.Context, opts tracker.CreateOptions) (*tracker.Issue, error) {
	args := []string{"issue", "create", "--repo", p.repo, "--title", opts.Title, "--body", opts.Body}
	for _, label := range opts.Labels {
		args = append(args, "--label", label)
	}
	out, err := p.run(ctx, args...)
	if err != nil {
		return nil, fleeterrors.ErrTracker("create issue", err)
	}

	// gh prints the new issue URL; the trailing path segment is the number.
	number, err := numberFromURL(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, fleeterrors.ErrTracker("create issue", err)
	}
	return p.GetIssue(ctx, number)
}

func (p *provider) UpdateIssue(ctx context.Context, number int, opts tracker.UpdateOptions) (*tracker.Issue, error) {
	args := []string{"issue", "edit", strconv.Itoa(number), "--repo", p.repo}
	if opts.Title != "" {
		args = append(args, "--title", opts.Title)
	}
	if opts.Body != "" {
		args = append(args, "--body", opts.Body)
	}
	if opts.ReplaceLabels {
		current, err := p.GetIssue(ctx, number)
		if err != nil {
			return nil, err
		}
		for _, label := range current.Labels {
			args = append(args, "--remove-label", label)
		}
		for _, label := range opts.Labels {
			args = append(args, "--add-label", label)
		}
	} else {
		for _, label := range opts.Labels {
			args = append(args, "--add-label", label)
		}
	}
	if _, err := p.run(ctx, args...); err != nil {
		return nil, fleeterrors.ErrTracker("update issue", err)
	}
	return p.GetIssue(ctx, number)
}

func (p *provider) CloseIssue(ctx context.Context, number int, comment string) error {
	args := []string{"issue", "close", strconv.Itoa(number), "--repo", p.repo}
	if comment != "" {
		args = append(args, "--comment", comment)
	}
	if _, err := p.run(ctx, args...); err != nil {
		return fleeterrors.ErrTracker("close issue", err)
	}
	return nil
}

func (p *provider) GetIssue(ctx context.Context, number int) (*tracker.Issue, error) {
	out, err := p.run(ctx, "issue", "view", strconv.Itoa(number), "--repo", p.repo, "--json", issueFields)
	if err != nil {
		return nil, fleeterrors.ErrTracker("get issue", err)
	}
	issue := parseIssue(gjson.ParseBytes(out))
	return &issue, nil
}

func (p *provider) ListOpenIssues(ctx context.Context, label string) ([]*tracker.Issue, error) {
	args := []string{"issue", "list", "--repo", p.repo, "--state", "open", "--limit", "500", "--json", issueFields}
	if label != "" {
		args = append(args, "--label", label)
	}
	out, err := p.run(ctx, args...)
	if err != nil {
		return nil, fleeterrors.ErrTracker("list issues", err)
	}

	var issues []*tracker.Issue
	for _, item := range gjson.ParseBytes(out).Array() {
		issue := parseIssue(item)
		issues = append(issues, &issue)
	}
	return issues, nil
}

// parseIssue maps one gh --json issue object. gh reports state in upper
// case (OPEN/CLOSED).
func parseIssue(v gjson.Result) tracker.Issue {
	issue := tracker.Issue{
		Number: int(v.Get("number").Int()),
		Title:  v.Get("title").String(),
		Body:   v.Get("body").String(),
		State:  strings.ToLower(v.Get("state").String()),
		URL:    v.Get("url").String(),
	}
	for _, l := range v.Get("labels").Array() {
		issue.Labels = append(issue.Labels, l.Get("name").String())
	}
	return issue
}

func numberFromURL(url string) (int, error) {
	i := strings.LastIndexByte(url, '/')
	if i < 0 {
		return 0, fmt.Errorf("unexpected gh output %q", url)
	}
	n, err := strconv.Atoi(url[i+1:])
	if err != nil {
		return 0, fmt.Errorf("unexpected gh output %q", url)
	}
	return n, nil
}
