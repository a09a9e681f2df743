// Package tracker defines the issue-tracker provider abstraction used by
// the bridge. Providers register themselves at init time; the factory
// builds one from configuration.
package tracker

import (
	"context"
	"fmt"
	"strings"
)

// Issue is the provider-neutral view of a remote issue. Number is the
// provider's human-facing issue number (GitLab's IID, not its global id).
type Issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	State  string   `json:"state"` // "open" or "closed"
	Labels []string `json:"labels,omitempty"`
	URL    string   `json:"url,omitempty"`
}

// IsClosed reports whether the issue is in a closed state.
func (i *Issue) IsClosed() bool {
	return i.State == "closed"
}

// HasLabel reports whether the issue carries the given label.
func (i *Issue) HasLabel(label string) bool {
	for _, l := range i.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// CreateOptions describes a new issue.
type CreateOptions struct {
	Title  string
	Body   string
	Labels []string
}

// UpdateOptions describes an issue edit. Empty Title and Body are left
// unchanged; Labels replaces the full label set when ReplaceLabels is set.
type UpdateOptions struct {
	Title         string
	Body          string
	Labels        []string
	ReplaceLabels bool
}

// Provider is one remote issue tracker.
type Provider interface {
	// Name identifies the provider ("ghcli", "github", "gitlab").
	Name() string
	// CheckAuth verifies the provider can reach the remote with its
	// current credentials.
	CheckAuth(ctx context.Context) error
	CreateIssue(ctx context.Context, opts CreateOptions) (*Issue, error)
	UpdateIssue(ctx context.Context, number int, opts UpdateOptions) (*Issue, error)
	// CloseIssue closes the issue, adding comment first when non-empty.
	CloseIssue(ctx context.Context, number int, comment string) error
	GetIssue(ctx context.Context, number int) (*Issue, error)
	// ListOpenIssues returns open issues, filtered by label when label is
	// non-empty.
	ListOpenIssues(ctx context.Context, label string) ([]*Issue, error)
}

// ParseOwnerRepo splits a repository reference into owner and name. It
// accepts "owner/repo", https URLs, and SSH remotes.
func ParseOwnerRepo(repo string) (owner, name string, err error) {
	s := strings.TrimSuffix(repo, ".git")
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		if j := strings.IndexByte(s, '/'); j >= 0 {
			s = s[j+1:]
		}
	} else if i := strings.IndexByte(s, ':'); i >= 0 && strings.Contains(s[:i], "@") {
		s = s[i+1:]
	}
	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("cannot parse owner/repo from %q", repo)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}
