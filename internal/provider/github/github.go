// Package github provides the repository-backed corpus: the file listing
// comes from one recursive git tree call, content is fetched per file.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	gh "github.com/google/go-github/v66/github"

	"spoon/internal/corpus"
	"spoon/internal/logging"
)

// Provider reads one GitHub repository at its default branch.
type Provider struct {
	client   *gh.Client
	owner    string
	repo     string
	maxBytes int
}

// New creates a provider for the repository named by repoURL. The token is
// optional; unauthenticated clients just hit lower rate limits.
func New(repoURL, token string, maxUnitBytes int) (*Provider, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	if maxUnitBytes <= 0 {
		maxUnitBytes = 100_000
	}

	client := gh.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &Provider{client: client, owner: owner, repo: repo, maxBytes: maxUnitBytes}, nil
}

// ParseRepoURL extracts owner and repo from the forms users actually paste:
// full https URLs (with or without .git), host-less paths, and bare
// "owner/repo".
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimSuffix(s, ".git")

	if strings.Contains(s, "://") {
		u, perr := url.Parse(s)
		if perr != nil {
			return "", "", fmt.Errorf("parse repository url %q: %w", raw, perr)
		}
		if u.Host != "github.com" && u.Host != "www.github.com" {
			return "", "", fmt.Errorf("unsupported repository host %q", u.Host)
		}
		s = strings.TrimPrefix(u.Path, "/")
	} else {
		s = strings.TrimPrefix(s, "github.com/")
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository %q is not in owner/repo form", raw)
	}
	return parts[0], parts[1], nil
}

// List returns every blob in the repository's default branch tree.
func (p *Provider) List(ctx context.Context) ([]corpus.RawUnit, error) {
	timer := logging.StartTimer(logging.CategoryProvider, "github.List")
	defer timer.Stop()

	tree, _, err := p.client.Git.GetTree(ctx, p.owner, p.repo, "HEAD", true)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s tree: %w", p.owner, p.repo, err)
	}
	if tree.GetTruncated() {
		logging.Get(logging.CategoryProvider).Warn("github: tree for %s/%s truncated by the API", p.owner, p.repo)
	}

	var raw []corpus.RawUnit
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		raw = append(raw, corpus.RawUnit{Path: entry.GetPath(), Size: entry.GetSize()})
	}
	logging.Provider("github: listed %d blobs from %s/%s", len(raw), p.owner, p.repo)
	return raw, nil
}

// Fetch returns one file's decoded content. Oversized and non-UTF-8 files
// fail with a FetchError so the assembler can skip them.
func (p *Provider) Fetch(ctx context.Context, unitID string) (string, error) {
	file, _, _, err := p.client.Repositories.GetContents(ctx, p.owner, p.repo, unitID, nil)
	if err != nil {
		return "", &corpus.FetchError{UnitID: unitID, Err: err}
	}
	if file == nil {
		return "", &corpus.FetchError{UnitID: unitID, Err: fmt.Errorf("path is not a file")}
	}

	content, err := file.GetContent()
	if err != nil {
		return "", &corpus.FetchError{UnitID: unitID, Err: fmt.Errorf("decode content: %w", err)}
	}
	if len(content) > p.maxBytes {
		return "", &corpus.FetchError{UnitID: unitID, Err: fmt.Errorf("file is %d bytes, limit %d", len(content), p.maxBytes)}
	}
	if !utf8.ValidString(content) {
		return "", &corpus.FetchError{UnitID: unitID, Err: fmt.Errorf("content is not valid UTF-8")}
	}
	return content, nil
}
