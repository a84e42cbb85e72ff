package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pushp314/shiplog-backend/pkg/logger"
)

// Commit is the slice of the GitHub commit payload the pipeline cares about
type Commit struct {
	SHA         string    `json:"sha"`
	Message     string    `json:"message"`
	Author      string    `json:"author"`
	AuthorLogin string    `json:"authorLogin"`
	Date        time.Time `json:"date"`
}

type Repository struct {
	FullName      string `json:"fullName"`
	Description   string `json:"description"`
	DefaultBranch string `json:"defaultBranch"`
	Private       bool   `json:"private"`
}

type Branch struct {
	Name string `json:"name"`
}

// CommitFetcher is the source-control collaborator consumed by the
// generation pipeline. Tests substitute a fake.
type CommitFetcher interface {
	ListCommits(ctx context.Context, token, owner, repo, branch string, since, until time.Time) ([]Commit, error)
}

var ErrRepoNotFound = errors.New("repository not found or not accessible")

// Commit pages are 100 wide; a generation stops fetching past this many
// commits so a runaway date range cannot produce an unbounded prompt.
const maxCommitsPerGeneration = 300

// GitHubClient talks to the GitHub REST API v3
type GitHubClient struct {
	baseURL string
	http    *http.Client
}

func NewGitHubClient(baseURL string) *GitHubClient {
	return &GitHubClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *GitHubClient) get(ctx context.Context, token, path string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRepoNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("github api returned status %d for %s", resp.StatusCode, path)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}

// ListCommits fetches commits on a branch within [since, until], newest
// first, paginating until the range or the cap is exhausted.
func (c *GitHubClient) ListCommits(ctx context.Context, token, owner, repo, branch string, since, until time.Time) ([]Commit, error) {
	var commits []Commit

	for page := 1; len(commits) < maxCommitsPerGeneration; page++ {
		q := url.Values{}
		q.Set("sha", branch)
		q.Set("since", since.UTC().Format(time.RFC3339))
		q.Set("until", until.UTC().Format(time.RFC3339))
		q.Set("per_page", "100")
		q.Set("page", fmt.Sprintf("%d", page))

		var raw []struct {
			SHA    string `json:"sha"`
			Commit struct {
				Message string `json:"message"`
				Author  struct {
					Name string    `json:"name"`
					Date time.Time `json:"date"`
				} `json:"author"`
			} `json:"commit"`
			Author *struct {
				Login string `json:"login"`
			} `json:"author"`
		}

		path := fmt.Sprintf("/repos/%s/%s/commits?%s", owner, repo, q.Encode())
		if err := c.get(ctx, token, path, &raw); err != nil {
			return nil, err
		}

		for _, r := range raw {
			commit := Commit{
				SHA:     r.SHA,
				Message: r.Commit.Message,
				Author:  r.Commit.Author.Name,
				Date:    r.Commit.Author.Date,
			}
			if r.Author != nil {
				commit.AuthorLogin = r.Author.Login
			}
			commits = append(commits, commit)
		}

		if len(raw) < 100 {
			break
		}
	}

	if len(commits) > maxCommitsPerGeneration {
		commits = commits[:maxCommitsPerGeneration]
	}

	logger.Debug().
		Str("repo", owner+"/"+repo).
		Str("branch", branch).
		Int("commits", len(commits)).
		Msg("Fetched commit history")

	return commits, nil
}

// ListRepositories returns the repositories visible to the token's user
func (c *GitHubClient) ListRepositories(ctx context.Context, token string) ([]Repository, error) {
	var raw []struct {
		FullName      string `json:"full_name"`
		Description   string `json:"description"`
		DefaultBranch string `json:"default_branch"`
		Private       bool   `json:"private"`
	}
	if err := c.get(ctx, token, "/user/repos?sort=pushed&per_page=100", &raw); err != nil {
		return nil, err
	}

	repos := make([]Repository, 0, len(raw))
	for _, r := range raw {
		repos = append(repos, Repository{
			FullName:      r.FullName,
			Description:   r.Description,
			DefaultBranch: r.DefaultBranch,
			Private:       r.Private,
		})
	}
	return repos, nil
}

// ListBranches returns the branches of a repository
func (c *GitHubClient) ListBranches(ctx context.Context, token, owner, repo string) ([]Branch, error) {
	var raw []struct {
		Name string `json:"name"`
	}
	path := fmt.Sprintf("/repos/%s/%s/branches?per_page=100", owner, repo)
	if err := c.get(ctx, token, path, &raw); err != nil {
		return nil, err
	}

	branches := make([]Branch, 0, len(raw))
	for _, b := range raw {
		branches = append(branches, Branch{Name: b.Name})
	}
	return branches, nil
}
