package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lomik/zapwriter"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pysal/release2news/types"
)

var (
	// ErrNotFound is returned when repository or its latest release does not exist
	ErrNotFound = errors.New("not found")
	// ErrNoCommits is returned when repository commit history is empty
	ErrNoCommits = errors.New("empty commit history")
)

// FetchError describes failed call to GitHub API.
type FetchError struct {
	Owner      string
	Repo       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s/%s: status %d: %v", e.Owner, e.Repo, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("failed to fetch %s/%s: %v", e.Owner, e.Repo, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client is an unauthenticated GitHub REST API client
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client

	logger *zap.Logger
}

func NewClient(baseURL, userAgent string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		logger: zapwriter.Logger("github"),
	}
}

type releaseResponse struct {
	TagName     string `json:"tag_name"`
	PublishedAt string `json:"published_at"`
}

type commitResponse struct {
	Commit struct {
		Committer struct {
			Date string `json:"date"`
		} `json:"committer"`
	} `json:"commit"`
}

// LatestRelease returns tag and publish date of the latest release of owner/repo.
// Any failure is returned as *FetchError.
func (c *Client) LatestRelease(ctx context.Context, owner, repo string) (*types.Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.BaseURL, owner, repo)

	var resp releaseResponse
	err := c.get(ctx, owner, repo, url, &resp)
	if err != nil {
		c.logger.Warn("failed to fetch the latest release",
			zap.String("owner", owner),
			zap.String("repo", repo),
			zap.Error(err),
		)
		return nil, err
	}

	return &types.Release{
		Tag:         resp.TagName,
		PublishedAt: resp.PublishedAt,
	}, nil
}

// LatestCommitDate returns committer date of the most recent commit in owner/repo.
func (c *Client) LatestCommitDate(ctx context.Context, owner, repo string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/commits", c.BaseURL, owner, repo)

	var commits []commitResponse
	err := c.get(ctx, owner, repo, url, &commits)
	if err == nil && len(commits) == 0 {
		err = &FetchError{Owner: owner, Repo: repo, Err: ErrNoCommits}
	}
	if err != nil {
		c.logger.Error("failed to fetch latest commit date",
			zap.String("owner", owner),
			zap.String("repo", repo),
			zap.Error(err),
		)
		return "", err
	}

	return commits[0].Commit.Committer.Date, nil
}

func (c *Client) get(ctx context.Context, owner, repo, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &FetchError{Owner: owner, Repo: repo, Err: err}
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &FetchError{Owner: owner, Repo: repo, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &FetchError{Owner: owner, Repo: repo, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return &FetchError{Owner: owner, Repo: repo, StatusCode: resp.StatusCode, Err: ErrNotFound}
	default:
		return &FetchError{
			Owner:      owner,
			Repo:       repo,
			StatusCode: resp.StatusCode,
			Err:        errors.Errorf("unexpected response: %s", truncate(body, 200)),
		}
	}

	err = json.Unmarshal(body, v)
	if err != nil {
		return &FetchError{Owner: owner, Repo: repo, StatusCode: resp.StatusCode, Err: errors.Wrap(err, "failed to parse GitHub response")}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
