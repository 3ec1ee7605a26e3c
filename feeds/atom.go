package feeds

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lomik/zapwriter"
	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pysal/release2news/github"
	"github.com/pysal/release2news/types"
)

// AtomSource reads latest release from repository releases.atom feed.
// Atom feed have no publish date, entry update time is used instead.
type AtomSource struct {
	BaseURL string

	parser *gofeed.Parser
	logger *zap.Logger
}

func NewAtomSource(baseURL, userAgent string, timeout time.Duration) *AtomSource {
	if baseURL == "" {
		baseURL = "https://github.com"
	}
	fp := gofeed.NewParser()
	fp.UserAgent = userAgent
	fp.Client = &http.Client{Timeout: timeout}

	return &AtomSource{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		parser:  fp,
		logger:  zapwriter.Logger("atom"),
	}
}

func (s *AtomSource) LatestRelease(ctx context.Context, owner, repo string) (*types.Release, error) {
	url := s.BaseURL + "/" + owner + "/" + repo + "/releases.atom"

	release, err := s.fetch(ctx, url, owner, repo)
	if err != nil {
		s.logger.Warn("failed to fetch the latest release",
			zap.String("owner", owner),
			zap.String("repo", repo),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, err
	}
	return release, nil
}

func (s *AtomSource) fetch(ctx context.Context, url, owner, repo string) (*types.Release, error) {
	feed, err := s.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		fetchErr := &github.FetchError{Owner: owner, Repo: repo, Err: err}
		var httpErr gofeed.HTTPError
		if errors.As(err, &httpErr) {
			fetchErr.StatusCode = httpErr.StatusCode
			if httpErr.StatusCode == http.StatusNotFound {
				fetchErr.Err = github.ErrNotFound
			}
		}
		return nil, fetchErr
	}

	// github lists newest release first
	for _, item := range feed.Items {
		if item.UpdatedParsed == nil {
			continue
		}
		return &types.Release{
			Tag:         tagFromItem(item),
			PublishedAt: item.UpdatedParsed.UTC().Format(time.RFC3339),
		}, nil
	}

	return nil, &github.FetchError{Owner: owner, Repo: repo, Err: github.ErrNotFound}
}

func tagFromItem(item *gofeed.Item) string {
	const marker = "/releases/tag/"
	if idx := strings.LastIndex(item.Link, marker); idx >= 0 {
		return item.Link[idx+len(marker):]
	}
	return strings.TrimSpace(item.Title)
}
