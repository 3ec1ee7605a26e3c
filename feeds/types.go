package feeds

import (
	"context"

	"github.com/pysal/release2news/types"
)

// ReleaseSource returns the latest release of a repository.
type ReleaseSource interface {
	LatestRelease(ctx context.Context, owner, repo string) (*types.Release, error)
}

// WatermarkSource returns date of the latest commit to a repository.
type WatermarkSource interface {
	LatestCommitDate(ctx context.Context, owner, repo string) (string, error)
}

// Result of a single run
type Result struct {
	Updates []string
	Notes   []string
}
