// Package notes renders release announcements for the news site.
package notes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/pysal/release2news/types"
)

// Generator renders news entries for releases of packages owned by Owner.
type Generator struct {
	Owner     string
	GitHubURL string
}

func NewGenerator(owner, githubURL string) *Generator {
	if githubURL == "" {
		githubURL = "https://github.com"
	}
	return &Generator{
		Owner:     owner,
		GitHubURL: strings.TrimSuffix(githubURL, "/"),
	}
}

// ReleaseURL returns link to the release page, original tag is used.
func (g *Generator) ReleaseURL(pkg string, release types.Release) string {
	return fmt.Sprintf("%s/%s/%s/releases/tag/%s", g.GitHubURL, g.Owner, pkg, release.Tag)
}

// Render returns news entry for the release. Output depends only on arguments.
func (g *Generator) Render(pkg string, release types.Release) string {
	tag := release.Version()
	date := release.Date()

	var year, month string
	parts := strings.SplitN(date, "-", 3)
	if len(parts) == 3 {
		year = parts[0]
		month = parts[1] + "." + parts[2]
	}

	lines := []string{
		"---",
		fmt.Sprintf("title: %s %s", pkg, tag),
		fmt.Sprintf("date: %s", date),
		fmt.Sprintf("description: %s %s released.", pkg, tag),
		"type: news",
		fmt.Sprintf(`month: "%s"`, month),
		fmt.Sprintf(`year: "%s"`, year),
		fmt.Sprintf(`link: "%s"`, g.ReleaseURL(pkg, release)),
		"---",
	}
	return strings.Join(lines, "\n")
}

// FileName returns artifact name for the release: {package}_{version}.md
func FileName(pkg string, release types.Release) string {
	return pkg + "_" + release.Version() + ".md"
}

// Persist writes document to dir, existing file is overwritten. Returns written path.
func Persist(document, dir, pkg string, release types.Release) (string, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create output directory %q", dir)
	}

	path := filepath.Join(dir, FileName(pkg, release))
	err = os.WriteFile(path, []byte(document), 0644)
	if err != nil {
		return "", errors.Wrapf(err, "failed to write note for %s", pkg)
	}
	return path, nil
}

// Write renders and persists note for the release.
func (g *Generator) Write(dir, pkg string, release types.Release) (string, error) {
	return Persist(g.Render(pkg, release), dir, pkg, release)
}
