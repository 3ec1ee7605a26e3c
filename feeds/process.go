package feeds

import (
	"context"
	"fmt"
	"time"

	"github.com/lomik/zapwriter"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pysal/release2news/db"
	"github.com/pysal/release2news/endpoints"
	"github.com/pysal/release2news/notes"
	"github.com/pysal/release2news/types"
)

// ErrNoWatermark is returned when date of the last news site update is unknown.
// Freshness can't be evaluated without it.
var ErrNoWatermark = errors.New("news site last update date is unavailable")

// NoteError is a failure to write a note for one package
type NoteError struct {
	Package string
	Err     error
}

func (e *NoteError) Error() string {
	return fmt.Sprintf("note for %s: %v", e.Package, e.Err)
}

func (e *NoteError) Unwrap() error {
	return e.Err
}

type Config struct {
	Owner     string
	NewsOwner string
	NewsRepo  string
	OutputDir string
}

type Updater struct {
	cfg       Config
	releases  ReleaseSource
	watermark WatermarkSource
	db        db.Database
	notes     *notes.Generator
	senders   []endpoints.NotificationEndpoint

	logger *zap.Logger
}

func NewUpdater(cfg Config, releases ReleaseSource, watermark WatermarkSource, database db.Database, generator *notes.Generator, senders ...endpoints.NotificationEndpoint) *Updater {
	return &Updater{
		cfg:       cfg,
		releases:  releases,
		watermark: watermark,
		db:        database,
		notes:     generator,
		senders:   senders,
		logger:    zapwriter.Logger("updater"),
	}
}

// RefreshAll fetches latest release of every package, one at a time, and replaces stored catalog.
// Failed fetch is stored as a package without release.
func (u *Updater) RefreshAll(ctx context.Context, packages []string) (types.Catalog, error) {
	t0 := time.Now()
	catalog := make(types.Catalog, 0, len(packages))
	failed := 0
	for _, pkg := range packages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		release, err := u.releases.LatestRelease(ctx, u.cfg.Owner, pkg)
		if err != nil {
			failed++
			release = nil
		}
		catalog = append(catalog, types.CatalogEntry{Package: pkg, Release: release})
	}

	err := u.db.SaveCatalog(catalog)
	if err != nil {
		return nil, errors.Wrap(err, "failed to save release catalog")
	}

	u.logger.Info("release catalog refreshed",
		zap.Int("packages", len(packages)),
		zap.Int("failed", failed),
		zap.Duration("runtime", time.Since(t0)),
	)
	return catalog, nil
}

func (u *Updater) Load() (types.Catalog, error) {
	return u.db.LoadCatalog()
}

// Watermark returns date of the last commit to the news site repository
func (u *Updater) Watermark(ctx context.Context) (string, error) {
	date, err := u.watermark.LatestCommitDate(ctx, u.cfg.NewsOwner, u.cfg.NewsRepo)
	if err != nil {
		return "", errors.Wrapf(ErrNoWatermark, "%v", err)
	}
	if date == "" {
		return "", ErrNoWatermark
	}
	return date, nil
}

// Evaluate returns packages released after watermark, in catalog order.
// Dates are compared as ISO-8601 UTC strings.
func Evaluate(catalog types.Catalog, watermark string) ([]string, error) {
	if watermark == "" {
		return nil, ErrNoWatermark
	}

	updates := make([]string, 0)
	for _, e := range catalog {
		if e.Release == nil {
			continue
		}
		if e.Release.PublishedAt > watermark {
			updates = append(updates, e.Package)
		}
	}
	return updates, nil
}

// Check evaluates stored catalog against current watermark without refreshing it
func (u *Updater) Check(ctx context.Context) (types.Catalog, []string, error) {
	catalog, err := u.Load()
	if err != nil {
		return nil, nil, err
	}

	watermark, err := u.Watermark(ctx)
	if err != nil {
		return nil, nil, err
	}

	updates, err := Evaluate(catalog, watermark)
	if err != nil {
		return nil, nil, err
	}

	u.logger.Info("updates evaluated",
		zap.String("watermark", watermark),
		zap.Strings("updates", updates),
	)
	return catalog, updates, nil
}

// Generate writes note for every updated package. Failure for one package doesn't stop the others.
func (u *Updater) Generate(catalog types.Catalog, updates []string) ([]string, error) {
	var written []string
	var errs error
	for _, pkg := range updates {
		release, ok := catalog.Get(pkg)
		if !ok || release == nil {
			errs = multierr.Append(errs, &NoteError{Package: pkg, Err: errors.New("no release in catalog")})
			continue
		}

		path, err := u.notes.Write(u.cfg.OutputDir, pkg, *release)
		if err != nil {
			u.logger.Error("failed to write note",
				zap.String("package", pkg),
				zap.Error(err),
			)
			errs = multierr.Append(errs, &NoteError{Package: pkg, Err: err})
			continue
		}

		u.logger.Info("note written",
			zap.String("package", pkg),
			zap.String("tag", release.Tag),
			zap.String("path", path),
		)
		written = append(written, path)

		for _, s := range u.senders {
			err = s.Announce(pkg, *release, u.notes.ReleaseURL(pkg, *release))
			if err != nil {
				u.logger.Warn("failed to announce release",
					zap.String("package", pkg),
					zap.Error(err),
				)
			}
		}
	}
	return written, errs
}

// Run refreshes catalog, determines updated packages and writes a note for each of them.
func (u *Updater) Run(ctx context.Context, packages []string) (*Result, error) {
	for _, s := range u.senders {
		err := s.Process()
		if err != nil {
			u.logger.Warn("failed to process resend queue",
				zap.Error(err),
			)
		}
	}

	_, err := u.RefreshAll(ctx, packages)
	if err != nil {
		return nil, err
	}

	catalog, updates, err := u.Check(ctx)
	if err != nil {
		return nil, err
	}

	written, err := u.Generate(catalog, updates)
	return &Result{Updates: updates, Notes: written}, err
}
