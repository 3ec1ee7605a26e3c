package main

import (
	"log"
	"os"

	"github.com/lomik/zapwriter"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/pysal/release2news/configs"
	"github.com/pysal/release2news/db"
	"github.com/pysal/release2news/feeds"
)

const (
	exitOK = iota
	exitError
	exitStore
	exitWatermark
	exitNotes
)

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var noteErr *feeds.NoteError
	switch {
	case errors.Is(err, db.ErrStoreMissing), errors.Is(err, db.ErrStoreCorrupt):
		return exitStore
	case errors.Is(err, feeds.ErrNoWatermark):
		return exitWatermark
	case errors.As(err, &noteErr):
		return exitNotes
	}
	return exitError
}

func main() {
	err := zapwriter.ApplyConfig([]zapwriter.Config{configs.DefaultLoggerConfig})
	if err != nil {
		log.Fatal("Failed to initialize logger with default configuration")
	}

	err = rootCmd.Execute()
	if err != nil {
		zapwriter.Logger("main").Error("release2news failed",
			zap.Error(err),
			zap.Int("exit_code", exitCode(err)),
		)
	}
	os.Exit(exitCode(err))
}
