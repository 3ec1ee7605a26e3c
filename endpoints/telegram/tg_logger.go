package telegram

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type tgLogger struct {
	logger *zap.Logger

	// What -> With
	replacer *strings.Replacer
}

func (l *tgLogger) format(format string, args ...any) string {
	res := fmt.Sprintf(format, args...)
	if l.replacer != nil {
		res = l.replacer.Replace(res)
	}
	return res
}

func (l *tgLogger) Debugf(format string, args ...any) {
	// Do not process any kind of replacements if we don't have debug logs enabled
	if !l.logger.Core().Enabled(zapcore.DebugLevel) {
		return
	}
	l.logger.Debug("telegram api debug Message",
		zap.String("data", l.format(format, args...)),
	)
}

func (l *tgLogger) Errorf(format string, args ...any) {
	l.logger.Error("telegram api error Message",
		zap.String("data", l.format(format, args...)),
	)
}

// newTgLogger returns logger for telego that hides secrets, replaces are pairs of what -> with.
func newTgLogger(logger *zap.Logger, replaces []string) (*tgLogger, error) {
	logger = logger.With(
		zap.String("source", "telegram"),
	)

	l := &tgLogger{
		logger: logger,
	}

	if len(replaces) > 0 {
		if len(replaces)%2 != 0 {
			return nil, fmt.Errorf("replaces must be even, got %d", len(replaces))
		}
		l.replacer = strings.NewReplacer(replaces...)
	}

	return l, nil
}
