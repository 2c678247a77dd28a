package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// badgerLogger routes BadgerDB's printf-style logging into slog.
// Badger is chatty at info level, so its info output is demoted to debug.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) emit(level slog.Level, format string, args ...any) {
	if !l.log.Enabled(context.Background(), level) {
		return
	}
	l.log.Log(context.Background(), level, strings.TrimSpace(fmt.Sprintf(format, args...)), "source", "badger")
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.emit(slog.LevelError, format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.emit(slog.LevelWarn, format, args...)
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.emit(slog.LevelDebug, format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.emit(slog.LevelDebug, format, args...)
}
