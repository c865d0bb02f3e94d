// Package common holds the logging helpers shared by long-lived components.
package common

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lugondev/go-cash/internal/config"
)

// LoggerMixin gives a component a replaceable logger. The zero value logs
// through slog.Default.
type LoggerMixin struct {
	logger *slog.Logger
}

func NewLoggerMixin() LoggerMixin {
	return LoggerMixin{logger: slog.Default()}
}

// SetLogger ignores nil.
func (l *LoggerMixin) SetLogger(logger *slog.Logger) {
	if logger != nil {
		l.logger = logger
	}
}

func (l *LoggerMixin) GetLogger() *slog.Logger {
	if l.logger == nil {
		return slog.Default()
	}
	return l.logger
}

// ParseLevel accepts the slog level names, case-insensitively, plus
// "warning". An empty name means info.
func ParseLevel(name string) (slog.Level, error) {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "":
		return slog.LevelInfo, nil
	case "warning":
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// NewLogger builds a text or JSON logger on w, or on stderr when w is nil.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", cfg.Format)
}
