// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

type Options struct {
	Level  string // trace, debug, info, warn, error
	Format string // text, json
	// File redirects output away from the terminal. Empty means Output.
	File   string
	Output io.Writer
}

// New returns a configured logger and a closer for any file it opened.
func New(opts Options) (*logrus.Logger, func() error, error) {
	logger := logrus.New()
	closer := func() error { return nil }

	level := logrus.InfoLevel
	if opts.Level != "" {
		l, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, closer, fmt.Errorf("log level: %w", err)
		}
		level = l
	}
	logger.SetLevel(level)

	switch strings.ToLower(opts.Format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, closer, fmt.Errorf("log format %q: must be text or json", opts.Format)
	}

	switch {
	case opts.File != "":
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, closer, err
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, closer, err
		}
		logger.SetOutput(f)
		closer = f.Close
	case opts.Output != nil:
		logger.SetOutput(opts.Output)
	default:
		logger.SetOutput(os.Stderr)
	}

	return logger, closer, nil
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
