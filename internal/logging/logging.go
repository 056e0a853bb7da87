// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// DebugEnv turns on debug logging when set to "true" or "1"
const DebugEnv = "AGENCY_CHAT_DEBUG"

// Options configure New
type Options struct {
	Level  string
	Format string // "text" or "json"
	Output io.Writer
}

// New creates a logger. DebugEnv overrides the configured level.
func New(opts Options) *logrus.Logger {
	l := logrus.New()

	if opts.Output != nil {
		l.SetOutput(opts.Output)
	} else {
		l.SetOutput(os.Stderr)
	}

	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level := logrus.InfoLevel
	if opts.Level != "" {
		if parsed, err := logrus.ParseLevel(opts.Level); err == nil {
			level = parsed
		}
	}
	if debug := os.Getenv(DebugEnv); debug == "true" || debug == "1" {
		level = logrus.DebugLevel
	}
	l.SetLevel(level)

	return l
}

// Discard returns a logger that writes nowhere
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
