// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

type Options struct {
	Level  string
	Format string
	Out    io.Writer
}

// New returns a logger writing to stderr (or opts.Out). Unknown levels fall back to warn.
func New(opts Options) *log.Logger {
	l := log.New()
	l.SetOutput(os.Stderr)
	if opts.Out != nil {
		l.SetOutput(opts.Out)
	}
	lvl, err := log.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		lvl = log.WarnLevel
	}
	l.SetLevel(lvl)
	if strings.EqualFold(opts.Format, "json") {
		l.SetFormatter(&log.JSONFormatter{})
	} else {
		l.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return l
}

// Discard returns an entry that drops everything.
func Discard() *log.Entry {
	l := log.New()
	l.SetOutput(io.Discard)
	return log.NewEntry(l)
}

// Component tags entries with the emitting subsystem.
func Component(l *log.Logger, name string) *log.Entry {
	return l.WithField("component", name)
}
