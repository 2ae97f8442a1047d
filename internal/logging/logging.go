// Package logging builds the loggers used across the tool.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log output goes.
type Options struct {
	// Component becomes the "[component] " line prefix.
	Component string

	// Quiet drops everything below warnings (in practice: discards the
	// logger's output, since commands print results separately).
	Quiet bool

	// File, when set, mirrors output to a rotating log file. Long
	// running commands (dashboard, repeated syncs) set this so that
	// their history survives the terminal.
	File string
}

// New creates a logger per the options.
func New(opts Options) *log.Logger {
	prefix := ""
	if opts.Component != "" {
		prefix = "[" + opts.Component + "] "
	}

	var sinks []io.Writer
	if !opts.Quiet {
		sinks = append(sinks, os.Stderr)
	}
	if opts.File != "" {
		sinks = append(sinks, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	switch len(sinks) {
	case 0:
		return log.New(io.Discard, prefix, 0)
	case 1:
		return log.New(sinks[0], prefix, log.LstdFlags)
	default:
		return log.New(io.MultiWriter(sinks...), prefix, log.LstdFlags)
	}
}
