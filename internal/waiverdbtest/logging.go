// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package waiverdbtest holds helpers for testing the waiver database
// server.
package waiverdbtest

import (
	"os"
	"strings"
	"sync"

	qt "github.com/frankban/quicktest"
	"github.com/juju/loggo"
)

// LogTo routes loggo output to the test log until the test finishes.
// TEST_LOGGING_CONFIG, if set, holds the logging configuration to use
// (the default is "DEBUG"). The returned Log also records every entry
// so that tests can check what was logged.
func LogTo(c *qt.C) *Log {
	cfg := os.Getenv("TEST_LOGGING_CONFIG")
	if cfg == "" {
		cfg = "DEBUG"
	}
	l := &Log{c: c}
	// Replace the default writer so that output only goes to the
	// test log.
	loggo.ResetLogging()
	err := loggo.RegisterWriter(loggo.DefaultWriterName, discardWriter{})
	c.Assert(err, qt.IsNil)
	err = loggo.RegisterWriter("waiverdbtest", l)
	c.Assert(err, qt.IsNil)
	err = loggo.ConfigureLoggers(cfg)
	c.Assert(err, qt.IsNil)
	c.Cleanup(loggo.ResetLogging)
	return l
}

// Log is a loggo.Writer that writes to the test log.
type Log struct {
	c *qt.C

	mu      sync.Mutex
	entries []loggo.Entry
}

// Write implements loggo.Writer.
func (l *Log) Write(entry loggo.Entry) {
	l.c.Logf("%s %s %s", entry.Level, entry.Module, entry.Message)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

// Contains reports whether a message containing s has been logged at
// the given level or above.
func (l *Log) Contains(level loggo.Level, s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.Level >= level && strings.Contains(e.Message, s) {
			return true
		}
	}
	return false
}

type discardWriter struct{}

func (discardWriter) Write(entry loggo.Entry) {
}
