//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package logging

import (
	"io"
	"log/syslog"
	"os"
)

// DefaultLogLevel is the level new loggers start at absent configuration.
const DefaultLogLevel = LogLevelInfo

// NewCombinedLogger returns a logger that sends Debug/Info/Notice/Error
// output to the supplied writer, suitable for systemd-supervised daemons
// where stdout/stderr are already captured by the journal.
func NewCombinedLogger(output io.Writer) *LeveledLogger {
	ll := &LeveledLogger{level: DefaultLogLevel}
	ll.AddDebugSink(output)
	ll.AddInfoSink(output)
	ll.AddNoticeSink(output)
	ll.AddErrorSink(output)
	return ll
}

// NewSyslogLogger returns a logger that writes Notice and Error messages to
// the local syslog daemon in addition to stderr, for a BMC daemon running
// outside of a systemd journal capture context.
func NewSyslogLogger(tag string) (*LeveledLogger, error) {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_NOTICE, tag)
	if err != nil {
		return nil, err
	}

	ll := NewCombinedLogger(os.Stderr)
	ll.AddNoticeSink(w)
	ll.AddErrorSink(w)
	return ll, nil
}

// NewTestLogger returns a logger and a *LogBuffer, with the logger
// configured to capture all output at Trace level for test assertions.
func NewTestLogger(prefix string) (*LeveledLogger, *LogBuffer) {
	buf := new(LogBuffer)
	ll := NewCombinedLogger(buf).WithLogLevel(LogLevelTrace)
	ll.AddTraceSink(buf)
	if prefix != "" {
		ll.WithContext(prefix)
	}
	return ll, buf
}
