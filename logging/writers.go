//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

const (
	traceLogFlags = log.Lmicroseconds | log.Lshortfile
	debugLogFlags = log.Lmicroseconds | log.Lshortfile
	stdLogFlags   = log.LstdFlags
	emptyLogFlags = 0
)

// writerSink adapts a standard library *log.Logger into a sink.
type writerSink struct {
	out *log.Logger
}

func (w *writerSink) emit(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if err := w.out.Output(4, msg); err != nil {
		fmt.Fprintf(os.Stderr, "nvmed logging: output failed: %s\n", err)
	}
}

func newSink(prefix string, flags int, dest io.Writer) sink {
	return &writerSink{out: log.New(dest, prefix, flags)}
}

// AddTraceSink adds a destination for Trace-level output.
func (ll *LeveledLogger) AddTraceSink(dest io.Writer) *LeveledLogger {
	ll.addSink(LogLevelTrace, newSink("TRACE ", traceLogFlags, dest))
	return ll
}

// AddDebugSink adds a destination for Debug-level output.
func (ll *LeveledLogger) AddDebugSink(dest io.Writer) *LeveledLogger {
	ll.addSink(LogLevelDebug, newSink("DEBUG ", debugLogFlags, dest))
	return ll
}

// AddInfoSink adds a destination for Info-level output.
func (ll *LeveledLogger) AddInfoSink(dest io.Writer) *LeveledLogger {
	ll.addSink(LogLevelInfo, newSink("INFO ", stdLogFlags, dest))
	return ll
}

// AddNoticeSink adds a destination for Notice-level output.
func (ll *LeveledLogger) AddNoticeSink(dest io.Writer) *LeveledLogger {
	ll.addSink(LogLevelNotice, newSink("NOTICE ", stdLogFlags, dest))
	return ll
}

// AddErrorSink adds a destination for Error-level output.
func (ll *LeveledLogger) AddErrorSink(dest io.Writer) *LeveledLogger {
	ll.addSink(LogLevelError, newSink("ERROR ", stdLogFlags, dest))
	return ll
}
