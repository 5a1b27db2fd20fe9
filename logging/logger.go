//
// (C) Copyright 2018-2026 NVIDIA Corporation.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//
package logging

import "sync"

type (
	// Logger defines the standard logging interface used throughout nvmed.
	Logger interface {
		EnabledFor(level LogLevel) bool
		Tracef(format string, args ...interface{})
		Debugf(format string, args ...interface{})
		Infof(format string, args ...interface{})
		Noticef(format string, args ...interface{})
		Errorf(format string, args ...interface{})
	}

	// Outputter defines an interface implemented by output formatters.
	Outputter interface {
		Output(callDepth int, msg string) error
	}

	// LeveledLogger emits log messages to zero or more sinks per level,
	// gated by a minimum level.
	LeveledLogger struct {
		mu sync.RWMutex

		level   LogLevel
		sinks   [LogLevelTrace + 1][]sink
		context string
	}

	sink interface {
		emit(format string, args ...interface{})
	}
)

// SetLevel sets the minimum level at or above which messages are emitted.
func (ll *LeveledLogger) SetLevel(newLevel LogLevel) {
	ll.level.Set(newLevel)
}

// Level returns the logger's current level.
func (ll *LeveledLogger) Level() LogLevel {
	return ll.level.Get()
}

// EnabledFor returns true if the logger would emit at the given level.
func (ll *LeveledLogger) EnabledFor(level LogLevel) bool {
	return ll.level.Get() >= level
}

// WithLogLevel sets the level and returns the logger for chaining.
func (ll *LeveledLogger) WithLogLevel(level LogLevel) *LeveledLogger {
	ll.SetLevel(level)
	return ll
}

// WithContext tags every subsequent message with a prefix such as
// "drive[9]" and returns the logger for chaining.
func (ll *LeveledLogger) WithContext(ctx string) *LeveledLogger {
	ll.context = ctx
	return ll
}

func (ll *LeveledLogger) addSink(level LogLevel, s sink) {
	ll.mu.Lock()
	defer ll.mu.Unlock()
	ll.sinks[level] = append(ll.sinks[level], s)
}

func (ll *LeveledLogger) emit(level LogLevel, format string, args ...interface{}) {
	if ll.Level() < level {
		return
	}

	ll.mu.RLock()
	sinks := ll.sinks[level]
	ll.mu.RUnlock()

	if ll.context != "" {
		format = ll.context + ": " + format
	}

	for _, s := range sinks {
		s.emit(format, args...)
	}
}

// Tracef emits a formatted message at Trace level.
func (ll *LeveledLogger) Tracef(format string, args ...interface{}) {
	ll.emit(LogLevelTrace, format, args...)
}

// Debugf emits a formatted message at Debug level.
func (ll *LeveledLogger) Debugf(format string, args ...interface{}) {
	ll.emit(LogLevelDebug, format, args...)
}

// Infof emits a formatted message at Info level.
func (ll *LeveledLogger) Infof(format string, args ...interface{}) {
	ll.emit(LogLevelInfo, format, args...)
}

// Noticef emits a formatted message at Notice level.
func (ll *LeveledLogger) Noticef(format string, args ...interface{}) {
	ll.emit(LogLevelNotice, format, args...)
}

// Errorf emits a formatted message at Error level.
func (ll *LeveledLogger) Errorf(format string, args ...interface{}) {
	ll.emit(LogLevelError, format, args...)
}
