// Package logx provides a tiny tagged logger matching the bracket-prefixed
// log.Printf style used throughout the pack (e.g. "[MEMORY]", "[CHROMEM]").
package logx

import "log"

// Logger writes tagged, debug-gated log lines.
type Logger struct {
	tag   string
	debug bool
}

// New returns a Logger that prefixes every line with "[tag]" and is silent
// unless debug is true.
func New(tag string, debug bool) *Logger {
	return &Logger{tag: tag, debug: debug}
}

// Printf logs unconditionally — used for warnings callers need even with
// debug off (e.g. PersistenceFailure fallbacks).
func (l *Logger) Printf(format string, args ...interface{}) {
	log.Printf("["+l.tag+"] "+format, args...)
}

// Debugf logs only when the logger was constructed with debug=true.
func (l *Logger) Debugf(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	log.Printf("["+l.tag+"] "+format, args...)
}
