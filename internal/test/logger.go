package test

import "github.com/a10y/camerars/internal/logger"

// Logger is a logger.Writer that forwards entries to a callback.
type Logger func(logger.Level, string, ...interface{})

// Log implements logger.Writer.
func (l Logger) Log(level logger.Level, format string, args ...interface{}) {
	l(level, format, args...)
}

// NilLogger discards every entry.
var NilLogger logger.Writer = Logger(func(logger.Level, string, ...interface{}) {})
