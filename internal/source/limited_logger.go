package source

import (
	"sync"
	"time"

	"github.com/a10y/camerars/internal/logger"
)

// limitedLogger drops messages that arrive less than interval apart.
// Decode errors can arrive at packet rate on a corrupted stream, which
// would otherwise flood the log.
type limitedLogger struct {
	w        logger.Writer
	interval time.Duration

	mutex      sync.Mutex
	last       time.Time
	suppressed int
}

func newLimitedLogger(w logger.Writer) *limitedLogger {
	return &limitedLogger{
		w:        w,
		interval: 1 * time.Second,
	}
}

func (l *limitedLogger) Log(level logger.Level, format string, args ...interface{}) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := time.Now()
	if now.Sub(l.last) < l.interval {
		l.suppressed++
		return
	}
	l.last = now

	if l.suppressed > 0 {
		format += " (%d previous messages suppressed)"
		args = append(args, l.suppressed)
		l.suppressed = 0
	}

	l.w.Log(level, format, args...)
}
