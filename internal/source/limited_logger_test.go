package source

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/a10y/camerars/internal/logger"
	"github.com/a10y/camerars/internal/test"
)

func TestLimitedLogger(t *testing.T) {
	var lines []string
	l := newLimitedLogger(test.Logger(func(_ logger.Level, format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}))
	l.interval = time.Hour

	l.Log(logger.Warn, "decode error 1")
	l.Log(logger.Warn, "decode error 2")
	l.Log(logger.Warn, "decode error 3")

	require.Equal(t, []string{"decode error 1"}, lines)

	// past the interval, the next message reports what was dropped
	l.last = time.Now().Add(-2 * l.interval)
	l.Log(logger.Warn, "decode error 4")

	require.Equal(t, []string{
		"decode error 1",
		"decode error 4 (2 previous messages suppressed)",
	}, lines)
}
