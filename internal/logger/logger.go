// Package logger contains a logger implementation.
package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Level is a log level.
type Level int

// Log levels.
const (
	Debug Level = iota + 1
	Info
	Warn
	Error
)

// Destination is a log destination.
type Destination int

const (
	// DestinationStdout writes logs to the standard output.
	DestinationStdout Destination = iota

	// DestinationFile writes logs to a file.
	DestinationFile
)

type destination interface {
	log(t time.Time, level Level, format string, args ...interface{})
	close()
}

// Writer is an object that provides a log method.
type Writer interface {
	Log(Level, string, ...interface{})
}

// Logger is a log handler.
type Logger struct {
	Level        Level
	Destinations []Destination
	Structured   bool
	File         string

	timeNow      func() time.Time
	stdout       io.Writer
	mutex        sync.Mutex
	destinations []destination
}

// Initialize initializes a Logger.
func (lh *Logger) Initialize() error {
	if lh.timeNow == nil {
		lh.timeNow = time.Now
	}

	for _, dest := range lh.Destinations {
		switch dest {
		case DestinationStdout:
			lh.destinations = append(lh.destinations, newDestinationStdout(lh.stdout, lh.Structured))

		case DestinationFile:
			d, err := newDestinationFile(lh.File, lh.Structured)
			if err != nil {
				lh.Close()
				return err
			}
			lh.destinations = append(lh.destinations, d)
		}
	}

	return nil
}

// Close closes a Logger.
func (lh *Logger) Close() {
	for _, dest := range lh.destinations {
		dest.close()
	}
	lh.destinations = nil
}

// Log writes a log entry.
func (lh *Logger) Log(level Level, format string, args ...interface{}) {
	if level < lh.Level {
		return
	}

	lh.mutex.Lock()
	defer lh.mutex.Unlock()

	t := lh.timeNow()
	for _, dest := range lh.destinations {
		dest.log(t, level, format, args...)
	}
}

// https://golang.org/src/log/log.go#L78
func itoa(i int, wid int) []byte {
	// Assemble decimal in reverse order.
	var b [20]byte
	bp := len(b) - 1
	for i >= 10 || wid > 1 {
		wid--
		q := i / 10
		b[bp] = byte('0' + i - q*10)
		bp--
		i = q
	}
	// i < 10
	b[bp] = byte('0' + i)
	return b[bp:]
}

func writeTime(buf *bytes.Buffer, t time.Time) {
	// date
	year, month, day := t.Date()
	buf.Write(itoa(year, 4))
	buf.WriteByte('/')
	buf.Write(itoa(int(month), 2))
	buf.WriteByte('/')
	buf.Write(itoa(day, 2))
	buf.WriteByte(' ')

	// time
	hour, minute, sec := t.Clock()
	buf.Write(itoa(hour, 2))
	buf.WriteByte(':')
	buf.Write(itoa(minute, 2))
	buf.WriteByte(':')
	buf.Write(itoa(sec, 2))
	buf.WriteByte(' ')
}

func levelLabel(level Level) string {
	switch level {
	case Debug:
		return "DEB"
	case Info:
		return "INF"
	case Warn:
		return "WAR"
	default:
		return "ERR"
	}
}

type structuredEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

func writeStructured(buf *bytes.Buffer, t time.Time, level Level, format string, args []interface{}) {
	enc, _ := json.Marshal(structuredEntry{
		Timestamp: t.Format(time.RFC3339Nano),
		Level:     levelLabel(level),
		Message:   fmt.Sprintf(format, args...),
	})
	buf.Write(enc)
	buf.WriteByte('\n')
}
