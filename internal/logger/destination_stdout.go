package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

func levelCode(level Level) string {
	switch level {
	case Debug:
		return color.Debug.Code()
	case Info:
		return color.Green.Code()
	case Warn:
		return color.Warn.Code()
	default:
		return color.Error.Code()
	}
}

type destinationStdout struct {
	w          io.Writer
	structured bool
	useColor   bool
	buf        bytes.Buffer
}

func newDestinationStdout(stdout io.Writer, structured bool) destination {
	useColor := false
	if stdout == nil {
		stdout = os.Stdout
		useColor = term.IsTerminal(int(os.Stdout.Fd()))
	}

	return &destinationStdout{
		w:          stdout,
		structured: structured,
		useColor:   useColor,
	}
}

func (d *destinationStdout) log(t time.Time, level Level, format string, args ...interface{}) {
	d.buf.Reset()

	switch {
	case d.structured:
		writeStructured(&d.buf, t, level, format, args)

	case d.useColor:
		var intbuf bytes.Buffer
		writeTime(&intbuf, t)
		d.buf.WriteString(color.RenderString(color.Gray.Code(), intbuf.String()))
		d.buf.WriteString(color.RenderString(levelCode(level), levelLabel(level)))
		d.buf.WriteByte(' ')
		fmt.Fprintf(&d.buf, format, args...)
		d.buf.WriteByte('\n')

	default:
		writeTime(&d.buf, t)
		d.buf.WriteString(levelLabel(level))
		d.buf.WriteByte(' ')
		fmt.Fprintf(&d.buf, format, args...)
		d.buf.WriteByte('\n')
	}

	d.w.Write(d.buf.Bytes()) //nolint:errcheck
}

func (d *destinationStdout) close() {
}
