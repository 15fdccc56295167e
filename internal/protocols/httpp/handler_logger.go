package httpp

import (
	"net/http"
	"time"

	"github.com/a10y/camerars/internal/logger"
)

// countingWriter records the status code and body size of a response.
// Segment responses weigh megabytes, so the body itself is not retained.
type countingWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *countingWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *countingWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// log requests and responses.
type handlerLogger struct {
	http.Handler
	log logger.Writer
}

func (h *handlerLogger) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.log.Log(logger.Debug, "[conn %v] %s %s", r.RemoteAddr, r.Method, r.RequestURI)

	cw := &countingWriter{ResponseWriter: w}
	start := time.Now()

	h.Handler.ServeHTTP(cw, r)

	if cw.status == 0 {
		cw.status = http.StatusOK
	}

	h.log.Log(logger.Debug, "[conn %v] %d %s (%d bytes, %v)",
		r.RemoteAddr, cw.status, http.StatusText(cw.status), cw.bytes,
		time.Since(start).Round(time.Millisecond))
}
