// Package httpp contains HTTP utilities.
package httpp

import (
	"context"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/a10y/camerars/internal/logger"
)

type nilWriter struct{}

func (nilWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

// WrappedServer is a wrapper around http.Server that provides:
// - net.Listener allocation and closure
// - exit on panic
// - logging
// - server header
// - filtering of invalid requests
type WrappedServer struct {
	Network     string
	Address     string
	ReadTimeout time.Duration
	Handler     http.Handler
	Parent      logger.Writer

	ln    net.Listener
	inner *http.Server
}

// Initialize initializes a WrappedServer.
func (s *WrappedServer) Initialize() error {
	var err error
	s.ln, err = net.Listen(s.Network, s.Address)
	if err != nil {
		return err
	}

	inner := s.Handler

	var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "camerars")

		// requests in absolute form (proxy style) carry an empty path
		if r.URL.Path == "" || r.URL.Path[0] != '/' {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		inner.ServeHTTP(w, r)
	})
	h = &handlerLogger{h, s.Parent}
	h = &handlerExitOnPanic{h}

	s.inner = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: s.ReadTimeout,
		ErrorLog:          log.New(&nilWriter{}, "", 0),
	}

	go s.inner.Serve(s.ln)

	return nil
}

// Close closes all resources and waits for all routines to return.
func (s *WrappedServer) Close() {
	ctx, ctxCancel := context.WithCancel(context.Background())
	ctxCancel()
	s.inner.Shutdown(ctx)
	s.ln.Close() // in case Shutdown() is called before Serve()
}
