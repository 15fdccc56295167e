package httpp

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"
)

// exit when there's a panic inside the HTTP handler.
// net/http swallows handler panics otherwise.
// https://github.com/golang/go/issues/16542
type handlerExitOnPanic struct {
	http.Handler
}

func (h *handlerExitOnPanic) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n\n%s", p, debug.Stack())
			os.Exit(1)
		}
	}()
	h.Handler.ServeHTTP(w, r)
}
