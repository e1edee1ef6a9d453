package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with the timeouts this service expects. The write
// timeout is generous because finalize and generation wait on upstream calls.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
