// Package server wraps the HTTP listener with lifecycle management tuned for
// long-lived event streams.
package server

import (
	"context"
	"net/http"
	"time"
)

// Server is the gateway's HTTP server.
type Server struct {
	srv *http.Server
}

// New creates a server listening on the given port. WriteTimeout stays zero:
// SSE streams are open-ended and a write deadline would sever every stream
// after that interval.
func New(handler http.Handler, port string) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Start begins serving in a background goroutine. Listen failures surface on
// the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown stops accepting new connections and drains in-flight requests.
// Open SSE streams are closed by their request contexts being canceled.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
