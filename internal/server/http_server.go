package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServer runs an http.Server in the background and reports when it stops
type HTTPServer struct {
	server *http.Server
	notify chan error
}

func NewHTTPServer(handler http.Handler, address string) *HTTPServer {
	s := &HTTPServer{
		server: &http.Server{
			Handler:           handler,
			Addr:              address,
			ReadHeaderTimeout: 10 * time.Second,
		},
		notify: make(chan error, 1),
	}
	s.start()
	return s
}

func (s *HTTPServer) start() {
	go func() {
		err := s.server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			s.notify <- err
		}
		close(s.notify)
	}()
}

// Notify yields the error that stopped the server unexpectedly
func (s *HTTPServer) Notify() <-chan error {
	return s.notify
}

// OnShutdown registers f to run when Shutdown starts. Long-lived handlers,
// such as event streams, use it to return so Shutdown can finish.
func (s *HTTPServer) OnShutdown(f func()) {
	s.server.RegisterOnShutdown(f)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *HTTPServer) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}
