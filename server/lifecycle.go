package server

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
)

// getState returns the current server state
func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

// setState atomically updates the server state
func (s *Server) setState(newState ServerState) {
	s.state.Store(int32(newState))
	s.logger.Infow("Server state changed", "new_state", stateString(newState))
}

// stateString returns human-readable state name
func stateString(state ServerState) string {
	switch state {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WatchConfig reloads the parser whenever the config file at path changes
func (s *Server) WatchConfig(path string, opts ...am.WatcherOption) error {
	w, err := am.NewConfigWatcher(path, opts...)
	if err != nil {
		return errors.Wrap(err, "failed to watch config")
	}
	w.OnReload(s.ApplyConfig)
	w.Start()
	s.configWatcher = w
	am.SetGlobalWatcher(w)

	s.logger.Infow("Watching config for changes", logger.FieldFile, path)
	return nil
}

// Listen binds the requested port, falling back to a nearby free port.
// Port 0 binds an ephemeral port.
func (s *Server) Listen(port int) (net.Listener, error) {
	if port == 0 {
		return net.Listen("tcp", ":0")
	}
	actual, err := findAvailablePort(port)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find available port")
	}
	if actual != port {
		s.logger.Infow("Port in use, using alternative",
			"requested_port", port,
			logger.FieldPort, actual,
		)
	}
	return net.Listen("tcp", fmt.Sprintf(":%d", actual))
}

// Serve handles requests on ln until Stop is called
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Infow("Server ready",
		"url", fmt.Sprintf("http://%s", ln.Addr()),
		logger.FieldAddress, ln.Addr().String(),
	)

	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server failed")
	}
	return nil
}

// Start listens on port and serves until Stop is called
func (s *Server) Start(port int) error {
	ln, err := s.Listen(port)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Stop drains HTTP requests, closes WebSocket clients and stops the config watcher
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked connections; the pumps are tracked by wg
	shutdownErr := s.httpServer.Shutdown(ctx)

	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	if len(clients) > 0 {
		s.logger.Infow("Closing client connections", logger.FieldCount, len(clients))
	}

	// writePump sends a going-away close frame on cancellation
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Infow("All goroutines stopped cleanly")
	case <-ctx.Done():
		s.logger.Warnw("Goroutine shutdown timed out, forcing exit", "timeout", ShutdownTimeout)
		for _, c := range clients {
			c.close()
		}
	}

	if s.configWatcher != nil {
		if err := s.configWatcher.Stop(); err != nil {
			s.logger.Warnw("Failed to stop config watcher", logger.FieldError, err)
		}
		if am.GetGlobalWatcher() == s.configWatcher {
			am.SetGlobalWatcher(nil)
		}
		s.configWatcher = nil
	}

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete")
	return shutdownErr
}
