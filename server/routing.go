package server

import (
	"bufio"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
)

// RequestIDHeader carries the request id in both directions
const RequestIDHeader = "X-Request-ID"

// Handler returns the server's routes wrapped in its middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.trace(s.corsMiddleware(s.HandleHealth)))
	mux.HandleFunc("/api/parse", s.trace(s.corsMiddleware(s.rateLimit(s.limitBody(s.HandleParse)))))
	mux.HandleFunc("/api/legacy", s.trace(s.corsMiddleware(s.rateLimit(s.limitBody(s.HandleLegacy)))))
	mux.HandleFunc("/ws", s.trace(s.rateLimit(s.HandleWebSocket)))

	return mux
}

// trace assigns a request id, stores it in the request context and logs the
// request once it completes.
func (s *Server) trace(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(logger.WithRequestID(r.Context(), id))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)

		if logger.ShouldOutput(s.verbosity(), logger.OutputRequests) {
			logger.LoggerFromContext(r.Context()).Debugw("Request served",
				logger.FieldMethod, r.Method,
				logger.FieldPath, r.URL.Path,
				logger.FieldStatus, rec.status,
				logger.FieldDurationMS, time.Since(start).Milliseconds(),
			)
		}
	}
}

// corsMiddleware adds CORS headers for origins listed in server.allowed_origins
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+RequestIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// checkOrigin validates an Origin header against the configured allowed origins.
// Requests without an origin (curl, native clients) are allowed. Prefix matching
// admits any port.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.Config().GetServerAllowedOrigins() {
		if allowed == "*" || strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

// rateLimit rejects requests with 429 once the shared token bucket is empty
func (s *Server) rateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if l := s.limiter.Load(); l != nil && !l.Allow() {
			logger.LoggerFromContext(r.Context()).Warnw("Request rate limited",
				logger.FieldPath, r.URL.Path,
				logger.FieldAddress, r.RemoteAddr,
			)
			w.Header().Set("Retry-After", "1")
			writeErr(w, ErrRateLimited)
			return
		}
		next(w, r)
	}
}

// limitBody caps the request body. The limit leaves room for the JSON envelope
// around a prompt of server.max_prompt_bytes.
func (s *Server) limitBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, bodyLimit(s.Config().GetMaxPromptBytes()))
		next(w, r)
	}
}

// bodyLimit allows for JSON escaping of every prompt byte plus the envelope
func bodyLimit(maxPrompt int64) int64 {
	return 2*maxPrompt + 1024
}

// statusRecorder captures the response status for request logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Hijack lets the WebSocket upgrader take over the connection
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
