package server

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/promptc/logger"
)

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, map[string]interface{}{
		"server.requests_per_second": 0.001,
		"server.burst":               2,
	})
	h := s.Handler()

	for i := 0; i < 2; i++ {
		rec := post(t, h, "/api/parse", ParseRequest{Prompt: "a cat"})
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}

	rec := post(t, h, "/api/parse", ParseRequest{Prompt: "a cat"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, decode[ErrorResponse](t, rec).Error, "rate limit exceeded")

	// Health checks are never limited
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitDisabled(t *testing.T) {
	s := newTestServer(t, map[string]interface{}{"server.requests_per_second": 0.0})
	assert.Nil(t, s.limiter.Load())

	for i := 0; i < 100; i++ {
		rec := post(t, s.Handler(), "/api/legacy", LegacyRequest{Prompt: "a cat"})
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestApplyConfigUpdatesLimiter(t *testing.T) {
	s := newTestServer(t, nil)
	l := s.limiter.Load()
	require.NotNil(t, l)

	require.NoError(t, s.ApplyConfig(testConfig(t, map[string]interface{}{
		"server.requests_per_second": 5.0,
		"server.burst":               7,
	})))
	assert.Same(t, l, s.limiter.Load())
	assert.Equal(t, 7, l.Burst())
	assert.InDelta(t, 5.0, float64(l.Limit()), 1e-9)

	require.NoError(t, s.ApplyConfig(testConfig(t, map[string]interface{}{"server.requests_per_second": 0.0})))
	assert.Nil(t, s.limiter.Load())
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		origin     string
		wantHeader string
	}{
		{"default localhost any port", nil, "http://localhost:3000", "http://localhost:3000"},
		{"foreign origin", nil, "https://evil.example", ""},
		{"configured origin", []string{"https://app.example"}, "https://app.example", "https://app.example"},
		{"wildcard", []string{"*"}, "https://anything.example", "https://anything.example"},
		{"no origin", nil, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overrides := map[string]interface{}{}
			if tt.origins != nil {
				overrides["server.allowed_origins"] = tt.origins
			}
			s := newTestServer(t, overrides)

			req := httptest.NewRequest(http.MethodOptions, "/api/parse", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusNoContent, rec.Code)
			assert.Equal(t, tt.wantHeader, rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Logger
	logger.Logger = zap.New(core).Sugar()
	t.Cleanup(func() { logger.Logger = prev })

	s := newTestServer(t, map[string]interface{}{"log.verbosity": 3})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))

	served := logs.FilterMessage("Request served").All()
	require.Len(t, served, 1)
	fields := served[0].ContextMap()
	assert.Equal(t, "req-123", fields[logger.FieldRequestID])
	assert.Equal(t, "/health", fields[logger.FieldPath])
	assert.EqualValues(t, http.StatusOK, fields[logger.FieldStatus])
}

func TestRejectedPromptLogsErrorType(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Logger
	logger.Logger = zap.New(core).Sugar()
	t.Cleanup(func() { logger.Logger = prev })

	s := newTestServer(t, nil)
	rec := post(t, s.Handler(), "/api/parse", ParseRequest{Prompt: `("a").blend(1, 2)`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rejected := logs.FilterMessage("Prompt rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, "structure", rejected[0].ContextMap()[logger.FieldErrorType])
}

func TestRequestIDGenerated(t *testing.T) {
	s := newTestServer(t, nil)
	a := post(t, s.Handler(), "/api/parse", ParseRequest{Prompt: "a"})
	b := post(t, s.Handler(), "/api/parse", ParseRequest{Prompt: "b"})

	assert.Len(t, a.Header().Get(RequestIDHeader), 36)
	assert.NotEqual(t, a.Header().Get(RequestIDHeader), b.Header().Get(RequestIDHeader))
}

func TestFindAvailablePort(t *testing.T) {
	s := newTestServer(t, nil)
	ln, err := s.Listen(0)
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	got, err := findAvailablePort(port)
	require.NoError(t, err)
	assert.NotEqual(t, port, got)
}

func TestListenFallbackLogsPort(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.Logger
	logger.Logger = zap.New(core).Sugar()
	t.Cleanup(func() { logger.Logger = prev })

	s := newTestServer(t, nil)
	busy, err := s.Listen(0)
	require.NoError(t, err)
	defer busy.Close()

	port := busy.Addr().(*net.TCPAddr).Port
	ln, err := s.Listen(port)
	require.NoError(t, err)
	defer ln.Close()

	fallback := logs.FilterMessage("Port in use, using alternative").All()
	require.Len(t, fallback, 1)
	fields := fallback[0].ContextMap()
	assert.EqualValues(t, port, fields["requested_port"])
	assert.EqualValues(t, ln.Addr().(*net.TCPAddr).Port, fields[logger.FieldPort])
}
