package server

import (
	"net/http"

	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/prompt"
)

// Sentinel errors for request handling.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrPromptTooLarge indicates the request body or prompt exceeds server.max_prompt_bytes
	ErrPromptTooLarge = errors.Wrap(errors.ErrInvalidRequest, "prompt too large")

	// ErrRateLimited indicates the token bucket is empty
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrDraining indicates the server is shutting down
	ErrDraining = errors.New("server is shutting down")
)

// statusFor maps an error to the HTTP status it is reported with
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, ErrPromptTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.IsParseError(err), errors.IsInvalidRequestError(err):
		return http.StatusBadRequest
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrDraining):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorType names the class of err for logs: the parse error kind, or the
// request failure that produced it
func errorType(err error) string {
	if pe, ok := prompt.AsParseError(err); ok {
		return string(pe.Kind)
	}
	switch statusFor(err) {
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "draining"
	}
	return "internal"
}
