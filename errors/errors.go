// Package errors provides error handling for promptc.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints and details
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := parse(); err != nil {
//	    return errors.Wrap(err, "failed to parse prompt")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "quote each blended prompt")
//
//	// Check errors
//	if errors.Is(err, errors.ErrMismatchedCounts) {
//	    // handle bad .blend() arguments
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for prompt parsing.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrParse is the root of every structural prompt syntax failure
	ErrParse = New("prompt parse error")

	// ErrMismatchedCounts indicates .blend()/.and() prompt and weight counts differ
	ErrMismatchedCounts = Wrap(ErrParse, "mismatched prompt/weight counts")

	// ErrSubstituteInBlend indicates a .swap() inside a blended prompt
	ErrSubstituteInBlend = Wrap(ErrParse, "cannot blend a prompt containing .swap()")

	// ErrUnrecognizedOperator indicates a .name( suffix that is not a known operator
	ErrUnrecognizedOperator = Wrap(ErrParse, "unrecognized operator")

	// ErrMisplacedOperator indicates a known operator used where it has no meaning
	ErrMisplacedOperator = Wrap(ErrParse, "misplaced operator")

	// ErrInvalidNode indicates a tree node constructed with invalid children or weights
	ErrInvalidNode = Wrap(ErrParse, "invalid prompt node")

	// ErrInvalidOption indicates a bad .swap() option value
	ErrInvalidOption = Wrap(ErrParse, "invalid option")
)

// Sentinel errors for the outer layers (config, server, prompt files).
var (
	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")

	// ErrInvalidConfig indicates a configuration value failed validation
	ErrInvalidConfig = New("invalid configuration")
)

// IsParseError checks if an error is or wraps ErrParse
func IsParseError(err error) bool {
	return err != nil && Is(err, ErrParse)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// WrapInvalidRequest wraps an error as an invalid-request error with context
func WrapInvalidRequest(err error, context string) error {
	return Wrap(Wrap(ErrInvalidRequest, err.Error()), context)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// NewInvalidConfigError creates an invalid-config error with a formatted message
func NewInvalidConfigError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidConfig, Newf(format, args...).Error())
}
