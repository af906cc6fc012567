package prompt

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/promptc/errors"
)

// ErrorSeverity indicates the severity level of a parser error
type ErrorSeverity string

const (
	SeverityError   ErrorSeverity = "error"   // Structural errors that abort the parse
	SeverityWarning ErrorSeverity = "warning" // Recovered anomalies
)

// ErrorKind categorizes parser errors for programmatic handling
type ErrorKind string

const (
	ErrorKindSyntax    ErrorKind = "syntax"    // Malformed operator arguments
	ErrorKindOperator  ErrorKind = "operator"  // Unknown or misplaced .name( operator
	ErrorKindStructure ErrorKind = "structure" // Node invariant violated (counts, nesting, options)
)

// ErrorContext selects how FormatError renders
type ErrorContext int

const (
	ErrorContextPlain    ErrorContext = iota // Logs and API responses
	ErrorContextTerminal                     // Colored CLI output
)

// ParseError is returned for every propagated prompt failure.
// Err holds one of the errors package sentinels so errors.Is works through it.
type ParseError struct {
	Err         error
	Kind        ErrorKind
	Severity    ErrorSeverity
	Message     string
	Near        string // Offending substring
	Operator    string // Operator name, when one is involved
	Range       *Range // Span of Near in the parsed prompt
	Suggestions []string
}

// Error implements error interface
func (e *ParseError) Error() string {
	return e.FormatError(ErrorContextPlain)
}

// Unwrap for errors.Is/As compatibility
func (e *ParseError) Unwrap() error {
	return e.Err
}

// FormatError generates context-appropriate error message
func (e *ParseError) FormatError(ctx ErrorContext) string {
	if ctx == ErrorContextTerminal {
		return e.formatTerminalError()
	}
	return e.formatPlainError()
}

func (e *ParseError) headline() string {
	msg := "invalid prompt syntax"
	if e.Near != "" {
		msg += fmt.Sprintf(" near %q", e.Near)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// formatPlainError creates concise error for web UI/logs
func (e *ParseError) formatPlainError() string {
	msg := e.headline()
	if e.Range != nil {
		msg += fmt.Sprintf(" (at %d:%d)", e.Range.Start.Line, e.Range.Start.Character+1)
	}
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(". Suggestions: %s", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// formatTerminalError creates rich colored error for terminal
func (e *ParseError) formatTerminalError() string {
	var b strings.Builder
	switch e.Severity {
	case SeverityWarning:
		b.WriteString(pterm.Yellow(e.headline()))
	default:
		b.WriteString(pterm.Red(e.headline()))
	}

	b.WriteString("\n\n" + pterm.LightCyan("Context:"))
	if e.Operator != "" {
		b.WriteString(fmt.Sprintf("\n  %s .%s()", pterm.Yellow("Operator:"), e.Operator))
	}
	if e.Range != nil {
		b.WriteString(fmt.Sprintf("\n  %s line %d, column %d", pterm.Yellow("Position:"),
			e.Range.Start.Line, e.Range.Start.Character+1))
	}
	b.WriteString(fmt.Sprintf("\n  %s %s", pterm.Yellow("Kind:"), e.Kind))

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\n" + pterm.Green("Suggestions:"))
		for _, s := range e.Suggestions {
			b.WriteString("\n  • " + s)
		}
	}
	return b.String()
}

// Diagnostic is the serializable form of a ParseError for API clients and editors.
type Diagnostic struct {
	Range       *Range        `json:"range,omitempty" yaml:"range,omitempty"`
	Severity    ErrorSeverity `json:"severity" yaml:"severity"`
	Kind        ErrorKind     `json:"kind" yaml:"kind"`
	Message     string        `json:"message" yaml:"message"`
	Near        string        `json:"near,omitempty" yaml:"near,omitempty"`
	Operator    string        `json:"operator,omitempty" yaml:"operator,omitempty"`
	Suggestions []string      `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

// Diagnostic converts the error for transport
func (e *ParseError) Diagnostic() Diagnostic {
	return Diagnostic{
		Range:       e.Range,
		Severity:    e.Severity,
		Kind:        e.Kind,
		Message:     e.formatPlainError(),
		Near:        e.Near,
		Operator:    e.Operator,
		Suggestions: e.Suggestions,
	}
}

// Builder pattern for constructing ParseErrors

// NewParseError creates a new ParseError with the given kind and message
func NewParseError(kind ErrorKind, message string) *ParseError {
	return &ParseError{
		Kind:     kind,
		Severity: SeverityError,
		Message:  message,
	}
}

// WithRange sets the source range of the offending text
func (e *ParseError) WithRange(r Range) *ParseError {
	e.Range = &r
	return e
}

// WithNear sets the offending substring
func (e *ParseError) WithNear(near string) *ParseError {
	e.Near = near
	return e
}

// WithOperator sets the operator involved
func (e *ParseError) WithOperator(op string) *ParseError {
	e.Operator = op
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ParseError) WithSuggestion(suggestion string) *ParseError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithUnderlying sets the underlying error
func (e *ParseError) WithUnderlying(err error) *ParseError {
	e.Err = err
	return e
}

// errorMessage renders a wrapped sentinel without the shared "prompt parse error" tail.
func errorMessage(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+errors.ErrParse.Error())
}
