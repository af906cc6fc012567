package am

import (
	"math"

	"github.com/teranos/promptc/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Attention bases: the grammar multiplies weights by these, so they must stay positive
	if !positiveFinite(c.Parser.AttentionPlusBase) {
		return errors.NewInvalidConfigError("parser.attention_plus_base must be > 0, got %v", c.Parser.AttentionPlusBase)
	}
	if !positiveFinite(c.Parser.AttentionMinusBase) {
		return errors.NewInvalidConfigError("parser.attention_minus_base must be > 0, got %v", c.Parser.AttentionMinusBase)
	}

	// Token budget: 0 = use default, negative = invalid
	if c.Tokens.MaxLength < 0 {
		return errors.NewInvalidConfigError("tokens.max_length must be >= 0, got %d", c.Tokens.MaxLength)
	}

	switch c.Output.Format {
	case "", FormatText, FormatJSON, FormatYAML:
	default:
		return errors.WithHint(
			errors.NewInvalidConfigError("output.format must be text, json or yaml, got %q", c.Output.Format),
			"set output.format in promptc.toml or pass --format")
	}

	// Server port: 0 is invalid (omit for default), out of range is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.NewInvalidConfigError("server.port cannot be 0 (omit for default port %d)", DefaultServerPort)
	}
	if c.Server.Port != nil && (*c.Server.Port < 0 || *c.Server.Port > 65535) {
		return errors.NewInvalidConfigError("server.port must be between 1 and 65535, got %d", *c.Server.Port)
	}

	// Rate limit: 0 = unlimited, negative = invalid
	if c.Server.RequestsPerSecond < 0 || math.IsNaN(c.Server.RequestsPerSecond) {
		return errors.NewInvalidConfigError("server.requests_per_second must be >= 0, got %v", c.Server.RequestsPerSecond)
	}
	if c.Server.Burst < 0 {
		return errors.NewInvalidConfigError("server.burst must be >= 0, got %d", c.Server.Burst)
	}
	if c.Server.RequestsPerSecond > 0 && c.Server.Burst == 0 {
		return errors.NewInvalidConfigError("server.burst must be > 0 when server.requests_per_second is set")
	}
	if c.Server.MaxPromptBytes < 0 {
		return errors.NewInvalidConfigError("server.max_prompt_bytes must be >= 0, got %d", c.Server.MaxPromptBytes)
	}

	if c.Log.Verbosity < 0 {
		return errors.NewInvalidConfigError("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}

	return nil
}

func positiveFinite(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
