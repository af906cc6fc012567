package am

import (
	"fmt"

	"github.com/spf13/viper"
)

var defaultAllowedOrigins = []string{
	"http://localhost",
	"https://localhost",
	"http://127.0.0.1",
	"https://127.0.0.1",
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Parser defaults
	v.SetDefault("parser.attention_plus_base", 1.1)
	v.SetDefault("parser.attention_minus_base", 0.9)
	v.SetDefault("parser.legacy_blend", true)

	v.SetDefault("tokens.max_length", DefaultMaxTokens)

	v.SetDefault("output.format", FormatText)
	v.SetDefault("output.color", true)

	// Server configuration defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", defaultAllowedOrigins)
	v.SetDefault("server.requests_per_second", DefaultRequestsPerSecond)
	v.SetDefault("server.burst", DefaultBurst)
	v.SetDefault("server.max_prompt_bytes", DefaultMaxPromptBytes)

	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
}

// BindEnvVars binds settings that are also read from conventional variables
func BindEnvVars(v *viper.Viper) {
	// PaaS platforms hand out the listen port as $PORT
	v.BindEnv("server.port", "PROMPTC_SERVER_PORT", "PORT")
	v.BindEnv("output.color", "PROMPTC_OUTPUT_COLOR")
}

// GetServerPort returns the configured port, or DefaultServerPort when unset
func (c *Config) GetServerPort() int {
	if c.Server.Port == nil {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return defaultAllowedOrigins
	}
	return c.Server.AllowedOrigins
}

// GetMaxPromptBytes returns the request body limit (default: 16 KiB)
func (c *Config) GetMaxPromptBytes() int64 {
	if c.Server.MaxPromptBytes <= 0 {
		return DefaultMaxPromptBytes
	}
	return c.Server.MaxPromptBytes
}

// GetMaxTokens returns the token budget (default: 77)
func (c *Config) GetMaxTokens() int {
	if c.Tokens.MaxLength <= 0 {
		return DefaultMaxTokens
	}
	return c.Tokens.MaxLength
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Parser: {+%v, -%v, legacy=%v}, Tokens: %d, Server: {Port: %d}}",
		c.Parser.AttentionPlusBase, c.Parser.AttentionMinusBase, c.Parser.LegacyBlend,
		c.Tokens.MaxLength, c.GetServerPort())
}
