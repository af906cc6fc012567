package am

// Config represents the promptc configuration
type Config struct {
	Parser ParserConfig `mapstructure:"parser"`
	Tokens TokensConfig `mapstructure:"tokens"`
	Output OutputConfig `mapstructure:"output"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// ParserConfig configures the prompt grammar
type ParserConfig struct {
	AttentionPlusBase  float64 `mapstructure:"attention_plus_base"`  // Per '+' multiplier (default: 1.1)
	AttentionMinusBase float64 `mapstructure:"attention_minus_base"` // Per '-' multiplier (default: 0.9)
	LegacyBlend        bool    `mapstructure:"legacy_blend"`         // Try "text:weight" syntax first (default: true)
}

// TokensConfig configures the conditioning token layout
type TokensConfig struct {
	MaxLength int `mapstructure:"max_length"` // Token budget per prompt (default: 77)
}

// OutputConfig configures CLI rendering
type OutputConfig struct {
	Format string `mapstructure:"format"` // text, json or yaml
	Color  bool   `mapstructure:"color"`
}

// ServerConfig configures the promptc HTTP server
type ServerConfig struct {
	Port              *int     `mapstructure:"port"` // nil = default 8787, 0 is invalid (omit for default)
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
	RequestsPerSecond float64  `mapstructure:"requests_per_second"` // Token bucket refill rate, 0 = unlimited
	Burst             int      `mapstructure:"burst"`               // Token bucket size
	MaxPromptBytes    int64    `mapstructure:"max_prompt_bytes"`    // Request body limit
}

// LogConfig configures the global logger
type LogConfig struct {
	JSON      bool `mapstructure:"json"`
	Verbosity int  `mapstructure:"verbosity"` // 0 = warnings only, see logger.VerbosityToLevel
}

// Server constants
const (
	DefaultServerPort        = 8787
	DefaultRequestsPerSecond = 20.0
	DefaultBurst             = 40
	DefaultMaxPromptBytes    = 16 * 1024
)

// DefaultMaxTokens matches the CLIP text encoder context length.
const DefaultMaxTokens = 77

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)

// ConfigFileName is the file searched for in each config location.
const ConfigFileName = "promptc.toml"
