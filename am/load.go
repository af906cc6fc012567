package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
)

// SystemConfigPath is the lowest-precedence config file.
var SystemConfigPath = filepath.Join("/etc/promptc", ConfigFileName)

var (
	mu            sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper

	// ConfigSources records which file last set each key during loading
	ConfigSources = map[string]SourceInfo{}
	loadedFiles   []string
)

// Load reads the promptc configuration using Viper and validates it
func Load() (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	config, err := LoadWithViper(initViper())
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	globalConfig = config
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() *viper.Viper {
	mu.Lock()
	defer mu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	// Set defaults but don't bind environment variables for this specific load
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	config, err := LoadWithViper(v)
	if err != nil {
		return nil, errors.Wrapf(err, "config from %s", configPath)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config from %s", configPath)
	}
	return config, nil
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
	viperInstance = nil
	ConfigSources = map[string]SourceInfo{}
	loadedFiles = nil
}

// LoadedFiles returns the config files merged by the last load, lowest precedence first
func LoadedFiles() []string {
	mu.Lock()
	defer mu.Unlock()
	return append([]string(nil), loadedFiles...)
}

// initViper initializes Viper with configuration sources and defaults.
// Callers hold mu.
func initViper() *viper.Viper {
	if viperInstance != nil {
		return viperInstance
	}

	v := viper.New()

	// Set up environment variable binding
	v.SetEnvPrefix("PROMPTC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindEnvVars(v)

	// Set defaults first
	SetDefaults(v)

	// Manually merge configs in precedence order: system -> user -> project -> env vars
	mergeConfigFiles(v)

	viperInstance = v
	return v
}

// UserConfigPath returns ~/.promptc/promptc.toml, or "" without a home directory
func UserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".promptc", ConfigFileName)
}

// FindProjectConfig searches for promptc.toml by walking up from the working directory.
// Returns the path to the first config file found, or empty string if none found.
func FindProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root, stop searching
			break
		}
		dir = parent
	}

	return ""
}

// SearchPaths returns every candidate config file with its source, lowest precedence first
func SearchPaths() []SourceInfo {
	paths := []SourceInfo{{Source: SourceSystem, Path: SystemConfigPath}}
	if user := UserConfigPath(); user != "" {
		paths = append(paths, SourceInfo{Source: SourceUser, Path: user})
	}
	if project := FindProjectConfig(); project != "" {
		paths = append(paths, SourceInfo{Source: SourceProject, Path: project})
	}
	return paths
}

// mergeConfigFiles manually merges configuration files in the correct precedence order
// Precedence (lowest to highest): system < user < project < env vars
func mergeConfigFiles(v *viper.Viper) {
	for _, candidate := range SearchPaths() {
		if _, err := os.Stat(candidate.Path); err != nil {
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(candidate.Path)
		tempViper.SetConfigType("toml")

		if err := tempViper.ReadInConfig(); err != nil {
			logger.Warnw("Skipping unreadable config file",
				logger.FieldFile, candidate.Path,
				logger.FieldError, err)
			continue
		}

		// Merge into the config layer so PROMPTC_* variables still win
		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			logger.Warnw("Skipping unmergeable config file",
				logger.FieldFile, candidate.Path,
				logger.FieldError, err)
			continue
		}
		for _, key := range tempViper.AllKeys() {
			ConfigSources[key] = candidate
		}
		loadedFiles = append(loadedFiles, candidate.Path)
	}
}

// Get returns a configuration value using dot notation
func Get(key string) interface{} {
	return GetViper().Get(key)
}

// GetString returns a configuration value as string using dot notation
func GetString(key string) string {
	return GetViper().GetString(key)
}

// GetBool returns a configuration value as bool using dot notation
func GetBool(key string) bool {
	return GetViper().GetBool(key)
}

// GetInt returns a configuration value as int using dot notation
func GetInt(key string) int {
	return GetViper().GetInt(key)
}

// GetFloat64 returns a configuration value as float64 using dot notation
func GetFloat64(key string) float64 {
	return GetViper().GetFloat64(key)
}

// IsKnownKey reports whether key names a setting with a built-in default
func IsKnownKey(key string) bool {
	v := viper.New()
	SetDefaults(v)
	for _, k := range v.AllKeys() {
		if k == key {
			return true
		}
	}
	return false
}
