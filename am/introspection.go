package am

import (
	"os"
	"sort"
	"strings"

	"github.com/teranos/promptc/errors"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"      // /etc/promptc/promptc.toml
	SourceUser        ConfigSource = "user"        // ~/.promptc/promptc.toml
	SourceProject     ConfigSource = "project"     // promptc.toml found walking up from cwd
	SourceEnvironment ConfigSource = "environment" // PROMPTC_* env vars
)

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key" yaml:"key" toml:"key"`
	Value      interface{}  `json:"value" yaml:"value" toml:"value"`
	Source     ConfigSource `json:"source" yaml:"source" toml:"source"`
	SourcePath string       `json:"source_path,omitempty" yaml:"source_path,omitempty" toml:"source_path,omitempty"` // File path or env var name
}

// ConfigIntrospection provides metadata about the active configuration
type ConfigIntrospection struct {
	ConfigFiles []string      `json:"config_files" yaml:"config_files" toml:"config_files"` // Merged files, lowest precedence first
	Settings    []SettingInfo `json:"settings" yaml:"settings" toml:"settings"`
}

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource // The type of config source (default, system, user, project)
	Path   string       // File path or environment variable name
}

// GetConfigIntrospection returns every effective setting with the source that set it
func GetConfigIntrospection() (*ConfigIntrospection, error) {
	if _, err := Load(); err != nil {
		return nil, errors.Wrap(err, "failed to load config for introspection")
	}

	v := GetViper()

	mu.Lock()
	sources := make(map[string]SourceInfo, len(ConfigSources))
	for k, s := range ConfigSources {
		sources[k] = s
	}
	files := append([]string(nil), loadedFiles...)
	mu.Unlock()

	introspection := &ConfigIntrospection{
		ConfigFiles: files,
		Settings:    make([]SettingInfo, 0),
	}
	flattenSettingsWithSources(v.AllSettings(), "", introspection, sources)
	return introspection, nil
}

// flattenSettingsWithSources flattens settings and assigns sources from sourceMap
func flattenSettingsWithSources(settings map[string]interface{}, prefix string, introspection *ConfigIntrospection, sourceMap map[string]SourceInfo) {
	// Sort keys for deterministic iteration
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := settings[key]
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}

		if nestedMap, ok := value.(map[string]interface{}); ok {
			flattenSettingsWithSources(nestedMap, fullKey, introspection, sourceMap)
			continue
		}

		sourceInfo := SourceInfo{Source: SourceDefault, Path: "built-in default"}
		if si, ok := sourceMap[fullKey]; ok {
			sourceInfo = si
		}

		// Environment variables override every file
		envKey := EnvKey(fullKey)
		if envValue := os.Getenv(envKey); envValue != "" {
			sourceInfo = SourceInfo{Source: SourceEnvironment, Path: envKey}
		}

		introspection.Settings = append(introspection.Settings, SettingInfo{
			Key:        fullKey,
			Value:      value,
			Source:     sourceInfo.Source,
			SourcePath: sourceInfo.Path,
		})
	}
}

// EnvKey returns the PROMPTC_* variable that overrides key
func EnvKey(key string) string {
	return "PROMPTC_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// GetConfigSummary counts effective settings per source
func GetConfigSummary() map[string]int {
	summary := map[string]int{
		string(SourceDefault):     0,
		string(SourceSystem):      0,
		string(SourceUser):        0,
		string(SourceProject):     0,
		string(SourceEnvironment): 0,
	}

	introspection, err := GetConfigIntrospection()
	if err != nil {
		return summary
	}
	for _, setting := range introspection.Settings {
		summary[string(setting.Source)]++
	}
	return summary
}
