package commands

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/errors"
)

func newAmCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "am",
		Short: "Manage promptc configuration",
		Long: `Display and manage promptc configuration settings.

Configuration sources (later overrides earlier):
1. Default values
2. System config (/etc/promptc/promptc.toml)
3. User config (~/.promptc/promptc.toml)
4. Project config (promptc.toml, searched upwards from the working directory)
5. Environment variables (PROMPTC_* prefix, PORT for server.port)

Examples:
  promptc am show                         # Show current configuration
  promptc am show --format json           # Show configuration as JSON
  promptc am get parser.attention_plus_base
  promptc am set tokens.max_length 225    # Write to the project or user config
  promptc am validate                     # Validate current configuration
  promptc am where                        # Show where each setting comes from`,
	}

	cmd.AddCommand(newAmShowCmd())
	cmd.AddCommand(newAmGetCmd())
	cmd.AddCommand(newAmSetCmd())
	cmd.AddCommand(newAmValidateCmd())
	cmd.AddCommand(newAmWhereCmd())
	return cmd
}

func newAmShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the effective promptc configuration merged from all sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := am.Load(); err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			settings := am.GetViper().AllSettings()
			w := cmd.OutOrStdout()

			switch format {
			case "toml":
				data, err := toml.Marshal(settings)
				if err != nil {
					return errors.Wrap(err, "failed to marshal config to TOML")
				}
				fmt.Fprintf(w, "# promptc configuration\n%s", data)
				return nil
			case am.FormatJSON, am.FormatYAML:
				return writeStructured(w, format, settings)
			default:
				return errors.Newf("unsupported format: %s (supported: toml, json, yaml)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "toml", "Output format: toml, json, yaml")
	return cmd
}

func newAmGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a specific configuration value",
		Long:  "Get a specific configuration value using dot notation (e.g., parser.attention_plus_base, server.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if _, err := am.Load(); err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			if !am.GetViper().IsSet(key) {
				return errors.WithHint(
					errors.Newf("configuration key %q not found", key),
					"run 'promptc am show' to list settings")
			}
			fmt.Fprintln(cmd.OutOrStdout(), am.Get(key))
			return nil
		},
	}
}

func newAmSetCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a configuration value",
		Long: `Write a setting to a TOML config file. The previous file is kept as a
rotating .back1 to .back3 backup. Without --file the project config is used
when one exists, otherwise the user config.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if path == "" {
				path = defaultWritePath()
			}
			if path == "" {
				return errors.New("no config file to write: pass --file")
			}

			if w := am.GetGlobalWatcher(); w != nil && w.Path() == path {
				w.MarkOwnWrite()
			}
			if err := am.SetValue(path, args[0], args[1]); err != nil {
				return err
			}
			if _, err := am.LoadFromFile(path); err != nil {
				pterm.Warning.Printfln("%s now holds an invalid configuration: %v", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", args[0], args[1], path)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Config file to write")
	return cmd
}

// defaultWritePath picks the project config if present, else the user config
func defaultWritePath() string {
	if project := am.FindProjectConfig(); project != "" {
		return project
	}
	return am.UserConfigPath()
}

func newAmValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate current configuration",
		Long:  "Validate that the current promptc configuration is valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := am.Load(); err != nil {
				return errors.Wrap(err, "configuration validation failed")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration is valid")
			return nil
		},
	}
}

func newAmWhereCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "where",
		Short: "Show where configuration is loaded from",
		Long: `Show the configuration cascade, which files exist, and the source of
every effective setting.`,
		Args: cobra.NoArgs,
		RunE: runAmWhere,
	}
}

func runAmWhere(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w, "Configuration cascade (later overrides earlier):")
	fmt.Fprintf(w, "  %-14s Built-in defaults\n", "[DEFAULT]")
	for _, candidate := range am.SearchPaths() {
		status := "missing"
		if _, err := os.Stat(candidate.Path); err == nil {
			status = "found"
		}
		label := "[" + strings.ToUpper(string(candidate.Source)) + "]"
		fmt.Fprintf(w, "  %-14s %s (%s)\n", label, candidate.Path, status)
	}
	fmt.Fprintf(w, "  %-14s PROMPTC_* environment variables\n", "[ENVIRONMENT]")
	fmt.Fprintln(w)

	intro, err := am.GetConfigIntrospection()
	if err != nil {
		return err
	}

	// Group settings by the file or variable that set them
	groups := map[am.ConfigSource][]am.SettingInfo{}
	for _, s := range intro.Settings {
		groups[s.Source] = append(groups[s.Source], s)
	}
	order := []am.ConfigSource{am.SourceDefault, am.SourceSystem, am.SourceUser, am.SourceProject, am.SourceEnvironment}

	fmt.Fprintln(w, "Active configuration:")
	for _, source := range order {
		settings := groups[source]
		if len(settings) == 0 {
			continue
		}
		sort.Slice(settings, func(i, j int) bool { return settings[i].Key < settings[j].Key })

		fmt.Fprintf(w, "\n%s: %d settings\n", source, len(settings))
		for _, s := range settings {
			value := fmt.Sprintf("%v", s.Value)
			if len(value) > 50 {
				value = value[:47] + "..."
			}
			if source == am.SourceDefault {
				fmt.Fprintf(w, "  %s = %s\n", s.Key, value)
			} else {
				fmt.Fprintf(w, "  %s = %s  (%s)\n", s.Key, value, s.SourcePath)
			}
		}
	}
	return nil
}
