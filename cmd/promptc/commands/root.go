// Package commands implements the promptc command tree.
package commands

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
	"github.com/teranos/promptc/prompt"
)

// NewRootCmd builds a fresh command tree. The REPL builds one per line so
// flag values never leak between commands.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "promptc",
		Short: "promptc - prompt syntax compiler",
		Long: `promptc - parse prompt syntax into weighted fragments.

Prompts support attention weighting, cross-attention swaps, blends and
conjunctions:

  a ++(red) cat                  attention weight 1.1^2 on "red"
  a -cat                         attention weight 0.9
  a cat.swap(dog, s_end=0.3)     swap "cat" for "dog" during denoising
  ("a cat", "a dog").blend(1, 1) blend two prompts
  a cat:1 a dog:2                legacy colon blend
  a cat [blurry]                 [bracketed] text is the negative prompt

Examples:
  promptc parse "a ++(red) cat [blurry]"
  promptc parse --format json --tokens "a cat.swap(dog)"
  promptc parse --file prompts/portrait.md
  promptc legacy "a cat:1 a dog:2"
  promptc serve --watch`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: initLogging,
	}

	root.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv, -vvv)")

	root.AddCommand(newParseCmd())
	root.AddCommand(newLegacyCmd())
	root.AddCommand(newReplCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newAmCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// initLogging initializes the global logger from the config and -v flags.
// A config that fails to load is reported by the command that needs it.
func initLogging(cmd *cobra.Command, args []string) error {
	verbosity, _ := cmd.Flags().GetCount("verbose")
	jsonLogs := false
	if cfg, err := am.Load(); err == nil {
		verbosity = max(verbosity, cfg.Log.Verbosity)
		jsonLogs = cfg.Log.JSON
		if !cfg.Output.Color {
			pterm.DisableColor()
		}
	}
	if err := logger.InitializeWithVerbosity(jsonLogs, verbosity); err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}
	return nil
}

// verbosity returns the effective verbosity for output categories
func verbosity(cmd *cobra.Command, cfg *am.Config) int {
	v, _ := cmd.Flags().GetCount("verbose")
	return max(v, cfg.Log.Verbosity)
}

// PrintError writes err for a terminal. Parse errors are shown with the
// offending span and suggestions, other errors with their hints.
func PrintError(w io.Writer, err error) {
	if pe, ok := prompt.AsParseError(err); ok {
		fmt.Fprintln(w, pe.FormatError(prompt.ErrorContextTerminal))
		return
	}
	fmt.Fprint(w, pterm.Error.Sprintln(err.Error()))
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprint(w, pterm.Info.Sprintln(hint))
	}
}

// loadConfig loads the layered config and builds the matching parser
func loadConfig() (*am.Config, *prompt.Parser, error) {
	cfg, err := am.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load config")
	}
	p, err := prompt.NewParser(cfg.Parser.AttentionPlusBase, cfg.Parser.AttentionMinusBase)
	if err != nil {
		return nil, nil, err
	}
	return cfg, p, nil
}
