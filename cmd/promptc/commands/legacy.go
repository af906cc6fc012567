package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/prompt"
)

// legacyOutput is the json/yaml form of a legacy conversion
type legacyOutput struct {
	Applicable bool        `json:"applicable" yaml:"applicable"`
	Blend      *prompt.Doc `json:"blend,omitempty" yaml:"blend,omitempty"`
}

func newLegacyCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "legacy PROMPT...",
		Short: "Convert colon-weighted text into a blend",
		Long: `Convert the legacy "text:weight" syntax into a normalized blend.

Each sub-prompt ends at a colon followed by a number; text after the last
weight gets weight 1. Prints "not a legacy blend" when the text has no
weights or only one sub-prompt.

Examples:
  promptc legacy "a cat:3 a dog:1"
  promptc legacy --format json "mountains:0.7 lake:0.3"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, p, err := loadConfig()
			if err != nil {
				return err
			}
			if format == "" {
				format = cfg.Output.Format
			}
			if err := checkFormat(format); err != nil {
				return err
			}

			blend, err := p.ParseLegacyBlend(strings.Join(args, " "))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if format != am.FormatText {
				out := legacyOutput{Applicable: blend != nil}
				if blend != nil {
					doc := prompt.Encode(blend)
					out.Blend = &doc
				}
				return writeStructured(w, format, out)
			}

			if blend == nil {
				fmt.Fprintln(w, "not a legacy blend")
				return nil
			}
			fmt.Fprintln(w, blend)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "Output format: text, json, yaml (default from output.format)")
	return cmd
}
