package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/version"
)

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show promptc version information",
		Long:  `Display version, build time, commit hash, and platform information for the promptc binary.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOutput, _ := cmd.Flags().GetBool("json")
			info := version.Get()
			w := cmd.OutOrStdout()

			if jsonOutput {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return errors.Wrap(err, "failed to format version as JSON")
				}
				fmt.Fprintln(w, string(output))
				return nil
			}
			fmt.Fprintln(w, info.String())
			fmt.Fprintf(w, "Platform: %s\n", info.Platform)
			fmt.Fprintf(w, "Go: %s\n", info.GoVersion)
			return nil
		},
	}
	cmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
	return cmd
}
