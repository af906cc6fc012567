package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"
	"github.com/teranos/promptc/errors"
)

const replPrompt = "promptc> "

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Parse prompts interactively",
		Long: `Read commands line by line. A line that starts with a promptc command
is split shell-style and run; any other line is parsed as a prompt.

Examples:
  promptc> a ++(red) cat [blurry]
  promptc> parse --format json "a cat.swap(dog)"
  promptc> legacy "a cat:1 a dog:2"
  promptc> exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
}

// runRepl reads lines from in until EOF or exit. Command errors are printed
// and the loop continues.
func runRepl(in io.Reader, out, errOut io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, replPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return errors.Wrap(scanner.Err(), "failed to read input")
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		args, err := replArgs(line)
		if err != nil {
			PrintError(errOut, err)
			continue
		}

		root := NewRootCmd()
		root.SetArgs(args)
		root.SetIn(strings.NewReader(""))
		root.SetOut(out)
		root.SetErr(errOut)
		if err := root.Execute(); err != nil {
			PrintError(errOut, err)
		}
	}
}

// replArgs splits a line into command arguments. Lines that do not start
// with a command name are parsed whole, so prompt quoting is kept as typed.
func replArgs(line string) ([]string, error) {
	name := strings.Fields(line)[0]
	for _, c := range NewRootCmd().Commands() {
		if c.Name() == "repl" {
			continue
		}
		if c.Name() == name || c.HasAlias(name) || name == "help" {
			args, err := shellquote.Split(line)
			if err != nil {
				return nil, errors.WithHint(
					errors.Wrap(err, "failed to split command line"),
					"close every quote, or type the prompt without a command to parse it as is")
			}
			return args, nil
		}
	}
	return []string{"parse", "--", line}, nil
}
