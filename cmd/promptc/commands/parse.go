package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/conditioning"
	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
	"github.com/teranos/promptc/prompt"
	"github.com/teranos/promptc/promptfile"
)

type parseOptions struct {
	file   string
	format string
	tokens bool
	tree   bool
}

// parseOutput is the json/yaml form of a parsed prompt
type parseOutput struct {
	Name         string                 `json:"name,omitempty" yaml:"name,omitempty"`
	PositiveText string                 `json:"positive_text" yaml:"positive_text"`
	NegativeText string                 `json:"negative_text" yaml:"negative_text"`
	Positive     prompt.Doc             `json:"positive" yaml:"positive"`
	Negative     prompt.Doc             `json:"negative" yaml:"negative"`
	Tokens       []*conditioning.Layout `json:"tokens,omitempty" yaml:"tokens,omitempty"`
}

func newParseCmd() *cobra.Command {
	opts := &parseOptions{}
	cmd := &cobra.Command{
		Use:   "parse [PROMPT...]",
		Short: "Parse a prompt into weighted fragments",
		Long: `Parse a prompt and print its positive and negative conjunctions.

The prompt is read from the arguments (joined by spaces), from a prompt file
with --file, or from stdin when neither is given. Prompt files may start with
YAML (---) or TOML (+++) frontmatter that sets a name, a negative prompt and
attention bases.

Examples:
  promptc parse "a ++(red) cat [blurry]"
  promptc parse --tree "a (red cat).swap(dog)"
  promptc parse --tokens "a very long prompt ..."
  echo "a cat:1 a dog:1" | promptc parse --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read the prompt from a prompt file")
	cmd.Flags().StringVar(&opts.format, "format", "", "Output format: text, json, yaml (default from output.format)")
	cmd.Flags().BoolVar(&opts.tokens, "tokens", false, "Show the token layout of the first conjunction part")
	cmd.Flags().BoolVar(&opts.tree, "tree", false, "Show the unflattened tree")
	return cmd
}

func runParse(cmd *cobra.Command, args []string, opts *parseOptions) error {
	cfg, p, err := loadConfig()
	if err != nil {
		return err
	}
	format := opts.format
	if format == "" {
		format = cfg.Output.Format
	}
	if err := checkFormat(format); err != nil {
		return err
	}

	text, name, legacy, p, err := promptSource(cmd, args, opts.file, cfg, p)
	if err != nil {
		return err
	}

	out := &parseOutput{Name: name}
	c, err := conditioning.Build(p, text, conditioning.Options{LegacyBlend: legacy})
	if err != nil {
		return err
	}
	out.PositiveText, out.NegativeText = c.PositiveText, c.NegativeText
	out.Positive, out.Negative = prompt.Encode(c.Positive), prompt.Encode(c.Negative)

	// Text output shows the flattened conjunctions unless --tree asks for the raw parse
	shownPos, shownNeg := prompt.Node(c.Positive), prompt.Node(c.Negative)
	if opts.tree || logger.ShouldOutput(verbosity(cmd, cfg), logger.OutputTree) {
		pos, err := p.Parse(c.PositiveText)
		if err != nil {
			return errors.Wrap(err, "positive prompt")
		}
		neg, err := p.Parse(c.NegativeText)
		if err != nil {
			return errors.Wrap(err, "negative prompt")
		}
		if opts.tree {
			shownPos, shownNeg = pos, neg
			out.Positive, out.Negative = prompt.Encode(pos), prompt.Encode(neg)
		} else {
			logger.Debugw("Unflattened tree", "positive", pos.String(), "negative", neg.String())
		}
	}

	var weights []float64
	if opts.tokens {
		out.Tokens, err = conditioning.NewLayouts(c.FirstPart(), conditioning.WordTokenizer{}, cfg.GetMaxTokens())
		if err != nil {
			return err
		}
		weights = layoutWeights(c.FirstPart(), len(out.Tokens))
	}

	if logger.ShouldOutput(verbosity(cmd, cfg), logger.OutputSummary) {
		logger.Infow("Prompt parsed",
			logger.FieldPartCount, len(c.Positive.Parts),
			logger.FieldWeights, c.Positive.Weights,
			"legacy_blend", legacy,
		)
	}

	w := cmd.OutOrStdout()
	if format != am.FormatText {
		return writeStructured(w, format, out)
	}

	if name != "" {
		fmt.Fprintf(w, "name:     %s\n", name)
	}
	fmt.Fprintf(w, "positive: %s\n", shownPos)
	fmt.Fprintf(w, "negative: %s\n", shownNeg)
	for i, l := range out.Tokens {
		conditioning.LogTokenization(w, l, weights[i])
	}
	return nil
}

// promptSource resolves the prompt text and the parser settings that apply to it
func promptSource(cmd *cobra.Command, args []string, file string, cfg *am.Config, base *prompt.Parser) (text, name string, legacy bool, p *prompt.Parser, err error) {
	legacy = cfg.Parser.LegacyBlend
	switch {
	case file != "":
		if len(args) > 0 {
			return "", "", false, nil, errors.New("give either PROMPT arguments or --file, not both")
		}
		doc, err := promptfile.ParseFile(file)
		if err != nil {
			return "", "", false, nil, err
		}
		p, err := doc.Parser(base)
		if err != nil {
			return "", "", false, nil, errors.Wrapf(err, "prompt file %s", file)
		}
		logger.Debugw("Loaded prompt file", logger.FieldFile, file, "frontmatter", doc.Format)
		return doc.PromptText(), doc.Metadata.Name, doc.LegacyBlend(legacy), p, nil

	case len(args) > 0:
		return strings.Join(args, " "), "", legacy, base, nil

	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", false, nil, errors.Wrap(err, "failed to read prompt from stdin")
		}
		return strings.TrimRight(string(data), "\r\n"), "", legacy, base, nil
	}
}

// layoutWeights returns the weight each layout of part is shown with
func layoutWeights(part prompt.Node, n int) []float64 {
	if b, ok := part.(*prompt.Blend); ok {
		return b.Weights
	}
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	return weights
}
