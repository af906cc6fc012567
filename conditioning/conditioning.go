// Package conditioning prepares parsed prompts for a text encoder: it separates
// the bracketed negative prompt, chooses between the legacy colon syntax and the
// grammar, and lays fragments out on a fixed token budget.
package conditioning

import (
	"regexp"
	"strings"

	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
	"github.com/teranos/promptc/prompt"
)

var (
	negativePattern = regexp.MustCompile(`\[(.*?)\]`)
	spaceRun        = regexp.MustCompile(` +`)
)

// Options selects how prompt text is interpreted
type Options struct {
	// LegacyBlend tries "text:weight" sub-prompts before the grammar
	LegacyBlend bool
}

// Conditioning is the parsed positive and negative side of one prompt string
type Conditioning struct {
	PositiveText string
	NegativeText string
	Positive     *prompt.Conjunction
	Negative     *prompt.Conjunction
}

// SplitNegative extracts every [bracketed] span as the negative prompt, joined by
// spaces. The spans are removed from the positive text and runs of spaces collapsed.
// Text without brackets is returned unchanged.
func SplitNegative(s string) (positive, negative string) {
	matches := negativePattern.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return s, ""
	}

	negatives := make([]string, len(matches))
	for i, m := range matches {
		negatives[i] = m[1]
	}
	negative = strings.Join(negatives, " ")
	positive = spaceRun.ReplaceAllString(negativePattern.ReplaceAllString(s, " "), " ")
	return positive, negative
}

// Build parses both sides of s with p.
func Build(p *prompt.Parser, s string, opts Options) (*Conditioning, error) {
	positive, negative := SplitNegative(s)

	pos, err := parseSide(p, positive, opts)
	if err != nil {
		return nil, errors.Wrap(err, "positive prompt")
	}
	neg, err := parseSide(p, negative, opts)
	if err != nil {
		return nil, errors.Wrap(err, "negative prompt")
	}

	if len(pos.Parts) > 1 {
		logger.Warnw("Conditioning uses only the first conjunction part",
			logger.FieldPartCount, len(pos.Parts),
			logger.FieldPrompt, logger.Truncate(positive, 80))
	}

	return &Conditioning{
		PositiveText: positive,
		NegativeText: negative,
		Positive:     pos,
		Negative:     neg,
	}, nil
}

// parseSide tries the legacy colon syntax first, when enabled, then the grammar.
func parseSide(p *prompt.Parser, text string, opts Options) (*prompt.Conjunction, error) {
	if opts.LegacyBlend {
		blend, err := p.ParseLegacyBlend(text)
		if err != nil {
			return nil, err
		}
		if blend != nil {
			logger.Debugw("Using legacy blend syntax",
				logger.FieldOperator, prompt.OpBlend,
				logger.FieldWeights, blend.Weights)
			return prompt.NewConjunction([]prompt.Node{blend}, nil)
		}
	}
	return p.ParseConjunction(text)
}

// FirstPart returns the conjunction part the encoder conditions on.
func (c *Conditioning) FirstPart() prompt.Node {
	return c.Positive.Parts[0]
}
