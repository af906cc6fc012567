package prompt

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
)

// legacyPattern matches one "text:weight" sub-prompt. Text runs up to an
// unescaped ':'; the weight is optional and defaults to 1.
var legacyPattern = regexp.MustCompile(`(?P<prompt>(?:\\:|[^:])+)(?::+(?P<weight>-?\d+(?:\.\d+)?)?\s*|$)`)

// LegacySubprompt is one piece of the colon-weighted syntax.
type LegacySubprompt struct {
	Text   string
	Weight float64
}

// SplitLegacy scans s for colon-weighted sub-prompts. Escaped colons are
// returned as plain ':' in Text.
func SplitLegacy(s string) []LegacySubprompt {
	var out []LegacySubprompt
	promptIdx := legacyPattern.SubexpIndex("prompt")
	weightIdx := legacyPattern.SubexpIndex("weight")
	for _, m := range legacyPattern.FindAllStringSubmatch(s, -1) {
		weight := 1.0
		if raw := m[weightIdx]; raw != "" {
			if w, err := strconv.ParseFloat(raw, 64); err == nil {
				weight = w
			}
		}
		out = append(out, LegacySubprompt{
			Text:   strings.ReplaceAll(m[promptIdx], `\:`, ":"),
			Weight: weight,
		})
	}
	return out
}

// NormalizeLegacyWeights divides each weight by their sum. A zero sum cannot be
// normalized, so every sub-prompt gets 1/N instead and a warning is logged.
func NormalizeLegacyWeights(weights []float64) []float64 {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	out := make([]float64, len(weights))
	if sum == 0 {
		logger.Warnw("legacy blend weights sum to zero, using equal weights",
			logger.FieldWeights, weights, logger.FieldCount, len(weights))
		for i := range out {
			out[i] = 1 / float64(len(weights))
		}
		return out
	}
	for i, w := range weights {
		out[i] = w / sum
	}
	return out
}

// ParseLegacyBlend converts "text:weight text:weight" into a normalized Blend of
// FlattenedPrompts. It returns nil when s has at most one sub-prompt.
func (p *Parser) ParseLegacyBlend(s string) (*Blend, error) {
	subs := SplitLegacy(s)
	if len(subs) <= 1 {
		return nil, nil
	}

	children := make([]Node, len(subs))
	raw := make([]float64, len(subs))
	for i, sub := range subs {
		c, err := p.ParseConjunction(sub.Text)
		if err != nil {
			return nil, errors.Wrapf(err, "legacy sub-prompt %d", i+1)
		}
		fp, ok := c.Parts[0].(*FlattenedPrompt)
		if !ok {
			return nil, NewParseError(ErrorKindOperator, "a legacy sub-prompt cannot contain .blend()").
				WithUnderlying(errors.ErrMisplacedOperator).
				WithNear(sub.Text).
				WithOperator(OpBlend)
		}
		children[i] = fp
		raw[i] = sub.Weight
	}

	blend, err := NewBlend(children, NormalizeLegacyWeights(raw), true)
	if err != nil {
		return nil, NewParseError(ErrorKindStructure, errorMessage(err)).
			WithUnderlying(err).
			WithNear(s).
			WithSuggestion("remove .swap() from colon-weighted prompts")
	}
	return blend, nil
}
