// Package prompt parses prompt text into a typed tree and flattens it into
// weighted fragments for a tokenizer.
//
// Syntax overview:
//
//	++cat, ++(a cat)                   attention weight 1.1^2
//	-cat                               attention weight 0.9
//	0.5(a cat)                         explicit attention weight
//	a cat.swap(dog, s_end=0.3)         cross-attention substitution
//	("a cat", "a dog").blend(0.7, 0.3) blend of two prompts
//	("a cat", "a dog").and()           conjunction of two prompts
//	a\(b\)                             escaped syntactic characters
//
// Text no strict production accepts stays literal. Only malformed operator
// calls produce a *ParseError.
package prompt

import (
	"math"

	"github.com/teranos/promptc/errors"
)

// Default attention bases for '+' and '-' runs.
const (
	DefaultPlusBase  = 1.1
	DefaultMinusBase = 0.9
)

// Parser holds the attention bases. It is immutable and safe for concurrent use.
type Parser struct {
	plusBase  float64
	minusBase float64
}

var defaultParser = &Parser{plusBase: DefaultPlusBase, minusBase: DefaultMinusBase}

// NewParser creates a parser where a run of n '+' weighs plusBase^n and a run
// of n '-' weighs minusBase^n.
func NewParser(plusBase, minusBase float64) (*Parser, error) {
	for _, b := range []float64{plusBase, minusBase} {
		if !(b > 0) || math.IsInf(b, 0) {
			return nil, errors.WithHint(
				errors.Newf("attention bases must be positive and finite, got %v and %v", plusBase, minusBase),
				"the defaults are 1.1 for '+' and 0.9 for '-'")
		}
	}
	return &Parser{plusBase: plusBase, minusBase: minusBase}, nil
}

// DefaultParser returns the shared parser with bases 1.1 and 0.9.
func DefaultParser() *Parser { return defaultParser }

func (p *Parser) PlusBase() float64  { return p.plusBase }
func (p *Parser) MinusBase() float64 { return p.minusBase }

// Parse returns the unflattened tree. Empty input yields one empty Fragment.
func (p *Parser) Parse(s string) (*Conjunction, error) {
	return newState(p, s).conjunction()
}

// ParseConjunction parses and flattens s.
func (p *Parser) ParseConjunction(s string) (*Conjunction, error) {
	if isBlank(s) {
		return emptyConjunction(), nil
	}
	tree, err := p.Parse(s)
	if err != nil {
		return nil, err
	}
	return Flatten(tree), nil
}

// ParsePrompt parses s as a single prompt, without top-level .blend() or .and().
func (p *Parser) ParsePrompt(s string) (*Prompt, error) {
	if isBlank(s) {
		return &Prompt{Children: []Node{&Fragment{Text: "", Weight: 1}}}, nil
	}
	nodes, _, err := newState(p, s).items(0, false, false)
	if err != nil {
		return nil, err
	}
	return &Prompt{Children: nodes}, nil
}

// ParseConjunction parses and flattens s with the default parser.
func ParseConjunction(s string) (*Conjunction, error) {
	return defaultParser.ParseConjunction(s)
}

// ParseLegacyBlend converts colon-weighted text with the default parser.
// It returns nil when the legacy syntax does not apply.
func ParseLegacyBlend(s string) (*Blend, error) {
	return defaultParser.ParseLegacyBlend(s)
}

func emptyConjunction() *Conjunction {
	return &Conjunction{
		Parts:   []Node{&FlattenedPrompt{Children: []Node{&Fragment{Text: "", Weight: 1}}}},
		Weights: []float64{1},
	}
}

// AsParseError extracts the *ParseError from err, if there is one.
func AsParseError(err error) (*ParseError, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
