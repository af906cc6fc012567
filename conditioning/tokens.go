package conditioning

import (
	"strings"
	"unicode"

	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/prompt"
)

// EndOfWord marks the last token of a word, as CLIP's BPE vocabulary does.
const EndOfWord = "</w>"

// Tokenizer splits fragment text into encoder tokens.
type Tokenizer interface {
	Tokenize(text string) []string
}

// WordTokenizer approximates a BPE tokenizer for display: each word and each
// punctuation rune becomes one token.
type WordTokenizer struct{}

// Tokenize lowercases text and splits it into words and punctuation.
func (WordTokenizer) Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String()+EndOfWord)
			word.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			word.WriteRune(r)
		default:
			flush()
			tokens = append(tokens, string(r)+EndOfWord)
		}
	}
	flush()
	return tokens
}

// Token is one encoder token with the attention weight of its fragment.
type Token struct {
	Text   string  `json:"text" yaml:"text"`
	Weight float64 `json:"weight" yaml:"weight"`
	Child  int     `json:"child" yaml:"child"` // index into the FlattenedPrompt children
}

// Span is a half-open token range.
type Span struct {
	Start int `json:"start" yaml:"start"`
	End   int `json:"end" yaml:"end"`
}

// Len returns the number of tokens in the span.
func (s Span) Len() int { return s.End - s.Start }

// FragmentSpan locates a plain Fragment in both token sequences.
type FragmentSpan struct {
	Child    int     `json:"child" yaml:"child"`
	Text     string  `json:"text" yaml:"text"`
	Weight   float64 `json:"weight" yaml:"weight"`
	Original Span    `json:"original" yaml:"original"`
	Edited   Span    `json:"edited" yaml:"edited"`
}

// SubstituteSpan locates both sides of a .swap() in their token sequences.
type SubstituteSpan struct {
	Child    int                    `json:"child" yaml:"child"`
	Original Span                   `json:"original" yaml:"original"`
	Edited   Span                   `json:"edited" yaml:"edited"`
	Options  map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`

	// Resolved swap ranges, defaults applied
	SStart float64 `json:"s_start" yaml:"s_start"`
	SEnd   float64 `json:"s_end" yaml:"s_end"`
	TStart float64 `json:"t_start" yaml:"t_start"`
	TEnd   float64 `json:"t_end" yaml:"t_end"`
}

// Layout places a FlattenedPrompt on the encoder's token budget. The original
// sequence carries substitute originals, the edited sequence their replacements.
// Spans index the untruncated sequences.
type Layout struct {
	MaxTokens       int              `json:"max_tokens" yaml:"max_tokens"`
	Original        []Token          `json:"original" yaml:"original"`
	Edited          []Token          `json:"edited,omitempty" yaml:"edited,omitempty"`
	Discarded       []Token          `json:"discarded,omitempty" yaml:"discarded,omitempty"`
	EditedDiscarded []Token          `json:"edited_discarded,omitempty" yaml:"edited_discarded,omitempty"`
	Fragments       []FragmentSpan   `json:"fragments" yaml:"fragments"`
	Substitutes     []SubstituteSpan `json:"substitutes,omitempty" yaml:"substitutes,omitempty"`
	hasSubstitutes  bool
	originalFull    int
}

// NewLayout tokenizes every fragment of fp. Two of maxTokens are reserved for the
// begin and end markers; tokens past the rest are moved to Discarded.
func NewLayout(fp *prompt.FlattenedPrompt, tok Tokenizer, maxTokens int) (*Layout, error) {
	if maxTokens < 3 {
		return nil, errors.NewInvalidConfigError("token budget must be at least 3, got %d", maxTokens)
	}

	l := &Layout{MaxTokens: maxTokens}
	var original, edited []Token
	for i, child := range fp.Children {
		switch c := child.(type) {
		case *prompt.Fragment:
			toks := weighted(tok.Tokenize(c.Text), c.Weight, i)
			fs := FragmentSpan{Child: i, Text: c.Text, Weight: c.Weight}
			original, fs.Original = appendSpan(original, toks)
			edited, fs.Edited = appendSpan(edited, toks)
			l.Fragments = append(l.Fragments, fs)

		case *prompt.CrossAttentionControlSubstitute:
			ss := SubstituteSpan{
				Child:   i,
				Options: c.Options.Map(),
				SStart:  c.Options.SStart(),
				SEnd:    c.Options.SEnd(),
				TStart:  c.Options.TStart(),
				TEnd:    c.Options.TEnd(),
			}
			original, ss.Original = appendSpan(original, sideTokens(c.Original, tok, i))
			edited, ss.Edited = appendSpan(edited, sideTokens(c.Edited, tok, i))
			l.Substitutes = append(l.Substitutes, ss)
			l.hasSubstitutes = true

		default:
			return nil, errors.Wrapf(errors.ErrInvalidNode, "cannot lay out %s", child.Kind())
		}
	}

	l.originalFull = len(original)
	budget := maxTokens - 2
	l.Original, l.Discarded = truncate(original, budget)
	if l.hasSubstitutes {
		l.Edited, l.EditedDiscarded = truncate(edited, budget)
	}
	return l, nil
}

// NewLayouts lays out a conjunction part: one layout for a FlattenedPrompt,
// one per child for a Blend.
func NewLayouts(part prompt.Node, tok Tokenizer, maxTokens int) ([]*Layout, error) {
	switch p := part.(type) {
	case *prompt.FlattenedPrompt:
		l, err := NewLayout(p, tok, maxTokens)
		if err != nil {
			return nil, err
		}
		return []*Layout{l}, nil
	case *prompt.Blend:
		layouts := make([]*Layout, 0, len(p.Children))
		for _, child := range p.Children {
			fp, ok := child.(*prompt.FlattenedPrompt)
			if !ok {
				return nil, errors.Wrapf(errors.ErrInvalidNode, "blend child is %s, flatten first", child.Kind())
			}
			l, err := NewLayout(fp, tok, maxTokens)
			if err != nil {
				return nil, err
			}
			layouts = append(layouts, l)
		}
		return layouts, nil
	}
	return nil, errors.Wrapf(errors.ErrInvalidNode, "cannot lay out %s", part.Kind())
}

// HasSubstitutes reports whether the edited sequence differs from the original.
func (l *Layout) HasSubstitutes() bool { return l.hasSubstitutes }

// Overflow returns how many original tokens did not fit.
func (l *Layout) Overflow() int { return len(l.Discarded) }

// TokenWeights returns MaxTokens weights for the original sequence: 1 for the
// begin marker, the fragment weights, then 1 for the end marker and padding.
func (l *Layout) TokenWeights() []float64 {
	return padWeights(l.Original, l.MaxTokens)
}

// EditedTokenWeights is TokenWeights for the edited sequence.
func (l *Layout) EditedTokenWeights() []float64 {
	if !l.hasSubstitutes {
		return l.TokenWeights()
	}
	return padWeights(l.Edited, l.MaxTokens)
}

func padWeights(tokens []Token, maxTokens int) []float64 {
	weights := make([]float64, maxTokens)
	for i := range weights {
		weights[i] = 1
	}
	for i, t := range tokens {
		weights[i+1] = t.Weight
	}
	return weights
}

func weighted(texts []string, weight float64, child int) []Token {
	toks := make([]Token, len(texts))
	for i, t := range texts {
		toks[i] = Token{Text: t, Weight: weight, Child: child}
	}
	return toks
}

func sideTokens(side []prompt.Node, tok Tokenizer, child int) []Token {
	var toks []Token
	for _, n := range side {
		if f, ok := n.(*prompt.Fragment); ok {
			toks = append(toks, weighted(tok.Tokenize(f.Text), f.Weight, child)...)
		}
	}
	return toks
}

func appendSpan(seq, toks []Token) ([]Token, Span) {
	start := len(seq)
	seq = append(seq, toks...)
	return seq, Span{Start: start, End: len(seq)}
}

func truncate(seq []Token, budget int) (kept, discarded []Token) {
	if len(seq) <= budget {
		return seq, nil
	}
	return seq[:budget], seq[budget:]
}
