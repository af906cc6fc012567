package prompt

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/teranos/promptc/errors"
)

// Kind names a node type.
type Kind string

const (
	KindFragment        Kind = "fragment"
	KindAttention       Kind = "attention"
	KindSubstitute      Kind = "cross_attention_control_substitute"
	KindPrompt          Kind = "prompt"
	KindFlattenedPrompt Kind = "flattened_prompt"
	KindBlend           Kind = "blend"
	KindConjunction     Kind = "conjunction"
)

// Node is the closed set of prompt tree nodes. Only types in this package implement it.
type Node interface {
	Kind() Kind
	String() string
	isNode()
}

// Fragment is a run of literal text with a weight.
type Fragment struct {
	Text   string
	Weight float64
}

// Attention scales the weight of every descendant.
type Attention struct {
	Weight   float64
	Children []Node
}

// CrossAttentionControlSubstitute renders Edited using the attention maps of Original.
type CrossAttentionControlSubstitute struct {
	Original []Node
	Edited   []Node
	Options  Options
}

// Prompt is an unflattened sequence of fragments, attention scopes and substitutes.
type Prompt struct {
	Children []Node
}

// FlattenedPrompt holds only Fragments and substitutes of Fragments.
type FlattenedPrompt struct {
	Children []Node
}

// Blend interpolates independently flattened prompts downstream.
type Blend struct {
	Children         []Node
	Weights          []float64
	NormalizeWeights bool
}

// Conjunction is the parse result: one or more weighted parts.
// Consumers currently use only the first part.
type Conjunction struct {
	Parts   []Node
	Weights []float64
}

func (*Fragment) isNode()                        {}
func (*Attention) isNode()                       {}
func (*CrossAttentionControlSubstitute) isNode() {}
func (*Prompt) isNode()                          {}
func (*FlattenedPrompt) isNode()                 {}
func (*Blend) isNode()                           {}
func (*Conjunction) isNode()                     {}

func (*Fragment) Kind() Kind                        { return KindFragment }
func (*Attention) Kind() Kind                       { return KindAttention }
func (*CrossAttentionControlSubstitute) Kind() Kind { return KindSubstitute }
func (*Prompt) Kind() Kind                          { return KindPrompt }
func (*FlattenedPrompt) Kind() Kind                 { return KindFlattenedPrompt }
func (*Blend) Kind() Kind                           { return KindBlend }
func (*Conjunction) Kind() Kind                     { return KindConjunction }

// NewFragment resolves escaped syntactic characters in text.
func NewFragment(text string, weight float64) *Fragment {
	return &Fragment{Text: Unescape(text), Weight: weight}
}

// NewAttention checks that weight is finite and children are prompt items.
func NewAttention(weight float64, children []Node) (*Attention, error) {
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return nil, errors.Wrapf(errors.ErrInvalidNode, "attention weight must be finite, got %v", weight)
	}
	if err := checkKinds("attention", children, KindFragment, KindAttention, KindSubstitute); err != nil {
		return nil, err
	}
	return &Attention{Weight: weight, Children: children}, nil
}

// NewCrossAttentionControlSubstitute validates both sides and builds the options bag.
// An empty edited side becomes a single empty Fragment.
func NewCrossAttentionControlSubstitute(original, edited []Node, options map[string]Value) (*CrossAttentionControlSubstitute, error) {
	if err := checkKinds("swap original", original, KindFragment, KindAttention); err != nil {
		return nil, err
	}
	if err := checkKinds("swap edited", edited, KindFragment, KindAttention); err != nil {
		return nil, err
	}
	if containsSubstitute(original) || containsSubstitute(edited) {
		return nil, errors.Wrap(errors.ErrInvalidNode, ".swap() cannot be nested in another .swap()")
	}
	if len(edited) == 0 {
		edited = []Node{&Fragment{Text: "", Weight: 1}}
	}
	opts, err := NewOptions(options)
	if err != nil {
		return nil, err
	}
	return &CrossAttentionControlSubstitute{Original: original, Edited: edited, Options: opts}, nil
}

// NewPrompt checks that children are prompt items.
func NewPrompt(children []Node) (*Prompt, error) {
	if err := checkKinds("prompt", children, KindFragment, KindAttention, KindSubstitute); err != nil {
		return nil, err
	}
	return &Prompt{Children: children}, nil
}

// NewFlattenedPrompt checks that children are Fragments or substitutes of Fragments.
func NewFlattenedPrompt(children []Node) (*FlattenedPrompt, error) {
	if err := checkKinds("flattened prompt", children, KindFragment, KindSubstitute); err != nil {
		return nil, err
	}
	for _, c := range children {
		if s, ok := c.(*CrossAttentionControlSubstitute); ok {
			if err := checkKinds("flattened swap original", s.Original, KindFragment); err != nil {
				return nil, err
			}
			if err := checkKinds("flattened swap edited", s.Edited, KindFragment); err != nil {
				return nil, err
			}
		}
	}
	return &FlattenedPrompt{Children: children}, nil
}

// IsEmpty reports whether the prompt has no children or a single empty Fragment.
func (p *FlattenedPrompt) IsEmpty() bool {
	if len(p.Children) == 0 {
		return true
	}
	if len(p.Children) > 1 {
		return false
	}
	f, ok := p.Children[0].(*Fragment)
	return ok && f.Text == ""
}

// Fragments returns the top-level Fragments, skipping substitutes.
func (p *FlattenedPrompt) Fragments() []*Fragment {
	var out []*Fragment
	for _, c := range p.Children {
		if f, ok := c.(*Fragment); ok {
			out = append(out, f)
		}
	}
	return out
}

// NewBlend requires one weight per child and rejects children that contain a substitute.
func NewBlend(children []Node, weights []float64, normalize bool) (*Blend, error) {
	if len(children) != len(weights) {
		return nil, errors.Wrapf(errors.ErrMismatchedCounts, "%d prompts but %d weights", len(children), len(weights))
	}
	if err := checkKinds("blend", children, KindPrompt, KindFlattenedPrompt); err != nil {
		return nil, err
	}
	for i, c := range children {
		if containsSubstitute(childrenOf(c)) {
			return nil, errors.WithHint(
				errors.Wrapf(errors.ErrSubstituteInBlend, "blend prompt %d", i+1),
				"move the .swap() outside the blend")
		}
	}
	return &Blend{Children: children, Weights: weights, NormalizeWeights: normalize}, nil
}

// NewConjunction defaults weights to 1.0 per part when weights is nil.
func NewConjunction(parts []Node, weights []float64) (*Conjunction, error) {
	if err := checkKinds("conjunction", parts, KindPrompt, KindBlend, KindFlattenedPrompt); err != nil {
		return nil, err
	}
	if weights == nil {
		weights = make([]float64, len(parts))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(weights) != len(parts) {
		return nil, errors.Wrapf(errors.ErrMismatchedCounts, "%d conjunction parts but %d weights", len(parts), len(weights))
	}
	return &Conjunction{Parts: parts, Weights: weights}, nil
}

func checkKinds(what string, nodes []Node, allowed ...Kind) error {
	for i, n := range nodes {
		if n == nil {
			return errors.Wrapf(errors.ErrInvalidNode, "%s child %d is nil", what, i)
		}
		ok := false
		for _, k := range allowed {
			if n.Kind() == k {
				ok = true
				break
			}
		}
		if !ok {
			return errors.Wrapf(errors.ErrInvalidNode, "%s cannot contain %s", what, n.Kind())
		}
	}
	return nil
}

func childrenOf(n Node) []Node {
	switch n := n.(type) {
	case *Prompt:
		return n.Children
	case *FlattenedPrompt:
		return n.Children
	case *Attention:
		return n.Children
	}
	return nil
}

// containsSubstitute looks through Attention scopes for a substitute.
func containsSubstitute(nodes []Node) bool {
	for _, n := range nodes {
		switch n := n.(type) {
		case *CrossAttentionControlSubstitute:
			return true
		case *Attention:
			if containsSubstitute(n.Children) {
				return true
			}
		}
	}
	return false
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'g', -1, 64)
}

func formatWeights(ws []float64) string {
	parts := make([]string, len(ws))
	for i, w := range ws {
		parts[i] = formatWeight(w)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (f *Fragment) String() string {
	return fmt.Sprintf("Fragment:%q@%s", f.Text, formatWeight(f.Weight))
}

func (a *Attention) String() string {
	return fmt.Sprintf("Attention:%s%s", formatWeight(a.Weight), formatNodes(a.Children))
}

func (s *CrossAttentionControlSubstitute) String() string {
	var opts []string
	for _, k := range s.Options.Keys() {
		opts = append(opts, k+"="+s.Options[k].String())
	}
	return fmt.Sprintf("CrossAttentionControlSubstitute:(%s->%s {%s})",
		formatNodes(s.Original), formatNodes(s.Edited), strings.Join(opts, ", "))
}

func (p *Prompt) String() string {
	return "Prompt:" + formatNodes(p.Children)
}

func (p *FlattenedPrompt) String() string {
	return "FlattenedPrompt:" + formatNodes(p.Children)
}

func (b *Blend) String() string {
	s := fmt.Sprintf("Blend:%s | weights %s", formatNodes(b.Children), formatWeights(b.Weights))
	if !b.NormalizeWeights {
		s += " no_normalize"
	}
	return s
}

func (c *Conjunction) String() string {
	return fmt.Sprintf("Conjunction:%s | weights %s", formatNodes(c.Parts), formatWeights(c.Weights))
}
