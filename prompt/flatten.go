package prompt

import "fmt"

// Flatten turns every part of c into a FlattenedPrompt, or a Blend of
// FlattenedPrompts. Conjunction weights pass through unchanged.
func Flatten(c *Conjunction) *Conjunction {
	parts := make([]Node, len(c.Parts))
	for i, part := range c.Parts {
		parts[i] = flattenPart(part)
	}
	weights := append([]float64(nil), c.Weights...)
	return &Conjunction{Parts: parts, Weights: weights}
}

func flattenPart(n Node) Node {
	switch n := n.(type) {
	case *Prompt:
		return FlattenPrompt(n.Children, 1)
	case *FlattenedPrompt:
		return FlattenPrompt(n.Children, 1)
	case *Blend:
		return flattenBlend(n, 1)
	}
	panic(fmt.Sprintf("prompt: %s is not a conjunction part", n.Kind()))
}

// FlattenPrompt linearizes prompt items at the given scale and fuses the result.
func FlattenPrompt(children []Node, scale float64) *FlattenedPrompt {
	return &FlattenedPrompt{Children: FuseFragments(linearize(nil, children, scale))}
}

func flattenBlend(b *Blend, scale float64) *Blend {
	children := make([]Node, len(b.Children))
	for i, child := range b.Children {
		children[i] = FlattenPrompt(childrenOf(child), scale)
	}
	return &Blend{
		Children:         children,
		Weights:          append([]float64(nil), b.Weights...),
		NormalizeWeights: b.NormalizeWeights,
	}
}

// linearize appends the flattened form of nodes to out.
func linearize(out []Node, nodes []Node, scale float64) []Node {
	for _, n := range nodes {
		switch n := n.(type) {
		case *Fragment:
			out = append(out, &Fragment{Text: n.Text, Weight: n.Weight * scale})
		case *Attention:
			out = linearize(out, n.Children, scale*n.Weight)
		case *CrossAttentionControlSubstitute:
			out = append(out, &CrossAttentionControlSubstitute{
				Original: linearize(nil, n.Original, scale),
				Edited:   linearize(nil, n.Edited, scale),
				Options:  n.Options,
			})
		case *Prompt:
			out = linearize(out, n.Children, scale)
		case *FlattenedPrompt:
			out = linearize(out, n.Children, scale)
		case *Blend, *Conjunction:
			panic(fmt.Sprintf("prompt: %s cannot appear inside a prompt", n.Kind()))
		default:
			panic(fmt.Sprintf("prompt: unexpected node %T", n))
		}
	}
	return out
}

// FuseFragments merges consecutive Fragments of equal weight, joining their
// text with a single space. Substitutes block fusion and are fused internally.
// Fusing an already fused sequence returns an equal sequence.
func FuseFragments(nodes []Node) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		switch n := n.(type) {
		case *Fragment:
			if prev, ok := lastFragment(out); ok && prev.Weight == n.Weight {
				out[len(out)-1] = &Fragment{Text: joinText(prev.Text, n.Text), Weight: n.Weight}
				continue
			}
			out = append(out, n)
		case *CrossAttentionControlSubstitute:
			out = append(out, &CrossAttentionControlSubstitute{
				Original: FuseFragments(n.Original),
				Edited:   FuseFragments(n.Edited),
				Options:  n.Options,
			})
		default:
			out = append(out, n)
		}
	}
	return out
}

func lastFragment(nodes []Node) (*Fragment, bool) {
	if len(nodes) == 0 {
		return nil, false
	}
	f, ok := nodes[len(nodes)-1].(*Fragment)
	return f, ok
}

// joinText joins fused fragment texts with one space, empty ones included.
func joinText(a, b string) string {
	return a + " " + b
}
