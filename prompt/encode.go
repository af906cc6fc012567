package prompt

// Doc is a serializable view of a node for JSON and YAML output.
type Doc struct {
	Kind      Kind                   `json:"kind" yaml:"kind"`
	Text      *string                `json:"text,omitempty" yaml:"text,omitempty"`
	Weight    *float64               `json:"weight,omitempty" yaml:"weight,omitempty"`
	Children  []Doc                  `json:"children,omitempty" yaml:"children,omitempty"`
	Original  []Doc                  `json:"original,omitempty" yaml:"original,omitempty"`
	Edited    []Doc                  `json:"edited,omitempty" yaml:"edited,omitempty"`
	Options   map[string]interface{} `json:"options,omitempty" yaml:"options,omitempty"`
	Weights   []float64              `json:"weights,omitempty" yaml:"weights,omitempty"`
	Normalize *bool                  `json:"normalize_weights,omitempty" yaml:"normalize_weights,omitempty"`
}

// Encode converts n and its descendants into a Doc.
func Encode(n Node) Doc {
	switch n := n.(type) {
	case *Fragment:
		text, weight := n.Text, n.Weight
		return Doc{Kind: KindFragment, Text: &text, Weight: &weight}
	case *Attention:
		weight := n.Weight
		return Doc{Kind: KindAttention, Weight: &weight, Children: encodeAll(n.Children)}
	case *CrossAttentionControlSubstitute:
		return Doc{
			Kind:     KindSubstitute,
			Original: encodeAll(n.Original),
			Edited:   encodeAll(n.Edited),
			Options:  n.Options.Map(),
		}
	case *Prompt:
		return Doc{Kind: KindPrompt, Children: encodeAll(n.Children)}
	case *FlattenedPrompt:
		return Doc{Kind: KindFlattenedPrompt, Children: encodeAll(n.Children)}
	case *Blend:
		normalize := n.NormalizeWeights
		return Doc{Kind: KindBlend, Children: encodeAll(n.Children), Weights: n.Weights, Normalize: &normalize}
	case *Conjunction:
		return Doc{Kind: KindConjunction, Children: encodeAll(n.Parts), Weights: n.Weights}
	}
	return Doc{}
}

func encodeAll(nodes []Node) []Doc {
	docs := make([]Doc, len(nodes))
	for i, n := range nodes {
		docs[i] = Encode(n)
	}
	return docs
}
