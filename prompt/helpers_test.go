package prompt

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var treeOpts = cmp.Options{
	cmp.AllowUnexported(Value{}),
	cmpopts.EquateApprox(0, 1e-12),
}

func frag(text string, weight float64) *Fragment {
	return &Fragment{Text: text, Weight: weight}
}

func flat(children ...Node) *FlattenedPrompt {
	return &FlattenedPrompt{Children: children}
}

func conj(parts ...Node) *Conjunction {
	weights := make([]float64, len(parts))
	for i := range weights {
		weights[i] = 1
	}
	return &Conjunction{Parts: parts, Weights: weights}
}

func swap(original, edited []Node, opts Options) *CrossAttentionControlSubstitute {
	if opts == nil {
		opts = Options{}
	}
	return &CrossAttentionControlSubstitute{Original: original, Edited: edited, Options: opts}
}

func nodes(n ...Node) []Node { return n }

func assertTree(t *testing.T, want, got Node) {
	t.Helper()
	if diff := cmp.Diff(want, got, treeOpts); diff != "" {
		t.Errorf("tree mismatch (-want +got):\n%s", diff)
	}
}
