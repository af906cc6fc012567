package prompt

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenComposesWeights(t *testing.T) {
	tree := conj(&Prompt{Children: nodes(
		frag("a", 1),
		&Attention{Weight: 2, Children: nodes(
			frag("b", 1),
			&Attention{Weight: 0.5, Children: nodes(frag("c", 1), frag("d", 3))},
			swap(
				nodes(&Attention{Weight: 1.5, Children: nodes(frag("x", 1))}),
				nodes(frag("y", 1), frag("z", 1)),
				Options{OptionTEnd: FloatValue(0.5)},
			),
		)},
	)})

	want := conj(flat(
		frag("a", 1),
		frag("b", 2),
		frag("c", 1),
		frag("d", 3),
		swap(nodes(frag("x", 3)), nodes(frag("y z", 2)), Options{OptionTEnd: FloatValue(0.5)}),
	))
	assertTree(t, want, Flatten(tree))
}

func TestFlattenBlendKeepsWeights(t *testing.T) {
	tree := conj(&Blend{
		Children: nodes(
			&Prompt{Children: nodes(&Attention{Weight: 2, Children: nodes(frag("a", 1))})},
			flat(frag("b", 1), frag("c", 1)),
		),
		Weights:          []float64{3, 1},
		NormalizeWeights: false,
	})

	want := conj(&Blend{
		Children:         nodes(flat(frag("a", 2)), flat(frag("b c", 1))),
		Weights:          []float64{3, 1},
		NormalizeWeights: false,
	})
	assertTree(t, want, Flatten(tree))
}

func TestFlattenPreservesConjunctionWeights(t *testing.T) {
	tree := &Conjunction{
		Parts:   nodes(&Prompt{Children: nodes(frag("a", 1))}, &Prompt{Children: nodes(frag("b", 1))}),
		Weights: []float64{0.25, 4},
	}
	got := Flatten(tree)
	assert.Equal(t, []float64{0.25, 4}, got.Weights)

	// the input tree is not modified
	_, isPrompt := tree.Parts[0].(*Prompt)
	assert.True(t, isPrompt)
}

func TestFuseFragments(t *testing.T) {
	tests := []struct {
		name string
		in   []Node
		want []Node
	}{
		{
			name: "equal weights join",
			in:   nodes(frag("a", 1), frag("b", 1), frag("c", 2), frag("d", 2)),
			want: nodes(frag("a b", 1), frag("c d", 2)),
		},
		{
			name: "substitute blocks fusion",
			in:   nodes(frag("a", 1), swap(nodes(frag("x", 1), frag("y", 1)), nodes(frag("z", 1)), nil), frag("b", 1)),
			want: nodes(frag("a", 1), swap(nodes(frag("x y", 1)), nodes(frag("z", 1)), nil), frag("b", 1)),
		},
		{
			name: "empty fragment keeps both separators",
			in:   nodes(frag("a", 1), frag("", 1), frag("b", 1)),
			want: nodes(frag("a  b", 1)),
		},
		{
			name: "lone empty fragment survives",
			in:   nodes(frag("", 1)),
			want: nodes(frag("", 1)),
		},
		{
			name: "different weights stay apart",
			in:   nodes(frag("a", 1), frag("b", 1.0000001), frag("c", 1)),
			want: nodes(frag("a", 1), frag("b", 1.0000001), frag("c", 1)),
		},
		{
			name: "empty input",
			in:   nil,
			want: []Node{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FuseFragments(tt.in)
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(Value{})); diff != "" {
				t.Errorf("FuseFragments mismatch (-want +got):\n%s", diff)
			}
			again := FuseFragments(got)
			if diff := cmp.Diff(got, again, cmp.AllowUnexported(Value{})); diff != "" {
				t.Errorf("fusion is not idempotent (-first +second):\n%s", diff)
			}
		})
	}
}

func TestFusionIdempotentOnParsedPrompts(t *testing.T) {
	inputs := []string{
		"a b ++c d -(e f) g",
		"x.swap(y z) 1.5(q r) s",
		`"a" "" "b" () c`,
	}
	for _, in := range inputs {
		c, err := ParseConjunction(in)
		require.NoError(t, err)
		fp := c.Parts[0].(*FlattenedPrompt)
		assertTree(t, fp, &FlattenedPrompt{Children: FuseFragments(fp.Children)})
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	texts := []string{`f(x)`, `say "hi"`, `a, b. c+d-e=f`, `(nested (parens))`}
	for _, text := range texts {
		c, err := ParseConjunction(Escape(text))
		require.NoError(t, err)
		assertTree(t, conj(flat(frag(text, 1))), c)
	}

	c, err := ParseConjunction(`\(a\) \"b\"`)
	require.NoError(t, err)
	assert.Equal(t, `(a) "b"`, c.Parts[0].(*FlattenedPrompt).Fragments()[0].Text)
}

func TestFlattenPromptScale(t *testing.T) {
	fp := FlattenPrompt(nodes(frag("a", 1), &Attention{Weight: 2, Children: nodes(frag("b", 1))}), 0.5)
	assertTree(t, flat(frag("a", 0.5), frag("b", 1)), fp)
	assert.InDelta(t, 1.0, fp.Fragments()[1].Weight, 1e-12)
	assert.False(t, math.IsNaN(fp.Fragments()[0].Weight))
}

func TestFlattenRejectsForeignParts(t *testing.T) {
	assert.Panics(t, func() {
		Flatten(&Conjunction{Parts: nodes(frag("a", 1)), Weights: []float64{1}})
	})
}
