package prompt

import (
	"fmt"
	"math"

	"github.com/teranos/promptc/errors"
)

// Operator names recognized after a '.'
const (
	OpSwap  = "swap"
	OpBlend = "blend"
	OpAnd   = "and"
)

const noNormalizeFlag = "no_normalize"

// state is the per-call parse state. A Parser never stores one.
type state struct {
	p      *Parser
	src    string
	root   string // text error ranges are reported against
	base   int    // offset of src within root
	groups map[int]memo
	quotes map[int]memo
}

// memo caches a group or quoted-string parse at an offset so that
// backtracking over unmatched parentheses stays polynomial.
type memo struct {
	nodes []Node
	end   int
	ok    bool
	err   error
}

// combinator is a recognized ("a", "b").blend(...) or .and(...) call.
type combinator struct {
	op          string
	start, end  int
	terms       []string
	termOffsets []int
	weights     []float64
	noNormalize bool
}

func newState(p *Parser, src string) *state {
	return &state{
		p:      p,
		src:    src,
		root:   src,
		groups: make(map[int]memo),
		quotes: make(map[int]memo),
	}
}

// sub returns a state for nested text found at offset within st.src.
func (st *state) sub(src string, offset int) *state {
	return &state{
		p:      st.p,
		src:    src,
		root:   st.root,
		base:   st.base + offset,
		groups: make(map[int]memo),
		quotes: make(map[int]memo),
	}
}

func (st *state) errorAt(err error, kind ErrorKind, start, end int, op, msg string) *ParseError {
	if end > len(st.src) {
		end = len(st.src)
	}
	if msg == "" {
		msg = errorMessage(err)
	}
	pe := NewParseError(kind, msg).
		WithUnderlying(err).
		WithNear(st.src[start:end]).
		WithOperator(op).
		WithRange(rangeOf(st.root, st.base+start, st.base+end))
	for _, hint := range errors.GetAllHints(err) {
		pe.WithSuggestion(hint)
	}
	return pe
}

// conjunction is the top level: combinators interleaved with prompt runs.
func (st *state) conjunction() (*Conjunction, error) {
	var parts []Node
	var weights []float64

	i := 0
	for {
		i = skipSpace(st.src, i)
		if i >= len(st.src) {
			break
		}

		c, err := st.scanCombinator(i)
		if err != nil {
			return nil, err
		}
		if c != nil {
			nodes, ws, err := st.buildCombinator(c)
			if err != nil {
				return nil, err
			}
			parts = append(parts, nodes...)
			weights = append(weights, ws...)
			i = c.end
			continue
		}

		nodes, end, err := st.items(i, false, true)
		if err != nil {
			return nil, err
		}
		if len(nodes) > 0 {
			parts = append(parts, &Prompt{Children: nodes})
			weights = append(weights, 1)
		}
		i = end
	}

	if len(parts) == 0 {
		parts = []Node{&Prompt{Children: []Node{&Fragment{Text: "", Weight: 1}}}}
		weights = []float64{1}
	}
	return NewConjunction(parts, weights)
}

// items parses prompt items until end of input, a ')' when inGroup,
// or the start of a combinator when top.
func (st *state) items(i int, inGroup, top bool) ([]Node, int, error) {
	var nodes []Node
	for {
		i = skipSpace(st.src, i)
		if i >= len(st.src) || (inGroup && st.src[i] == ')') {
			return nodes, i, nil
		}
		if top {
			c, err := st.scanCombinator(i)
			if err != nil {
				return nil, i, err
			}
			if c != nil {
				return nodes, i, nil
			}
		}

		item, end, err := st.item(i, inGroup)
		if err != nil {
			return nil, i, err
		}
		nodes = append(nodes, item...)
		i = end
	}
}

// item tries the strict productions in order and falls back to literal text.
// It always consumes at least one byte.
func (st *state) item(i int, inGroup bool) ([]Node, int, error) {
	if n, end, ok, err := st.substitute(i); err != nil || ok {
		return n, end, err
	}
	if n, end, ok, err := st.attention(i); err != nil || ok {
		return n, end, err
	}
	if n, end, ok, err := st.quoted(i); err != nil || ok {
		return n, end, err
	}
	if n, end, ok, err := st.group(i); err != nil || ok {
		return n, end, err
	}
	n, end := st.fallback(i, inGroup)
	return n, end, nil
}

// fallback turns text no strict production accepts into a literal Fragment:
// an optional stray grouping character followed by a run of word characters.
// A '(' or '"' inside the run that opens nothing stays part of the word.
func (st *state) fallback(i int, inGroup bool) ([]Node, int) {
	src := st.src
	start := i
	switch src[i] {
	case '(', '"':
		i++
	case ')':
		if !inGroup {
			i++
		}
	}
	stop := fallbackStop
	if !inGroup {
		stop = topFallbackStop
	}

	end := i
	for {
		_, end = scanWord(src, end, stop)
		if end >= len(src) || !st.stray(end) {
			break
		}
		end++
	}
	return []Node{NewFragment(src[start:end], 1)}, end
}

// stray reports whether src[i] is a '(' or '"' that starts no valid group or quote.
func (st *state) stray(i int) bool {
	switch st.src[i] {
	case '(':
		_, _, ok, err := st.group(i)
		return !ok && err == nil
	case '"':
		_, _, ok, err := st.quoted(i)
		return !ok && err == nil
	}
	return false
}

// quoted parses "..." and re-parses its content as prompt items.
func (st *state) quoted(i int) ([]Node, int, bool, error) {
	if i >= len(st.src) || st.src[i] != '"' {
		return nil, i, false, nil
	}
	if m, ok := st.quotes[i]; ok {
		return m.nodes, m.end, m.ok, m.err
	}

	var m memo
	content, end, ok := scanQuoted(st.src, i)
	switch {
	case !ok:
		m = memo{end: i}
	case isBlank(content):
		m = memo{nodes: []Node{&Fragment{Text: "", Weight: 1}}, end: end, ok: true}
	default:
		inner := st.sub(content, i+1)
		nodes, _, err := inner.items(0, false, false)
		m = memo{nodes: nodes, end: end, ok: err == nil, err: err}
	}
	st.quotes[i] = m
	return m.nodes, m.end, m.ok, m.err
}

// group parses ( ... ); its items are spliced into the enclosing sequence.
func (st *state) group(i int) ([]Node, int, bool, error) {
	if i >= len(st.src) || st.src[i] != '(' {
		return nil, i, false, nil
	}
	if m, ok := st.groups[i]; ok {
		return m.nodes, m.end, m.ok, m.err
	}

	var m memo
	nodes, end, err := st.items(i+1, true, false)
	switch {
	case err != nil:
		m = memo{end: i, err: err}
	case end < len(st.src) && st.src[end] == ')':
		m = memo{nodes: nodes, end: end + 1, ok: true}
	default:
		m = memo{end: i}
	}
	st.groups[i] = m
	return m.nodes, m.end, m.ok, m.err
}

// attention parses N(...) or a run of '+' or '-' followed by a group,
// a quoted fragment or a restricted word.
func (st *state) attention(i int) ([]Node, int, bool, error) {
	src := st.src
	if i >= len(src) {
		return nil, i, false, nil
	}

	if w, numEnd, ok := scanNumber(src, i); ok && numEnd < len(src) && src[numEnd] == '(' {
		children, end, ok, err := st.group(numEnd)
		if err != nil {
			return nil, i, false, err
		}
		if ok {
			return st.makeAttention(w, children, i, end)
		}
	}

	sign := src[i]
	if sign != '+' && sign != '-' {
		return nil, i, false, nil
	}
	j := i
	for j < len(src) && src[j] == sign {
		j++
	}
	base := st.p.plusBase
	if sign == '-' {
		base = st.p.minusBase
	}
	weight := math.Pow(base, float64(j-i))

	if children, end, ok, err := st.group(j); err != nil || ok {
		if err != nil {
			return nil, i, false, err
		}
		return st.makeAttention(weight, children, i, end)
	}
	if children, end, ok, err := st.quoted(j); err != nil || ok {
		if err != nil {
			return nil, i, false, err
		}
		return st.makeAttention(weight, children, i, end)
	}
	if raw, end := scanWord(src, j, restrictedStop); raw != "" {
		return st.makeAttention(weight, []Node{NewFragment(raw, 1)}, i, end)
	}
	return nil, i, false, nil
}

func (st *state) makeAttention(weight float64, children []Node, start, end int) ([]Node, int, bool, error) {
	a, err := NewAttention(weight, children)
	if err != nil {
		return nil, start, false, st.errorAt(err, ErrorKindStructure, start, end, "", "")
	}
	return []Node{a}, end, true, nil
}

// swapTarget parses the text before .swap(: quoted, group or restricted word.
func (st *state) swapTarget(i int) ([]Node, int, bool, error) {
	if nodes, end, ok, err := st.quoted(i); err != nil || ok {
		return nodes, end, ok, err
	}
	if nodes, end, ok, err := st.group(i); err != nil || ok {
		if ok && len(nodes) == 0 {
			nodes = []Node{&Fragment{Text: "", Weight: 1}}
		}
		return nodes, end, ok, err
	}
	if raw, end := scanWord(st.src, i, restrictedStop); raw != "" {
		return []Node{NewFragment(raw, 1)}, end, true, nil
	}
	return nil, i, false, nil
}

// substitute parses target.swap(replacement[, options]). A target followed
// by any other .name( raises an operator error.
func (st *state) substitute(i int) ([]Node, int, bool, error) {
	src := st.src
	target, tEnd, ok, err := st.swapTarget(i)
	if err != nil || !ok {
		return nil, i, false, err
	}
	if tEnd >= len(src) || src[tEnd] != '.' {
		return nil, i, false, nil
	}
	op, opEnd := scanIdent(src, tEnd+1)
	if op == "" || opEnd >= len(src) || src[opEnd] != '(' {
		return nil, i, false, nil
	}

	switch op {
	case OpSwap:
	case OpBlend, OpAnd:
		pe := st.errorAt(errors.ErrMisplacedOperator, ErrorKindOperator, i, opEnd+1, op,
			fmt.Sprintf(".%s() must follow a parenthesized list of quoted prompts at the top level", op))
		return nil, i, false, pe.WithSuggestion(fmt.Sprintf(`("first prompt", "second prompt").%s(1, 1)`, op))
	default:
		return nil, i, false, st.unrecognizedOperator(tEnd, opEnd, op)
	}

	edited, options, end, ok, err := st.swapArgs(opEnd + 1)
	if err != nil || !ok {
		return nil, i, false, err
	}
	if containsSubstitute(target) || containsSubstitute(edited) {
		return nil, i, false, nil
	}

	cacs, err := NewCrossAttentionControlSubstitute(target, edited, options)
	if err != nil {
		return nil, i, false, st.errorAt(err, ErrorKindStructure, i, end, OpSwap, "")
	}
	return []Node{cacs}, end, true, nil
}

// swapArgs parses the replacement items and options after ".swap(".
func (st *state) swapArgs(i int) ([]Node, map[string]Value, int, bool, error) {
	src := st.src
	var edited []Node
	for {
		i = skipSpace(src, i)
		if i >= len(src) {
			return nil, nil, i, false, nil
		}
		if src[i] == ',' || src[i] == ')' {
			break
		}
		nodes, end, ok, err := st.replacementItem(i)
		if err != nil || !ok {
			return nil, nil, i, false, err
		}
		edited = append(edited, nodes...)
		i = end
	}

	options := make(map[string]Value)
	for src[i] == ',' {
		i = skipSpace(src, i+1)
		end, ok := st.swapOption(i, options)
		if !ok {
			return nil, nil, i, false, nil
		}
		i = skipSpace(src, end)
		if i >= len(src) {
			return nil, nil, i, false, nil
		}
	}
	if src[i] != ')' {
		return nil, nil, i, false, nil
	}
	return edited, options, i + 1, true, nil
}

func (st *state) replacementItem(i int) ([]Node, int, bool, error) {
	if n, end, ok, err := st.quoted(i); err != nil || ok {
		return n, end, ok, err
	}
	if n, end, ok, err := st.attention(i); err != nil || ok {
		return n, end, ok, err
	}
	if n, end, ok, err := st.group(i); err != nil || ok {
		return n, end, ok, err
	}
	if raw, end := scanWord(st.src, i, replacementStop); raw != "" {
		if dot, op, ok := trailingOperator(st.src, i, end); ok {
			return nil, i, false, st.replacementOperatorError(dot, end, op)
		}
		return []Node{NewFragment(raw, 1)}, end, true, nil
	}
	return nil, i, false, nil
}

// trailingOperator reports whether the word src[start:end] ends in an
// unescaped .name directly followed by '('.
func trailingOperator(src string, start, end int) (dot int, op string, ok bool) {
	if end >= len(src) || src[end] != '(' {
		return 0, "", false
	}
	j := end
	for j > start && (src[j-1] == '_' || isDigit(src[j-1]) ||
		(src[j-1] >= 'a' && src[j-1] <= 'z') || (src[j-1] >= 'A' && src[j-1] <= 'Z')) {
		j--
	}
	dot = j - 1
	if dot < start || src[dot] != '.' || (dot > start && src[dot-1] == '\\') {
		return 0, "", false
	}
	op, opEnd := scanIdent(src, j)
	if op == "" || opEnd != end {
		return 0, "", false
	}
	return dot, op, true
}

// replacementOperatorError rejects an operator call inside a .swap() replacement.
func (st *state) replacementOperatorError(dot, opEnd int, op string) error {
	switch op {
	case OpSwap, OpBlend, OpAnd:
		pe := st.errorAt(errors.ErrMisplacedOperator, ErrorKindOperator, dot, opEnd+1, op,
			fmt.Sprintf(".%s() cannot be used inside a .swap() replacement", op))
		return pe.WithSuggestion(`escape the dot as \. to keep it as text`)
	}
	return st.unrecognizedOperator(dot, opEnd, op)
}

func (st *state) unrecognizedOperator(dot, opEnd int, op string) error {
	pe := st.errorAt(errors.ErrUnrecognizedOperator, ErrorKindOperator, dot, opEnd+1, op,
		fmt.Sprintf("unrecognized operator .%s()", op))
	return pe.WithSuggestion("known operators are .swap(), .blend() and .and()").
		WithSuggestion(`escape the dot as \. to keep it as text`)
}

// swapOption parses key=number, key=ident, a bare flag or a bare number.
func (st *state) swapOption(i int, options map[string]Value) (int, bool) {
	src := st.src
	key, keyEnd := scanIdent(src, i)
	if key == "" {
		w, end, ok := scanNumber(src, i)
		if !ok {
			return i, false
		}
		options[OptionWeight] = FloatValue(w)
		return end, true
	}

	j := skipSpace(src, keyEnd)
	if j >= len(src) || src[j] != '=' {
		options[key] = BoolValue(true)
		return keyEnd, true
	}
	j = skipSpace(src, j+1)
	if v, end, ok := scanNumber(src, j); ok {
		options[key] = FloatValue(v)
		return end, true
	}
	ident, end := scanIdent(src, j)
	switch ident {
	case "":
		return i, false
	case "true", "false":
		options[key] = BoolValue(ident == "true")
	default:
		options[key] = StringValue(ident)
	}
	return end, true
}

// scanCombinator recognizes ("a", ...).blend( or .and( at i without parsing
// the terms. Once the call is recognized its arguments must be well formed.
func (st *state) scanCombinator(i int) (*combinator, error) {
	src := st.src
	if i >= len(src) || src[i] != '(' {
		return nil, nil
	}
	c := &combinator{start: i}

	j := i + 1
	for {
		j = skipSpace(src, j)
		content, end, ok := scanQuoted(src, j)
		if !ok {
			return nil, nil
		}
		c.terms = append(c.terms, content)
		c.termOffsets = append(c.termOffsets, j+1)
		j = skipSpace(src, end)
		if j >= len(src) {
			return nil, nil
		}
		if src[j] == ')' {
			j++
			break
		}
		if src[j] != ',' {
			return nil, nil
		}
		j++
	}

	if j >= len(src) || src[j] != '.' {
		return nil, nil
	}
	op, opEnd := scanIdent(src, j+1)
	if (op != OpBlend && op != OpAnd) || opEnd >= len(src) || src[opEnd] != '(' {
		return nil, nil
	}
	c.op = op

	end, err := st.combinatorArgs(c, opEnd+1)
	if err != nil {
		return nil, err
	}
	c.end = end
	return c, nil
}

func (st *state) combinatorArgs(c *combinator, i int) (int, error) {
	src := st.src
	malformed := func(at int, msg string) error {
		end := at + 1
		if end > len(src) {
			end = len(src)
		}
		return st.errorAt(errors.Wrapf(errors.ErrParse, "malformed .%s() arguments", c.op),
			ErrorKindSyntax, c.start, end, c.op, msg).
			WithSuggestion(fmt.Sprintf(`("a", "b").%s(0.7, 0.3)`, c.op))
	}

	i = skipSpace(src, i)
	if i < len(src) && src[i] == ')' {
		return i + 1, nil
	}
	for {
		if i >= len(src) {
			return 0, malformed(i, fmt.Sprintf("unterminated .%s(", c.op))
		}
		if w, end, ok := scanNumber(src, i); ok && !c.noNormalize {
			c.weights = append(c.weights, w)
			i = end
		} else if ident, end := scanIdent(src, i); ident == noNormalizeFlag && c.op == OpBlend && !c.noNormalize {
			c.noNormalize = true
			i = end
		} else {
			_, end := scanWord(src, i, replacementStop)
			return 0, malformed(end, fmt.Sprintf("unexpected %q in .%s() arguments", src[i:max(end, i+1)], c.op))
		}

		i = skipSpace(src, i)
		if i >= len(src) {
			return 0, malformed(i, fmt.Sprintf("unterminated .%s(", c.op))
		}
		switch src[i] {
		case ')':
			return i + 1, nil
		case ',':
			i = skipSpace(src, i+1)
		default:
			return 0, malformed(i, fmt.Sprintf("expected ',' or ')' in .%s() arguments", c.op))
		}
	}
}

// buildCombinator parses every term as a prompt and builds the Blend or the conjunction parts.
func (st *state) buildCombinator(c *combinator) ([]Node, []float64, error) {
	switch {
	case c.op == OpBlend && len(c.weights) != len(c.terms):
		err := errors.Wrapf(errors.ErrMismatchedCounts, "%d prompts but %d weights", len(c.terms), len(c.weights))
		return nil, nil, st.errorAt(err, ErrorKindStructure, c.start, c.end, c.op, "").
			WithSuggestion("give one weight per quoted prompt")
	case c.op == OpAnd && len(c.weights) != 0 && len(c.weights) != len(c.terms):
		err := errors.Wrapf(errors.ErrMismatchedCounts, "%d prompts but %d weights", len(c.terms), len(c.weights))
		return nil, nil, st.errorAt(err, ErrorKindStructure, c.start, c.end, c.op, "").
			WithSuggestion("give one weight per quoted prompt, or none")
	}

	prompts := make([]Node, len(c.terms))
	for k, raw := range c.terms {
		text := unescapeQuotes(raw)
		if isBlank(text) {
			prompts[k] = &Prompt{Children: []Node{&Fragment{Text: "", Weight: 1}}}
			continue
		}
		nodes, _, err := st.sub(text, c.termOffsets[k]).items(0, false, false)
		if err != nil {
			return nil, nil, err
		}
		prompts[k] = &Prompt{Children: nodes}
	}

	if c.op == OpAnd {
		weights := c.weights
		if len(weights) == 0 {
			weights = make([]float64, len(prompts))
			for k := range weights {
				weights[k] = 1
			}
		}
		return prompts, weights, nil
	}

	blend, err := NewBlend(prompts, c.weights, !c.noNormalize)
	if err != nil {
		return nil, nil, st.errorAt(err, ErrorKindStructure, c.start, c.end, c.op, "")
	}
	return []Node{blend}, []float64{1}, nil
}
