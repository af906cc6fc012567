package conditioning

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/promptc/logger"
)

// tokenColors alternate so adjacent tokens stay distinguishable.
var tokenColors = []pterm.Color{
	pterm.FgRed,
	pterm.FgGreen,
	pterm.FgYellow,
	pterm.FgBlue,
	pterm.FgMagenta,
	pterm.FgCyan,
}

// DisplayToken replaces the end-of-word marker with a space.
func DisplayToken(t string) string {
	return strings.ReplaceAll(t, EndOfWord, " ")
}

// LogTokenization writes the colour-coded original token sequence to w,
// followed by any tokens past the budget.
func LogTokenization(w io.Writer, l *Layout, weight float64) {
	fmt.Fprintf(w, "\n>> Tokens (%d), Weight (%.2f):\n%s\n", len(l.Original), weight, colorize(l.Original, 0))
	if len(l.Discarded) > 0 {
		fmt.Fprintf(w, ">> Tokens Discarded (%d):\n%s\n", len(l.Discarded), colorize(l.Discarded, len(l.Original)))
	}
	if l.HasSubstitutes() {
		fmt.Fprintf(w, ">> Edited Tokens (%d):\n%s\n", len(l.Edited), colorize(l.Edited, 0))
	}

	logger.Debugw("Prompt tokenized",
		logger.FieldTokenCount, len(l.Original),
		"discarded", len(l.Discarded),
		logger.FieldFragmentCount, len(l.Fragments))
	if len(l.Discarded) > 0 {
		logger.Warnw("Prompt exceeds token budget, trailing tokens discarded",
			logger.FieldTokenCount, l.originalFull,
			"max_tokens", l.MaxTokens,
			"discarded", len(l.Discarded))
	}
}

func colorize(tokens []Token, offset int) string {
	var b strings.Builder
	for i, t := range tokens {
		color := tokenColors[(offset+i)%len(tokenColors)]
		b.WriteString(color.Sprint(DisplayToken(t.Text)))
	}
	return b.String()
}
