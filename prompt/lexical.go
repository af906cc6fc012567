package prompt

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// syntacticChars may appear literally in fragment text only when escaped with a backslash.
const syntacticChars = `()",.+-=`

func isSyntactic(r rune) bool {
	return r < utf8.RuneSelf && strings.IndexByte(syntacticChars, byte(r)) >= 0
}

// wordStop decides which characters end a word run.
type wordStop func(r rune) bool

var (
	// restricted words stop at any syntactic character
	restrictedStop wordStop = isSyntactic
	// replacement words inside .swap() may contain '.', '+', '-' and '='
	replacementStop wordStop = func(r rune) bool {
		return r == ',' || r == '(' || r == ')' || r == '"'
	}
	// fallback words only stop at grouping characters
	fallbackStop wordStop = func(r rune) bool {
		return r == '(' || r == ')' || r == '"'
	}
	// outside any group a ')' cannot close anything and stays in the word
	topFallbackStop wordStop = func(r rune) bool {
		return r == '(' || r == '"'
	}
)

// Escape backslash-escapes every syntactic character in s.
func Escape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isSyntactic(r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Unescape resolves \X sequences where X is a syntactic character.
// Any other backslash is kept as-is.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && isSyntactic(rune(s[i+1])) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// unescapeQuotes resolves only \" which is the in-string escape of quoted blend terms.
func unescapeQuotes(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}

func runeAt(s string, i int) rune {
	r, _ := utf8.DecodeRuneInString(s[i:])
	return r
}

func skipSpace(s string, i int) int {
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	return i
}

func isSpaceAt(s string, i int) bool {
	return i < len(s) && unicode.IsSpace(runeAt(s, i))
}

// isBlank reports whether s is empty or whitespace only.
func isBlank(s string) bool {
	return skipSpace(s, 0) == len(s)
}

// scanWord consumes escapes and characters not matched by stop or whitespace.
// It returns the raw (still escaped) text and the end offset.
func scanWord(s string, i int, stop wordStop) (string, int) {
	start := i
	for i < len(s) {
		if s[i] == '\\' && i+1 < len(s) && isSyntactic(rune(s[i+1])) {
			i += 2
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) || stop(r) {
			break
		}
		i += size
	}
	return s[start:i], i
}

// scanNumber recognizes [+-]?(digits[.digits] | .digits). A trailing dot is
// part of the number only when a '(' follows, as in 5.(a).
func scanNumber(s string, i int) (float64, int, bool) {
	start := i
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := scanDigits(s, i)
	i += digits
	if i+1 < len(s) && s[i] == '.' && isDigit(s[i+1]) {
		i += 1 + scanDigits(s, i+1)
	} else if digits > 0 && i+1 < len(s) && s[i] == '.' && s[i+1] == '(' {
		i++
	} else if digits == 0 {
		return 0, start, false
	}
	v, err := strconv.ParseFloat(s[start:i], 64)
	if err != nil {
		return 0, start, false
	}
	return v, i, true
}

func scanDigits(s string, i int) int {
	n := 0
	for i+n < len(s) && isDigit(s[i+n]) {
		n++
	}
	return n
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// scanIdent recognizes [A-Za-z_][A-Za-z0-9_]*.
func scanIdent(s string, i int) (string, int) {
	start := i
	for i < len(s) {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (i > start && isDigit(c)) {
			i++
			continue
		}
		break
	}
	return s[start:i], i
}

// scanQuoted finds the closing quote of a string opened at s[i] == '"'.
// Only \" is an escape inside quotes. It returns the raw content and the offset after the closing quote.
func scanQuoted(s string, i int) (string, int, bool) {
	if i >= len(s) || s[i] != '"' {
		return "", i, false
	}
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			if j+1 < len(s) && s[j+1] == '"' {
				j++
			}
		case '"':
			return s[i+1 : j], j + 1, true
		}
	}
	return "", i, false
}
