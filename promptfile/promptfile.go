// Package promptfile reads prompt documents: a prompt body with optional YAML
// (---) or TOML (+++) frontmatter carrying parser settings and a negative prompt.
package promptfile

import (
	"math"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/prompt"
)

// Frontmatter delimiters
const (
	yamlDelimiter = "---"
	tomlDelimiter = "+++"
)

// Format names the frontmatter syntax of a document
type Format string

const (
	FormatNone Format = ""
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Document represents a prompt with frontmatter metadata and body
type Document struct {
	Format   Format
	Metadata Metadata
	Body     string
}

// Metadata holds settings from the frontmatter
type Metadata struct {
	// Name is the prompt identifier
	Name string `yaml:"name" toml:"name"`

	// Description explains what the prompt is for
	Description string `yaml:"description" toml:"description"`

	// Negative is appended to the bracketed negative prompt of the body
	Negative string `yaml:"negative,omitempty" toml:"negative"`

	// AttentionPlusBase overrides the per '+' multiplier
	AttentionPlusBase *float64 `yaml:"attention_plus_base,omitempty" toml:"attention_plus_base"`

	// AttentionMinusBase overrides the per '-' multiplier
	AttentionMinusBase *float64 `yaml:"attention_minus_base,omitempty" toml:"attention_minus_base"`

	// LegacyBlend overrides parser.legacy_blend
	LegacyBlend *bool `yaml:"legacy_blend,omitempty" toml:"legacy_blend"`

	Tags []string `yaml:"tags,omitempty" toml:"tags"`
}

// Parse extracts frontmatter and body from a prompt document
// Expected format:
//
//	---
//	name: "portrait"
//	attention_plus_base: 1.2
//	---
//	a ++(red) hat on a cat
//
// TOML frontmatter uses +++ delimiters instead.
func Parse(content string) (*Document, error) {
	format, front, body, ok := split(content)
	if !ok {
		return &Document{Body: strings.TrimSpace(content)}, nil
	}

	doc := &Document{Format: format, Body: strings.TrimSpace(body)}
	if strings.TrimSpace(front) != "" {
		var err error
		switch format {
		case FormatYAML:
			err = yaml.Unmarshal([]byte(front), &doc.Metadata)
		case FormatTOML:
			_, err = toml.Decode(front, &doc.Metadata)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse %s frontmatter", format)
		}
	}

	if err := validateMetadata(&doc.Metadata); err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}
	return doc, nil
}

// ParseFile reads and parses a prompt document from disk
func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read prompt file %s", path)
	}
	doc, err := Parse(string(data))
	if err != nil {
		return nil, errors.Wrapf(err, "prompt file %s", path)
	}
	return doc, nil
}

// split finds a frontmatter block opened by a delimiter on the first line and
// closed by the same delimiter on a line of its own.
func split(content string) (Format, string, string, bool) {
	content = strings.TrimPrefix(content, "\ufeff")
	firstLine, rest, found := strings.Cut(content, "\n")
	if !found {
		return FormatNone, "", "", false
	}

	var format Format
	delim := strings.TrimSpace(firstLine)
	switch delim {
	case yamlDelimiter:
		format = FormatYAML
	case tomlDelimiter:
		format = FormatTOML
	default:
		return FormatNone, "", "", false
	}

	lines := strings.SplitAfter(rest, "\n")
	offset := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == delim {
			return format, rest[:offset], rest[offset+len(line):], true
		}
		offset += len(line)
	}
	return FormatNone, "", "", false
}

// validateMetadata checks that overridden bases can drive the grammar
func validateMetadata(m *Metadata) error {
	if m.AttentionPlusBase != nil && !validBase(*m.AttentionPlusBase) {
		return errors.Newf("attention_plus_base must be > 0, got %v", *m.AttentionPlusBase)
	}
	if m.AttentionMinusBase != nil && !validBase(*m.AttentionMinusBase) {
		return errors.Newf("attention_minus_base must be > 0, got %v", *m.AttentionMinusBase)
	}
	return nil
}

func validBase(f float64) bool {
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}

// Parser returns base with the document's attention bases applied, or base
// itself when the document overrides neither.
func (d *Document) Parser(base *prompt.Parser) (*prompt.Parser, error) {
	if d.Metadata.AttentionPlusBase == nil && d.Metadata.AttentionMinusBase == nil {
		return base, nil
	}
	plus, minus := base.PlusBase(), base.MinusBase()
	if d.Metadata.AttentionPlusBase != nil {
		plus = *d.Metadata.AttentionPlusBase
	}
	if d.Metadata.AttentionMinusBase != nil {
		minus = *d.Metadata.AttentionMinusBase
	}
	return prompt.NewParser(plus, minus)
}

// LegacyBlend returns the document override, or fallback if not set
func (d *Document) LegacyBlend(fallback bool) bool {
	if d.Metadata.LegacyBlend != nil {
		return *d.Metadata.LegacyBlend
	}
	return fallback
}

// PromptText returns the body with the metadata negative prompt appended in brackets
func (d *Document) PromptText() string {
	if strings.TrimSpace(d.Metadata.Negative) == "" {
		return d.Body
	}
	return d.Body + " [" + d.Metadata.Negative + "]"
}
