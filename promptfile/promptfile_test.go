package promptfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/promptc/prompt"
)

func floatPtr(f float64) *float64 { return &f }
func boolPtr(b bool) *bool        { return &b }

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantFormat Format
		wantMeta   Metadata
		wantBody   string
		wantErr    bool
	}{
		{
			name: "yaml frontmatter",
			input: `---
name: "portrait"
description: "studio portrait"
negative: "blurry"
attention_plus_base: 1.2
legacy_blend: false
tags: [people, studio]
---
a ++(red) hat on a cat
`,
			wantFormat: FormatYAML,
			wantMeta: Metadata{
				Name:              "portrait",
				Description:       "studio portrait",
				Negative:          "blurry",
				AttentionPlusBase: floatPtr(1.2),
				LegacyBlend:       boolPtr(false),
				Tags:              []string{"people", "studio"},
			},
			wantBody: "a ++(red) hat on a cat",
		},
		{
			name: "toml frontmatter",
			input: `+++
name = "landscape"
attention_minus_base = 0.8
tags = ["outdoor"]
+++
mountains at dawn`,
			wantFormat: FormatTOML,
			wantMeta: Metadata{
				Name:               "landscape",
				AttentionMinusBase: floatPtr(0.8),
				Tags:               []string{"outdoor"},
			},
			wantBody: "mountains at dawn",
		},
		{
			name:     "no frontmatter",
			input:    "just a prompt\n",
			wantBody: "just a prompt",
		},
		{
			name:       "empty frontmatter",
			input:      "---\n---\nbody after empty frontmatter",
			wantFormat: FormatYAML,
			wantBody:   "body after empty frontmatter",
		},
		{
			name:     "unclosed frontmatter is body",
			input:    "---\nname: x\nstill body",
			wantBody: "---\nname: x\nstill body",
		},
		{
			name:       "delimiter inside body is kept",
			input:      "---\nname: x\n---\nfirst --- second",
			wantFormat: FormatYAML,
			wantMeta:   Metadata{Name: "x"},
			wantBody:   "first --- second",
		},
		{
			name:    "invalid plus base",
			input:   "---\nattention_plus_base: 0\n---\nbody",
			wantErr: true,
		},
		{
			name:    "malformed toml",
			input:   "+++\nname = \n+++\nbody",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, doc.Format)
			assert.Equal(t, tt.wantMeta, doc.Metadata)
			assert.Equal(t, tt.wantBody, doc.Body)
		})
	}
}

func TestDocumentParser(t *testing.T) {
	base := prompt.DefaultParser()

	doc := &Document{}
	p, err := doc.Parser(base)
	require.NoError(t, err)
	assert.Same(t, base, p)

	doc.Metadata.AttentionPlusBase = floatPtr(2)
	p, err = doc.Parser(base)
	require.NoError(t, err)
	assert.Equal(t, 2.0, p.PlusBase())
	assert.Equal(t, base.MinusBase(), p.MinusBase())

	c, err := p.ParseConjunction("+a")
	require.NoError(t, err)
	assert.Equal(t, 2.0, c.Parts[0].(*prompt.FlattenedPrompt).Fragments()[0].Weight)
}

func TestDocumentAccessors(t *testing.T) {
	doc := &Document{Body: "a cat", Metadata: Metadata{Negative: "blurry"}}
	assert.Equal(t, "a cat [blurry]", doc.PromptText())
	assert.True(t, doc.LegacyBlend(true))

	doc.Metadata.LegacyBlend = boolPtr(false)
	assert.False(t, doc.LegacyBlend(true))

	doc.Metadata.Negative = "  "
	assert.Equal(t, "a cat", doc.PromptText())
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cat.prompt")
	require.NoError(t, os.WriteFile(path, []byte("---\nname: cat\n---\na cat"), 0644))

	doc, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "cat", doc.Metadata.Name)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.prompt"))
	assert.Error(t, err)
}
