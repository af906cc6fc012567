package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/prompt"
)

// isolate points every config layer at empty temp directories
func isolate(t *testing.T) (home, project string) {
	t.Helper()
	am.Reset()
	t.Cleanup(am.Reset)

	home = t.TempDir()
	project = t.TempDir()
	t.Setenv("HOME", home)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(project))
	t.Cleanup(func() { os.Chdir(wd) })

	prev := am.SystemConfigPath
	am.SystemConfigPath = filepath.Join(t.TempDir(), am.ConfigFileName)
	t.Cleanup(func() { am.SystemConfigPath = prev })

	pterm.DisableColor()
	t.Cleanup(pterm.EnableColor)
	return home, project
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestParseText(t *testing.T) {
	isolate(t)
	out, err := run(t, "", "parse", "a ++(red) cat [blurry]")
	require.NoError(t, err)

	assert.Contains(t, out, "positive: Conjunction:")
	assert.Contains(t, out, `Fragment:"red"@`)
	assert.Contains(t, out, `negative: Conjunction:[FlattenedPrompt:[Fragment:"blurry"@`)
}

func TestParseJSON(t *testing.T) {
	isolate(t)
	out, err := run(t, "", "parse", "--format", "json", "a", "++(red)", "cat", "[blurry]")
	require.NoError(t, err)

	var got parseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, "a ++(red) cat ", got.PositiveText)
	assert.Equal(t, "blurry", got.NegativeText)
	assert.Equal(t, prompt.KindConjunction, got.Positive.Kind)
	fp := got.Positive.Children[0]
	require.Len(t, fp.Children, 3)
	assert.InDelta(t, 1.21, *fp.Children[1].Weight, 1e-9)
	assert.Empty(t, got.Tokens)
}

func TestParseTreeYAML(t *testing.T) {
	isolate(t)
	out, err := run(t, "", "parse", "--tree", "--format", "yaml", "a (cat).swap(dog)")
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &got), out)
	positive := got["positive"].(map[string]interface{})
	children := positive["children"].([]interface{})
	require.Len(t, children, 1)
	assert.Equal(t, string(prompt.KindPrompt), children[0].(map[string]interface{})["kind"])
}

func TestParseTokens(t *testing.T) {
	isolate(t)
	out, err := run(t, "", "parse", "--tokens", "a ++(red) cat")
	require.NoError(t, err)

	assert.Contains(t, out, ">> Tokens (3), Weight (1.00):")
	assert.Contains(t, out, "a red cat")
}

func TestParseTokensJSON(t *testing.T) {
	_, project := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(project, am.ConfigFileName),
		[]byte("[tokens]\nmax_length = 4\n"), 0644))

	out, err := run(t, "", "parse", "--tokens", "--format", "json", "one two three four")
	require.NoError(t, err)

	var got parseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	require.Len(t, got.Tokens, 1)
	assert.Len(t, got.Tokens[0].Original, 2)
	assert.Len(t, got.Tokens[0].Discarded, 2)
}

func TestParseStdin(t *testing.T) {
	isolate(t)
	out, err := run(t, "a cat:1 a dog:1\n", "parse", "--format", "json")
	require.NoError(t, err)

	var got parseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, prompt.KindBlend, got.Positive.Children[0].Kind)
}

func TestParseFile(t *testing.T) {
	_, project := isolate(t)
	path := filepath.Join(project, "portrait.md")
	require.NoError(t, os.WriteFile(path, []byte(`---
name: portrait
negative: blurry
attention_plus_base: 2
---
a +cat
`), 0644))

	out, err := run(t, "", "parse", "--file", path, "--format", "json")
	require.NoError(t, err)

	var got parseOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, "portrait", got.Name)
	assert.Equal(t, "blurry", got.NegativeText)
	fp := got.Positive.Children[0]
	require.Len(t, fp.Children, 2)
	assert.Equal(t, 2.0, *fp.Children[1].Weight)
}

func TestParseFileAndArgs(t *testing.T) {
	isolate(t)
	_, err := run(t, "", "parse", "--file", "x.md", "a cat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestParseError(t *testing.T) {
	isolate(t)
	_, err := run(t, "", "parse", `("a", "b").blend(1)`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMismatchedCounts))

	var buf bytes.Buffer
	PrintError(&buf, err)
	assert.Contains(t, buf.String(), "Suggestions:")
	assert.Contains(t, buf.String(), "give one weight per quoted prompt")
}

func TestParseBadFormat(t *testing.T) {
	isolate(t)
	_, err := run(t, "", "parse", "--format", "xml", "a cat")
	require.Error(t, err)

	var buf bytes.Buffer
	PrintError(&buf, err)
	assert.Contains(t, buf.String(), "unsupported format: xml")
	assert.Contains(t, buf.String(), "use text, json or yaml")
}

func TestLegacy(t *testing.T) {
	isolate(t)

	out, err := run(t, "", "legacy", "a cat:3 a dog:1")
	require.NoError(t, err)
	assert.Contains(t, out, "Blend:")

	out, err = run(t, "", "legacy", "a cat")
	require.NoError(t, err)
	assert.Equal(t, "not a legacy blend\n", out)

	out, err = run(t, "", "legacy", "--format", "json", "a cat:3 a dog:1")
	require.NoError(t, err)
	var got legacyOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Applicable)
	assert.Equal(t, []float64{0.75, 0.25}, got.Blend.Weights)
}

func TestReplArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{`a ++(red) cat`, []string{"parse", "--", "a ++(red) cat"}},
		{`-cat`, []string{"parse", "--", "-cat"}},
		{`("a", "b").blend(1, 1)`, []string{"parse", "--", `("a", "b").blend(1, 1)`}},
		{`legacy "a cat:1 a dog:2"`, []string{"legacy", "a cat:1 a dog:2"}},
		{`parse --format json 'a cat'`, []string{"parse", "--format", "json", "a cat"}},
		{`repl`, []string{"parse", "--", "repl"}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := replArgs(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := replArgs(`legacy "unterminated`)
	require.Error(t, err)
}

func TestRepl(t *testing.T) {
	isolate(t)
	in := strings.Join([]string{
		"a ++(red) cat",
		"",
		`legacy "a cat:1 a dog:1"`,
		`("a").blend(1, 2)`,
		"exit",
		"never reached",
	}, "\n")

	var out, errOut bytes.Buffer
	require.NoError(t, runRepl(strings.NewReader(in), &out, &errOut))

	assert.Contains(t, out.String(), `Fragment:"red"@`)
	assert.Contains(t, out.String(), "Blend:")
	assert.NotContains(t, out.String(), "never reached")
	assert.Contains(t, errOut.String(), "mismatched")
}

func TestAmSetGetShow(t *testing.T) {
	home, _ := isolate(t)
	userPath := filepath.Join(home, ".promptc", am.ConfigFileName)

	out, err := run(t, "", "am", "set", "parser.attention_plus_base", "1.3")
	require.NoError(t, err)
	assert.Contains(t, out, userPath)

	am.Reset()
	out, err = run(t, "", "am", "get", "parser.attention_plus_base")
	require.NoError(t, err)
	assert.Equal(t, "1.3\n", out)

	out, err = run(t, "", "am", "show", "--format", "json")
	require.NoError(t, err)
	var settings map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &settings), out)
	assert.Equal(t, 1.3, settings["parser"]["attention_plus_base"])

	_, err = run(t, "", "am", "set", "parser.nonsense", "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))

	_, err = run(t, "", "am", "get", "parser.nonsense")
	require.Error(t, err)
}

func TestAmValidate(t *testing.T) {
	_, project := isolate(t)

	out, err := run(t, "", "am", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration is valid")

	am.Reset()
	require.NoError(t, os.WriteFile(filepath.Join(project, am.ConfigFileName),
		[]byte("[parser]\nattention_minus_base = -1\n"), 0644))
	_, err = run(t, "", "am", "validate")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestAmWhere(t *testing.T) {
	_, project := isolate(t)
	projectPath := filepath.Join(project, am.ConfigFileName)
	require.NoError(t, os.WriteFile(projectPath, []byte("[tokens]\nmax_length = 100\n"), 0644))

	out, err := run(t, "", "am", "where")
	require.NoError(t, err)
	assert.Contains(t, out, "[PROJECT]")
	assert.Contains(t, out, "(found)")
	assert.Contains(t, out, "tokens.max_length = 100")
	assert.Contains(t, out, "parser.attention_plus_base = 1.1")
}

func TestVersion(t *testing.T) {
	isolate(t)
	out, err := run(t, "", "version", "--json")
	require.NoError(t, err)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Contains(t, info, "commit_hash")
	assert.Contains(t, info, "go_version")
}
