package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/teranos/promptc/am"
	"github.com/teranos/promptc/errors"
	"gopkg.in/yaml.v3"
)

// writeStructured writes v as indented JSON or YAML
func writeStructured(w io.Writer, format string, v interface{}) error {
	switch format {
	case am.FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal JSON")
		}
		_, err = fmt.Fprintln(w, string(data))
		return err

	case am.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return errors.Wrap(err, "failed to marshal YAML")
		}
		return enc.Close()

	default:
		return errors.Newf("unsupported format: %s (supported: text, json, yaml)", format)
	}
}

// checkFormat validates an --format value
func checkFormat(format string) error {
	switch format {
	case am.FormatText, am.FormatJSON, am.FormatYAML:
		return nil
	}
	return errors.WithHint(
		errors.Newf("unsupported format: %s", format),
		"use text, json or yaml")
}
