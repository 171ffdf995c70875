// Package format writes command results as json, edn or yaml.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Formats lists the accepted --format values; the first is the default.
var Formats = []string{"json", "edn", "yaml"}

// Validate reports whether name is an accepted output format.
func Validate(name string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json", "edn", "yaml", "yml":
		return nil
	}
	return fmt.Errorf("unknown format: %s (want one of %s)", name, strings.Join(Formats, ", "))
}

// Write writes v in the requested format. Every format uses v's json field names.
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "edn":
		return WriteEDN(w, v, pretty)
	case "yaml", "yml":
		return WriteYAML(w, v)
	default:
		return Validate(format)
	}
}

// WriteJSON writes strict JSON followed by a newline.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteYAML writes a YAML document. Output is always block style.
func WriteYAML(w io.Writer, v any) error {
	x, err := generic(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(x); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// generic round-trips v through JSON so that struct tags decide the field names. Numbers
// stay json.Number to keep integers exact.
func generic(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return nil, err
	}
	return numbersToScalars(x), nil
}

func numbersToScalars(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []any:
		for i := range t {
			t[i] = numbersToScalars(t[i])
		}
		return t
	case map[string]any:
		for k := range t {
			t[k] = numbersToScalars(t[k])
		}
		return t
	}
	return v
}
