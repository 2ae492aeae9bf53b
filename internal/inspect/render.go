// Package inspect renders bootspec documents for people and scripts.
package inspect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/osbuild/bootspec/pkg/bootspec"
)

// Format selects how a document is rendered.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
)

var formats = []Format{FormatTable, FormatJSON, FormatYAML, FormatTOML}

// ParseFormat returns the Format called name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(name))
	if !slices.Contains(formats, f) {
		return "", fmt.Errorf("unknown output format %q, expected one of %v", name, formats)
	}
	return f, nil
}

// Render writes g to w in the given format.
func Render(w io.Writer, g bootspec.Generation, format Format) error {
	switch format {
	case FormatTable:
		return renderTable(w, g)
	case FormatJSON:
		data, err := bootspec.MarshalIndent(g, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		doc, err := genericDocument(g)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		doc, err := genericDocument(g)
		if err != nil {
			return err
		}
		return toml.NewEncoder(w).Encode(doc)
	}
	return fmt.Errorf("unknown output format %q", format)
}

func renderTable(w io.Writer, g bootspec.Generation) error {
	switch g := g.(type) {
	case *bootspec.GenerationV1:
		tw := table.NewWriter()
		tw.SetOutputMirror(w)
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Field", "Value"})
		appendGenerationV1(tw, "", g)
		tw.Render()
		return nil
	default:
		return fmt.Errorf("unsupported bootspec version %d", g.Version())
	}
}

func appendGenerationV1(tw table.Writer, prefix string, g *bootspec.GenerationV1) {
	if prefix == "" {
		tw.AppendRow(table.Row{"version", g.Version()})
	}
	tw.AppendRows([]table.Row{
		{prefix + "label", g.Label},
		{prefix + "system", g.System},
		{prefix + "toplevel", g.Toplevel},
		{prefix + "init", g.Init},
		{prefix + "kernel", g.Kernel},
		{prefix + "kernelParams", strings.Join(g.KernelParams, " ")},
		{prefix + "initrd", optional(g.Initrd)},
		{prefix + "initrdSecrets", optional(g.InitrdSecrets)},
		{prefix + "extensions", strings.Join(slices.Sorted(maps.Keys(g.Extensions)), ", ")},
	})
	for _, name := range slices.Sorted(maps.Keys(g.Specialisation)) {
		sub := g.Specialisation[name]
		tw.AppendSeparator()
		appendGenerationV1(tw, "specialisation."+string(name)+".", &sub)
	}
}

func optional(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

// genericDocument converts g into plain maps, slices and scalars that any
// encoder understands. Integers stay integers.
func genericDocument(g bootspec.Generation) (any, error) {
	data, err := bootspec.Marshal(g)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return normalizeNumbers(doc), nil
}

func normalizeNumbers(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		for key, value := range v {
			v[key] = normalizeNumbers(value)
		}
	case []any:
		for i, value := range v {
			v[i] = normalizeNumbers(value)
		}
	}
	return v
}
