// Package schemagen exports a JSON Schema describing bootspec documents.
package schemagen

import (
	"fmt"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/osbuild/bootspec/pkg/bootspec"
)

const (
	generationV1Def = "GenerationV1"
	schemaID        = "https://github.com/osbuild/bootspec/schema/boot.json"
)

// fields that default to an empty map when absent
var optionalMaps = []string{"specialisation", "extensions"}

// Generate returns the schema of the current bootspec document.
//
// Records accept additional properties since decoding ignores unknown
// fields; the document itself only accepts known version tags.
func Generate() (*jsonschema.Schema, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	reflected := r.Reflect(&bootspec.GenerationV1{})

	def, ok := reflected.Definitions[generationV1Def]
	if !ok {
		return nil, fmt.Errorf("reflected schema has no %s definition", generationV1Def)
	}
	def.Required = slices.DeleteFunc(def.Required, func(field string) bool {
		return slices.Contains(optionalMaps, field)
	})
	def.Description = fmt.Sprintf("Generation record of bootspec schema version %d.", bootspec.SchemaVersionV1)

	properties := jsonschema.NewProperties()
	properties.Set("v1", &jsonschema.Schema{Ref: "#/$defs/" + generationV1Def})

	return &jsonschema.Schema{
		Version:              jsonschema.Version,
		ID:                   schemaID,
		Title:                "bootspec",
		Description:          "A boot specification document, keyed by its schema version.",
		Type:                 "object",
		Properties:           properties,
		Required:             []string{"v1"},
		AdditionalProperties: jsonschema.FalseSchema,
		Definitions:          reflected.Definitions,
	}, nil
}
