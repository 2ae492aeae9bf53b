package bootspec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"unicode/utf8"
)

const versionTagV1 = "v1"

// GenerationV1 describes how to boot one generation, schema version 1.
//
// The json tags document the wire names; encoding and decoding go through
// MarshalJSON and UnmarshalJSON.
type GenerationV1 struct {
	// System is the platform the generation was built for, e.g.
	// "x86_64-linux".
	System string `json:"system"`
	// Init is the path to the init program.
	Init string `json:"init"`
	// Initrd is the path to the initrd, nil if the generation has none.
	Initrd *string `json:"initrd,omitempty"`
	// InitrdSecrets is the path to a program appending secrets to the
	// initrd, nil if there is none.
	InitrdSecrets *string `json:"initrdSecrets,omitempty"`
	// Kernel is the path to the kernel image.
	Kernel string `json:"kernel"`
	// KernelParams are passed to the kernel in order.
	KernelParams []string `json:"kernelParams"`
	// Label is a human readable name of the generation.
	Label string `json:"label"`
	// Toplevel is the root of the realized system configuration.
	Toplevel SystemConfigurationRoot `json:"toplevel"`
	// Specialisation holds named variants of this generation.
	Specialisation map[SpecialisationName]GenerationV1 `json:"specialisation"`
	// Extensions holds vendor data keyed by a namespaced name such as
	// "org.example.tool".
	Extensions Extensions `json:"extensions"`
}

// Version returns SchemaVersionV1.
func (GenerationV1) Version() int {
	return SchemaVersionV1
}

func (*GenerationV1) isGeneration() {}

var generationV1Fields = []string{
	"system",
	"init",
	"initrd",
	"initrdSecrets",
	"kernel",
	"kernelParams",
	"label",
	"toplevel",
	"specialisation",
	"extensions",
}

// MarshalJSON encodes the record without a version tag. Nil collections are
// written as empty ones so the output always decodes again.
func (g GenerationV1) MarshalJSON() ([]byte, error) {
	// plain has no methods, which keeps json.Marshal from recursing here
	type plain GenerationV1
	out := plain(g)
	if out.KernelParams == nil {
		out.KernelParams = []string{}
	}
	if out.Specialisation == nil {
		out.Specialisation = map[SpecialisationName]GenerationV1{}
	}
	if out.Extensions == nil {
		out.Extensions = Extensions{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a record without a version tag, see Unmarshal for
// decoding a whole document.
func (g *GenerationV1) UnmarshalJSON(data []byte) error {
	decoded, err := decodeGenerationV1(data, "", decodeOptions{})
	if err != nil {
		return err
	}
	*g = *decoded
	return nil
}

// Equal reports whether both records hold the same data. Nil and empty
// collections are equal, extension payloads are compared as JSON values.
func (g GenerationV1) Equal(other GenerationV1) bool {
	if g.System != other.System ||
		g.Init != other.Init ||
		g.Kernel != other.Kernel ||
		g.Label != other.Label ||
		g.Toplevel != other.Toplevel {
		return false
	}
	if !equalOptional(g.Initrd, other.Initrd) || !equalOptional(g.InitrdSecrets, other.InitrdSecrets) {
		return false
	}
	if !slices.Equal(g.KernelParams, other.KernelParams) {
		return false
	}
	if !maps.EqualFunc(g.Specialisation, other.Specialisation, GenerationV1.Equal) {
		return false
	}
	return maps.EqualFunc(g.Extensions, other.Extensions, Extension.Equal)
}

// Validate checks that the required string fields of the record and its
// specialisations are set. Decoding does not call it: an empty string is a
// well-formed value.
func (g GenerationV1) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"system", g.System},
		{"init", g.Init},
		{"kernel", g.Kernel},
		{"label", g.Label},
		{"toplevel", string(g.Toplevel)},
	}
	for _, field := range required {
		if field.value == "" {
			return &MissingFieldError{Field: field.name}
		}
	}

	names := slices.Sorted(maps.Keys(g.Specialisation))
	for _, name := range names {
		if err := g.Specialisation[name].Validate(); err != nil {
			return fmt.Errorf("specialisation %q: %w", name, err)
		}
	}
	return nil
}

// Extension re-types the extension called name into target, which must be
// a non-nil pointer. See Extension.Retype.
func (g GenerationV1) Extension(name string, target any) error {
	ext, ok := g.Extensions[name]
	if !ok {
		return &ExtensionError{Name: name, Err: ErrExtensionNotFound}
	}
	if err := ext.retype(target); err != nil {
		return &ExtensionError{Name: name, Err: err}
	}
	return nil
}

func equalOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// decodeGenerationV1 decodes one record. path is the dotted location of the
// record inside the document, empty for the top-level record.
//
// Present fields are decoded before missing required fields are reported,
// so a malformed value is the error a caller sees first.
func decodeGenerationV1(data []byte, path string, opts decodeOptions) (*GenerationV1, error) {
	if kind := jsonKind(data); kind != kindMap {
		field := path
		if field == "" {
			field = versionTagV1
		}
		return nil, &TypeError{Field: field, Expected: kindMap, Actual: kind}
	}

	members, err := decodeMembers(data)
	if err != nil {
		return nil, fmt.Errorf("decoding generation: %w", err)
	}
	fields := make(map[string]json.RawMessage, len(members))
	for _, m := range members {
		if _, seen := fields[m.key]; seen && slices.Contains(generationV1Fields, m.key) {
			return nil, &DuplicateFieldError{Field: joinPath(path, m.key)}
		}
		fields[m.key] = m.value
	}

	if opts.strict {
		var unknown []string
		for name := range fields {
			if !slices.Contains(generationV1Fields, name) {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			slices.Sort(unknown)
			return nil, &UnknownFieldError{Field: joinPath(path, unknown[0])}
		}
	}

	d := fieldDecoder{fields: fields, path: path}
	g := &GenerationV1{
		System:        d.requiredString("system"),
		Init:          d.requiredString("init"),
		Initrd:        d.optionalString("initrd"),
		InitrdSecrets: d.optionalString("initrdSecrets"),
		Kernel:        d.requiredString("kernel"),
		KernelParams:  d.requiredStrings("kernelParams"),
		Label:         d.requiredString("label"),
		Toplevel:      SystemConfigurationRoot(d.requiredString("toplevel")),
	}
	if d.err != nil {
		return nil, d.err
	}

	specialisations, err := d.optionalMap("specialisation")
	if err != nil {
		return nil, err
	}
	g.Specialisation = make(map[SpecialisationName]GenerationV1, len(specialisations))
	for _, name := range slices.Sorted(maps.Keys(specialisations)) {
		sub, err := decodeGenerationV1(specialisations[name], joinPath(joinPath(path, "specialisation"), name), opts)
		if err != nil {
			return nil, err
		}
		g.Specialisation[SpecialisationName(name)] = *sub
	}

	extensions, err := d.optionalMap("extensions")
	if err != nil {
		return nil, err
	}
	g.Extensions = make(Extensions, len(extensions))
	for _, name := range slices.Sorted(maps.Keys(extensions)) {
		ext, err := decodeExtension(extensions[name], joinPath(joinPath(path, "extensions"), name))
		if err != nil {
			return nil, err
		}
		g.Extensions[name] = ext
	}

	if len(d.missing) > 0 {
		return nil, &MissingFieldError{Field: d.missing[0]}
	}
	return g, nil
}

// fieldDecoder decodes the fields of one record and keeps the first type
// error and the list of missing required fields.
type fieldDecoder struct {
	fields  map[string]json.RawMessage
	path    string
	err     error
	missing []string
}

func (d *fieldDecoder) lookup(name string, required bool) (json.RawMessage, bool) {
	raw, ok := d.fields[name]
	if !ok && required {
		d.missing = append(d.missing, joinPath(d.path, name))
	}
	return raw, ok
}

func (d *fieldDecoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *fieldDecoder) requiredString(name string) string {
	raw, ok := d.lookup(name, true)
	if !ok {
		return ""
	}
	s, err := decodeString(raw, joinPath(d.path, name))
	if err != nil {
		d.fail(err)
	}
	return s
}

func (d *fieldDecoder) optionalString(name string) *string {
	raw, ok := d.lookup(name, false)
	if !ok || jsonKind(raw) == kindNull {
		return nil
	}
	s, err := decodeString(raw, joinPath(d.path, name))
	if err != nil {
		d.fail(err)
		return nil
	}
	return &s
}

func (d *fieldDecoder) requiredStrings(name string) []string {
	raw, ok := d.lookup(name, true)
	if !ok {
		return nil
	}
	field := joinPath(d.path, name)
	if kind := jsonKind(raw); kind != kindSequence {
		d.fail(&TypeError{Field: field, Expected: kindSequence, Actual: kind})
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		d.fail(fmt.Errorf("decoding field %q: %w", field, err))
		return nil
	}
	values := make([]string, 0, len(items))
	for i, item := range items {
		s, err := decodeString(item, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			d.fail(err)
			return nil
		}
		values = append(values, s)
	}
	return values
}

// optionalMap returns the entries of a map field. An absent field yields no
// entries, a null one is an error.
func (d *fieldDecoder) optionalMap(name string) (map[string]json.RawMessage, error) {
	raw, ok := d.lookup(name, false)
	if !ok {
		return nil, nil
	}
	return decodeObject(raw, joinPath(d.path, name))
}

func decodeString(raw json.RawMessage, field string) (string, error) {
	if kind := jsonKind(raw); kind != kindString {
		return "", &TypeError{Field: field, Expected: kindString, Actual: kind}
	}
	// encoding/json would replace invalid bytes with U+FFFD
	if !utf8.Valid(raw) {
		return "", &TypeError{Field: field, Expected: kindString, Actual: kindInvalidUTF8}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("decoding field %q: %w", field, err)
	}
	return s, nil
}

func decodeObject(raw json.RawMessage, field string) (map[string]json.RawMessage, error) {
	switch kind := jsonKind(raw); kind {
	case kindNull:
		return nil, &NullMapError{Field: field}
	case kindMap:
	default:
		return nil, &TypeError{Field: field, Expected: kindMap, Actual: kind}
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decoding field %q: %w", field, err)
	}
	return entries, nil
}

// decodeExtension decodes one extension payload. Numbers are kept as
// json.Number so they survive a round trip unchanged.
func decodeExtension(raw json.RawMessage, field string) (Extension, error) {
	switch kind := jsonKind(raw); kind {
	case kindNull:
		return nil, &NullMapError{Field: field}
	case kindMap:
	default:
		return nil, &TypeError{Field: field, Expected: kindMap, Actual: kind}
	}
	if !utf8.Valid(raw) {
		return nil, &TypeError{Field: field, Expected: kindMap, Actual: kindInvalidUTF8}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding field %q: %w", field, err)
	}
	return Extension(payload), nil
}
