package bootspec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Generation is a generation record of one schema version.
//
// The set of versions grows over time, so code switching on a Generation
// has to handle versions it does not know about:
//
//	switch g := gen.(type) {
//	case *bootspec.GenerationV1:
//		...
//	default:
//		return fmt.Errorf("unsupported bootspec version %d", gen.Version())
//	}
type Generation interface {
	// Version returns the schema version of the record. It is fixed per
	// record type and does not depend on the record's data.
	Version() int

	isGeneration()
}

// knownVersions lists the accepted version tags, in schema order.
var knownVersions = []string{versionTagV1}

type decodeOptions struct {
	// strict rejects fields that are not part of the record.
	strict bool
}

// Unmarshal decodes a bootspec document. Fields unknown to the record of the
// document's version are ignored.
func Unmarshal(data []byte) (Generation, error) {
	return decodeDocument(data, decodeOptions{})
}

// UnmarshalStrict decodes a bootspec document like Unmarshal, but fails on
// fields unknown to the record of the document's version.
func UnmarshalStrict(data []byte) (Generation, error) {
	return decodeDocument(data, decodeOptions{strict: true})
}

// Marshal encodes g as a bootspec document tagged with its version.
func Marshal(g Generation) ([]byte, error) {
	tag, err := versionTag(g)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]Generation{tag: g})
}

// MarshalIndent is like Marshal but indents the output like
// json.MarshalIndent.
func MarshalIndent(g Generation, prefix, indent string) ([]byte, error) {
	tag, err := versionTag(g)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(map[string]Generation{tag: g}, prefix, indent)
}

// Document wraps a Generation so a bootspec document can be embedded in
// other JSON structures.
type Document struct {
	Generation Generation
}

// Version returns the schema version of the wrapped generation, or 0 if the
// document is empty.
func (doc Document) Version() int {
	if doc.Generation == nil {
		return 0
	}
	return doc.Generation.Version()
}

func (doc Document) MarshalJSON() ([]byte, error) {
	return Marshal(doc.Generation)
}

func (doc *Document) UnmarshalJSON(data []byte) error {
	g, err := Unmarshal(data)
	if err != nil {
		return err
	}
	doc.Generation = g
	return nil
}

func versionTag(g Generation) (string, error) {
	switch g := g.(type) {
	case nil:
		return "", errors.New("cannot encode an empty bootspec document")
	case *GenerationV1:
		if g == nil {
			return "", errors.New("cannot encode a nil v1 generation")
		}
		return versionTagV1, nil
	}
	return "", fmt.Errorf("unsupported generation type %T", g)
}

func decodeDocument(data []byte, opts decodeOptions) (Generation, error) {
	members, err := decodeMembers(data)
	if errors.Is(err, errNotObject) {
		return nil, &UnknownVersionError{
			Known:  knownVersions,
			Reason: "document is " + jsonKind(data) + ", not a single-key map",
		}
	} else if err != nil {
		return nil, fmt.Errorf("decoding bootspec document: %w", err)
	}

	tags := make([]string, 0, len(members))
	for _, m := range members {
		tags = append(tags, m.key)
	}
	if len(tags) != 1 {
		return nil, &UnknownVersionError{Tags: tags, Known: knownVersions}
	}

	switch tags[0] {
	case versionTagV1:
		g, err := decodeGenerationV1(members[0].value, "", opts)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, &UnknownVersionError{Tags: tags, Known: knownVersions}
	}
}

var errNotObject = errors.New("not a JSON object")

type member struct {
	key   string
	value json.RawMessage
}

// decodeMembers returns the members of the JSON object in data in document
// order, repeated keys included.
func decodeMembers(data []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errNotObject
	}

	var members []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		// object keys are always strings
		key, _ := tok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		members = append(members, member{key, value})
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after document")
	}
	return members, nil
}

const (
	kindNull     = "null"
	kindBool     = "a boolean"
	kindNumber   = "a number"
	kindString   = "a string"
	kindSequence = "a sequence"
	kindMap      = "a map"

	kindInvalidUTF8 = "invalid UTF-8"
)

// jsonKind names the kind of a JSON value from its first significant byte.
// The value is expected to be syntactically valid.
func jsonKind(raw []byte) string {
	raw = bytes.TrimLeft(raw, " \t\r\n")
	if len(raw) == 0 {
		return "empty input"
	}
	switch raw[0] {
	case 'n':
		return kindNull
	case 't', 'f':
		return kindBool
	case '"':
		return kindString
	case '[':
		return kindSequence
	case '{':
		return kindMap
	}
	return kindNumber
}
