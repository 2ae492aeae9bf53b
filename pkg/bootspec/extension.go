package bootspec

import (
	"bytes"
	"encoding"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Extension is an opaque vendor payload: a JSON object whose shape is only
// known to the tool that wrote it. Decoded numbers are json.Number values.
type Extension map[string]any

// Extensions maps namespaced extension names to their payloads.
type Extensions map[string]Extension

func (e Extension) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(e))
}

// UnmarshalJSON accepts JSON objects only, null included in the rejected
// values.
func (e *Extension) UnmarshalJSON(data []byte) error {
	ext, err := decodeExtension(data, "extension")
	if err != nil {
		return err
	}
	*e = ext
	return nil
}

// Equal reports whether both payloads encode to the same JSON value.
func (e Extension) Equal(other Extension) bool {
	a, err := json.Marshal(e)
	if err != nil {
		return false
	}
	b, err := json.Marshal(other)
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// Retype decodes the payload into target, which must be a non-nil pointer
// to a struct or map. Struct fields are matched case-sensitively by the
// name in their json tag, or by the Go field name when the tag has none.
// Fields of embedded structs are matched as if they were declared on the
// outer struct. Keys without a matching field are ignored.
//
// Only pointer, map, slice and interface fields are optional: they may be
// missing from the payload or null. Any other field missing from the
// payload fails with a *MissingFieldError, a null one with a *TypeError.
//
// Types implementing json.Unmarshaler or encoding.TextUnmarshaler decode
// themselves.
func (e Extension) Retype(target any) error {
	if err := e.retype(target); err != nil {
		return &ExtensionError{Err: err}
	}
	return nil
}

// RetypeExtension decodes the payload into a new T, see Extension.Retype.
func RetypeExtension[T any](e Extension) (T, error) {
	var out T
	err := e.Retype(&out)
	return out, err
}

func (e Extension) retype(target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Squash:  true,
		MatchName: func(mapKey, fieldName string) bool {
			return mapKey == fieldName
		},
		Result: target,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonUnmarshalerHook,
			mapstructure.TextUnmarshallerHookFunc(),
			numberAsStringHook,
		),
	})
	if err != nil {
		return err
	}
	payload := map[string]any(e)
	if err := decoder.Decode(payload); err != nil {
		return err
	}
	// mapstructure leaves absent and null values at their zero value
	return checkPresent(payload, reflect.TypeOf(target).Elem(), "")
}

var (
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	jsonNumberType      = reflect.TypeFor[json.Number]()
)

// nillable reports whether a value of type t may be absent or null.
func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return true
	}
	return false
}

func decodesItself(t reflect.Type) bool {
	p := reflect.PointerTo(t)
	return p.Implements(jsonUnmarshalerType) || p.Implements(textUnmarshalerType)
}

// checkPresent walks value alongside t and fails on null values and
// missing struct fields whose type is not nillable. path is the dotted
// location of value in the payload.
func checkPresent(value any, t reflect.Type, path string) error {
	if value == nil {
		if nillable(t) {
			return nil
		}
		return &TypeError{Field: path, Expected: expectedKind(t), Actual: kindNull}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if decodesItself(t) {
		return nil
	}

	switch t.Kind() {
	case reflect.Struct:
		fields, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		return checkStructFields(fields, t, path)
	case reflect.Map:
		entries, ok := value.(map[string]any)
		if !ok {
			return nil
		}
		for _, key := range slices.Sorted(maps.Keys(entries)) {
			if err := checkPresent(entries[key], t.Elem(), joinPath(path, key)); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		items, ok := value.([]any)
		if !ok {
			return nil
		}
		for i, item := range items {
			if err := checkPresent(item, t.Elem(), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkStructFields(fields map[string]any, t reflect.Type, path string) error {
	for i := range t.NumField() {
		field := t.Field(i)
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if field.Anonymous && name == "" {
			if field.Type.Kind() == reflect.Struct {
				if err := checkStructFields(fields, field.Type, path); err != nil {
					return err
				}
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		if name == "" {
			name = field.Name
		}

		value, ok := fields[name]
		if !ok {
			if nillable(field.Type) {
				continue
			}
			return &MissingFieldError{Field: joinPath(path, name)}
		}
		if err := checkPresent(value, field.Type, joinPath(path, name)); err != nil {
			return err
		}
	}
	return nil
}

// expectedKind names the JSON kind a value of type t is decoded from.
func expectedKind(t reflect.Type) string {
	if decodesItself(t) {
		return t.String()
	}
	switch t.Kind() {
	case reflect.String:
		return kindString
	case reflect.Bool:
		return kindBool
	case reflect.Struct, reflect.Map:
		return kindMap
	case reflect.Slice, reflect.Array:
		return kindSequence
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return kindNumber
	}
	return t.String()
}

// jsonUnmarshalerHook lets target types implementing json.Unmarshaler
// decode their part of the payload themselves.
func jsonUnmarshalerHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if !reflect.PointerTo(to).Implements(jsonUnmarshalerType) {
		return data, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	result := reflect.New(to).Interface()
	if err := result.(json.Unmarshaler).UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return result, nil
}

// numberAsStringHook rejects numbers decoded into string fields.
// json.Number has a string kind, which mapstructure would accept silently.
func numberAsStringHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from == jsonNumberType && to.Kind() == reflect.String && to != jsonNumberType {
		return nil, fmt.Errorf("invalid type: %s, expected a string, got number %v", to, data)
	}
	return data, nil
}
