package bootspec

import (
	"errors"
	"fmt"
	"strings"
)

// ErrExtensionNotFound is wrapped by ExtensionError when a generation does
// not carry the requested extension.
var ErrExtensionNotFound = errors.New("extension not found")

// UnknownVersionError is returned when the version tag of a document is
// missing, duplicated or not one of the known versions.
type UnknownVersionError struct {
	// Tags found at the top level of the document, in order.
	Tags []string
	// Known version tags.
	Known []string
	// Reason is set when the document is not a single-key object.
	Reason string
}

func (err *UnknownVersionError) Error() string {
	expected := "expected one of " + quoteAll(err.Known)
	if len(err.Known) == 1 {
		expected = "expected " + quoteAll(err.Known)
	}
	switch {
	case err.Reason != "":
		return fmt.Sprintf("unknown variant: %s, %s", err.Reason, expected)
	case len(err.Tags) == 0:
		return "unknown variant: no version tag, " + expected
	case len(err.Tags) > 1:
		return fmt.Sprintf("unknown variant: multiple version tags %s, %s", quoteAll(err.Tags), expected)
	}
	return fmt.Sprintf("unknown variant `%s`, %s", err.Tags[0], expected)
}

// MissingFieldError is returned when a required field is absent.
type MissingFieldError struct {
	Field string
}

func (err *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %q", err.Field)
}

// TypeError is returned when a field holds a JSON value of the wrong kind.
type TypeError struct {
	Field    string
	Expected string
	Actual   string
}

func (err *TypeError) Error() string {
	return fmt.Sprintf("invalid type for field %q: %s, expected %s", err.Field, err.Actual, err.Expected)
}

// NullMapError is returned when a map-typed field is present but null.
// Absent map fields default to empty; null ones never do.
type NullMapError struct {
	Field string
}

func (err *NullMapError) Error() string {
	return fmt.Sprintf("invalid type for field %q: null, expected a map", err.Field)
}

// DuplicateFieldError is returned when a record names one of its fields
// more than once.
type DuplicateFieldError struct {
	Field string
}

func (err *DuplicateFieldError) Error() string {
	return fmt.Sprintf("duplicate field %q", err.Field)
}

// UnknownFieldError is only returned by strict decoding.
type UnknownFieldError struct {
	Field string
}

func (err *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q", err.Field)
}

// ExtensionError is returned when an extension payload cannot be re-typed
// into the requested shape.
type ExtensionError struct {
	Name string
	Err  error
}

func (err *ExtensionError) Error() string {
	if err.Name == "" {
		return fmt.Sprintf("extension: %v", err.Err)
	}
	return fmt.Sprintf("extension %q: %v", err.Name, err.Err)
}

func (err *ExtensionError) Unwrap() error {
	return err.Err
}

func quoteAll(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, "`"+v+"`")
	}
	return strings.Join(quoted, ", ")
}

func joinPath(parent, field string) string {
	if parent == "" {
		return field
	}
	return parent + "." + field
}
