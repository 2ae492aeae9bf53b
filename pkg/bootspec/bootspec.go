// Package bootspec implements the boot specification document: versioned
// metadata describing how to boot one generation of an operating system.
//
// A document is a JSON object with a single key naming the schema version
// ("v1") whose value is the generation record of that version:
//
//	{"v1": {"system": "x86_64-linux", "init": "...", "kernel": "...", ...}}
//
// The package only converts between bytes and records. Reading and writing
// the document on disk is left to the caller.
package bootspec

// SpecialisationName is the name of a specialisation of a generation.
type SpecialisationName string

// SystemConfigurationRoot is the root directory of a realized system
// configuration (the "toplevel").
type SystemConfigurationRoot string

const (
	// SchemaVersionV1 is the schema version of GenerationV1.
	SchemaVersionV1 = 1
	// JSONFilenameV1 is the file name of a v1 document inside a generation.
	JSONFilenameV1 = "boot.json"
)

// NOTE: BootJSON, SchemaVersion and JSONFilename must always describe the
// same schema version.

// BootJSON is the generation record of the current schema.
type BootJSON = GenerationV1

const (
	// SchemaVersion is the current schema version.
	SchemaVersion = SchemaVersionV1
	// JSONFilename is the file name of a current document.
	JSONFilename = JSONFilenameV1
)
