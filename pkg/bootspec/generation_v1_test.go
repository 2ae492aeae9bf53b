package bootspec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// v1Record returns a decoded copy of the record in testdata/v1.json so test
// cases can change single fields.
func v1Record(t *testing.T) map[string]any {
	t.Helper()
	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(readFixture(t, "v1.json"), &doc))
	return doc["v1"]
}

func encodeDocument(t *testing.T, record map[string]any) []byte {
	t.Helper()
	data, err := json.Marshal(map[string]any{"v1": record})
	require.NoError(t, err)
	return data
}

func TestGenerationV1Defaults(t *testing.T) {
	tests := []struct {
		name   string
		modify func(map[string]any)
		check  func(*testing.T, *GenerationV1)
	}{
		{
			name: "without extensions",
			modify: func(r map[string]any) {
				delete(r, "extensions")
			},
			check: func(t *testing.T, g *GenerationV1) {
				assert.NotNil(t, g.Extensions)
				assert.Empty(t, g.Extensions)
			},
		},
		{
			name: "without specialisation",
			modify: func(r map[string]any) {
				delete(r, "specialisation")
			},
			check: func(t *testing.T, g *GenerationV1) {
				assert.NotNil(t, g.Specialisation)
				assert.Empty(t, g.Specialisation)
			},
		},
		{
			name: "without initrd",
			modify: func(r map[string]any) {
				delete(r, "initrd")
				delete(r, "initrdSecrets")
			},
			check: func(t *testing.T, g *GenerationV1) {
				assert.Nil(t, g.Initrd)
				assert.Nil(t, g.InitrdSecrets)
			},
		},
		{
			name: "null initrd",
			modify: func(r map[string]any) {
				r["initrd"] = nil
				r["initrdSecrets"] = nil
			},
			check: func(t *testing.T, g *GenerationV1) {
				assert.Nil(t, g.Initrd)
				assert.Nil(t, g.InitrdSecrets)
			},
		},
		{
			name: "empty kernel params",
			modify: func(r map[string]any) {
				r["kernelParams"] = []any{}
			},
			check: func(t *testing.T, g *GenerationV1) {
				assert.NotNil(t, g.KernelParams)
				assert.Empty(t, g.KernelParams)
			},
		},
		{
			name: "unknown field",
			modify: func(r map[string]any) {
				r["devicetree"] = "/nix/store/xxx-dtbs"
				r["org.example.future"] = map[string]any{"a": 1}
			},
			check: func(t *testing.T, g *GenerationV1) {
				assert.Equal(t, expectedV1(), g)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := v1Record(t)
			tt.modify(record)
			g, err := Unmarshal(encodeDocument(t, record))
			require.NoError(t, err)
			tt.check(t, g.(*GenerationV1))
		})
	}
}

func TestGenerationV1Errors(t *testing.T) {
	withoutKernel := v1Record(t)
	delete(withoutKernel, "kernel")

	tests := []struct {
		name    string
		modify  func(map[string]any)
		wantErr error
		message string
	}{
		{
			name: "null extensions",
			modify: func(r map[string]any) {
				r["extensions"] = nil
			},
			wantErr: &NullMapError{Field: "extensions"},
			message: "expected a map",
		},
		{
			name: "null specialisation",
			modify: func(r map[string]any) {
				r["specialisation"] = nil
			},
			wantErr: &NullMapError{Field: "specialisation"},
			message: "expected a map",
		},
		{
			name: "null extension payload",
			modify: func(r map[string]any) {
				r["extensions"] = map[string]any{"org.test": nil}
			},
			wantErr: &NullMapError{Field: "extensions.org.test"},
			message: "expected a map",
		},
		{
			name: "extension payload is a string",
			modify: func(r map[string]any) {
				r["extensions"] = map[string]any{"org.test": "hello"}
			},
			wantErr: &TypeError{Field: "extensions.org.test", Expected: "a map", Actual: "a string"},
		},
		{
			name: "extensions is a sequence",
			modify: func(r map[string]any) {
				r["extensions"] = []any{}
			},
			wantErr: &TypeError{Field: "extensions", Expected: "a map", Actual: "a sequence"},
		},
		{
			name: "null specialisation entry",
			modify: func(r map[string]any) {
				r["specialisation"] = map[string]any{"debug": nil}
			},
			wantErr: &TypeError{Field: "specialisation.debug", Expected: "a map", Actual: "null"},
		},
		{
			name: "null map reported before missing field",
			modify: func(r map[string]any) {
				delete(r, "system")
				r["extensions"] = nil
			},
			wantErr: &NullMapError{Field: "extensions"},
			message: "expected a map",
		},
		{
			name: "missing system",
			modify: func(r map[string]any) {
				delete(r, "system")
			},
			wantErr: &MissingFieldError{Field: "system"},
			message: `missing field "system"`,
		},
		{
			name: "missing kernel params",
			modify: func(r map[string]any) {
				delete(r, "kernelParams")
			},
			wantErr: &MissingFieldError{Field: "kernelParams"},
		},
		{
			name: "missing toplevel",
			modify: func(r map[string]any) {
				delete(r, "toplevel")
			},
			wantErr: &MissingFieldError{Field: "toplevel"},
		},
		{
			name: "number as kernel",
			modify: func(r map[string]any) {
				r["kernel"] = 42
			},
			wantErr: &TypeError{Field: "kernel", Expected: "a string", Actual: "a number"},
		},
		{
			name: "null label",
			modify: func(r map[string]any) {
				r["label"] = nil
			},
			wantErr: &TypeError{Field: "label", Expected: "a string", Actual: "null"},
		},
		{
			name: "kernel params as a string",
			modify: func(r map[string]any) {
				r["kernelParams"] = "quiet loglevel=4"
			},
			wantErr: &TypeError{Field: "kernelParams", Expected: "a sequence", Actual: "a string"},
		},
		{
			name: "null kernel parameter",
			modify: func(r map[string]any) {
				r["kernelParams"] = []any{"quiet", nil}
			},
			wantErr: &TypeError{Field: "kernelParams[1]", Expected: "a string", Actual: "null"},
		},
		{
			name: "boolean initrd",
			modify: func(r map[string]any) {
				r["initrd"] = true
			},
			wantErr: &TypeError{Field: "initrd", Expected: "a string", Actual: "a boolean"},
		},
		{
			name: "missing field in specialisation",
			modify: func(r map[string]any) {
				r["specialisation"] = map[string]any{"debug": withoutKernel}
			},
			wantErr: &MissingFieldError{Field: "specialisation.debug.kernel"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := v1Record(t)
			tt.modify(record)
			g, err := Unmarshal(encodeDocument(t, record))
			require.Error(t, err)
			assert.Nil(t, g)
			assert.Equal(t, tt.wantErr, err)
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestGenerationV1UnmarshalJSON(t *testing.T) {
	data, err := json.Marshal(v1Record(t))
	require.NoError(t, err)

	var g GenerationV1
	require.NoError(t, json.Unmarshal(data, &g))
	assert.Equal(t, *expectedV1(), g)

	var records map[string]GenerationV1
	err = json.Unmarshal([]byte(`{"a": null}`), &records)
	assert.Error(t, err)
}

func TestGenerationV1MarshalNilCollections(t *testing.T) {
	g := GenerationV1{
		System:   "x86_64-linux",
		Init:     "/a/init",
		Kernel:   "/a/bzImage",
		Label:    "L",
		Toplevel: "/a",
		Extensions: Extensions{
			"org.empty": nil,
		},
	}
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"system": "x86_64-linux",
		"init": "/a/init",
		"kernel": "/a/bzImage",
		"kernelParams": [],
		"label": "L",
		"toplevel": "/a",
		"specialisation": {},
		"extensions": {"org.empty": {}}
	}`, string(data))
}

func TestGenerationV1Equal(t *testing.T) {
	base := *expectedV1()
	assert.True(t, base.Equal(*expectedV1()))

	withNils := *expectedV1()
	withNils.Specialisation = nil
	withNils.Extensions = nil
	assert.True(t, base.Equal(withNils))

	tests := []struct {
		name   string
		modify func(*GenerationV1)
	}{
		{"system", func(g *GenerationV1) { g.System = "aarch64-linux" }},
		{"initrd", func(g *GenerationV1) { g.Initrd = nil }},
		{"initrd path", func(g *GenerationV1) { g.Initrd = toPtr("/other") }},
		{"kernel params order", func(g *GenerationV1) {
			g.KernelParams = append([]string{g.KernelParams[len(g.KernelParams)-1]}, g.KernelParams[:len(g.KernelParams)-1]...)
		}},
		{"toplevel", func(g *GenerationV1) { g.Toplevel = "/other" }},
		{"specialisation", func(g *GenerationV1) {
			g.Specialisation = map[SpecialisationName]GenerationV1{"debug": *expectedV1()}
		}},
		{"extension payload", func(g *GenerationV1) {
			g.Extensions = Extensions{"org.test": {"key": "hello"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := *expectedV1()
			tt.modify(&other)
			assert.False(t, base.Equal(other))
			assert.False(t, other.Equal(base))
		})
	}
}

func TestGenerationV1EqualNestedExtensions(t *testing.T) {
	a := *expectedV1()
	a.Extensions = Extensions{"org.test": {"n": json.Number("42"), "list": []any{"x"}}}
	b := *expectedV1()
	b.Extensions = Extensions{"org.test": {"list": []any{"x"}, "n": 42}}
	assert.True(t, a.Equal(b))

	b.Extensions["org.test"]["list"] = []any{"y"}
	assert.False(t, a.Equal(b))
}

func TestGenerationV1Validate(t *testing.T) {
	g := *expectedV1()
	require.NoError(t, g.Validate())

	g.Label = ""
	assert.Equal(t, &MissingFieldError{Field: "label"}, g.Validate())

	g = *expectedV1()
	sub := *expectedV1()
	sub.Kernel = ""
	g.Specialisation = map[SpecialisationName]GenerationV1{"debug": sub}
	err := g.Validate()
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "kernel", missing.Field)
	assert.Contains(t, err.Error(), `specialisation "debug"`)
}

func TestGenerationV1RawErrors(t *testing.T) {
	const fields = `"init": "/init", "kernel": "/kernel", "kernelParams": [], "label": "l", "toplevel": "/t"`

	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{
			name:    "duplicate field",
			doc:     `{"v1": {"system": "a", "system": "b", ` + fields + `}}`,
			wantErr: &DuplicateFieldError{Field: "system"},
		},
		{
			name:    "duplicate escaped field",
			doc:     `{"v1": {"system": "a", "sys\u0074em": "b", ` + fields + `}}`,
			wantErr: &DuplicateFieldError{Field: "system"},
		},
		{
			name:    "duplicate field in specialisation",
			doc:     `{"v1": {"system": "a", ` + fields + `, "specialisation": {"debug": {"system": "a", "label": "x", "label": "y", ` + fields + `}}}}`,
			wantErr: &DuplicateFieldError{Field: "specialisation.debug.label"},
		},
		{
			name:    "invalid UTF-8 in field",
			doc:     "{\"v1\": {\"system\": \"a\xff\", " + fields + "}}",
			wantErr: &TypeError{Field: "system", Expected: "a string", Actual: "invalid UTF-8"},
		},
		{
			name:    "invalid UTF-8 in kernel parameter",
			doc:     "{\"v1\": {\"system\": \"a\", \"kernelParams\": [\"quiet\", \"\xc3\"], \"init\": \"/init\", \"kernel\": \"/kernel\", \"label\": \"l\", \"toplevel\": \"/t\"}}",
			wantErr: &TypeError{Field: "kernelParams[1]", Expected: "a string", Actual: "invalid UTF-8"},
		},
		{
			name:    "invalid UTF-8 in extension",
			doc:     "{\"v1\": {\"system\": \"a\", " + fields + ", \"extensions\": {\"org.test\": {\"key\": \"\xfe\"}}}}",
			wantErr: &TypeError{Field: "extensions.org.test", Expected: "a map", Actual: "invalid UTF-8"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestGenerationV1DuplicateUnknownField(t *testing.T) {
	const doc = `{"v1": {"system": "a", "init": "/init", "kernel": "/kernel", "kernelParams": [], "label": "l", "toplevel": "/t", "x-note": 1, "x-note": 2}}`

	g, err := Unmarshal([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "a", g.(*GenerationV1).System)

	_, err = UnmarshalStrict([]byte(doc))
	var unknown *UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "x-note", unknown.Field)
}
