package runtime

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lexiscope/internal/grammar"
)

const goTestSource = `package main

import "fmt"

func Greet(name string) string {
	return fmt.Sprintf("Hello, %s!", name)
}
`

// minimalScript describes a tiny language with a file scope and references.
const minimalScript = `
rules := {
	"source_file": {"role": "scope", "scope": {"label": "file"}},
	"identifier": {"role": "reference"},
}
rules[qualify("name", "identifier")] = {"role": "ignore"}
descriptor := {"language": language, "rules": rules}
descriptor
`

// --- Language detection tests ---

func TestLanguageForFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"main.go", "go", true},
		{"app.js", "javascript", true},
		{"app.jsx", "javascript", true},
		{"lib.mjs", "javascript", true},
		{"script.py", "python", true},
		{"stubs.pyi", "python", true},
		{"MAIN.GO", "go", true},
		{"lib.rs", "", false},
		{"README.md", "", false},
		{"Makefile", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := LanguageForFile(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGrammarFor(t *testing.T) {
	t.Parallel()

	for _, lang := range []string{"go", "python", "javascript"} {
		g, ok := GrammarFor(lang)
		assert.True(t, ok, lang)
		assert.NotNil(t, g, lang)
	}
	_, ok := GrammarFor("cobol")
	assert.False(t, ok)

	assert.Equal(t, []string{"go", "javascript", "python"}, Languages())
}

func TestParse(t *testing.T) {
	t.Parallel()

	tree, err := Parse(context.Background(), "go", []byte(goTestSource))
	require.NoError(t, err)
	assert.Equal(t, "source_file", tree.Kind(tree.Root()))
	assert.Equal(t, "go", tree.Language)

	_, err = Parse(context.Background(), "cobol", []byte("IDENTIFICATION DIVISION."))
	assert.ErrorContains(t, err, "unsupported language")
}

func TestNodeKinds(t *testing.T) {
	t.Parallel()

	kinds := NodeKinds("go")
	assert.True(t, kinds["short_var_declaration"])
	assert.True(t, kinds["identifier"])
	assert.False(t, kinds[":="], "anonymous tokens are not node kinds")
	assert.Nil(t, NodeKinds("cobol"))
}

// --- Descriptor scripts ---

func TestRunDescriptorSource(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("")
	d, err := rt.RunDescriptorSource(context.Background(), minimalScript, "go")
	require.NoError(t, err)

	assert.Equal(t, "go", d.Language)
	r, ok := d.Lookup("name", "identifier")
	require.True(t, ok)
	assert.Equal(t, grammar.RoleIgnore, r.Role)
	r, ok = d.Lookup("", "identifier")
	require.True(t, ok)
	assert.Equal(t, grammar.RoleReference, r.Role)
	assert.NotEmpty(t, d.Fingerprint())
}

func TestRunDescriptorSource_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"not a map", `[1, 2, 3]`, "want a map"},
		{"wrong language", `{"language": "python", "rules": {"identifier": {"role": "reference"}}}`, `want "go"`},
		{"invalid rule", `{"rules": {"block": {"role": "scope"}}}`, "without scope spec"},
		{"syntax error", `rules := {`, "<inline>"},
		{"unknown role", `{"rules": {"x": {"role": "teleport"}}}`, "unknown role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuntime("").RunDescriptorSource(context.Background(), tt.script, "go")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestHostFunctions(t *testing.T) {
	t.Parallel()

	script := `
assert(qualify("body", "block") == "body:block", "qualify")
assert(qualify("", "block") == "block", "qualify without field")
assert(has_kind(language, "block"), "has_kind block")
assert(!has_kind(language, "no_such_kind"), "has_kind unknown")
kinds := node_kinds(language)
assert(len(kinds) > 50, 'expected many kinds, got {len(kinds)}')
{"rules": {"identifier": {"role": "reference"}}}
`
	_, err := NewRuntime("").RunDescriptorSource(context.Background(), script, "go")
	require.NoError(t, err)
}

func TestScriptLogGoesToSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	rt := NewRuntime("", WithRuntimeLogger(logger))

	script := `
log.Warn("deprecated rule")
{"rules": {"identifier": {"role": "reference"}}}
`
	_, err := rt.RunDescriptorSource(context.Background(), script, "go")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "deprecated rule")
	assert.Contains(t, buf.String(), "source=descriptor")
}

// --- Script loading ---

func TestRunDescriptor_LoadsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.risor"), []byte(minimalScript), 0644))

	d, err := NewRuntime(dir).RunDescriptor(context.Background(), "go.risor", "go")
	require.NoError(t, err)
	assert.Equal(t, "go", d.Language)
}

func TestRunDescriptor_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewRuntime(t.TempDir()).RunDescriptor(context.Background(), "nonexistent.risor", "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading script")
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{
		"go.risor": &fstest.MapFile{Data: []byte("x := 1")},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	src, err := rt.LoadScript("go.risor")
	require.NoError(t, err)
	assert.Equal(t, "x := 1", src)

	src, err = rt.LoadScript("/go.risor")
	require.NoError(t, err)
	assert.Equal(t, "x := 1", src)

	_, err = rt.LoadScript("python.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

// --- Importer wiring ---

func TestImport_FSImporter(t *testing.T) {
	t.Parallel()

	// Risor's FSImporter resolves "shared" by trying name + ".risor",
	// so the file must be at the flat path "shared.risor" in the FS.
	mapFS := fstest.MapFS{
		"shared.risor": &fstest.MapFile{Data: []byte(`
func reference() {
	return {"role": "reference"}
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import shared
{"rules": {"identifier": shared.reference()}}
`
	d, err := rt.RunDescriptorSource(context.Background(), script, "go")
	require.NoError(t, err)
	r, ok := d.Lookup("", "identifier")
	require.True(t, ok)
	assert.Equal(t, grammar.RoleReference, r.Role)
}

func TestImport_LocalImporter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scopes.risor"), []byte(`
func scope(label) {
	return {"role": "scope", "scope": {"label": label}}
}
`), 0644))

	script := `
import scopes
{"rules": {"block": scopes.scope("block"), "identifier": {"role": "reference"}}}
`
	d, err := NewRuntime(dir).RunDescriptorSource(context.Background(), script, "go")
	require.NoError(t, err)
	r, ok := d.Lookup("", "block")
	require.True(t, ok)
	assert.Equal(t, "block", r.Scope.Label)
}

func TestImport_GlobalsAvailableInImportedModules(t *testing.T) {
	t.Parallel()

	// Imported modules can reference host-provided globals only if their
	// names are passed to the importer.
	mapFS := fstest.MapFS{
		"helper.risor": &fstest.MapFile{Data: []byte(`
func key(field, kind) {
	return qualify(field, kind)
}
`)},
	}
	rt := NewRuntime("", WithRuntimeFS(mapFS))

	script := `
import helper
rules := {"identifier": {"role": "reference"}}
rules[helper.key("name", "identifier")] = {"role": "ignore"}
{"rules": rules}
`
	d, err := rt.RunDescriptorSource(context.Background(), script, "go")
	require.NoError(t, err)
	_, ok := d.Rules["name:identifier"]
	assert.True(t, ok)
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()

	rt := NewRuntime("/some/dir")
	require.NotNil(t, rt)
	assert.Nil(t, rt.fsys)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
	assert.NotNil(t, rt.log)
}
