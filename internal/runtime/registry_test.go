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

	"github.com/jward/lexiscope/internal/fixture"
	"github.com/jward/lexiscope/internal/grammar"
	"github.com/jward/lexiscope/internal/scope"
)

func TestRegistryBuiltinGo(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	d, err := r.Descriptor(context.Background(), "go")
	require.NoError(t, err)
	assert.Same(t, grammar.Go(), d)
	assert.Equal(t, "<builtin>/go", r.Origin("go"))
}

func TestRegistryShippedDescriptors(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	ctx := context.Background()

	py, err := r.Descriptor(ctx, "python")
	require.NoError(t, err)
	assert.Equal(t, "<builtin>/python.yaml", r.Origin("python"))
	rule, ok := py.Lookup("", "class_definition")
	require.True(t, ok)
	assert.True(t, rule.Scope.Opaque)

	js, err := r.Descriptor(ctx, "javascript")
	require.NoError(t, err)
	assert.Equal(t, "<builtin>/javascript.risor", r.Origin("javascript"))
	rule, ok = js.Lookup("", "variable_declaration")
	require.True(t, ok)
	assert.Equal(t, []string{"function"}, rule.Decl.Into)
	_, ok = js.Lookup("", "arrow_function")
	assert.True(t, ok)

	again, err := r.Descriptor(ctx, "javascript")
	require.NoError(t, err)
	assert.Same(t, js, again, "descriptors are cached")
}

func TestRegistryUnknownLanguage(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Descriptor(context.Background(), "cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no descriptor for language "cobol"`)
	assert.Empty(t, NewRegistry().Origin("cobol"))
}

func TestRegistryOverrideFS(t *testing.T) {
	t.Parallel()

	override := fstest.MapFS{
		"go.yaml": &fstest.MapFile{Data: []byte(`
language: go
rules:
  source_file: {role: scope, scope: {label: file}}
  identifier: {role: reference}
`)},
	}
	r := NewRegistry(WithDescriptorFS(override))
	ctx := context.Background()

	d, err := r.Descriptor(ctx, "go")
	require.NoError(t, err)
	assert.NotSame(t, grammar.Go(), d)
	assert.Len(t, d.Rules, 2)
	assert.Equal(t, "<fs>/go.yaml", r.Origin("go"))

	// Languages the override does not cover fall through to the shipped files.
	_, err = r.Descriptor(ctx, "python")
	require.NoError(t, err)
	assert.Equal(t, "<builtin>/python.yaml", r.Origin("python"))
}

func TestRegistryOverrideDirScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python.risor"), []byte(`
{"rules": {"module": {"role": "scope", "scope": {"label": "file"}}, "identifier": {"role": "reference"}}}
`), 0644))

	r := NewRegistry(WithDescriptorDir(dir))
	d, err := r.Descriptor(context.Background(), "python")
	require.NoError(t, err)
	assert.Equal(t, "python", d.Language)
	assert.Equal(t, dir+"/python.risor", r.Origin("python"))
}

func TestRegistryRejectsMismatchedLanguage(t *testing.T) {
	t.Parallel()

	override := fstest.MapFS{
		"go.yaml": &fstest.MapFile{Data: []byte("language: python\nrules:\n  identifier: {role: reference}\n")},
	}
	_, err := NewRegistry(WithDescriptorFS(override)).Descriptor(context.Background(), "go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `describes "python"`)
}

func TestRegistryWarnsOnUnknownKinds(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	override := fstest.MapFS{
		"go.yaml": &fstest.MapFile{Data: []byte(`
language: go
rules:
  source_file: {role: scope, scope: {label: file}}
  "body:blokc": {role: scope, scope: {label: block}}
  identifier: {role: reference}
`)},
	}
	r := NewRegistry(
		WithDescriptorFS(override),
		WithRegistryLogger(slog.New(slog.NewTextHandler(&buf, nil))),
	)
	_, err := r.Descriptor(context.Background(), "go")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "descriptor.unknown_kind")
	assert.Contains(t, buf.String(), "body:blokc")
	assert.NotContains(t, buf.String(), "rule=identifier")
}

func TestRegistryFingerprint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base, err := NewRegistry().Fingerprint(ctx, []string{"python", "go"})
	require.NoError(t, err)

	same, err := NewRegistry().Fingerprint(ctx, []string{"go", "python"})
	require.NoError(t, err)
	assert.Equal(t, base, same, "language order does not matter")

	override := fstest.MapFS{
		"go.yaml": &fstest.MapFile{Data: []byte("language: go\nrules:\n  identifier: {role: reference}\n")},
	}
	changed, err := NewRegistry(WithDescriptorFS(override)).Fingerprint(ctx, []string{"go", "python"})
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)

	_, err = NewRegistry().Fingerprint(ctx, []string{"cobol"})
	assert.Error(t, err)
}

// TestShippedDescriptorsAgainstFixtures resolves every annotated file under
// testdata with the shipped descriptors.
func TestShippedDescriptorsAgainstFixtures(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, lang := range Languages() {
		dir := filepath.Join("..", "..", "testdata", lang)
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)

		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if l, ok := LanguageForFile(e.Name()); !ok || l != lang {
				continue
			}
			path := filepath.Join(dir, e.Name())
			t.Run(lang+"/"+e.Name(), func(t *testing.T) {
				src, err := os.ReadFile(path)
				require.NoError(t, err)

				ctx := context.Background()
				desc, err := r.Descriptor(ctx, lang)
				require.NoError(t, err)
				tree, err := Parse(ctx, lang, src)
				require.NoError(t, err)

				ix := scope.Build(tree, desc)
				exps := fixture.Parse(src, fixture.CommentPrefix(lang))
				require.NotEmpty(t, exps)
				for _, failure := range fixture.Check(ix, exps) {
					t.Error(failure)
				}
				assert.Empty(t, ix.Diagnostics())
			})
		}
	}
}
