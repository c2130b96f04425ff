package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Full(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[index]
db = "cache/index.db"
languages = ["go", "python"]
workers = 4
parallel = false

[highlight]
named_returns = "distinct"
color = false

[descriptors]
dir = "descriptors"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, filepath.Join(dir, "cache/index.db"), cfg.Index.DB)
	assert.Equal(t, []string{"go", "python"}, cfg.Index.Languages)
	assert.Equal(t, 4, cfg.Index.Workers)
	assert.False(t, cfg.Index.Parallel)
	assert.Equal(t, "distinct", cfg.Highlight.NamedReturns)
	require.NotNil(t, cfg.Highlight.Color)
	assert.False(t, *cfg.Highlight.Color)
	assert.Equal(t, filepath.Join(dir, "descriptors"), cfg.Descriptors.Dir)
}

func TestLoad_PartialKeepsDefaults(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, dir, "[index]\nworkers = 2\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Index.Workers)
	assert.True(t, cfg.Index.Parallel)
	assert.Equal(t, filepath.Join(dir, ".lexiscope.db"), cfg.Index.DB)
	assert.Equal(t, "local", cfg.Highlight.NamedReturns)
	assert.Nil(t, cfg.Highlight.Color)
	assert.Empty(t, cfg.Descriptors.Dir)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{"syntax", "[index\n", "failed to parse TOML"},
		{"unknown key", "[index]\nthreads = 3\n", "unknown keys: index.threads"},
		{"bad policy", "[highlight]\nnamed_returns = \"bold\"\n", "named_returns"},
		{"negative workers", "[index]\nworkers = -1\n", "workers"},
		{"empty db", "[index]\ndb = \" \"\n", "[index].db"},
		{"wrong type", "[index]\nparallel = \"yes\"\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfig(t, t.TempDir(), tt.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindWalksUp(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	path := writeConfig(t, root, "")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	got, ok, err := Find(nested)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, path, got)

	cfg, err := Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
}

func TestDiscoverWithoutFileUsesDefaults(t *testing.T) {
	t.Parallel()
	// A fresh temp dir normally has no config above it; skip if the
	// machine running the tests has one.
	dir := t.TempDir()
	if _, ok, _ := Find(dir); ok {
		t.Skip("a .lexiscope.toml exists above the temp dir")
	}
	cfg, err := Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Highlight.NamedReturns = "distinct"
	require.NoError(t, cfg.Validate())

	cfg.Highlight.NamedReturns = "bold"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `[highlight].named_returns: highlight: unknown named-returns policy "bold"`)

	cfg = Default()
	cfg.Index.Workers = -2
	assert.ErrorContains(t, cfg.Validate(), "[index].workers")
}
