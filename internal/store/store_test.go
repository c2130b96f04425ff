package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/smacker/go-tree-sitter/golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lexiscope/internal/grammar"
	"github.com/jward/lexiscope/internal/scope"
	"github.com/jward/lexiscope/internal/syntax"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

// insertTestFile is a helper that inserts a file and returns it with ID set.
func insertTestFile(t *testing.T, s *Store, path, lang string) *File {
	t.Helper()
	f := &File{Path: path, Language: lang, Hash: "abc123", LineCount: 10, LastIndexed: time.Now().Truncate(time.Second)}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)
	return f
}

// insertTestScope inserts a scope spanning lines [start, end].
func insertTestScope(t *testing.T, s *Store, fileID int64, parent *int64, label string, start, end int) *Scope {
	t.Helper()
	sc := &Scope{FileID: fileID, ParentScopeID: parent, Label: label, StartLine: start, EndLine: end}
	_, err := s.InsertScope(sc)
	require.NoError(t, err)
	return sc
}

// buildIndex resolves Go source with the built-in descriptor.
func buildIndex(t *testing.T, src string) *scope.Index {
	t.Helper()
	tree, err := syntax.Parse(context.Background(), "go", golang.GetLanguage(), []byte(src))
	require.NoError(t, err)
	return scope.Build(tree, grammar.Go())
}

const indexSource = `package main

func main() {
	x := 1
	for i := range x {
		println(i, x, missing)
	}
}
`

// =============================================================================
// Schema & Lifecycle
// =============================================================================

func TestMigrate_AllTablesExist(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	for _, table := range []string{"files", "scopes", "declarations", "references_", "diagnostics", "metadata"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestMigrate_WALMode(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	var mode string
	err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

// =============================================================================
// File operations
// =============================================================================

func TestFile_InsertAndRetrieve(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	now := time.Now().Truncate(time.Second)
	f := &File{Path: "/src/main.go", Language: "go", Hash: "sha256abc", LineCount: 42, LastIndexed: now}
	id, err := s.InsertFile(f)
	require.NoError(t, err)
	require.Positive(t, id)

	got, err := s.FileByPath("/src/main.go")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "go", got.Language)
	assert.Equal(t, "sha256abc", got.Hash)
	assert.Equal(t, 42, got.LineCount)

	byID, err := s.FileByID(id)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "/src/main.go", byID.Path)
}

func TestFile_NotFound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	got, err := s.FileByPath("/nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)

	byID, err := s.FileByID(99)
	require.NoError(t, err)
	assert.Nil(t, byID)
}

func TestFile_DuplicatePathRejected(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/a.go", "go")
	_, err := s.InsertFile(&File{Path: "/a.go", Language: "go"})
	assert.Error(t, err)
}

func TestFile_ListingAndLanguages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/b.go", "go")
	insertTestFile(t, s, "/a.go", "go")
	insertTestFile(t, s, "/c.py", "python")

	all, err := s.Files()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/a.go", all[0].Path, "files are ordered by path")

	goFiles, err := s.FilesByLanguage("go")
	require.NoError(t, err)
	assert.Len(t, goFiles, 2)

	langs, err := s.Languages()
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "python"}, langs)
}

// =============================================================================
// Scopes, declarations, references
// =============================================================================

func TestScope_ChainWalksToFileScope(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")

	root := insertTestScope(t, s, f.ID, nil, "file", 0, 20)
	fn := insertTestScope(t, s, f.ID, &root.ID, "function", 2, 10)
	block := insertTestScope(t, s, f.ID, &fn.ID, "block", 4, 6)

	chain, err := s.ScopeChain(block.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, []string{"block", "function", "file"}, []string{chain[0].Label, chain[1].Label, chain[2].Label})

	scopes, err := s.ScopesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, scopes, 3)
	assert.Nil(t, scopes[0].ParentScopeID)
	assert.Equal(t, root.ID, *scopes[1].ParentScopeID)

	missing, err := s.ScopeByID(12345)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDeclaration_InsertAndQuery(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	sc := insertTestScope(t, s, f.ID, nil, "file", 0, 20)

	second := &Declaration{FileID: f.ID, ScopeID: sc.ID, Name: "b", Visibility: "point", StartLine: 1, StartCol: 4, EndLine: 1, EndCol: 5}
	first := &Declaration{FileID: f.ID, ScopeID: sc.ID, Name: "a", Tag: "variable", Visibility: "throughout", StartLine: 0, StartCol: 4, EndLine: 0, EndCol: 5}
	_, err := s.InsertDeclaration(second)
	require.NoError(t, err)
	_, err = s.InsertDeclaration(first)
	require.NoError(t, err)

	inScope, err := s.DeclarationsInScope(sc.ID)
	require.NoError(t, err)
	require.Len(t, inScope, 2)
	assert.Equal(t, "b", inScope[0].Name, "scope order is insertion order")

	byFile, err := s.DeclarationsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, byFile, 2)
	assert.Equal(t, "a", byFile[0].Name, "file order is source order")

	got, err := s.DeclarationByID(second.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Tag, "empty tags round-trip through NULL")
	assert.Equal(t, "point", got.Visibility)

	byName, err := s.DeclarationsByName("a")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "variable", byName[0].Tag)
}

func TestReference_BoundAndUnbound(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	sc := insertTestScope(t, s, f.ID, nil, "file", 0, 20)
	d := &Declaration{FileID: f.ID, ScopeID: sc.ID, Name: "x", Visibility: "point", StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 1}
	_, err := s.InsertDeclaration(d)
	require.NoError(t, err)

	for _, r := range []*Reference{
		{FileID: f.ID, ScopeID: sc.ID, DeclarationID: ptr(d.ID), Name: "x", Class: "local", StartLine: 3, StartCol: 2, EndLine: 3, EndCol: 3},
		{FileID: f.ID, ScopeID: sc.ID, DeclarationID: ptr(d.ID), Name: "x", Class: "local", StartLine: 2, StartCol: 2, EndLine: 2, EndCol: 3},
		{FileID: f.ID, ScopeID: sc.ID, Name: "fmt", Class: "global", StartLine: 2, StartCol: 6, EndLine: 2, EndCol: 9},
	} {
		_, err := s.InsertReference(r)
		require.NoError(t, err)
	}

	refs, err := s.ReferencesToDeclaration(d.ID)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, 2, refs[0].StartLine, "references come back in source order")

	unbound, err := s.UnboundReferences(f.ID)
	require.NoError(t, err)
	require.Len(t, unbound, 1)
	assert.Equal(t, "fmt", unbound[0].Name)
	assert.Nil(t, unbound[0].DeclarationID)

	byName, err := s.ReferencesByName("x")
	require.NoError(t, err)
	assert.Len(t, byName, 2)
}

// =============================================================================
// Persisting an index
// =============================================================================

func TestWriteIndex_Direct(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	ix := buildIndex(t, indexSource)

	require.NoError(t, WriteIndex(s, f.ID, ix))

	scopes, err := s.ScopesByFile(f.ID)
	require.NoError(t, err)
	assert.Len(t, scopes, len(ix.Scopes()))
	assert.Equal(t, "file", scopes[0].Label)
	assert.Zero(t, scopes[0].Depth)

	decls, err := s.DeclarationsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, decls, len(ix.Decls()))

	refs, err := s.ReferencesByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, refs, len(ix.Refs()))

	classes := map[string]string{}
	for _, r := range refs {
		classes[r.Name] = r.Class
	}
	assert.Equal(t, "local", classes["i"])
	assert.Equal(t, "local", classes["x"])
	assert.Equal(t, "global", classes["missing"])
}

func TestWriteIndex_OccurrenceAt(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	require.NoError(t, WriteIndex(s, f.ID, buildIndex(t, indexSource)))

	// "x := 1" on line 3, column 1.
	occ, err := s.OccurrenceAt(f.ID, 3, 1)
	require.NoError(t, err)
	require.NotNil(t, occ)
	require.NotNil(t, occ.Declaration)
	assert.Equal(t, "x", occ.Declaration.Name)

	refs, err := s.ReferencesToDeclaration(occ.Declaration.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 2, "range expression and println argument")

	// "println(i, x, missing)": i at column 10.
	occ, err = s.OccurrenceAt(f.ID, 5, 10)
	require.NoError(t, err)
	require.NotNil(t, occ)
	require.NotNil(t, occ.Reference)
	assert.Equal(t, "i", occ.Reference.Name)
	require.NotNil(t, occ.Reference.DeclarationID)

	occ, err = s.OccurrenceAt(f.ID, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, occ, "keywords are not occurrences")
}

func TestWriteIndex_Diagnostics(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/bad.go", "go")

	// A range clause binding three names breaks arity.
	ix := buildIndex(t, "package p\n\nfunc f(m map[int]int) {\n\tfor a, b, c := range m {\n\t}\n}\n")
	require.NotEmpty(t, ix.Diagnostics())
	require.NoError(t, WriteIndex(s, f.ID, ix))

	diags, err := s.DiagnosticsByFile(f.ID)
	require.NoError(t, err)
	require.Len(t, diags, len(ix.Diagnostics()))
	assert.Equal(t, 3, diags[0].Line)
}

func TestClassCounts(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	ix := buildIndex(t, indexSource)
	require.NoError(t, WriteIndex(s, f.ID, ix))

	counts, err := s.ClassCounts()
	require.NoError(t, err)
	assert.Equal(t, len(ix.Decls()), counts["declaration"])
	assert.Equal(t, 2, counts["global"], "println and missing")
	assert.Positive(t, counts["local"])
}

// =============================================================================
// Deletion, invalidation, metadata
// =============================================================================

func TestDeleteFileData_RemovesRowsKeepsFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	other := insertTestFile(t, s, "/other.go", "go")
	require.NoError(t, WriteIndex(s, f.ID, buildIndex(t, indexSource)))
	require.NoError(t, WriteIndex(s, other.ID, buildIndex(t, indexSource)))

	require.NoError(t, s.DeleteFileData(f.ID))

	for _, table := range []string{"scopes", "declarations", "references_", "diagnostics"} {
		var n int
		require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table+" WHERE file_id = ?", f.ID).Scan(&n))
		assert.Zero(t, n, table)
	}
	got, err := s.FileByPath("/main.go")
	require.NoError(t, err)
	assert.NotNil(t, got)

	decls, err := s.DeclarationsByFile(other.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, decls, "other files are untouched")
}

func TestDeleteFile(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	f := insertTestFile(t, s, "/main.go", "go")
	require.NoError(t, WriteIndex(s, f.ID, buildIndex(t, indexSource)))

	require.NoError(t, s.DeleteFile(f.ID))
	got, err := s.FileByPath("/main.go")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteFiles(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	a := insertTestFile(t, s, "/a.go", "go")
	b := insertTestFile(t, s, "/b.go", "go")
	c := insertTestFile(t, s, "/c.go", "go")
	for _, f := range []*File{a, b, c} {
		require.NoError(t, WriteIndex(s, f.ID, buildIndex(t, indexSource)))
	}

	require.NoError(t, s.DeleteFiles([]int64{a.ID, c.ID}))
	require.NoError(t, s.DeleteFiles(nil))

	files, err := s.Files()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "/b.go", files[0].Path)
}

func TestInvalidateLanguages(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	insertTestFile(t, s, "/a.go", "go")
	insertTestFile(t, s, "/b.py", "python")

	n, err := s.InvalidateLanguages([]string{"go"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	a, err := s.FileByPath("/a.go")
	require.NoError(t, err)
	assert.Empty(t, a.Hash)
	b, err := s.FileByPath("/b.py")
	require.NoError(t, err)
	assert.Equal(t, "abc123", b.Hash)

	n, err = s.InvalidateLanguages(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMetadata(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)

	v, err := s.GetMetadata("missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetMetadata("k", "one"))
	require.NoError(t, s.SetMetadata("k", "two"))
	v, err = s.GetMetadata("k")
	require.NoError(t, err)
	assert.Equal(t, "two", v)

	require.NoError(t, s.SetDescriptorFingerprint("go", "fp1"))
	fp, err := s.DescriptorFingerprint("go")
	require.NoError(t, err)
	assert.Equal(t, "fp1", fp)
	fp, err = s.DescriptorFingerprint("python")
	require.NoError(t, err)
	assert.Empty(t, fp)
}

func TestContentHash(t *testing.T) {
	t.Parallel()
	a := ContentHash([]byte("package a"))
	assert.Len(t, a, 64)
	assert.Equal(t, a, ContentHash([]byte("package a")))
	assert.NotEqual(t, a, ContentHash([]byte("package b")))
}
