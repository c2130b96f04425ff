// Package lexiscope resolves every identifier of a source file to the
// declaration it binds to and classifies it as a declaration, a local
// reference or a global reference. The classification drives semantic
// highlighting: locals render differently from globals, and every occurrence
// links back to its declaring site.
//
// # Pipeline
//
// For each file the Engine parses the source with tree-sitter, loads the
// language's grammar descriptor and runs one scope-building pass that
// resolves references eagerly against the open scopes. The resulting index
// (scopes, declarations, references and skipped-site diagnostics) is written
// to SQLite.
//
// # Usage
//
//	e, err := lexiscope.New(".lexiscope.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	err = e.IndexDirectory(ctx, "path/to/project")
//
//	q := e.Query()
//	c, err := q.ClassifyAt("main.go", 9, 4)
//
// # Query API
//
// The [QueryBuilder] returned by [Engine.Query] answers positional
// questions over the stored index:
//
//   - [QueryBuilder.ClassifyAt] reports what the identifier at a position is.
//   - [QueryBuilder.DefinitionAt] finds the declaration an identifier binds to.
//   - [QueryBuilder.OccurrencesAt] lists the declaration and all references
//     bound to the same name, for "highlight all occurrences".
//   - [QueryBuilder.Tokens] returns the highlight tokens of a file.
//
// Lines and columns are zero-based; columns count bytes.
//
// # Incremental Indexing
//
// [Engine.IndexFiles] skips files whose content hash is unchanged and
// resolves changed files from scratch. When a language's descriptor changes
// (see [Engine.DescriptorsChanged]) every file of that language is resolved
// again on the next run. [Engine.Analyze] resolves a buffer in memory
// without touching the database.
//
// # Descriptors
//
// Go ships as a built-in table. Python is described by an embedded YAML
// file and JavaScript by an embedded Risor script; [WithDescriptorDir]
// points the Engine at a directory whose descriptors take precedence.
package lexiscope
