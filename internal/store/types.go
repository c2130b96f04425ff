package store

import "time"

// Persisted resolution types. Lines and columns are zero-based; columns
// count bytes, as in the parser's points.

type File struct {
	ID          int64
	Path        string
	Language    string
	Hash        string
	LineCount   int
	LastIndexed time.Time
}

type Scope struct {
	ID            int64
	FileID        int64
	ParentScopeID *int64
	Label         string
	Depth         int
	Hoist         bool
	Opaque        bool
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
}

type Declaration struct {
	ID         int64
	FileID     int64
	ScopeID    int64
	Name       string
	Tag        string
	Visibility string
	// Point is the byte offset from which the declaration binds.
	Point     int
	StartLine int
	StartCol  int
	EndLine   int
	EndCol    int
}

// Reference is one resolved identifier occurrence. DeclarationID is nil
// when no declaration in the file binds the name.
type Reference struct {
	ID            int64
	FileID        int64
	ScopeID       int64
	DeclarationID *int64
	Name          string
	Class         string
	StartLine     int
	StartCol      int
	EndLine       int
	EndCol        int
}

type Diagnostic struct {
	ID      int64
	FileID  int64
	Kind    string
	Message string
	Line    int
	Col     int
}

// Occurrence is a declaration or reference found at a position. Exactly one
// of Declaration and Reference is set.
type Occurrence struct {
	Declaration *Declaration
	Reference   *Reference
}
