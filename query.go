package lexiscope

import (
	"fmt"

	"github.com/jward/lexiscope/internal/highlight"
	"github.com/jward/lexiscope/internal/store"
)

// QueryBuilder provides positional queries over the stored index.
type QueryBuilder struct {
	store        *store.Store
	namedReturns highlight.NamedReturns
}

// Location represents a source code position range. Lines and columns are
// zero-based; columns count bytes.
type Location struct {
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// Classification describes the identifier found at a position.
type Classification struct {
	Name string `json:"name"`
	// Class is "declaration", "local" or "global".
	Class string `json:"class"`
	// Style is how the identifier renders: "local", "global" or "result".
	Style    string   `json:"style"`
	Tag      string   `json:"tag,omitempty"`
	Location Location `json:"location"`
	// Definition locates the bound declaration's name. It is nil for references
	// that no declaration in the file binds.
	Definition    *Location `json:"definition,omitempty"`
	DeclarationID int64     `json:"declaration_id,omitempty"`
}

func declLocation(path string, d *store.Declaration) Location {
	return Location{File: path, StartLine: d.StartLine, StartCol: d.StartCol, EndLine: d.EndLine, EndCol: d.EndCol}
}

func refLocation(path string, r *store.Reference) Location {
	return Location{File: path, StartLine: r.StartLine, StartCol: r.StartCol, EndLine: r.EndLine, EndCol: r.EndCol}
}

// occurrenceAt finds the file and the occurrence at a position. Both are
// nil when the file is not indexed; the occurrence alone is nil when no
// identifier covers the position.
func (q *QueryBuilder) occurrenceAt(file string, line, col int) (*store.File, *store.Occurrence, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup file: %w", err)
	}
	if f == nil {
		return nil, nil, nil
	}
	occ, err := q.store.OccurrenceAt(f.ID, line, col)
	if err != nil {
		return nil, nil, err
	}
	return f, occ, nil
}

// isRootScope reports whether scopeID is a file-level scope.
func (q *QueryBuilder) isRootScope(scopeID int64) (bool, error) {
	s, err := q.store.ScopeByID(scopeID)
	if err != nil {
		return false, err
	}
	return s != nil && s.ParentScopeID == nil, nil
}

// ClassifyAt reports what the identifier at (file, line, col) is. It returns
// nil when the file is not indexed or no identifier covers the position.
func (q *QueryBuilder) ClassifyAt(file string, line, col int) (*Classification, error) {
	f, occ, err := q.occurrenceAt(file, line, col)
	if err != nil {
		return nil, fmt.Errorf("classify at: %w", err)
	}
	if occ == nil {
		return nil, nil
	}

	if d := occ.Declaration; d != nil {
		root, err := q.isRootScope(d.ScopeID)
		if err != nil {
			return nil, fmt.Errorf("classify at: %w", err)
		}
		return &Classification{
			Name:          d.Name,
			Class:         "declaration",
			Style:         highlight.StyleFor(d.Tag, root, q.namedReturns),
			Tag:           d.Tag,
			Location:      declLocation(f.Path, d),
			DeclarationID: d.ID,
		}, nil
	}

	r := occ.Reference
	c := &Classification{
		Name:     r.Name,
		Class:    r.Class,
		Location: refLocation(f.Path, r),
	}
	if r.DeclarationID != nil {
		d, err := q.store.DeclarationByID(*r.DeclarationID)
		if err != nil {
			return nil, fmt.Errorf("classify at: %w", err)
		}
		if d != nil {
			loc := declLocation(f.Path, d)
			c.Definition = &loc
			c.DeclarationID = d.ID
			c.Tag = d.Tag
		}
	}
	c.Style = highlight.StyleFor(c.Tag, r.Class == "global", q.namedReturns)
	return c, nil
}

// DefinitionAt finds the declaration the identifier at (file, line, col)
// binds to. A declaration is its own definition. It returns nil for global
// references without a declaration in the file and for positions with no
// identifier.
func (q *QueryBuilder) DefinitionAt(file string, line, col int) (*Location, error) {
	c, err := q.ClassifyAt(file, line, col)
	if err != nil {
		return nil, fmt.Errorf("definition at: %w", err)
	}
	switch {
	case c == nil:
		return nil, nil
	case c.Class == "declaration":
		return &c.Location, nil
	default:
		return c.Definition, nil
	}
}

// OccurrencesAt returns the declaration bound to the identifier at
// (file, line, col) together with all of its references, in source order.
// Unbound globals and positions without an identifier yield nil.
func (q *QueryBuilder) OccurrencesAt(file string, line, col int) ([]Location, error) {
	c, err := q.ClassifyAt(file, line, col)
	if err != nil {
		return nil, fmt.Errorf("occurrences at: %w", err)
	}
	if c == nil || c.DeclarationID == 0 {
		return nil, nil
	}
	return q.occurrences(c.DeclarationID)
}

func (q *QueryBuilder) occurrences(declID int64) ([]Location, error) {
	d, err := q.store.DeclarationByID(declID)
	if err != nil {
		return nil, fmt.Errorf("occurrences: %w", err)
	}
	if d == nil {
		return nil, nil
	}
	f, err := q.store.FileByID(d.FileID)
	if err != nil {
		return nil, fmt.Errorf("occurrences: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	refs, err := q.store.ReferencesToDeclaration(declID)
	if err != nil {
		return nil, fmt.Errorf("occurrences: %w", err)
	}

	decl := declLocation(f.Path, d)
	out := make([]Location, 0, len(refs)+1)
	placed := false
	for _, r := range refs {
		loc := refLocation(f.Path, r)
		if !placed && before(decl, loc) {
			out = append(out, decl)
			placed = true
		}
		out = append(out, loc)
	}
	if !placed {
		out = append(out, decl)
	}
	return out, nil
}

func before(a, b Location) bool {
	if a.StartLine != b.StartLine {
		return a.StartLine < b.StartLine
	}
	return a.StartCol < b.StartCol
}

// ReferencesTo returns the locations of all references bound to the
// declaration with the given ID, in source order.
func (q *QueryBuilder) ReferencesTo(declID int64) ([]Location, error) {
	d, err := q.store.DeclarationByID(declID)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	if d == nil {
		return nil, nil
	}
	f, err := q.store.FileByID(d.FileID)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	refs, err := q.store.ReferencesToDeclaration(declID)
	if err != nil {
		return nil, fmt.Errorf("references to: %w", err)
	}
	var out []Location
	for _, r := range refs {
		out = append(out, refLocation(f.Path, r))
	}
	return out, nil
}

// Globals returns the references of file that no declaration in the file
// binds, in source order.
func (q *QueryBuilder) Globals(file string) ([]*Reference, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("globals: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return q.store.UnboundReferences(f.ID)
}

// DeclarationsInScope returns the declarations owned by a scope in
// insertion order.
func (q *QueryBuilder) DeclarationsInScope(scopeID int64) ([]*Declaration, error) {
	return q.store.DeclarationsInScope(scopeID)
}

// ScopesByFile returns the scopes of file in pre-order, root first.
func (q *QueryBuilder) ScopesByFile(file string) ([]*Scope, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("scopes by file: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return q.store.ScopesByFile(f.ID)
}

// Diagnostics returns the declaration sites skipped while resolving file.
func (q *QueryBuilder) Diagnostics(file string) ([]*Diagnostic, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("diagnostics: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	return q.store.DiagnosticsByFile(f.ID)
}

// Files returns every indexed file ordered by path.
func (q *QueryBuilder) Files() ([]*File, error) {
	return q.store.Files()
}

// Summary returns the number of references of each class across the
// index, plus the number of declarations under "declaration".
func (q *QueryBuilder) Summary() (map[string]int, error) {
	return q.store.ClassCounts()
}

// Tokens returns the highlight tokens of an indexed file in source order,
// styled with the builder's named-returns policy. It returns nil for a file
// that is not indexed.
func (q *QueryBuilder) Tokens(file string) ([]Token, error) {
	f, err := q.store.FileByPath(file)
	if err != nil {
		return nil, fmt.Errorf("tokens: lookup file: %w", err)
	}
	if f == nil {
		return nil, nil
	}
	scopes, err := q.store.ScopesByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	decls, err := q.store.DeclarationsByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}
	refs, err := q.store.ReferencesByFile(f.ID)
	if err != nil {
		return nil, fmt.Errorf("tokens: %w", err)
	}

	root := make(map[int64]bool, len(scopes))
	for _, s := range scopes {
		root[s.ID] = s.ParentScopeID == nil
	}
	byID := make(map[int64]*store.Declaration, len(decls))

	var out []Token
	for _, d := range decls {
		byID[d.ID] = d
		if d.StartLine != d.EndLine {
			continue
		}
		out = append(out, Token{
			Line:   d.StartLine,
			Col:    d.StartCol,
			EndCol: d.EndCol,
			Name:   d.Name,
			Class:  "declaration",
			Style:  highlight.StyleFor(d.Tag, root[d.ScopeID], q.namedReturns),
			Tag:    d.Tag,
		})
	}
	for _, r := range refs {
		if r.StartLine != r.EndLine {
			continue
		}
		tok := Token{
			Line:   r.StartLine,
			Col:    r.StartCol,
			EndCol: r.EndCol,
			Name:   r.Name,
			Class:  r.Class,
		}
		if r.DeclarationID != nil {
			if d := byID[*r.DeclarationID]; d != nil {
				tok.Tag = d.Tag
				tok.Def = &highlight.Position{Line: d.StartLine, Col: d.StartCol}
			}
		}
		tok.Style = highlight.StyleFor(tok.Tag, r.Class == "global", q.namedReturns)
		out = append(out, tok)
	}
	highlight.Sort(out)
	return out, nil
}
