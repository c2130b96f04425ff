package store

import (
	"fmt"

	"github.com/jward/lexiscope/internal/scope"
	"github.com/jward/lexiscope/internal/syntax"
)

// WriteIndex persists the scopes, declarations, references and diagnostics
// of ix as rows of fileID. Scopes are written in pre-order and declarations
// before references, so every parent or declaration ID is known by the time
// a row refers to it.
func WriteIndex(ds DataStore, fileID int64, ix *scope.Index) error {
	tree := ix.Tree()

	scopeIDs := make(map[scope.ScopeID]int64, len(ix.Scopes()))
	for _, sc := range ix.Scopes() {
		row := &Scope{
			FileID: fileID,
			Label:  sc.Label,
			Depth:  sc.Depth,
			Hoist:  sc.Hoist,
			Opaque: sc.Opaque,
		}
		if sc.Parent.IsValid() {
			parent, ok := scopeIDs[sc.Parent]
			if !ok {
				return fmt.Errorf("write index: scope %d has unwritten parent %d", sc.ID, sc.Parent)
			}
			row.ParentScopeID = &parent
		}
		row.StartLine, row.StartCol, row.EndLine, row.EndCol = span(tree, sc.Node)
		id, err := ds.InsertScope(row)
		if err != nil {
			return fmt.Errorf("write index: %w", err)
		}
		scopeIDs[sc.ID] = id
	}

	declIDs := make(map[scope.DeclID]int64, len(ix.Decls()))
	for _, d := range ix.Decls() {
		row := &Declaration{
			FileID:     fileID,
			ScopeID:    scopeIDs[d.Scope],
			Name:       d.Name,
			Tag:        d.Tag,
			Visibility: d.Visibility.String(),
			Point:      int(d.Point),
		}
		row.StartLine, row.StartCol, row.EndLine, row.EndCol = span(tree, d.NameNode)
		id, err := ds.InsertDeclaration(row)
		if err != nil {
			return fmt.Errorf("write index: declaration %q: %w", d.Name, err)
		}
		declIDs[d.ID] = id
	}

	for _, r := range ix.Refs() {
		row := &Reference{
			FileID:  fileID,
			ScopeID: scopeIDs[r.Scope],
			Name:    r.Name,
			Class:   r.Class.String(),
		}
		if r.Decl.IsValid() {
			id := declIDs[r.Decl]
			row.DeclarationID = &id
		}
		row.StartLine, row.StartCol, row.EndLine, row.EndCol = span(tree, r.Node)
		if _, err := ds.InsertReference(row); err != nil {
			return fmt.Errorf("write index: reference %q: %w", r.Name, err)
		}
	}

	for _, d := range ix.Diagnostics() {
		row := &Diagnostic{FileID: fileID, Kind: d.Kind, Message: d.Message}
		if n := tree.Node(d.Node); n != nil {
			row.Line, row.Col = int(n.StartPoint.Row), int(n.StartPoint.Column)
		}
		if _, err := ds.InsertDiagnostic(row); err != nil {
			return fmt.Errorf("write index: diagnostic: %w", err)
		}
	}
	return nil
}

func span(tree *syntax.Tree, id syntax.NodeID) (startLine, startCol, endLine, endCol int) {
	n := tree.Node(id)
	if n == nil {
		return 0, 0, 0, 0
	}
	return int(n.StartPoint.Row), int(n.StartPoint.Column), int(n.EndPoint.Row), int(n.EndPoint.Column)
}
