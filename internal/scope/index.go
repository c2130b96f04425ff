// Package scope builds lexical scope trees over syntax trees and resolves
// every identifier occurrence to the declaration it binds to.
package scope

import (
	"fmt"
	"slices"

	"github.com/jward/lexiscope/internal/grammar"
	"github.com/jward/lexiscope/internal/syntax"
)

// ScopeID identifies a scope inside an Index. Zero means "no scope".
type ScopeID uint32

// IsValid reports whether id refers to a scope.
func (id ScopeID) IsValid() bool { return id != 0 }

// DeclID identifies a declaration inside an Index. Zero means "no declaration".
type DeclID uint32

// IsValid reports whether id refers to a declaration.
func (id DeclID) IsValid() bool { return id != 0 }

// Class is the classification of one syntax node.
type Class uint8

const (
	NotApplicable Class = iota
	Declaration
	ReferenceLocal
	ReferenceGlobal
)

func (c Class) String() string {
	switch c {
	case Declaration:
		return "declaration"
	case ReferenceLocal:
		return "local"
	case ReferenceGlobal:
		return "global"
	default:
		return "none"
	}
}

// ParseClass is the inverse of Class.String.
func ParseClass(s string) (Class, error) {
	for _, c := range []Class{NotApplicable, Declaration, ReferenceLocal, ReferenceGlobal} {
		if c.String() == s {
			return c, nil
		}
	}
	return NotApplicable, fmt.Errorf("unknown class %q", s)
}

// Scope is one lexical scope.
type Scope struct {
	ID       ScopeID
	Parent   ScopeID
	Node     syntax.NodeID
	Label    string
	Depth    int
	Hoist    bool
	Opaque   bool
	Start    uint32
	End      uint32
	Children []ScopeID
	Decls    []DeclID
}

// IsRoot reports whether s is the file-level scope.
func (s *Scope) IsRoot() bool { return !s.Parent.IsValid() }

// Decl is one declared name.
type Decl struct {
	ID         DeclID
	Name       string
	NameNode   syntax.NodeID
	Site       syntax.NodeID
	Scope      ScopeID
	Visibility grammar.Visibility
	// Point is the byte offset from which the declaration binds references.
	// For visible-throughout declarations it is the start of the scope.
	Point uint32
	Tag   string
	Refs  []syntax.NodeID
}

// Ref is one resolved reference.
type Ref struct {
	Node  syntax.NodeID
	Name  string
	Scope ScopeID
	Decl  DeclID
	Class Class
}

// Diagnostic records a declaration site that was skipped.
type Diagnostic struct {
	Node    syntax.NodeID
	Kind    string
	Message string
}

// Diagnostic kinds.
const (
	DiagMissingField = "missing_field"
	DiagArity        = "arity"
	DiagMissingName  = "missing_name"
)

// Classification is the answer to Index.Classify.
type Classification struct {
	Class Class
	// Decl is the node's own declaration for Declaration, the bound
	// declaration for references (zero when none was found) and zero
	// otherwise.
	Decl  DeclID
	Scope ScopeID
}

// Index is the immutable result of one resolution pass over one tree.
type Index struct {
	tree   *syntax.Tree
	desc   *grammar.Descriptor
	scopes []Scope // index 0 reserved
	decls  []Decl  // index 0 reserved
	refs   []Ref   // source order

	declByNode map[syntax.NodeID]DeclID
	refByNode  map[syntax.NodeID]int
	diags      []Diagnostic
}

// Tree returns the syntax tree the index was built from.
func (ix *Index) Tree() *syntax.Tree { return ix.tree }

// Descriptor returns the descriptor used to build the index.
func (ix *Index) Descriptor() *grammar.Descriptor { return ix.desc }

// Root returns the file-level scope.
func (ix *Index) Root() ScopeID {
	if len(ix.scopes) < 2 {
		return 0
	}
	return 1
}

// Scope returns the scope for id, or nil.
func (ix *Index) Scope(id ScopeID) *Scope {
	if !id.IsValid() || int(id) >= len(ix.scopes) {
		return nil
	}
	return &ix.scopes[id]
}

// Scopes returns all scopes in creation (pre-order) order.
func (ix *Index) Scopes() []Scope {
	if len(ix.scopes) < 2 {
		return nil
	}
	return ix.scopes[1:]
}

// Decl returns the declaration for id, or nil.
func (ix *Index) Decl(id DeclID) *Decl {
	if !id.IsValid() || int(id) >= len(ix.decls) {
		return nil
	}
	return &ix.decls[id]
}

// Decls returns all declarations in registration order.
func (ix *Index) Decls() []Decl {
	if len(ix.decls) < 2 {
		return nil
	}
	return ix.decls[1:]
}

// Refs returns all references in source order.
func (ix *Index) Refs() []Ref { return ix.refs }

// Diagnostics returns the declaration sites skipped during the pass.
func (ix *Index) Diagnostics() []Diagnostic { return ix.diags }

// Classify reports what node is: a declaration, a local or global reference,
// or neither.
func (ix *Index) Classify(node syntax.NodeID) Classification {
	if d, ok := ix.declByNode[node]; ok {
		return Classification{Class: Declaration, Decl: d, Scope: ix.decls[d].Scope}
	}
	if i, ok := ix.refByNode[node]; ok {
		r := ix.refs[i]
		return Classification{Class: r.Class, Decl: r.Decl, Scope: r.Scope}
	}
	return Classification{Class: NotApplicable}
}

// DeclarationsInScope returns the declarations owned by id in insertion order.
func (ix *Index) DeclarationsInScope(id ScopeID) []DeclID {
	s := ix.Scope(id)
	if s == nil {
		return nil
	}
	return slices.Clone(s.Decls)
}

// ReferencesOf returns the reference nodes bound to id in source order.
func (ix *Index) ReferencesOf(id DeclID) []syntax.NodeID {
	d := ix.Decl(id)
	if d == nil {
		return nil
	}
	return slices.Clone(d.Refs)
}

// Occurrences returns the declaration name node and every reference bound to
// the same declaration as node, in source order. It returns nil for nodes that
// are not bound to a declaration.
func (ix *Index) Occurrences(node syntax.NodeID) []syntax.NodeID {
	c := ix.Classify(node)
	d := ix.Decl(c.Decl)
	if d == nil {
		return nil
	}
	out := make([]syntax.NodeID, 0, len(d.Refs)+1)
	out = append(out, d.NameNode)
	out = append(out, d.Refs...)
	slices.SortFunc(out, func(a, b syntax.NodeID) int {
		return int(ix.tree.Node(a).StartByte) - int(ix.tree.Node(b).StartByte)
	})
	return out
}

// IsGlobal reports whether a node's classification renders as global: a
// global reference, or a declaration owned by the root scope.
func (ix *Index) IsGlobal(c Classification) bool {
	switch c.Class {
	case ReferenceGlobal:
		return true
	case Declaration:
		s := ix.Scope(c.Scope)
		return s != nil && s.IsRoot()
	}
	return false
}

// ScopeAt returns the innermost scope whose node covers offset.
func (ix *Index) ScopeAt(offset uint32) ScopeID {
	cur := ix.Root()
	if !cur.IsValid() {
		return 0
	}
	for {
		next := ScopeID(0)
		for _, c := range ix.scopes[cur].Children {
			s := &ix.scopes[c]
			if s.Start <= offset && offset < s.End {
				next = c
				break
			}
		}
		if !next.IsValid() {
			return cur
		}
		cur = next
	}
}

// Lookup resolves name as if it were referenced at offset inside scope,
// using only the finished index. It returns zero when no enclosing scope
// binds the name at that point.
func (ix *Index) Lookup(scope ScopeID, name string, offset uint32) DeclID {
	for s := ix.Scope(scope); s != nil; s = ix.Scope(s.Parent) {
		if s.Opaque && s.ID != scope {
			continue
		}
		var best *Decl
		for _, id := range s.Decls {
			d := &ix.decls[id]
			if d.Name != name || d.Point > offset {
				continue
			}
			if best == nil || d.Point > best.Point || (d.Point == best.Point && d.ID > best.ID) {
				best = d
			}
		}
		if best != nil {
			return best.ID
		}
	}
	return 0
}
