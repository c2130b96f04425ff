package scope

import (
	"slices"

	"github.com/jward/lexiscope/internal/grammar"
	"github.com/jward/lexiscope/internal/syntax"
)

// hoist pre-registers the declarations of scope sid that must bind before its
// body is traversed: visible-throughout ones, or every one when the scope
// hoists. It scans the same nodes, with the same rules, as the traversal
// that follows, so every site it handles is skipped there.
func (b *builder) hoist(sid ScopeID, node syntax.NodeID) {
	for _, c := range b.tree.Node(node).Children {
		b.scan(sid, c, nil)
	}
}

// scan looks for declarations targeting sid below id. crossed holds the
// labels of the nested scopes entered on the way down.
func (b *builder) scan(sid ScopeID, id syntax.NodeID, crossed []string) {
	if len(crossed) > 0 && !b.into {
		return
	}
	n := b.tree.Node(id)
	rule, ok := b.desc.Lookup(n.Field, n.Kind)
	if !ok {
		b.scanChildren(sid, id, crossed)
		return
	}
	switch rule.Role {
	case grammar.RoleIgnore, grammar.RoleReference:
	case grammar.RoleMember:
		excluded := syntax.NoNode
		if !b.excepted(id, rule.Member) {
			excluded = b.memberChild(id, rule.Member)
		}
		for _, c := range n.Children {
			if c != excluded {
				b.scan(sid, c, crossed)
			}
		}
	case grammar.RoleScope:
		if b.transparent(id, rule.Scope) {
			b.scanChildren(sid, id, crossed)
			return
		}
		for i := range rule.Scope.Header {
			h := &rule.Scope.Header[i]
			if !b.applies(id, h) || !b.hoistable(sid, h) {
				continue
			}
			// An into header registers past its own scope.
			if (h.Outer && len(crossed) == 0) || (len(h.Into) > 0 && b.targets(sid, h, crossed)) {
				b.declare(id, i, h, sid)
			}
		}
		b.scanChildren(sid, id, append(slices.Clone(crossed), rule.Scope.Label))
	case grammar.RoleDeclaration:
		spec := rule.Decl
		if !b.applies(id, spec) {
			b.scanChildren(sid, id, crossed)
			return
		}
		if b.targets(sid, spec, crossed) && b.hoistable(sid, spec) {
			b.declare(id, -1, spec, sid)
		}
		for _, c := range n.Children {
			if !slices.Contains(spec.Skip, b.tree.Node(c).Field) {
				b.scan(sid, c, crossed)
			}
		}
	default:
		b.scanChildren(sid, id, crossed)
	}
}

func (b *builder) scanChildren(sid ScopeID, id syntax.NodeID, crossed []string) {
	for _, c := range b.tree.Node(id).Children {
		b.scan(sid, c, crossed)
	}
}

func (b *builder) hoistable(sid ScopeID, spec *grammar.DeclSpec) bool {
	return spec.Visibility == grammar.VisibleThroughout || b.ix.scopes[sid].Hoist
}

// targets reports whether a declaration reached through crossed registers
// in sid. It mirrors intoTarget for the traversal.
func (b *builder) targets(sid ScopeID, spec *grammar.DeclSpec, crossed []string) bool {
	if len(spec.Into) == 0 {
		return len(crossed) == 0
	}
	for _, label := range crossed {
		if slices.Contains(spec.Into, label) {
			return false
		}
	}
	s := &b.ix.scopes[sid]
	return slices.Contains(spec.Into, s.Label) || s.IsRoot()
}
