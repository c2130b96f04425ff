package scope

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"fortio.org/safecast"

	"github.com/jward/lexiscope/internal/grammar"
	"github.com/jward/lexiscope/internal/syntax"
)

// Option configures a resolution pass.
type Option func(*builder)

// WithLogger sets the logger that receives skipped-site warnings.
func WithLogger(l *slog.Logger) Option {
	return func(b *builder) {
		if l != nil {
			b.log = l
		}
	}
}

// siteKey identifies one declaration spec applied to one node. Header specs
// use their index; the declaration rule of a node uses -1.
type siteKey struct {
	node syntax.NodeID
	spec int
}

type builder struct {
	tree *syntax.Tree
	desc *grammar.Descriptor
	log  *slog.Logger
	ix   *Index

	stack []ScopeID
	// visible maps each scope to the declaration each name currently binds to.
	visible []map[string]DeclID
	// pending holds point-visibility declarations keyed by the node whose
	// exit makes them visible.
	pending map[syntax.NodeID][]DeclID
	// names marks declaration name nodes and blank names so they are not
	// resolved again as references.
	names map[syntax.NodeID]bool
	done  map[siteKey]bool
	// into is set when some rule registers names outside the current scope,
	// which forces the hoisting scan into nested scopes.
	into bool
}

// Build runs one resolution pass over tree with the rules of desc. The pass
// never fails: malformed declaration sites are skipped and reported through
// Index.Diagnostics.
func Build(tree *syntax.Tree, desc *grammar.Descriptor, opts ...Option) *Index {
	b := &builder{
		tree: tree,
		desc: desc,
		log:  slog.New(slog.DiscardHandler),
		ix: &Index{
			tree:       tree,
			desc:       desc,
			scopes:     make([]Scope, 1, 16),
			decls:      make([]Decl, 1, 64),
			declByNode: make(map[syntax.NodeID]DeclID),
			refByNode:  make(map[syntax.NodeID]int),
		},
		visible: make([]map[string]DeclID, 1, 16),
		pending: make(map[syntax.NodeID][]DeclID),
		names:   make(map[syntax.NodeID]bool),
		done:    make(map[siteKey]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, r := range desc.Rules {
		if r.Decl != nil && len(r.Decl.Into) > 0 {
			b.into = true
		}
		if r.Scope != nil {
			for _, h := range r.Scope.Header {
				if len(h.Into) > 0 {
					b.into = true
				}
			}
		}
	}

	root := tree.Root()
	if root.IsValid() {
		n := tree.Node(root)
		spec := &grammar.ScopeSpec{Label: "file"}
		if r, ok := desc.Lookup(n.Field, n.Kind); ok && r.Role == grammar.RoleScope {
			spec = r.Scope
		}
		b.openScope(root, spec)
		b.flush(root)
	}
	b.finish()
	return b.ix
}

func (b *builder) top() ScopeID { return b.stack[len(b.stack)-1] }

func (b *builder) visit(id syntax.NodeID) {
	n := b.tree.Node(id)
	rule, ok := b.desc.Lookup(n.Field, n.Kind)
	if !ok {
		b.visitChildren(id)
		b.flush(id)
		return
	}
	switch rule.Role {
	case grammar.RoleIgnore:
	case grammar.RoleReference:
		b.reference(id)
	case grammar.RoleMember:
		b.member(id, rule.Member)
	case grammar.RoleScope:
		if b.transparent(id, rule.Scope) {
			b.visitChildren(id)
		} else {
			b.openScope(id, rule.Scope)
		}
	case grammar.RoleDeclaration:
		b.declaration(id, rule.Decl)
	default:
		b.visitChildren(id)
	}
	b.flush(id)
}

func (b *builder) visitChildren(id syntax.NodeID) {
	for _, c := range b.tree.Node(id).Children {
		b.visit(c)
	}
}

// flush makes the declarations waiting on id visible.
func (b *builder) flush(id syntax.NodeID) {
	ds, ok := b.pending[id]
	if !ok {
		return
	}
	delete(b.pending, id)
	for _, d := range ds {
		decl := &b.ix.decls[d]
		b.visible[decl.Scope][decl.Name] = d
	}
}

func (b *builder) transparent(id syntax.NodeID, spec *grammar.ScopeSpec) bool {
	if len(spec.TransparentUnder) == 0 {
		return false
	}
	parent := b.tree.Node(id).Parent
	return parent.IsValid() && slices.Contains(spec.TransparentUnder, b.tree.Kind(parent))
}

func (b *builder) openScope(id syntax.NodeID, spec *grammar.ScopeSpec) {
	n := b.tree.Node(id)
	value, err := safecast.Conv[uint32](len(b.ix.scopes))
	if err != nil {
		panic(fmt.Errorf("scope arena overflow: %w", err))
	}
	sid := ScopeID(value)
	var parent ScopeID
	depth := 0
	if len(b.stack) > 0 {
		parent = b.top()
		depth = b.ix.scopes[parent].Depth + 1
		b.ix.scopes[parent].Children = append(b.ix.scopes[parent].Children, sid)
	}
	b.ix.scopes = append(b.ix.scopes, Scope{
		ID:     sid,
		Parent: parent,
		Node:   id,
		Label:  spec.Label,
		Depth:  depth,
		Hoist:  spec.Hoist,
		Opaque: spec.Opaque,
		Start:  n.StartByte,
		End:    n.EndByte,
	})
	b.visible = append(b.visible, make(map[string]DeclID))
	b.stack = append(b.stack, sid)

	for i := range spec.Header {
		h := &spec.Header[i]
		if !b.applies(id, h) {
			continue
		}
		target := sid
		switch {
		case h.Outer && parent.IsValid():
			target = parent
		case len(h.Into) > 0:
			target = b.intoTarget(h)
		}
		b.declare(id, i, h, target)
	}
	b.hoist(sid, id)
	b.visitChildren(id)

	b.stack = b.stack[:len(b.stack)-1]
}

func (b *builder) declaration(id syntax.NodeID, spec *grammar.DeclSpec) {
	if !b.applies(id, spec) {
		b.visitChildren(id)
		return
	}
	b.declare(id, -1, spec, b.intoTarget(spec))
	for _, c := range b.tree.Node(id).Children {
		if slices.Contains(spec.Skip, b.tree.Node(c).Field) {
			continue
		}
		b.visit(c)
	}
}

// applies reports whether a declaration site satisfies its token requirement.
func (b *builder) applies(id syntax.NodeID, spec *grammar.DeclSpec) bool {
	return len(spec.Requires) == 0 || b.tree.HasToken(id, spec.Requires...)
}

// intoTarget returns the scope a declaration registers in during traversal.
func (b *builder) intoTarget(spec *grammar.DeclSpec) ScopeID {
	if len(spec.Into) == 0 {
		return b.top()
	}
	for i := len(b.stack) - 1; i >= 0; i-- {
		if slices.Contains(spec.Into, b.ix.scopes[b.stack[i]].Label) {
			return b.stack[i]
		}
	}
	return b.stack[0]
}

func (b *builder) member(id syntax.NodeID, spec *grammar.MemberSpec) {
	if b.excepted(id, spec) {
		b.visitChildren(id)
		return
	}
	excluded := b.memberChild(id, spec)
	for _, c := range b.tree.Node(id).Children {
		if c != excluded {
			b.visit(c)
		}
	}
}

func (b *builder) memberChild(id syntax.NodeID, spec *grammar.MemberSpec) syntax.NodeID {
	if spec.Field != "" {
		if c := b.tree.ChildByField(id, spec.Field); c.IsValid() {
			return c
		}
	}
	if spec.Positional {
		named := b.tree.NamedChildren(id)
		if spec.Index >= 0 && spec.Index < len(named) {
			return named[spec.Index]
		}
	}
	return syntax.NoNode
}

// excepted reports whether a member site matches one of the rule's Unless
// conditions.
func (b *builder) excepted(id syntax.NodeID, spec *grammar.MemberSpec) bool {
	for i := range spec.Unless {
		if b.matches(id, &spec.Unless[i]) {
			return true
		}
	}
	return false
}

func (b *builder) matches(id syntax.NodeID, c *grammar.Condition) bool {
	cur := id
	for _, kind := range c.Up {
		cur = b.tree.Node(cur).Parent
		if !cur.IsValid() || b.tree.Kind(cur) != kind {
			return false
		}
	}
	if c.Field == "" {
		return false
	}
	for f := range strings.SplitSeq(c.Field, ".") {
		cur = b.tree.ChildByField(cur, f)
		if !cur.IsValid() {
			return false
		}
	}
	return b.tree.Kind(cur) == c.Kind
}

func (b *builder) reference(id syntax.NodeID) {
	if b.names[id] {
		return
	}
	name := b.tree.Text(id)
	if name == "" || b.desc.IsBlank(name) || b.tree.Node(id).Missing {
		return
	}
	b.addRef(id, name, b.top(), b.resolve(name))
}

// resolve walks the open scopes innermost first. Opaque scopes only count
// when they are the innermost one.
func (b *builder) resolve(name string) DeclID {
	for i := len(b.stack) - 1; i >= 0; i-- {
		s := b.stack[i]
		if i != len(b.stack)-1 && b.ix.scopes[s].Opaque {
			continue
		}
		if d, ok := b.visible[s][name]; ok {
			return d
		}
	}
	return 0
}

func (b *builder) addRef(id syntax.NodeID, name string, scope ScopeID, decl DeclID) {
	class := ReferenceGlobal
	if decl.IsValid() {
		d := &b.ix.decls[decl]
		d.Refs = append(d.Refs, id)
		if !b.ix.scopes[d.Scope].IsRoot() {
			class = ReferenceLocal
		}
	}
	b.names[id] = true
	b.ix.refByNode[id] = len(b.ix.refs)
	b.ix.refs = append(b.ix.refs, Ref{Node: id, Name: name, Scope: scope, Decl: decl, Class: class})
}

// declare extracts the names of one declaration site and registers them in
// target. A site is only processed once even if both the hoisting scan and
// the traversal reach it.
func (b *builder) declare(site syntax.NodeID, idx int, spec *grammar.DeclSpec, target ScopeID) {
	key := siteKey{node: site, spec: idx}
	if b.done[key] {
		return
	}
	b.done[key] = true

	names, diag := b.extract(site, spec)
	if diag != nil {
		b.skip(*diag)
		return
	}
	if n := len(names); (spec.Max > 0 && n > spec.Max) || n < spec.Min {
		b.skip(Diagnostic{
			Node:    site,
			Kind:    DiagArity,
			Message: fmt.Sprintf("%s declares %d names, want %d..%d", b.tree.Kind(site), n, spec.Min, spec.Max),
		})
		return
	}

	scope := &b.ix.scopes[target]
	throughout := spec.Visibility == grammar.VisibleThroughout || scope.Hoist
	point := site
	if spec.After != "" {
		if c := b.tree.ChildByField(site, spec.After); c.IsValid() {
			point = c
		}
	}

	for _, nm := range names {
		if b.names[nm] {
			continue
		}
		b.names[nm] = true
		text := b.tree.Text(nm)
		if b.desc.IsBlank(text) {
			continue
		}
		if spec.Redeclare == grammar.RedeclareReference {
			if d, ok := b.visible[target][text]; ok {
				b.addRef(nm, text, b.top(), d)
				continue
			}
		}
		d := b.newDecl(nm, site, text, target, spec)
		if throughout {
			b.ix.decls[d].Visibility = grammar.VisibleThroughout
			b.ix.decls[d].Point = scope.Start
			b.visible[target][text] = d
		} else {
			b.ix.decls[d].Point = b.tree.Node(point).EndByte
			b.pending[point] = append(b.pending[point], d)
		}
	}
}

func (b *builder) newDecl(nm, site syntax.NodeID, name string, scope ScopeID, spec *grammar.DeclSpec) DeclID {
	value, err := safecast.Conv[uint32](len(b.ix.decls))
	if err != nil {
		panic(fmt.Errorf("declaration arena overflow: %w", err))
	}
	id := DeclID(value)
	b.ix.decls = append(b.ix.decls, Decl{
		ID:         id,
		Name:       name,
		NameNode:   nm,
		Site:       site,
		Scope:      scope,
		Visibility: spec.Visibility,
		Tag:        spec.Tag,
	})
	b.ix.scopes[scope].Decls = append(b.ix.scopes[scope].Decls, id)
	b.ix.declByNode[nm] = id
	return id
}

func (b *builder) skip(d Diagnostic) {
	b.ix.diags = append(b.ix.diags, d)
	n := b.tree.Node(d.Node)
	b.log.Warn("scope.skip_site",
		"language", b.tree.Language,
		"kind", d.Kind,
		"node", n.Kind,
		"at", n.StartPoint.String(),
		"message", d.Message,
	)
}

// finish sorts per-declaration reference lists into source order. References
// recorded by the hoisting scan arrive ahead of the traversal.
func (b *builder) finish() {
	start := func(id syntax.NodeID) uint32 { return b.tree.Node(id).StartByte }
	slices.SortStableFunc(b.ix.refs, func(x, y Ref) int { return cmp.Compare(start(x.Node), start(y.Node)) })
	for i, r := range b.ix.refs {
		b.ix.refByNode[r.Node] = i
	}
	for i := range b.ix.decls {
		refs := b.ix.decls[i].Refs
		slices.SortFunc(refs, func(x, y syntax.NodeID) int { return cmp.Compare(start(x), start(y)) })
	}
}
