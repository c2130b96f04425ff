package scope

import (
	"fmt"
	"slices"

	"github.com/jward/lexiscope/internal/grammar"
	"github.com/jward/lexiscope/internal/syntax"
)

// extract returns the name nodes bound by a declaration site in source
// order, or a diagnostic when the site is malformed.
func (b *builder) extract(site syntax.NodeID, spec *grammar.DeclSpec) ([]syntax.NodeID, *Diagnostic) {
	ns := &spec.Names
	roots := []syntax.NodeID{site}
	if len(ns.Through) > 0 {
		roots = roots[:0]
		for _, c := range b.tree.NamedChildren(site) {
			if slices.Contains(ns.Through, b.tree.Kind(c)) {
				roots = append(roots, c)
			}
		}
	}

	kinds := ns.NameKinds()
	var names []syntax.NodeID
	for _, r := range roots {
		var cands []syntax.NodeID
		if ns.Field != "" {
			cands = b.tree.ChildrenByField(r, ns.Field)
			if len(cands) == 0 && !spec.Optional {
				return nil, &Diagnostic{
					Node:    site,
					Kind:    DiagMissingField,
					Message: fmt.Sprintf("%s has no %q child", b.tree.Kind(r), ns.Field),
				}
			}
		} else {
			cands = b.tree.NamedChildren(r)
		}
		for _, c := range cands {
			names = b.collect(names, c, ns, kinds)
		}
	}

	for _, nm := range names {
		if n := b.tree.Node(nm); n.Missing || n.StartByte == n.EndByte {
			return nil, &Diagnostic{
				Node:    site,
				Kind:    DiagMissingName,
				Message: fmt.Sprintf("%s has a missing %s", b.tree.Kind(site), n.Kind),
			}
		}
	}
	return names, nil
}

func (b *builder) collect(names []syntax.NodeID, id syntax.NodeID, ns *grammar.NameSpec, kinds []string) []syntax.NodeID {
	kind := b.tree.Kind(id)
	if slices.Contains(kinds, kind) {
		return append(names, id)
	}
	for _, d := range ns.Descend {
		if d.Kind != kind {
			continue
		}
		var next []syntax.NodeID
		if d.Field != "" {
			next = b.tree.ChildrenByField(id, d.Field)
			if len(next) == 0 {
				// A later entry for the same kind may select another field.
				continue
			}
		} else {
			next = b.tree.NamedChildren(id)
		}
		if d.First && len(next) > 1 {
			next = next[:1]
		}
		for _, c := range next {
			names = b.collect(names, c, ns, kinds)
		}
		return names
	}
	return names
}
