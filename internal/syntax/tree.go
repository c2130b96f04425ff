// Package syntax holds an index-based copy of a parsed syntax tree.
//
// Nodes live in a flat arena and refer to each other by NodeID, so a Tree can
// be traversed, shared across goroutines and kept after the parser's own tree
// has been closed.
package syntax

import (
	"fmt"

	"fortio.org/safecast"
)

// NodeID identifies a node inside a Tree. The zero value means "no node".
type NodeID uint32

// NoNode is the sentinel for an absent node.
const NoNode NodeID = 0

// IsValid reports whether id refers to a node.
func (id NodeID) IsValid() bool { return id != NoNode }

// Point is a zero-based row/column position. Column counts bytes.
type Point struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

// Less reports whether p sorts before o.
func (p Point) Less(o Point) bool {
	if p.Row != o.Row {
		return p.Row < o.Row
	}
	return p.Column < o.Column
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row+1, p.Column+1)
}

// Node is one syntax node. Field is the name of the field this node occupies
// in its parent, or "" if it has none.
type Node struct {
	Kind       string
	Field      string
	Named      bool
	Missing    bool
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Parent     NodeID
	Children   []NodeID
}

// Tree is an immutable arena of nodes plus the source they were parsed from.
type Tree struct {
	Language string
	Source   []byte
	nodes    []Node
}

// New creates an empty tree for the given language and source.
func New(language string, src []byte) *Tree {
	return &Tree{
		Language: language,
		Source:   src,
		nodes:    make([]Node, 1, 64), // index 0 reserved for NoNode
	}
}

// Add appends n as the last child of parent and returns its ID. The first
// node added with parent NoNode becomes the root.
func (t *Tree) Add(parent NodeID, n Node) NodeID {
	value, err := safecast.Conv[uint32](len(t.nodes))
	if err != nil {
		panic(fmt.Errorf("syntax arena overflow: %w", err))
	}
	id := NodeID(value)
	n.Parent = parent
	n.Children = nil
	t.nodes = append(t.nodes, n)
	if parent.IsValid() {
		p := &t.nodes[parent]
		p.Children = append(p.Children, id)
	}
	return id
}

// Root returns the root node ID, or NoNode for an empty tree.
func (t *Tree) Root() NodeID {
	if len(t.nodes) < 2 {
		return NoNode
	}
	return 1
}

// Len reports the number of nodes, excluding the sentinel.
func (t *Tree) Len() int { return len(t.nodes) - 1 }

// Node returns the node for id, or nil when id is out of range.
func (t *Tree) Node(id NodeID) *Node {
	if !id.IsValid() || int(id) >= len(t.nodes) {
		return nil
	}
	return &t.nodes[id]
}

// Kind returns the node kind for id, or "" if it does not exist.
func (t *Tree) Kind(id NodeID) string {
	if n := t.Node(id); n != nil {
		return n.Kind
	}
	return ""
}

// Text returns the source slice covered by id.
func (t *Tree) Text(id NodeID) string {
	n := t.Node(id)
	if n == nil || int(n.EndByte) > len(t.Source) || n.StartByte > n.EndByte {
		return ""
	}
	return string(t.Source[n.StartByte:n.EndByte])
}

// ChildByField returns the first child occupying field, or NoNode.
func (t *Tree) ChildByField(id NodeID, field string) NodeID {
	n := t.Node(id)
	if n == nil {
		return NoNode
	}
	for _, c := range n.Children {
		if t.nodes[c].Field == field {
			return c
		}
	}
	return NoNode
}

// ChildrenByField returns every child occupying field, in source order.
func (t *Tree) ChildrenByField(id NodeID, field string) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	var out []NodeID
	for _, c := range n.Children {
		if t.nodes[c].Field == field {
			out = append(out, c)
		}
	}
	return out
}

// NamedChildren returns the named children of id.
func (t *Tree) NamedChildren(id NodeID) []NodeID {
	n := t.Node(id)
	if n == nil {
		return nil
	}
	out := make([]NodeID, 0, len(n.Children))
	for _, c := range n.Children {
		if t.nodes[c].Named {
			out = append(out, c)
		}
	}
	return out
}

// HasToken reports whether id has a direct anonymous child whose kind is one
// of tokens.
func (t *Tree) HasToken(id NodeID, tokens ...string) bool {
	n := t.Node(id)
	if n == nil {
		return false
	}
	for _, c := range n.Children {
		cn := &t.nodes[c]
		if cn.Named {
			continue
		}
		for _, tok := range tokens {
			if cn.Kind == tok {
				return true
			}
		}
	}
	return false
}

// Contains reports whether outer is an ancestor of, or equal to, inner.
func (t *Tree) Contains(outer, inner NodeID) bool {
	for id := inner; id.IsValid(); id = t.nodes[id].Parent {
		if id == outer {
			return true
		}
	}
	return false
}

// NodeAt returns the deepest node whose byte range contains offset. Ranges are
// half-open except that a zero-width node matches its own offset.
func (t *Tree) NodeAt(offset uint32) NodeID {
	cur := t.Root()
	if !cur.IsValid() {
		return NoNode
	}
	root := &t.nodes[cur]
	if offset < root.StartByte || offset > root.EndByte {
		return NoNode
	}
	for {
		next := NoNode
		for _, c := range t.nodes[cur].Children {
			cn := &t.nodes[c]
			if cn.StartByte <= offset && offset < cn.EndByte {
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

// OffsetOf converts a row/column point to a byte offset. The second result is
// false when the point lies outside the source.
func (t *Tree) OffsetOf(p Point) (uint32, bool) {
	var row uint32
	start := 0
	for i := 0; i < len(t.Source) && row < p.Row; i++ {
		if t.Source[i] == '\n' {
			row++
			start = i + 1
		}
	}
	if row != p.Row {
		return 0, false
	}
	off := start + int(p.Column)
	if off > len(t.Source) {
		return 0, false
	}
	for i := start; i < off; i++ {
		if t.Source[i] == '\n' {
			return 0, false
		}
	}
	v, err := safecast.Conv[uint32](off)
	if err != nil {
		return 0, false
	}
	return v, true
}

// NodeAtPoint is NodeAt for a row/column position.
func (t *Tree) NodeAtPoint(p Point) NodeID {
	off, ok := t.OffsetOf(p)
	if !ok {
		return NoNode
	}
	return t.NodeAt(off)
}

// Walk visits every node in pre-order. Returning false from fn skips the
// node's children.
func (t *Tree) Walk(fn func(id NodeID) bool) {
	root := t.Root()
	if !root.IsValid() {
		return
	}
	stack := []NodeID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(id) {
			continue
		}
		children := t.nodes[id].Children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}
