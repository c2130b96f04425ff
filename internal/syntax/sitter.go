package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parse parses src with the given tree-sitter grammar and copies the result
// into a Tree. The parser's own tree is closed before returning.
func Parse(ctx context.Context, language string, grammar *sitter.Language, src []byte) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(grammar)

	st, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("syntax: parse %s: %w", language, err)
	}
	defer st.Close()

	return FromSitter(language, src, st.RootNode()), nil
}

// FromSitter copies the subtree rooted at root into a new Tree. Anonymous
// tokens are kept so that rules can inspect operators such as ":=".
func FromSitter(language string, src []byte, root *sitter.Node) *Tree {
	t := New(language, src)
	if root == nil {
		return t
	}

	cursor := sitter.NewTreeCursor(root)
	defer cursor.Close()

	parent := t.Add(NoNode, convert(cursor.CurrentNode(), ""))
	if !cursor.GoToFirstChild() {
		return t
	}
	for {
		id := t.Add(parent, convert(cursor.CurrentNode(), cursor.CurrentFieldName()))
		if cursor.GoToFirstChild() {
			parent = id
			continue
		}
		for !cursor.GoToNextSibling() {
			if !cursor.GoToParent() {
				return t
			}
			parent = t.nodes[parent].Parent
			if !parent.IsValid() {
				return t
			}
		}
	}
}

func convert(n *sitter.Node, field string) Node {
	sp, ep := n.StartPoint(), n.EndPoint()
	return Node{
		Kind:       n.Type(),
		Field:      field,
		Named:      n.IsNamed(),
		Missing:    n.IsMissing(),
		StartByte:  n.StartByte(),
		EndByte:    n.EndByte(),
		StartPoint: Point{Row: sp.Row, Column: sp.Column},
		EndPoint:   Point{Row: ep.Row, Column: ep.Column},
	}
}
