// Package highlight turns a resolution index into highlight tokens and
// renders them as an annotated listing, JSON or msgpack.
package highlight

import (
	"fmt"
	"slices"

	"github.com/jward/lexiscope/internal/scope"
)

// Styles a token can be rendered with.
const (
	StyleLocal  = "local"
	StyleGlobal = "global"
	StyleResult = "result"
)

// NamedReturns is the rendering policy for named function results.
type NamedReturns string

const (
	// NamedReturnsLocal renders named results like any other local.
	NamedReturnsLocal NamedReturns = "local"
	// NamedReturnsDistinct gives named results their own style.
	NamedReturnsDistinct NamedReturns = "distinct"
)

// ParseNamedReturns validates a policy name; "" selects NamedReturnsLocal.
func ParseNamedReturns(s string) (NamedReturns, error) {
	switch NamedReturns(s) {
	case "", NamedReturnsLocal:
		return NamedReturnsLocal, nil
	case NamedReturnsDistinct:
		return NamedReturnsDistinct, nil
	}
	return "", fmt.Errorf("highlight: unknown named-returns policy %q", s)
}

// Position is a zero-based line and byte column.
type Position struct {
	Line int `json:"line" msgpack:"l"`
	Col  int `json:"col" msgpack:"c"`
}

// Token is one highlighted identifier occurrence.
type Token struct {
	Line   int    `json:"line" msgpack:"l"`
	Col    int    `json:"col" msgpack:"c"`
	EndCol int    `json:"end_col" msgpack:"e"`
	Name   string `json:"name" msgpack:"n"`
	// Class is the classification: declaration, local or global.
	Class string `json:"class" msgpack:"k"`
	Style string `json:"style" msgpack:"s"`
	Tag   string `json:"tag,omitempty" msgpack:"t,omitempty"`
	// Def is where the bound declaration's name starts, nil for
	// declarations and unbound references.
	Def *Position `json:"def,omitempty" msgpack:"d,omitempty"`
}

// StyleFor picks the style of an occurrence. tag is the tag of the
// occurrence's own or bound declaration, global reports whether the
// occurrence renders as global.
func StyleFor(tag string, global bool, policy NamedReturns) string {
	switch {
	case global:
		return StyleGlobal
	case tag == "result" && policy == NamedReturnsDistinct:
		return StyleResult
	default:
		return StyleLocal
	}
}

// FromIndex returns the tokens of every declaration and reference in ix in
// source order. Member names and other unclassified nodes produce none.
func FromIndex(ix *scope.Index, policy NamedReturns) []Token {
	tree := ix.Tree()
	var out []Token

	emit := func(c scope.Classification, name string, line, col, endCol int) {
		tok := Token{Line: line, Col: col, EndCol: endCol, Name: name, Class: c.Class.String()}
		if d := ix.Decl(c.Decl); d != nil {
			tok.Tag = d.Tag
			if c.Class != scope.Declaration {
				n := tree.Node(d.NameNode)
				tok.Def = &Position{Line: int(n.StartPoint.Row), Col: int(n.StartPoint.Column)}
			}
		}
		tok.Style = StyleFor(tok.Tag, ix.IsGlobal(c), policy)
		out = append(out, tok)
	}

	for _, d := range ix.Decls() {
		n := tree.Node(d.NameNode)
		if n == nil || n.StartPoint.Row != n.EndPoint.Row {
			continue
		}
		emit(ix.Classify(d.NameNode), d.Name, int(n.StartPoint.Row), int(n.StartPoint.Column), int(n.EndPoint.Column))
	}
	for _, r := range ix.Refs() {
		n := tree.Node(r.Node)
		if n == nil || n.StartPoint.Row != n.EndPoint.Row {
			continue
		}
		emit(ix.Classify(r.Node), r.Name, int(n.StartPoint.Row), int(n.StartPoint.Column), int(n.EndPoint.Column))
	}

	Sort(out)
	return out
}

// Sort orders tokens by position.
func Sort(tokens []Token) {
	slices.SortFunc(tokens, func(a, b Token) int {
		if a.Line != b.Line {
			return a.Line - b.Line
		}
		return a.Col - b.Col
	})
}
