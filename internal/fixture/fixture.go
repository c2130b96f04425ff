// Package fixture reads caret-annotated source files and checks a resolution
// index against them.
//
// An annotation line is a comment directly under a code line whose carets
// point at identifiers in that line:
//
//	msg := "hi"
//	//  ^^
//	println(msg, p.Name)
//	//      ^^here ^^skip
//
// A bare "^^" expects a local rendering (a declaration in a nested scope or a
// local reference), "^^here" a global one (a global reference or a file-level
// declaration) and "^^skip" no classification at all.
package fixture

import (
	"fmt"
	"regexp"
	"strings"

	"fortio.org/safecast"

	"github.com/jward/lexiscope/internal/scope"
	"github.com/jward/lexiscope/internal/syntax"
)

// Mark is the expected rendering of one annotated identifier.
type Mark uint8

const (
	Local Mark = iota
	Global
	Skip
)

func (m Mark) String() string {
	switch m {
	case Global:
		return "global"
	case Skip:
		return "skip"
	default:
		return "local"
	}
}

// Expectation is one caret annotation.
type Expectation struct {
	At   syntax.Point
	Mark Mark
}

var markRe = regexp.MustCompile(`\^\^(here|skip)?`)

// CommentPrefix returns the line-comment prefix used by annotation lines.
func CommentPrefix(language string) string {
	if language == "python" {
		return "#"
	}
	return "//"
}

// isAnnotation reports whether line consists of the comment prefix followed
// by carets, marker words and spaces only.
func isAnnotation(line, prefix string) bool {
	if !strings.HasPrefix(line, prefix) {
		return false
	}
	rest := line[len(prefix):]
	if !strings.Contains(rest, "^^") {
		return false
	}
	return strings.TrimSpace(markRe.ReplaceAllString(rest, "")) == ""
}

// Parse extracts the expectations of src.
func Parse(src []byte, prefix string) []Expectation {
	lines := strings.Split(string(src), "\n")
	var out []Expectation
	code := -1
	for i, line := range lines {
		if !isAnnotation(line, prefix) {
			code = i
			continue
		}
		if code < 0 {
			continue
		}
		for _, m := range markRe.FindAllStringSubmatchIndex(line, -1) {
			mark := Local
			if m[2] >= 0 {
				switch line[m[2]:m[3]] {
				case "here":
					mark = Global
				case "skip":
					mark = Skip
				}
			}
			out = append(out, Expectation{
				At:   syntax.Point{Row: safecast.MustConv[uint32](code), Column: safecast.MustConv[uint32](m[0])},
				Mark: mark,
			})
		}
	}
	return out
}

// MarkOf returns the mark a classification renders as.
func MarkOf(ix *scope.Index, c scope.Classification) Mark {
	switch {
	case c.Class == scope.NotApplicable:
		return Skip
	case ix.IsGlobal(c):
		return Global
	default:
		return Local
	}
}

// Check compares ix against exps and returns one message per mismatch.
func Check(ix *scope.Index, exps []Expectation) []string {
	tree := ix.Tree()
	var failures []string
	for _, e := range exps {
		id := tree.NodeAtPoint(e.At)
		if !id.IsValid() {
			failures = append(failures, fmt.Sprintf("%s: no node", e.At))
			continue
		}
		got := MarkOf(ix, ix.Classify(id))
		if got != e.Mark {
			failures = append(failures, fmt.Sprintf("%s %q (%s): got %s, want %s",
				e.At, tree.Text(id), tree.Kind(id), got, e.Mark))
		}
	}
	return failures
}
