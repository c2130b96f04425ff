package fixture

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jward/lexiscope/internal/syntax"
)

func TestParse(t *testing.T) {
	t.Parallel()
	src := "msg := \"hi\"\n//  ^^\nprintln(msg, p.Name)\n//      ^^here ^^skip\n// plain comment\n"

	got := Parse([]byte(src), "//")
	assert.Equal(t, []Expectation{
		{At: syntax.Point{Row: 0, Column: 4}, Mark: Local},
		{At: syntax.Point{Row: 2, Column: 8}, Mark: Global},
		{At: syntax.Point{Row: 2, Column: 15}, Mark: Skip},
	}, got)
}

func TestParse_StackedAnnotationsShareTheirCodeLine(t *testing.T) {
	t.Parallel()
	src := "def f(a, b):\n#     ^^\n#        ^^here\n"

	got := Parse([]byte(src), "#")
	assert.Equal(t, []Expectation{
		{At: syntax.Point{Row: 0, Column: 6}, Mark: Local},
		{At: syntax.Point{Row: 0, Column: 9}, Mark: Global},
	}, got)
}

func TestParse_LeadingAnnotationIsIgnored(t *testing.T) {
	t.Parallel()
	assert.Empty(t, Parse([]byte("// ^^\nx := 1\n"), "//"))
}

func TestIsAnnotation(t *testing.T) {
	t.Parallel()
	assert.True(t, isAnnotation("//   ^^ ^^here", "//"))
	assert.False(t, isAnnotation("// see ^^ above", "//"))
	assert.False(t, isAnnotation("x := 1 // ^^", "//"))
	assert.False(t, isAnnotation("# ^^", "//"))
}

func TestCommentPrefix(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "#", CommentPrefix("python"))
	assert.Equal(t, "//", CommentPrefix("go"))
	assert.Equal(t, "//", CommentPrefix("javascript"))
}

func TestMarkString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "local", Local.String())
	assert.Equal(t, "global", Global.String())
	assert.Equal(t, "skip", Skip.String())
}
