package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lexiscope"
	"github.com/jward/lexiscope/internal/highlight"
)

// source positions (zero-based): 2:9 count declared, 3:1 fmt,
// 3:13 count used.
const source = `package main

func run(count int) {
	fmt.Println(count)
}
`

type toolFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func setup(t *testing.T) (*Handler, string) {
	t.Helper()
	dir := t.TempDir()
	e, err := lexiscope.New(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte(source), 0644))
	return NewHandler(e, nil), path
}

func call(t *testing.T, fn toolFunc, args map[string]any) (string, bool) {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := fn(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text, res.IsError
}

func TestClassify(t *testing.T) {
	h, path := setup(t)

	out, isErr := call(t, h.Classify, map[string]any{"path": path, "line": float64(3), "col": float64(13)})
	require.False(t, isErr, out)

	var c lexiscope.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "count", c.Name)
	assert.Equal(t, "local", c.Class)
	assert.Equal(t, "parameter", c.Tag)
	require.NotNil(t, c.Definition)
	assert.Equal(t, 2, c.Definition.StartLine)
	assert.Equal(t, 9, c.Definition.StartCol)

	out, isErr = call(t, h.Classify, map[string]any{"path": path, "line": float64(3), "col": float64(1)})
	require.False(t, isErr, out)
	var global lexiscope.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &global))
	assert.Equal(t, "fmt", global.Name)
	assert.Equal(t, "global", global.Class)
	assert.Nil(t, global.Definition)
}

func TestClassify_NoIdentifier(t *testing.T) {
	h, path := setup(t)

	out, isErr := call(t, h.Classify, map[string]any{"path": path, "line": float64(4), "col": float64(0)})
	assert.False(t, isErr)
	assert.Contains(t, out, "no identifier at")
}

func TestClassify_BadArguments(t *testing.T) {
	h, path := setup(t)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing path", map[string]any{"line": float64(0), "col": float64(0)}, "path is required"},
		{"unsupported file", map[string]any{"path": "notes.txt", "line": float64(0), "col": float64(0)}, "unsupported file type"},
		{"missing line", map[string]any{"path": path, "col": float64(0)}, "line must be"},
		{"negative col", map[string]any{"path": path, "line": float64(0), "col": float64(-1)}, "col must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, isErr := call(t, h.Classify, tt.args)
			assert.True(t, isErr)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestDefinition(t *testing.T) {
	h, path := setup(t)

	out, isErr := call(t, h.Definition, map[string]any{"path": path, "line": float64(3), "col": float64(13)})
	require.False(t, isErr, out)
	var loc lexiscope.Location
	require.NoError(t, json.Unmarshal([]byte(out), &loc))
	assert.Equal(t, lexiscope.Location{File: path, StartLine: 2, StartCol: 9, EndLine: 2, EndCol: 14}, loc)

	out, isErr = call(t, h.Definition, map[string]any{"path": path, "line": float64(3), "col": float64(1)})
	assert.False(t, isErr)
	assert.Contains(t, out, "fmt is global")
}

func TestOccurrences(t *testing.T) {
	h, path := setup(t)

	out, isErr := call(t, h.Occurrences, map[string]any{"path": path, "line": float64(2), "col": float64(9)})
	require.False(t, isErr, out)
	var locs []lexiscope.Location
	require.NoError(t, json.Unmarshal([]byte(out), &locs))
	require.Len(t, locs, 2)
	assert.Equal(t, 2, locs[0].StartLine)
	assert.Equal(t, 3, locs[1].StartLine)

	out, isErr = call(t, h.Occurrences, map[string]any{"path": path, "line": float64(3), "col": float64(1)})
	require.False(t, isErr, out)
	assert.Equal(t, "[]", out)
}

func TestOccurrences_SeesEditedFile(t *testing.T) {
	h, path := setup(t)

	edited := "package main\n\nfunc run(count int) {\n\tcount++\n\tprintln(count)\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(edited), 0644))

	out, isErr := call(t, h.Occurrences, map[string]any{"path": path, "line": float64(2), "col": float64(9)})
	require.False(t, isErr, out)
	var locs []lexiscope.Location
	require.NoError(t, json.Unmarshal([]byte(out), &locs))
	assert.Len(t, locs, 3)
}

func TestTokens(t *testing.T) {
	h, path := setup(t)

	out, isErr := call(t, h.Tokens, map[string]any{"path": path})
	require.False(t, isErr, out)
	var doc highlight.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "go", doc.Language)
	assert.Equal(t, path, doc.Path)

	var names []string
	for _, tok := range doc.Tokens {
		names = append(names, tok.Name)
	}
	assert.Equal(t, []string{"run", "count", "fmt", "count"}, names)
}

func TestIndex(t *testing.T) {
	h, path := setup(t)
	dir := filepath.Dir(path)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.py"), []byte("def util():\n    pass\n"), 0644))

	out, isErr := call(t, h.Index, map[string]any{"path": dir})
	require.False(t, isErr, out)
	assert.Contains(t, out, "2 files in index")

	out, isErr = call(t, h.Index, map[string]any{"path": filepath.Join(dir, "missing")})
	assert.True(t, isErr)
	assert.Contains(t, out, "cannot index")
}

func TestNew_ListsTools(t *testing.T) {
	h, _ := setup(t)
	s := New(h)

	msg := json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	resp := s.HandleMessage(context.Background(), msg)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	for _, name := range []string{"classify", "definition", "occurrences", "tokens", "index"} {
		assert.Contains(t, string(b), `"name":"`+name+`"`)
	}
}
