// Package server exposes the resolution index as MCP tools.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jward/lexiscope"
	"github.com/jward/lexiscope/internal/highlight"
	"github.com/jward/lexiscope/internal/runtime"
)

// Engine is the part of lexiscope.Engine the handler needs.
type Engine interface {
	Query() *lexiscope.QueryBuilder
	IndexFiles(ctx context.Context, paths []string) error
	IndexDirectory(ctx context.Context, root string) error
}

// Handler turns MCP tool calls into engine queries. Every positional call
// first re-indexes its file, which is a hash comparison when the file has
// not changed.
type Handler struct {
	engine Engine
	log    *slog.Logger
}

// NewHandler creates a Handler. A nil logger discards.
func NewHandler(engine Engine, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Handler{engine: engine, log: log}
}

type position struct {
	path      string
	line, col int
}

func (h *Handler) position(ctx context.Context, req mcp.CallToolRequest) (position, *mcp.CallToolResult) {
	path, res := h.file(ctx, req)
	if res != nil {
		return position{}, res
	}
	line, err := req.RequireInt("line")
	if err != nil || line < 0 {
		return position{}, mcp.NewToolResultError("line must be a non-negative number")
	}
	col, err := req.RequireInt("col")
	if err != nil || col < 0 {
		return position{}, mcp.NewToolResultError("col must be a non-negative number")
	}
	return position{path: path, line: line, col: col}, nil
}

// file reads the path argument, makes it absolute and brings its index up
// to date.
func (h *Handler) file(ctx context.Context, req mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	raw, err := req.RequireString("path")
	if err != nil {
		return "", mcp.NewToolResultError("path is required")
	}
	path, err := filepath.Abs(raw)
	if err != nil {
		return "", mcp.NewToolResultError(fmt.Sprintf("invalid path: %v", err))
	}
	if _, ok := runtime.LanguageForFile(path); !ok {
		return "", mcp.NewToolResultError(fmt.Sprintf("unsupported file type: %s", raw))
	}
	if err := h.engine.IndexFiles(ctx, []string{path}); err != nil {
		return "", mcp.NewToolResultError(fmt.Sprintf("failed to index %s: %v", raw, err))
	}
	return path, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

func notFound(p position) *mcp.CallToolResult {
	return mcp.NewToolResultText(fmt.Sprintf("no identifier at %s:%d:%d", p.path, p.line, p.col))
}

// Classify handles the classify tool.
func (h *Handler) Classify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, res := h.position(ctx, req)
	if res != nil {
		return res, nil
	}
	h.log.Debug("mcp.classify", "path", p.path, "line", p.line, "col", p.col)
	c, err := h.engine.Query().ClassifyAt(p.path, p.line, p.col)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if c == nil {
		return notFound(p), nil
	}
	return jsonResult(c)
}

// Definition handles the definition tool.
func (h *Handler) Definition(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, res := h.position(ctx, req)
	if res != nil {
		return res, nil
	}
	h.log.Debug("mcp.definition", "path", p.path, "line", p.line, "col", p.col)
	q := h.engine.Query()
	c, err := q.ClassifyAt(p.path, p.line, p.col)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if c == nil {
		return notFound(p), nil
	}
	loc, err := q.DefinitionAt(p.path, p.line, p.col)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if loc == nil {
		return mcp.NewToolResultText(fmt.Sprintf("%s is global: no declaration in this file", c.Name)), nil
	}
	return jsonResult(loc)
}

// Occurrences handles the occurrences tool.
func (h *Handler) Occurrences(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, res := h.position(ctx, req)
	if res != nil {
		return res, nil
	}
	h.log.Debug("mcp.occurrences", "path", p.path, "line", p.line, "col", p.col)
	locs, err := h.engine.Query().OccurrencesAt(p.path, p.line, p.col)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if locs == nil {
		locs = []lexiscope.Location{}
	}
	return jsonResult(locs)
}

// Tokens handles the tokens tool.
func (h *Handler) Tokens(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, res := h.file(ctx, req)
	if res != nil {
		return res, nil
	}
	toks, err := h.engine.Query().Tokens(path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	lang, _ := runtime.LanguageForFile(path)
	var buf bytes.Buffer
	if err := highlight.EncodeJSON(&buf, highlight.NewDocument(path, lang, toks)); err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// Index handles the index tool.
func (h *Handler) Index(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path is required"), nil
	}
	path, err := filepath.Abs(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid path: %v", err)), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("cannot index %s: %v", raw, err)), nil
	}
	if info.IsDir() {
		err = h.engine.IndexDirectory(ctx, path)
	} else {
		err = h.engine.IndexFiles(ctx, []string{path})
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("indexing %s: %v", raw, err)), nil
	}
	files, err := h.engine.Query().Files()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("indexed %s (%d files in index)", raw, len(files))), nil
}
