package server

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// positional adds the path/line/col arguments shared by the position tools.
func positional(name, description string) mcp.Tool {
	return mcp.NewTool(name,
		mcp.WithDescription(description),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the source file"),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("Zero-based line"),
		),
		mcp.WithNumber("col",
			mcp.Required(),
			mcp.Description("Zero-based byte column"),
		),
	)
}

// New builds the MCP server and registers its tools. Request handling is
// delegated to handler; this file only describes the protocol surface.
func New(handler *Handler) *server.MCPServer {
	s := server.NewMCPServer(
		"lexiscope",
		Version,
		server.WithToolCapabilities(false),
	)

	s.AddTool(positional("classify",
		"Classify the identifier at a position as a declaration, a local reference or a global reference, and report the declaration it binds to."),
		handler.Classify)
	s.AddTool(positional("definition",
		"Find the declaration the identifier at a position binds to. Globals declared outside the file have none."),
		handler.Definition)
	s.AddTool(positional("occurrences",
		"List the declaration and every reference of the name bound at a position, in source order."),
		handler.Occurrences)

	s.AddTool(mcp.NewTool("tokens",
		mcp.WithDescription("Return the semantic highlight tokens of a file as JSON."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path of the source file"),
		),
	), handler.Tokens)

	s.AddTool(mcp.NewTool("index",
		mcp.WithDescription("Index a file or a directory tree so later queries see its current contents."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File or directory to index"),
		),
	), handler.Index)

	return s
}
