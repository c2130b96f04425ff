package main

import (
	"fmt"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/jward/lexiscope/internal/server"
)

func (a *app) mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the index as MCP tools over stdio",
		Long:  "Starts an MCP server on stdin/stdout exposing classify, definition, occurrences, tokens and index tools. Files are re-indexed on demand, so the database may start empty.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.openEngine(false)
			if err != nil {
				return err
			}
			defer e.Close()

			// stdout carries the protocol; logs always go to stderr.
			log := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
			s := server.New(server.NewHandler(e, log))

			fmt.Fprintln(a.stderr, "lexiscope MCP server starting...")
			if err := mcpserver.ServeStdio(s); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
}

func (a *app) descriptorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "descriptors",
		Short: "List language descriptors and whether the index is stale",
		Long:  "Loads the descriptor of every supported language and reports where it came from. A descriptor is stale when indexed files were resolved with a different version; the next index run re-resolves them.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			const command = "descriptors"
			e, err := a.openEngine(false)
			if err != nil {
				return a.outputError(command, err)
			}
			defer e.Close()

			infos, err := e.Descriptors(cmd.Context())
			if err != nil {
				return a.outputError(command, err)
			}
			return a.outputResult(CLIResult{Command: command, Results: infos})
		},
	}
}
