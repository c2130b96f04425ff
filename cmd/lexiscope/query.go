package main

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jward/lexiscope"
)

func (a *app) queryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query the resolution index",
		Long:  "Run queries against indexed files. All line and column numbers are 0-based; columns count bytes.",
	}
	cmd.AddCommand(a.positionalCmd("classify", "Classify the identifier at a position",
		func(q *lexiscope.QueryBuilder, file string, line, col int) (any, error) {
			c, err := q.ClassifyAt(file, line, col)
			if c == nil || err != nil {
				return nil, err
			}
			return c, nil
		}))
	cmd.AddCommand(a.positionalCmd("definition", "Show the declaration an identifier binds to",
		func(q *lexiscope.QueryBuilder, file string, line, col int) (any, error) {
			loc, err := q.DefinitionAt(file, line, col)
			if loc == nil || err != nil {
				return nil, err
			}
			return loc, nil
		}))
	cmd.AddCommand(a.positionalCmd("occurrences", "List every occurrence of the declaration at a position",
		func(q *lexiscope.QueryBuilder, file string, line, col int) (any, error) {
			locs, err := q.OccurrencesAt(file, line, col)
			if locs == nil {
				locs = []lexiscope.Location{}
			}
			return locs, err
		}))
	cmd.AddCommand(a.referencesCmd())
	cmd.AddCommand(a.fileCmd("globals", "List the unbound references of a file", a.globals))
	cmd.AddCommand(a.fileCmd("scopes", "List the scope tree of a file", a.scopes))
	cmd.AddCommand(a.fileCmd("diagnostics", "List the diagnostics recorded for a file", a.diagnostics))
	cmd.AddCommand(a.filesCmd())
	cmd.AddCommand(a.summaryCmd())
	return cmd
}

// --- Helpers ---

// resolveFilePath converts a file argument to an absolute path.
func resolveFilePath(file string) (string, error) {
	if filepath.IsAbs(file) {
		return file, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", fmt.Errorf("resolving file path %q: %w", file, err)
	}
	return abs, nil
}

// parseIntArg parses a positional argument as an integer with a clear error.
func parseIntArg(value, name string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", name, value)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be non-negative", name, value)
	}
	return n, nil
}

// withQuery opens the existing index, runs fn and writes its result.
func (a *app) withQuery(command string, fn func(q *lexiscope.QueryBuilder) (any, error)) error {
	e, err := a.openEngine(true)
	if err != nil {
		return a.outputError(command, err)
	}
	defer e.Close()

	res, err := fn(e.Query())
	if err != nil {
		return a.outputError(command, err)
	}
	return a.outputResult(CLIResult{Command: command, Results: res})
}

type positionalFunc func(q *lexiscope.QueryBuilder, file string, line, col int) (any, error)

func (a *app) positionalCmd(name, short string, fn positionalFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <file> <line> <col>",
		Short: short,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "query " + name
			file, err := resolveFilePath(args[0])
			if err != nil {
				return a.outputError(command, err)
			}
			line, err := parseIntArg(args[1], "line")
			if err != nil {
				return a.outputError(command, err)
			}
			col, err := parseIntArg(args[2], "col")
			if err != nil {
				return a.outputError(command, err)
			}
			return a.withQuery(command, func(q *lexiscope.QueryBuilder) (any, error) {
				return fn(q, file, line, col)
			})
		},
	}
}

func (a *app) fileCmd(name, short string, fn func(q *lexiscope.QueryBuilder, file string) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "query " + name
			file, err := resolveFilePath(args[0])
			if err != nil {
				return a.outputError(command, err)
			}
			return a.withQuery(command, func(q *lexiscope.QueryBuilder) (any, error) {
				return fn(q, file)
			})
		},
	}
}

// --- Commands ---

func (a *app) referencesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "references <declaration-id>",
		Short: "List the references bound to a declaration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			const command = "query references"
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return a.outputError(command, fmt.Errorf("invalid declaration id %q", args[0]))
			}
			return a.withQuery(command, func(q *lexiscope.QueryBuilder) (any, error) {
				locs, err := q.ReferencesTo(id)
				if locs == nil {
					locs = []lexiscope.Location{}
				}
				return locs, err
			})
		},
	}
}

func (a *app) globals(q *lexiscope.QueryBuilder, file string) (any, error) {
	refs, err := q.Globals(file)
	if err != nil {
		return nil, err
	}
	return referencesToCLI(refs), nil
}

func (a *app) scopes(q *lexiscope.QueryBuilder, file string) (any, error) {
	scopes, err := q.ScopesByFile(file)
	if err != nil {
		return nil, err
	}
	out := make([]CLIScope, 0, len(scopes))
	for _, s := range scopes {
		decls, err := q.DeclarationsInScope(s.ID)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(decls))
		for _, d := range decls {
			names = append(names, d.Name)
		}
		out = append(out, CLIScope{
			ID:           s.ID,
			ParentID:     s.ParentScopeID,
			Label:        s.Label,
			Depth:        s.Depth,
			StartLine:    s.StartLine,
			StartCol:     s.StartCol,
			EndLine:      s.EndLine,
			EndCol:       s.EndCol,
			Declarations: names,
		})
	}
	return out, nil
}

func (a *app) diagnostics(q *lexiscope.QueryBuilder, file string) (any, error) {
	diags, err := q.Diagnostics(file)
	if err != nil {
		return nil, err
	}
	return diagnosticsToCLI(diags), nil
}

func (a *app) filesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files",
		Short: "List indexed files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withQuery("query files", func(q *lexiscope.QueryBuilder) (any, error) {
				files, err := q.Files()
				if err != nil {
					return nil, err
				}
				return filesToCLI(files), nil
			})
		},
	}
}

func (a *app) summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count declarations and references by class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withQuery("query summary", func(q *lexiscope.QueryBuilder) (any, error) {
				files, err := q.Files()
				if err != nil {
					return nil, err
				}
				counts, err := q.Summary()
				if err != nil {
					return nil, err
				}
				return CLISummary{Files: len(files), Counts: counts}, nil
			})
		},
	}
}
