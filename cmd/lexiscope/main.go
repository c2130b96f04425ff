package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/lexiscope"
	"github.com/jward/lexiscope/internal/config"
	"github.com/jward/lexiscope/internal/highlight"
)

func main() {
	root, a := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		if !a.errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	flagDB          string
	flagFormat      string
	flagConfig      string
	flagDescriptors string
	flagVerbose     bool

	cfg config.Config

	// errorHandled is set by outputError so main() doesn't double-print.
	errorHandled bool
}

func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "lexiscope",
		Short:         "Scope-aware semantic highlighting",
		Long:          "Lexiscope resolves every identifier in a source file to a declaration or marks it global, stores the result in SQLite and renders it as highlighting tokens.",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(a.flagFormat); err != nil {
				return err
			}
			return a.loadConfig()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagDB, "db", "", "database path (default: .lexiscope.db at the repository root)")
	pf.StringVar(&a.flagFormat, "format", "json", "output format: json|text|msgpack")
	pf.StringVar(&a.flagConfig, "config", "", "configuration file (default: nearest "+config.FileName+")")
	pf.StringVar(&a.flagDescriptors, "descriptors", "", "directory of descriptor files overriding the builtin ones")
	pf.BoolVarP(&a.flagVerbose, "verbose", "v", false, "log pipeline events to stderr")

	root.AddCommand(a.indexCmd())
	root.AddCommand(a.queryCmd())
	root.AddCommand(a.highlightCmd())
	root.AddCommand(a.mcpCmd())
	root.AddCommand(a.descriptorsCmd())
	return root, a
}

func (a *app) loadConfig() error {
	var err error
	if a.flagConfig != "" {
		a.cfg, err = config.Load(a.flagConfig)
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	a.cfg, err = config.Discover(cwd)
	return err
}

func (a *app) logger() *slog.Logger {
	if !a.flagVerbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// engineOptions builds the engine options from the configuration file.
// Subcommands append their flag overrides after these.
func (a *app) engineOptions() ([]lexiscope.Option, error) {
	policy, err := highlight.ParseNamedReturns(a.cfg.Highlight.NamedReturns)
	if err != nil {
		return nil, err
	}
	opts := []lexiscope.Option{
		lexiscope.WithLogger(a.logger()),
		lexiscope.WithParallel(a.cfg.Index.Parallel),
		lexiscope.WithNamedReturns(policy),
	}
	if len(a.cfg.Index.Languages) > 0 {
		opts = append(opts, lexiscope.WithLanguages(a.cfg.Index.Languages...))
	}
	if a.cfg.Index.Workers > 0 {
		opts = append(opts, lexiscope.WithWorkers(a.cfg.Index.Workers))
	}
	dir := a.cfg.Descriptors.Dir
	if a.flagDescriptors != "" {
		dir = a.flagDescriptors
	}
	if dir != "" {
		opts = append(opts, lexiscope.WithDescriptorDir(dir))
	}
	return opts, nil
}

// dbPath returns the database path from the --db flag, the configuration
// file, or the default at the repository root, in that order.
func (a *app) dbPath() (string, error) {
	if a.flagDB != "" {
		return filepath.Abs(a.flagDB)
	}
	if a.cfg.Path != "" {
		return a.cfg.Index.DB, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting cwd: %w", err)
	}
	return filepath.Join(findRepoRoot(cwd), a.cfg.Index.DB), nil
}

// openEngine opens the engine on the resolved database. When mustExist is
// set a missing database is an error instead of being created.
func (a *app) openEngine(mustExist bool, extra ...lexiscope.Option) (*lexiscope.Engine, error) {
	dbPath, err := a.dbPath()
	if err != nil {
		return nil, err
	}
	if mustExist {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found: %s (run 'lexiscope index' first)", dbPath)
		}
	}
	opts, err := a.engineOptions()
	if err != nil {
		return nil, err
	}
	e, err := lexiscope.New(dbPath, append(opts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return e, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

func (a *app) indexCmd() *cobra.Command {
	var (
		force     bool
		prune     bool
		serial    bool
		workers   int
		languages []string
	)
	cmd := &cobra.Command{
		Use:   "index [path...]",
		Short: "Resolve and store files or directories",
		Long:  "Parses each file, resolves its scopes and writes the result to the database. Unchanged files are skipped by content hash. Directories are listed with git ls-files when possible.",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			if len(args) == 0 {
				args = []string{"."}
			}

			dbPath, err := a.dbPath()
			if err != nil {
				return err
			}
			if force {
				if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("removing database for --force: %w", err)
				}
				fmt.Fprintf(a.stderr, "Cleared database: %s\n", dbPath)
			}
			if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", filepath.Dir(dbPath), err)
			}

			var extra []lexiscope.Option
			if len(languages) > 0 {
				extra = append(extra, lexiscope.WithLanguages(languages...))
			}
			if cmd.Flags().Changed("serial") {
				extra = append(extra, lexiscope.WithParallel(!serial))
			}
			if workers > 0 {
				extra = append(extra, lexiscope.WithWorkers(workers))
			}
			e, err := a.openEngine(false, extra...)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if changed, err := e.DescriptorsChanged(ctx); err == nil && len(changed) > 0 {
				fmt.Fprintf(a.stderr, "Descriptors changed for %s; re-resolving their files\n", strings.Join(changed, ", "))
			}

			var files []string
			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolving path %q: %w", arg, err)
				}
				info, err := os.Stat(abs)
				if err != nil {
					return fmt.Errorf("path not found: %s", abs)
				}
				if info.IsDir() {
					if err := e.IndexDirectory(ctx, abs); err != nil {
						return fmt.Errorf("indexing %s: %w", abs, err)
					}
					continue
				}
				files = append(files, abs)
			}
			if len(files) > 0 {
				if err := e.IndexFiles(ctx, files); err != nil {
					return fmt.Errorf("indexing: %w", err)
				}
			}

			if prune {
				n, err := e.Prune()
				if err != nil {
					return fmt.Errorf("pruning: %w", err)
				}
				if n > 0 {
					fmt.Fprintf(a.stderr, "Pruned %d missing file(s)\n", n)
				}
			}

			indexed, err := e.Query().Files()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "Indexed %s in %s (%d files in index)\n",
				strings.Join(args, " "), time.Since(start).Round(time.Millisecond), len(indexed))
			fmt.Fprintf(a.stderr, "Database: %s\n", dbPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "delete database and reindex from scratch")
	cmd.Flags().BoolVar(&prune, "prune", false, "forget indexed files that no longer exist")
	cmd.Flags().BoolVar(&serial, "serial", false, "resolve files one at a time")
	cmd.Flags().IntVar(&workers, "workers", 0, "resolution workers (default: number of CPUs)")
	cmd.Flags().StringSliceVar(&languages, "languages", nil, "comma-separated language filter (e.g. go,python)")
	return cmd
}
