package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jward/lexiscope"
	"github.com/jward/lexiscope/internal/fixture"
	"github.com/jward/lexiscope/internal/highlight"
	"github.com/jward/lexiscope/internal/runtime"
)

func (a *app) highlightCmd() *cobra.Command {
	var (
		namedReturns string
		colorMode    string
		annotate     bool
		lineNumbers  bool
		tabWidth     int
	)
	cmd := &cobra.Command{
		Use:   "highlight <file>",
		Short: "Render the semantic tokens of a file",
		Long: "Indexes the file if it changed, then prints its tokens. The text format shows the source with locals, globals and named results colored and a caret line under each identifier; " +
			"--annotate writes the caret format the fixture tests read. json and msgpack emit the token document for editor clients.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := a.flagFormat
			if !cmd.Flags().Changed("format") {
				format = "text"
			}

			path, err := resolveFilePath(args[0])
			if err != nil {
				return err
			}
			lang, ok := runtime.LanguageForFile(path)
			if !ok {
				return fmt.Errorf("unsupported file type: %s", args[0])
			}
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			var extra []lexiscope.Option
			if namedReturns != "" {
				policy, err := highlight.ParseNamedReturns(namedReturns)
				if err != nil {
					return err
				}
				extra = append(extra, lexiscope.WithNamedReturns(policy))
			}
			e, err := a.openEngine(false, extra...)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.IndexFiles(cmd.Context(), []string{path}); err != nil {
				return fmt.Errorf("indexing %s: %w", args[0], err)
			}
			toks, err := e.Query().Tokens(path)
			if err != nil {
				return err
			}

			switch format {
			case "json":
				return highlight.EncodeJSON(a.stdout, highlight.NewDocument(path, lang, toks))
			case "msgpack":
				return highlight.EncodeMsgpack(a.stdout, highlight.NewDocument(path, lang, toks))
			}
			useColor, err := a.useColor(colorMode)
			if err != nil {
				return err
			}
			return highlight.WriteText(a.stdout, src, toks, highlight.TextOptions{
				Color:       useColor,
				LineNumbers: lineNumbers,
				TabWidth:    tabWidth,
				Annotate:    annotate,
				Prefix:      fixture.CommentPrefix(lang),
			})
		},
	}
	cmd.Flags().StringVar(&namedReturns, "named-returns", "", "named result styling: local|distinct (default from config)")
	cmd.Flags().StringVar(&colorMode, "color", "auto", "color output: auto|always|never")
	cmd.Flags().BoolVar(&annotate, "annotate", false, "write caret annotations instead of a colored listing")
	cmd.Flags().BoolVarP(&lineNumbers, "line-numbers", "n", false, "prefix lines with their number")
	cmd.Flags().IntVar(&tabWidth, "tab-width", 4, "tab stop used to align carets")
	return cmd
}

// useColor decides whether the listing is colored. "auto" follows the
// configuration file and then terminal detection.
func (a *app) useColor(mode string) (bool, error) {
	switch mode {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		if a.cfg.Highlight.Color != nil {
			return *a.cfg.Highlight.Color, nil
		}
		return a.stdout == os.Stdout && !color.NoColor, nil
	}
	return false, fmt.Errorf("invalid --color %q: must be auto, always or never", mode)
}
