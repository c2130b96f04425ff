package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/jward/lexiscope"
)

// formatLocationsText formats locations as "file:line:col" lines.
func formatLocationsText(w io.Writer, locs []lexiscope.Location) {
	for _, loc := range locs {
		fmt.Fprintf(w, "%s:%d:%d\n", loc.File, loc.StartLine, loc.StartCol)
	}
}

// formatClassificationText prints one classification as key/value lines.
func formatClassificationText(w io.Writer, c *lexiscope.Classification) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "name:\t%s\n", c.Name)
	fmt.Fprintf(tw, "class:\t%s\n", c.Class)
	fmt.Fprintf(tw, "style:\t%s\n", c.Style)
	if c.Tag != "" {
		fmt.Fprintf(tw, "tag:\t%s\n", c.Tag)
	}
	fmt.Fprintf(tw, "at:\t%s:%d:%d\n", c.Location.File, c.Location.StartLine, c.Location.StartCol)
	if c.Definition != nil {
		fmt.Fprintf(tw, "definition:\t%s:%d:%d\n", c.Definition.File, c.Definition.StartLine, c.Definition.StartCol)
	}
	tw.Flush()
}

func formatFilesText(w io.Writer, files []CLIFile) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPATH\tLANGUAGE\tLINES")
	for _, f := range files {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", f.ID, f.Path, f.Language, f.LineCount)
	}
	tw.Flush()
}

func formatScopesText(w io.Writer, scopes []CLIScope) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tRANGE\tDECLARATIONS")
	for _, s := range scopes {
		indent := ""
		for range s.Depth {
			indent += "  "
		}
		fmt.Fprintf(tw, "%d\t%s%s\t%d:%d-%d:%d\t%v\n",
			s.ID, indent, s.Label, s.StartLine, s.StartCol, s.EndLine, s.EndCol, s.Declarations)
	}
	tw.Flush()
}

func formatReferencesText(w io.Writer, refs []CLIReference) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLINE\tCOL")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", r.Name, r.StartLine, r.StartCol)
	}
	tw.Flush()
}

func formatDiagnosticsText(w io.Writer, diags []CLIDiagnostic) {
	for _, d := range diags {
		fmt.Fprintf(w, "%d:%d: %s: %s\n", d.Line, d.Col, d.Kind, d.Message)
	}
}

func formatSummaryText(w io.Writer, s CLISummary) {
	fmt.Fprintln(w, "Index Summary")
	fmt.Fprintln(w, "=============")
	fmt.Fprintf(w, "Files: %d\n", s.Files)
	for _, class := range slices.Sorted(maps.Keys(s.Counts)) {
		fmt.Fprintf(w, "  %s: %d\n", class, s.Counts[class])
	}
}

func formatDescriptorsText(w io.Writer, infos []lexiscope.DescriptorInfo) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tORIGIN\tSTALE")
	for _, d := range infos {
		stale := "no"
		if d.Stale {
			stale = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Language, d.Origin, stale)
	}
	tw.Flush()
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []lexiscope.Location:
		formatLocationsText(w, v)
	case *lexiscope.Location:
		formatLocationsText(w, []lexiscope.Location{*v})
	case *lexiscope.Classification:
		formatClassificationText(w, v)
	case []CLIFile:
		formatFilesText(w, v)
	case []CLIScope:
		formatScopesText(w, v)
	case []CLIReference:
		formatReferencesText(w, v)
	case []CLIDiagnostic:
		formatDiagnosticsText(w, v)
	case CLISummary:
		formatSummaryText(w, v)
	case []lexiscope.DescriptorInfo:
		formatDescriptorsText(w, v)
	case nil:
		// No output for nil results (e.g., classify with no match).
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text", "msgpack"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	if slices.Contains(validFormats, format) {
		return nil
	}
	return fmt.Errorf("invalid --format %q: must be one of json, text, msgpack", format)
}

// outputResult writes result to stdout in the selected format. Only the
// highlight command speaks msgpack.
func (a *app) outputResult(result CLIResult) error {
	switch a.flagFormat {
	case "text":
		return outputResultText(a.stdout, result)
	case "msgpack":
		return fmt.Errorf("%s: msgpack output is only supported by highlight", result.Command)
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. Otherwise it goes to stderr.
func (a *app) outputError(command string, err error) error {
	a.errorHandled = true
	if a.flagFormat != "json" {
		fmt.Fprintf(a.stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}
