package main

import (
	"github.com/jward/lexiscope"
)

// CLIResult is the top-level JSON envelope for all query commands.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}

// CLIFile is a JSON-friendly indexed file.
type CLIFile struct {
	ID        int64  `json:"id"`
	Path      string `json:"path"`
	Language  string `json:"language"`
	LineCount int    `json:"line_count"`
}

// CLIScope is a JSON-friendly scope row.
type CLIScope struct {
	ID        int64  `json:"id"`
	ParentID  *int64 `json:"parent_id,omitempty"`
	Label     string `json:"label"`
	Depth     int    `json:"depth"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
	// Declarations lists the names declared directly in the scope.
	Declarations []string `json:"declarations"`
}

// CLIReference is a JSON-friendly reference, used for globals.
type CLIReference struct {
	Name      string `json:"name"`
	Class     string `json:"class"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndCol    int    `json:"end_col"`
}

// CLIDiagnostic is a JSON-friendly diagnostic.
type CLIDiagnostic struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Line    int    `json:"line"`
	Col     int    `json:"col"`
}

// CLISummary counts occurrences per class.
type CLISummary struct {
	Files  int            `json:"files"`
	Counts map[string]int `json:"counts"`
}

func filesToCLI(files []*lexiscope.File) []CLIFile {
	out := make([]CLIFile, 0, len(files))
	for _, f := range files {
		out = append(out, CLIFile{ID: f.ID, Path: f.Path, Language: f.Language, LineCount: f.LineCount})
	}
	return out
}

func referencesToCLI(refs []*lexiscope.Reference) []CLIReference {
	out := make([]CLIReference, 0, len(refs))
	for _, r := range refs {
		out = append(out, CLIReference{
			Name:      r.Name,
			Class:     r.Class,
			StartLine: r.StartLine,
			StartCol:  r.StartCol,
			EndCol:    r.EndCol,
		})
	}
	return out
}

func diagnosticsToCLI(diags []*lexiscope.Diagnostic) []CLIDiagnostic {
	out := make([]CLIDiagnostic, 0, len(diags))
	for _, d := range diags {
		out = append(out, CLIDiagnostic{Kind: d.Kind, Message: d.Message, Line: d.Line, Col: d.Col})
	}
	return out
}
