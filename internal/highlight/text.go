package highlight

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

// TextOptions configures WriteText.
type TextOptions struct {
	Color       bool
	LineNumbers bool
	// TabWidth is the tab stop used to align the listing. Defaults to 4.
	TabWidth int
	// Annotate writes each source line verbatim followed by byte-aligned
	// caret lines starting with Prefix, the format the fixture package
	// reads back. Color and line numbers are ignored in this mode, and
	// tokens that start inside the prefix get no caret.
	Annotate bool
	Prefix   string
}

const gutterWidth = 6

// Marker returns the caret text for a style: "^^" for locals and named
// results, "^^here" for globals.
func Marker(style string) string {
	if style == StyleGlobal {
		return "^^here"
	}
	return "^^"
}

type renderer struct {
	opts  TextOptions
	paint map[string]*color.Color
}

func newRenderer(opts TextOptions) *renderer {
	if opts.TabWidth <= 0 {
		opts.TabWidth = 4
	}
	if opts.Annotate {
		opts.Color = false
		opts.LineNumbers = false
	}
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if opts.Color {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c
	}
	return &renderer{
		opts: opts,
		paint: map[string]*color.Color{
			StyleLocal:  mk(color.FgCyan),
			StyleGlobal: mk(color.FgYellow),
			StyleResult: mk(color.FgMagenta),
			"declaration/" + StyleLocal:  mk(color.FgCyan, color.Bold),
			"declaration/" + StyleGlobal: mk(color.FgYellow, color.Bold),
			"declaration/" + StyleResult: mk(color.FgMagenta, color.Bold),
		},
	}
}

func (r *renderer) sprint(tok Token, s string) string {
	key := tok.Style
	if tok.Class == "declaration" {
		key = "declaration/" + key
	}
	if c, ok := r.paint[key]; ok {
		return c.Sprint(s)
	}
	return s
}

// WriteText renders src with its tokens. In the default mode every line is
// printed with tabs expanded and tokens colored, followed by caret lines
// aligned by display width.
func WriteText(w io.Writer, src []byte, tokens []Token, opts TextOptions) error {
	r := newRenderer(opts)

	lines := strings.Split(string(src), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	byLine := make(map[int][]Token)
	sorted := append([]Token(nil), tokens...)
	Sort(sorted)
	for _, tok := range sorted {
		byLine[tok.Line] = append(byLine[tok.Line], tok)
	}

	var b strings.Builder
	for i, line := range lines {
		toks := clampTokens(byLine[i], len(line))
		if r.opts.Annotate {
			b.WriteString(line)
			b.WriteByte('\n')
			for _, row := range r.byteRows(line, toks) {
				b.WriteString(row)
				b.WriteByte('\n')
			}
			continue
		}

		cols := displayColumns(line, r.opts.TabWidth)
		if r.opts.LineNumbers {
			fmt.Fprintf(&b, "%4d  ", i+1)
		}
		b.WriteString(r.expand(line, toks, cols))
		b.WriteByte('\n')
		for _, row := range r.displayRows(toks, cols) {
			if r.opts.LineNumbers {
				b.WriteString(strings.Repeat(" ", gutterWidth))
			}
			b.WriteString(row)
			b.WriteByte('\n')
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func clampTokens(toks []Token, n int) []Token {
	out := toks[:0:0]
	for _, t := range toks {
		if t.Col < 0 || t.Col >= n {
			continue
		}
		if t.EndCol > n || t.EndCol <= t.Col {
			t.EndCol = n
		}
		out = append(out, t)
	}
	return out
}

// displayColumns maps every byte offset of line, plus its end, to the
// display column it starts at.
func displayColumns(line string, tabWidth int) []int {
	cols := make([]int, len(line)+1)
	col := 0
	for i := 0; i < len(line); {
		r, size := utf8.DecodeRuneInString(line[i:])
		for j := i; j < i+size; j++ {
			cols[j] = col
		}
		if r == '\t' {
			col += tabWidth - col%tabWidth
		} else {
			col += runewidth.RuneWidth(r)
		}
		i += size
	}
	cols[len(line)] = col
	return cols
}

// expand returns line with tabs expanded and tokens painted.
func (r *renderer) expand(line string, toks []Token, cols []int) string {
	var b strings.Builder
	plain := func(from, to int) {
		for i := from; i < to; i++ {
			if line[i] == '\t' {
				b.WriteString(strings.Repeat(" ", cols[i+1]-cols[i]))
			} else {
				b.WriteByte(line[i])
			}
		}
	}
	at := 0
	for _, t := range toks {
		if t.Col < at {
			continue
		}
		plain(at, t.Col)
		b.WriteString(r.sprint(t, line[t.Col:t.EndCol]))
		at = t.EndCol
	}
	plain(at, len(line))
	return b.String()
}

// place distributes markers over as few rows as possible. Each row keeps at
// least one column between markers and never starts before start.
func place(positions []int, markers []string, start int) [][]int {
	var rows [][]int
	var ends []int
	for i, p := range positions {
		if p < start {
			continue
		}
		row := -1
		for j, end := range ends {
			if p >= end {
				row = j
				break
			}
		}
		if row < 0 {
			rows = append(rows, nil)
			ends = append(ends, start)
			row = len(rows) - 1
		}
		rows[row] = append(rows[row], i)
		ends[row] = p + len(markers[i]) + 1
	}
	return rows
}

func (r *renderer) displayRows(toks []Token, cols []int) []string {
	positions := make([]int, len(toks))
	markers := make([]string, len(toks))
	for i, t := range toks {
		positions[i] = cols[t.Col]
		markers[i] = Marker(t.Style)
	}
	var out []string
	for _, row := range place(positions, markers, 0) {
		var b strings.Builder
		at := 0
		for _, i := range row {
			b.WriteString(strings.Repeat(" ", positions[i]-at))
			b.WriteString(r.sprint(toks[i], markers[i]))
			at = positions[i] + len(markers[i])
		}
		out = append(out, b.String())
	}
	return out
}

func (r *renderer) byteRows(line string, toks []Token) []string {
	positions := make([]int, len(toks))
	markers := make([]string, len(toks))
	for i, t := range toks {
		positions[i] = t.Col
		markers[i] = Marker(t.Style)
	}
	prefix := r.opts.Prefix
	var out []string
	for _, row := range place(positions, markers, len(prefix)) {
		var b strings.Builder
		b.WriteString(prefix)
		at := len(prefix)
		for _, i := range row {
			for ; at < positions[i]; at++ {
				if line[at] == '\t' {
					b.WriteByte('\t')
				} else {
					b.WriteByte(' ')
				}
			}
			b.WriteString(markers[i])
			at += len(markers[i])
		}
		out = append(out, b.String())
	}
	return out
}
