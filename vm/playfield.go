package vm

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultProgram is loaded in place of empty source. It halts immediately.
const DefaultProgram = "9"

// DirectivePrefix marks a directive line.
const DirectivePrefix = "#!"

// DefaultDirective is reported by an interpreter whose source had none.
const DefaultDirective = "#!/usr/bin/env -S ./stackowey -d"

// Playfield is an immutable rectangular grid of opcode cells. Both axes
// wrap around.
type Playfield struct {
	rows  [][]rune
	width int
}

// ParseStrict loads text as a playfield, rejecting rows whose width
// differs from the first row. A single trailing newline is ignored.
func ParseStrict(text string) (*Playfield, error) {
	lines := splitLines(text)
	if lines == nil {
		return defaultPlayfield(), nil
	}
	width := utf8.RuneCountInString(lines[0])
	for i, line := range lines {
		if w := utf8.RuneCountInString(line); w != width {
			return nil, newErrorAt(ErrSyntax,
				fmt.Sprintf("the eastward edge is too rough: line %d is %d wide, want %d", i+1, w, width),
				i, min(w, width))
		}
	}
	return newPlayfield(lines, width), nil
}

// ParseLenient loads text as a playfield, right-padding short rows with
// spaces up to the widest row. It never fails.
func ParseLenient(text string) *Playfield {
	lines := splitLines(text)
	if lines == nil {
		return defaultPlayfield()
	}
	width := 0
	for _, line := range lines {
		width = max(width, utf8.RuneCountInString(line))
	}
	for i, line := range lines {
		if pad := width - utf8.RuneCountInString(line); pad > 0 {
			lines[i] = line + strings.Repeat(" ", pad)
		}
	}
	return newPlayfield(lines, width)
}

// SplitDirective separates a leading "#!" line from the rest of text.
// ok is false when text has no directive, in which case rest is text.
func SplitDirective(text string) (directive, rest string, ok bool) {
	if !strings.HasPrefix(text, DirectivePrefix) {
		return "", text, false
	}
	first, rest, _ := strings.Cut(text, "\n")
	return first, rest, true
}

// splitLines splits on newlines and drops one trailing empty line.
// It returns nil for empty text.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func newPlayfield(lines []string, width int) *Playfield {
	rows := make([][]rune, len(lines))
	for i, line := range lines {
		rows[i] = []rune(line)
	}
	return &Playfield{rows: rows, width: width}
}

func defaultPlayfield() *Playfield {
	return newPlayfield([]string{DefaultProgram}, 1)
}

// Height returns the number of rows.
func (p *Playfield) Height() int {
	return len(p.rows)
}

// Width returns the number of columns.
func (p *Playfield) Width() int {
	return p.width
}

// Empty reports whether the playfield has no cell to execute.
func (p *Playfield) Empty() bool {
	return len(p.rows) == 0 || p.width == 0
}

// At returns the cell at (row, col). The coordinates must be in range.
func (p *Playfield) At(row, col int) rune {
	return p.rows[row][col]
}

// Rows returns the playfield as lines of text.
func (p *Playfield) Rows() []string {
	out := make([]string, len(p.rows))
	for i, r := range p.rows {
		out[i] = string(r)
	}
	return out
}

// String returns the rows joined by newlines.
func (p *Playfield) String() string {
	return strings.Join(p.Rows(), "\n")
}

// Disassemble returns a listing of every non-blank cell and the opcode it
// encodes, in row-major order.
func (p *Playfield) Disassemble() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; Stackowey playfield %dx%d\n", p.width, len(p.rows))
	for r, row := range p.rows {
		for c, ch := range row {
			if ch == ' ' {
				continue
			}
			op := Opcode(ch)
			info := op.Info()
			if info.Name == "" {
				fmt.Fprintf(&sb, "%4d %4d  %q  NOP\n", r, c, ch)
				continue
			}
			fmt.Fprintf(&sb, "%4d %4d  %q  %-8s ; %s\n", r, c, ch, info.Name, info.Doc)
		}
	}
	return sb.String()
}
