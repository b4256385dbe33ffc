package main

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/peterh/liner"
	"golang.org/x/term"

	"github.com/chazu/stackowey/vm"
)

const historyFile = ".stackowey_history"

// maxInputLine bounds a single piped input line.
const maxInputLine = 16 << 20

// terminalReader reads interactive input with line editing and history.
type terminalReader struct {
	ln       *liner.State
	histPath string
}

func newTerminalReader() *terminalReader {
	ln := liner.NewLiner()
	ln.SetCtrlCAborts(true)

	r := &terminalReader{ln: ln}
	if home, err := os.UserHomeDir(); err == nil {
		r.histPath = filepath.Join(home, historyFile)
		if f, err := os.Open(r.histPath); err == nil {
			_, _ = ln.ReadHistory(f)
			_ = f.Close()
		}
	}
	return r
}

func (r *terminalReader) ReadLine(prompt string) (string, error) {
	line, err := r.ln.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if line != "" {
		r.ln.AppendHistory(line)
	}
	return line, nil
}

// Close saves the history and restores the terminal.
func (r *terminalReader) Close() error {
	if r.histPath != "" {
		if f, err := os.Create(r.histPath); err == nil {
			_, _ = r.ln.WriteHistory(f)
			_ = f.Close()
		}
	}
	return r.ln.Close()
}

// scanReader reads input lines from a pipe or file. No prompt is shown.
type scanReader struct {
	sc *bufio.Scanner
}

func newScanReader(r io.Reader) *scanReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxInputLine)
	return &scanReader{sc: sc}
}

func (r *scanReader) ReadLine(string) (string, error) {
	if r.sc.Scan() {
		return r.sc.Text(), nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

// newLineReader picks a liner-backed reader when stdin is a terminal and a
// plain line scanner otherwise. The returned function releases the reader.
func newLineReader(stdin io.Reader) (vm.LineReader, func()) {
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r := newTerminalReader()
		return r, func() { _ = r.Close() }
	}
	return newScanReader(stdin), func() {}
}
