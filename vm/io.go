package vm

import (
	"errors"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPrompt is passed to a LineReader when the interpreter needs input.
const DefaultPrompt = "Stackowey needs your input: "

// LineReader supplies one line of interactive input per call, without the
// line terminator. It is consulted only when the input queue is empty and
// may block.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// LineReaderFunc adapts a function to the LineReader interface.
type LineReaderFunc func(prompt string) (string, error)

func (f LineReaderFunc) ReadLine(prompt string) (string, error) {
	return f(prompt)
}

// channel holds the pending input lines and the output being accumulated.
type channel struct {
	input  []string
	output []string

	reader LineReader
	prompt string
	echo   io.Writer
}

func (c *channel) clear() {
	c.input = nil
	c.output = nil
}

// queue appends every newline-separated piece of text as an input line.
func (c *channel) queue(text string) {
	c.input = append(c.input, strings.Split(text, "\n")...)
}

// nextLine returns the next line of input. ok is false when neither the
// queue nor a LineReader can supply one; a LineReader reports that with
// io.EOF.
func (c *channel) nextLine() (line string, ok bool, err error) {
	if len(c.input) > 0 {
		line, c.input = c.input[0], c.input[1:]
		return line, true, nil
	}
	if c.reader == nil {
		return "", false, nil
	}
	line, err = c.reader.ReadLine(c.prompt)
	if errors.Is(err, io.EOF) {
		return "", false, nil
	}
	if err != nil {
		return "", false, newStreamError(ErrStreamRead, "reading interactive input", err)
	}
	return line, true, nil
}

// emit appends the character with the given code to the output. A line
// feed starts a new line.
func (c *channel) emit(code uint64) error {
	r := utf8.RuneError
	if code <= unicode.MaxRune {
		r = rune(code)
	}
	if len(c.output) == 0 {
		c.output = append(c.output, "")
	}
	if r == '\n' {
		c.output = append(c.output, "")
	} else {
		c.output[len(c.output)-1] += string(r)
	}
	if c.echo != nil {
		if _, err := io.WriteString(c.echo, string(r)); err != nil {
			return newStreamError(ErrStreamWrite, "writing output", err)
		}
	}
	return nil
}

// take returns the accumulated output and clears it.
func (c *channel) take() string {
	out := strings.Join(c.output, "\n")
	c.output = nil
	return out
}
