package vm

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an interpreter failure. The numeric values are stable
// and double as process exit codes for the CLI.
type ErrorKind int

const (
	ErrUnknown     = ErrorKind(-1)
	ErrSyntax      = ErrorKind(1) // malformed playfield or directive line
	Err3D          = ErrorKind(2) // pointer direction left the plane
	ErrStreamRead  = ErrorKind(3) // interactive input failed
	ErrStreamWrite = ErrorKind(4) // output echo failed
	ErrRuntime     = ErrorKind(5) // stepping a halted machine
)

var kindNames = map[ErrorKind]string{
	ErrSyntax:      "E_SYNTAX",
	Err3D:          "E_3D",
	ErrStreamRead:  "E_STREAM_R",
	ErrStreamWrite: "E_STREAM_W",
	ErrRuntime:     "E_RUNTIME",
}

// Name returns the symbolic name of the kind, e.g. "E_SYNTAX".
func (k ErrorKind) Name() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "E_UNKNOWN"
}

// Code returns the numeric code of the kind.
func (k ErrorKind) Code() int {
	if _, ok := kindNames[k]; ok {
		return int(k)
	}
	return int(ErrUnknown)
}

// Error makes a kind usable as a sentinel with errors.Is.
func (k ErrorKind) Error() string {
	return fmt.Sprintf("%s[%d]", k.Name(), k.Code())
}

// Error describes an interpreter failure and where it happened.
// Row and Col are -1 when the failure has no grid position.
type Error struct {
	Kind ErrorKind
	Msg  string
	Row  int
	Col  int
	Err  error // underlying I/O error for stream failures
}

func (e *Error) Error() string {
	msg := e.Kind.Error() + ": " + e.Msg
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Row >= 0 {
		msg += fmt.Sprintf(" at (%d,%d)", e.Row, e.Col)
	}
	return msg
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(ErrorKind)
	return ok && k == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Row: -1, Col: -1}
}

func newErrorAt(kind ErrorKind, msg string, row, col int) *Error {
	return &Error{Kind: kind, Msg: msg, Row: row, Col: col}
}

func newStreamError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Row: -1, Col: -1, Err: err}
}

// KindOf extracts the kind of err, or ErrUnknown when err is not an
// interpreter error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrUnknown
}
