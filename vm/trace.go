package vm

import (
	"fmt"
	"strings"
)

// TraceEvent records the machine state just before an opcode executes.
type TraceEvent struct {
	Step     int       `cbor:"1,keyasint"`
	Row      int       `cbor:"2,keyasint"`
	Col      int       `cbor:"3,keyasint"`
	Dir      Direction `cbor:"4,keyasint"`
	Opcode   Opcode    `cbor:"5,keyasint"`
	StackLen int       `cbor:"6,keyasint"`
	Top      uint64    `cbor:"7,keyasint,omitempty"` // zero when the stack is empty
}

func (e TraceEvent) String() string {
	top := "-"
	if e.StackLen > 0 {
		top = fmt.Sprint(e.Top)
	}
	return fmt.Sprintf("%6d (%d,%d) %-5s %q %-8s depth=%d top=%s",
		e.Step, e.Row, e.Col, e.Dir, rune(e.Opcode), e.Opcode, e.StackLen, top)
}

// traceLog is the append-only diagnostic history of an interpreter.
type traceLog struct {
	enabled bool
	events  []TraceEvent
	lines   []string
}

func (t *traceLog) clear() {
	t.events = nil
	t.lines = nil
}

func (t *traceLog) record(e TraceEvent) {
	if !t.enabled {
		return
	}
	t.events = append(t.events, e)
	t.lines = append(t.lines, e.String())
}

func (t *traceLog) note(format string, args ...any) {
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

func (t *traceLog) String() string {
	return strings.Join(t.lines, "\n")
}
