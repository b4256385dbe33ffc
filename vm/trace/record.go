// Package trace exports interpreter runs as self-describing records.
//
// A Record captures the program that ran, how far it got and, when the
// interpreter was tracing, every step it took. Records are encoded as
// canonical CBOR so that identical runs produce identical bytes apart
// from their RunID.
package trace

import (
	"fmt"
	"strings"

	"github.com/chazu/stackowey/vm"
	"github.com/google/uuid"
)

// Record is a snapshot of one interpreter run.
type Record struct {
	RunID     string          `cbor:"1,keyasint"`
	Directive string          `cbor:"2,keyasint"`
	Source    string          `cbor:"3,keyasint"`
	Steps     int             `cbor:"4,keyasint"`
	Halted    bool            `cbor:"5,keyasint"`
	Error     string          `cbor:"6,keyasint,omitempty"`
	ErrorCode int             `cbor:"7,keyasint,omitempty"`
	Events    []vm.TraceEvent `cbor:"8,keyasint,omitempty"`
}

// NewRecord snapshots interp under a fresh run ID.
func NewRecord(interp *vm.Interpreter) *Record {
	r := &Record{
		RunID:     uuid.NewString(),
		Directive: interp.Directive(),
		Source:    interp.Playfield().String(),
		Steps:     interp.Steps(),
		Halted:    interp.Halted(),
		Events:    interp.TraceEvents(),
	}
	if err := interp.LastError(); err != nil {
		r.Error = err.Error()
		r.ErrorCode = vm.KindOf(err).Code()
	}
	return r
}

// Kind returns the error kind recorded for the run, or zero when the run
// did not fail.
func (r *Record) Kind() vm.ErrorKind {
	if r.Error == "" {
		return 0
	}
	return vm.ErrorKind(r.ErrorCode)
}

// Format renders r as a human-readable report.
func Format(r *Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", r.RunID)
	fmt.Fprintf(&b, "directive: %s\n", r.Directive)
	fmt.Fprintf(&b, "steps: %d  halted: %t\n", r.Steps, r.Halted)
	if r.Error != "" {
		fmt.Fprintf(&b, "error: %s\n", r.Error)
	}
	b.WriteString("--- source\n")
	b.WriteString(r.Source)
	if !strings.HasSuffix(r.Source, "\n") {
		b.WriteByte('\n')
	}
	if len(r.Events) > 0 {
		fmt.Fprintf(&b, "--- %d events\n", len(r.Events))
		for _, e := range r.Events {
			b.WriteString(e.String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}
