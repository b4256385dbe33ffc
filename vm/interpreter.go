package vm

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Interpreter executes a Stackowey playfield. It is not safe for
// concurrent use; drive each instance from one goroutine at a time.
type Interpreter struct {
	playfield *Playfield
	directive string
	lenient   bool

	stack  *Stack
	ptr    Pointer
	io     channel
	trace  traceLog
	halted bool
	steps  int

	lastErr error
}

// Option configures an Interpreter at construction time.
type Option func(*Interpreter)

// WithLineReader makes the interpreter ask r for a line whenever it needs
// input and the input queue is empty. Without one, running out of input
// halts the machine.
func WithLineReader(r LineReader) Option {
	return func(i *Interpreter) { i.io.reader = r }
}

// WithPrompt sets the prompt passed to the LineReader.
func WithPrompt(prompt string) Option {
	return func(i *Interpreter) { i.io.prompt = prompt }
}

// WithEntropy sets the source of values read from below the stack.
func WithEntropy(e Entropy) Option {
	return func(i *Interpreter) { i.stack = NewStack(e) }
}

// WithEcho writes every output character to w as it is produced, in
// addition to accumulating it.
func WithEcho(w io.Writer) Option {
	return func(i *Interpreter) { i.io.echo = w }
}

// WithLenient loads the initial source with space padding instead of
// rejecting ragged rows.
func WithLenient(lenient bool) Option {
	return func(i *Interpreter) { i.lenient = lenient }
}

// WithTrace enables per-step trace events.
func WithTrace(enabled bool) Option {
	return func(i *Interpreter) { i.trace.enabled = enabled }
}

// New creates an interpreter for source. A first line starting with "#!"
// is kept as the directive line and is not part of the playfield.
func New(source string, opts ...Option) (*Interpreter, error) {
	i := &Interpreter{
		directive: DefaultDirective,
		stack:     NewStack(nil),
	}
	i.io.prompt = DefaultPrompt
	for _, opt := range opts {
		opt(i)
	}

	if directive, rest, ok := SplitDirective(source); ok {
		i.directive = directive
		source = rest
	}
	if i.lenient {
		i.SetFriendlySourceCode(source)
		return i, nil
	}
	if err := i.SetSourceCode(source); err != nil {
		return nil, err
	}
	return i, nil
}

// ---------------------------------------------------------------------------
// Source and directive
// ---------------------------------------------------------------------------

// SourceCode returns the playfield as text.
func (i *Interpreter) SourceCode() string {
	return i.playfield.String()
}

// SetSourceCode loads text with the strict loader and resets the machine.
// On a ragged grid the old playfield is kept and the machine is left halted.
func (i *Interpreter) SetSourceCode(text string) error {
	i.halted = true
	p, err := ParseStrict(text)
	if err != nil {
		return err
	}
	i.playfield = p
	i.Reset()
	return nil
}

// FriendlySourceCode returns the playfield as text, padding included.
func (i *Interpreter) FriendlySourceCode() string {
	return i.playfield.String()
}

// SetFriendlySourceCode loads text with the padding loader and resets the
// machine.
func (i *Interpreter) SetFriendlySourceCode(text string) {
	i.playfield = ParseLenient(text)
	i.Reset()
}

// Directive returns the directive line.
func (i *Interpreter) Directive() string {
	return i.directive
}

// SetDirective replaces the directive line. It must start with "#!".
func (i *Interpreter) SetDirective(line string) error {
	if !strings.HasPrefix(line, DirectivePrefix) {
		return newError(ErrSyntax, fmt.Sprintf("directive line must start with %q", DirectivePrefix))
	}
	i.directive = line
	return nil
}

// Playfield returns the loaded playfield.
func (i *Interpreter) Playfield() *Playfield {
	return i.playfield
}

// ---------------------------------------------------------------------------
// I/O
// ---------------------------------------------------------------------------

// QueueInput appends text to the input queue, one line per newline-separated
// piece.
func (i *Interpreter) QueueInput(text string) {
	i.io.queue(text)
}

// PendingInput returns the number of queued input lines.
func (i *Interpreter) PendingInput() int {
	return len(i.io.input)
}

// TakeOutput returns the output produced so far, lines joined by newlines,
// and clears it.
func (i *Interpreter) TakeOutput() string {
	return i.io.take()
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

// Reset restores the initial machine state: a stack holding only Seed, the
// pointer at the origin heading right, empty I/O buffers, an empty trace
// and a runnable machine. The playfield and directive are kept.
func (i *Interpreter) Reset() {
	i.stack.reset()
	i.ptr = Pointer{}
	i.io.clear()
	i.trace.clear()
	i.halted = false
	i.steps = 0
	i.lastErr = nil
}

// Halted reports whether the machine has stopped.
func (i *Interpreter) Halted() bool {
	return i.halted
}

// Position returns the pointer's row and column.
func (i *Interpreter) Position() (row, col int) {
	return i.ptr.Row, i.ptr.Col
}

// Direction returns the pointer's heading.
func (i *Interpreter) Direction() Direction {
	return i.ptr.Dir
}

// Steps returns the number of steps completed since the last reset.
func (i *Interpreter) Steps() int {
	return i.steps
}

// Stack returns a copy of the stack, bottom first.
func (i *Interpreter) Stack() []uint64 {
	return i.stack.Values()
}

// CurrentOpcode returns the opcode under the pointer, or a blank NOP when
// the playfield has no cells.
func (i *Interpreter) CurrentOpcode() Opcode {
	if i.playfield.Empty() {
		return Opcode(' ')
	}
	return Opcode(i.playfield.At(i.ptr.Row, i.ptr.Col))
}

// LastError returns the error that stopped the last Run, if any.
func (i *Interpreter) LastError() error {
	return i.lastErr
}

// SetTrace turns per-step trace events on or off.
func (i *Interpreter) SetTrace(enabled bool) {
	i.trace.enabled = enabled
}

// TraceLog returns the trace lines recorded since the last reset.
func (i *Interpreter) TraceLog() string {
	return i.trace.String()
}

// TraceEvents returns a copy of the recorded trace events.
func (i *Interpreter) TraceEvents() []TraceEvent {
	return append([]TraceEvent(nil), i.trace.events...)
}

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Step executes the opcode under the pointer and then moves the pointer.
func (i *Interpreter) Step() error {
	if i.halted {
		return newErrorAt(ErrRuntime, "cannot step a halted machine", i.ptr.Row, i.ptr.Col)
	}
	if i.playfield.Empty() {
		return newError(ErrSyntax, "the playfield has no cells")
	}

	op := i.CurrentOpcode()
	top, _ := i.stack.At(0)
	i.trace.record(TraceEvent{
		Step:     i.steps,
		Row:      i.ptr.Row,
		Col:      i.ptr.Col,
		Dir:      i.ptr.Dir,
		Opcode:   op,
		StackLen: i.stack.Len(),
		Top:      top,
	})

	if err := i.dispatch(op); err != nil {
		return err
	}
	if err := i.ptr.Move(i.playfield.Height(), i.playfield.Width()); err != nil {
		return err
	}
	i.steps++
	return nil
}

// Run steps the machine until it halts, fails, or maxSteps steps have
// completed. A negative maxSteps means no limit. The first error stops the
// run; it is returned, kept for LastError and noted in the trace log.
func (i *Interpreter) Run(maxSteps int) (int, error) {
	return i.RunContext(context.Background(), maxSteps)
}

// RunContext is Run with cancellation checked between steps. A LineReader
// blocked inside a step is not interrupted.
func (i *Interpreter) RunContext(ctx context.Context, maxSteps int) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newErrorAt(ErrUnknown, fmt.Sprint(r), i.ptr.Row, i.ptr.Col)
		}
		if err != nil {
			i.lastErr = err
			i.trace.note("crashed after %d steps: %v", n, err)
		}
	}()

	for ; maxSteps < 0 || n < maxSteps; n++ {
		if i.halted {
			break
		}
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if err := i.Step(); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (i *Interpreter) dispatch(op Opcode) error {
	s := i.stack
	if op.IsDigit() {
		s.Push(uint64(op - OpPush0))
		return nil
	}

	switch op {
	case OpAdd:
		a := s.Pop()
		b := s.Pop()
		s.Push(a + b)

	case OpNot:
		s.Push(^s.Pop())

	case OpDrop:
		s.Pop()

	case OpDepth:
		s.Push(uint64(s.Len()))

	case OpPick:
		depth := s.Pop()
		if depth < uint64(s.Len()) {
			s.Push(s.Peek(int(depth)))
		} else {
			s.Push(s.Random())
		}

	case OpSwap:
		i.swapDepth()

	case OpWhere:
		s.Push(uint64(i.ptr.Row))
		s.Push(uint64(i.ptr.Col))

	case OpJump:
		col := s.Pop()
		row := s.Pop()
		i.ptr.Jump(row, col, i.playfield.Height(), i.playfield.Width())

	case OpHalt:
		i.halted = true

	case OpOut:
		return i.io.emit(s.Pop())

	case OpIn:
		return i.readInput()

	case OpMirror:
		a := s.Pop()
		b := s.Pop()
		if a > b {
			i.turn(1)
		}

	case OpBackMirror:
		a := s.Pop()
		b := s.Pop()
		if a < b {
			i.turn(-1)
		}
	}
	return nil
}

// turn rotates the pointer by delta when it travels horizontally and by
// -delta when it travels vertically.
func (i *Interpreter) turn(delta int) {
	if !i.ptr.Dir.Horizontal() {
		delta = -delta
	}
	i.ptr.Dir = i.ptr.Dir.Turn(delta)
}

// swapDepth pops a depth and exchanges the top value with the value that
// many positions below it. Depths past the bottom swap the top into the
// void and bring back a random value.
func (i *Interpreter) swapDepth() {
	s := i.stack
	depth := s.Pop()
	if depth >= uint64(s.Len()) {
		s.Pop()
		s.Push(s.Random())
		return
	}
	d := int(depth)
	old, _ := s.At(d)
	v := s.Pop()
	s.Set(d-1, v)
	s.Push(old)
}

// readInput pushes the next input line followed by a 0, or halts when no
// input is available.
func (i *Interpreter) readInput() error {
	line, ok, err := i.io.nextLine()
	if err != nil {
		return err
	}
	if !ok {
		i.halted = true
		return nil
	}
	for _, r := range line {
		i.stack.Push(uint64(r))
	}
	i.stack.Push(0)
	return nil
}
