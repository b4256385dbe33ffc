package vm

import "math/rand/v2"

// Seed is the single value a freshly reset stack holds (octal 42).
const Seed uint64 = 0o42

// Entropy supplies the values read from below the bottom of the stack.
// *rand.Rand from math/rand/v2 satisfies it.
type Entropy interface {
	Uint64() uint64
}

// EntropyFunc adapts a function to the Entropy interface.
type EntropyFunc func() uint64

func (f EntropyFunc) Uint64() uint64 {
	return f()
}

// DefaultEntropy draws from the math/rand/v2 global source.
var DefaultEntropy Entropy = EntropyFunc(rand.Uint64)

// Stack is a growable stack of 64-bit cells. Below its explicit bottom it
// is conceptually infinite: reads that reach past the last element return
// a fresh random value instead of failing, and never change the stack.
type Stack struct {
	cells   []uint64
	entropy Entropy
}

// NewStack returns an empty stack drawing underflow values from e.
// A nil e selects DefaultEntropy.
func NewStack(e Entropy) *Stack {
	if e == nil {
		e = DefaultEntropy
	}
	return &Stack{entropy: e}
}

// Len returns the number of explicit elements.
func (s *Stack) Len() int {
	return len(s.cells)
}

// Push appends v to the top of the stack.
func (s *Stack) Push(v uint64) {
	s.cells = append(s.cells, v)
}

// Peek returns the value depth positions below the top (0 is the top).
// Reading past the explicit elements yields a random value.
func (s *Stack) Peek(depth int) uint64 {
	if v, ok := s.At(depth); ok {
		return v
	}
	return s.entropy.Uint64()
}

// Pop removes and returns the top value. An empty stack yields a random
// value and stays empty.
func (s *Stack) Pop() uint64 {
	n := len(s.cells)
	if n == 0 {
		return s.entropy.Uint64()
	}
	v := s.cells[n-1]
	s.cells = s.cells[:n-1]
	return v
}

// At returns the value at depth and whether it is an explicit element.
func (s *Stack) At(depth int) (uint64, bool) {
	if depth < 0 || depth >= len(s.cells) {
		return 0, false
	}
	return s.cells[len(s.cells)-1-depth], true
}

// Set overwrites the explicit element at depth. It reports false and
// does nothing when depth is out of range.
func (s *Stack) Set(depth int, v uint64) bool {
	if depth < 0 || depth >= len(s.cells) {
		return false
	}
	s.cells[len(s.cells)-1-depth] = v
	return true
}

// Values returns a copy of the explicit elements, bottom first.
func (s *Stack) Values() []uint64 {
	out := make([]uint64, len(s.cells))
	copy(out, s.cells)
	return out
}

// Random returns a value as if read from below the stack.
func (s *Stack) Random() uint64 {
	return s.entropy.Uint64()
}

func (s *Stack) reset() {
	s.cells = append(s.cells[:0], Seed)
}
