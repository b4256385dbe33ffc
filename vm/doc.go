// Package vm implements the Stackowey interpreter.
//
// This package contains:
//   - The playfield: a rectangular, toroidal grid of opcode characters
//   - The instruction pointer and its four headings
//   - A growable stack of uint64 cells that yields random values on underflow
//   - The opcode table and the single-step dispatcher
//   - Line-buffered input, accumulated output and the trace log
package vm
