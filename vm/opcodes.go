package vm

import "sort"

// Opcode is the character stored in a playfield cell.
// Characters without an entry in the opcode table are no-ops.
type Opcode rune

const (
	OpPush0 Opcode = '0' // Push 0
	OpPush1 Opcode = '1'
	OpPush2 Opcode = '2'
	OpPush3 Opcode = '3'
	OpPush4 Opcode = '4'
	OpPush5 Opcode = '5'
	OpPush6 Opcode = '6'
	OpPush7 Opcode = '7' // Push 7

	OpAdd   Opcode = '+' // Pop a, pop b, push a+b
	OpNot   Opcode = '_' // Pop a, push ^a
	OpDrop  Opcode = '.' // Pop and discard
	OpDepth Opcode = '=' // Push stack length
	OpPick  Opcode = '@' // Pop i, push copy of depth i
	OpSwap  Opcode = '#' // Pop i, swap top with depth i

	OpWhere Opcode = '8' // Push row, push column
	OpJump  Opcode = '%' // Pop column, pop row, move pointer there
	OpHalt  Opcode = '9' // Halt

	OpOut Opcode = '!' // Pop character, write it
	OpIn  Opcode = '?' // Read a line, push its characters and 0

	OpMirror     Opcode = '/'  // Pop a, pop b, turn if a > b
	OpBackMirror Opcode = '\\' // Pop a, pop b, turn if a < b
)

// OpcodeInfo describes an opcode for listings, traces and editors.
type OpcodeInfo struct {
	Name   string
	Pops   int // values consumed; -1 when variable
	Pushes int // values produced; -1 when variable
	Doc    string
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpPush0: {"PUSH0", 0, 1, "push 0"},
	OpPush1: {"PUSH1", 0, 1, "push 1"},
	OpPush2: {"PUSH2", 0, 1, "push 2"},
	OpPush3: {"PUSH3", 0, 1, "push 3"},
	OpPush4: {"PUSH4", 0, 1, "push 4"},
	OpPush5: {"PUSH5", 0, 1, "push 5"},
	OpPush6: {"PUSH6", 0, 1, "push 6"},
	OpPush7: {"PUSH7", 0, 1, "push 7"},

	OpAdd:   {"ADD", 2, 1, "pop a, pop b, push a+b (wrapping at 2^64)"},
	OpNot:   {"NOT", 1, 1, "pop a, push its bitwise complement"},
	OpDrop:  {"DROP", 1, 0, "pop and discard"},
	OpDepth: {"DEPTH", 0, 1, "push the stack length"},
	OpPick:  {"PICK", 1, 1, "pop i, push a copy of the value i below the top (random if out of range)"},
	OpSwap:  {"SWAP", 2, 1, "pop i, swap the top value with the value i below it (random if out of range)"},

	OpWhere: {"WHERE", 0, 2, "push the pointer row, then the pointer column"},
	OpJump:  {"JUMP", 2, 0, "pop column, pop row, move the pointer there"},
	OpHalt:  {"HALT", 0, 0, "stop execution"},

	OpOut: {"OUT", 1, 0, "pop a character code and write it"},
	OpIn:  {"IN", 0, -1, "read a line, push its character codes and a terminating 0; halt on end of input"},

	OpMirror:     {"MIRROR", 2, 0, "pop a, pop b; if a > b turn clockwise when horizontal, counter-clockwise when vertical"},
	OpBackMirror: {"BMIRROR", 2, 0, "pop a, pop b; if a < b turn counter-clockwise when horizontal, clockwise when vertical"},
}

// Info returns the metadata for op. Unknown opcodes get a zero OpcodeInfo.
func (op Opcode) Info() OpcodeInfo {
	return opcodeInfoTable[op]
}

// Known reports whether op does something when executed.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the opcode name, or "NOP" for characters without meaning.
func (op Opcode) String() string {
	if info, ok := opcodeInfoTable[op]; ok {
		return info.Name
	}
	return "NOP"
}

// IsDigit reports whether op pushes a literal.
func (op Opcode) IsDigit() bool {
	return op >= OpPush0 && op <= OpPush7
}

// AllOpcodes returns every defined opcode in character order.
func AllOpcodes() []Opcode {
	ops := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
