package vm

import "fmt"

// Direction is the heading of the instruction pointer. The four headings
// form a cycle; turning adds or subtracts one step modulo 4.
type Direction int

const (
	Right Direction = iota
	Down
	Left
	Up
)

var directionNames = [...]string{"RIGHT", "DOWN", "LEFT", "UP"}

func (d Direction) String() string {
	if d.Valid() {
		return directionNames[d]
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Valid reports whether d is one of the four headings.
func (d Direction) Valid() bool {
	return d >= Right && d <= Up
}

// Horizontal reports whether d moves along a row.
func (d Direction) Horizontal() bool {
	return d == Right || d == Left
}

// Turn rotates d by delta steps around the cycle.
func (d Direction) Turn(delta int) Direction {
	return Direction(((int(d)+delta)%4 + 4) % 4)
}

// Pointer is the instruction pointer: a grid position and a heading.
// Row grows upwards: Up increments it and Down decrements it.
type Pointer struct {
	Row, Col int
	Dir      Direction
}

// Move advances the pointer one cell and wraps it into a height x width
// torus.
func (p *Pointer) Move(height, width int) error {
	switch p.Dir {
	case Right:
		p.Col++
	case Down:
		p.Row--
	case Left:
		p.Col--
	case Up:
		p.Row++
	default:
		return newErrorAt(Err3D, fmt.Sprintf("heading %d is not in the plane", int(p.Dir)), p.Row, p.Col)
	}
	p.Row = wrap(p.Row, height)
	p.Col = wrap(p.Col, width)
	return nil
}

// Jump places the pointer at (row, col), reduced modulo the grid size.
func (p *Pointer) Jump(row, col uint64, height, width int) {
	p.Row = int(row % uint64(height))
	p.Col = int(col % uint64(width))
}

func (p Pointer) String() string {
	return fmt.Sprintf("(%d,%d) %s", p.Row, p.Col, p.Dir)
}

func wrap(v, n int) int {
	return ((v % n) + n) % n
}
