package grid

import (
	"fmt"

	"github.com/zeu5/counting-rm/rl"
)

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// GridEnvironment is a single room where some cells carry a letter.
// Observations are the agent position [I, J].
type GridEnvironment struct {
	Height  int
	Width   int
	Start   Position
	CurPos  *Position
	Letters map[Position]string
}

var _ rl.Environment = &GridEnvironment{}

func NewGridEnvironment(height, width int, letters map[Position]string) *GridEnvironment {
	return &GridEnvironment{
		Height:  height,
		Width:   width,
		Start:   Position{0, 0},
		CurPos:  &Position{0, 0},
		Letters: letters,
	}
}

func (g *GridEnvironment) Reset() (rl.Observation, error) {
	g.CurPos = &Position{I: g.Start.I, J: g.Start.J}
	return g.CurPos.Observation(), nil
}

func (g *GridEnvironment) Step(a rl.Action) (rl.Observation, error) {
	movement, ok := a.(*Movement)
	if !ok {
		return nil, fmt.Errorf("grid: unsupported action %q", a.Hash())
	}
	newPos := &Position{I: g.CurPos.I, J: g.CurPos.J}

	switch movement.Direction {
	case "Nothing":
	case "Up":
		newPos.I = min(g.Height-1, g.CurPos.I+1)
	case "Down":
		newPos.I = max(0, g.CurPos.I-1)
	case "Left":
		newPos.J = max(0, g.CurPos.J-1)
	case "Right":
		newPos.J = min(g.Width-1, g.CurPos.J+1)
	default:
		return nil, fmt.Errorf("grid: unknown direction %q", movement.Direction)
	}
	g.CurPos = newPos
	return newPos.Observation(), nil
}

func (g *GridEnvironment) Actions() []rl.Action {
	return AllMovements
}

func (g *GridEnvironment) ObservationSize() int {
	return 2
}

// LetterAt returns the letter of the cell, if any
func (g *GridEnvironment) LetterAt(p Position) (string, bool) {
	l, ok := g.Letters[p]
	return l, ok
}

// Find returns the first cell carrying the letter, scanning rows bottom up
func (g *GridEnvironment) Find(letter string) (Position, bool) {
	for i := 0; i < g.Height; i++ {
		for j := 0; j < g.Width; j++ {
			p := Position{I: i, J: j}
			if g.Letters[p] == letter {
				return p, true
			}
		}
	}
	return Position{}, false
}

type Position struct {
	I int
	J int
}

func (p *Position) Hash() string {
	return fmt.Sprintf("(%d, %d)", p.I, p.J)
}

func (p *Position) Eq(other Position) bool {
	return p.I == other.I && p.J == other.J
}

func (p *Position) Observation() rl.Observation {
	return rl.Observation{float64(p.I), float64(p.J)}
}

// PositionOf reads a position back from a ground observation
func PositionOf(obs rl.Observation) (Position, bool) {
	if len(obs) < 2 {
		return Position{}, false
	}
	return Position{I: int(obs[0]), J: int(obs[1])}, true
}

type Movement struct {
	Direction string
}

var _ rl.Action = &Movement{}

func (m *Movement) Hash() string {
	return m.Direction
}

var (
	MovementUp                = &Movement{"Up"}
	MovementDown              = &Movement{"Down"}
	MovementLeft              = &Movement{"Left"}
	MovementRight             = &Movement{"Right"}
	NoMovement                = &Movement{"Nothing"}
	AllMovements  []rl.Action = []rl.Action{
		MovementUp,
		MovementDown,
		MovementLeft,
		MovementRight,
		NoMovement,
	}
)
