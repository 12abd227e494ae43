package model

import "fmt"

type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

func (d Direction) Name() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("n/a:%d", d)
	}
}

// Delta returns the unit vector of the direction in grid coordinates,
// y growing downwards.
func (d Direction) Delta() (float64, float64) {
	switch d {
	case Up:
		return 0, -1
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Right:
		return 1, 0
	}
	return 0, 0
}

type Phase int

const (
	AwaitingPayment Phase = iota + 1
	ProcessingPayment
	AwaitingOpponent
	Playing
	GameOver
)

func (p Phase) Name() string {
	switch p {
	case AwaitingPayment:
		return "AWAITING_PAYMENT"
	case ProcessingPayment:
		return "PROCESSING_PAYMENT"
	case AwaitingOpponent:
		return "AWAITING_OPPONENT"
	case Playing:
		return "PLAYING"
	case GameOver:
		return "GAME_OVER"
	default:
		return fmt.Sprintf("N/A(%d)", p)
	}
}

// Participant is a player or opponent with a continuous grid position.
type Participant struct {
	ID     string
	X, Y   float64
	Facing Direction
	Score  int
}

type Dot struct {
	X, Y int
}

// Rect is the inner wall outline. Sides cover [X0,X1) and [Y0,Y1).
type Rect struct {
	X0, Y0, X1, Y1 int
}

type Maze struct {
	Width, Height int
	// Walls is indexed [y][x].
	Walls [][]bool
}
