package model

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

const (
	GridWidth  = 30
	GridHeight = 30
)

// DefaultInner is the fixed inner rectangle of the standard maze.
var DefaultInner = Rect{X0: 5, Y0: 5, X1: 15, Y1: 15}

func NewMaze(width, height int, inner Rect) *Maze {
	walls := make([][]bool, height)
	for y := range walls {
		walls[y] = make([]bool, width)
	}
	for x := 0; x < width; x++ {
		walls[0][x] = true
		walls[height-1][x] = true
	}
	for y := 0; y < height; y++ {
		walls[y][0] = true
		walls[y][width-1] = true
	}
	m := &Maze{Width: width, Height: height, Walls: walls}
	for i := inner.X0; i < inner.X1; i++ {
		m.set(i, inner.Y0)
		m.set(i, inner.Y1)
	}
	for i := inner.Y0; i < inner.Y1; i++ {
		m.set(inner.X0, i)
		m.set(inner.X1, i)
	}
	return m
}

func NewDefaultMaze() *Maze {
	return NewMaze(GridWidth, GridHeight, DefaultInner)
}

func (m *Maze) set(x, y int) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Walls[y][x] = true
}

// Wall reports whether the cell is a wall. Cells outside the grid are walls.
func (m *Maze) Wall(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return true
	}
	return m.Walls[y][x]
}

// Dots samples open inner cells on even rows or even columns, row-major.
func (m *Maze) Dots() []Dot {
	dots := make([]Dot, 0)
	for y := 1; y < m.Height-1; y++ {
		for x := 1; x < m.Width-1; x++ {
			if !m.Walls[y][x] && (x%2 == 0 || y%2 == 0) {
				dots = append(dots, Dot{X: x, Y: y})
			}
		}
	}
	return dots
}

// Clamp keeps a position inside the ring one cell inward from each edge.
func (m *Maze) Clamp(x, y float64) (float64, float64) {
	return clamp(x, 1, float64(m.Width-2)), clamp(y, 1, float64(m.Height-2))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Move advances p by step cells in its facing direction, clamped per axis.
func (m *Maze) Move(p *Participant, step float64) {
	dx, dy := p.Facing.Delta()
	p.X, p.Y = m.Clamp(p.X+dx*step, p.Y+dy*step)
}

// Pursue turns the chaser toward the target along the axis with the larger
// delta. Equal deltas fall to the vertical axis.
func Pursue(chaser *Participant, targetX, targetY float64) {
	dx := targetX - chaser.X
	dy := targetY - chaser.Y
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			chaser.Facing = Right
		} else {
			chaser.Facing = Left
		}
		return
	}
	if dy > 0 {
		chaser.Facing = Down
	} else {
		chaser.Facing = Up
	}
}

func (d Dot) Distance(x, y float64) float64 {
	return math.Hypot(x-float64(d.X), y-float64(d.Y))
}

type Point struct {
	X, Y float64
}

// Mouth returns the wedge triangle of a participant drawn with the given cell
// size in pixels: the centre and the two lip corners.
func (p Participant) Mouth(cell float64) [3]Point {
	cx := p.X*cell + cell/2
	cy := p.Y*cell + cell/2
	half, quarter := cell/2, cell/4
	centre := Point{cx, cy}
	switch p.Facing {
	case Left:
		return [3]Point{centre, {cx - half, cy - quarter}, {cx - half, cy + quarter}}
	case Up:
		return [3]Point{centre, {cx - quarter, cy - half}, {cx + quarter, cy - half}}
	case Down:
		return [3]Point{centre, {cx - quarter, cy + half}, {cx + quarter, cy + half}}
	default:
		return [3]Point{centre, {cx + half, cy - quarter}, {cx + half, cy + quarter}}
	}
}

// ReadMaze parses a text layout: '#' is a wall, anything else is open.
// All lines must have the same width.
func ReadMaze(reader io.Reader) (*Maze, error) {
	scanner := bufio.NewScanner(reader)
	scanner.Split(bufio.ScanLines)
	walls := make([][]bool, 0)
	width := -1
	for scanner.Scan() {
		s := scanner.Text()
		if s == "" {
			continue
		}
		if width == -1 {
			width = len(s)
		} else if len(s) != width {
			return nil, fmt.Errorf("maze row %d has width %d, want %d", len(walls), len(s), width)
		}
		line := make([]bool, 0, width)
		for i := 0; i < len(s); i++ {
			if s[i] >= utf8.RuneSelf {
				return nil, fmt.Errorf("maze row %d column %d: only ASCII cells are allowed", len(walls), i)
			}
			line = append(line, s[i] == '#')
		}
		walls = append(walls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(walls) < 3 || width < 3 {
		return nil, fmt.Errorf("maze too small: %dx%d", width, len(walls))
	}
	return &Maze{Width: width, Height: len(walls), Walls: walls}, nil
}
