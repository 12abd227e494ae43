package main

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
)

// Nine draws a nine-slice panel: corners keep their size, edges and centre
// stretch.
type Nine struct {
	images              *ebiten.Image
	alpha               float64
	R, G, B, Scale      float64
	positions           [4][2]int
	x, y, width, height int
	scaleCenterWidth    float64
	scaleCenterHeight   float64
	targetPositions     [4][2]float64
}

// newPanel renders the rounded source frame every HUD panel is cut from.
func newPanel(fill, border color.Color) *Nine {
	const side, corner = 24, 8
	img := ebiten.NewImage(side, side)
	vector.DrawFilledRect(img, 2, 2, side-4, side-4, fill, true)
	vector.StrokeRect(img, 1, 1, side-2, side-2, 2, border, true)
	return &Nine{
		images:    img,
		alpha:     1,
		R:         1, G: 1, B: 1, Scale: 1,
		positions: [4][2]int{{0, 0}, {corner, corner}, {side - corner, side - corner}, {side, side}},
	}
}

func (n *Nine) SetPosition(x, y int) {
	n.x = x
	n.y = y
	n.SetSize(n.width, n.height)
}

func (n *Nine) SetSize(width, height int) {
	n.width = width
	n.height = height
	n.targetPositions[0][0] = float64(n.x)
	n.targetPositions[0][1] = float64(n.y)

	n.targetPositions[1][0] = float64(n.x) + n.Scale*float64(n.positions[1][0])
	n.targetPositions[1][1] = float64(n.y) + n.Scale*float64(n.positions[1][1])

	n.targetPositions[2][0] = float64(n.x+n.width) - n.Scale*float64(n.positions[3][0]-n.positions[2][0])
	n.targetPositions[2][1] = float64(n.y+n.height) - n.Scale*float64(n.positions[3][1]-n.positions[2][1])

	innerWidth := n.targetPositions[2][0] - n.targetPositions[1][0]
	innerHigh := n.targetPositions[2][1] - n.targetPositions[1][1]

	n.scaleCenterWidth = innerWidth / float64(n.positions[2][0]-n.positions[1][0])
	n.scaleCenterHeight = innerHigh / float64(n.positions[2][1]-n.positions[1][1])
}

func (n *Nine) Draw(screen *ebiten.Image) {
	// column and row scales of the nine cells
	sx := [3]float64{n.Scale, n.scaleCenterWidth, n.Scale}
	sy := [3]float64{n.Scale, n.scaleCenterHeight, n.Scale}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			src := image.Rect(
				n.positions[col][0], n.positions[row][1],
				n.positions[col+1][0], n.positions[row+1][1])
			op := &ebiten.DrawImageOptions{}
			op.GeoM.Scale(sx[col], sy[row])
			op.GeoM.Translate(n.targetPositions[col][0], n.targetPositions[row][1])
			op.ColorScale.Scale(float32(n.R), float32(n.G), float32(n.B), 1)
			op.ColorScale.ScaleAlpha(float32(n.alpha))
			screen.DrawImage(n.images.SubImage(src).(*ebiten.Image), op)
		}
	}
}
