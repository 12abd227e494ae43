package main

import (
	"image/color"
	"math/big"
)

func HexToRGBA(u uint32) color.RGBA {
	return color.RGBA{R: uint8(u >> 16), G: uint8(u >> 8), B: uint8(u), A: 0xff}
}

var (
	COLOR_BACKGROUND = HexToRGBA(0x101018)
	COLOR_WALL       = HexToRGBA(0x2b3fbf)
	COLOR_DOT        = HexToRGBA(0xf4e3c1)
	COLOR_PLAYER     = HexToRGBA(0xff8c1a)
	COLOR_OPPONENT   = HexToRGBA(0xe8364a)
	COLOR_TEXT       = HexToRGBA(0xf0f0f0)
	COLOR_HINT       = HexToRGBA(0x9a9ab0)
	COLOR_ERROR      = HexToRGBA(0xff6b6b)
	COLOR_PANEL      = color.RGBA{0x1c, 0x1c, 0x2a, 0xe6}
	COLOR_BORDER     = HexToRGBA(0xff8c1a)
)

// outcome is the result of a background action, handed back to Update.
type outcome struct {
	action string
	err    error
	// fee is set by token price refreshes.
	fee *big.Int
}
