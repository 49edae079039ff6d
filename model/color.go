package model

import (
	"image/color"
)

// Bit layout of a packed 5-6-5 value: rrrrrggggggbbbbb.
const (
	RED_OFFSET   uint8 = 11
	GREEN_OFFSET uint8 = 5
	BLUE_OFFSET  uint8 = 0

	RED_MASK   uint16 = 0x1F
	GREEN_MASK uint16 = 0x3F
	BLUE_MASK  uint16 = 0x1F
)

// Named RGB565 values used by the gauge defaults.
const (
	Black  uint16 = 0x0000
	White  uint16 = 0xFFFF
	Red    uint16 = 0xF800
	Green  uint16 = 0x07E0
	Blue   uint16 = 0x001F
	Yellow uint16 = 0xFFE0
	Orange uint16 = 0xFC00
	Purple uint16 = 0x9112
	Gray   uint16 = 0x4208
)

type colorKind uint8

const (
	kindPacked colorKind = iota
	kindRGB
)

// Color is either a 24-bit RGB triple or an already packed RGB565 value.
// The zero value is packed black.
type Color struct {
	kind    colorKind
	r, g, b uint8
	packed  uint16
}

func RGB888(r, g, b uint8) Color {
	return Color{kind: kindRGB, r: r, g: g, b: b}
}

func Packed565(v uint16) Color {
	return Color{kind: kindPacked, packed: v}
}

// RGB565 is the one conversion from either representation to the wire format.
func (c Color) RGB565() uint16 {
	if c.kind == kindPacked {
		return c.packed
	}
	return Pack565(c.r, c.g, c.b)
}

func (c Color) IsRGB() bool {
	return c.kind == kindRGB
}

func (c Color) ToRGBA() color.RGBA {
	r, g, b := Unpack565(c.RGB565())
	return color.RGBA{R: r, G: g, B: b, A: 0xFF}
}

func Pack565(r, g, b uint8) uint16 {
	var v uint16
	v = setcolor(v, uint16(r>>3), RED_MASK, RED_OFFSET)
	v = setcolor(v, uint16(g>>2), GREEN_MASK, GREEN_OFFSET)
	v = setcolor(v, uint16(b>>3), BLUE_MASK, BLUE_OFFSET)
	return v
}

// Unpack565 expands each channel back to 8 bits, scaling so 0x1F/0x3F map to 0xFF.
func Unpack565(p uint16) (r, g, b uint8) {
	rr := getcolor(p, RED_MASK, RED_OFFSET)
	gg := getcolor(p, GREEN_MASK, GREEN_OFFSET)
	bb := getcolor(p, BLUE_MASK, BLUE_OFFSET)

	r = uint8((uint32(rr) * 255) / 31)
	g = uint8((uint32(gg) * 255) / 63)
	b = uint8((uint32(bb) * 255) / 31)
	return r, g, b
}

func setcolor(c uint16, n uint16, mask uint16, off uint8) uint16 {
	val := (n & mask) << off
	m := mask << off
	return (c & (^m)) | val
}

func getcolor(c uint16, mask uint16, off uint8) uint16 {
	return (c >> off) & mask
}

// RGB565Model converts any color to the nearest packed value, returned as color.RGBA.
var RGB565Model = color.ModelFunc(func(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return Packed565(Pack565(uint8(r>>8), uint8(g>>8), uint8(b>>8))).ToRGBA()
})
