package model

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
)

// Background is the clear color of a gauge buffer. Compositing sinks treat it as
// transparent, and Get returns it for coordinates outside the buffer.
const Background uint16 = Black

// PixelBuffer is a fixed-size row-major grid of packed RGB565 values.
type PixelBuffer struct {
	width  int
	height int
	pix    []uint16
}

// NewPixelBuffer allocates a buffer cleared to Background. Non-positive
// dimensions yield an empty buffer that absorbs every write.
func NewPixelBuffer(width, height int) *PixelBuffer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &PixelBuffer{
		width:  width,
		height: height,
		pix:    make([]uint16, width*height),
	}
}

func (p *PixelBuffer) Width() int  { return p.width }
func (p *PixelBuffer) Height() int { return p.height }

func (p *PixelBuffer) In(x, y int) bool {
	return x >= 0 && x < p.width && y >= 0 && y < p.height
}

func (p *PixelBuffer) Clear(c uint16) {
	for i := range p.pix {
		p.pix[i] = c
	}
}

func (p *PixelBuffer) Set(x, y int, c uint16) {
	if !p.In(x, y) {
		return
	}
	p.pix[y*p.width+x] = c
}

func (p *PixelBuffer) Get(x, y int) uint16 {
	if !p.In(x, y) {
		return Background
	}
	return p.pix[y*p.width+x]
}

// FillRect paints the intersection of the rectangle with the buffer.
func (p *PixelBuffer) FillRect(x, y, w, h int, c uint16) {
	r := image.Rect(x, y, x+w, y+h).Intersect(p.Bounds())
	for yy := r.Min.Y; yy < r.Max.Y; yy++ {
		row := p.pix[yy*p.width : (yy+1)*p.width]
		for xx := r.Min.X; xx < r.Max.X; xx++ {
			row[xx] = c
		}
	}
}

// Rect draws a one pixel outline.
func (p *PixelBuffer) Rect(x, y, w, h int, c uint16) {
	if w <= 0 || h <= 0 {
		return
	}
	p.FillRect(x, y, w, 1, c)
	p.FillRect(x, y+h-1, w, 1, c)
	p.FillRect(x, y, 1, h, c)
	p.FillRect(x+w-1, y, 1, h, c)
}

// Raw exposes the backing store for bulk transfer. Callers must not retain it
// across frames.
func (p *PixelBuffer) Raw() []uint16 {
	return p.pix
}

// Count returns the number of cells holding c.
func (p *PixelBuffer) Count(c uint16) int {
	n := 0
	for _, v := range p.pix {
		if v == c {
			n++
		}
	}
	return n
}

// Bytes serializes the buffer as little-endian RGB565, two bytes per pixel.
func (p *PixelBuffer) Bytes() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(p.pix) * 2)
	_ = binary.Write(buf, binary.LittleEndian, p.pix)
	return buf.Bytes()
}

// Image converts the buffer to an NRGBA image. Background cells become fully
// transparent.
func (p *PixelBuffer) Image() *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, p.width, p.height))
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			v := p.pix[y*p.width+x]
			if v == Background {
				continue
			}
			r, g, b := Unpack565(v)
			im.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 0xFF})
		}
	}
	return im
}

// PixelBuffer is an image.Image, so a buffer can be handed straight to a
// display.Drawer.

func (p *PixelBuffer) ColorModel() color.Model { return RGB565Model }

func (p *PixelBuffer) Bounds() image.Rectangle { return image.Rect(0, 0, p.width, p.height) }

func (p *PixelBuffer) At(x, y int) color.Color {
	return Packed565(p.Get(x, y)).ToRGBA()
}
