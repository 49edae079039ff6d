package gauge

import (
	"image"
	"math"

	"github.com/coreman2200/soundgauge/model"
)

// Rasterizer paints an Arc into a buffer it owns.
type Rasterizer struct {
	Arc Arc
	buf *model.PixelBuffer
}

func NewRasterizer(arc Arc, buf *model.PixelBuffer) (*Rasterizer, error) {
	if err := arc.Validate(); err != nil {
		return nil, err
	}
	if buf == nil || buf.Width() <= 0 || buf.Height() <= 0 {
		return nil, configErr("buffer", "must have positive dimensions")
	}
	return &Rasterizer{Arc: arc, buf: buf}, nil
}

func (r *Rasterizer) Buffer() *model.PixelBuffer { return r.buf }

// Box is the arc's bounding square clipped to the buffer.
func (r *Rasterizer) Box() image.Rectangle {
	a := r.Arc
	box := image.Rect(a.CX-a.Outer, a.CY-a.Outer, a.CX+a.Outer+1, a.CY+a.Outer+1)
	return box.Intersect(r.buf.Bounds())
}

// Fill clears the buffer and paints every ring pixel within the sweep for
// fraction. It returns the number of pixels painted.
func (r *Rasterizer) Fill(fraction float64, c uint16) int {
	r.buf.Clear(model.Background)

	deg := FillDegrees(fraction)
	if deg <= 0 {
		return 0
	}

	n := 0
	box := r.Box()
	for y := box.Min.Y; y < box.Max.Y; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if r.Arc.IsFilled(x, y, deg) {
				r.buf.Set(x, y, c)
				n++
			}
		}
	}
	return n
}

// Outline clears the buffer and traces the outer and inner edges of the ring,
// thickness pixels deep each.
func (r *Rasterizer) Outline(c uint16, thickness int) {
	r.buf.Clear(model.Background)
	if thickness <= 0 {
		return
	}

	a := r.Arc
	for t := 0; t < thickness; t++ {
		outer := a.Outer - t
		inner := a.Inner + t
		if outer < 0 {
			outer = 0
		}

		// one step per half pixel of the larger circumference keeps the trace gap free
		steps := 2 * max(outer, inner)
		if steps == 0 {
			r.buf.Set(a.CX, a.CY, c)
			continue
		}
		for i := 0; i <= steps; i++ {
			rad := (180.0 + 180.0*float64(i)/float64(steps)) * math.Pi / 180.0
			cos, sin := math.Cos(rad), math.Sin(rad)
			r.plot(outer, cos, sin, c)
			r.plot(inner, cos, sin, c)
		}
	}
}

func (r *Rasterizer) plot(radius int, cos, sin float64, c uint16) {
	x := int(math.Round(float64(r.Arc.CX) + float64(radius)*cos))
	y := int(math.Round(float64(r.Arc.CY) + float64(radius)*sin))
	r.buf.Set(x, y, c)
}
