package gauge

import (
	"image/color"
	"math"
	"strconv"

	"tinygo.org/x/tinyfont"

	"github.com/coreman2200/soundgauge/model"
)

// Readout prints the value as whole numbers centered under the gauge, in the
// fill color. A nil Font disables it.
type Readout struct {
	Font tinyfont.Fonter
	// Baseline is the buffer row the digits sit on.
	Baseline int
	Suffix   string
}

// Text is what Draw prints for v: the integer part plus Suffix.
func (r Readout) Text(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "--" + r.Suffix
	}
	return strconv.Itoa(int(v)) + r.Suffix
}

// Draw writes the text for v over whatever is already in buf.
func (r Readout) Draw(buf *model.PixelBuffer, v float64, c uint16) {
	if r.Font == nil {
		return
	}
	text := r.Text(v)
	_, w := tinyfont.LineWidth(r.Font, text)
	x := (buf.Width() - int(w)) / 2
	tinyfont.WriteLine(bufDisplayer{buf}, r.Font, int16(x), int16(r.Baseline), text, model.Packed565(c).ToRGBA())
}

// bufDisplayer lets tinyfont draw into a PixelBuffer.
type bufDisplayer struct {
	buf *model.PixelBuffer
}

func (d bufDisplayer) Size() (x, y int16) {
	return int16(d.buf.Width()), int16(d.buf.Height())
}

func (d bufDisplayer) SetPixel(x, y int16, c color.RGBA) {
	d.buf.Set(int(x), int(y), model.Pack565(c.R, c.G, c.B))
}

func (d bufDisplayer) Display() error { return nil }
