package gauge

import (
	"github.com/coreman2200/soundgauge/model"
)

// Bar is the horizontal bar gauge: a one pixel outline with a proportional fill
// inset by one pixel.
type Bar struct {
	X, Y          int
	Width, Height int
	Outline       uint16
}

func (b Bar) Validate() error {
	if b.Width < 3 || b.Height < 3 {
		return configErr("bar", "needs at least 3x3 pixels, got %dx%d", b.Width, b.Height)
	}
	return nil
}

// FillWidth is the painted width for fraction; fill shorter than two pixels
// paints nothing.
func (b Bar) FillWidth(fraction float64) int {
	w := int(float64(b.Width) * clamp01(fraction))
	if w <= 1 {
		return 0
	}
	if w > b.Width-1 {
		w = b.Width - 1
	}
	return w - 1
}

// Draw clears buf and renders the bar into it.
func (b Bar) Draw(buf *model.PixelBuffer, fraction float64, c uint16) {
	buf.Clear(model.Background)
	buf.Rect(b.X, b.Y, b.Width, b.Height, b.Outline)
	if w := b.FillWidth(fraction); w > 0 {
		buf.FillRect(b.X+1, b.Y+1, w, b.Height-2, c)
	}
}
