package sink

import (
	"fmt"
	"image"

	"periph.io/x/conn/v3/display"

	"github.com/coreman2200/soundgauge/model"
)

// Drawer adapts any periph display.Drawer to gauge.DisplaySink.
//
// Blit coordinates are shifted by Origin before drawing, so a gauge laid out for
// the 240x280 panel can land on a smaller surface. Parts outside the drawer's
// bounds are clipped.
type Drawer struct {
	D      display.Drawer
	Origin image.Point
}

func NewDrawer(d display.Drawer, origin image.Point) *Drawer {
	return &Drawer{D: d, Origin: origin}
}

func (d *Drawer) Blit(buf *model.PixelBuffer, x, y int) error {
	at := image.Pt(x, y).Sub(d.Origin)
	dst := buf.Bounds().Add(at).Intersect(d.D.Bounds())
	if dst.Empty() {
		return nil
	}
	// sp is the buffer point drawn at dst.Min
	sp := dst.Min.Sub(at)
	if err := d.D.Draw(dst, buf, sp); err != nil {
		return fmt.Errorf("%s: %w", d.D, err)
	}
	return nil
}

func (d *Drawer) String() string {
	return d.D.String()
}

func (d *Drawer) Halt() error {
	return d.D.Halt()
}
