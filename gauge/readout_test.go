package gauge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/tinyfont/proggy"

	"github.com/coreman2200/soundgauge/model"
)

func TestReadoutText(t *testing.T) {
	r := Readout{Suffix: " dB"}
	assert.Equal(t, "72 dB", r.Text(72.9))
	assert.Equal(t, "-3 dB", r.Text(-3.5))
	assert.Equal(t, "150 dB", r.Text(150))
	assert.Equal(t, "-- dB", r.Text(math.NaN()))
}

func TestReadoutDisabled(t *testing.T) {
	buf := model.NewPixelBuffer(40, 20)
	Readout{Baseline: 15}.Draw(buf, 88, model.Red)
	assert.Equal(t, 40*20, buf.Count(model.Background))
}

// lowerRows counts pixels of c strictly below row y.
func lowerRows(buf *model.PixelBuffer, y int, c uint16) int {
	n := 0
	for yy := y + 1; yy < buf.Height(); yy++ {
		for x := 0; x < buf.Width(); x++ {
			if buf.Get(x, yy) == c {
				n++
			}
		}
	}
	return n
}

func TestUpdateDrawsReadoutUnderArc(t *testing.T) {
	c, sink := newController(t, func(o *Options) {
		o.Readout = Readout{Font: &proggy.TinySZ8pt7b, Baseline: 90}
	})
	f, err := c.Update(72)
	require.NoError(t, err)
	assert.Equal(t, model.Yellow, f.Color)

	digits := lowerRows(c.Buffer(), meterArc.CY, model.Yellow)
	assert.Greater(t, digits, 0, "digits are drawn in the fill color")
	assert.Equal(t, f.Painted+digits, c.Buffer().Count(model.Yellow), "the ring is untouched")

	// the ring rows match a plain render
	want, err := NewRasterizer(meterArc, model.NewPixelBuffer(160, 100))
	require.NoError(t, err)
	want.Fill(f.Fraction, f.Color)
	assert.Equal(t, want.Buffer().Raw()[:(meterArc.CY+1)*160], sink.last[:(meterArc.CY+1)*160])

	first := append([]uint16(nil), c.Buffer().Raw()...)
	_, err = c.Update(71)
	require.NoError(t, err)
	assert.NotEqual(t, first[(meterArc.CY+1)*160:], c.Buffer().Raw()[(meterArc.CY+1)*160:], "a new value redraws the digits")
}

func TestUpdateReadoutInBarMode(t *testing.T) {
	c, _ := newController(t, func(o *Options) {
		o.Readout = Readout{Font: &proggy.TinySZ8pt7b, Baseline: 90}
	})
	c.SetMode(ModeBar)
	f, err := c.Update(95)
	require.NoError(t, err)

	bar := c.Options().Bar
	below := lowerRows(c.Buffer(), bar.Y+bar.Height-1, model.Red)
	assert.Greater(t, below, 0)
	assert.Equal(t, f.Painted+below, c.Buffer().Count(model.Red))
}
