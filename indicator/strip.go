// Package indicator mirrors the gauge level on an addressable LED strip.
package indicator

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"os"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/soundgauge/internal/config"
	"github.com/coreman2200/soundgauge/model"
)

// Strip lights the first Lit(n, fraction) pixels in the gauge color.
type Strip struct {
	Name    string
	Console bool

	drawer  display.Drawer
	img     *image.NRGBA
	out     io.Writer
	closers []func() error
}

// New wraps any 1-row drawer, such as an nrzled.Dev.
func New(d display.Drawer, n int) *Strip {
	return &Strip{
		Name:   d.String(),
		drawer: d,
		img:    image.NewNRGBA(image.Rect(0, 0, n, 1)),
	}
}

// Open returns nil when the strip is disabled. Without an SPI port the strip
// is drawn at the console instead.
func Open(cfg config.Indicator, log zerolog.Logger) (*Strip, error) {
	if cfg.LEDs == 0 {
		return nil, nil
	}
	port, err := spireg.Open(cfg.SPI)
	if err != nil {
		log.Warn().Err(err).Msg("failed to find a SPI port, printing the strip at the console")
		s := New(screen.New(cfg.LEDs), cfg.LEDs)
		s.Console = true
		s.out = os.Stdout
		return s, nil
	}
	opts := nrzled.Opts{
		NumPixels: cfg.LEDs,
		Channels:  3,
		Freq:      physic.Frequency(cfg.SpeedHz) * physic.Hertz,
	}
	d, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("indicator: %w", err)
	}
	s := New(d, cfg.LEDs)
	s.closers = []func() error{port.Close, d.Halt}
	return s, nil
}

// Len is the number of pixels on the strip.
func (s *Strip) Len() int { return s.img.Rect.Dx() }

// Show lights the strip for a fill fraction in [0,1].
func (s *Strip) Show(fraction float64, c uint16) error {
	lit := Lit(s.Len(), fraction)
	on := model.Packed565(c).ToRGBA()
	for i := 0; i < s.Len(); i++ {
		if i < lit {
			s.img.Set(i, 0, on)
		} else {
			s.img.Set(i, 0, color.NRGBA{A: 0xFF})
		}
	}
	if err := s.drawer.Draw(s.drawer.Bounds(), s.img, image.Point{}); err != nil {
		return err
	}
	if s.Console && s.out != nil {
		fmt.Fprint(s.out, "\n")
	}
	return nil
}

// Halt turns the strip off and releases the port.
func (s *Strip) Halt() error {
	if len(s.closers) == 0 {
		return s.drawer.Halt()
	}
	var first error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	s.closers = nil
	return first
}

// Lit is ceil(n*fraction), so any non-zero level lights at least one pixel.
func Lit(n int, fraction float64) int {
	if n <= 0 || !(fraction > 0) {
		return 0
	}
	if fraction >= 1 {
		return n
	}
	return int(math.Ceil(float64(n)*fraction - 1e-9))
}
