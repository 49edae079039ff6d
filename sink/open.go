// Package sink picks and opens the surface the gauge is drawn on.
package sink

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/ssd1306"

	"github.com/coreman2200/soundgauge/device/st7789"
	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/internal/config"
)

// Output is an opened sink plus whatever must be released with it.
type Output struct {
	gauge.DisplaySink
	Name string
	// Fallback is set when the configured hardware could not be opened and the
	// terminal is used instead.
	Fallback bool

	closers []func() error
}

// Halt stops the device and releases its bus.
func (o *Output) Halt() error {
	var first error
	for i := len(o.closers) - 1; i >= 0; i-- {
		if err := o.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	o.closers = nil
	return first
}

// Open opens the configured display. Hardware that cannot be reached falls back
// to braille on stdout so the meter keeps running headless.
func Open(cfg config.Display, log zerolog.Logger) (*Output, error) {
	return open(cfg, log, os.Stdout)
}

func open(cfg config.Display, log zerolog.Logger, w io.Writer) (*Output, error) {
	var (
		out *Output
		err error
	)
	switch cfg.Driver {
	case "st7789":
		out, err = openST7789(cfg)
	case "ssd1306":
		out, err = openSSD1306(cfg)
	case "braille":
		return &Output{DisplaySink: NewBraille(w, cfg.BrailleStep), Name: "braille"}, nil
	default:
		return nil, fmt.Errorf("sink: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.Driver).Msg("display unavailable, printing at the console")
		return &Output{DisplaySink: NewBraille(w, cfg.BrailleStep), Name: "braille", Fallback: true}, nil
	}
	return out, nil
}

func openST7789(cfg config.Display) (*Output, error) {
	dc := gpioreg.ByName(cfg.DCPin)
	if dc == nil {
		return nil, fmt.Errorf("dc pin %q not found", cfg.DCPin)
	}
	port, err := spireg.Open(cfg.SPI)
	if err != nil {
		return nil, err
	}
	opts := st7789.DefaultOpts
	if cfg.SpeedHz > 0 {
		opts.Freq = physic.Frequency(cfg.SpeedHz) * physic.Hertz
	}
	d, err := st7789.NewSPI(port, dc, pinOut(cfg.ResetPin), pinOut(cfg.BacklightPin), &opts)
	if err != nil {
		port.Close()
		return nil, err
	}
	return &Output{
		DisplaySink: d,
		Name:        d.String(),
		closers:     []func() error{port.Close, d.Halt},
	}, nil
}

func openSSD1306(cfg config.Display) (*Output, error) {
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, err
	}
	d, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, err
	}
	return &Output{
		DisplaySink: NewDrawer(d, image.Pt(cfg.OriginX, cfg.OriginY)),
		Name:        d.String(),
		closers:     []func() error{bus.Close, d.Halt},
	}, nil
}

// pinOut looks a pin up by name; an empty or unknown name yields nil.
func pinOut(name string) gpio.PinOut {
	if name == "" {
		return nil
	}
	if p := gpioreg.ByName(name); p != nil {
		return p
	}
	return nil
}
