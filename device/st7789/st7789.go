// Package st7789 drives a Sitronix ST7789 RGB565 LCD over SPI, as fitted to the
// 1.69" 240x280 round-corner panel.
//
// The driver keeps a shadow framebuffer of the whole panel. Blits composite into
// it and only the touched window is pushed over the bus.
package st7789

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/coreman2200/soundgauge/model"
)

const (
	cmdSleepOut  = 0x11
	cmdInvOn     = 0x21
	cmdDispOff   = 0x28
	cmdDispOn    = 0x29
	cmdColumnSet = 0x2A
	cmdRowSet    = 0x2B
	cmdMemWrite  = 0x2C
	cmdMADCTL    = 0x36
	cmdColMod    = 0x3A

	// maxTx is the spidev default transfer buffer size.
	maxTx = 4096
)

// initSequence is the vendor's register setup for the 1.69" module. Each entry
// is a command followed by its parameters.
var initSequence = [][]byte{
	{cmdMADCTL, 0x00},
	{cmdColMod, 0x05},
	{0xB2, 0x0B, 0x0B, 0x00, 0x33, 0x35},
	{0xB7, 0x11},
	{0xBB, 0x35},
	{0xC0, 0x2C},
	{0xC2, 0x01},
	{0xC3, 0x0D},
	{0xC4, 0x20},
	{0xC6, 0x13},
	{0xD0, 0xA4, 0xA1},
	{0xD6, 0xA1},
	{0xE0, 0xF0, 0x06, 0x0B, 0x0A, 0x09, 0x26, 0x29, 0x33, 0x41, 0x18, 0x16, 0x15, 0x29, 0x2D},
	{0xE1, 0xF0, 0x04, 0x08, 0x08, 0x07, 0x03, 0x28, 0x32, 0x40, 0x3B, 0x19, 0x18, 0x2A, 0x2E},
	{0xE4, 0x25, 0x00, 0x00},
	{cmdInvOn},
}

// sleep is replaced in tests.
var sleep = time.Sleep

// Opts holds the panel geometry and bus settings.
type Opts struct {
	W, H int
	// YOffset is the first controller row wired to the glass.
	YOffset int
	Freq    physic.Frequency
	// Background shows through transparent pixels of a blitted buffer.
	Background uint16
}

// DefaultOpts matches the 240x280 module.
var DefaultOpts = Opts{
	W:          240,
	H:          280,
	YOffset:    20,
	Freq:       40 * physic.MegaHertz,
	Background: model.White,
}

// Dev is an open ST7789 panel.
type Dev struct {
	c    spi.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
	bl   gpio.PinOut
	opts Opts

	mu   sync.Mutex
	fb   *model.PixelBuffer
	wire []byte
}

// NewSPI connects to the panel on p, resets and initializes it, clears it to
// opts.Background and turns the backlight on. rst and bl may be nil; dc may not.
func NewSPI(p spi.Port, dc, rst, bl gpio.PinOut, opts *Opts) (*Dev, error) {
	if dc == nil {
		return nil, errors.New("st7789: dc pin is required")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	o := *opts
	if o.W <= 0 || o.H <= 0 {
		return nil, fmt.Errorf("st7789: invalid size %dx%d", o.W, o.H)
	}
	if o.Freq == 0 {
		o.Freq = DefaultOpts.Freq
	}
	c, err := p.Connect(o.Freq, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("st7789: %w", err)
	}
	d := &Dev{
		c:    c,
		dc:   dc,
		rst:  rst,
		bl:   bl,
		opts: o,
		fb:   model.NewPixelBuffer(o.W, o.H),
		wire: make([]byte, 0, maxTx),
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	if err := d.Fill(o.Background); err != nil {
		return nil, err
	}
	if err := d.SetBacklight(true); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dev) init() error {
	if d.rst != nil {
		for _, l := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
			if err := d.rst.Out(l); err != nil {
				return fmt.Errorf("st7789: reset: %w", err)
			}
			sleep(10 * time.Millisecond)
		}
		sleep(40 * time.Millisecond)
	}
	for _, s := range initSequence {
		if err := d.command(s[0], s[1:]...); err != nil {
			return err
		}
	}
	if err := d.command(cmdSleepOut); err != nil {
		return err
	}
	sleep(120 * time.Millisecond)
	return d.command(cmdDispOn)
}

func (d *Dev) String() string {
	return fmt.Sprintf("st7789{%s}", d.c)
}

// Bounds is the visible panel area.
func (d *Dev) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.opts.W, d.opts.H)
}

// Halt blanks the panel and switches the backlight off.
func (d *Dev) Halt() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.command(cmdDispOff); err != nil {
		return err
	}
	return d.setBacklight(false)
}

func (d *Dev) SetBacklight(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setBacklight(on)
}

func (d *Dev) setBacklight(on bool) error {
	if d.bl == nil {
		return nil
	}
	return d.bl.Out(gpio.Level(on))
}

// Fill paints the whole panel.
func (d *Dev) Fill(c uint16) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fb.Clear(c)
	return d.flush(d.fb.Bounds())
}

// Blit composites buf onto the panel at (x, y) and pushes the affected window.
// Pixels equal to model.Background show the panel background. Parts outside the
// panel are clipped.
func (d *Dev) Blit(buf *model.PixelBuffer, x, y int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r := buf.Bounds().Add(image.Pt(x, y)).Intersect(d.fb.Bounds())
	if r.Empty() {
		return nil
	}
	for py := r.Min.Y; py < r.Max.Y; py++ {
		for px := r.Min.X; px < r.Max.X; px++ {
			v := buf.Get(px-x, py-y)
			if v == model.Background {
				v = d.opts.Background
			}
			d.fb.Set(px, py, v)
		}
	}
	return d.flush(r)
}

// Pixel reads back the shadow framebuffer.
func (d *Dev) Pixel(x, y int) uint16 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fb.Get(x, y)
}

// flush sets the controller window to r and streams its pixels big-endian.
func (d *Dev) flush(r image.Rectangle) error {
	if err := d.window(r); err != nil {
		return err
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	d.wire = d.wire[:0]
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			d.wire = binary.BigEndian.AppendUint16(d.wire, d.fb.Get(x, y))
			if len(d.wire) == maxTx {
				if err := d.c.Tx(d.wire, nil); err != nil {
					return fmt.Errorf("st7789: write: %w", err)
				}
				d.wire = d.wire[:0]
			}
		}
	}
	if len(d.wire) > 0 {
		if err := d.c.Tx(d.wire, nil); err != nil {
			return fmt.Errorf("st7789: write: %w", err)
		}
	}
	return nil
}

func (d *Dev) window(r image.Rectangle) error {
	x0, x1 := uint16(r.Min.X), uint16(r.Max.X-1)
	y0, y1 := uint16(r.Min.Y+d.opts.YOffset), uint16(r.Max.Y-1+d.opts.YOffset)
	if err := d.command(cmdColumnSet, byte(x0>>8), byte(x0), byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	if err := d.command(cmdRowSet, byte(y0>>8), byte(y0), byte(y1>>8), byte(y1)); err != nil {
		return err
	}
	return d.command(cmdMemWrite)
}

func (d *Dev) command(cmd byte, params ...byte) error {
	if err := d.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := d.c.Tx([]byte{cmd}, nil); err != nil {
		return fmt.Errorf("st7789: command 0x%02x: %w", cmd, err)
	}
	if len(params) == 0 {
		return nil
	}
	if err := d.dc.Out(gpio.High); err != nil {
		return err
	}
	if err := d.c.Tx(params, nil); err != nil {
		return fmt.Errorf("st7789: command 0x%02x: %w", cmd, err)
	}
	return nil
}
