// Package cst816 controls the Hynitron CST816 capacitive touch controller over
// I²C. The chip decodes swipes, double clicks and long presses itself and
// reports them through a gesture register.
package cst816

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/mmr"

	"github.com/coreman2200/soundgauge/gauge"
)

// DefaultAddr is the controller's I²C address.
const DefaultAddr uint16 = 0x15

const (
	regGesture   = 0x01
	regPoint     = 0x03
	regWhoAmI    = 0xA7
	regRevision  = 0xA9
	regMotion    = 0xEC
	regIRQCtl    = 0xFA
	regDisSleep  = 0xFE
	chipID       = 0xB5
	resetPulse   = time.Millisecond
	resetSettled = 50 * time.Millisecond
)

// Mode selects which events raise the interrupt line.
type Mode uint8

const (
	ModeGesture Mode = iota
	ModePoint
	ModeMixed
)

func (m Mode) String() string {
	switch m {
	case ModeGesture:
		return "gesture"
	case ModePoint:
		return "point"
	case ModeMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// ErrNotDetected is returned by New when the chip id does not match.
var ErrNotDetected = errors.New("cst816: device not detected")

// Opts holds the configuration for the controller.
type Opts struct {
	Addr uint16
	Mode Mode
	// Reset is pulsed low on New when set.
	Reset gpio.PinOut
	// IRQ is the active low interrupt line. Without it, Poll reads the gesture
	// register on every call and reports each gesture once.
	IRQ gpio.PinIn
}

// Dev is a handle to a CST816.
type Dev struct {
	c        mmr.Dev8
	rst      gpio.PinOut
	irq      gpio.PinIn
	name     string
	revision uint8

	mu   sync.Mutex
	mode Mode
	last gauge.Gesture
}

// New resets the chip, checks its id, wakes it and selects opts.Mode.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &Opts{}
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	d := &Dev{
		c:    mmr.Dev8{Conn: &i2c.Dev{Bus: bus, Addr: addr}, Order: binary.BigEndian},
		rst:  opts.Reset,
		irq:  opts.IRQ,
		name: fmt.Sprintf("cst816{%s}", bus),
	}
	if err := d.reset(); err != nil {
		return nil, err
	}
	id, err := d.c.ReadUint8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotDetected, err)
	}
	if id != chipID {
		return nil, fmt.Errorf("%w: id 0x%02x", ErrNotDetected, id)
	}
	if d.revision, err = d.c.ReadUint8(regRevision); err != nil {
		return nil, err
	}
	if err := d.c.WriteUint8(regDisSleep, 0x01); err != nil {
		return nil, err
	}
	if err := d.SetMode(opts.Mode); err != nil {
		return nil, err
	}
	if d.irq != nil {
		if err := d.irq.In(gpio.PullUp, gpio.FallingEdge); err != nil {
			return nil, fmt.Errorf("cst816: irq: %w", err)
		}
	}
	return d, nil
}

func (d *Dev) reset() error {
	if d.rst == nil {
		return nil
	}
	if err := d.rst.Out(gpio.Low); err != nil {
		return fmt.Errorf("cst816: reset: %w", err)
	}
	time.Sleep(resetPulse)
	if err := d.rst.Out(gpio.High); err != nil {
		return fmt.Errorf("cst816: reset: %w", err)
	}
	time.Sleep(resetSettled)
	return nil
}

func (d *Dev) String() string {
	return d.name
}

// Halt implements conn.Resource.
func (d *Dev) Halt() error {
	if d.irq != nil {
		return d.irq.In(gpio.PullUp, gpio.NoEdge)
	}
	return nil
}

// Revision is the firmware revision read during New.
func (d *Dev) Revision() uint8 {
	return d.revision
}

func (d *Dev) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

// SetMode selects which events the chip reports.
func (d *Dev) SetMode(m Mode) error {
	var err error
	switch m {
	case ModePoint:
		err = d.c.WriteUint8(regIRQCtl, 0x41)
	case ModeMixed:
		err = d.c.WriteUint8(regIRQCtl, 0x71)
	case ModeGesture:
		if err = d.c.WriteUint8(regIRQCtl, 0x11); err == nil {
			// enables double click detection
			err = d.c.WriteUint8(regMotion, 0x01)
		}
	default:
		return fmt.Errorf("cst816: unknown mode %d", m)
	}
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.mode = m
	d.mu.Unlock()
	return nil
}

// Gesture reads the gesture register as is.
func (d *Dev) Gesture() (gauge.Gesture, error) {
	v, err := d.c.ReadUint8(regGesture)
	return gauge.Gesture(v), err
}

// Point reads the coordinates of the current touch.
func (d *Dev) Point() (image.Point, error) {
	var b [4]byte
	if err := d.c.Conn.Tx([]byte{regPoint}, b[:]); err != nil {
		return image.Point{}, err
	}
	x := int(b[0]&0x0F)<<8 | int(b[1])
	y := int(b[2]&0x0F)<<8 | int(b[3])
	return image.Pt(x, y), nil
}

// Poll implements gauge.GestureSource. It never blocks.
//
// With an IRQ pin a gesture is read only after a falling edge. Without one the
// register keeps reporting the last gesture, so a code is returned once and then
// suppressed until the register changes.
func (d *Dev) Poll() (gauge.Gesture, error) {
	if d.irq != nil {
		if !d.irq.WaitForEdge(0) {
			return gauge.GestureNone, nil
		}
		return d.Gesture()
	}
	g, err := d.Gesture()
	if err != nil {
		return gauge.GestureNone, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if g == d.last {
		return gauge.GestureNone, nil
	}
	d.last = g
	return g, nil
}

// WaitForGesture blocks on the IRQ line for up to timeout. A negative timeout
// waits forever.
func (d *Dev) WaitForGesture(timeout time.Duration) (gauge.Gesture, error) {
	if d.irq == nil {
		return gauge.GestureNone, errors.New("cst816: no irq pin")
	}
	if !d.irq.WaitForEdge(timeout) {
		return gauge.GestureNone, nil
	}
	return d.Gesture()
}
