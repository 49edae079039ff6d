// Package dbmeter controls the PCB Artists I²C decibel meter module.
//
// The module measures sound pressure level internally and exposes the latest
// reading, min/max tracking and a 100 entry history through 8 bit registers.
package dbmeter

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/mmr"
)

// DefaultAddr is the module's fixed I²C address.
const DefaultAddr uint16 = 0x48

const (
	regVersion  = 0x00
	regID3      = 0x01
	regScratch  = 0x05
	regControl  = 0x06
	regTAvgHigh = 0x07
	regReset    = 0x09
	regDecibel  = 0x0A
	regMin      = 0x0B
	regMax      = 0x0C
	regThrMin   = 0x0D
	regThrMax   = 0x0E
	regHistory0 = 0x14

	// HistoryLen is the number of one second readings kept by the module.
	HistoryLen = 100
)

// ResetFlags select what a write to the reset register clears.
type ResetFlags uint8

const (
	ResetMin     ResetFlags = 0x01
	ResetMax     ResetFlags = 0x02
	ResetHistory ResetFlags = 0x04
	ResetSystem  ResetFlags = 0x08
)

// ErrNotDetected is returned by New when the module does not answer the
// scratch register echo.
var ErrNotDetected = errors.New("dbmeter: device not detected")

// Opts holds the configuration for the module.
type Opts struct {
	Addr uint16
	// Averaging is the integration time; zero keeps the power-on default.
	Averaging time.Duration
}

// DefaultOpts is the recommended configuration.
var DefaultOpts = Opts{Addr: DefaultAddr}

// Dev is a handle to the decibel meter.
type Dev struct {
	c    mmr.Dev8
	name string
}

// New opens a handle to the meter on bus and verifies that it responds by
// writing and reading back the scratch register.
func New(bus i2c.Bus, opts *Opts) (*Dev, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	addr := opts.Addr
	if addr == 0 {
		addr = DefaultAddr
	}
	d := &Dev{
		c:    mmr.Dev8{Conn: &i2c.Dev{Bus: bus, Addr: addr}, Order: binary.BigEndian},
		name: fmt.Sprintf("dbmeter{%s}", bus),
	}
	if err := d.probe(); err != nil {
		return nil, err
	}
	if opts.Averaging > 0 {
		if err := d.SetAveraging(opts.Averaging); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Dev) probe() error {
	const marker = 0xA5
	if err := d.c.WriteUint8(regScratch, marker); err != nil {
		return fmt.Errorf("%w: %w", ErrNotDetected, err)
	}
	v, err := d.c.ReadUint8(regScratch)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotDetected, err)
	}
	if v != marker {
		return fmt.Errorf("%w: scratch echo 0x%02x", ErrNotDetected, v)
	}
	return nil
}

func (d *Dev) String() string {
	return d.name
}

// Halt implements conn.Resource. The module free-runs, there is nothing to stop.
func (d *Dev) Halt() error {
	return nil
}

// Version returns the firmware version register.
func (d *Dev) Version() (uint8, error) {
	return d.c.ReadUint8(regVersion)
}

// UniqueID returns the 32 bit device id, ID3 first.
func (d *Dev) UniqueID() (uint32, error) {
	var b [4]byte
	if err := d.c.Conn.Tx([]byte{regID3}, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// Decibel returns the latest sound pressure level in dB SPL.
func (d *Dev) Decibel() (uint8, error) {
	return d.c.ReadUint8(regDecibel)
}

// Read implements gauge.SensorSource.
func (d *Dev) Read() (float64, error) {
	v, err := d.Decibel()
	if err != nil {
		return 0, fmt.Errorf("dbmeter: read decibel: %w", err)
	}
	return float64(v), nil
}

// MinMax returns the lowest and highest level seen since the last reset.
func (d *Dev) MinMax() (lo, hi uint8, err error) {
	if lo, err = d.c.ReadUint8(regMin); err != nil {
		return 0, 0, err
	}
	if hi, err = d.c.ReadUint8(regMax); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// History returns the HistoryLen one second readings in register order.
func (d *Dev) History() ([HistoryLen]uint8, error) {
	var h [HistoryLen]uint8
	err := d.c.Conn.Tx([]byte{regHistory0}, h[:])
	return h, err
}

// Control returns the raw control register.
func (d *Dev) Control() (uint8, error) {
	return d.c.ReadUint8(regControl)
}

// SetControl writes the raw control register.
func (d *Dev) SetControl(v uint8) error {
	return d.c.WriteUint8(regControl, v)
}

// SetAveraging sets the integration time. The module counts milliseconds in a
// 16 bit register pair.
func (d *Dev) SetAveraging(t time.Duration) error {
	ms := t.Milliseconds()
	if ms <= 0 || ms > 0xFFFF {
		return fmt.Errorf("dbmeter: averaging %s out of range", t)
	}
	return d.c.WriteUint16(regTAvgHigh, uint16(ms))
}

// Averaging reads back the integration time.
func (d *Dev) Averaging() (time.Duration, error) {
	ms, err := d.c.ReadUint16(regTAvgHigh)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// SetThresholds programs the interrupt window in dB.
func (d *Dev) SetThresholds(lo, hi uint8) error {
	if lo > hi {
		return fmt.Errorf("dbmeter: threshold min %d above max %d", lo, hi)
	}
	if err := d.c.WriteUint8(regThrMin, lo); err != nil {
		return err
	}
	return d.c.WriteUint8(regThrMax, hi)
}

// Reset clears the selected state.
func (d *Dev) Reset(f ResetFlags) error {
	return d.c.WriteUint8(regReset, uint8(f))
}
