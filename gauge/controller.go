package gauge

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/coreman2200/soundgauge/model"
)

type Mode int32

const (
	ModeArc Mode = iota
	ModeBar
)

func (m Mode) String() string {
	switch m {
	case ModeArc:
		return "arc"
	case ModeBar:
		return "bar"
	default:
		return "unknown"
	}
}

// Action is what a long press does.
type Action string

const (
	ActionToggleMode Action = "mode"
	ActionCycleColor Action = "color"
)

// Bands picks a color from the reading: below Quiet, below Normal, else loud.
type Bands struct {
	Quiet       float64
	Normal      float64
	QuietColor  model.Color
	NormalColor model.Color
	LoudColor   model.Color
}

func DefaultBands() Bands {
	return Bands{
		Quiet:       60,
		Normal:      80,
		QuietColor:  model.Packed565(model.Green),
		NormalColor: model.Packed565(model.Yellow),
		LoudColor:   model.Packed565(model.Red),
	}
}

func (b Bands) Color(v float64) model.Color {
	switch {
	case v < b.Quiet:
		return b.QuietColor
	case v < b.Normal:
		return b.NormalColor
	default:
		return b.LoudColor
	}
}

type Options struct {
	// Buffer size in pixels.
	Width, Height int

	Arc Arc
	Bar Bar

	// Domain range mapped onto the sweep. Max must exceed Min.
	Min, Max float64

	Bands Bands

	// Override colors a long press cycles through before returning to Bands.
	Palette []model.Color

	// Where the buffer lands on the display.
	DisplayX, DisplayY int

	LongPress Action

	Readout Readout
}

// DefaultOptions is the 160x100 gauge of the 240x280 meter: a 10 px ring of
// radius 45 centered in the buffer, blitted centered below the title area.
func DefaultOptions() Options {
	return Options{
		Width:  160,
		Height: 100,
		Arc:    Arc{CX: 80, CY: 50, Outer: 45, Inner: 35},
		Bar:    Bar{X: 10, Y: 35, Width: 140, Height: 30, Outline: model.Gray},
		Min:    0,
		Max:    100,
		Bands:  DefaultBands(),
		Palette: []model.Color{
			model.Packed565(model.Blue),
			model.Packed565(model.Purple),
			model.Packed565(model.White),
		},
		DisplayX:  (240 - 160) / 2,
		DisplayY:  90,
		LongPress: ActionToggleMode,
	}
}

func (o Options) Validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return configErr("buffer", "must have positive dimensions, got %dx%d", o.Width, o.Height)
	}
	if math.IsNaN(o.Min) || math.IsNaN(o.Max) || o.Max <= o.Min {
		return configErr("value_range", "max (%g) must be greater than min (%g)", o.Max, o.Min)
	}
	if err := o.Arc.Validate(); err != nil {
		return err
	}
	if err := o.Bar.Validate(); err != nil {
		return err
	}
	if o.Bands.Normal < o.Bands.Quiet {
		return configErr("bands", "normal threshold (%g) is below quiet threshold (%g)", o.Bands.Normal, o.Bands.Quiet)
	}
	switch o.LongPress {
	case ActionToggleMode, ActionCycleColor, "":
	default:
		return configErr("long_press", "unknown action %q", o.LongPress)
	}
	return nil
}

// Frame describes one completed render.
type Frame struct {
	Value    float64
	Fraction float64
	Color    uint16
	Mode     Mode
	Painted  int
}

// Controller owns the gauge buffer and renderers and borrows the display sink.
//
// Update runs on the refresh tick. Mode and the color override may be changed
// concurrently from a gesture goroutine; both live in atomics and Update reads
// each exactly once per frame.
type Controller struct {
	opts   Options
	buf    *model.PixelBuffer
	raster *Rasterizer
	sink   DisplaySink

	mode     atomic.Int32
	override atomic.Int32 // palette index, -1 when unset
	value    atomic.Uint64
	frames   atomic.Uint64
}

// New validates opts and allocates the buffer. sink may be nil, in which case
// frames are rendered but never blitted.
func New(opts Options, sink DisplaySink) (*Controller, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.LongPress == "" {
		opts.LongPress = ActionToggleMode
	}
	opts.Palette = append([]model.Color(nil), opts.Palette...)

	buf := model.NewPixelBuffer(opts.Width, opts.Height)
	r, err := NewRasterizer(opts.Arc, buf)
	if err != nil {
		return nil, err
	}
	c := &Controller{
		opts:   opts,
		buf:    buf,
		raster: r,
		sink:   sink,
	}
	c.override.Store(-1)
	return c, nil
}

func (c *Controller) Options() Options           { return c.opts }
func (c *Controller) Buffer() *model.PixelBuffer { return c.buf }
func (c *Controller) Rasterizer() *Rasterizer    { return c.raster }
func (c *Controller) Mode() Mode                 { return Mode(c.mode.Load()) }
func (c *Controller) SetMode(m Mode)             { c.mode.Store(int32(m)) }
func (c *Controller) Frames() uint64             { return c.frames.Load() }
func (c *Controller) Value() float64             { return math.Float64frombits(c.value.Load()) }

// Fraction maps v onto [0, 1] across the configured range.
func (c *Controller) Fraction(v float64) float64 {
	return clamp01((v - c.opts.Min) / (c.opts.Max - c.opts.Min))
}

// Override returns the active override color, if any.
func (c *Controller) Override() (model.Color, bool) {
	i := c.override.Load()
	if i < 0 || int(i) >= len(c.opts.Palette) {
		return model.Color{}, false
	}
	return c.opts.Palette[i], true
}

// ColorFor resolves the fill color for v: the override when set, else the band.
func (c *Controller) ColorFor(v float64) uint16 {
	if o, ok := c.Override(); ok {
		return o.RGB565()
	}
	return c.opts.Bands.Color(v).RGB565()
}

// ToggleMode flips between arc and bar. It does not render; the next Update
// picks the new mode up.
func (c *Controller) ToggleMode() Mode {
	for {
		old := c.mode.Load()
		next := ModeBar
		if Mode(old) == ModeBar {
			next = ModeArc
		}
		if c.mode.CompareAndSwap(old, int32(next)) {
			return next
		}
	}
}

// CycleColor advances the override through the palette and then back to the
// threshold bands. It reports the new override, or false once bands are back.
func (c *Controller) CycleColor() (model.Color, bool) {
	n := int32(len(c.opts.Palette))
	if n == 0 {
		return model.Color{}, false
	}
	for {
		old := c.override.Load()
		next := old + 1
		if next >= n {
			next = -1
		}
		if c.override.CompareAndSwap(old, next) {
			break
		}
	}
	return c.Override()
}

func (c *Controller) ClearOverride() { c.override.Store(-1) }

// HandleGesture applies the long press action and reports whether g was used.
func (c *Controller) HandleGesture(g Gesture) bool {
	if g != GestureLongPress {
		return false
	}
	switch c.opts.LongPress {
	case ActionCycleColor:
		c.CycleColor()
	default:
		c.ToggleMode()
	}
	return true
}

// Update records v, renders the active mode and blits the buffer. The raw value
// is kept even when it is outside the range; only the fill is clamped.
func (c *Controller) Update(v float64) (Frame, error) {
	c.value.Store(math.Float64bits(v))

	f := Frame{
		Value:    v,
		Fraction: c.Fraction(v),
		Color:    c.ColorFor(v),
		Mode:     c.Mode(),
	}
	switch f.Mode {
	case ModeBar:
		c.opts.Bar.Draw(c.buf, f.Fraction, f.Color)
		f.Painted = c.opts.Bar.FillWidth(f.Fraction) * (c.opts.Bar.Height - 2)
	default:
		f.Painted = c.raster.Fill(f.Fraction, f.Color)
	}
	c.opts.Readout.Draw(c.buf, v, f.Color)
	c.frames.Add(1)

	if c.sink == nil {
		return f, nil
	}
	if err := c.sink.Blit(c.buf, c.opts.DisplayX, c.opts.DisplayY); err != nil {
		return f, fmt.Errorf("%w: %w", ErrDisplay, err)
	}
	return f, nil
}

// Outline renders the ring's edges in c and blits them. It is a display check
// and leaves mode and value untouched.
func (c *Controller) Outline(col uint16, thickness int) error {
	c.raster.Outline(col, thickness)
	if c.sink == nil {
		return nil
	}
	if err := c.sink.Blit(c.buf, c.opts.DisplayX, c.opts.DisplayY); err != nil {
		return fmt.Errorf("%w: %w", ErrDisplay, err)
	}
	return nil
}
