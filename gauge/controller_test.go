package gauge

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/soundgauge/model"
)

// fakeSink captures the last frame blitted.
type fakeSink struct {
	mu    sync.Mutex
	last  []uint16
	x, y  int
	blits int
	err   error
}

func (s *fakeSink) Blit(buf *model.PixelBuffer, x, y int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.last = append(s.last[:0], buf.Raw()...)
	s.x, s.y = x, y
	s.blits++
	return nil
}

func newController(t *testing.T, mutate func(*Options)) (*Controller, *fakeSink) {
	t.Helper()
	opts := DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	sink := &fakeSink{}
	c, err := New(opts, sink)
	require.NoError(t, err)
	return c, sink
}

func TestNewRejectsEmptyRange(t *testing.T) {
	opts := DefaultOptions()
	opts.Min, opts.Max = 50, 50
	_, err := New(opts, nil)
	require.Error(t, err)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "value_range", ce.Field)
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"inverted range", func(o *Options) { o.Min, o.Max = 100, 0 }},
		{"empty buffer", func(o *Options) { o.Width = 0 }},
		{"bad arc", func(o *Options) { o.Arc.Inner = o.Arc.Outer }},
		{"tiny bar", func(o *Options) { o.Bar.Height = 1 }},
		{"bands out of order", func(o *Options) { o.Bands.Quiet, o.Bands.Normal = 90, 40 }},
		{"unknown action", func(o *Options) { o.LongPress = "reboot" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)
			assert.ErrorIs(t, opts.Validate(), ErrInvalidConfig)
		})
	}
	assert.NoError(t, DefaultOptions().Validate())
}

func TestFraction(t *testing.T) {
	c, _ := newController(t, nil)
	assert.Equal(t, 0.0, c.Fraction(-10))
	assert.Equal(t, 0.0, c.Fraction(0))
	assert.Equal(t, 0.42, c.Fraction(42))
	assert.Equal(t, 1.0, c.Fraction(100))
	assert.Equal(t, 1.0, c.Fraction(150))

	c, _ = newController(t, func(o *Options) { o.Min, o.Max = 30, 130 })
	assert.InDelta(t, 0.5, c.Fraction(80), 1e-12)
}

func TestColorForBands(t *testing.T) {
	c, _ := newController(t, nil)
	assert.Equal(t, model.Green, c.ColorFor(10))
	assert.Equal(t, model.Green, c.ColorFor(59.9))
	assert.Equal(t, model.Yellow, c.ColorFor(60))
	assert.Equal(t, model.Yellow, c.ColorFor(79.9))
	assert.Equal(t, model.Red, c.ColorFor(80))
	assert.Equal(t, model.Red, c.ColorFor(150))
}

func TestUpdateRendersArc(t *testing.T) {
	c, sink := newController(t, nil)
	f, err := c.Update(50)
	require.NoError(t, err)

	assert.Equal(t, ModeArc, f.Mode)
	assert.Equal(t, 0.5, f.Fraction)
	assert.Equal(t, model.Green, f.Color)
	assert.Equal(t, 50.0, c.Value())
	assert.Equal(t, uint64(1), c.Frames())

	assert.Equal(t, 1, sink.blits)
	assert.Equal(t, 40, sink.x)
	assert.Equal(t, 90, sink.y)
	assert.Equal(t, f.Painted, c.Buffer().Count(model.Green))

	want, err := NewRasterizer(meterArc, model.NewPixelBuffer(160, 100))
	require.NoError(t, err)
	want.Fill(0.5, model.Green)
	if diff := cmp.Diff(want.Buffer().Raw(), sink.last); diff != "" {
		t.Fatalf("blitted frame mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateClampsButKeepsRawValue(t *testing.T) {
	c, _ := newController(t, nil)
	f, err := c.Update(150)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.Fraction)
	assert.Equal(t, 150.0, c.Value())
	assert.Equal(t, ringUpperHalf(meterArc), f.Painted)

	f, err = c.Update(-10)
	require.NoError(t, err)
	assert.Equal(t, 0.0, f.Fraction)
	assert.Equal(t, 0, f.Painted)
	assert.Equal(t, 160*100, c.Buffer().Count(model.Background))
}

func TestUpdateBarMode(t *testing.T) {
	c, sink := newController(t, nil)
	assert.Equal(t, ModeBar, c.ToggleMode())

	f, err := c.Update(90)
	require.NoError(t, err)
	assert.Equal(t, ModeBar, f.Mode)
	assert.Equal(t, model.Red, f.Color)

	bar := c.Options().Bar
	assert.Equal(t, bar.FillWidth(0.9)*(bar.Height-2), c.Buffer().Count(model.Red))
	assert.Equal(t, f.Painted, c.Buffer().Count(model.Red))
	assert.Equal(t, model.Gray, sink.last[bar.Y*160+bar.X], "outline corner")
}

func TestUpdateWrapsDisplayError(t *testing.T) {
	c, sink := newController(t, nil)
	boom := errors.New("spi: bus fault")
	sink.err = boom

	_, err := c.Update(20)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDisplay)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), c.Frames(), "the frame was still rendered")
}

func TestUpdateWithoutSink(t *testing.T) {
	c, err := New(DefaultOptions(), nil)
	require.NoError(t, err)
	_, err = c.Update(70)
	assert.NoError(t, err)
	assert.NoError(t, c.Outline(model.White, 2))
}

func TestToggleModeIsInvolution(t *testing.T) {
	c, _ := newController(t, nil)
	assert.Equal(t, ModeArc, c.Mode())
	c.ToggleMode()
	c.ToggleMode()
	assert.Equal(t, ModeArc, c.Mode())
	assert.Equal(t, 0, c.Buffer().Count(model.Green), "toggling does not render")
}

func TestCycleColor(t *testing.T) {
	c, _ := newController(t, nil)
	palette := c.Options().Palette
	require.Len(t, palette, 3)

	for i, want := range palette {
		got, ok := c.CycleColor()
		require.True(t, ok, "step %d", i)
		assert.Equal(t, want.RGB565(), got.RGB565())
		assert.Equal(t, want.RGB565(), c.ColorFor(10), "override beats the band")
	}
	_, ok := c.CycleColor()
	assert.False(t, ok, "wraps back to bands")
	assert.Equal(t, model.Green, c.ColorFor(10))

	c.CycleColor()
	c.ClearOverride()
	_, ok = c.Override()
	assert.False(t, ok)

	c, _ = newController(t, func(o *Options) { o.Palette = nil })
	_, ok = c.CycleColor()
	assert.False(t, ok)
}

func TestHandleGesture(t *testing.T) {
	c, _ := newController(t, nil)
	for _, g := range []Gesture{GestureNone, GestureUp, GestureDown, GestureLeft, GestureRight, GestureDoubleClick} {
		assert.False(t, c.HandleGesture(g), g.String())
	}
	assert.Equal(t, ModeArc, c.Mode())

	assert.True(t, c.HandleGesture(GestureLongPress))
	assert.Equal(t, ModeBar, c.Mode())

	c, _ = newController(t, func(o *Options) { o.LongPress = ActionCycleColor })
	assert.True(t, c.HandleGesture(GestureLongPress))
	assert.Equal(t, ModeArc, c.Mode())
	_, ok := c.Override()
	assert.True(t, ok)
}

func TestConcurrentGesturesAndUpdates(t *testing.T) {
	c, _ := newController(t, func(o *Options) { o.LongPress = ActionCycleColor })
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			c.HandleGesture(GestureLongPress)
			c.ToggleMode()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_, _ = c.Update(float64(i % 100))
		}
	}()
	wg.Wait()
	assert.Equal(t, uint64(200), c.Frames())
	assert.Equal(t, ModeArc, c.Mode(), "an even number of toggles")
}
