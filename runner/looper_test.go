package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/model"
	"github.com/coreman2200/soundgauge/preview"
)

type recordSink struct {
	mu    sync.Mutex
	blits int
	err   error
}

func (r *recordSink) Blit(*model.PixelBuffer, int, int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blits++
	return r.err
}

type gestureQueue struct {
	mu sync.Mutex
	q  []gauge.Gesture
}

func (g *gestureQueue) Poll() (gauge.Gesture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.q) == 0 {
		return gauge.GestureNone, nil
	}
	next := g.q[0]
	g.q = g.q[1:]
	return next, nil
}

type failingGestures struct{}

func (failingGestures) Poll() (gauge.Gesture, error) { return gauge.GestureNone, errors.New("nack") }

type stripRecorder struct {
	fraction float64
	color    uint16
}

func (s *stripRecorder) Show(fraction float64, c uint16) error {
	s.fraction, s.color = fraction, c
	return nil
}

func newLooper(t *testing.T, sensor gauge.SensorSource, sink gauge.DisplaySink) (*Looper, *[]preview.Diagnostic) {
	t.Helper()
	c, err := gauge.New(gauge.DefaultOptions(), sink)
	require.NoError(t, err)
	var diags []preview.Diagnostic
	l := &Looper{
		Controller: c,
		Sensor:     sensor,
		Log:        zerolog.Nop(),
		SinkName:   "test",
		Diagnose:   func(d preview.Diagnostic) { diags = append(diags, d) },
	}
	return l, &diags
}

func constant(v float64) gauge.SensorSource {
	return gauge.SensorFunc(func() (float64, error) { return v, nil })
}

func TestTick(t *testing.T) {
	sink := &recordSink{}
	l, diags := newLooper(t, constant(70), sink)
	strip := &stripRecorder{}
	l.Indicator = strip

	f := l.Tick()
	assert.Equal(t, 70.0, f.Value)
	assert.InDelta(t, 0.7, f.Fraction, 1e-9)
	assert.Equal(t, model.Yellow, f.Color)
	assert.Equal(t, 1, sink.blits)
	assert.Equal(t, f.Fraction, strip.fraction)
	assert.Equal(t, model.Yellow, strip.color)
	assert.Empty(t, *diags)
}

func TestTickSensorFailureShowsZero(t *testing.T) {
	fail := gauge.SensorFunc(func() (float64, error) { return 99, errors.New("i2c: nack") })
	l, diags := newLooper(t, fail, &recordSink{})

	f := l.Tick()
	assert.Equal(t, 0.0, f.Value)
	assert.Equal(t, 0, f.Painted)
	require.Len(t, *diags, 1)
	assert.Equal(t, "sensor_read", (*diags)[0].Code)
	assert.Equal(t, "i2c: nack", (*diags)[0].Detail)
}

func TestTickDisplayFailureContinues(t *testing.T) {
	sink := &recordSink{err: errors.New("spi: timeout")}
	l, diags := newLooper(t, constant(50), sink)

	l.Tick()
	l.Tick()
	assert.Equal(t, uint64(2), l.Controller.Frames())
	require.Len(t, *diags, 2)
	assert.Equal(t, "display_write", (*diags)[1].Code)
	assert.Contains(t, (*diags)[1].Detail, "spi: timeout")
}

func TestTickOverrun(t *testing.T) {
	slow := gauge.SensorFunc(func() (float64, error) {
		time.Sleep(2 * time.Millisecond)
		return 40, nil
	})
	l, diags := newLooper(t, slow, nil)
	l.Refresh = time.Millisecond

	l.Tick()
	assert.Equal(t, uint64(1), l.Overruns())
	assert.GreaterOrEqual(t, l.LastRender(), 2*time.Millisecond)
	require.Len(t, *diags, 1)
	assert.Equal(t, "overrun", (*diags)[0].Code)
	assert.Equal(t, int64(1), (*diags)[0].Evidence["refresh_ms"])
}

func TestTickOverrunAtDefaultRefresh(t *testing.T) {
	slow := gauge.SensorFunc(func() (float64, error) {
		time.Sleep(DefaultRefresh + 20*time.Millisecond)
		return 40, nil
	})
	l, diags := newLooper(t, slow, nil)
	assert.Equal(t, DefaultRefresh, l.interval())

	l.Tick()
	assert.Equal(t, uint64(1), l.Overruns(), "an unset refresh still counts overruns")
	require.Len(t, *diags, 1)
	assert.Equal(t, DefaultRefresh.Milliseconds(), (*diags)[0].Evidence["refresh_ms"])
}

func TestPollOnce(t *testing.T) {
	l, _ := newLooper(t, constant(0), nil)
	q := &gestureQueue{q: []gauge.Gesture{gauge.GestureUp, gauge.GestureLongPress}}
	l.Gestures = []gauge.GestureSource{failingGestures{}, q}

	l.PollOnce()
	assert.Equal(t, gauge.ModeArc, l.Controller.Mode(), "swipes are ignored")
	l.PollOnce()
	assert.Equal(t, gauge.ModeBar, l.Controller.Mode())
	l.PollOnce()
	assert.Equal(t, gauge.ModeBar, l.Controller.Mode())
}

func TestRun(t *testing.T) {
	sink := &recordSink{}
	l, _ := newLooper(t, constant(85), sink)
	l.Refresh = 5 * time.Millisecond
	l.PollEvery = time.Millisecond
	q := &gestureQueue{q: []gauge.Gesture{gauge.GestureLongPress}}
	l.Gestures = []gauge.GestureSource{q}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return l.Controller.Frames() >= 3 && l.Controller.Mode() == gauge.ModeBar
	}, 2*time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	st := l.Status()
	assert.Equal(t, 85.0, st.Value)
	assert.Equal(t, "bar", st.Mode)
	assert.Equal(t, "test", st.Sink)
	assert.GreaterOrEqual(t, st.Frames, uint64(3))
}

func TestRunRequiresSensor(t *testing.T) {
	l, _ := newLooper(t, nil, nil)
	assert.Error(t, l.Run(context.Background()))
}
