// Package runner drives the gauge: one refresh loop reads the sensor and
// renders, another polls the gesture sources.
package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/preview"
)

const (
	DefaultRefresh   = 500 * time.Millisecond
	DefaultPollEvery = 50 * time.Millisecond
)

// Indicator mirrors each frame somewhere else, such as an LED strip.
type Indicator interface {
	Show(fraction float64, c uint16) error
}

type Looper struct {
	Controller *gauge.Controller
	Sensor     gauge.SensorSource
	Gestures   []gauge.GestureSource
	Indicator  Indicator
	Refresh    time.Duration
	PollEvery  time.Duration
	SinkName   string
	Log        zerolog.Logger
	// Diagnose, when set, receives transient faults and overruns.
	Diagnose func(preview.Diagnostic)

	lastRender atomic.Int64
	overruns   atomic.Uint64
}

// Run blocks until ctx is cancelled. A clean shutdown returns nil.
func (l *Looper) Run(ctx context.Context) error {
	if l.Controller == nil || l.Sensor == nil {
		return errors.New("runner: controller and sensor are required")
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.refresh(ctx) })
	if len(l.Gestures) > 0 {
		g.Go(func() error { return l.poll(ctx) })
	}
	return g.Wait()
}

// interval is the refresh period actually used.
func (l *Looper) interval() time.Duration {
	if l.Refresh <= 0 {
		return DefaultRefresh
	}
	return l.Refresh
}

func (l *Looper) refresh(ctx context.Context) error {
	every := l.interval()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	l.Log.Info().Dur("refresh", every).Str("sink", l.SinkName).Msg("gauge running")
	l.Tick()
	for {
		select {
		case <-ctx.Done():
			l.Log.Info().Uint64("frames", l.Controller.Frames()).Msg("gauge stopped")
			return nil
		case <-ticker.C:
			l.Tick()
		}
	}
}

// Tick renders one frame. Sensor faults are shown as 0 and display faults skip
// the frame; neither stops the loop.
func (l *Looper) Tick() gauge.Frame {
	start := time.Now()
	v, err := l.Sensor.Read()
	if err != nil {
		l.Log.Warn().Err(err).Msg("sensor read failed, showing 0")
		l.diagnose(preview.Warn, "sensor_read", "sensor read failed", err, nil)
		v = 0
	}

	f, err := l.Controller.Update(v)
	if err != nil {
		l.Log.Warn().Err(err).Msg("frame skipped")
		l.diagnose(preview.Warn, "display_write", "frame not shown", err, nil)
	}
	if l.Indicator != nil {
		if err := l.Indicator.Show(f.Fraction, f.Color); err != nil {
			l.Log.Warn().Err(err).Msg("indicator write failed")
		}
	}

	took := time.Since(start)
	l.lastRender.Store(int64(took))
	if every := l.interval(); took > every {
		l.overruns.Add(1)
		l.Log.Warn().Dur("took", took).Dur("refresh", every).Msg("frame overran the refresh interval")
		l.diagnose(preview.Warn, "overrun", "frame overran the refresh interval", nil,
			map[string]any{"took_ms": took.Milliseconds(), "refresh_ms": every.Milliseconds()})
	}
	l.Log.Debug().
		Float64("db", f.Value).
		Float64("fraction", f.Fraction).
		Stringer("mode", f.Mode).
		Int("painted", f.Painted).
		Dur("took", took).
		Msg("frame")
	return f
}

func (l *Looper) poll(ctx context.Context) error {
	every := l.PollEvery
	if every <= 0 {
		every = DefaultPollEvery
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.PollOnce()
		}
	}
}

// PollOnce drains one gesture from each source.
func (l *Looper) PollOnce() {
	for _, src := range l.Gestures {
		g, err := src.Poll()
		if err != nil {
			l.Log.Debug().Err(err).Msg("gesture poll failed")
			continue
		}
		if g == gauge.GestureNone {
			continue
		}
		if l.Controller.HandleGesture(g) {
			l.Log.Info().Stringer("gesture", g).Stringer("mode", l.Controller.Mode()).Msg("gesture applied")
		} else {
			l.Log.Debug().Stringer("gesture", g).Msg("gesture ignored")
		}
	}
}

// LastRender is the duration of the most recent frame.
func (l *Looper) LastRender() time.Duration { return time.Duration(l.lastRender.Load()) }

func (l *Looper) Overruns() uint64 { return l.overruns.Load() }

// Status feeds the preview's /health endpoint.
func (l *Looper) Status() preview.Status {
	return preview.Status{
		Value:        l.Controller.Value(),
		Mode:         l.Controller.Mode().String(),
		Frames:       l.Controller.Frames(),
		LastRenderMs: float64(l.LastRender().Microseconds()) / 1000,
		Overruns:     l.Overruns(),
		Sink:         l.SinkName,
	}
}

func (l *Looper) diagnose(sev preview.Severity, code, summary string, err error, evidence map[string]any) {
	if l.Diagnose == nil {
		return
	}
	d := preview.Diagnostic{Severity: sev, Code: code, Summary: summary, Evidence: evidence}
	if err != nil {
		d.Detail = err.Error()
	}
	l.Diagnose(d)
}
