package runner

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/coreman2200/soundgauge/gauge"
	"github.com/coreman2200/soundgauge/model"
)

var (
	ErrBlitTimeout = errors.New("blit timed out")
	ErrSinkBusy    = errors.New("previous blit still in flight")
)

// TimeoutSink bounds each Blit of the wrapped sink. The frame is copied before
// the hand-off so a blit that outlives its deadline never reads a buffer the
// controller is repainting. While such a blit is still running, new frames are
// skipped with ErrSinkBusy.
type TimeoutSink struct {
	Sink    gauge.DisplaySink
	Timeout time.Duration

	busy atomic.Bool
}

func (t *TimeoutSink) Blit(buf *model.PixelBuffer, x, y int) error {
	if t.Timeout <= 0 {
		return t.Sink.Blit(buf, x, y)
	}
	if !t.busy.CompareAndSwap(false, true) {
		return ErrSinkBusy
	}
	frame := model.NewPixelBuffer(buf.Width(), buf.Height())
	copy(frame.Raw(), buf.Raw())

	done := make(chan error, 1)
	go func() {
		defer t.busy.Store(false)
		done <- t.Sink.Blit(frame, x, y)
	}()

	timer := time.NewTimer(t.Timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("%w after %v", ErrBlitTimeout, t.Timeout)
	}
}
