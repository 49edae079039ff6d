package gauge

import (
	"github.com/coreman2200/soundgauge/model"
)

// SensorSource yields the current domain reading (dB SPL for the meter).
type SensorSource interface {
	Read() (float64, error)
}

// SensorFunc adapts a function to SensorSource.
type SensorFunc func() (float64, error)

func (f SensorFunc) Read() (float64, error) { return f() }

// DisplaySink copies a rendered buffer onto a physical surface with its top-left
// corner at (x, y). Sinks that composite skip model.Background pixels.
type DisplaySink interface {
	Blit(buf *model.PixelBuffer, x, y int) error
}

// GestureSource reports the last gesture, or GestureNone when idle.
type GestureSource interface {
	Poll() (Gesture, error)
}

// Gesture codes as reported by the touch controller's gesture register.
type Gesture uint8

const (
	GestureNone        Gesture = 0x00
	GestureDown        Gesture = 0x01
	GestureUp          Gesture = 0x02
	GestureLeft        Gesture = 0x03
	GestureRight       Gesture = 0x04
	GestureDoubleClick Gesture = 0x0B
	GestureLongPress   Gesture = 0x0C
)

func (g Gesture) String() string {
	switch g {
	case GestureNone:
		return "none"
	case GestureDown:
		return "down"
	case GestureUp:
		return "up"
	case GestureLeft:
		return "left"
	case GestureRight:
		return "right"
	case GestureDoubleClick:
		return "double_click"
	case GestureLongPress:
		return "long_press"
	default:
		return "unknown"
	}
}
