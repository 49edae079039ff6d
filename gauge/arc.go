package gauge

import (
	"math"
)

// angleEpsilon absorbs float rounding in atan2 so cut points that land exactly on
// a pixel (the top pixel at half fill, for instance) stay inclusive.
const angleEpsilon = 1e-9

// Arc describes the upper semicircular ring of a gauge.
//
// Arc-local angles run from 0° at the left edge through 90° at the top to 180°
// at the right edge. Pixel rows grow downward, so the ring occupies dy <= 0
// relative to the center; the center row itself belongs to the ring.
type Arc struct {
	CX, CY int
	Outer  int
	Inner  int
}

// NewArc validates the ring. inner may be zero (a filled half disc).
func NewArc(cx, cy, outer, inner int) (Arc, error) {
	a := Arc{CX: cx, CY: cy, Outer: outer, Inner: inner}
	if err := a.Validate(); err != nil {
		return Arc{}, err
	}
	return a, nil
}

func (a Arc) Validate() error {
	if a.Outer <= 0 {
		return configErr("outer_radius", "must be positive, got %d", a.Outer)
	}
	if a.Inner < 0 {
		return configErr("inner_radius", "must not be negative, got %d", a.Inner)
	}
	if a.Inner >= a.Outer {
		return configErr("inner_radius", "must be less than outer radius %d, got %d", a.Outer, a.Inner)
	}
	return nil
}

// InRing reports whether (x, y) lies in the closed annulus, both radii inclusive.
func (a Arc) InRing(x, y int) bool {
	dx := x - a.CX
	dy := y - a.CY
	d := dx*dx + dy*dy
	return d >= a.Inner*a.Inner && d <= a.Outer*a.Outer
}

// ArcAngle returns the arc-local angle of (x, y) in degrees and whether the
// point lies in the gauge's half plane at all.
func (a Arc) ArcAngle(x, y int) (float64, bool) {
	dx := x - a.CX
	dy := y - a.CY
	if dy > 0 {
		return 0, false
	}
	// The center has no direction; it sits at the far end of the sweep so only
	// a full gauge paints it.
	if dx == 0 && dy == 0 {
		return 180, true
	}
	// Negating both axes rotates the reference angle by 180°, which puts the
	// left edge at 0. dy is an integer so -dy is never negative zero.
	deg := math.Atan2(float64(-dy), float64(-dx)) * 180 / math.Pi
	return deg, true
}

// IsFilled reports whether (x, y) is painted when the gauge is swept to fillDeg.
// A sweep of 0 paints nothing and a sweep of 180 paints the whole ring.
func (a Arc) IsFilled(x, y int, fillDeg float64) bool {
	if fillDeg <= 0 {
		return false
	}
	if !a.InRing(x, y) {
		return false
	}
	deg, ok := a.ArcAngle(x, y)
	if !ok {
		return false
	}
	return deg <= fillDeg+angleEpsilon
}

// FillDegrees maps a fill fraction to a sweep, clamping the fraction to [0, 1].
func FillDegrees(fraction float64) float64 {
	return clamp01(fraction) * 180.0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
