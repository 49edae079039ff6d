// Package sim provides stand-in devices for running the meter without hardware.
package sim

import (
	"math/rand"
	"sync"
)

// Sensor is a bounded random walk: each Read moves the level by at most Step
// dB and bounces off Min and Max.
type Sensor struct {
	Min, Max float64
	Step     int

	mu    sync.Mutex
	rng   *rand.Rand
	level float64
}

// NewSensor starts the walk at start. A zero seed is replaced by 1 so runs
// are reproducible.
func NewSensor(lo, hi, start float64, seed int64) *Sensor {
	if seed == 0 {
		seed = 1
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	s := &Sensor{Min: lo, Max: hi, Step: 3, rng: rand.New(rand.NewSource(seed))}
	s.level = s.clamp(start)
	return s
}

// Read implements gauge.SensorSource. It never fails.
func (s *Sensor) Read() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := s.rng.Intn(2*s.Step+1) - s.Step
	s.level = s.clamp(s.level + float64(delta))
	return s.level, nil
}

func (s *Sensor) clamp(v float64) float64 {
	if v < s.Min {
		return s.Min
	}
	if v > s.Max {
		return s.Max
	}
	return v
}
