package detection

import (
	"math"
	"time"
)

// Signal drives the synthetic detection used in degraded mode. Sample returns
// a normalized center point in [0,1].
type Signal interface {
	Sample(now time.Time) (x, y float64)
}

// Wander traces a bounded Lissajous path around the frame center.
type Wander struct {
	Origin time.Time
	Period time.Duration
}

// NewWander starts a wander path at origin with a default 8s period.
func NewWander(origin time.Time) Wander {
	return Wander{Origin: origin, Period: 8 * time.Second}
}

func (w Wander) Sample(now time.Time) (float64, float64) {
	period := w.Period
	if period <= 0 {
		period = 8 * time.Second
	}
	phase := 2 * math.Pi * now.Sub(w.Origin).Seconds() / period.Seconds()
	x := 0.5 + 0.2*math.Sin(phase)
	y := 0.5 + 0.12*math.Sin(2*phase+math.Pi/2)
	return x, y
}

// fallbackSize is the normalized edge length of the synthetic detection.
const fallbackSize = 0.3

// Fallback builds the single synthetic detection for sig at now. The box is
// kept fully inside the frame and carries no score.
func Fallback(sig Signal, now time.Time) Set {
	x, y := sig.Sample(now)
	half := fallbackSize / 2
	return Set{{
		Box: BoundingBox{
			XCenter: math.Min(math.Max(x, half), 1-half),
			YCenter: math.Min(math.Max(y, half), 1-half),
			Width:   fallbackSize,
			Height:  fallbackSize,
		},
	}}
}
