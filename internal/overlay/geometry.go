package overlay

import (
	"math"
	"time"

	"facecam/internal/detection"
)

// PixelRect maps a normalized center-anchored box onto a width x height
// surface. No rounding is applied and boxes outside [0,1] map outside the
// surface.
func PixelRect(b detection.BoundingBox, width, height int) Rect {
	w, h := float64(width), float64(height)
	return Rect{
		X: (b.XCenter - b.Width/2) * w,
		Y: (b.YCenter - b.Height/2) * h,
		W: b.Width * w,
		H: b.Height * h,
	}
}

// Pulse is a smooth periodic function of elapsed with values in [0,1]. It
// starts at 0, peaks at half a period, and returns to 0.
func Pulse(elapsed, period time.Duration) float64 {
	if period <= 0 {
		return 0
	}
	phase := float64(elapsed%period) / float64(period)
	return 0.5 - 0.5*math.Cos(2*math.Pi*phase)
}

// Phase is the sawtooth position of elapsed within period, in [0,1).
func Phase(elapsed, period time.Duration) float64 {
	if period <= 0 {
		return 0
	}
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return float64(elapsed%period) / float64(period)
}
