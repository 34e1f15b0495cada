// Package overlay draws detection markers and the searching indicator onto a
// Canvas. Rendering is a pure function of the detection set, the canvas size,
// and the animation phase.
package overlay

import "image/color"

// Rect is a pixel-space rectangle anchored at its top-left corner.
type Rect struct {
	X, Y, W, H float64
}

// Style describes stroke and fill parameters for one drawing command.
type Style struct {
	Color color.NRGBA
	Width float64
}

// Canvas is the minimal drawing surface the renderer needs. Coordinates are
// pixels; shapes that extend beyond the surface are clipped, not moved.
type Canvas interface {
	Size() (width, height int)
	Clear()
	StrokeRect(r Rect, st Style)
	FillRect(r Rect, st Style)
	Line(x1, y1, x2, y2 float64, st Style)
	Circle(cx, cy, radius float64, st Style)
	// Text draws s centered on (x, y).
	Text(s string, x, y float64, st Style)
}
