package overlay

import (
	"fmt"
	"image/color"
	"math"
	"time"

	"facecam/internal/detection"
)

// SearchingLabel is shown while no face is tracked.
const SearchingLabel = "Searching for faces…"

// Theme holds renderer colors and animation timing.
type Theme struct {
	Box          color.NRGBA
	Accent       color.NRGBA
	Label        color.NRGBA
	Panel        color.NRGBA
	PanelText    color.NRGBA
	Ring         color.NRGBA
	PulsePeriod  time.Duration
	RingPeriod   time.Duration
	ScanPeriod   time.Duration
	BaseStroke   float64
	CornerLength float64
}

// DefaultTheme is the standard green-on-dark overlay look.
func DefaultTheme() Theme {
	return Theme{
		Box:          color.NRGBA{R: 0x3c, G: 0xe0, B: 0x7a, A: 0xd0},
		Accent:       color.NRGBA{R: 0x9c, G: 0xff, B: 0xc4, A: 0xff},
		Label:        color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff},
		Panel:        color.NRGBA{R: 0x10, G: 0x14, B: 0x1c, A: 0xb0},
		PanelText:    color.NRGBA{R: 0xe6, G: 0xea, B: 0xf0, A: 0xff},
		Ring:         color.NRGBA{R: 0x5a, G: 0xa8, B: 0xff, A: 0xff},
		PulsePeriod:  1200 * time.Millisecond,
		RingPeriod:   1800 * time.Millisecond,
		ScanPeriod:   2 * time.Second,
		BaseStroke:   2,
		CornerLength: 0.2,
	}
}

// Mode reports which visual a render produced.
type Mode int

const (
	ModeSearching Mode = iota
	ModeTracking
)

func (m Mode) String() string {
	if m == ModeTracking {
		return "tracking"
	}
	return "searching"
}

// Summary describes what a render drew.
type Summary struct {
	Mode  Mode
	Boxes []Rect
}

// Renderer draws detection overlays. It holds no per-frame state.
type Renderer struct {
	theme Theme
}

// NewRenderer returns a renderer using theme.
func NewRenderer(theme Theme) *Renderer {
	return &Renderer{theme: theme}
}

// Render clears c and draws the overlay for set.
func (r *Renderer) Render(c Canvas, set detection.Set, elapsed time.Duration) Summary {
	c.Clear()
	return r.Draw(c, set, elapsed)
}

// Draw paints the overlay for set without clearing, for compositing over an
// existing frame. An empty set draws the searching indicator; otherwise one
// tracking marker is drawn per detection.
func (r *Renderer) Draw(c Canvas, set detection.Set, elapsed time.Duration) Summary {
	if set.Empty() {
		r.drawSearching(c, elapsed)
		return Summary{Mode: ModeSearching}
	}
	w, h := c.Size()
	boxes := make([]Rect, 0, len(set))
	for _, d := range set {
		rect := PixelRect(d.Box, w, h)
		r.drawTracking(c, rect, d.Score, elapsed)
		boxes = append(boxes, rect)
	}
	return Summary{Mode: ModeTracking, Boxes: boxes}
}

func (r *Renderer) drawSearching(c Canvas, elapsed time.Duration) {
	w, h := c.Size()
	cx, cy := float64(w)/2, float64(h)/2
	p := Phase(elapsed, r.theme.RingPeriod)

	base := math.Min(float64(w), float64(h)) * 0.12
	ring := r.theme.Ring
	ring.A = uint8(float64(ring.A) * (1 - p))
	c.Circle(cx, cy, base*(1+p), Style{Color: ring, Width: r.theme.BaseStroke})

	panelW := math.Min(float64(w)*0.8, 220)
	panelH := 28.0
	c.FillRect(Rect{X: cx - panelW/2, Y: cy + base*2.2 - panelH/2, W: panelW, H: panelH}, Style{Color: r.theme.Panel})
	c.Text(SearchingLabel, cx, cy+base*2.2, Style{Color: r.theme.PanelText})
}

func (r *Renderer) drawTracking(c Canvas, rect Rect, score *float64, elapsed time.Duration) {
	pulse := Pulse(elapsed, r.theme.PulsePeriod)
	stroke := r.theme.BaseStroke + pulse
	box := r.theme.Box
	box.A = uint8(math.Round(float64(box.A) * (0.7 + 0.3*pulse)))
	c.StrokeRect(rect, Style{Color: box, Width: stroke})

	accent := Style{Color: r.theme.Accent, Width: stroke + 1}
	corner := math.Min(rect.W, rect.H) * r.theme.CornerLength
	x0, y0, x1, y1 := rect.X, rect.Y, rect.X+rect.W, rect.Y+rect.H
	c.Line(x0, y0, x0+corner, y0, accent)
	c.Line(x0, y0, x0, y0+corner, accent)
	c.Line(x1, y0, x1-corner, y0, accent)
	c.Line(x1, y0, x1, y0+corner, accent)
	c.Line(x0, y1, x0+corner, y1, accent)
	c.Line(x0, y1, x0, y1-corner, accent)
	c.Line(x1, y1, x1-corner, y1, accent)
	c.Line(x1, y1, x1, y1-corner, accent)

	cx, cy := rect.X+rect.W/2, rect.Y+rect.H/2
	cross := math.Min(rect.W, rect.H) * 0.08
	thin := Style{Color: box, Width: 1}
	c.Line(cx-cross, cy, cx+cross, cy, thin)
	c.Line(cx, cy-cross, cx, cy+cross, thin)

	scanY := y0 + rect.H*Phase(elapsed, r.theme.ScanPeriod)
	scan := box
	scan.A /= 2
	c.Line(x0, scanY, x1, scanY, Style{Color: scan, Width: 1})

	if score != nil {
		c.Text(ConfidenceLabel(*score), cx, y0-10, Style{Color: r.theme.Label})
	}
}

// ConfidenceLabel formats a [0,1] score as a whole percentage, e.g. "87%".
func ConfidenceLabel(score float64) string {
	score = math.Min(math.Max(score, 0), 1)
	return fmt.Sprintf("%d%%", int(math.Round(score*100)))
}
