package frames

import (
	"image"
	"math"
	"sync"
	"time"

	"github.com/fogleman/gg"
)

// Pattern is a synthetic frame source that renders a slowly drifting
// face-like shape over a gradient. It is used when no camera hardware is
// configured and by tests.
type Pattern struct {
	mu     sync.Mutex
	width  int
	height int
	start  time.Time
	now    func() time.Time
	ready  bool
	closed bool
	frames uint64
}

// NewPattern returns a ready pattern source of the given size.
func NewPattern(width, height int) *Pattern {
	return &Pattern{
		width:  width,
		height: height,
		start:  time.Now(),
		now:    time.Now,
		ready:  true,
	}
}

// WithClock overrides the time source driving the animation.
func (p *Pattern) WithClock(now func() time.Time) *Pattern {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
	p.start = now()
	return p
}

func (p *Pattern) Width() int  { return p.width }
func (p *Pattern) Height() int { return p.height }

// SetReady toggles readiness, simulating camera warmup or loss.
func (p *Pattern) SetReady(ready bool) {
	p.mu.Lock()
	p.ready = ready
	p.mu.Unlock()
}

func (p *Pattern) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready && !p.closed
}

// Frames reports how many frames have been rendered.
func (p *Pattern) Frames() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Current renders and returns a new frame. It returns nil when the source is
// not ready.
func (p *Pattern) Current() image.Image {
	p.mu.Lock()
	if !p.ready || p.closed {
		p.mu.Unlock()
		return nil
	}
	p.frames++
	t := p.now().Sub(p.start).Seconds()
	p.mu.Unlock()

	w, h := float64(p.width), float64(p.height)
	dc := gg.NewContext(p.width, p.height)
	grad := gg.NewLinearGradient(0, 0, w, h)
	grad.AddColorStop(0, rgb(0x20, 0x28, 0x38))
	grad.AddColorStop(1, rgb(0x48, 0x50, 0x60))
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, w, h)
	dc.Fill()

	cx := w/2 + w*0.15*math.Sin(t*0.7)
	cy := h/2 + h*0.1*math.Cos(t*0.5)
	r := math.Min(w, h) * 0.18

	dc.SetRGB255(0xd8, 0xb0, 0x90)
	dc.DrawEllipse(cx, cy, r*0.8, r)
	dc.Fill()
	dc.SetRGB255(0x30, 0x20, 0x18)
	dc.DrawCircle(cx-r*0.3, cy-r*0.2, r*0.1)
	dc.DrawCircle(cx+r*0.3, cy-r*0.2, r*0.1)
	dc.Fill()
	dc.SetLineWidth(math.Max(1, r*0.06))
	dc.DrawArc(cx, cy+r*0.15, r*0.35, 0.2*math.Pi, 0.8*math.Pi)
	dc.Stroke()

	return dc.Image()
}

func (p *Pattern) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}
