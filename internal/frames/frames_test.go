package frames

import (
	"image"
	"testing"
	"time"
)

func TestPatternRendersFramesOfConfiguredSize(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := NewPattern(64, 48).WithClock(func() time.Time { return now })

	if !p.Ready() {
		t.Fatal("expected pattern to be ready")
	}
	img := p.Current()
	if img == nil {
		t.Fatal("expected frame")
	}
	if got := img.Bounds().Size(); got != (image.Point{X: 64, Y: 48}) {
		t.Fatalf("frame size = %v", got)
	}
	if p.Frames() != 1 {
		t.Fatalf("frames = %d, want 1", p.Frames())
	}
	_, _, _, a := img.At(32, 24).RGBA()
	if a == 0 {
		t.Fatal("expected opaque pixel in frame")
	}
}

func TestPatternNotReadyYieldsNil(t *testing.T) {
	p := NewPattern(32, 32)
	p.SetReady(false)
	if p.Ready() || p.Current() != nil {
		t.Fatal("expected no frame while not ready")
	}
	p.SetReady(true)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if p.Ready() || p.Current() != nil {
		t.Fatal("expected no frame after close")
	}
}

func TestStaticSource(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 6))
	s := NewStatic(img)
	if s.Width() != 10 || s.Height() != 6 {
		t.Fatalf("unexpected size %dx%d", s.Width(), s.Height())
	}
	if s.Current() != img {
		t.Fatal("expected static image")
	}
	if NewStatic(nil).Ready() {
		t.Fatal("nil image must not be ready")
	}
}
