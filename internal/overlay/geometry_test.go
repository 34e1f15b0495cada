package overlay

import (
	"testing"
	"time"

	"facecam/internal/detection"
)

func TestPixelRect(t *testing.T) {
	tests := []struct {
		name string
		box  detection.BoundingBox
		w, h int
		want Rect
	}{
		{
			name: "centered",
			box:  detection.BoundingBox{XCenter: 0.5, YCenter: 0.5, Width: 0.25, Height: 0.5},
			w:    100, h: 50,
			want: Rect{X: 37.5, Y: 12.5, W: 25, H: 25},
		},
		{
			name: "fractional pixels kept",
			box:  detection.BoundingBox{XCenter: 0.25, YCenter: 0.75, Width: 0.125, Height: 0.25},
			w:    10, h: 10,
			want: Rect{X: 1.875, Y: 6.25, W: 1.25, H: 2.5},
		},
		{
			name: "off canvas left edge",
			box:  detection.BoundingBox{XCenter: 0, YCenter: 0.5, Width: 0.5, Height: 0.5},
			w:    200, h: 100,
			want: Rect{X: -50, Y: 25, W: 100, H: 50},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PixelRect(tc.box, tc.w, tc.h); got != tc.want {
				t.Fatalf("PixelRect = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestPulseBounded(t *testing.T) {
	period := 1200 * time.Millisecond
	if Pulse(0, period) != 0 {
		t.Fatal("pulse should start at 0")
	}
	if got := Pulse(period/2, period); got < 0.999 {
		t.Fatalf("pulse at half period = %f, want 1", got)
	}
	for ms := 0; ms < 5000; ms += 37 {
		v := Pulse(time.Duration(ms)*time.Millisecond, period)
		if v < 0 || v > 1 {
			t.Fatalf("pulse out of range at %dms: %f", ms, v)
		}
	}
	if Pulse(time.Second, 0) != 0 {
		t.Fatal("zero period must yield 0")
	}
}

func TestConfidenceLabel(t *testing.T) {
	tests := map[float64]string{0.87: "87%", 0.874: "87%", 0.875: "88%", 1.2: "100%", -0.1: "0%"}
	for score, want := range tests {
		if got := ConfidenceLabel(score); got != want {
			t.Fatalf("ConfidenceLabel(%v) = %q, want %q", score, got, want)
		}
	}
}
