package encoder

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"facecam/internal/services"
)

type rgbaSurface struct{ img *image.RGBA }

func (s rgbaSurface) Image() *image.RGBA { return s.img }

func TestPacerAdmitsTargetRate(t *testing.T) {
	p := NewPacer(10)
	start := time.Unix(0, 0)
	admitted := 0
	for ms := 0; ms < 1000; ms += 16 {
		if p.Due(start.Add(time.Duration(ms) * time.Millisecond)) {
			admitted++
		}
	}
	if admitted < 9 || admitted > 11 {
		t.Fatalf("admitted %d frames at 60Hz ticks for 10fps", admitted)
	}
}

func TestPacerResyncsAfterGap(t *testing.T) {
	p := NewPacer(10)
	start := time.Unix(0, 0)
	p.Due(start)
	if !p.Due(start.Add(5 * time.Second)) {
		t.Fatal("expected frame after long gap")
	}
	if p.Due(start.Add(5*time.Second + 50*time.Millisecond)) {
		t.Fatal("expected pacing to restart from the gap, not burst")
	}
}

func TestMJPEGRejectsUnsupportedMediaType(t *testing.T) {
	enc := NewMJPEG(80, time.Second)
	err := enc.Start(rgbaSurface{image.NewRGBA(image.Rect(0, 0, 4, 4))}, 10, "video/webm")
	if !errors.Is(err, services.ErrEncoderUnsupported) {
		t.Fatalf("expected ErrEncoderUnsupported, got %v", err)
	}
}

func TestMJPEGEmitsChunksPerTimeslice(t *testing.T) {
	surface := rgbaSurface{image.NewRGBA(image.Rect(0, 0, 16, 16))}
	enc := NewMJPEG(75, 500*time.Millisecond)
	var chunks [][]byte
	enc.OnChunk(func(b []byte) { chunks = append(chunks, b) })
	if err := enc.Start(surface, 10, MediaTypeMJPEG); err != nil {
		t.Fatalf("start: %v", err)
	}

	start := time.Unix(0, 0)
	for i := 0; i <= 12; i++ {
		enc.RequestFrame(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks before stop, got %d", len(chunks))
	}
	if err := enc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected flushed final chunk, got %d chunks", len(chunks))
	}
	if enc.Frames() != 13 {
		t.Fatalf("frames = %d, want 13", enc.Frames())
	}

	stream := bytes.Join(chunks, nil)
	if _, err := jpeg.Decode(bytes.NewReader(stream)); err != nil {
		t.Fatalf("stream does not start with a valid JPEG: %v", err)
	}
	if n := bytes.Count(stream, []byte{0xff, 0xd8, 0xff}); n != 13 {
		t.Fatalf("expected 13 JPEG start markers, got %d", n)
	}

	enc.RequestFrame(start.Add(5 * time.Second))
	if len(chunks) != 3 {
		t.Fatal("expected no chunks after stop")
	}
}

func TestMJPEGStopWithoutFrames(t *testing.T) {
	enc := NewMJPEG(75, time.Second)
	called := false
	enc.OnChunk(func([]byte) { called = true })
	if err := enc.Start(rgbaSurface{image.NewRGBA(image.Rect(0, 0, 2, 2))}, 5, MediaTypeMJPEG); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := enc.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if called {
		t.Fatal("expected no chunk for an empty recording")
	}
}
