package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"image"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"facecam/internal/services"
	"facecam/internal/testsupport"
)

type rgbaSurface struct{ img *image.RGBA }

func (s rgbaSurface) Image() *image.RGBA { return s.img }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestCaptureArgs(t *testing.T) {
	args := captureArgs(CaptureOptions{Device: "/dev/video2", Width: 320, Height: 240, FPS: 15})
	joined := strings.Join(args, " ")
	for _, want := range []string{"-f v4l2", "-framerate 15", "-video_size 320x240", "-i /dev/video2", "-pix_fmt rgba", "pipe:1"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %q missing %q", joined, want)
		}
	}
}

func TestCaptureReadsFrames(t *testing.T) {
	// 4x4 RGBA is 64 bytes.
	bin := testsupport.WriteScript(t, filepath.Join(t.TempDir(), "ffmpeg"), "head -c 64 /dev/zero\nexec sleep 5")
	capture, err := StartCapture(context.Background(), CaptureOptions{Binary: bin, Device: "/dev/null", Width: 4, Height: 4, FPS: 30})
	if err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	t.Cleanup(func() { _ = capture.Close() })

	waitFor(t, capture.Ready)
	frame := capture.Current()
	if frame == nil || frame.Bounds().Dx() != 4 || frame.Bounds().Dy() != 4 {
		t.Fatalf("unexpected frame %v", frame)
	}
	if capture.Frames() != 1 {
		t.Fatalf("expected one frame, got %d", capture.Frames())
	}

	_ = capture.Close()
	if capture.Ready() || capture.Current() != nil {
		t.Fatal("expected closed capture to be unavailable")
	}
	if capture.Err() != nil {
		t.Fatalf("expected clean close, got %v", capture.Err())
	}
}

func TestCaptureReportsExit(t *testing.T) {
	bin := testsupport.WriteScript(t, filepath.Join(t.TempDir(), "ffmpeg"), "head -c 64 /dev/zero\nexit 3")
	capture, err := StartCapture(context.Background(), CaptureOptions{Binary: bin, Device: "/dev/null", Width: 4, Height: 4, FPS: 30})
	if err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	t.Cleanup(func() { _ = capture.Close() })

	waitFor(t, func() bool { return capture.Err() != nil })
	if capture.Ready() {
		t.Fatal("expected exited capture not to be ready")
	}
}

func TestStartCaptureRejectsMissingBinary(t *testing.T) {
	_, err := StartCapture(context.Background(), CaptureOptions{Binary: "/nonexistent/ffmpeg", Width: 4, Height: 4, FPS: 30})
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestEncoderStreamsOutputChunks(t *testing.T) {
	bin := testsupport.WriteScript(t, filepath.Join(t.TempDir(), "ffmpeg"), "cat >/dev/null\nprintf webmdata")
	enc := NewEncoder(EncoderOptions{Binary: bin})

	var mu sync.Mutex
	var out bytes.Buffer
	enc.OnChunk(func(chunk []byte) {
		mu.Lock()
		out.Write(chunk)
		mu.Unlock()
	})

	surface := rgbaSurface{img: image.NewRGBA(image.Rect(0, 0, 4, 4))}
	if err := enc.Start(surface, 10, MediaTypeWebM); err != nil {
		t.Fatalf("Start: %v", err)
	}
	start := time.Unix(0, 0)
	for i := range 5 {
		enc.RequestFrame(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := enc.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if out.String() != "webmdata" {
		t.Fatalf("unexpected output %q", out.String())
	}
	if enc.Err() != nil {
		t.Fatalf("unexpected encoder error %v", enc.Err())
	}
}

func TestEncoderRejectsUnsupportedMediaType(t *testing.T) {
	enc := NewEncoder(EncoderOptions{Binary: "ffmpeg"})
	err := enc.Start(rgbaSurface{img: image.NewRGBA(image.Rect(0, 0, 2, 2))}, 10, "video/mp4")
	if !errors.Is(err, services.ErrEncoderUnsupported) {
		t.Fatalf("expected ErrEncoderUnsupported, got %v", err)
	}
}

func TestEncoderRejectsMissingBinary(t *testing.T) {
	enc := NewEncoder(EncoderOptions{Binary: "/nonexistent/ffmpeg"})
	err := enc.Start(rgbaSurface{img: image.NewRGBA(image.Rect(0, 0, 2, 2))}, 10, MediaTypeWebM)
	if !errors.Is(err, services.ErrEncoderUnsupported) {
		t.Fatalf("expected ErrEncoderUnsupported, got %v", err)
	}
}

func TestSnapshotHonorsStride(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}
	sub := img.SubImage(image.Rect(1, 0, 3, 2)).(*image.RGBA)
	got := snapshot(sub)
	want := slices.Concat(img.Pix[4:12], img.Pix[20:28])
	if !bytes.Equal(got, want) {
		t.Fatalf("snapshot = %v, want %v", got, want)
	}
}
