package detection_test

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"facecam/internal/detection"
	"facecam/internal/frames"
	"facecam/internal/testsupport"
)

func newSource() *frames.Static {
	return frames.NewStatic(image.NewRGBA(image.Rect(0, 0, 64, 48)))
}

func TestLoopIssuesOneRequestAtATime(t *testing.T) {
	det := testsupport.NewFakeDetector(nil)
	loop := detection.NewLoop(newSource(), det, detection.Options{})
	ctx := context.Background()
	if mode := loop.Start(ctx); mode != detection.ModeActive {
		t.Fatalf("mode = %s, want active", mode)
	}

	now := time.Unix(0, 0)
	for i := 0; i < 5; i++ {
		loop.Tick(ctx, now.Add(time.Duration(i)*33*time.Millisecond))
	}
	if got := det.Requests(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("requests = %v, want [1]", got)
	}

	det.Resolve(1, detection.Set{testsupport.Face(0.5, 0.5, 0.2, 0.3, 0.9)})
	if got := loop.Current(); len(got) != 1 {
		t.Fatalf("current = %v, want one detection", got)
	}
	loop.Tick(ctx, now.Add(time.Second))
	if got := det.Requests(); len(got) != 2 || got[1] != 2 {
		t.Fatalf("requests = %v, want second request with seq 2", got)
	}
}

func TestLoopSkipsWhenSourceNotReady(t *testing.T) {
	src := newSource()
	src.SetReady(false)
	det := testsupport.NewFakeDetector(nil)
	loop := detection.NewLoop(src, det, detection.Options{})
	loop.Start(context.Background())

	loop.Tick(context.Background(), time.Now())
	if len(det.Requests()) != 0 {
		t.Fatal("expected no request while frames are unavailable")
	}
	if !loop.Current().Empty() {
		t.Fatal("expected empty initial set")
	}
}

func TestLoopDiscardsStaleResults(t *testing.T) {
	det := testsupport.NewFakeDetector(nil)
	loop := detection.NewLoop(newSource(), det, detection.Options{RequestTimeout: 100 * time.Millisecond})
	ctx := context.Background()
	loop.Start(ctx)

	start := time.Unix(100, 0)
	loop.Tick(ctx, start)
	// Request 1 is abandoned after the timeout and request 2 goes out.
	loop.Tick(ctx, start.Add(200*time.Millisecond))
	if got := det.Requests(); len(got) != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}

	newer := detection.Set{testsupport.Face(0.3, 0.3, 0.1, 0.1, 0.8)}
	older := detection.Set{testsupport.Face(0.7, 0.7, 0.1, 0.1, 0.4)}
	det.Resolve(2, newer)
	det.Resolve(1, older)

	got := loop.Current()
	if len(got) != 1 || got[0].Box.XCenter != 0.3 {
		t.Fatalf("expected newer result to win, got %+v", got)
	}
	stats := loop.Stats()
	if stats.Stale != 1 || stats.Applied != 1 || stats.Abandoned != 1 || stats.LastApplied != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestLoopFailureKeepsPreviousSet(t *testing.T) {
	det := testsupport.NewFakeDetector(nil)
	loop := detection.NewLoop(newSource(), det, detection.Options{})
	ctx := context.Background()
	loop.Start(ctx)

	loop.Tick(ctx, time.Now())
	det.Resolve(1, detection.Set{testsupport.Face(0.5, 0.5, 0.2, 0.2, 0.5)})
	loop.Tick(ctx, time.Now())
	det.Fail(2, errors.New("inference failed"))

	if len(loop.Current()) != 1 {
		t.Fatal("expected previous set to remain after failure")
	}
	loop.Tick(ctx, time.Now())
	if got := det.Requests(); len(got) != 3 {
		t.Fatalf("expected loop to keep requesting after failure, got %v", got)
	}
	if loop.Stats().Failures != 1 || loop.Err() == nil {
		t.Fatalf("expected failure recorded, stats=%+v err=%v", loop.Stats(), loop.Err())
	}
}

func TestLoopDropsInvalidDetections(t *testing.T) {
	det := testsupport.NewFakeDetector(nil)
	loop := detection.NewLoop(newSource(), det, detection.Options{})
	ctx := context.Background()
	loop.Start(ctx)
	loop.Tick(ctx, time.Now())
	det.Resolve(1, detection.Set{
		testsupport.Face(0.5, 0.5, 0, 0.2, 0.5),
		testsupport.Face(0.5, 0.5, 0.2, 0.2, 0.5),
	})
	if got := loop.Current(); len(got) != 1 {
		t.Fatalf("expected invalid detection dropped, got %+v", got)
	}
}

func TestLoopDiscardsResultsAfterStop(t *testing.T) {
	det := testsupport.NewFakeDetector(nil)
	loop := detection.NewLoop(newSource(), det, detection.Options{})
	ctx := context.Background()
	loop.Start(ctx)
	loop.Tick(ctx, time.Now())

	loop.Stop()
	det.Resolve(1, detection.Set{testsupport.Face(0.5, 0.5, 0.2, 0.2, 0.9)})

	if !loop.Current().Empty() {
		t.Fatal("expected result after stop to be discarded")
	}
	if loop.Stats().Discarded != 1 {
		t.Fatalf("expected discarded count, got %+v", loop.Stats())
	}
	if loop.Mode() != detection.ModeIdle {
		t.Fatalf("mode after stop = %s", loop.Mode())
	}
	loop.Tick(ctx, time.Now())
	if len(det.Requests()) != 1 {
		t.Fatal("expected no requests after stop")
	}
}

func TestLoopRecoversFromPanickingDetector(t *testing.T) {
	det := testsupport.NewFakeDetector(nil)
	det.PanicOnDetect("boom")
	loop := detection.NewLoop(newSource(), det, detection.Options{})
	ctx := context.Background()
	loop.Start(ctx)

	loop.Tick(ctx, time.Now())
	loop.Tick(ctx, time.Now())
	if got := len(det.Requests()); got != 2 {
		t.Fatalf("expected a fresh request after a panic, got %d", got)
	}
	if loop.Stats().Failures != 2 {
		t.Fatalf("expected panics counted as failures, got %+v", loop.Stats())
	}
}

func TestLoopDegradedModeWhenInitFails(t *testing.T) {
	det := testsupport.NewFakeDetector(errors.New("cascade missing"))
	loop := detection.NewLoop(newSource(), det, detection.Options{})
	ctx := context.Background()
	if mode := loop.Start(ctx); mode != detection.ModeDegraded {
		t.Fatalf("mode = %s, want degraded", mode)
	}

	loop.Tick(ctx, time.Now())
	set := loop.Current()
	if len(set) != 1 {
		t.Fatalf("expected one synthetic detection, got %d", len(set))
	}
	if set[0].Score != nil {
		t.Fatal("synthetic detection must not carry a score")
	}
	if len(det.Requests()) != 0 {
		t.Fatal("degraded mode must not issue detector requests")
	}
}

func TestLoopNilDetectorIsDegraded(t *testing.T) {
	loop := detection.NewLoop(newSource(), nil, detection.Options{Signal: fixedSignal{x: 0.2, y: 0.8}})
	if mode := loop.Start(context.Background()); mode != detection.ModeDegraded {
		t.Fatalf("mode = %s", mode)
	}
	loop.Tick(context.Background(), time.Now())
	box := loop.Current()[0].Box
	if box.XCenter != 0.2 || box.YCenter != 0.8 {
		t.Fatalf("expected box to follow the signal, got %+v", box)
	}
}

func TestLoopWithAsyncEngine(t *testing.T) {
	engine := &stubEngine{set: detection.Set{testsupport.Face(0.4, 0.4, 0.2, 0.2, 0.7)}}
	det := detection.NewAsync(engine)
	loop := detection.NewLoop(newSource(), det, detection.Options{})
	ctx := context.Background()
	loop.Start(ctx)

	loop.Tick(ctx, time.Now())
	deadline := time.Now().Add(2 * time.Second)
	for loop.Current().Empty() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for async result")
		}
		time.Sleep(time.Millisecond)
	}
	if err := det.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !engine.closed {
		t.Fatal("expected engine closed")
	}
}

type stubEngine struct {
	set    detection.Set
	closed bool
}

func (s *stubEngine) Initialize(context.Context) error { return nil }

func (s *stubEngine) Run(context.Context, image.Image) (detection.Set, error) {
	return s.set, nil
}

func (s *stubEngine) Close() error {
	s.closed = true
	return nil
}

type fixedSignal struct{ x, y float64 }

func (f fixedSignal) Sample(time.Time) (float64, float64) { return f.x, f.y }
