package session_test

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"facecam/internal/detection"
	"facecam/internal/frames"
	"facecam/internal/library"
	"facecam/internal/overlay"
	"facecam/internal/services"
	"facecam/internal/session"
	"facecam/internal/store"
	"facecam/internal/testsupport"
	"facecam/internal/tick"
)

type harness struct {
	source  *frames.Static
	det     *testsupport.FakeDetector
	enc     *testsupport.FakeEncoder
	mem     *store.Memory
	lib     *library.Library
	clock   *tick.Manual
	session *session.Session

	mu       sync.Mutex
	statuses []session.Status
}

func newHarness(t *testing.T, det *testsupport.FakeDetector, preview overlay.Canvas) *harness {
	t.Helper()
	h := &harness{
		source: frames.NewStatic(image.NewRGBA(image.Rect(0, 0, 40, 30))),
		det:    det,
		enc:    testsupport.NewFakeEncoder([]byte("chunk"), nil),
		mem:    store.NewMemory(),
		clock:  tick.NewManual(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC), 100*time.Millisecond),
	}
	h.lib = library.New(h.mem, library.Options{})
	deps := session.Deps{
		Source:    h.source,
		Encoders:  h.enc.Factory(),
		Library:   h.lib,
		Scheduler: h.clock,
		Preview:   preview,
	}
	if det != nil {
		deps.Detector = det
	}
	h.session = session.New(deps, session.Options{
		FPS:           10,
		MediaType:     "video/webm",
		WarmupTimeout: 200 * time.Millisecond,
		Now:           h.clock.Now,
	})
	h.session.OnStatus(func(s session.Snapshot) {
		h.mu.Lock()
		if n := len(h.statuses); n == 0 || h.statuses[n-1] != s.Status {
			h.statuses = append(h.statuses, s.Status)
		}
		h.mu.Unlock()
	})
	t.Cleanup(func() { _ = h.session.Close() })
	return h
}

func (h *harness) seen() []session.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]session.Status(nil), h.statuses...)
}

func TestSessionActiveDetectionFlow(t *testing.T) {
	det := testsupport.NewFakeDetector(nil).Auto(func(uint64) detection.Set {
		return detection.Set{testsupport.Face(0.5, 0.5, 0.25, 0.25, 0.8)}
	})
	h := newHarness(t, det, nil)
	ctx := context.Background()
	if err := h.session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.clock.Advance(3)

	snap := h.session.Snapshot()
	if snap.Status != session.StatusDetectionActive {
		t.Fatalf("status = %s, want detection_active", snap.Status)
	}
	if snap.Detections != 1 || snap.Overlay != "tracking" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	seen := h.seen()
	if seen[len(seen)-1] != session.StatusDetectionActive {
		t.Fatalf("listener saw %v", seen)
	}
}

func TestSessionDegradedWhenDetectorFails(t *testing.T) {
	h := newHarness(t, testsupport.NewFakeDetector(errors.New("no cascade")), nil)
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.clock.Advance(1)
	snap := h.session.Snapshot()
	if snap.Status != session.StatusDetectionDegraded {
		t.Fatalf("status = %s, want detection_degraded", snap.Status)
	}
	if snap.Detections == 0 {
		t.Fatal("expected fallback detections in degraded mode")
	}
	if snap.Message == "" {
		t.Fatal("expected degraded status to carry a message")
	}
}

func TestSessionStartWithoutCameraIsError(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.source.SetReady(false)
	err := h.session.Start(context.Background())
	if !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if snap := h.session.Snapshot(); snap.Status != session.StatusError {
		t.Fatalf("status = %s, want error", snap.Status)
	}
	if err := h.session.StartRecording(context.Background()); !errors.Is(err, services.ErrSourceUnavailable) {
		t.Fatalf("expected recording refused, got %v", err)
	}
}

func TestSessionRecordStopPersists(t *testing.T) {
	h := newHarness(t, testsupport.NewFakeDetector(nil), nil)
	ctx := context.Background()
	if err := h.session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.session.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := h.session.StartRecording(ctx); !errors.Is(err, services.ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
	h.clock.Advance(4)
	if !h.session.Snapshot().Recording {
		t.Fatal("expected recording in snapshot")
	}

	fin, err := h.session.StopRecording(ctx)
	if err != nil || fin == nil {
		t.Fatalf("StopRecording = %v, %v", fin, err)
	}
	if fin.Artifact.Size() != int64(4*len("chunk")) {
		t.Fatalf("unexpected artifact size %d", fin.Artifact.Size())
	}
	select {
	case res := <-fin.Persisted:
		if res.Err != nil {
			t.Fatalf("persist: %v", res.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for persistence")
	}
	snap := h.session.Snapshot()
	if snap.Recording || len(snap.Videos) != 1 {
		t.Fatalf("unexpected snapshot after save %+v", snap)
	}

	removed, err := h.session.DeleteVideo(ctx, snap.Videos[0].ID)
	if err != nil || !removed {
		t.Fatalf("DeleteVideo = %v, %v", removed, err)
	}
	if len(h.session.Videos()) != 0 {
		t.Fatal("expected no videos after delete")
	}

	if fin, err := h.session.StopRecording(ctx); fin != nil || err != nil {
		t.Fatalf("stop when idle = %v, %v", fin, err)
	}
}

func TestSessionTicksWhileSaveIsInFlight(t *testing.T) {
	h := newHarness(t, testsupport.NewFakeDetector(nil), nil)
	ctx := context.Background()
	if err := h.session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.session.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.clock.Advance(2)

	entered := make(chan struct{})
	release := make(chan struct{})
	var enterOnce, releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)
	h.mem.FailPut = func(key string) error {
		if _, ok := store.PayloadID(key); ok {
			enterOnce.Do(func() { close(entered) })
			<-release
		}
		return nil
	}

	fin, err := h.session.StopRecording(ctx)
	if err != nil || fin == nil {
		t.Fatalf("StopRecording = %v, %v", fin, err)
	}
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("save never reached the payload write")
	}

	done := make(chan session.Snapshot, 1)
	go func() {
		h.clock.Advance(1)
		done <- h.session.Snapshot()
	}()
	select {
	case snap := <-done:
		if snap.Recording {
			t.Fatal("expected recording stopped")
		}
		if len(snap.Videos) != 0 {
			t.Fatalf("unsaved video listed: %+v", snap.Videos)
		}
	case <-time.After(time.Second):
		t.Fatal("tick or snapshot blocked while a save was in flight")
	}

	unblock()
	select {
	case res := <-fin.Persisted:
		if res.Err != nil {
			t.Fatalf("persist: %v", res.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for persistence")
	}
	if len(h.session.Snapshot().Videos) != 1 {
		t.Fatal("expected saved video in snapshot")
	}
}

func TestSessionPreviewDrawsOverlayOnFrame(t *testing.T) {
	det := testsupport.NewFakeDetector(nil).Auto(func(uint64) detection.Set {
		return detection.Set{testsupport.Face(0.5, 0.5, 0.5, 0.5, 0.9)}
	})
	h := newHarness(t, det, nil)
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.clock.Advance(2)

	img := h.session.Preview()
	if img == nil {
		t.Fatal("expected a preview image")
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Fatalf("preview bounds %v", b)
	}
	drawn := false
	for y := 0; y < 30 && !drawn; y++ {
		for x := 0; x < 40; x++ {
			if _, g, _, _ := img.At(x, y).RGBA(); g != 0 {
				drawn = true
				break
			}
		}
	}
	if !drawn {
		t.Fatal("expected overlay pixels over the blank frame")
	}
}

func TestSessionClearAll(t *testing.T) {
	h := newHarness(t, nil, nil)
	ctx := context.Background()
	for i := range 2 {
		if _, err := h.lib.Save(ctx, []byte("x"), "video/webm", time.Unix(int64(i), 0)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := h.session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(h.session.Videos()) != 2 {
		t.Fatalf("expected seeded videos after load, got %d", len(h.session.Videos()))
	}
	if err := h.session.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if len(h.session.Snapshot().Videos) != 0 {
		t.Fatal("expected empty library")
	}
}

func TestSessionCloseDiscardsLateResultsAndAborts(t *testing.T) {
	det := testsupport.NewFakeDetector(nil)
	h := newHarness(t, det, nil)
	ctx := context.Background()
	if err := h.session.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := h.session.StartRecording(ctx); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	h.clock.Advance(2)
	if len(det.Requests()) != 1 {
		t.Fatalf("expected one outstanding request, got %v", det.Requests())
	}

	if err := h.session.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	det.Resolve(1, detection.Set{testsupport.Face(0.5, 0.5, 0.2, 0.2, 0.9)})
	snap := h.session.Snapshot()
	if snap.Detections != 0 {
		t.Fatal("late result must be discarded after teardown")
	}
	if snap.Recording || !h.enc.Stopped() {
		t.Fatal("expected recording aborted on teardown")
	}
	if !det.Closed() || h.source.Ready() {
		t.Fatal("expected detector and source closed")
	}
	if len(h.lib.List()) != 0 {
		t.Fatal("aborted recording must not be saved")
	}
	h.clock.Advance(3)
	if len(det.Requests()) != 1 {
		t.Fatal("no ticks after close")
	}
}

func TestSessionSurvivesPanickingDetector(t *testing.T) {
	det := testsupport.NewFakeDetector(nil)
	det.PanicOnDetect("inference exploded")
	h := newHarness(t, det, nil)
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.clock.Advance(3)
	if got := len(det.Requests()); got != 3 {
		t.Fatalf("expected a request per tick despite panics, got %d", got)
	}
	det.PanicOnDetect("")
	h.clock.Advance(1)
	if got := len(det.Requests()); got != 4 {
		t.Fatalf("expected ticks to continue, got %d requests", got)
	}
}

type panicCanvas struct{ *overlay.Recorder }

func (panicCanvas) Clear() { panic("canvas lost") }

func TestSessionSurvivesPanickingCanvas(t *testing.T) {
	det := testsupport.NewFakeDetector(nil)
	h := newHarness(t, det, panicCanvas{overlay.NewRecorder(40, 30)})
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.clock.Advance(2)
	det.Resolve(1, nil)
	h.clock.Advance(1)
	if got := len(det.Requests()); got != 2 {
		t.Fatalf("expected detection to keep running, got %d requests", got)
	}
}

func TestSessionSourceLostIsError(t *testing.T) {
	h := newHarness(t, nil, nil)
	if err := h.session.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.session.SourceLost("camera unplugged")
	if snap := h.session.Snapshot(); snap.Status != session.StatusError || snap.Message != "camera unplugged" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	h.session.SourceRestored()
	if snap := h.session.Snapshot(); snap.Status != session.StatusDetectionDegraded {
		t.Fatalf("status = %s, want detection_degraded", snap.Status)
	}
}
