package testsupport

import (
	"context"
	"image"
	"sync"

	"facecam/internal/detection"
)

// FakeDetector is a controllable detection.Detector. By default requests stay
// outstanding until Resolve or Fail is called; set Auto to answer every
// request synchronously.
type FakeDetector struct {
	mu       sync.Mutex
	initErr  error
	panicMsg string
	auto     func(seq uint64) detection.Set
	onResult func(detection.Result)
	requests []uint64
	closed   bool
}

// NewFakeDetector returns a detector whose Initialize returns initErr.
func NewFakeDetector(initErr error) *FakeDetector {
	return &FakeDetector{initErr: initErr}
}

// Auto makes Detect deliver fn(seq) synchronously.
func (f *FakeDetector) Auto(fn func(seq uint64) detection.Set) *FakeDetector {
	f.mu.Lock()
	f.auto = fn
	f.mu.Unlock()
	return f
}

// PanicOnDetect makes Detect panic with msg; an empty msg disables it.
func (f *FakeDetector) PanicOnDetect(msg string) {
	f.mu.Lock()
	f.panicMsg = msg
	f.mu.Unlock()
}

func (f *FakeDetector) Initialize(context.Context) error {
	return f.initErr
}

func (f *FakeDetector) Detect(_ context.Context, seq uint64, _ image.Image) {
	f.mu.Lock()
	f.requests = append(f.requests, seq)
	msg := f.panicMsg
	auto := f.auto
	f.mu.Unlock()
	if msg != "" {
		panic(msg)
	}
	if auto != nil {
		f.deliver(detection.Result{Seq: seq, Set: auto(seq)})
	}
}

func (f *FakeDetector) OnResult(fn func(detection.Result)) {
	f.mu.Lock()
	f.onResult = fn
	f.mu.Unlock()
}

// Resolve completes request seq with set.
func (f *FakeDetector) Resolve(seq uint64, set detection.Set) {
	f.deliver(detection.Result{Seq: seq, Set: set})
}

// Fail completes request seq with err.
func (f *FakeDetector) Fail(seq uint64, err error) {
	f.deliver(detection.Result{Seq: seq, Err: err})
}

func (f *FakeDetector) deliver(res detection.Result) {
	f.mu.Lock()
	fn := f.onResult
	f.mu.Unlock()
	if fn != nil {
		fn(res)
	}
}

// Requests returns the sequence tokens seen by Detect.
func (f *FakeDetector) Requests() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.requests...)
}

func (f *FakeDetector) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeDetector) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Face returns a scored detection centered at (x, y).
func Face(x, y, w, h, score float64) detection.Detection {
	return detection.Detection{
		Box:   detection.BoundingBox{XCenter: x, YCenter: y, Width: w, Height: h},
		Score: detection.Score(score),
	}
}
