package testsupport

import (
	"context"
	"slices"
	"sync"
	"time"

	"facecam/internal/encoder"
)

// FakeEncoder emits a fixed chunk for every requested frame and an optional
// trailing chunk on Stop.
type FakeEncoder struct {
	mu         sync.Mutex
	startErr   error
	frameChunk []byte
	finalChunk []byte
	onChunk    func([]byte)
	surface    encoder.Surface
	fps        int
	mediaType  string
	frames     int
	emitted    int
	started    bool
	stopped    bool
	err        error
}

// NewFakeEncoder returns an encoder emitting frameChunk per frame and
// finalChunk on Stop. Either may be nil.
func NewFakeEncoder(frameChunk, finalChunk []byte) *FakeEncoder {
	return &FakeEncoder{frameChunk: frameChunk, finalChunk: finalChunk}
}

// Factory returns an encoder.Factory that always yields f.
func (f *FakeEncoder) Factory() encoder.Factory {
	return func() encoder.Encoder { return f }
}

// FailStart makes Start return err.
func (f *FakeEncoder) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// SetErr simulates an asynchronous encoder failure.
func (f *FakeEncoder) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *FakeEncoder) Start(surface encoder.Surface, fps int, mediaType string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.surface = surface
	f.fps = fps
	f.mediaType = mediaType
	f.started = true
	return nil
}

func (f *FakeEncoder) OnChunk(fn func([]byte)) {
	f.mu.Lock()
	f.onChunk = fn
	f.mu.Unlock()
}

func (f *FakeEncoder) RequestFrame(time.Time) {
	f.mu.Lock()
	if !f.started || f.stopped {
		f.mu.Unlock()
		return
	}
	f.frames++
	chunk := slices.Clone(f.frameChunk)
	fn := f.onChunk
	if len(chunk) > 0 {
		f.emitted += len(chunk)
	}
	f.mu.Unlock()
	if fn != nil && len(chunk) > 0 {
		fn(chunk)
	}
}

func (f *FakeEncoder) Stop(context.Context) error {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return nil
	}
	f.stopped = true
	chunk := slices.Clone(f.finalChunk)
	fn := f.onChunk
	if len(chunk) > 0 {
		f.emitted += len(chunk)
	}
	f.mu.Unlock()
	if fn != nil && len(chunk) > 0 {
		fn(chunk)
	}
	return nil
}

func (f *FakeEncoder) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Frames reports how many frames were requested.
func (f *FakeEncoder) Frames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

// Emitted reports the total bytes handed to OnChunk.
func (f *FakeEncoder) Emitted() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emitted
}

// Stopped reports whether Stop was called.
func (f *FakeEncoder) Stopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

// MediaType returns the media type passed to Start.
func (f *FakeEncoder) MediaType() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mediaType
}
