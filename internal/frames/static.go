package frames

import (
	"image"
	"sync"
)

// Static serves a fixed image. It is the simplest Source and is mostly useful
// for tests and for replaying a captured still.
type Static struct {
	mu     sync.Mutex
	img    image.Image
	ready  bool
	closed bool
}

// NewStatic returns a ready source serving img. A nil image yields a source
// that never becomes ready.
func NewStatic(img image.Image) *Static {
	return &Static{img: img, ready: img != nil}
}

func (s *Static) Width() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return 0
	}
	return s.img.Bounds().Dx()
}

func (s *Static) Height() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return 0
	}
	return s.img.Bounds().Dy()
}

func (s *Static) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready && s.img != nil
	s.mu.Unlock()
}

func (s *Static) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && !s.closed
}

func (s *Static) Current() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready || s.closed {
		return nil
	}
	return s.img
}

func (s *Static) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
