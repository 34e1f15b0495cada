// Package encoder defines the video encoder boundary used by the recording
// pipeline and ships a built-in Motion JPEG implementation.
package encoder

import (
	"context"
	"image"
	"time"
)

// Surface is the composite canvas an encoder samples frames from.
type Surface interface {
	Image() *image.RGBA
}

// Encoder turns surface snapshots into encoded chunks. Chunk emission is
// encoder-driven: OnChunk may fire from RequestFrame, from a background
// goroutine, or during Stop while the encoder flushes. Stop returns only after
// the final chunk has been delivered.
type Encoder interface {
	Start(surface Surface, fps int, mediaType string) error
	OnChunk(fn func([]byte))
	RequestFrame(at time.Time)
	Stop(ctx context.Context) error
	// Err reports an asynchronous encoder failure, if any.
	Err() error
}

// Factory builds a fresh encoder for each recording session.
type Factory func() Encoder

// Pacer throttles frame requests to a target frame rate.
type Pacer struct {
	interval time.Duration
	next     time.Time
}

// NewPacer returns a pacer admitting fps frames per second.
func NewPacer(fps int) *Pacer {
	if fps <= 0 {
		fps = 1
	}
	return &Pacer{interval: time.Second / time.Duration(fps)}
}

// Due reports whether a frame should be captured at. The first call is
// always due.
func (p *Pacer) Due(at time.Time) bool {
	if !p.next.IsZero() && at.Before(p.next) {
		return false
	}
	if p.next.IsZero() || at.Sub(p.next) > p.interval {
		p.next = at.Add(p.interval)
	} else {
		p.next = p.next.Add(p.interval)
	}
	return true
}

// Interval is the time between admitted frames.
func (p *Pacer) Interval() time.Duration { return p.interval }
