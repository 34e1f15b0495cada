package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"slices"
	"sync"
	"time"

	"facecam/internal/services"
)

// MediaTypeMJPEG is the container-less Motion JPEG stream produced by MJPEG.
const MediaTypeMJPEG = "video/x-motion-jpeg"

var mjpegMediaTypes = []string{MediaTypeMJPEG, "video/mjpeg"}

// MJPEG encodes each sampled frame as a baseline JPEG and concatenates them.
// Encoded frames are buffered and emitted as one chunk per timeslice.
type MJPEG struct {
	quality   int
	timeslice time.Duration

	mu         sync.Mutex
	surface    Surface
	pacer      *Pacer
	onChunk    func([]byte)
	buf        bytes.Buffer
	sliceStart time.Time
	frames     int
	started    bool
	stopped    bool
	err        error
}

// NewMJPEG returns an encoder using the given JPEG quality (1-100) and chunk
// timeslice.
func NewMJPEG(quality int, timeslice time.Duration) *MJPEG {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	if timeslice <= 0 {
		timeslice = time.Second
	}
	return &MJPEG{quality: quality, timeslice: timeslice}
}

func (m *MJPEG) Start(surface Surface, fps int, mediaType string) error {
	if !slices.Contains(mjpegMediaTypes, mediaType) {
		return services.Wrap(services.ErrEncoderUnsupported, "encoder", "start",
			fmt.Sprintf("mjpeg cannot produce %q", mediaType), nil)
	}
	if surface == nil {
		return services.Wrap(services.ErrEncoderUnsupported, "encoder", "start", "no surface", nil)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return errors.New("mjpeg encoder already started")
	}
	m.surface = surface
	m.pacer = NewPacer(fps)
	m.started = true
	return nil
}

func (m *MJPEG) OnChunk(fn func([]byte)) {
	m.mu.Lock()
	m.onChunk = fn
	m.mu.Unlock()
}

func (m *MJPEG) RequestFrame(at time.Time) {
	m.mu.Lock()
	if !m.started || m.stopped || m.err != nil || !m.pacer.Due(at) {
		m.mu.Unlock()
		return
	}
	if m.sliceStart.IsZero() {
		m.sliceStart = at
	}
	if err := jpeg.Encode(&m.buf, m.surface.Image(), &jpeg.Options{Quality: m.quality}); err != nil {
		m.err = fmt.Errorf("encode frame: %w", err)
		m.mu.Unlock()
		return
	}
	m.frames++
	var chunk []byte
	if at.Sub(m.sliceStart) >= m.timeslice {
		chunk = m.takeLocked()
		m.sliceStart = at
	}
	fn := m.onChunk
	m.mu.Unlock()

	if chunk != nil && fn != nil {
		fn(chunk)
	}
}

// Stop flushes buffered frames as a final chunk.
func (m *MJPEG) Stop(context.Context) error {
	m.mu.Lock()
	if !m.started || m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	chunk := m.takeLocked()
	fn := m.onChunk
	err := m.err
	m.mu.Unlock()

	if chunk != nil && fn != nil {
		fn(chunk)
	}
	return err
}

func (m *MJPEG) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Frames reports how many frames were encoded.
func (m *MJPEG) Frames() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *MJPEG) takeLocked() []byte {
	if m.buf.Len() == 0 {
		return nil
	}
	chunk := bytes.Clone(m.buf.Bytes())
	m.buf.Reset()
	return chunk
}
