package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"slices"
	"strconv"
	"sync"
	"time"

	"facecam/internal/encoder"
	"facecam/internal/logging"
	"facecam/internal/services"
)

const (
	MediaTypeWebM     = "video/webm"
	MediaTypeMatroska = "video/x-matroska"
)

// frameQueue bounds how many raw frames may wait for ffmpeg's stdin.
const frameQueue = 4

const chunkSize = 64 * 1024

// EncoderOptions configure an ffmpeg encoder.
type EncoderOptions struct {
	Binary string
	Logger *slog.Logger
}

// Encoder pipes paced RGBA snapshots into ffmpeg and forwards the encoded
// stream as chunks. Frames are dropped when ffmpeg falls behind.
type Encoder struct {
	opts   EncoderOptions
	logger *slog.Logger

	mu      sync.Mutex
	surface encoder.Surface
	pacer   *encoder.Pacer
	onChunk func([]byte)
	queue   chan []byte
	started bool
	stopped bool
	dropped int
	err     error

	cmd        *exec.Cmd
	cancel     context.CancelFunc
	writerDone chan struct{}
	readerDone chan struct{}
}

// NewEncoder returns an unstarted ffmpeg encoder.
func NewEncoder(opts EncoderOptions) *Encoder {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	return &Encoder{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "ffmpeg-encoder")}
}

func containerFormat(mediaType string) (string, bool) {
	switch mediaType {
	case MediaTypeWebM:
		return "webm", true
	case MediaTypeMatroska:
		return "matroska", true
	default:
		return "", false
	}
}

// SupportedMediaTypes lists the media types Start accepts.
func SupportedMediaTypes() []string {
	return []string{MediaTypeWebM, MediaTypeMatroska}
}

func encoderArgs(width, height, fps int, format string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-video_size", strconv.Itoa(width) + "x" + strconv.Itoa(height),
		"-framerate", strconv.Itoa(fps),
		"-i", "pipe:0",
		"-an",
		"-c:v", "libvpx", "-deadline", "realtime", "-b:v", "2M",
		"-pix_fmt", "yuv420p",
		"-f", format,
		"pipe:1",
	}
}

func (e *Encoder) Start(surface encoder.Surface, fps int, mediaType string) error {
	format, ok := containerFormat(mediaType)
	if !ok {
		return services.Wrap(services.ErrEncoderUnsupported, "ffmpeg-encoder", "start",
			fmt.Sprintf("cannot produce %q", mediaType), nil)
	}
	if surface == nil || surface.Image() == nil {
		return services.Wrap(services.ErrEncoderUnsupported, "ffmpeg-encoder", "start", "no surface", nil)
	}
	if _, err := exec.LookPath(e.opts.Binary); err != nil {
		return services.Wrap(services.ErrEncoderUnsupported, "ffmpeg-encoder", "start", "ffmpeg not found", err)
	}
	if fps <= 0 {
		fps = 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.New("ffmpeg encoder already started")
	}
	bounds := surface.Image().Bounds()
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, e.opts.Binary, encoderArgs(bounds.Dx(), bounds.Dy(), fps, format)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return services.Wrap(services.ErrEncoderUnsupported, "ffmpeg-encoder", "stdin pipe", "", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return services.Wrap(services.ErrEncoderUnsupported, "ffmpeg-encoder", "stdout pipe", "", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return services.Wrap(services.ErrEncoderUnsupported, "ffmpeg-encoder", "start ffmpeg", "", err)
	}

	e.surface = surface
	e.pacer = encoder.NewPacer(fps)
	e.queue = make(chan []byte, frameQueue)
	e.cmd = cmd
	e.cancel = cancel
	e.writerDone = make(chan struct{})
	e.readerDone = make(chan struct{})
	e.started = true

	go e.writeLoop(stdin)
	go e.readLoop(stdout)
	return nil
}

func (e *Encoder) OnChunk(fn func([]byte)) {
	e.mu.Lock()
	e.onChunk = fn
	e.mu.Unlock()
}

func (e *Encoder) RequestFrame(at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started || e.stopped || e.err != nil || !e.pacer.Due(at) {
		return
	}
	frame := snapshot(e.surface.Image())
	select {
	case e.queue <- frame:
	default:
		e.dropped++
	}
}

func snapshot(img *image.RGBA) []byte {
	b := img.Bounds()
	rowBytes := b.Dx() * 4
	if img.Stride == rowBytes {
		return slices.Clone(img.Pix[:rowBytes*b.Dy()])
	}
	out := make([]byte, 0, rowBytes*b.Dy())
	for y := 0; y < b.Dy(); y++ {
		start := y * img.Stride
		out = append(out, img.Pix[start:start+rowBytes]...)
	}
	return out
}

func (e *Encoder) writeLoop(stdin io.WriteCloser) {
	defer close(e.writerDone)
	defer stdin.Close()
	for frame := range e.queue {
		if _, err := stdin.Write(frame); err != nil {
			e.fail(fmt.Errorf("write frame: %w", err))
			// Keep consuming until Stop closes the queue.
			for range e.queue {
			}
			return
		}
	}
}

func (e *Encoder) readLoop(stdout io.Reader) {
	defer close(e.readerDone)
	buf := make([]byte, chunkSize)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			e.emit(slices.Clone(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
				e.fail(fmt.Errorf("read output: %w", err))
			}
			return
		}
	}
}

func (e *Encoder) emit(chunk []byte) {
	e.mu.Lock()
	fn := e.onChunk
	e.mu.Unlock()
	if fn != nil {
		fn(chunk)
	}
}

func (e *Encoder) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil && !e.stopped {
		e.err = services.Wrap(services.ErrEncoderUnsupported, "ffmpeg-encoder", "encode", "", err)
	}
}

// Stop closes ffmpeg's input and waits for the remaining output. If ctx ends
// first the process is killed.
func (e *Encoder) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	close(e.queue)
	dropped := e.dropped
	e.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		<-e.writerDone
		<-e.readerDone
		done <- e.cmd.Wait()
	}()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		e.cancel()
		<-done
		waitErr = ctx.Err()
	}
	e.cancel()
	if dropped > 0 {
		e.logger.Debug("frames dropped while encoding", logging.Int("dropped", dropped))
	}
	if waitErr != nil {
		return services.Wrap(services.ErrEncoderUnsupported, "ffmpeg-encoder", "stop", "", waitErr)
	}
	return nil
}

func (e *Encoder) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Dropped reports frames skipped because ffmpeg fell behind.
func (e *Encoder) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}
