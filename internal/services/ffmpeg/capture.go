package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"facecam/internal/logging"
	"facecam/internal/services"
)

// CaptureOptions configure a V4L2 capture.
type CaptureOptions struct {
	Binary string
	Device string
	Width  int
	Height int
	FPS    int
	Logger *slog.Logger
}

// Capture is a frames.Source reading raw RGBA frames from ffmpeg. Only the
// latest frame is kept; slow consumers skip frames rather than queueing them.
type Capture struct {
	opts   CaptureOptions
	logger *slog.Logger
	cancel context.CancelFunc
	stdout io.ReadCloser

	latest atomic.Pointer[image.RGBA]
	exited atomic.Bool
	closed atomic.Bool
	frames atomic.Uint64
	done   chan struct{}

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

func captureArgs(opts CaptureOptions) []string {
	size := strconv.Itoa(opts.Width) + "x" + strconv.Itoa(opts.Height)
	return []string{
		"-hide_banner", "-loglevel", "error", "-nostdin",
		"-f", "v4l2",
		"-framerate", strconv.Itoa(opts.FPS),
		"-video_size", size,
		"-i", opts.Device,
		"-vf", "scale=" + strconv.Itoa(opts.Width) + ":" + strconv.Itoa(opts.Height),
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"pipe:1",
	}
}

// StartCapture launches ffmpeg against opts.Device. The source reports Ready
// once the first full frame has been read.
func StartCapture(ctx context.Context, opts CaptureOptions) (*Capture, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, services.Wrap(services.ErrSourceUnavailable, "capture", "start", "invalid frame size", nil)
	}
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(runCtx, opts.Binary, captureArgs(opts)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, services.Wrap(services.ErrSourceUnavailable, "capture", "stdout pipe", "", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, services.Wrap(services.ErrSourceUnavailable, "capture", "start ffmpeg", opts.Device, err)
	}

	c := &Capture{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "capture"),
		cancel: cancel,
		stdout: stdout,
		done:   make(chan struct{}),
	}
	go c.readLoop(cmd)
	return c, nil
}

func (c *Capture) readLoop(cmd *exec.Cmd) {
	defer close(c.done)
	frameSize := c.opts.Width * c.opts.Height * 4
	for {
		img := image.NewRGBA(image.Rect(0, 0, c.opts.Width, c.opts.Height))
		if _, err := io.ReadFull(c.stdout, img.Pix[:frameSize]); err != nil {
			if !c.closed.Load() && !errors.Is(err, io.EOF) {
				c.setErr(fmt.Errorf("read frame: %w", err))
			}
			break
		}
		c.latest.Store(img)
		c.frames.Add(1)
	}
	waitErr := cmd.Wait()
	c.exited.Store(true)
	if c.closed.Load() {
		return
	}
	if waitErr != nil {
		c.setErr(fmt.Errorf("ffmpeg exited: %w", waitErr))
	}
	logging.WarnWithContext(c.logger, "camera capture stopped", "capture_stopped",
		logging.String("device", c.opts.Device),
		logging.Error(c.Err()),
		logging.String(logging.FieldErrorHint, services.Hint(services.ErrSourceUnavailable)),
		logging.String(logging.FieldImpact, "preview and recording stop receiving frames"),
	)
}

func (c *Capture) setErr(err error) {
	c.errMu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.errMu.Unlock()
}

// Err returns the reason capture stopped, if it stopped unexpectedly.
func (c *Capture) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Capture) Width() int  { return c.opts.Width }
func (c *Capture) Height() int { return c.opts.Height }

// Frames reports how many frames have been read.
func (c *Capture) Frames() uint64 { return c.frames.Load() }

func (c *Capture) Ready() bool {
	return !c.closed.Load() && !c.exited.Load() && c.latest.Load() != nil
}

func (c *Capture) Current() image.Image {
	if !c.Ready() {
		return nil
	}
	return c.latest.Load()
}

// Close stops ffmpeg and waits briefly for the reader to exit.
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.cancel()
		_ = c.stdout.Close()
		select {
		case <-c.done:
		case <-time.After(5 * time.Second):
		}
	})
	return nil
}
