// Package session owns everything scoped to one camera session: the frame
// source, the detection loop, the preview overlay, the recording pipeline,
// and the video library. It serializes ticks and commands and publishes a
// status snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"facecam/internal/detection"
	"facecam/internal/encoder"
	"facecam/internal/frames"
	"facecam/internal/library"
	"facecam/internal/logging"
	"facecam/internal/overlay"
	"facecam/internal/recording"
	"facecam/internal/services"
	"facecam/internal/tick"
)

const (
	defaultWarmup       = 5 * time.Second
	warmupPoll          = 20 * time.Millisecond
	defaultCloseTimeout = 10 * time.Second
)

// Deps are the collaborators a session drives. Detector may be nil, in which
// case detection runs degraded from the start.
type Deps struct {
	Source    frames.Source
	Detector  detection.Detector
	Encoders  encoder.Factory
	Library   *library.Library
	Scheduler tick.Scheduler
	// Preview receives the overlay each tick. Defaults to an offscreen
	// surface the size of the source.
	Preview overlay.Canvas
	Signal  detection.Signal
	Logger  *slog.Logger
}

// Options tune a session.
type Options struct {
	FPS            int
	MediaType      string
	RequestTimeout time.Duration
	WarmupTimeout  time.Duration
	Theme          *overlay.Theme
	Now            func() time.Time
}

// Session is the controller for one camera session.
type Session struct {
	deps     Deps
	opts     Options
	logger   *slog.Logger
	loop     *detection.Loop
	pipeline *recording.Pipeline
	renderer *overlay.Renderer

	mu          sync.Mutex
	started     bool
	closed      bool
	startedAt   time.Time
	stopTicks   func()
	detecting   bool
	startErr    error
	sourceLost  string
	notice      string
	overlayMode overlay.Mode
	lastKey     changeKey
	hasKey      bool

	listenMu  sync.Mutex
	listeners []func(Snapshot)
}

// New wires a session. Nothing runs until Start.
func New(deps Deps, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WarmupTimeout <= 0 {
		opts.WarmupTimeout = defaultWarmup
	}
	theme := overlay.DefaultTheme()
	if opts.Theme != nil {
		theme = *opts.Theme
	}
	logger := logging.NewComponentLogger(deps.Logger, "session")
	renderer := overlay.NewRenderer(theme)

	s := &Session{
		deps:     deps,
		opts:     opts,
		logger:   logger,
		renderer: renderer,
	}
	s.loop = detection.NewLoop(deps.Source, deps.Detector, detection.Options{
		Signal:         deps.Signal,
		RequestTimeout: opts.RequestTimeout,
		Logger:         deps.Logger,
	})
	s.pipeline = recording.New(deps.Source, s.loop.Current, deps.Encoders, deps.Library, recording.Options{
		FPS:       opts.FPS,
		MediaType: opts.MediaType,
		Renderer:  renderer,
		Logger:    deps.Logger,
		Now:       opts.Now,
	})
	return s
}

// OnStatus registers fn to receive snapshots whenever the visible status
// changes. fn runs on the goroutine that caused the change and must not
// block.
func (s *Session) OnStatus(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	s.listenMu.Lock()
	s.listeners = append(s.listeners, fn)
	s.listenMu.Unlock()
}

// Start loads the library, waits for the first camera frame, initializes
// detection and begins ticking. A camera that never becomes ready is fatal:
// the session enters StatusError and ErrSourceUnavailable is returned.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	s.startedAt = s.opts.Now()
	s.mu.Unlock()
	s.publish()

	if s.deps.Library != nil {
		if err := s.deps.Library.Load(ctx); err != nil {
			s.setNotice(err.Error())
			logging.WarnWithContext(s.logger, "video library load failed", "library_load_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "stored videos may be missing from the list"),
			)
		}
	}

	if err := s.awaitSource(ctx); err != nil {
		s.mu.Lock()
		s.startErr = err
		s.mu.Unlock()
		logging.ErrorWithContext(s.logger, "camera unavailable", "camera_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
		)
		s.publish()
		return err
	}
	if s.deps.Preview == nil {
		s.deps.Preview = overlay.NewSurface(s.deps.Source.Width(), s.deps.Source.Height())
	}
	s.publish()

	mode := s.loop.Start(ctx)
	s.mu.Lock()
	s.detecting = true
	s.mu.Unlock()
	s.logger.Info("session started",
		logging.String(logging.FieldEventType, "session_started"),
		logging.String("detection_mode", mode.String()),
		logging.Int("width", s.deps.Source.Width()),
		logging.Int("height", s.deps.Source.Height()),
	)
	s.publish()

	if s.deps.Scheduler != nil {
		stop := s.deps.Scheduler.Start(ctx, s.tick)
		s.mu.Lock()
		s.stopTicks = stop
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) awaitSource(ctx context.Context) error {
	if s.deps.Source == nil {
		return services.Wrap(services.ErrSourceUnavailable, "session", "start", "no frame source", nil)
	}
	deadline := time.NewTimer(s.opts.WarmupTimeout)
	defer deadline.Stop()
	poll := time.NewTicker(warmupPoll)
	defer poll.Stop()
	for {
		if s.deps.Source.Ready() && s.deps.Source.Current() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return services.Wrap(services.ErrSourceUnavailable, "session", "start", "cancelled waiting for camera", ctx.Err())
		case <-deadline.C:
			return services.Wrap(services.ErrSourceUnavailable, "session", "start",
				fmt.Sprintf("no frames after %s", s.opts.WarmupTimeout), nil)
		case <-poll.C:
		}
	}
}

// Tick runs one frame of work. It is exported for hosts that drive the
// session without a Scheduler.
func (s *Session) Tick(ctx context.Context, now time.Time) {
	s.tick(ctx, now)
}

// tick holds s.mu only for detection and the preview. The pipeline has its
// own lock and may block while an encoder flushes, so it runs unlocked.
func (s *Session) tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if s.closed || !s.detecting {
		s.mu.Unlock()
		return
	}
	s.guard("tick", func() {
		s.loop.Tick(ctx, now)
		s.drawPreview(s.loop.Current(), now)
	})
	s.mu.Unlock()

	var fin *recording.Finalized
	s.guard("recording tick", func() { fin = s.pipeline.Tick(ctx, now) })
	if fin != nil {
		s.watchPersist(fin)
	}
	s.publish()
}

func (s *Session) guard(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(s.logger, step+" failed", "tick_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "frame skipped; next tick proceeds normally"),
			)
		}
	}()
	fn()
}

func (s *Session) drawPreview(set detection.Set, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(s.logger, "overlay draw failed", "overlay_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "preview overlay skipped for one frame"),
			)
		}
	}()
	summary := s.renderer.Render(s.deps.Preview, set, now.Sub(s.startedAt))
	s.overlayMode = summary.Mode
}

// StartRecording begins a recording session.
func (s *Session) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	err := s.usableLocked()
	s.mu.Unlock()
	if err != nil {
		return err
	}
	err = s.pipeline.Start(ctx)
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if err == nil && closed {
		s.pipeline.Abort("teardown")
		err = errSessionClosed
	}
	s.publish()
	return err
}

// StopRecording finalizes the current recording. With nothing recording it
// returns nil and no error. The returned Persisted channel yields the saved
// video or a persistence notice.
func (s *Session) StopRecording(ctx context.Context) (*recording.Finalized, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, errSessionClosed
	}
	fin, err := s.pipeline.Stop(ctx)
	if fin != nil {
		fin = s.watchPersist(fin)
	}
	s.publish()
	return fin, err
}

// watchPersist observes the persistence result on behalf of the session and
// returns a copy of fin whose Persisted channel relays that result.
func (s *Session) watchPersist(fin *recording.Finalized) *recording.Finalized {
	relay := make(chan recording.PersistResult, 1)
	src := fin.Persisted
	go func() {
		defer close(relay)
		res, ok := <-src
		if !ok {
			return
		}
		if res.Err != nil {
			s.setNotice(fmt.Sprintf("recording not saved: %v", res.Err))
		} else {
			s.setNotice("")
		}
		s.publish()
		relay <- res
	}()
	out := *fin
	out.Persisted = relay
	return &out
}

// DeleteVideo removes a stored video. Unknown ids report false.
func (s *Session) DeleteVideo(ctx context.Context, id string) (bool, error) {
	if s.deps.Library == nil {
		return false, nil
	}
	removed, err := s.deps.Library.Delete(ctx, id)
	s.publish()
	return removed, err
}

// ClearAll removes every stored video.
func (s *Session) ClearAll(ctx context.Context) error {
	if s.deps.Library == nil {
		return nil
	}
	err := s.deps.Library.Clear(ctx)
	s.publish()
	return err
}

// Videos lists stored videos, oldest first.
func (s *Session) Videos() []library.StoredVideo {
	if s.deps.Library == nil {
		return nil
	}
	return s.deps.Library.List()
}

// Payload returns the stored bytes of a video.
func (s *Session) Payload(ctx context.Context, id string) (library.StoredVideo, []byte, error) {
	if s.deps.Library == nil {
		return library.StoredVideo{}, nil, services.Wrap(services.ErrNotFound, "session", "payload", id, nil)
	}
	video, ok := s.deps.Library.Get(id)
	if !ok {
		return library.StoredVideo{}, nil, services.Wrap(services.ErrNotFound, "session", "payload", id, nil)
	}
	data, err := s.deps.Library.Payload(ctx, id)
	return video, data, err
}

// Preview returns the latest camera frame with the current overlay drawn over
// it, or nil while no frame is available.
func (s *Session) Preview() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deps.Source == nil || !s.deps.Source.Ready() {
		return nil
	}
	frame := s.deps.Source.Current()
	if frame == nil {
		return nil
	}
	w, h := s.deps.Source.Width(), s.deps.Source.Height()
	if w <= 0 || h <= 0 {
		w, h = frame.Bounds().Dx(), frame.Bounds().Dy()
	}
	out := overlay.NewSurface(w, h)
	out.DrawFrame(frame)
	s.renderer.Draw(out, s.loop.Current(), s.opts.Now().Sub(s.startedAt))
	return out.Image()
}

// SourceLost marks the camera as gone, typically from a hotplug event.
func (s *Session) SourceLost(reason string) {
	s.mu.Lock()
	s.sourceLost = reason
	s.mu.Unlock()
	s.publish()
}

// SourceRestored clears a previous SourceLost.
func (s *Session) SourceRestored() {
	s.mu.Lock()
	s.sourceLost = ""
	s.mu.Unlock()
	s.publish()
}

var errSessionClosed = errors.New("session closed")

func (s *Session) usableLocked() error {
	if s.closed {
		return errSessionClosed
	}
	if s.startErr != nil {
		return s.startErr
	}
	if !s.detecting {
		return services.Wrap(services.ErrSourceUnavailable, "session", "command", "session not started", nil)
	}
	return nil
}

func (s *Session) setNotice(msg string) {
	s.mu.Lock()
	s.notice = msg
	s.mu.Unlock()
}

// Snapshot returns the current status surface.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	status, message := s.statusLocked()
	set := s.loop.Current()
	snap := Snapshot{
		Status:         status,
		Message:        message,
		Notice:         s.notice,
		Recording:      s.pipeline.Recording(),
		RecordingState: s.pipeline.State().String(),
		Detections:     len(set),
		Mode:           s.loop.Mode().String(),
		Overlay:        s.overlayMode.String(),
		Stats:          s.loop.Stats(),
		UpdatedAt:      s.opts.Now(),
	}
	if s.deps.Library != nil {
		snap.Videos = s.deps.Library.List()
		snap.TotalBytes = s.deps.Library.TotalBytes()
	}
	return snap
}

func (s *Session) statusLocked() (Status, string) {
	switch {
	case s.startErr != nil:
		return StatusError, s.startErr.Error()
	case s.closed:
		return StatusInitializing, "session closed"
	case !s.started:
		return StatusInitializing, ""
	case s.sourceLost != "":
		return StatusError, s.sourceLost
	}
	if s.detecting && !s.deps.Source.Ready() {
		return StatusError, "camera stopped delivering frames"
	}
	if !s.detecting {
		if s.deps.Source != nil && s.deps.Source.Ready() {
			return StatusCameraReady, ""
		}
		return StatusInitializing, ""
	}
	switch s.loop.Mode() {
	case detection.ModeDegraded:
		msg := "face detector unavailable"
		if err := s.loop.Err(); err != nil {
			msg = err.Error()
		}
		return StatusDetectionDegraded, msg
	default:
		return StatusDetectionActive, ""
	}
}

// publish notifies listeners if the visible status changed.
func (s *Session) publish() {
	s.mu.Lock()
	snap := s.snapshotLocked()
	key := snap.key()
	changed := !s.hasKey || key != s.lastKey
	s.lastKey = key
	s.hasKey = true
	s.mu.Unlock()
	if !changed {
		return
	}
	if s.logger.Enabled(context.Background(), slog.LevelDebug) {
		s.logger.Debug("session status",
			logging.String(logging.FieldEventType, "status_changed"),
			logging.String("status", string(snap.Status)),
			logging.String("recording", snap.RecordingState),
			logging.Int("videos", len(snap.Videos)),
		)
	}
	s.listenMu.Lock()
	listeners := append([]func(Snapshot){}, s.listeners...)
	s.listenMu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// Close tears the session down: ticks stop, late detection results are
// discarded, an in-progress recording is aborted, pending saves are given a
// bounded time to finish, and the source is closed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	stop := s.stopTicks
	s.stopTicks = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.loop.Stop()
	s.pipeline.Abort("teardown")

	var errs []error
	if s.deps.Detector != nil {
		if err := s.deps.Detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close detector: %w", err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultCloseTimeout)
	defer cancel()
	if err := s.pipeline.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("await pending saves: %w", err))
	}
	if s.deps.Source != nil {
		if err := s.deps.Source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source: %w", err))
		}
	}
	s.logger.Info("session closed", logging.String(logging.FieldEventType, "session_closed"))
	return errors.Join(errs...)
}
