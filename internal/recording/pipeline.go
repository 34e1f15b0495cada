package recording

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
	"facecam/internal/services"
)

const (
	defaultPersistTimeout = 30 * time.Second
	abortTimeout          = 2 * time.Second
)

// Persister stores a finished artifact.
type Persister interface {
	Save(ctx context.Context, data []byte, mediaType string, at time.Time) (library.StoredVideo, error)
}

// Options configure a Pipeline.
type Options struct {
	FPS            int
	MediaType      string
	Renderer       *overlay.Renderer
	Logger         *slog.Logger
	Now            func() time.Time
	PersistTimeout time.Duration
}

// Pipeline owns at most one recording session at a time.
type Pipeline struct {
	source     frames.Source
	detections func() detection.Set
	factory    encoder.Factory
	persister  Persister
	opts       Options
	logger     *slog.Logger

	mu    sync.Mutex
	state State
	sess  *session

	persistWG sync.WaitGroup
}

// New builds an idle pipeline. detections returns the set to composite on
// each tick.
func New(source frames.Source, detections func() detection.Set, factory encoder.Factory, persister Persister, opts Options) *Pipeline {
	if opts.Renderer == nil {
		opts.Renderer = overlay.NewRenderer(overlay.DefaultTheme())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = defaultPersistTimeout
	}
	if opts.FPS <= 0 {
		opts.FPS = 15
	}
	if detections == nil {
		detections = func() detection.Set { return nil }
	}
	return &Pipeline{
		source:     source,
		detections: detections,
		factory:    factory,
		persister:  persister,
		opts:       opts,
		logger:     logging.NewComponentLogger(opts.Logger, "recording"),
	}
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Recording reports whether a session is capturing frames.
func (p *Pipeline) Recording() bool {
	return p.State() == StateRecording
}

// Start begins a new session. A session already in progress is left
// untouched and ErrAlreadyRecording is returned.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return services.Wrap(services.ErrAlreadyRecording, "recording", "start", p.state.String(), nil)
	}
	if p.source == nil || !p.source.Ready() {
		return services.Wrap(services.ErrSourceUnavailable, "recording", "start", "frame source not ready", nil)
	}
	frame := p.source.Current()
	if frame == nil {
		return services.Wrap(services.ErrSourceUnavailable, "recording", "start", "no frame available", nil)
	}
	size := image.Pt(p.source.Width(), p.source.Height())
	if size.X <= 0 || size.Y <= 0 {
		size = frame.Bounds().Size()
	}
	if p.factory == nil {
		return services.Wrap(services.ErrEncoderUnsupported, "recording", "start", "no encoder configured", nil)
	}
	enc := p.factory()
	if enc == nil {
		return services.Wrap(services.ErrEncoderUnsupported, "recording", "start", "encoder unavailable", nil)
	}

	sess := &session{
		startedAt: p.opts.Now(),
		size:      size,
		surface:   overlay.NewSurface(size.X, size.Y),
		enc:       enc,
	}
	sess.surface.DrawFrame(frame)
	enc.OnChunk(sess.appendChunk)
	if err := enc.Start(sess.surface, p.opts.FPS, p.opts.MediaType); err != nil {
		if !errors.Is(err, services.ErrEncoderUnsupported) {
			err = services.Wrap(services.ErrEncoderUnsupported, "recording", "start encoder", p.opts.MediaType, err)
		}
		return err
	}

	p.sess = sess
	p.state = StateRecording
	logging.WithContext(ctx, p.logger).Info("recording started",
		logging.String(logging.FieldEventType, "recording_started"),
		logging.String("media_type", p.opts.MediaType),
		logging.Int("fps", p.opts.FPS),
		logging.Int("width", size.X),
		logging.Int("height", size.Y),
	)
	return nil
}

// Tick composites one frame while recording. If the frame source is gone or
// the encoder has failed, the session is finalized and the result returned.
func (p *Pipeline) Tick(ctx context.Context, now time.Time) *Finalized {
	p.mu.Lock()
	if p.state != StateRecording {
		p.mu.Unlock()
		return nil
	}
	sess := p.sess
	reason := ""
	var frame image.Image
	if err := sess.enc.Err(); err != nil {
		reason = ReasonEncoderError
		logging.WarnWithContext(p.logger, "encoder failed during recording", "encoder_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "recording finalized early"),
		)
	} else if !p.source.Ready() {
		reason = ReasonSourceLost
	} else if frame = p.source.Current(); frame == nil {
		reason = ReasonSourceLost
	}
	if reason == "" {
		p.composite(sess, frame, now)
	}
	p.mu.Unlock()

	if reason == "" {
		return nil
	}
	if reason == ReasonSourceLost {
		logging.WarnWithContext(p.logger, "frame source lost during recording", "source_lost",
			logging.String(logging.FieldErrorHint, services.Hint(services.ErrSourceUnavailable)),
			logging.String(logging.FieldImpact, "recording finalized with the frames captured so far"),
		)
	}
	f, _ := p.finalize(ctx, reason)
	return f
}

func (p *Pipeline) composite(sess *session, frame image.Image, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(p.logger, "composite frame failed", "composite_panic",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldImpact, "frame skipped"),
			)
		}
	}()
	sess.surface.DrawFrame(frame)
	p.opts.Renderer.Draw(sess.surface, p.detections(), now.Sub(sess.startedAt))
	sess.frames++
	sess.enc.RequestFrame(now)
}

// Stop finalizes the current session. It is a no-op returning nil when no
// session is recording.
func (p *Pipeline) Stop(ctx context.Context) (*Finalized, error) {
	return p.finalize(ctx, ReasonStopped)
}

func (p *Pipeline) finalize(ctx context.Context, reason string) (*Finalized, error) {
	p.mu.Lock()
	if p.state != StateRecording {
		p.mu.Unlock()
		return nil, nil
	}
	p.state = StateFinalizing
	sess := p.sess
	p.mu.Unlock()

	stopErr := sess.enc.Stop(ctx)
	finalizedAt := p.opts.Now()
	artifact := Artifact{
		Data:        sess.take(),
		MediaType:   p.opts.MediaType,
		StartedAt:   sess.startedAt,
		FinalizedAt: finalizedAt,
		Frames:      sess.frames,
	}

	p.mu.Lock()
	p.sess = nil
	p.state = StateIdle
	p.mu.Unlock()

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "recording_finalized"),
		logging.String("reason", reason),
		logging.Int("frames", artifact.Frames),
		logging.Int64("size_bytes", artifact.Size()),
		logging.Duration("duration", finalizedAt.Sub(sess.startedAt)),
	}
	if stopErr != nil {
		attrs = append(attrs, logging.Error(stopErr))
		logging.WarnWithContext(p.logger, "recording finalized with encoder error", "recording_finalized", attrs...)
	} else {
		p.logger.Info("recording finalized", logging.Args(attrs...)...)
	}

	persisted := make(chan PersistResult, 1)
	p.persistWG.Add(1)
	go p.persist(ctx, artifact, persisted)
	return &Finalized{Artifact: artifact, Reason: reason, Persisted: persisted}, nil
}

func (p *Pipeline) persist(ctx context.Context, artifact Artifact, out chan<- PersistResult) {
	defer p.persistWG.Done()
	defer close(out)

	if p.persister == nil {
		out <- PersistResult{Err: services.Wrap(services.ErrPersistenceWriteFailed, "recording", "persist", "no persister", nil)}
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.opts.PersistTimeout)
	defer cancel()
	video, err := p.persister.Save(saveCtx, artifact.Data, artifact.MediaType, artifact.FinalizedAt)
	if err != nil {
		if !errors.Is(err, services.ErrPersistenceWriteFailed) {
			err = services.Wrap(services.ErrPersistenceWriteFailed, "recording", "persist", "", err)
		}
		logging.WarnWithContext(p.logger, "recording not saved", "persist_failed",
			logging.Error(err),
			logging.Int64("size_bytes", artifact.Size()),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "the recording is lost"),
		)
	}
	out <- PersistResult{Video: video, Err: err}
}

// Abort discards the current session without producing an artifact. It
// reports whether a session was aborted.
func (p *Pipeline) Abort(reason string) bool {
	p.mu.Lock()
	if p.state != StateRecording {
		p.mu.Unlock()
		return false
	}
	p.state = StateAborted
	sess := p.sess
	p.mu.Unlock()

	sess.drop()
	ctx, cancel := context.WithTimeout(context.Background(), abortTimeout)
	err := sess.enc.Stop(ctx)
	cancel()

	p.mu.Lock()
	p.sess = nil
	p.state = StateIdle
	p.mu.Unlock()

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "recording_aborted"),
		logging.String("reason", reason),
		logging.Int("frames", sess.frames),
	}
	if err != nil {
		attrs = append(attrs, logging.Error(err))
	}
	p.logger.Info("recording aborted", logging.Args(attrs...)...)
	return true
}

// BufferedBytes reports encoded bytes held by the active session.
func (p *Pipeline) BufferedBytes() int {
	p.mu.Lock()
	sess := p.sess
	p.mu.Unlock()
	if sess == nil {
		return 0
	}
	return sess.bufferedBytes()
}

// Wait blocks until pending saves complete or ctx ends.
func (p *Pipeline) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.persistWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
