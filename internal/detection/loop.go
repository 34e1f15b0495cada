package detection

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"facecam/internal/frames"
	"facecam/internal/logging"
	"facecam/internal/services"
)

// Mode describes where the current Set comes from.
type Mode int

const (
	// ModeIdle means Start has not run yet or the loop was stopped.
	ModeIdle Mode = iota
	// ModeActive means results come from the detector.
	ModeActive
	// ModeDegraded means the detector is unavailable and results are synthesized.
	ModeDegraded
)

func (m Mode) String() string {
	switch m {
	case ModeActive:
		return "active"
	case ModeDegraded:
		return "degraded"
	default:
		return "idle"
	}
}

// Stats are cumulative loop counters.
type Stats struct {
	Requests    uint64 `json:"requests"`
	Applied     uint64 `json:"applied"`
	Stale       uint64 `json:"stale"`
	Failures    uint64 `json:"failures"`
	Abandoned   uint64 `json:"abandoned"`
	Discarded   uint64 `json:"discarded"`
	LastApplied uint64 `json:"lastApplied"`
}

// Options tune a Loop.
type Options struct {
	// Signal drives degraded mode; defaults to a Wander started at Start.
	Signal Signal
	// RequestTimeout abandons an outstanding request after this age. Zero
	// waits forever.
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Loop owns the detection request cycle and the published Set.
type Loop struct {
	source   frames.Source
	detector Detector
	logger   *slog.Logger
	timeout  time.Duration

	current atomic.Pointer[Set]

	mu          sync.Mutex
	signal      Signal
	mode        Mode
	started     bool
	stopped     bool
	nextSeq     uint64
	outstanding bool
	pendingSeq  uint64
	issuedAt    time.Time
	lastApplied uint64
	stats       Stats
	lastErr     error
}

// NewLoop builds a loop reading frames from source. A nil detector starts the
// loop directly in degraded mode.
func NewLoop(source frames.Source, detector Detector, opts Options) *Loop {
	l := &Loop{
		source:   source,
		detector: detector,
		logger:   logging.NewComponentLogger(opts.Logger, "detection"),
		timeout:  opts.RequestTimeout,
		signal:   opts.Signal,
	}
	empty := Set{}
	l.current.Store(&empty)
	return l
}

// Start initializes the detector and returns the resulting mode. An
// initialization failure is not returned as an error: the loop falls back to
// degraded mode and the cause is available from Err.
func (l *Loop) Start(ctx context.Context) Mode {
	l.mu.Lock()
	if l.started {
		mode := l.mode
		l.mu.Unlock()
		return mode
	}
	l.started = true
	if l.signal == nil {
		l.signal = NewWander(time.Now())
	}
	l.mu.Unlock()

	var initErr error
	if l.detector == nil {
		initErr = services.Wrap(services.ErrDetectorUnavailable, "detection", "initialize", "no detector configured", nil)
	} else {
		l.detector.OnResult(l.handleResult)
		if err := l.detector.Initialize(ctx); err != nil {
			initErr = services.Wrap(services.ErrDetectorUnavailable, "detection", "initialize", "", err)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if initErr != nil {
		l.mode = ModeDegraded
		l.lastErr = initErr
		logging.WarnWithContext(l.logger, "detector unavailable; using synthetic overlay signal", "detector_degraded",
			logging.Error(initErr),
			logging.String(logging.FieldErrorHint, services.Hint(initErr)),
			logging.String(logging.FieldImpact, "overlay follows a synthetic path instead of real faces"),
		)
		return l.mode
	}
	l.mode = ModeActive
	l.logger.Info("detector ready", logging.String(logging.FieldEventType, "detector_ready"))
	return l.mode
}

// Tick runs one step of the request cycle. It never blocks on inference.
func (l *Loop) Tick(ctx context.Context, now time.Time) {
	l.mu.Lock()
	if !l.started || l.stopped {
		l.mu.Unlock()
		return
	}
	if l.mode == ModeDegraded {
		set := Fallback(l.signal, now)
		l.current.Store(&set)
		l.mu.Unlock()
		return
	}
	if l.outstanding && l.timeout > 0 && now.Sub(l.issuedAt) > l.timeout {
		l.outstanding = false
		l.stats.Abandoned++
		logging.WarnWithContext(l.logger, "detection request timed out; issuing a new one", "detection_abandoned",
			logging.Uint64(logging.FieldSeq, l.pendingSeq),
			logging.Duration("timeout", l.timeout),
			logging.String(logging.FieldErrorHint, "raise detector.request_timeout_ms or lower camera resolution"),
			logging.String(logging.FieldImpact, "overlay lags behind the camera"),
		)
	}
	if l.outstanding || !l.source.Ready() {
		l.mu.Unlock()
		return
	}
	frame := l.source.Current()
	if frame == nil {
		l.mu.Unlock()
		return
	}
	l.nextSeq++
	seq := l.nextSeq
	l.outstanding = true
	l.pendingSeq = seq
	l.issuedAt = now
	l.stats.Requests++
	l.mu.Unlock()

	l.dispatch(ctx, seq, frame)
}

func (l *Loop) dispatch(ctx context.Context, seq uint64, frame image.Image) {
	defer func() {
		if r := recover(); r != nil {
			l.handleResult(Result{Seq: seq, Err: fmt.Errorf("detect panic: %v", r)})
		}
	}()
	l.detector.Detect(ctx, seq, frame)
}

func (l *Loop) handleResult(res Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		l.stats.Discarded++
		return
	}
	if l.outstanding && res.Seq == l.pendingSeq {
		l.outstanding = false
	}
	if res.Err != nil {
		l.stats.Failures++
		l.lastErr = res.Err
		logging.WarnWithContext(l.logger, "detection request failed; keeping previous detections", "detection_failed",
			logging.Uint64(logging.FieldSeq, res.Seq),
			logging.Error(res.Err),
			logging.String(logging.FieldImpact, "overlay shows the last known detections"),
		)
		return
	}
	if res.Seq < l.lastApplied {
		l.stats.Stale++
		return
	}
	set := NewSet(res.Set...)
	l.current.Store(&set)
	l.lastApplied = res.Seq
	l.stats.Applied++
	l.stats.LastApplied = res.Seq
}

// Current returns the published Set. The returned value is shared and must
// not be modified.
func (l *Loop) Current() Set {
	return *l.current.Load()
}

func (l *Loop) Mode() Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return ModeIdle
	}
	return l.mode
}

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Err returns the most recent detector error, if any.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Stop halts the request cycle. Results delivered afterwards are discarded.
// Stop does not close the detector.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.outstanding = false
}
