package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"facecam/internal/config"
	"facecam/internal/fileutil"
	"facecam/internal/hotplug"
	"facecam/internal/library"
	"facecam/internal/logging"
	"facecam/internal/recording"
	"facecam/internal/services"
	"facecam/internal/session"
	"facecam/internal/store"
)

// SessionFactory builds a fresh, unstarted camera session.
type SessionFactory func(ctx context.Context) (*session.Session, error)

// Daemon enforces single-instance execution and owns the camera session.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      store.Store
	library    *library.Library
	newSession SessionFactory

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	sess      *session.Session
	monitor   *hotplug.Monitor
	lastErr   error
	startedAt time.Time

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	Session      session.Snapshot
	LastError    string
	Device       string
	Source       string
	Hotplug      bool
	DatabasePath string
	LockFilePath string
	SocketPath   string
	LogPath      string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st store.Store, lib *library.Library, factory SessionFactory, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || lib == nil || factory == nil {
		return nil, errors.New("daemon requires config, store, library, and session factory")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		store:      st,
		library:    lib,
		newSession: factory,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and starts the camera session. A camera
// that cannot be opened does not fail Start: the session reports the error
// status and is rebuilt when the camera reappears.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another facecam daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.mu.Lock()
	d.startedAt = time.Now()
	d.mu.Unlock()
	if err := d.startSession(d.ctx); err != nil && !errors.Is(err, services.ErrSourceUnavailable) {
		d.cancel()
		_ = d.lock.Unlock()
		return err
	}

	if d.cfg.Camera.Source == config.SourceV4L2 {
		monitor := hotplug.New(d.cfg.Camera.Device, d.handleHotplug, d.logger)
		if err := monitor.Start(d.ctx); err != nil {
			d.logger.Debug("hotplug monitor unavailable", logging.Error(err))
		}
		d.mu.Lock()
		d.monitor = monitor
		d.mu.Unlock()
	}

	d.running.Store(true)
	d.logger.Info("facecam daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// startSession replaces the current session with a new one.
func (d *Daemon) startSession(ctx context.Context) error {
	d.mu.Lock()
	old := d.sess
	d.sess = nil
	d.mu.Unlock()
	if old != nil {
		if err := old.Close(); err != nil {
			d.logger.Debug("previous session close reported errors", logging.Error(err))
		}
	}

	sess, err := d.newSession(ctx)
	if err != nil {
		d.setErr(err)
		return err
	}
	d.mu.Lock()
	d.sess = sess
	d.mu.Unlock()

	if err := sess.Start(ctx); err != nil {
		d.setErr(err)
		return err
	}
	d.setErr(nil)
	return nil
}

func (d *Daemon) setErr(err error) {
	d.mu.Lock()
	d.lastErr = err
	d.mu.Unlock()
}

func (d *Daemon) handleHotplug(ctx context.Context, ev hotplug.Event) {
	sess := d.session()
	switch ev.Action {
	case hotplug.ActionRemove:
		if sess != nil {
			sess.SourceLost("camera disconnected: " + ev.Device)
		}
	case hotplug.ActionAdd:
		if sess != nil && sess.Snapshot().Status != session.StatusError {
			sess.SourceRestored()
			return
		}
		d.logger.Info("camera reconnected; restarting session",
			logging.String(logging.FieldEventType, "session_restart"),
			logging.String("device", ev.Device),
		)
		if err := d.startSession(ctx); err != nil {
			logging.WarnWithContext(d.logger, "session restart failed", "session_restart_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(err)),
				logging.String(logging.FieldImpact, "camera stays unavailable until the next reconnect"),
			)
		}
	}
}

// Stop stops the session and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}

	d.mu.Lock()
	monitor := d.monitor
	sess := d.sess
	d.monitor = nil
	d.sess = nil
	d.mu.Unlock()

	monitor.Stop()
	if sess != nil {
		if err := sess.Close(); err != nil {
			logging.WarnWithContext(d.logger, "session teardown reported errors", "session_close_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "a pending recording may not have been saved"),
			)
		}
	}
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no daemon is running"),
		)
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("facecam daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

func (d *Daemon) session() *session.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sess
}

func (d *Daemon) activeSession() (*session.Session, error) {
	if sess := d.session(); sess != nil {
		return sess, nil
	}
	return nil, services.Wrap(services.ErrSourceUnavailable, "daemon", "session", "no active camera session", nil)
}

// Status returns a snapshot of daemon state.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	sess := d.sess
	lastErr := d.lastErr
	startedAt := d.startedAt
	monitor := d.monitor
	d.mu.Unlock()

	st := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    startedAt,
		Device:       d.cfg.Camera.Device,
		Source:       d.cfg.Camera.Source,
		Hotplug:      monitor.Running(),
		DatabasePath: d.cfg.DatabasePath(),
		LockFilePath: d.lockPath,
		SocketPath:   d.cfg.Paths.SocketPath,
		LogPath:      d.LogPath(),
	}
	if sess != nil {
		st.Session = sess.Snapshot()
	} else {
		st.Session = session.Snapshot{Status: session.StatusInitializing, Videos: d.library.List(), TotalBytes: d.library.TotalBytes()}
	}
	if lastErr != nil {
		st.LastError = lastErr.Error()
	}
	return st
}

// LogPath returns the daemon's JSON log file, or "" when file logging is off.
func (d *Daemon) LogPath() string {
	if strings.TrimSpace(d.cfg.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(d.cfg.Paths.LogDir, logging.LogFileName)
}

// StartRecording starts a recording on the current session.
func (d *Daemon) StartRecording(ctx context.Context) error {
	sess, err := d.activeSession()
	if err != nil {
		return err
	}
	return sess.StartRecording(ctx)
}

// StopRecording finalizes the current recording.
func (d *Daemon) StopRecording(ctx context.Context) (*recording.Finalized, error) {
	sess, err := d.activeSession()
	if err != nil {
		return nil, err
	}
	return sess.StopRecording(ctx)
}

// Videos lists stored videos, oldest first.
func (d *Daemon) Videos() []library.StoredVideo {
	return d.library.List()
}

// DeleteVideo removes one stored video.
func (d *Daemon) DeleteVideo(ctx context.Context, id string) (bool, error) {
	if sess := d.session(); sess != nil {
		return sess.DeleteVideo(ctx, id)
	}
	return d.library.Delete(ctx, id)
}

// ClearVideos removes all stored videos and reports how many were listed.
func (d *Daemon) ClearVideos(ctx context.Context) (int, error) {
	count := len(d.library.List())
	var err error
	if sess := d.session(); sess != nil {
		err = sess.ClearAll(ctx)
	} else {
		err = d.library.Clear(ctx)
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ExportVideo writes a stored payload to path on the daemon host. A path
// naming an existing directory receives a file named after the video.
func (d *Daemon) ExportVideo(ctx context.Context, id, path string) (library.StoredVideo, string, error) {
	video, ok := d.library.Get(id)
	if !ok {
		return library.StoredVideo{}, "", services.Wrap(services.ErrNotFound, "daemon", "export", id, nil)
	}
	data, err := d.library.Payload(ctx, id)
	if err != nil {
		return library.StoredVideo{}, "", err
	}
	target, err := ExportPath(video, path)
	if err != nil {
		return library.StoredVideo{}, "", err
	}
	if err := fileutil.WriteFileVerified(target, data, 0o644); err != nil {
		return library.StoredVideo{}, "", fmt.Errorf("export %s: %w", id, err)
	}
	logging.WithContext(services.WithVideoID(ctx, id), d.logger).Info("video exported",
		logging.String(logging.FieldEventType, "video_exported"),
		logging.String("path", target),
		logging.Int64("size_bytes", video.SizeBytes),
	)
	return video, target, nil
}

// ExportPath resolves the destination file for an export.
func ExportPath(video library.StoredVideo, path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("export path required")
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(expanded); err == nil && info.IsDir() {
		return filepath.Join(expanded, "facecam-"+video.ID+Extension(video.MediaType)), nil
	}
	return expanded, nil
}

// Extension maps a media type to a file extension.
func Extension(mediaType string) string {
	switch mediaType {
	case "video/webm":
		return ".webm"
	case "video/x-matroska":
		return ".mkv"
	case "video/x-motion-jpeg", "video/mjpeg":
		return ".mjpeg"
	default:
		return ".bin"
	}
}
