// Package daemonrun assembles and runs the facecam daemon process: logging,
// storage, the session factory, the IPC server, and signal handling.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"facecam/internal/config"
	"facecam/internal/daemon"
	"facecam/internal/deps"
	"facecam/internal/ipc"
	"facecam/internal/library"
	"facecam/internal/logging"
	"facecam/internal/preflight"
	"facecam/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the facecam daemon and blocks until ctx is cancelled or the
// process receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	sessionID := uuid.NewString()
	logger, err := logging.NewFromConfig(cfg, sessionID)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.Info("facecam daemon starting",
		logging.String(logging.FieldEventType, "daemon_starting"),
		logging.String(logging.FieldSessionID, sessionID),
		logging.String("source", cfg.Camera.Source),
		logging.String("encoder", cfg.Recording.Encoder),
	)
	if removed := logging.PruneLogs(logger, cfg.Paths.LogDir, "*.log*", cfg.Logging.RetentionDays,
		filepath.Join(cfg.Paths.LogDir, logging.LogFileName)); removed > 0 {
		logger.Debug("pruned old logs", logging.Int("removed", removed))
	}
	logPreflight(signalCtx, logger, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open video store failed", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on "+cfg.DatabasePath()),
		)
		return err
	}
	lib := library.New(st, library.Options{
		MaxTotalBytes: cfg.MaxTotalBytes(),
		MaxVideos:     cfg.Storage.MaxVideos,
		Logger:        logger,
	})

	d, err := daemon.New(cfg, st, lib, SessionFactory(cfg, lib, logger), logger)
	if err != nil {
		_ = st.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	<-signalCtx.Done()
	logger.Info("facecam daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	ffmpeg := deps.CheckFFmpeg(cfg.FFmpegBinary())
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", ffmpeg.Available),
		logging.String("ffmpeg_binary", ffmpeg.Command),
		logging.Bool("detector_enabled", cfg.Detector.Enabled),
	)
	for _, r := range preflight.Failed(preflight.RunAll(ctx, cfg), false) {
		impact := "facecam cannot open the camera or save recordings"
		if r.Optional {
			impact = "feature runs degraded"
		}
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldImpact, impact),
		)
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
