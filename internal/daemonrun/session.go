package daemonrun

import (
	"context"
	"log/slog"

	"facecam/internal/config"
	"facecam/internal/daemon"
	"facecam/internal/deps"
	"facecam/internal/detection"
	"facecam/internal/encoder"
	"facecam/internal/frames"
	"facecam/internal/library"
	"facecam/internal/services/ffmpeg"
	"facecam/internal/services/pigo"
	"facecam/internal/session"
	"facecam/internal/tick"
)

// SessionFactory builds sessions from cfg. Each call opens a fresh camera so
// the daemon can rebuild the session after a hotplug reconnect.
func SessionFactory(cfg *config.Config, lib *library.Library, logger *slog.Logger) daemon.SessionFactory {
	return func(ctx context.Context) (*session.Session, error) {
		source, err := NewSource(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return session.New(session.Deps{
			Source:    source,
			Detector:  NewDetector(cfg, logger),
			Encoders:  NewEncoderFactory(cfg, logger),
			Library:   lib,
			Scheduler: tick.NewTicker(cfg.Camera.FPS),
			Logger:    logger,
		}, session.Options{
			FPS:            cfg.Recording.FPS,
			MediaType:      cfg.Recording.MediaType,
			RequestTimeout: cfg.RequestTimeout(),
		}), nil
	}
}

// NewSource opens the configured frame source.
func NewSource(ctx context.Context, cfg *config.Config, logger *slog.Logger) (frames.Source, error) {
	if cfg.Camera.Source == config.SourcePattern {
		return frames.NewPattern(cfg.Camera.Width, cfg.Camera.Height), nil
	}
	return ffmpeg.StartCapture(ctx, ffmpeg.CaptureOptions{
		Binary: deps.ResolveFFmpeg(cfg.FFmpegBinary()),
		Device: cfg.Camera.Device,
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
		Logger: logger,
	})
}

// NewDetector returns the pigo-backed detector, or nil when detection is
// disabled so the session starts in degraded mode.
func NewDetector(cfg *config.Config, logger *slog.Logger) detection.Detector {
	if !cfg.Detector.Enabled {
		return nil
	}
	return detection.NewAsync(pigo.New(pigo.Options{
		CascadePath:  cfg.Detector.CascadePath,
		MinSize:      cfg.Detector.MinSize,
		MaxSize:      cfg.Detector.MaxSize,
		ShiftFactor:  cfg.Detector.ShiftFactor,
		ScaleFactor:  cfg.Detector.ScaleFactor,
		IoUThreshold: cfg.Detector.IoUThreshold,
		MinQuality:   cfg.Detector.MinQuality,
		Logger:       logger,
	}))
}

// NewEncoderFactory returns a factory for the configured recording encoder.
func NewEncoderFactory(cfg *config.Config, logger *slog.Logger) encoder.Factory {
	if cfg.Recording.Encoder == config.EncoderFFmpeg {
		binary := deps.ResolveFFmpeg(cfg.FFmpegBinary())
		return func() encoder.Encoder {
			return ffmpeg.NewEncoder(ffmpeg.EncoderOptions{Binary: binary, Logger: logger})
		}
	}
	quality, timeslice := cfg.Recording.JPEGQuality, cfg.Timeslice()
	return func() encoder.Encoder {
		return encoder.NewMJPEG(quality, timeslice)
	}
}
