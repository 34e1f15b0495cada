package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateRecording(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	// sun_path is limited to 108 bytes on Linux.
	if len(c.Paths.SocketPath) >= 108 {
		return fmt.Errorf("paths.socket is too long (%d bytes); choose a shorter path", len(c.Paths.SocketPath))
	}
	return nil
}

func (c *Config) validateCamera() error {
	switch c.Camera.Source {
	case SourceV4L2:
		if c.Camera.Device == "" {
			return fmt.Errorf("camera.device must be set when camera.source is %q", SourceV4L2)
		}
	case SourcePattern:
	default:
		return fmt.Errorf("camera.source: unsupported value %q (want %q or %q)", c.Camera.Source, SourceV4L2, SourcePattern)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return errors.New("camera.width and camera.height must be positive")
	}
	if c.Camera.Width%2 != 0 || c.Camera.Height%2 != 0 {
		return errors.New("camera.width and camera.height must be even")
	}
	if c.Camera.FPS <= 0 || c.Camera.FPS > 120 {
		return errors.New("camera.fps must be between 1 and 120")
	}
	return nil
}

func (c *Config) validateDetector() error {
	if !c.Detector.Enabled {
		return nil
	}
	if c.Detector.MinSize <= 0 {
		return errors.New("detector.min_size must be positive")
	}
	if c.Detector.MaxSize < c.Detector.MinSize {
		return errors.New("detector.max_size must be >= detector.min_size")
	}
	if c.Detector.ShiftFactor <= 0 || c.Detector.ShiftFactor >= 1 {
		return errors.New("detector.shift_factor must be between 0 and 1 (exclusive)")
	}
	if c.Detector.ScaleFactor <= 1 {
		return errors.New("detector.scale_factor must be greater than 1")
	}
	if c.Detector.IoUThreshold < 0 || c.Detector.IoUThreshold > 1 {
		return errors.New("detector.iou_threshold must be between 0 and 1")
	}
	if c.Detector.MinQuality < 0 {
		return errors.New("detector.min_quality must be >= 0")
	}
	if c.Detector.RequestTimeoutMS < 0 {
		return errors.New("detector.request_timeout_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateRecording() error {
	switch c.Recording.Encoder {
	case EncoderMJPEG, EncoderFFmpeg:
	default:
		return fmt.Errorf("recording.encoder: unsupported value %q (want %q or %q)", c.Recording.Encoder, EncoderMJPEG, EncoderFFmpeg)
	}
	if c.Recording.FPS <= 0 || c.Recording.FPS > c.Camera.FPS {
		return fmt.Errorf("recording.fps must be between 1 and camera.fps (%d)", c.Camera.FPS)
	}
	if c.Recording.TimesliceMS <= 0 {
		return errors.New("recording.timeslice_ms must be positive")
	}
	if c.Recording.JPEGQuality < 1 || c.Recording.JPEGQuality > 100 {
		return errors.New("recording.jpeg_quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.MaxTotalMB < 0 {
		return errors.New("storage.max_total_mb must be >= 0")
	}
	if c.Storage.MaxVideos < 0 {
		return errors.New("storage.max_videos must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains([]string{"console", "json"}, c.Logging.Format) {
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Logging.Level) {
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}
