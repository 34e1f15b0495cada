package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCamera()
	if err := c.normalizeDetector(); err != nil {
		return err
	}
	c.normalizeRecording()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.SocketPath) == "" {
		c.Paths.SocketPath = filepath.Join(c.Paths.DataDir, defaultSocketName)
	}
	if c.Paths.SocketPath, err = expandPath(c.Paths.SocketPath); err != nil {
		return fmt.Errorf("paths.socket: %w", err)
	}
	return nil
}

func (c *Config) normalizeCamera() {
	if value, ok := os.LookupEnv(CameraDeviceEnv); ok && strings.TrimSpace(value) != "" {
		c.Camera.Device = strings.TrimSpace(value)
	}
	c.Camera.Source = strings.ToLower(strings.TrimSpace(c.Camera.Source))
	if c.Camera.Source == "" {
		c.Camera.Source = defaultCameraSource
	}
	c.Camera.Device = strings.TrimSpace(c.Camera.Device)
}

func (c *Config) normalizeDetector() error {
	c.Detector.CascadePath = strings.TrimSpace(c.Detector.CascadePath)
	if c.Detector.CascadePath == "" {
		return nil
	}
	var err error
	if c.Detector.CascadePath, err = expandPath(c.Detector.CascadePath); err != nil {
		return fmt.Errorf("detector.cascade_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeRecording() {
	c.Recording.Encoder = strings.ToLower(strings.TrimSpace(c.Recording.Encoder))
	if c.Recording.Encoder == "" {
		c.Recording.Encoder = defaultRecordingEncoder
	}
	c.Recording.MediaType = strings.ToLower(strings.TrimSpace(c.Recording.MediaType))
	if c.Recording.MediaType == "" {
		switch c.Recording.Encoder {
		case EncoderFFmpeg:
			c.Recording.MediaType = "video/webm"
		default:
			c.Recording.MediaType = defaultRecordingMediaType
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
