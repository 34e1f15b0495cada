package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and socket configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SocketPath string `toml:"socket"`
}

// Camera describes the frame source.
type Camera struct {
	Source string `toml:"source"`
	Device string `toml:"device"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
	FPS    int    `toml:"fps"`
}

// Detector contains the face detector tuning knobs.
type Detector struct {
	Enabled          bool    `toml:"enabled"`
	CascadePath      string  `toml:"cascade_path"`
	MinSize          int     `toml:"min_size"`
	MaxSize          int     `toml:"max_size"`
	ShiftFactor      float64 `toml:"shift_factor"`
	ScaleFactor      float64 `toml:"scale_factor"`
	IoUThreshold     float64 `toml:"iou_threshold"`
	MinQuality       float64 `toml:"min_quality"`
	RequestTimeoutMS int     `toml:"request_timeout_ms"`
}

// Recording configures the compositing loop and encoder.
type Recording struct {
	Encoder     string `toml:"encoder"`
	FPS         int    `toml:"fps"`
	MediaType   string `toml:"media_type"`
	TimesliceMS int    `toml:"timeslice_ms"`
	JPEGQuality int    `toml:"jpeg_quality"`
}

// Storage bounds the persisted video library. Zero disables a limit.
type Storage struct {
	MaxTotalMB int `toml:"max_total_mb"`
	MaxVideos  int `toml:"max_videos"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for facecam.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Camera    Camera    `toml:"camera"`
	Detector  Detector  `toml:"detector"`
	Recording Recording `toml:"recording"`
	Storage   Storage   `toml:"storage"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/facecam/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("facecam.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath is the SQLite file backing the video library.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "facecam.db")
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "facecam.lock")
}

// PIDPath records the running daemon's process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "facecam.pid")
}

// RequestTimeout is the age after which an outstanding detection request is abandoned.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Detector.RequestTimeoutMS) * time.Millisecond
}

// Timeslice is the encoder chunk emission interval.
func (c *Config) Timeslice() time.Duration {
	return time.Duration(c.Recording.TimesliceMS) * time.Millisecond
}

// MaxTotalBytes converts storage.max_total_mb to bytes; zero means unbounded.
func (c *Config) MaxTotalBytes() int64 {
	return int64(c.Storage.MaxTotalMB) * 1024 * 1024
}

// FFmpegBinary returns the ffmpeg executable name used for capture and WebM encoding.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// NeedsFFmpeg reports whether the configured camera or encoder shells out to ffmpeg.
func (c *Config) NeedsFFmpeg() bool {
	return c.Camera.Source == SourceV4L2 || c.Recording.Encoder == EncoderFFmpeg
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
