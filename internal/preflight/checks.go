package preflight

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"facecam/internal/config"
	"facecam/internal/deps"
	"facecam/internal/encoder"
	"facecam/internal/services/ffmpeg"
	"facecam/internal/services/pigo"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckCameraDevice verifies that device is a character device the current
// user can open for capture.
func CheckCameraDevice(device string) Result {
	const name = "Camera"
	device = strings.TrimSpace(device)
	if device == "" {
		return Result{Name: name, Detail: "camera.device not configured"}
	}
	info, err := os.Stat(device)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (not connected)", device)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", device, err)}
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not a character device)", device)}
	}
	if err := unix.Access(device, unix.R_OK|unix.W_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v; is the user in the video group?)", device, err)}
	}
	return Result{Name: name, Passed: true, Detail: device}
}

// CheckCascade loads the pigo cascade at path. A failure is optional: the
// overlay falls back to the synthetic signal.
func CheckCascade(ctx context.Context, path string) Result {
	const name = "Face cascade"
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	engine := pigo.New(pigo.Options{CascadePath: path})
	defer engine.Close()
	if err := engine.Initialize(checkCtx); err != nil {
		return Result{Name: name, Optional: true, Detail: err.Error()}
	}
	return Result{Name: name, Optional: true, Passed: true, Detail: path}
}

// CheckRecordingFormat verifies that the configured encoder can produce the
// configured media type.
func CheckRecordingFormat(cfg *config.Config) Result {
	const name = "Recording format"
	supported := []string{encoder.MediaTypeMJPEG, "video/mjpeg"}
	if cfg.Recording.Encoder == config.EncoderFFmpeg {
		supported = ffmpeg.SupportedMediaTypes()
	}
	if !slices.Contains(supported, cfg.Recording.MediaType) {
		return Result{Name: name, Detail: fmt.Sprintf("%s encoder cannot produce %q (supported: %s)",
			cfg.Recording.Encoder, cfg.Recording.MediaType, strings.Join(supported, ", "))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s via %s", cfg.Recording.MediaType, cfg.Recording.Encoder)}
}

// CheckSystemDeps evaluates the external binaries the config requires. Both
// the daemon and the CLI status command use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}
