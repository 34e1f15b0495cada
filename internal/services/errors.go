package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSourceUnavailable      = errors.New("frame source unavailable")
	ErrDetectorUnavailable    = errors.New("detector unavailable")
	ErrEncoderUnsupported     = errors.New("encoder unsupported")
	ErrPersistenceWriteFailed = errors.New("persistence write failed")
	ErrPersistenceReadCorrupt = errors.New("persistence read corrupt")
	ErrAlreadyRecording       = errors.New("already recording")
	ErrConfiguration          = errors.New("configuration error")
	ErrNotFound               = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPersistenceWriteFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsFatal reports whether err should move the session into the error status
// rather than being absorbed as a notice or fallback.
func IsFatal(err error) bool {
	return errors.Is(err, ErrSourceUnavailable) || errors.Is(err, ErrConfiguration)
}

// Hint returns a short operator-facing remediation for known failure markers.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceUnavailable):
		return "check that the camera is connected and not in use by another process"
	case errors.Is(err, ErrDetectorUnavailable):
		return "check detector.cascade_path; overlay falls back to a synthetic signal"
	case errors.Is(err, ErrEncoderUnsupported):
		return "choose a supported recording.media_type or install ffmpeg"
	case errors.Is(err, ErrPersistenceWriteFailed):
		return "check free space and permissions under paths.data_dir"
	case errors.Is(err, ErrPersistenceReadCorrupt):
		return "stored metadata was repaired; affected recordings were dropped"
	case errors.Is(err, ErrAlreadyRecording):
		return "stop the current recording first"
	case errors.Is(err, ErrConfiguration):
		return "run facecam config validate"
	default:
		return ""
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
