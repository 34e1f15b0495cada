package deps

import (
	"os"
	"strings"
)

// FFmpegEnv overrides the ffmpeg binary used for capture and encoding.
const FFmpegEnv = "FACECAM_FFMPEG"

// ResolveFFmpeg returns the ffmpeg command to execute. FACECAM_FFMPEG wins
// over the configured name so packaged builds can point at a bundled binary.
func ResolveFFmpeg(configured string) string {
	if value := strings.TrimSpace(os.Getenv(FFmpegEnv)); value != "" {
		return value
	}
	if configured = strings.TrimSpace(configured); configured != "" {
		return configured
	}
	return "ffmpeg"
}

// CheckFFmpeg reports whether the resolved ffmpeg binary can be executed.
func CheckFFmpeg(configured string) Status {
	results := CheckBinaries([]Requirement{{
		Name:        "FFmpeg",
		Command:     ResolveFFmpeg(configured),
		Description: "Camera capture (v4l2) and WebM recording",
	}})
	return results[0]
}
