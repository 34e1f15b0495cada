package deps

import (
	"os"
	"path/filepath"
	"testing"

	"facecam/internal/config"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	if err := os.WriteFile(present, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	results := CheckBinaries([]Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank"},
	})
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}
}

func TestResolveFFmpegPrefersEnv(t *testing.T) {
	t.Setenv(FFmpegEnv, "/opt/ffmpeg/bin/ffmpeg")
	if got := ResolveFFmpeg("ffmpeg"); got != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("ResolveFFmpeg = %q", got)
	}
	t.Setenv(FFmpegEnv, "")
	if got := ResolveFFmpeg(""); got != "ffmpeg" {
		t.Fatalf("ResolveFFmpeg fallback = %q", got)
	}
}

func TestRequirementsMarkFFmpegOptionalForPatternMJPEG(t *testing.T) {
	t.Setenv(FFmpegEnv, "")
	cfg := config.Default()
	cfg.Camera.Source = config.SourcePattern
	cfg.Recording.Encoder = config.EncoderMJPEG
	reqs := Requirements(&cfg)
	if len(reqs) != 1 || !reqs[0].Optional {
		t.Fatalf("expected optional ffmpeg, got %#v", reqs)
	}

	cfg.Camera.Source = config.SourceV4L2
	if Requirements(&cfg)[0].Optional {
		t.Fatal("expected ffmpeg required for v4l2 capture")
	}
}

func TestCheckFFmpegUsesEnvBinary(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ffmpeg-custom")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv(FFmpegEnv, stub)
	status := CheckFFmpeg("ffmpeg")
	if !status.Available || status.Command != stub {
		t.Fatalf("unexpected status %#v", status)
	}
}
