package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"facecam/internal/daemonctl"
	"facecam/internal/ipc"
	"facecam/internal/library"
)

func TestStatusCommandRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==", "Running (pid", "Detection Degraded", "== Library ==", "0 stored")
}

func TestStatusCommandOffline(t *testing.T) {
	env := setupOfflineEnv(t)
	out, err := env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running", "facecam start", env.cfg.DatabasePath())
	if strings.Contains(out, "== Session ==") {
		t.Fatalf("offline status should not render a session section:\n%s", out)
	}
}

func TestStatusCommandJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var snap daemonctl.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	if !snap.Daemon.Running || snap.Daemon.SocketPath == "" {
		t.Fatalf("unexpected snapshot %+v", snap.Daemon)
	}
}

func TestRecordAndVideoCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "record", "start")
	if err != nil {
		t.Fatalf("record start: %v", err)
	}
	requireContains(t, out, "Recording started")
	if _, err := env.run(t, "record", "start"); err == nil || !strings.Contains(err.Error(), "already recording") {
		t.Fatalf("expected already recording error, got %v", err)
	}
	env.clock.Advance(2)

	out, err = env.run(t, "record", "stop")
	if err != nil {
		t.Fatalf("record stop: %v", err)
	}
	requireContains(t, out, "Recording stopped", "Saved video")
	videos := env.lib.List()
	if len(videos) != 1 {
		t.Fatalf("expected one saved video, got %d", len(videos))
	}
	id := videos[0].ID

	out, err = env.run(t, "record", "stop")
	if err != nil {
		t.Fatalf("second record stop: %v", err)
	}
	requireContains(t, out, "Not recording")

	out, err = env.run(t, "videos", "list")
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	requireContains(t, out, id, "video/webm", "1 video(s)")

	out, err = env.run(t, "videos", "list", "--json")
	if err != nil {
		t.Fatalf("videos list --json: %v", err)
	}
	var listed []ipc.Video
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != id {
		t.Fatalf("unexpected json listing %+v", listed)
	}

	exportDir := filepath.Join(env.baseDir, "exports")
	if err := os.MkdirAll(exportDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	out, err = env.run(t, "videos", "export", id, exportDir)
	if err != nil {
		t.Fatalf("videos export: %v", err)
	}
	exported := filepath.Join(exportDir, "facecam-"+id+".webm")
	requireContains(t, out, exported)
	data, err := os.ReadFile(exported)
	if err != nil || string(data) != "chunkchunk" {
		t.Fatalf("unexpected export %q (%v)", data, err)
	}

	previewPath := filepath.Join(env.baseDir, "frame.jpg")
	out, err = env.run(t, "preview", previewPath)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	requireContains(t, out, "preview", previewPath)
	if info, err := os.Stat(previewPath); err != nil || info.Size() == 0 {
		t.Fatalf("expected preview written (%v)", err)
	}

	out, err = env.run(t, "videos", "delete", id)
	if err != nil {
		t.Fatalf("videos delete: %v", err)
	}
	requireContains(t, out, "Deleted video "+id)
	out, err = env.run(t, "videos", "delete", id)
	if err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
	requireContains(t, out, "not found")

	if _, err := env.run(t, "videos", "clear"); err == nil {
		t.Fatal("expected clear without --yes to fail")
	}
	out, err = env.run(t, "videos", "clear", "--yes")
	if err != nil {
		t.Fatalf("videos clear: %v", err)
	}
	requireContains(t, out, "Deleted 0 video(s)")
}

func TestVideoCommandsOffline(t *testing.T) {
	env := setupOfflineEnv(t)

	var id string
	err := daemonctl.WithOfflineLibrary(context.Background(), env.cfg, func(lib *library.Library) error {
		for i, payload := range []string{"first", "second"} {
			at := time.Date(2026, 7, 4, 10, i, 0, 0, time.UTC)
			v, err := lib.Save(context.Background(), []byte(payload), "video/x-motion-jpeg", at)
			if err != nil {
				return err
			}
			id = v.ID
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed library: %v", err)
	}

	out, err := env.run(t, "videos", "list")
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	requireContains(t, out, id, "2 video(s)")

	target := filepath.Join(env.baseDir, "clip.mjpeg")
	out, err = env.run(t, "videos", "export", id, target)
	if err != nil {
		t.Fatalf("videos export: %v", err)
	}
	requireContains(t, out, target)
	if data, err := os.ReadFile(target); err != nil || string(data) != "second" {
		t.Fatalf("unexpected export %q (%v)", data, err)
	}
	if _, err := env.run(t, "videos", "export", "missing", target); err == nil {
		t.Fatal("expected export of a missing video to fail")
	}

	out, err = env.run(t, "videos", "delete", id)
	if err != nil {
		t.Fatalf("videos delete: %v", err)
	}
	requireContains(t, out, "Deleted video "+id)

	out, err = env.run(t, "videos", "clear", "-y")
	if err != nil {
		t.Fatalf("videos clear: %v", err)
	}
	requireContains(t, out, "Deleted 1 video(s)")

	out, err = env.run(t, "videos", "list")
	if err != nil {
		t.Fatalf("videos list: %v", err)
	}
	requireContains(t, out, "No videos saved")
}

func TestRecordRequiresDaemon(t *testing.T) {
	env := setupOfflineEnv(t)
	for _, args := range [][]string{{"record", "start"}, {"preview", filepath.Join(env.baseDir, "p.jpg")}} {
		_, err := env.run(t, args...)
		if err == nil || !strings.Contains(err.Error(), "facecam start") {
			t.Fatalf("%v: expected daemon hint, got %v", args, err)
		}
	}
}

func TestLogsCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	for _, line := range []string{"one", "two", "three"} {
		appendLine(t, env.logPath, line)
	}
	out, err := env.run(t, "logs", "-n", "2")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
	if _, err := env.run(t, "logs", "-n", "-1"); err == nil {
		t.Fatal("expected negative line count to fail")
	}
}

func TestLogsCommandOffline(t *testing.T) {
	env := setupOfflineEnv(t)
	appendLine(t, env.logPath, "offline line")
	out, err := env.run(t, "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "offline line")
}

func TestPreflightCommand(t *testing.T) {
	env := setupOfflineEnv(t)
	out, err := env.run(t, "preflight")
	if err != nil {
		t.Fatalf("preflight: %v\n%s", err, out)
	}
	requireContains(t, out, "All required checks passed")
}
