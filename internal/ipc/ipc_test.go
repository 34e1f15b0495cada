package ipc_test

import (
	"context"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"facecam/internal/daemon"
	"facecam/internal/frames"
	"facecam/internal/ipc"
	"facecam/internal/library"
	"facecam/internal/logging"
	"facecam/internal/session"
	"facecam/internal/testsupport"
	"facecam/internal/tick"
)

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lib := library.New(st, library.Options{})
	logger := logging.NewNop()
	clock := tick.NewManual(time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC), 100*time.Millisecond)
	factory := func(context.Context) (*session.Session, error) {
		return session.New(session.Deps{
			Source:    frames.NewPattern(cfg.Camera.Width, cfg.Camera.Height),
			Encoders:  testsupport.NewFakeEncoder([]byte("chunk"), nil).Factory(),
			Library:   lib,
			Scheduler: clock,
			Logger:    logger,
		}, session.Options{FPS: 10, MediaType: "video/webm", Now: clock.Now}), nil
	}
	d, err := daemon.New(cfg, st, lib, factory, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon start: %v", err)
	}

	socket := filepath.Join(testsupport.BaseDir(cfg), "ipc.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || status.Status != string(session.StatusDetectionDegraded) {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.DatabasePath != cfg.DatabasePath() || status.SocketPath != cfg.Paths.SocketPath {
		t.Fatalf("unexpected paths %+v", status)
	}

	if _, err := client.StartRecording(); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if _, err := client.StartRecording(); err == nil || !strings.Contains(err.Error(), "already recording") {
		t.Fatalf("expected already recording error, got %v", err)
	}
	clock.Advance(2)

	stop, err := client.StopRecording(5 * time.Second)
	if err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	if !stop.Stopped || !stop.Saved || stop.Video == nil || stop.SizeBytes != int64(2*len("chunk")) {
		t.Fatalf("unexpected stop response %+v", stop)
	}
	again, err := client.StopRecording(time.Second)
	if err != nil || again.Stopped {
		t.Fatalf("second stop = %+v, %v", again, err)
	}

	list, err := client.ListVideos()
	if err != nil {
		t.Fatalf("ListVideos: %v", err)
	}
	if len(list.Videos) != 1 || list.Videos[0].ID != stop.Video.ID || list.TotalBytes != stop.SizeBytes {
		t.Fatalf("unexpected list %+v", list)
	}

	target := filepath.Join(t.TempDir(), "clip.webm")
	exported, err := client.ExportVideo(stop.Video.ID, target)
	if err != nil {
		t.Fatalf("ExportVideo: %v", err)
	}
	if exported.Path != target {
		t.Fatalf("export path = %q, want %q", exported.Path, target)
	}
	if data, err := os.ReadFile(target); err != nil || string(data) != "chunkchunk" {
		t.Fatalf("exported %q, %v", data, err)
	}

	previewDir := t.TempDir()
	preview, err := client.Preview(previewDir)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if preview.Path != filepath.Join(previewDir, "facecam-preview.jpg") {
		t.Fatalf("preview path = %q", preview.Path)
	}
	f, err := os.Open(preview.Path)
	if err != nil {
		t.Fatalf("open preview: %v", err)
	}
	imgCfg, err := jpeg.DecodeConfig(f)
	_ = f.Close()
	if err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if imgCfg.Width != cfg.Camera.Width || imgCfg.Height != cfg.Camera.Height || preview.Width != cfg.Camera.Width {
		t.Fatalf("preview is %dx%d, response %+v", imgCfg.Width, imgCfg.Height, preview)
	}

	del, err := client.DeleteVideo(stop.Video.ID)
	if err != nil || !del.Removed {
		t.Fatalf("DeleteVideo = %+v, %v", del, err)
	}
	del, err = client.DeleteVideo(stop.Video.ID)
	if err != nil || del.Removed {
		t.Fatalf("repeat DeleteVideo = %+v, %v", del, err)
	}
	if _, err := client.DeleteVideo("  "); err == nil {
		t.Fatal("expected error for blank id")
	}
	clear, err := client.ClearVideos()
	if err != nil || clear.Removed != 0 {
		t.Fatalf("ClearVideos = %+v, %v", clear, err)
	}
}

func TestIPCLogTail(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	lib := library.New(st, library.Options{})
	d, err := daemon.New(cfg, st, lib, func(context.Context) (*session.Session, error) {
		return session.New(session.Deps{Source: frames.NewPattern(8, 8), Library: lib}, session.Options{}), nil
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	socket := filepath.Join(testsupport.BaseDir(cfg), "ipc.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	logPath := d.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	logResp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail initial failed: %v", err)
	}
	if len(logResp.Lines) != 2 || logResp.Lines[0] != "second" || logResp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", logResp.Lines)
	}

	followDone := make(chan *ipc.LogTailResponse, 1)
	go func(offset int64) {
		resp, err := client.LogTail(ipc.LogTailRequest{Offset: offset, Follow: true, WaitMillis: 2000})
		if err != nil {
			t.Errorf("LogTail follow error: %v", err)
		}
		followDone <- resp
	}(logResp.Offset)

	time.Sleep(100 * time.Millisecond)
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("append log: %v", err)
	}
	_, _ = f.WriteString("fourth\n")
	_ = f.Close()

	select {
	case resp := <-followDone:
		if resp == nil || len(resp.Lines) != 1 || resp.Lines[0] != "fourth" {
			t.Fatalf("unexpected follow response %#v", resp)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("log tail follow timed out")
	}
}
