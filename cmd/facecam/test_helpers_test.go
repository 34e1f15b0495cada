package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"facecam/internal/config"
	"facecam/internal/daemon"
	"facecam/internal/frames"
	"facecam/internal/ipc"
	"facecam/internal/library"
	"facecam/internal/logging"
	"facecam/internal/session"
	"facecam/internal/testsupport"
	"facecam/internal/tick"
)

type cliTestEnv struct {
	cfg        *config.Config
	lib        *library.Library
	daemon     *daemon.Daemon
	clock      *tick.Manual
	socketPath string
	configPath string
	baseDir    string
	logPath    string
}

// setupOfflineEnv writes a config file without starting a daemon.
func setupOfflineEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatalf("mkdir log dir: %v", err)
	}
	return &cliTestEnv{
		cfg:        cfg,
		socketPath: cfg.Paths.SocketPath,
		configPath: configPath,
		baseDir:    base,
		logPath:    filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
	}
}

// setupCLITestEnv runs an in-process daemon and IPC server driven by a
// manual clock.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	env := setupOfflineEnv(t)
	cfg := env.cfg

	st := testsupport.MustOpenStore(t, cfg)
	env.lib = library.New(st, library.Options{})
	env.clock = tick.NewManual(time.Date(2026, 7, 4, 10, 0, 0, 0, time.UTC), 100*time.Millisecond)
	logger := logging.NewNop()
	factory := func(context.Context) (*session.Session, error) {
		return session.New(session.Deps{
			Source:    frames.NewPattern(cfg.Camera.Width, cfg.Camera.Height),
			Encoders:  testsupport.NewFakeEncoder([]byte("chunk"), nil).Factory(),
			Library:   env.lib,
			Scheduler: env.clock,
			Logger:    logger,
		}, session.Options{FPS: 10, MediaType: "video/webm", Now: env.clock.Now}), nil
	}
	d, err := daemon.New(cfg, st, env.lib, factory, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	env.daemon = d

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("daemon start: %v", err)
	}
	srv, err := ipc.NewServer(ctx, env.socketPath, d, logger)
	if err != nil {
		cancel()
		_ = d.Close()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, _, err := runCLI(t, args, e.socketPath, e.configPath)
	return stdout, err
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--socket", socket}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
}

func requireContains(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Fatalf("output missing %q:\n%s", w, out)
		}
	}
}
