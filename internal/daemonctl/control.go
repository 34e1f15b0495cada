// Package daemonctl launches, stops, and inspects the background facecam
// daemon from the CLI, falling back to on-disk state when it is not running.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"facecam/internal/config"
	"facecam/internal/deps"
	"facecam/internal/ipc"
	"facecam/internal/library"
	"facecam/internal/preflight"
	"facecam/internal/store"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	SocketPath string
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// ErrDaemonNotRunning indicates daemon IPC is unavailable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Launch starts a detached facecam daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"run"}
	if socket := strings.TrimSpace(opts.SocketPath); socket != "" {
		args = append(args, "--socket", socket)
	}
	if cfg := strings.TrimSpace(opts.ConfigPath); cfg != "" {
		args = append(args, "--config", cfg)
	}

	proc := exec.Command(executablePath, args...)
	proc.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForClient waits for IPC socket availability and returns a connected client.
func WaitForClient(socketPath string, timeout time.Duration) (*ipc.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err == nil {
			return client, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless it already answers on socketPath.
func EnsureStarted(socketPath, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartState, error) {
	if client, err := ipc.Dial(socketPath); err == nil {
		_ = client.Close()
		return StartStateAlreadyRunning, nil
	}
	if err := Launch(executablePath, opts); err != nil {
		return "", err
	}
	client, err := WaitForClient(socketPath, waitTimeout)
	if err != nil {
		return "", err
	}
	_ = client.Close()
	return StartStateStarted, nil
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	PID        int
	ForcedKill bool
}

// StopAndTerminate sends SIGTERM to the daemon and force-kills it if it is
// still answering after gracePeriod.
func StopAndTerminate(socketPath string, cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if IsUnavailable(err) {
			return StopResult{}, ErrDaemonNotRunning
		}
		return StopResult{}, err
	}
	status, statusErr := client.Status()
	_ = client.Close()
	if statusErr != nil {
		return StopResult{}, fmt.Errorf("query daemon status: %w", statusErr)
	}
	pid := status.PID
	if pid <= 0 || pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("daemon reported unusable pid %d", pid)
	}
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		return StopResult{}, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}

	result := StopResult{PID: pid}
	if WaitForShutdown(socketPath, gracePeriod) == nil {
		return result, nil
	}

	pidPath := ""
	if cfg != nil {
		pidPath = cfg.PIDPath()
	}
	killed, err := ForceKillProcess(pidPath, pid)
	if err != nil {
		return result, fmt.Errorf("failed to stop daemon process: %w", err)
	}
	_ = os.Remove(socketPath)
	result.ForcedKill = true
	result.PID = killed
	return result, nil
}

// WaitForShutdown waits for daemon IPC to disappear.
func WaitForShutdown(socketPath string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client, err := ipc.Dial(socketPath)
		if err != nil && IsUnavailable(err) {
			return nil
		}
		if client != nil {
			_ = client.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// ForceKillProcess sends SIGKILL to the daemon, preferring the pid recorded
// in pidPath over fallbackPID, and removes the pid file.
func ForceKillProcess(pidPath string, fallbackPID int) (int, error) {
	pid := fallbackPID
	if pidPath != "" {
		data, err := os.ReadFile(pidPath)
		switch {
		case err == nil:
			if parsed, parseErr := strconv.Atoi(strings.TrimSpace(string(data))); parseErr == nil && parsed > 0 {
				pid = parsed
			}
		case !errors.Is(err, os.ErrNotExist):
			return 0, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
		}
	}
	if pid <= 0 {
		return 0, fmt.Errorf("unable to determine daemon pid (pid file: %s)", pidPath)
	}
	if pid == os.Getpid() {
		return 0, fmt.Errorf("refusing to kill current process (pid %d)", pid)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return 0, fmt.Errorf("locate daemon process %d: %w", pid, err)
	}
	if err := proc.Kill(); err != nil {
		return 0, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	if pidPath != "" {
		if err := os.Remove(pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("remove pid file %q: %w", pidPath, err)
		}
	}
	return pid, nil
}

// IsUnavailable reports whether err means nothing is listening on the socket.
func IsUnavailable(err error) bool {
	return os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// Snapshot is the combined view rendered by "facecam status".
type Snapshot struct {
	Daemon       ipc.StatusResponse
	Videos       []ipc.Video
	Dependencies []deps.Status
	Checks       []preflight.Result
}

// BuildStatusSnapshot queries the daemon and, when it is not running, reads
// the video library straight from the database.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (*Snapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snap := &Snapshot{}

	if client, err := ipc.Dial(socketPath); err == nil {
		if resp, statusErr := client.Status(); statusErr == nil && resp != nil {
			snap.Daemon = *resp
		}
		if list, listErr := client.ListVideos(); listErr == nil && list != nil {
			snap.Videos = list.Videos
		}
		_ = client.Close()
	}

	if !snap.Daemon.Running {
		videos, err := OfflineVideos(ctx, cfg)
		if err == nil {
			snap.Videos = videos
		}
		snap.Daemon.DatabasePath = cfg.DatabasePath()
		snap.Daemon.SocketPath = socketPath
		snap.Daemon.Source = cfg.Camera.Source
		snap.Daemon.Device = cfg.Camera.Device
		snap.Daemon.VideoCount = len(snap.Videos)
		snap.Daemon.TotalBytes = 0
		for _, v := range snap.Videos {
			snap.Daemon.TotalBytes += v.SizeBytes
		}
	}

	snap.Dependencies = preflight.CheckSystemDeps(ctx, cfg)
	snap.Checks = preflight.RunAll(ctx, cfg)
	return snap, nil
}

// OfflineVideos loads the library directly from the database. Callers must
// only use it while the daemon is not running.
func OfflineVideos(ctx context.Context, cfg *config.Config) ([]ipc.Video, error) {
	var out []ipc.Video
	err := WithOfflineLibrary(ctx, cfg, func(lib *library.Library) error {
		out = lib.List()
		return nil
	})
	return out, err
}

// WithOfflineLibrary opens the store, loads the library, and runs fn.
func WithOfflineLibrary(ctx context.Context, cfg *config.Config, fn func(*library.Library) error) error {
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	lib := library.New(st, library.Options{
		MaxTotalBytes: cfg.MaxTotalBytes(),
		MaxVideos:     cfg.Storage.MaxVideos,
	})
	if err := lib.Load(ctx); err != nil {
		return err
	}
	return fn(lib)
}
