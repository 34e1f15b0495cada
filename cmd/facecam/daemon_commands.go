package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"facecam/internal/daemonctl"
	"facecam/internal/deps"
	"facecam/internal/preflight"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the facecam daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			state, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), 10*time.Second)
			if err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			if state == daemonctl.StartStateAlreadyRunning {
				fmt.Fprintln(stdout, "Daemon already running")
				return nil
			}
			fmt.Fprintln(stdout, "Daemon started")
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the facecam daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return stopDaemon(cmd.OutOrStdout(), ctx)
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the facecam daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			if err := stopDaemon(stdout, ctx); err != nil {
				return err
			}
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			if _, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx), 10*time.Second); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "Daemon restarted")
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show camera, detection, recording, and library status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}
			renderStatus(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func stopDaemon(stdout io.Writer, ctx *commandContext) error {
	result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), 5*time.Second)
	if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
		fmt.Fprintln(stdout, "Daemon is not running")
		return nil
	}
	if err != nil {
		return err
	}
	if result.ForcedKill {
		fmt.Fprintf(stdout, "Daemon did not exit; killed process %d\n", result.PID)
	}
	fmt.Fprintln(stdout, "Daemon stopped")
	return nil
}

func renderStatus(w io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	st := snap.Daemon

	printLines(w, renderSectionHeader("Daemon", colorize))
	if st.Running {
		fmt.Fprintln(w, renderStatusLine("facecam", statusOK, fmt.Sprintf("Running (pid %d)", st.PID), colorize))
	} else {
		fmt.Fprintln(w, renderStatusLine("facecam", statusWarn, "Not running (run `facecam start`)", colorize))
	}
	if st.LastError != "" {
		fmt.Fprintln(w, renderStatusLine("Last error", statusError, st.LastError, colorize))
	}
	fmt.Fprintln(w)

	if st.Running {
		printLines(w, renderSectionHeader("Session", colorize))
		detail := st.Message
		if detail == "" {
			detail = st.Source
		}
		fmt.Fprintln(w, renderStatusLine(statusLabel(st.Status), sessionKind(st.Status), detail, colorize))
		fmt.Fprintln(w, renderStatusLine("Overlay", statusInfo,
			fmt.Sprintf("%s, %d face(s), detector %s", st.Overlay, st.Detections, st.DetectionMode), colorize))
		recording := statusInfo
		if st.Recording {
			recording = statusOK
		}
		fmt.Fprintln(w, renderStatusLine("Recording", recording, st.RecordingState, colorize))
		if st.Notice != "" {
			fmt.Fprintln(w, renderStatusLine("Notice", statusWarn, st.Notice, colorize))
		}
		hotplug := statusInfo
		hotplugDetail := "Inactive"
		if st.Hotplug {
			hotplug, hotplugDetail = statusOK, "Watching "+st.Device
		}
		fmt.Fprintln(w, renderStatusLine("Hotplug", hotplug, hotplugDetail, colorize))
		fmt.Fprintln(w)
	}

	printLines(w, renderSectionHeader("Checks", colorize))
	printChecks(w, snap.Checks, colorize)
	printLines(w, dependencyLines(snap.Dependencies, colorize))
	fmt.Fprintln(w)

	printLines(w, renderSectionHeader("Library", colorize))
	fmt.Fprintln(w, renderStatusLine("Videos", statusInfo,
		fmt.Sprintf("%s stored, %s total", formatCount(st.VideoCount), formatBytes(st.TotalBytes)), colorize))
	fmt.Fprintln(w, renderStatusLine("Database", statusInfo, st.DatabasePath, colorize))
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, dep := range statuses {
		switch {
		case dep.Available:
			lines = append(lines, renderStatusLine(dep.Name, statusOK, fmt.Sprintf("Ready (command: %s)", dep.Command), colorize))
		case dep.Optional:
			lines = append(lines, renderStatusLine(dep.Name, statusWarn, dep.Detail, colorize))
		default:
			detail := dep.Detail
			if detail == "" {
				detail = "not available"
			}
			lines = append(lines, renderStatusLine(dep.Name, statusError,
				fmt.Sprintf("%s (install it or set %s)", detail, deps.FFmpegEnv), colorize))
		}
	}
	return lines
}

func printChecks(w io.Writer, results []preflight.Result, colorize bool) {
	for _, r := range results {
		fmt.Fprintln(w, renderStatusLine(r.Name, checkKind(r.Passed, r.Optional), r.Detail, colorize))
	}
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		SocketPath: ctx.socketOverride(),
		ConfigPath: ctx.configPath(),
	}
}
