package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"facecam/internal/config"
	"facecam/internal/daemon"
	"facecam/internal/daemonctl"
	"facecam/internal/fileutil"
	"facecam/internal/ipc"
	"facecam/internal/library"
	"facecam/internal/services"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:     "videos",
		Aliases: []string{"video"},
		Short:   "Inspect and manage recorded videos",
	}
	videosCmd.AddCommand(newVideosListCommand(ctx))
	videosCmd.AddCommand(newVideosDeleteCommand(ctx))
	videosCmd.AddCommand(newVideosClearCommand(ctx))
	videosCmd.AddCommand(newVideosExportCommand(ctx))
	return videosCmd
}

// videoAccess runs online against the daemon when it is up, or offline against
// the database otherwise. Exactly one of the callbacks runs.
func (c *commandContext) videoAccess(cmd *cobra.Command, online func(*ipc.Client) error, offline func(*library.Library) error) error {
	client, err := c.daemonClient()
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
		return online(client)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	return daemonctl.WithOfflineLibrary(cmd.Context(), cfg, offline)
}

func newVideosListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved videos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var videos []ipc.Video
			err := ctx.videoAccess(cmd,
				func(client *ipc.Client) error {
					resp, err := client.ListVideos()
					if err != nil {
						return err
					}
					videos = resp.Videos
					return nil
				},
				func(lib *library.Library) error {
					videos = lib.List()
					return nil
				},
			)
			if err != nil {
				return err
			}
			if asJSON {
				if videos == nil {
					videos = []ipc.Video{}
				}
				return writeJSON(cmd, videos)
			}
			out := cmd.OutOrStdout()
			if len(videos) == 0 {
				fmt.Fprintln(out, "No videos saved")
				return nil
			}
			var total int64
			for _, v := range videos {
				total += v.SizeBytes
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Recorded", "Size", "Type"},
				videoRows(videos, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "%s video(s), %s total\n", formatCount(len(videos)), formatBytes(total))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output videos as JSON")
	return cmd
}

func newVideosDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("video id required")
			}
			var removed bool
			err := ctx.videoAccess(cmd,
				func(client *ipc.Client) error {
					resp, err := client.DeleteVideo(id)
					if err != nil {
						return err
					}
					removed = resp.Removed
					return nil
				},
				func(lib *library.Library) error {
					var err error
					removed, err = lib.Delete(cmd.Context(), id)
					return err
				},
			)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !removed {
				fmt.Fprintf(out, "Video %s not found\n", id)
				return nil
			}
			fmt.Fprintf(out, "Deleted video %s\n", id)
			return nil
		},
	}
}

func newVideosClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every saved video",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete all videos without --yes")
			}
			var removed int
			err := ctx.videoAccess(cmd,
				func(client *ipc.Client) error {
					resp, err := client.ClearVideos()
					if err != nil {
						return err
					}
					removed = resp.Removed
					return nil
				},
				func(lib *library.Library) error {
					removed = len(lib.List())
					return lib.Clear(cmd.Context())
				},
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s video(s)\n", formatCount(removed))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion of all videos")
	return cmd
}

func newVideosExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <id> <path>",
		Short: "Write a saved video to a file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			target, err := absolutePath(args[1])
			if err != nil {
				return err
			}
			var written string
			var video ipc.Video
			err = ctx.videoAccess(cmd,
				func(client *ipc.Client) error {
					resp, err := client.ExportVideo(id, target)
					if err != nil {
						return err
					}
					video, written = resp.Video, resp.Path
					return nil
				},
				func(lib *library.Library) error {
					v, ok := lib.Get(id)
					if !ok {
						return services.Wrap(services.ErrNotFound, "library", "export", "video "+id, nil)
					}
					data, err := lib.Payload(cmd.Context(), id)
					if err != nil {
						return err
					}
					dst, err := daemon.ExportPath(v, target)
					if err != nil {
						return err
					}
					if err := fileutil.WriteFileVerified(dst, data, 0o644); err != nil {
						return err
					}
					video, written = v, dst
					return nil
				},
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported video %s (%s) to %s\n", video.ID, formatBytes(video.SizeBytes), written)
			return nil
		},
	}
}

// absolutePath resolves path against the caller's working directory so the
// daemon writes where the user expects.
func absolutePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errors.New("path required")
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}
