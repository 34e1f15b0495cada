package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"facecam/internal/ipc"
	"facecam/internal/logging"
	"facecam/internal/logs"
)

const followWait = 5 * time.Second

type tailFetcher func(ctx context.Context, req ipc.LogTailRequest) (*ipc.LogTailResponse, error)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var followFlag bool
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show daemon log output",
		RunE: func(cmd *cobra.Command, args []string) error {
			if lines < 0 {
				return errors.New("--lines must be zero or greater")
			}
			fetch, closeFn, err := ctx.logFetcher()
			if err != nil {
				return err
			}
			defer closeFn()

			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			if followFlag {
				var stop context.CancelFunc
				runCtx, stop = signal.NotifyContext(runCtx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()
			}
			return streamLogs(runCtx, cmd, fetch, lines, followFlag)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&followFlag, "follow", "f", false, "Keep printing new lines as they are written")
	return cmd
}

// logFetcher prefers the daemon's log; without a daemon it reads the
// configured log file directly.
func (c *commandContext) logFetcher() (tailFetcher, func(), error) {
	client, err := c.daemonClient()
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		fetch := func(_ context.Context, req ipc.LogTailRequest) (*ipc.LogTailResponse, error) {
			return client.LogTail(req)
		}
		return fetch, func() { _ = client.Close() }, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	path := filepath.Join(cfg.Paths.LogDir, logging.LogFileName)
	fetch := func(ctx context.Context, req ipc.LogTailRequest) (*ipc.LogTailResponse, error) {
		res, err := logs.Tail(ctx, path, logs.TailOptions{
			Offset: req.Offset,
			Limit:  req.Limit,
			Follow: req.Follow,
			Wait:   time.Duration(req.WaitMillis) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		return &ipc.LogTailResponse{Lines: res.Lines, Offset: res.Offset}, nil
	}
	return fetch, func() {}, nil
}

func streamLogs(ctx context.Context, cmd *cobra.Command, fetch tailFetcher, lines int, followFlag bool) error {
	out := cmd.OutOrStdout()
	resp, err := fetch(ctx, ipc.LogTailRequest{Offset: -1, Limit: lines})
	if err != nil {
		return err
	}
	for _, line := range resp.Lines {
		fmt.Fprintln(out, line)
	}
	offset := resp.Offset
	for followFlag {
		if ctx.Err() != nil {
			return nil
		}
		resp, err = fetch(ctx, ipc.LogTailRequest{
			Offset:     offset,
			Follow:     true,
			WaitMillis: int(followWait / time.Millisecond),
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, line := range resp.Lines {
			fmt.Fprintln(out, line)
		}
		offset = resp.Offset
	}
	return nil
}
