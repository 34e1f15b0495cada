package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"facecam/internal/ipc"
)

func newRecordCommand(ctx *commandContext) *cobra.Command {
	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Control recording of the overlaid preview",
	}
	recordCmd.AddCommand(newRecordStartCommand(ctx))
	recordCmd.AddCommand(newRecordStopCommand(ctx))
	return recordCmd
}

func newRecordStartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.StartRecording(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Recording started")
				return nil
			})
		},
	}
}

func newRecordStopCommand(ctx *commandContext) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop recording and save the video",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.StopRecording(wait)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !resp.Stopped {
					fmt.Fprintln(out, "Not recording")
					return nil
				}
				fmt.Fprintf(out, "Recording stopped: %s frames, %s\n", formatCount(resp.Frames), formatBytes(resp.SizeBytes))
				switch {
				case resp.Saved && resp.Video != nil:
					fmt.Fprintf(out, "Saved video %s\n", resp.Video.ID)
				case resp.SaveError != "":
					return fmt.Errorf("save recording: %s", resp.SaveError)
				default:
					fmt.Fprintln(out, "Save still in progress; check `facecam videos list`")
				}
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for the video to be saved")
	return cmd
}
