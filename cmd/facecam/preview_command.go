package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"facecam/internal/ipc"
)

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "preview <path>",
		Short: "Save a JPEG of the live camera with its overlay",
		Long: "Write the current camera frame, with the face overlay drawn on it, as a JPEG.\n" +
			"A directory path receives facecam-preview.jpg.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := absolutePath(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Preview(target)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %dx%d preview (%s) to %s\n",
					resp.Width, resp.Height, formatBytes(resp.SizeBytes), resp.Path)
				return nil
			})
		},
	}
}
