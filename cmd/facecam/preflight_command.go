package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"facecam/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check camera, directories, dependencies, and detector assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			if asJSON {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				printChecks(out, results, shouldColorize(out))
			}
			if failed := preflight.Failed(results, true); len(failed) > 0 {
				return fmt.Errorf("%d required check(s) failed", len(failed))
			}
			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), "All required checks passed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output results as JSON")
	return cmd
}
