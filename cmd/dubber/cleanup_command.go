package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var maxAgeHours int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove stale job directories from the work dir",
		Long: "Cleanup removes job staging directories whose last modification\n" +
			"is older than the retention window. Job records are untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.buildStack(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer stack.close()

			maxAge := stack.cfg.StaleJobMaxAge()
			if cmd.Flags().Changed("max-age") {
				maxAge = time.Duration(maxAgeHours) * time.Hour
			}

			result := stack.staging.CleanupOldJobs(maxAge)

			out := cmd.OutOrStdout()
			for _, removed := range result.Removed {
				fmt.Fprintf(out, "Removed %s\n", removed)
			}
			for _, cleanupErr := range result.Errors {
				fmt.Fprintf(out, "Failed %s: %v\n", cleanupErr.Path, cleanupErr.Error)
			}
			fmt.Fprintf(out, "Removed %d stale director(ies), %d error(s)\n",
				len(result.Removed), len(result.Errors))
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAgeHours, "max-age", 0, "Override the stale age threshold, in hours")
	return cmd
}
