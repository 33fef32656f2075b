package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubber/internal/jobs"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var chunkIndexes []int

	cmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Re-run failed chunks of a failed job",
		Long: "Retry schedules the failed chunks of a failed job for another\n" +
			"attempt and waits for the job to finish. Without --chunks every\n" +
			"failed chunk is retried; succeeded chunks keep their results.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.buildStack(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer stack.close()

			resp, err := stack.svc.RetryFailedChunks(cmd.Context(), args[0], chunkIndexes...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Retrying %d chunk(s) of job %s\n", len(resp.Retried), shortID(resp.JobID))

			stack.orch.Wait()

			view, err := stack.svc.JobStatus(cmd.Context(), resp.JobID)
			if err != nil {
				return err
			}
			if view.Status != jobs.StatusCompleted {
				return fmt.Errorf("job %s: %s", view.Status, view.Error)
			}
			fmt.Fprintf(out, "Dubbed output: %s\n", view.Output)
			return nil
		},
	}

	cmd.Flags().IntSliceVar(&chunkIndexes, "chunks", nil, "Chunk indices to retry (default: every failed chunk)")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or processing job",
		Long: "Cancel requests cooperative cancellation of a pending or\n" +
			"processing job. A job left in such a state by a crashed run is\n" +
			"marked failed instead, so it does not stay stuck.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.buildStack(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer stack.close()

			if err := stack.svc.CancelJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", shortID(args[0]))
			return nil
		},
	}
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job and its files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.buildStack(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer stack.close()

			if err := stack.svc.DeleteJob(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted job %s\n", shortID(args[0]))
			return nil
		},
	}
}
