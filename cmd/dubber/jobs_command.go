package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dubber/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		offset int
		status string
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List dubbing jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.buildStack(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer stack.close()

			resp, err := stack.svc.ListJobs(cmd.Context(), api.ListRequest{
				Limit:  limit,
				Offset: offset,
				Status: status,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(resp.Jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}

			rows := make([][]string, 0, len(resp.Jobs))
			for _, job := range resp.Jobs {
				rows = append(rows, []string{
					shortID(job.ID),
					string(job.Status),
					formatPercent(job.Progress.Percent),
					titleOrURL(job.Video.Title, job.SourceURL),
					job.CreatedAt.Local().Format(time.DateTime),
				})
			}

			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Status", "Progress", "Title", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			fmt.Fprintf(out, "%d of %d job(s)", len(resp.Jobs), resp.Total)
			if resp.HasMore {
				fmt.Fprintf(out, " (more available, use --offset %d)", offset+len(resp.Jobs))
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum jobs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "Jobs to skip before listing")
	cmd.Flags().StringVarP(&status, "status", "s", "", "Filter by job status")
	return cmd
}
