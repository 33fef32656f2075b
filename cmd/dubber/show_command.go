package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.buildStack(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer stack.close()

			view, err := stack.svc.JobStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			rows := [][]string{
				{"ID", view.ID},
				{"Status", string(view.Status)},
				{"Source", view.SourceURL},
				{"Title", view.Video.Title},
				{"Duration", formatSeconds(view.Video.DurationSec)},
				{"Progress", view.Progress.Stage + " (" + formatPercent(view.Progress.Percent) + ")"},
				{"Created", view.CreatedAt.Local().Format(time.DateTime)},
				{"Updated", view.UpdatedAt.Local().Format(time.DateTime)},
			}
			if view.Output != "" {
				rows = append(rows, []string{"Output", view.Output})
			}
			if view.Error != "" {
				rows = append(rows, []string{"Error", view.Error})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Field", "Value"},
				rows,
				[]columnAlignment{alignLeft, alignLeft},
			))

			if len(view.Progress.Chunks) == 0 {
				return nil
			}

			chunkRows := make([][]string, 0, len(view.Progress.Chunks))
			for _, chunk := range view.Progress.Chunks {
				chunkRows = append(chunkRows, []string{
					fmt.Sprintf("%d", chunk.Index),
					string(chunk.Status),
					fmt.Sprintf("%d", chunk.Attempts),
					chunk.Error,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Chunk", "Status", "Attempts", "Error"},
				chunkRows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}
}
