package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dubber/internal/jobs"
)

func newEstimateCommand(ctx *commandContext) *cobra.Command {
	var (
		durationSec   float64
		chunkDuration int
		parallel      int
		watermark     bool
	)

	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate cost and processing time for a video",
		Long: "Estimate prices a prospective job from its duration before any\n" +
			"job is created. The same inputs always produce the same estimate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if durationSec <= 0 {
				return fmt.Errorf("--duration must be positive, got %v", durationSec)
			}

			stack, err := ctx.buildStack(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer stack.close()

			jobCfg := overlayConfig(stack.cfg.Dubbing.Defaults, func(c *jobs.PipelineConfig) {
				flags := cmd.Flags()
				if flags.Changed("chunk-duration") {
					c.ChunkDuration = chunkDuration
				}
				if flags.Changed("parallel") {
					c.MaxParallelJobs = parallel
				}
				if flags.Changed("watermark") {
					c.UseWatermark = watermark
				}
			})
			info := jobs.VideoInfo{DurationSec: durationSec}

			cost := stack.svc.CostEstimate(info, jobCfg)
			elapsed := stack.svc.TimeEstimate(info, jobCfg)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Cost", "USD"},
				[][]string{
					{"Dubbing", formatUSD(cost.Breakdown.Dubbing)},
					{"Transcription", formatUSD(cost.Breakdown.Transcription)},
					{"Processing", formatUSD(cost.Breakdown.Processing)},
					{"Watermark-free", formatUSD(cost.Breakdown.WatermarkFree)},
					{"Total", formatUSD(cost.TotalCost)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			fmt.Fprintln(out, renderTable(
				[]string{"Stage", "Time"},
				[][]string{
					{"Download", formatDuration(elapsed.Breakdown.Download)},
					{"Chunking", formatDuration(elapsed.Breakdown.Chunking)},
					{"Dubbing", formatDuration(elapsed.Breakdown.Dubbing)},
					{"Merging", formatDuration(elapsed.Breakdown.Merging)},
					{"Finalize", formatDuration(elapsed.Breakdown.Finalize)},
					{"Total", formatDuration(elapsed.TotalTime)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))
			return nil
		},
	}

	cmd.Flags().Float64VarP(&durationSec, "duration", "d", 0, "Video duration in seconds")
	cmd.Flags().IntVar(&chunkDuration, "chunk-duration", 0, "Chunk length in seconds (30, 60, 120, or 300)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Concurrent chunk dubbing calls (1-5)")
	cmd.Flags().BoolVar(&watermark, "watermark", false, "Assume watermarked output")
	_ = cmd.MarkFlagRequired("duration")
	return cmd
}
