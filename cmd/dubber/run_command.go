package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dubber/internal/api"
	"dubber/internal/deps"
	"dubber/internal/jobs"
	"dubber/internal/progress"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		targetLanguage string
		sourceLanguage string
		chunkDuration  int
		parallel       int
		outputFormat   string
		strategy       string
		keepFiles      bool
		watermark      bool
	)

	cmd := &cobra.Command{
		Use:   "run <source>",
		Short: "Dub a video and wait for the result",
		Long: "Run the full dubbing pipeline on a video URL or local file.\n" +
			"The command blocks until the job reaches a terminal state and\n" +
			"prints stage progress as it happens.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stack, err := ctx.buildStack(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer stack.close()

			statuses := deps.CheckBinaries(deps.Requirements(stack.cfg))
			if missing := deps.MissingRequired(statuses); len(missing) > 0 {
				return fmt.Errorf("missing required tools: %s (run `dubber deps` for details)",
					strings.Join(missing, ", "))
			}

			jobCfg := overlayConfig(stack.cfg.Dubbing.Defaults, func(c *jobs.PipelineConfig) {
				flags := cmd.Flags()
				if flags.Changed("target") {
					c.TargetLanguage = targetLanguage
				}
				if flags.Changed("source-language") {
					c.SourceLanguage = sourceLanguage
				}
				if flags.Changed("chunk-duration") {
					c.ChunkDuration = chunkDuration
				}
				if flags.Changed("parallel") {
					c.MaxParallelJobs = parallel
				}
				if flags.Changed("output-format") {
					c.OutputFormat = outputFormat
				}
				if flags.Changed("strategy") {
					c.ChunkingStrategy = strategy
				}
				if flags.Changed("keep-intermediates") {
					c.KeepIntermediateFiles = keepFiles
				}
				if flags.Changed("watermark") {
					c.UseWatermark = watermark
				}
			})

			resp, err := stack.svc.StartPipeline(cmd.Context(), api.StartRequest{
				SourceURL: args[0],
				Config:    jobCfg,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s started\n", resp.JobID)

			unsubscribe := stack.svc.Follow(resp.JobID, func(event progress.Event) {
				switch event.Kind {
				case progress.KindProgress:
					if snap, ok := event.Payload.(jobs.Snapshot); ok {
						fmt.Fprintf(out, "[%s] %s %s\n",
							formatPercent(snap.Percent), snap.Stage, snap.Message)
					}
				case progress.KindError:
					if payload, ok := event.Payload.(map[string]any); ok {
						fmt.Fprintf(out, "Error: %v\n", payload["error"])
					}
				}
			})
			defer unsubscribe()

			stack.orch.Wait()

			view, err := stack.svc.JobStatus(cmd.Context(), resp.JobID)
			if err != nil {
				return err
			}

			switch view.Status {
			case jobs.StatusCompleted:
				fmt.Fprintf(out, "Dubbed output: %s\n", view.Output)
				return nil
			case jobs.StatusCancelled:
				fmt.Fprintln(out, "Job cancelled")
				return nil
			default:
				return fmt.Errorf("job %s: %s", view.Status, view.Error)
			}
		},
	}

	cmd.Flags().StringVarP(&targetLanguage, "target", "t", "", "Target language tag (e.g. es, pt-BR)")
	cmd.Flags().StringVar(&sourceLanguage, "source-language", "", "Source language tag (auto-detected when empty)")
	cmd.Flags().IntVar(&chunkDuration, "chunk-duration", 0, "Chunk length in seconds (30, 60, 120, or 300)")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Concurrent chunk dubbing calls (1-5)")
	cmd.Flags().StringVar(&outputFormat, "output-format", "", "Output container (mp4, mkv, webm)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Chunking strategy (fixed or silence)")
	cmd.Flags().BoolVar(&keepFiles, "keep-intermediates", false, "Keep chunk and source files after a successful merge")
	cmd.Flags().BoolVar(&watermark, "watermark", false, "Produce watermarked output at a lower cost")
	return cmd
}
