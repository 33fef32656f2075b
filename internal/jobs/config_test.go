package jobs_test

import (
	"errors"
	"testing"

	"dubber/internal/jobs"
	"dubber/internal/services"
)

func validConfig() jobs.PipelineConfig {
	return jobs.PipelineConfig{
		ChunkDuration:   60,
		TargetLanguage:  "es",
		MaxParallelJobs: 2,
	}.Normalized()
}

func TestValidateAcceptsAllowedChunkDurations(t *testing.T) {
	for _, duration := range jobs.AllowedChunkDurations {
		cfg := validConfig()
		cfg.ChunkDuration = duration
		if err := cfg.Validate(); err != nil {
			t.Fatalf("chunk duration %d rejected: %v", duration, err)
		}
	}
}

func TestValidateAcceptsParallelismRange(t *testing.T) {
	for parallel := 1; parallel <= jobs.MaxParallelChunks; parallel++ {
		cfg := validConfig()
		cfg.MaxParallelJobs = parallel
		if err := cfg.Validate(); err != nil {
			t.Fatalf("max_parallel_jobs %d rejected: %v", parallel, err)
		}
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*jobs.PipelineConfig)
	}{
		{"chunk duration outside allowed set", func(c *jobs.PipelineConfig) { c.ChunkDuration = 45 }},
		{"zero parallelism", func(c *jobs.PipelineConfig) { c.MaxParallelJobs = 0 }},
		{"excessive parallelism", func(c *jobs.PipelineConfig) { c.MaxParallelJobs = 6 }},
		{"missing target language", func(c *jobs.PipelineConfig) { c.TargetLanguage = "" }},
		{"bad target language", func(c *jobs.PipelineConfig) { c.TargetLanguage = "not a language" }},
		{"bad source language", func(c *jobs.PipelineConfig) { c.SourceLanguage = "???" }},
		{"bad output format", func(c *jobs.PipelineConfig) { c.OutputFormat = "avi" }},
		{"bad chunking strategy", func(c *jobs.PipelineConfig) { c.ChunkingStrategy = "scene" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, services.ErrValidation) {
				t.Fatalf("expected validation marker, got %v", err)
			}
		})
	}
}

func TestNormalizedAppliesDefaults(t *testing.T) {
	cfg := jobs.PipelineConfig{ChunkDuration: 60, TargetLanguage: " fr ", MaxParallelJobs: 1}.Normalized()
	if cfg.TargetLanguage != "fr" {
		t.Fatalf("expected trimmed target language, got %q", cfg.TargetLanguage)
	}
	if cfg.OutputFormat != "mp4" || cfg.VideoQuality != "1080p" || cfg.ChunkingStrategy != jobs.ChunkingFixed {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestStatusParsing(t *testing.T) {
	status, ok := jobs.ParseStatus("  Dubbing ")
	if !ok || status != jobs.StatusDubbing {
		t.Fatalf("expected dubbing, got %q ok=%v", status, ok)
	}
	if _, ok := jobs.ParseStatus("ripping"); ok {
		t.Fatal("unknown status must not parse")
	}
}

func TestTerminalAndProcessingStatuses(t *testing.T) {
	for _, status := range []jobs.Status{jobs.StatusCompleted, jobs.StatusFailed, jobs.StatusCancelled} {
		if !jobs.IsTerminalStatus(status) {
			t.Fatalf("%s should be terminal", status)
		}
		if jobs.IsProcessingStatus(status) {
			t.Fatalf("%s should not be processing", status)
		}
	}
	for _, status := range []jobs.Status{jobs.StatusDownloading, jobs.StatusChunking, jobs.StatusDubbing, jobs.StatusMerging, jobs.StatusFinalizing} {
		if !jobs.IsProcessingStatus(status) {
			t.Fatalf("%s should be processing", status)
		}
	}
	if jobs.IsProcessingStatus(jobs.StatusPending) || jobs.IsTerminalStatus(jobs.StatusPending) {
		t.Fatal("pending is neither processing nor terminal")
	}
}

func TestFailedChunkIndexes(t *testing.T) {
	job := jobs.Job{Chunks: []jobs.Chunk{
		{Index: 0, Status: jobs.ChunkSucceeded},
		{Index: 1, Status: jobs.ChunkFailed},
		{Index: 2, Status: jobs.ChunkFailed},
	}}
	got := job.FailedChunkIndexes()
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("unexpected failed indexes: %v", got)
	}
}
