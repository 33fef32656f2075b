package main

import (
	"fmt"
	"strings"
	"time"

	"dubber/internal/jobs"
)

// shortID trims a UUID down to its first segment for table display.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatPercent(value float64) string {
	return fmt.Sprintf("%.0f%%", value)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	return d.Round(time.Second).String()
}

func formatSeconds(seconds float64) string {
	return formatDuration(time.Duration(seconds * float64(time.Second)))
}

func formatUSD(value float64) string {
	return fmt.Sprintf("$%.2f", value)
}

func titleOrURL(title, sourceURL string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	return sourceURL
}

func overlayConfig(base jobs.PipelineConfig, apply func(*jobs.PipelineConfig)) jobs.PipelineConfig {
	cfg := base
	apply(&cfg)
	return cfg
}
