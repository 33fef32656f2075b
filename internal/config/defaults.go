package config

import "dubber/internal/jobs"

const (
	defaultWorkDir              = "~/.local/share/dubber/work"
	defaultLogDir               = "~/.local/share/dubber/logs"
	defaultStoreBackend         = "sqlite"
	defaultRedisAddr            = "127.0.0.1:6379"
	defaultLogFormat            = "auto"
	defaultLogLevel             = "info"
	defaultOutputRetentionHours = 24
	defaultStaleJobMaxAgeHours  = 48
	defaultDownloadTimeout      = 1800
	defaultMergeTimeout         = 900
	defaultDubbingTimeout       = 600
	defaultNtfyRequestTimeout   = 10

	defaultDubbingPerMinute    = 0.12
	defaultTranscriptionPerMin = 0.02
	defaultProcessingPerMinute = 0.01
	defaultWatermarkFreeFee    = 1.50
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Store: Store{
			Backend:   defaultStoreBackend,
			RedisAddr: defaultRedisAddr,
		},
		Dubbing: Dubbing{
			Defaults: jobs.PipelineConfig{
				ChunkDuration:   60,
				TargetLanguage:  "es",
				MaxParallelJobs: 2,
			}.Normalized(),
			RequestTimeout: defaultDubbingTimeout,
		},
		Pricing: Pricing{
			DubbingPerMinute:     defaultDubbingPerMinute,
			TranscriptionPerMin:  defaultTranscriptionPerMin,
			ProcessingPerMinute:  defaultProcessingPerMinute,
			WatermarkFreeFlatFee: defaultWatermarkFreeFee,
		},
		Cleanup: Cleanup{
			OutputRetentionHours: defaultOutputRetentionHours,
			StaleJobMaxAgeHours:  defaultStaleJobMaxAgeHours,
		},
		Workflow: Workflow{
			DownloadTimeout: defaultDownloadTimeout,
			MergeTimeout:    defaultMergeTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyRequestTimeout,
		},
	}
}
