package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeStore()
	c.normalizeDubbing()
	c.normalizeCleanup()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeStore() {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = defaultStoreBackend
	}
	if strings.TrimSpace(c.Store.RedisAddr) == "" {
		c.Store.RedisAddr = defaultRedisAddr
	}
}

func (c *Config) normalizeDubbing() {
	c.Dubbing.Defaults = c.Dubbing.Defaults.Normalized()
	c.Dubbing.EndpointURL = strings.TrimSpace(c.Dubbing.EndpointURL)
	if c.Dubbing.RequestTimeout <= 0 {
		c.Dubbing.RequestTimeout = defaultDubbingTimeout
	}
}

func (c *Config) normalizeCleanup() {
	if c.Cleanup.OutputRetentionHours <= 0 {
		c.Cleanup.OutputRetentionHours = defaultOutputRetentionHours
	}
	if c.Cleanup.StaleJobMaxAgeHours <= 0 {
		c.Cleanup.StaleJobMaxAgeHours = defaultStaleJobMaxAgeHours
	}
	if c.Workflow.DownloadTimeout <= 0 {
		c.Workflow.DownloadTimeout = defaultDownloadTimeout
	}
	if c.Workflow.MergeTimeout <= 0 {
		c.Workflow.MergeTimeout = defaultMergeTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
