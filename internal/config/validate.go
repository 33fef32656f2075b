package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateDubbing(); err != nil {
		return err
	}
	if err := c.validatePricing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("store.backend must be sqlite or redis, got %q", c.Store.Backend)
	}
	if c.Store.Backend == "redis" && c.Store.RedisAddr == "" {
		return errors.New("store.redis_addr must be set when store.backend is redis")
	}
	return nil
}

func (c *Config) validateDubbing() error {
	if err := c.Dubbing.Defaults.Validate(); err != nil {
		return fmt.Errorf("dubbing.defaults: %w", err)
	}
	return nil
}

func (c *Config) validatePricing() error {
	rates := map[string]float64{
		"pricing.dubbing_per_minute":       c.Pricing.DubbingPerMinute,
		"pricing.transcription_per_minute": c.Pricing.TranscriptionPerMin,
		"pricing.processing_per_minute":    c.Pricing.ProcessingPerMinute,
		"pricing.watermark_free_flat_fee":  c.Pricing.WatermarkFreeFlatFee,
	}
	for name, rate := range rates {
		if rate < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
