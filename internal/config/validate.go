package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable for daemon operations.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEnvironment(); err != nil {
		return err
	}
	if err := c.validateAI(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateEnvironment() error {
	switch c.Environment.Mode {
	case ModeDevelopment, ModeProduction:
		return nil
	default:
		return fmt.Errorf("environment.mode: unsupported value %q (expected development or production)", c.Environment.Mode)
	}
}

func (c *Config) validateAI() error {
	if c.Vision.MinConfidence < 0 || c.Vision.MinConfidence > 1 {
		return fmt.Errorf("vision.min_confidence must be between 0 and 1, got %v", c.Vision.MinConfidence)
	}
	if c.Vision.TimeoutSeconds < 0 {
		return errors.New("vision.timeout_seconds must be non-negative")
	}
	if c.Advisory.TimeoutSeconds < 0 {
		return errors.New("advisory.timeout_seconds must be non-negative")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.LeaseTimeout <= 0 {
		return errors.New("workflow.lease_timeout must be positive")
	}
	if c.Workflow.StageTimeout <= 0 {
		return errors.New("workflow.stage_timeout must be positive")
	}
	if c.Workflow.StageTimeout >= c.Workflow.LeaseTimeout {
		return fmt.Errorf("workflow.stage_timeout (%d) must be shorter than workflow.lease_timeout (%d)", c.Workflow.StageTimeout, c.Workflow.LeaseTimeout)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
