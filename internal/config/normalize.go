package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeEnvironment()
	c.normalizeLLM()
	c.normalizeServices()
	c.normalizeWorkflow()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeEnvironment() {
	if value, ok := os.LookupEnv("CARPROBE_ENV"); ok && strings.TrimSpace(value) != "" {
		c.Environment.Mode = value
	}
	c.Environment.Mode = strings.ToLower(strings.TrimSpace(c.Environment.Mode))
	if c.Environment.Mode == "" {
		c.Environment.Mode = ModeDevelopment
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.Vision.Model = strings.TrimSpace(c.Vision.Model)
	c.Advisory.Model = strings.TrimSpace(c.Advisory.Model)
	if c.Advisory.MaxSummaryChars <= 0 {
		c.Advisory.MaxSummaryChars = defaultAdvisoryMaxSummary
	}
}

func (c *Config) normalizeServices() {
	normalizeService(&c.DVLA, "DVLA_API_KEY", defaultDVLABaseURL)
	normalizeService(&c.MOT, "MOT_API_KEY", defaultMOTBaseURL)
}

func normalizeService(svc *Service, envKey, defaultURL string) {
	svc.APIKey = strings.TrimSpace(svc.APIKey)
	if svc.APIKey == "" {
		if value, ok := os.LookupEnv(envKey); ok {
			svc.APIKey = strings.TrimSpace(value)
		}
	}
	svc.BaseURL = strings.TrimRight(strings.TrimSpace(svc.BaseURL), "/")
	if svc.BaseURL == "" {
		svc.BaseURL = defaultURL
	}
	if svc.TimeoutSeconds <= 0 {
		svc.TimeoutSeconds = defaultServiceTimeoutSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Workers <= 0 {
		c.Workflow.Workers = defaultWorkers
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
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
