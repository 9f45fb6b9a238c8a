package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Environment selects between development and production behaviour.
type Environment struct {
	Mode string `toml:"mode"`
}

// LLM contains shared LLM connection settings used by vision and advisory.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Vision contains configuration for listing image plate recognition.
type Vision struct {
	Enabled        bool    `toml:"enabled"`
	Model          string  `toml:"model"`
	MinConfidence  float64 `toml:"min_confidence"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Advisory contains configuration for purchase advice generation.
type Advisory struct {
	Enabled         bool   `toml:"enabled"`
	Model           string `toml:"model"`
	MaxSummaryChars int    `toml:"max_summary_chars"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Service contains connection settings for a keyed HTTP API.
type Service struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains configuration for the worker pool. Intervals are seconds.
type Workflow struct {
	Workers            int `toml:"workers"`
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	LeaseTimeout       int `toml:"lease_timeout"`
	StageTimeout       int `toml:"stage_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications contains ntfy delivery settings. An empty topic disables delivery.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Config encapsulates all configuration values for carprobe.
//
// Configuration sections by subsystem:
//   - Paths: database and log directories
//   - Environment: development or production mode
//   - LLM: shared connection settings for AI features
//   - Vision: plate recognition from listing images
//   - Advisory: purchase summary generation
//   - DVLA: vehicle register lookups
//   - MOT: MOT history lookups
//   - Workflow: worker pool sizing, polling and timeouts
//   - Notifications: ntfy topic for enrichment events
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Environment   Environment   `toml:"environment"`
	LLM           LLM           `toml:"llm"`
	Vision        Vision        `toml:"vision"`
	Advisory      Advisory      `toml:"advisory"`
	DVLA          Service       `toml:"dvla"`
	MOT           Service       `toml:"mot"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("carprobe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "carprobe.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "carprobe.lock")
}

// Production reports whether the environment mode is production.
func (c *Config) Production() bool {
	return c.Environment.Mode == ModeProduction
}

// RegistryOffline reports whether register lookups must use synthetic data.
func (c *Config) RegistryOffline() bool {
	return !c.Production() || strings.TrimSpace(c.DVLA.APIKey) == ""
}

// HistoryOffline reports whether MOT history lookups must use synthetic data.
func (c *Config) HistoryOffline() bool {
	return !c.Production() || strings.TrimSpace(c.MOT.APIKey) == ""
}

// VisionEnabled reports whether plate recognition can run.
func (c *Config) VisionEnabled() bool {
	return c.Vision.Enabled && strings.TrimSpace(c.LLM.APIKey) != ""
}

// AdvisoryEnabled reports whether purchase summaries may call the LLM.
func (c *Config) AdvisoryEnabled() bool {
	return c.Advisory.Enabled && strings.TrimSpace(c.LLM.APIKey) != ""
}

// PollInterval returns the idle queue polling interval.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.Workflow.PollInterval)
}

// ErrorRetryInterval returns the back-off after a queue read failure.
func (c *Config) ErrorRetryInterval() time.Duration {
	return seconds(c.Workflow.ErrorRetryInterval)
}

// LeaseTimeout returns the age after which a claimed job is redelivered.
func (c *Config) LeaseTimeout() time.Duration {
	return seconds(c.Workflow.LeaseTimeout)
}

// StageTimeout returns the deadline applied to a single stage execution.
func (c *Config) StageTimeout() time.Duration {
	return seconds(c.Workflow.StageTimeout)
}

func seconds(value int) time.Duration {
	return time.Duration(value) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved LLM settings for one feature.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// VisionLLM returns the LLM settings for plate recognition.
// The model and timeout fall back to [llm] settings when not set.
func (c *Config) VisionLLM() LLMConfig {
	cfg := c.sharedLLM()
	if model := strings.TrimSpace(c.Vision.Model); model != "" {
		cfg.Model = model
	}
	if c.Vision.TimeoutSeconds > 0 {
		cfg.TimeoutSeconds = c.Vision.TimeoutSeconds
	}
	return cfg
}

// AdvisoryLLM returns the LLM settings for purchase summaries.
func (c *Config) AdvisoryLLM() LLMConfig {
	cfg := c.sharedLLM()
	if model := strings.TrimSpace(c.Advisory.Model); model != "" {
		cfg.Model = model
	}
	if c.Advisory.TimeoutSeconds > 0 {
		cfg.TimeoutSeconds = c.Advisory.TimeoutSeconds
	}
	return cfg
}

func (c *Config) sharedLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}
