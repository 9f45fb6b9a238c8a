package testsupport

import (
	"path/filepath"
	"testing"

	"carprobe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The environment is development with no API keys, so every external
// service runs offline unless options say otherwise.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Environment.Mode = config.ModeDevelopment
	cfgVal.Workflow.PollInterval = 1
	cfgVal.Workflow.ErrorRetryInterval = 1
	cfgVal.Workflow.StageTimeout = 5
	cfgVal.Workflow.LeaseTimeout = 30

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLLM points the shared LLM settings at baseURL with a test key.
func WithLLM(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.LLM.APIKey = "test-llm"
		b.cfg.LLM.BaseURL = baseURL
	}
}

// WithProduction switches the environment to production.
func WithProduction() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Environment.Mode = config.ModeProduction
	}
}

// WithDVLA configures a register API endpoint and key.
func WithDVLA(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.DVLA.APIKey = "test-dvla"
		b.cfg.DVLA.BaseURL = baseURL
	}
}

// WithMOT configures a MOT history endpoint and key.
func WithMOT(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.MOT.APIKey = "test-mot"
		b.cfg.MOT.BaseURL = baseURL
	}
}

// WithVisionDisabled turns off plate recognition.
func WithVisionDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Vision.Enabled = false
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
