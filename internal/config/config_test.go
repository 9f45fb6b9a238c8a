package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"carprobe/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CARPROBE_ENV", "OPENAI_API_KEY", "DVLA_API_KEY", "MOT_API_KEY"} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "carprobe")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "carprobe.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
	if cfg.Environment.Mode != config.ModeDevelopment {
		t.Fatalf("expected development mode by default, got %q", cfg.Environment.Mode)
	}
	if !cfg.RegistryOffline() || !cfg.HistoryOffline() {
		t.Fatal("expected offline register and history without keys")
	}
	if cfg.VisionEnabled() {
		t.Fatal("expected vision disabled without an LLM key")
	}
	if cfg.Vision.MinConfidence != 0.6 {
		t.Fatalf("unexpected min confidence: %v", cfg.Vision.MinConfidence)
	}
	if cfg.StageTimeout() != 120*time.Second {
		t.Fatalf("unexpected stage timeout: %v", cfg.StageTimeout())
	}
}

func TestLoadAppliesEnvironmentFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("CARPROBE_ENV", "Production")
	t.Setenv("OPENAI_API_KEY", "llm-key")
	t.Setenv("DVLA_API_KEY", "dvla-key")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths]\ndata_dir = \""+filepath.ToSlash(t.TempDir())+"\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if !cfg.Production() {
		t.Fatalf("expected production mode, got %q", cfg.Environment.Mode)
	}
	if cfg.LLM.APIKey != "llm-key" || cfg.DVLA.APIKey != "dvla-key" {
		t.Fatalf("expected keys from env, got llm=%q dvla=%q", cfg.LLM.APIKey, cfg.DVLA.APIKey)
	}
	if cfg.RegistryOffline() {
		t.Fatal("expected registry online with key in production")
	}
	if !cfg.HistoryOffline() {
		t.Fatal("expected history offline without MOT key")
	}
	if !cfg.VisionEnabled() || !cfg.AdvisoryEnabled() {
		t.Fatal("expected AI features enabled with an LLM key")
	}
}

func TestFeatureLLMFallsBackToShared(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "k"
	cfg.Vision.Model = "vision-model"
	cfg.Vision.TimeoutSeconds = 0

	vision := cfg.VisionLLM()
	if vision.Model != "vision-model" || vision.APIKey != "k" {
		t.Fatalf("unexpected vision llm config: %#v", vision)
	}
	if vision.TimeoutSeconds != cfg.LLM.TimeoutSeconds {
		t.Fatalf("expected shared timeout, got %d", vision.TimeoutSeconds)
	}
	if cfg.AdvisoryLLM().Model != cfg.LLM.Model {
		t.Fatalf("expected advisory to use shared model, got %q", cfg.AdvisoryLLM().Model)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"mode", func(c *config.Config) { c.Environment.Mode = "staging" }, "environment.mode"},
		{"confidence", func(c *config.Config) { c.Vision.MinConfidence = 1.5 }, "vision.min_confidence"},
		{"poll", func(c *config.Config) { c.Workflow.PollInterval = 0 }, "workflow.poll_interval"},
		{"timeouts", func(c *config.Config) { c.Workflow.StageTimeout = c.Workflow.LeaseTimeout }, "workflow.stage_timeout"},
		{"format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tc := range cases {
		cfg := config.Default()
		tc.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q in %q", tc.name, tc.want, err.Error())
		}
	}
}

func TestCreateSampleProducesLoadableConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if cfg.Workflow.Workers != 2 {
		t.Fatalf("unexpected workers: %d", cfg.Workflow.Workers)
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
