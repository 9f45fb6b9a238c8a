package preflight

import (
	"context"

	"carprobe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Directories checks the data and log directories.
func Directories(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
}

// RunAll executes all applicable preflight checks for the given config.
// LLM checks only run for enabled features.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := Directories(cfg)
	results = append(results,
		CheckRegister("DVLA register", cfg.Production(), cfg.DVLA),
		CheckRegister("MOT history", cfg.Production(), cfg.MOT),
	)

	if cfg.VisionEnabled() {
		results = append(results, CheckLLM(ctx, "Vision LLM", cfg.VisionLLM()))
	} else {
		results = append(results, Result{Name: "Vision LLM", Passed: true, Detail: "Disabled"})
	}

	// The advisory check is skipped when it shares an endpoint and key with
	// vision, since the vision check already covers it.
	switch {
	case !cfg.AdvisoryEnabled():
		results = append(results, Result{Name: "Advisory LLM", Passed: true, Detail: "Disabled (templated summaries)"})
	case cfg.VisionEnabled() && !advisoryUsesDistinctLLM(cfg):
		results = append(results, Result{Name: "Advisory LLM", Passed: true, Detail: "Shares vision endpoint"})
	default:
		results = append(results, CheckLLM(ctx, "Advisory LLM", cfg.AdvisoryLLM()))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func advisoryUsesDistinctLLM(cfg *config.Config) bool {
	vision := cfg.VisionLLM()
	advisory := cfg.AdvisoryLLM()
	return vision.APIKey != advisory.APIKey || vision.BaseURL != advisory.BaseURL
}
