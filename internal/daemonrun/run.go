package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"carprobe/internal/config"
	"carprobe/internal/daemon"
	"carprobe/internal/logging"
	"carprobe/internal/pipeline"
	"carprobe/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the carprobe daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	for _, result := range preflight.Directories(cfg) {
		if !result.Passed {
			return fmt.Errorf("preflight %s: %s", result.Name, result.Detail)
		}
	}
	logModeSnapshot(logger, cfg)

	p, err := pipeline.Open(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("open pipeline", logging.Error(err))
		return err
	}
	defer p.Close()

	d, err := daemon.New(cfg, p.Queue, logger, p.Workflow)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	defer d.Stop()

	<-signalCtx.Done()
	logger.Info("carprobe daemon shutting down")
	return nil
}

func logModeSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("enrichment mode snapshot",
		logging.String(logging.FieldEventType, "mode_snapshot"),
		logging.String("environment", cfg.Environment.Mode),
		logging.Bool("register_offline", cfg.RegistryOffline()),
		logging.Bool("history_offline", cfg.HistoryOffline()),
		logging.Bool("vision_enabled", cfg.VisionEnabled()),
		logging.Bool("advisory_enabled", cfg.AdvisoryEnabled()),
		logging.Int("workers", cfg.Workflow.Workers),
	)
}
