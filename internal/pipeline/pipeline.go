package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"carprobe/internal/advisory"
	"carprobe/internal/config"
	"carprobe/internal/history"
	"carprobe/internal/ingest"
	"carprobe/internal/logging"
	"carprobe/internal/merge"
	"carprobe/internal/notifications"
	"carprobe/internal/queue"
	"carprobe/internal/registry"
	"carprobe/internal/services/dvla"
	"carprobe/internal/services/llm"
	"carprobe/internal/services/motapi"
	"carprobe/internal/stage"
	"carprobe/internal/store"
	"carprobe/internal/vision"
	"carprobe/internal/workflow"
)

// Pipeline holds the wired runtime.
type Pipeline struct {
	Store    *store.Store
	Queue    *queue.Queue
	Merger   *merge.Engine
	Ingest   *ingest.Service
	Workflow *workflow.Manager
	Stages   []stage.Handler
}

// Open opens the database and builds every component from cfg.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("pipeline: config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	p, err := Build(ctx, cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return p, nil
}

// Build assembles the runtime on an open store.
func Build(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*Pipeline, error) {
	q, err := queue.New(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}
	merger := merge.NewEngine(st, logger)
	stages := Stages(cfg, st, merger, logger)
	manager := workflow.NewManager(cfg, q, logger, stages...)
	manager.SetNotifier(notifications.NewService(cfg), st)
	return &Pipeline{
		Store:    st,
		Queue:    q,
		Merger:   merger,
		Ingest:   ingest.NewService(st, merger, q, cfg.VisionEnabled(), logger),
		Workflow: manager,
		Stages:   stages,
	}, nil
}

// Stages builds the four chain handlers. Disabled LLM features get a nil
// client so the stage falls back instead of calling out.
func Stages(cfg *config.Config, st *store.Store, merger *merge.Engine, logger *slog.Logger) []stage.Handler {
	var reader vision.PlateReader
	if cfg.VisionEnabled() {
		reader = vision.NewRecognizer(llm.NewClient(llm.Config(cfg.VisionLLM())), logger)
	}

	var completer advisory.Completer
	if cfg.AdvisoryEnabled() {
		completer = llm.NewClient(llm.Config(cfg.AdvisoryLLM()))
	}

	register := dvla.NewClient(dvla.Config{
		APIKey:         cfg.DVLA.APIKey,
		BaseURL:        cfg.DVLA.BaseURL,
		TimeoutSeconds: cfg.DVLA.TimeoutSeconds,
		Offline:        cfg.RegistryOffline(),
	}, dvla.WithLogger(logger))
	mot := motapi.NewClient(motapi.Config{
		APIKey:         cfg.MOT.APIKey,
		BaseURL:        cfg.MOT.BaseURL,
		TimeoutSeconds: cfg.MOT.TimeoutSeconds,
		Offline:        cfg.HistoryOffline(),
	}, motapi.WithLogger(logger))

	return []stage.Handler{
		vision.NewStage(st, reader, merger, cfg.VisionEnabled(), cfg.Vision.MinConfidence, logger),
		registry.NewStage(st, register, logger),
		history.NewStage(st, mot, logger),
		advisory.NewStage(st, advisory.NewSynthesizer(completer, cfg.Advisory.MaxSummaryChars, logger), logger),
	}
}

// Close releases the database.
func (p *Pipeline) Close() error {
	if p == nil || p.Store == nil {
		return nil
	}
	p.Workflow.Stop()
	return p.Store.Close()
}
