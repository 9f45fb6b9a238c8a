package advisory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"carprobe/internal/logging"
	"carprobe/internal/services"
	"carprobe/internal/stage"
	"carprobe/internal/store"
)

// Stage writes a purchase summary for a vehicle.
type Stage struct {
	store       *store.Store
	synthesizer *Synthesizer
	logger      *slog.Logger
	now         func() time.Time
}

// NewStage constructs the summary stage.
func NewStage(st *store.Store, synthesizer *Synthesizer, logger *slog.Logger) *Stage {
	return &Stage{
		store:       st,
		synthesizer: synthesizer,
		logger:      logging.NewComponentLogger(logger, stage.Summary),
		now:         time.Now,
	}
}

// Name implements stage.Handler.
func (s *Stage) Name() string { return stage.Summary }

// Execute implements stage.Handler.
func (s *Stage) Execute(ctx context.Context, task stage.Task) (stage.Result, error) {
	vehicle, err := stage.ResolveVehicle(ctx, s.store, task)
	if err != nil {
		return stage.Skipped(task.VehicleID, "vehicle unavailable"), err
	}
	if vehicle == nil {
		return stage.Skipped(task.VehicleID, "no vehicle"), nil
	}
	if vehicle.HasSummary() {
		return stage.Skipped(vehicle.ID, "summary present"), nil
	}
	if strings.TrimSpace(vehicle.Make) == "" && !vehicle.HasRegistration() {
		return stage.Skipped(vehicle.ID, "nothing to summarize"), nil
	}
	tests, err := s.store.MotTests(ctx, vehicle.ID)
	if err != nil {
		return stage.Skipped(vehicle.ID, "history unavailable"), services.Wrap(services.ErrTransient, stage.Summary, "load history", "", err)
	}

	advice := s.synthesizer.Synthesize(ctx, vehicle, tests)
	if err := s.store.SaveSummary(ctx, vehicle.ID, advice.Summary, advice.RepairEstimate, advice.LifetimeNote, s.now()); err != nil {
		return stage.Completed(vehicle.ID, "summary not saved"), services.Wrap(services.ErrTransient, stage.Summary, "save summary", "", err)
	}
	logging.WithContext(ctx, s.logger).Info("summary saved",
		logging.Bool("generated", advice.Generated),
		logging.Int("chars", len([]rune(advice.Summary))),
	)
	if !advice.Generated {
		return stage.Completed(vehicle.ID, "templated summary saved"), nil
	}
	return stage.Completed(vehicle.ID, "summary saved"), nil
}

// HealthCheck implements stage.Handler.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.synthesizer == nil {
		return stage.Unhealthy(stage.Summary, "synthesizer unavailable")
	}
	if s.synthesizer.client == nil {
		return stage.HealthyWithDetail(stage.Summary, "templated summaries only")
	}
	return stage.Healthy(stage.Summary)
}
