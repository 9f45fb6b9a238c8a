package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carprobe/internal/logging"
	"carprobe/internal/services"
	"carprobe/internal/services/motapi"
	"carprobe/internal/stage"
	"carprobe/internal/store"
)

// Fetcher retrieves MOT history.
type Fetcher interface {
	History(ctx context.Context, registration string) ([]motapi.Test, error)
	Offline() bool
}

// Stage stores a vehicle's MOT history.
type Stage struct {
	store  *store.Store
	client Fetcher
	logger *slog.Logger
	now    func() time.Time
}

// NewStage constructs the MOT history stage.
func NewStage(st *store.Store, client Fetcher, logger *slog.Logger) *Stage {
	return &Stage{
		store:  st,
		client: client,
		logger: logging.NewComponentLogger(logger, stage.History),
		now:    time.Now,
	}
}

// Name implements stage.Handler.
func (s *Stage) Name() string { return stage.History }

// Execute implements stage.Handler.
func (s *Stage) Execute(ctx context.Context, task stage.Task) (stage.Result, error) {
	vehicle, err := stage.ResolveVehicle(ctx, s.store, task)
	if err != nil {
		return stage.Skipped(task.VehicleID, "vehicle unavailable"), err
	}
	if vehicle == nil {
		return stage.Skipped(task.VehicleID, "no vehicle"), nil
	}
	if vehicle.HistoryCheckedAt != nil {
		return stage.Skipped(vehicle.ID, "history already checked"), nil
	}
	count, err := s.store.CountMotTests(ctx, vehicle.ID)
	if err != nil {
		return stage.Skipped(vehicle.ID, "history unavailable"), services.Wrap(services.ErrTransient, stage.History, "count tests", "", err)
	}
	if count > 0 {
		return stage.Skipped(vehicle.ID, "history present"), nil
	}
	if !vehicle.HasRegistration() {
		return stage.Skipped(vehicle.ID, "no registration"), nil
	}

	logger := logging.WithContext(ctx, s.logger)
	tests, err := s.client.History(ctx, vehicle.Registration)
	switch {
	case errors.Is(err, services.ErrNotFound):
		// No tests on record is a definitive answer; the empty batch stamps
		// the marker.
		tests = nil
	case errors.Is(err, services.ErrValidation):
		logging.WarnWithContext(logger, "mot history reply unusable", "mot_history_unusable",
			logging.String("registration", vehicle.Registration),
			logging.Error(err),
		)
		return stage.Completed(vehicle.ID, "no history data"), nil
	case err != nil:
		// Left unmarked so a later run can fetch again.
		return stage.Completed(vehicle.ID, "history lookup failed"), err
	}
	inserted, err := s.store.SaveMotHistory(ctx, vehicle.ID, motapi.Records(vehicle.ID, tests), s.now())
	if err != nil {
		return stage.Completed(vehicle.ID, "history not saved"), services.Wrap(services.ErrTransient, stage.History, "save history", "", err)
	}
	logger.Info("mot history saved",
		logging.String("registration", vehicle.Registration),
		logging.Int("tests", inserted),
	)
	return stage.Completed(vehicle.ID, fmt.Sprintf("%d tests saved", inserted)), nil
}

// HealthCheck implements stage.Handler.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.client == nil {
		return stage.Unhealthy(stage.History, "client unavailable")
	}
	if s.client.Offline() {
		return stage.HealthyWithDetail(stage.History, "offline: synthetic history")
	}
	return stage.Healthy(stage.History)
}
