package registry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"carprobe/internal/logging"
	"carprobe/internal/services"
	"carprobe/internal/services/dvla"
	"carprobe/internal/stage"
	"carprobe/internal/store"
)

// Lookuper fetches register records.
type Lookuper interface {
	Lookup(ctx context.Context, registration string) (dvla.Record, error)
	Offline() bool
}

// Stage copies authoritative register data onto a vehicle.
type Stage struct {
	store  *store.Store
	client Lookuper
	logger *slog.Logger
	now    func() time.Time
}

// NewStage constructs the register lookup stage.
func NewStage(st *store.Store, client Lookuper, logger *slog.Logger) *Stage {
	return &Stage{
		store:  st,
		client: client,
		logger: logging.NewComponentLogger(logger, stage.Register),
		now:    time.Now,
	}
}

// Name implements stage.Handler.
func (s *Stage) Name() string { return stage.Register }

// Execute implements stage.Handler.
func (s *Stage) Execute(ctx context.Context, task stage.Task) (stage.Result, error) {
	vehicle, err := stage.ResolveVehicle(ctx, s.store, task)
	if err != nil {
		return stage.Skipped(task.VehicleID, "vehicle unavailable"), err
	}
	if vehicle == nil {
		return stage.Skipped(task.VehicleID, "no vehicle"), nil
	}
	if vehicle.HasRegisterData() {
		return stage.Skipped(vehicle.ID, "register data present"), nil
	}
	if !vehicle.HasRegistration() {
		return stage.Skipped(vehicle.ID, "no registration"), nil
	}

	logger := logging.WithContext(ctx, s.logger)
	at := s.now()
	record, err := s.client.Lookup(ctx, vehicle.Registration)
	switch {
	case errors.Is(err, services.ErrNotFound):
		// A definitive miss: stamp the marker so redelivery does not ask again.
		if err := s.store.MarkChecked(ctx, vehicle.ID, store.MarkerRegister, at); err != nil {
			return stage.Completed(vehicle.ID, "not on register"), services.Wrap(services.ErrTransient, stage.Register, "mark checked", "", err)
		}
		logger.Info("registration not on register", logging.String("registration", vehicle.Registration))
		return stage.Completed(vehicle.ID, "not on register"), nil
	case errors.Is(err, services.ErrValidation):
		logging.WarnWithContext(logger, "register reply unusable", "register_reply_unusable",
			logging.String("registration", vehicle.Registration),
			logging.Error(err),
		)
		return stage.Completed(vehicle.ID, "no register data"), nil
	case err != nil:
		// Left unmarked so a later run can ask again.
		return stage.Completed(vehicle.ID, "register lookup failed"), err
	}

	record.Apply(vehicle)
	vehicle.RegisterCheckedAt = &at
	if err := s.store.SaveRegisterData(ctx, vehicle); err != nil {
		return stage.Completed(vehicle.ID, "register data not saved"), services.Wrap(services.ErrTransient, stage.Register, "save register data", "", err)
	}
	logger.Info("register data saved",
		logging.String("registration", vehicle.Registration),
		logging.String("make", vehicle.Make),
		logging.String("mot_status", vehicle.MotStatus),
		logging.Bool("synthetic", record.Synthetic),
	)
	return stage.Completed(vehicle.ID, "register data saved"), nil
}

// HealthCheck implements stage.Handler.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.client == nil {
		return stage.Unhealthy(stage.Register, "client unavailable")
	}
	if s.client.Offline() {
		return stage.HealthyWithDetail(stage.Register, "offline: synthetic records")
	}
	return stage.Healthy(stage.Register)
}
