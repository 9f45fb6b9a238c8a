package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"carprobe/internal/logging"
	"carprobe/internal/queue"
	"carprobe/internal/services"
	"carprobe/internal/stage"
)

var errStagePanic = errors.New("stage panicked")

func (m *Manager) processJob(ctx context.Context, job *queue.Job) {
	correlationID := uuid.NewString()
	jobCtx := withJobContext(ctx, job, correlationID)
	logger := logging.WithContext(jobCtx, m.logger)

	task := stage.Task{
		JobID:     job.ID,
		Stage:     job.Stage,
		ListingID: job.ListingID,
		VehicleID: job.VehicleID,
	}

	started := time.Now()
	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.Int("attempt", job.Attempts),
	)

	result, err := m.executeStage(jobCtx, task)
	if err != nil && ctx.Err() != nil {
		// Shutdown: the lease expires and the job is redelivered.
		logger.Debug("stage interrupted by shutdown", logging.Error(err))
		return
	}

	if err != nil {
		m.handleStageFailure(ctx, logger, job, correlationID, err)
	} else {
		if finishErr := m.queue.Complete(ctx, job.ID, correlationID, string(result.Outcome)); finishErr != nil {
			logger.Error("failed to persist stage result", logging.Error(finishErr))
			m.setLastError(finishErr)
		}
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.String("outcome", string(result.Outcome)),
			logging.String("detail", result.Detail),
			logging.Duration("stage_duration", time.Since(started)),
		)
		m.notifyChainComplete(ctx, logger, job, result)
	}

	m.scheduleSuccessor(ctx, logger, job, result)
	m.setLastJob(job)
}

func (m *Manager) executeStage(ctx context.Context, task stage.Task) (result stage.Result, err error) {
	handler := m.handler(task.Stage)
	if handler == nil {
		return stage.Result{}, services.Wrap(services.ErrConfiguration, task.Stage, "dispatch", "no handler registered", nil)
	}

	stageCtx := ctx
	if m.stageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, m.stageTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			logging.WithContext(ctx, m.logger).Error("stage panic recovered",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			result = stage.Result{}
			err = fmt.Errorf("%w: %s: %v", errStagePanic, task.Stage, r)
		}
	}()

	result, err = handler.Execute(stageCtx, task)
	if err == nil && stageCtx.Err() != nil && ctx.Err() == nil {
		err = services.Wrap(services.ErrTimeout, task.Stage, "execute", "stage deadline exceeded", stageCtx.Err())
	}
	return result, err
}

// scheduleSuccessor enqueues the next stage regardless of how the current
// one ended. A result vehicle takes precedence because merges may fork.
func (m *Manager) scheduleSuccessor(ctx context.Context, logger *slog.Logger, job *queue.Job, result stage.Result) {
	next := stage.Next(job.Stage)
	if next == "" {
		logger.Debug("chain finished", logging.String(logging.FieldEventType, "chain_complete"))
		return
	}
	vehicleID := result.VehicleID
	if vehicleID == 0 {
		vehicleID = job.VehicleID
	}
	successor, err := m.queue.Enqueue(ctx, next, job.ListingID, vehicleID)
	if err != nil {
		logger.Error("failed to schedule next stage",
			logging.Error(err),
			logging.String("next_stage", next),
			logging.String(logging.FieldEventType, "successor_enqueue_failed"),
			logging.String(logging.FieldErrorHint, "re-run enrich for the vehicle once the database is reachable"),
		)
		m.setLastError(err)
		return
	}
	logger.Debug("next stage scheduled",
		logging.String("next_stage", next),
		logging.Int64("next_job_id", successor.ID),
		logging.Int64("next_vehicle_id", vehicleID),
	)
}
