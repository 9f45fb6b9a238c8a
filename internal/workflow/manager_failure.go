package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"carprobe/internal/logging"
	"carprobe/internal/queue"
	"carprobe/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, logger *slog.Logger, job *queue.Job, correlationID string, stageErr error) {
	kind, message := classifyStageFailure(job.Stage, stageErr)

	logger.Error("stage failed",
		logging.String("error_kind", kind),
		logging.String("error_message", message),
		logging.Error(stageErr),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.String(logging.FieldErrorHint, failureHint(kind)),
	)

	if err := m.queue.Fail(ctx, job.ID, correlationID, kind, message); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("shutting down, could not record stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}
	m.setLastError(stageErr)
	m.notifyStageFailed(ctx, logger, job, kind, message)
}

func classifyStageFailure(stageName string, stageErr error) (string, string) {
	if stageErr == nil {
		return "transient", fmt.Sprintf("%s failed without error detail", stageName)
	}
	if errors.Is(stageErr, errStagePanic) {
		return "panic", strings.TrimSpace(stageErr.Error())
	}
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return details.Kind, message
}

func failureHint(kind string) string {
	switch kind {
	case "timeout":
		return "raise workflow.stage_timeout or check the upstream service latency"
	case "configuration":
		return "check the API keys and base URLs in config.toml"
	case "external":
		return "the upstream service rejected the request; check its status"
	case "validation":
		return "the upstream response was malformed; re-run enrich later"
	case "panic":
		return "report the stack trace; the chain continued"
	default:
		return "re-run enrich for the vehicle once the service recovers"
	}
}
