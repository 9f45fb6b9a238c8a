package workflow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"carprobe/internal/logging"
	"carprobe/internal/notifications"
	"carprobe/internal/queue"
	"carprobe/internal/stage"
	"carprobe/internal/store"
)

// VehicleReader resolves vehicles for notification payloads.
type VehicleReader interface {
	GetVehicle(ctx context.Context, id int64) (*store.Vehicle, error)
}

// SetNotifier installs the event publisher. vehicles may be nil, in which case
// payloads carry only IDs.
func (m *Manager) SetNotifier(svc notifications.Service, vehicles VehicleReader) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = svc
	m.vehicles = vehicles
}

func (m *Manager) notifierSnapshot() (notifications.Service, VehicleReader) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.notifier, m.vehicles
}

// notifyChainComplete publishes when the final stage produced something new.
func (m *Manager) notifyChainComplete(ctx context.Context, logger *slog.Logger, job *queue.Job, result stage.Result) {
	if stage.Next(job.Stage) != "" || result.Outcome != stage.OutcomeCompleted {
		return
	}
	svc, vehicles := m.notifierSnapshot()
	if !notifications.Enabled(svc) {
		return
	}
	vehicleID := result.VehicleID
	if vehicleID == 0 {
		vehicleID = job.VehicleID
	}
	payload := notifications.Payload{"vehicleID": strconv.FormatInt(vehicleID, 10)}
	if vehicles != nil {
		if v, err := vehicles.GetVehicle(ctx, vehicleID); err == nil && v != nil {
			payload["registration"] = v.Registration
			payload["vehicle"] = describeVehicle(v)
			payload["summary"] = v.PurchaseSummary
		}
	}
	m.publish(ctx, logger, svc, notifications.EventVehicleEnriched, payload)
}

func (m *Manager) notifyStageFailed(ctx context.Context, logger *slog.Logger, job *queue.Job, kind, message string) {
	svc, _ := m.notifierSnapshot()
	if !notifications.Enabled(svc) {
		return
	}
	m.publish(ctx, logger, svc, notifications.EventStageFailed, notifications.Payload{
		"stage":     job.Stage,
		"vehicleID": strconv.FormatInt(job.VehicleID, 10),
		"kind":      kind,
		"error":     message,
	})
}

func (m *Manager) publish(ctx context.Context, logger *slog.Logger, svc notifications.Service, event notifications.Event, payload notifications.Payload) {
	if err := svc.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("notification_event", string(event)),
			logging.Error(err),
		)
	}
}

func describeVehicle(v *store.Vehicle) string {
	parts := make([]string, 0, 3)
	if v.Year > 0 {
		parts = append(parts, strconv.Itoa(v.Year))
	}
	for _, value := range []string{v.Make, v.Model} {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, value)
		}
	}
	return strings.Join(parts, " ")
}
