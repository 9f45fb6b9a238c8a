package workflow

import (
	"context"

	"carprobe/internal/logging"
	"carprobe/internal/queue"
	"carprobe/internal/stage"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	Workers     int
	LastError   string
	LastJob     *queue.Job
	QueueStats  map[queue.Status]int
	StageHealth []stage.Health
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	lastJob := m.lastJob
	m.mu.RUnlock()

	stats, err := m.queue.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}

	summary := StatusSummary{
		Running:     running,
		Workers:     m.workers,
		QueueStats:  stats,
		StageHealth: m.HealthCheck(ctx),
	}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}
	if lastJob != nil {
		copy := *lastJob
		summary.LastJob = &copy
	}
	return summary
}

// HealthCheck reports each registered stage in chain order. Chain stages
// without a handler are reported unhealthy.
func (m *Manager) HealthCheck(ctx context.Context) []stage.Health {
	health := make([]stage.Health, 0, len(stage.Names))
	for _, name := range stage.Names {
		handler := m.handler(name)
		if handler == nil {
			health = append(health, stage.Unhealthy(name, "handler not registered"))
			continue
		}
		health = append(health, handler.HealthCheck(ctx))
	}
	return health
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
