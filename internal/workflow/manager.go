package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"carprobe/internal/config"
	"carprobe/internal/logging"
	"carprobe/internal/notifications"
	"carprobe/internal/queue"
	"carprobe/internal/stage"
)

// Manager coordinates queue processing using registered stage handlers.
type Manager struct {
	queue        *queue.Queue
	logger       *slog.Logger
	workers      int
	pollInterval time.Duration
	retryDelay   time.Duration
	leaseTimeout time.Duration
	stageTimeout time.Duration

	handlers map[string]stage.Handler
	order    []string
	notifier notifications.Service
	vehicles VehicleReader

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// NewManager constructs a workflow manager. Handlers are keyed by Name; a
// later handler with the same name replaces an earlier one.
func NewManager(cfg *config.Config, q *queue.Queue, logger *slog.Logger, handlers ...stage.Handler) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		queue:        q,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		workers:      cfg.Workflow.Workers,
		pollInterval: cfg.PollInterval(),
		retryDelay:   cfg.ErrorRetryInterval(),
		leaseTimeout: cfg.LeaseTimeout(),
		stageTimeout: cfg.StageTimeout(),
		handlers:     make(map[string]stage.Handler, len(handlers)),
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		name := handler.Name()
		if _, seen := m.handlers[name]; !seen {
			m.order = append(m.order, name)
		}
		m.handlers[name] = handler
	}
	return m
}

func (m *Manager) handler(name string) stage.Handler {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.handlers[name]
}
