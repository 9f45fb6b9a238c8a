package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carprobe/internal/logging"
)

// Start begins background processing with the configured worker count plus
// one lease reclaimer.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.handlers) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers + 1)
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, i+1)
	}
	go m.runReclaimer(runCtx)

	m.logger.Info("workflow started",
		logging.Int("workers", m.workers),
		logging.Duration("stage_timeout", m.stageTimeout),
		logging.Duration("lease_timeout", m.leaseTimeout),
	)
	return nil
}

// Stop terminates background processing and waits for in-flight jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

// Drain claims and runs jobs on the calling goroutine until the queue is
// empty. Successor stages scheduled along the way are drained too.
func (m *Manager) Drain(ctx context.Context) (int, error) {
	processed := 0
	for {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		ran, err := m.RunOnce(ctx)
		if err != nil {
			return processed, err
		}
		if !ran {
			return processed, nil
		}
		processed++
	}
}

// RunOnce claims a single job and runs it. It reports false when the queue
// had nothing ready.
func (m *Manager) RunOnce(ctx context.Context) (bool, error) {
	job, err := m.queue.Claim(ctx)
	if err != nil {
		m.setLastError(err)
		return false, fmt.Errorf("claim next job: %w", err)
	}
	if job == nil {
		return false, nil
	}
	m.processJob(ctx, job)
	return true, nil
}

func (m *Manager) runWorker(ctx context.Context, id int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int("worker", id))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ran, err := m.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to fetch next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check database access"),
			)
			m.wait(ctx, m.retryDelay)
			continue
		}
		if !ran {
			m.wait(ctx, m.pollInterval)
		}
	}
}

func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	if m.leaseTimeout <= 0 {
		return
	}
	interval := m.leaseTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.reclaimExpired(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) reclaimExpired(ctx context.Context) {
	reclaimed, err := m.queue.ReclaimExpired(ctx, m.leaseTimeout)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logging.WarnWithContext(m.logger, "reclaim expired leases failed; stuck jobs may remain",
			"lease_reclaim_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check database access"),
		)
		return
	}
	if reclaimed > 0 {
		m.logger.Info("reclaimed expired leases",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "lease_reclaimed"),
		)
	}
}

func (m *Manager) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = 100 * time.Millisecond
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
