package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"carprobe/internal/store"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    stage TEXT NOT NULL,
    listing_id INTEGER,
    vehicle_id INTEGER,
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    correlation_id TEXT,
    outcome TEXT,
    error_kind TEXT,
    error_message TEXT,
    available_at TEXT NOT NULL,
    leased_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_ready ON jobs(status, available_at, id);
`

const jobColumns = "id, stage, listing_id, vehicle_id, status, attempts, correlation_id, outcome, error_kind, error_message, available_at, leased_at, created_at, updated_at"

// Queue is a durable job queue sharing the store's database.
type Queue struct {
	db  *sql.DB
	now func() time.Time
}

// New prepares the jobs table on the store's database.
func New(ctx context.Context, st *store.Store) (*Queue, error) {
	if st == nil {
		return nil, errors.New("queue: store is required")
	}
	q := &Queue{db: st.DB(), now: time.Now}
	if err := store.RetryOnBusy(ctx, func() error {
		_, err := q.db.ExecContext(ctx, jobsSchema)
		return err
	}); err != nil {
		return nil, fmt.Errorf("create jobs table: %w", err)
	}
	return q, nil
}

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (q *Queue) timestamp() string {
	return q.now().UTC().Format(timeLayout)
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job         Job
		listingID   sql.NullInt64
		vehicleID   sql.NullInt64
		correlation sql.NullString
		outcome     sql.NullString
		errorKind   sql.NullString
		errorMsg    sql.NullString
		available   string
		leased      sql.NullString
		created     string
		updated     string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Stage,
		&listingID,
		&vehicleID,
		&job.Status,
		&job.Attempts,
		&correlation,
		&outcome,
		&errorKind,
		&errorMsg,
		&available,
		&leased,
		&created,
		&updated,
	); err != nil {
		return nil, err
	}
	job.ListingID = listingID.Int64
	job.VehicleID = vehicleID.Int64
	job.CorrelationID = correlation.String
	job.Outcome = outcome.String
	job.ErrorKind = errorKind.String
	job.ErrorMessage = errorMsg.String
	job.AvailableAt, _ = time.Parse(time.RFC3339Nano, available)
	if leased.Valid {
		if t, err := time.Parse(time.RFC3339Nano, leased.String); err == nil {
			job.LeasedAt = &t
		}
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return &job, nil
}

func nullableID(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

// Enqueue schedules a stage. A queued job with the same stage and target is
// returned instead of creating a duplicate.
func (q *Queue) Enqueue(ctx context.Context, stage string, listingID, vehicleID int64) (*Job, error) {
	stage = strings.TrimSpace(stage)
	if stage == "" {
		return nil, errors.New("enqueue: stage is required")
	}
	if listingID == 0 && vehicleID == 0 {
		return nil, errors.New("enqueue: listing or vehicle id is required")
	}

	var job *Job
	err := store.RetryOnBusy(ctx, func() error {
		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx,
			"SELECT "+jobColumns+" FROM jobs WHERE status = ? AND stage = ? AND IFNULL(listing_id, 0) = ? AND IFNULL(vehicle_id, 0) = ? LIMIT 1",
			StatusQueued, stage, listingID, vehicleID,
		)
		existing, err := scanJob(row)
		if err == nil {
			job = existing
			return tx.Commit()
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		now := q.timestamp()
		res, err := tx.ExecContext(ctx,
			"INSERT INTO jobs (stage, listing_id, vehicle_id, status, available_at, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			stage, nullableID(listingID), nullableID(vehicleID), StatusQueued, now, now, now,
		)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		job, err = scanJob(tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", stage, err)
	}
	return job, nil
}

// Claim leases the oldest ready job. It returns (nil, nil) when the queue is empty.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	var job *Job
	err := store.RetryOnBusy(ctx, func() error {
		job = nil
		tx, err := q.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		now := q.timestamp()
		row := tx.QueryRowContext(ctx,
			"SELECT "+jobColumns+" FROM jobs WHERE status = ? AND available_at <= ? ORDER BY id LIMIT 1",
			StatusQueued, now,
		)
		candidate, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE jobs SET status = ?, attempts = attempts + 1, leased_at = ?, updated_at = ? WHERE id = ? AND status = ?",
			StatusRunning, now, now, candidate.ID, StatusQueued,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		candidate.Status = StatusRunning
		candidate.Attempts++
		leasedAt, _ := time.Parse(time.RFC3339Nano, now)
		candidate.LeasedAt = &leasedAt
		job = candidate
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

// Complete closes a job lease successfully with the stage outcome.
func (q *Queue) Complete(ctx context.Context, id int64, correlationID, outcome string) error {
	return q.finish(ctx, id, StatusDone, correlationID, outcome, "", "")
}

// Fail closes a job lease with an error classification.
func (q *Queue) Fail(ctx context.Context, id int64, correlationID, kind, message string) error {
	return q.finish(ctx, id, StatusFailed, correlationID, "", kind, message)
}

func (q *Queue) finish(ctx context.Context, id int64, status Status, correlationID, outcome, kind, message string) error {
	err := store.RetryOnBusy(ctx, func() error {
		_, err := q.db.ExecContext(ctx,
			"UPDATE jobs SET status = ?, correlation_id = ?, outcome = ?, error_kind = ?, error_message = ?, leased_at = NULL, updated_at = ? WHERE id = ?",
			status, correlationID, outcome, kind, message, q.timestamp(), id,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("finish job %d: %w", id, err)
	}
	return nil
}

// ReclaimExpired returns running jobs whose lease is older than leaseTimeout
// to the queue and reports how many were reclaimed.
func (q *Queue) ReclaimExpired(ctx context.Context, leaseTimeout time.Duration) (int64, error) {
	cutoff := q.now().Add(-leaseTimeout).UTC().Format(timeLayout)
	var reclaimed int64
	err := store.RetryOnBusy(ctx, func() error {
		res, err := q.db.ExecContext(ctx,
			"UPDATE jobs SET status = ?, leased_at = NULL, updated_at = ? WHERE status = ? AND leased_at IS NOT NULL AND leased_at < ?",
			StatusQueued, q.timestamp(), StatusRunning, cutoff,
		)
		if err != nil {
			return err
		}
		reclaimed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reclaim expired jobs: %w", err)
	}
	return reclaimed, nil
}

// Get fetches a job by ID. Missing rows return (nil, nil).
func (q *Queue) Get(ctx context.Context, id int64) (*Job, error) {
	job, err := scanJob(q.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Recent returns the newest jobs first.
func (q *Queue) Recent(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := q.db.QueryContext(ctx, "SELECT "+jobColumns+" FROM jobs ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns a count of jobs grouped by status.
func (q *Queue) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (q *Queue) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := q.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusRunning:
			health.Running += count
		case StatusDone:
			health.Done += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// Purge deletes finished jobs. With no statuses, done and failed jobs are removed.
func (q *Queue) Purge(ctx context.Context, statuses ...Status) (int64, error) {
	if len(statuses) == 0 {
		statuses = []Status{StatusDone, StatusFailed}
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = status
	}
	var removed int64
	err := store.RetryOnBusy(ctx, func() error {
		res, err := q.db.ExecContext(ctx, "DELETE FROM jobs WHERE status IN ("+strings.Join(placeholders, ",")+")", args...)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge jobs: %w", err)
	}
	return removed, nil
}
