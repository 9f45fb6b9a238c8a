package queue

import "time"

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []Status{StatusQueued, StatusRunning, StatusDone, StatusFailed}

// Job is one scheduled stage execution.
type Job struct {
	ID            int64
	Stage         string
	ListingID     int64
	VehicleID     int64
	Status        Status
	Attempts      int
	CorrelationID string
	Outcome       string
	ErrorKind     string
	ErrorMessage  string
	AvailableAt   time.Time
	LeasedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HealthSummary aggregates job counts for diagnostics.
type HealthSummary struct {
	Total   int
	Queued  int
	Running int
	Done    int
	Failed  int
}
