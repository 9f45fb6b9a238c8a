package stage

import (
	"context"
)

// Stage names in chain order.
const (
	Vision   = "vision"
	Register = "register"
	History  = "history"
	Summary  = "summary"
)

// Names lists every stage in chain order.
var Names = []string{Vision, Register, History, Summary}

// Next returns the stage that follows name, or "" at the end of the chain.
func Next(name string) string {
	for i, candidate := range Names {
		if candidate == name && i+1 < len(Names) {
			return Names[i+1]
		}
	}
	return ""
}

// Known reports whether name is a stage.
func Known(name string) bool {
	for _, candidate := range Names {
		if candidate == name {
			return true
		}
	}
	return false
}

// Task identifies the target of one stage execution.
type Task struct {
	JobID     int64
	Stage     string
	ListingID int64
	VehicleID int64
}

// Outcome classifies a finished stage.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
)

// Result reports how a stage finished. VehicleID names the vehicle the
// successor stage should target, which differs from the task when a merge
// forked a new vehicle.
type Result struct {
	Outcome   Outcome
	VehicleID int64
	Detail    string
}

// Completed builds a completed result for vehicleID.
func Completed(vehicleID int64, detail string) Result {
	return Result{Outcome: OutcomeCompleted, VehicleID: vehicleID, Detail: detail}
}

// Skipped builds a skipped result for vehicleID with the guard reason.
func Skipped(vehicleID int64, reason string) Result {
	return Result{Outcome: OutcomeSkipped, VehicleID: vehicleID, Detail: reason}
}

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Name() string
	Execute(context.Context, Task) (Result, error)
	HealthCheck(context.Context) Health
}
