// Package notifications delivers enrichment events to ntfy.
//
// The workflow manager publishes when a vehicle's chain finishes and when a
// stage fails. With no topic configured NewService returns a no-op, so callers
// never branch on whether notifications are enabled. Delivery failures are
// returned to the caller, which logs them without affecting job state.
package notifications
