// Package queue persists stage jobs in the carprobe SQLite database and exposes
// helpers for driving their lifecycle.
//
// A job names one stage for one listing or vehicle. Workers Claim the oldest
// ready job, which leases it; Complete and Fail close the lease. Leases that
// outlive the configured timeout are returned to the queue by ReclaimExpired,
// giving at-least-once delivery. Stages are idempotent, so redelivery is safe.
//
// Enqueue collapses a request onto an already queued job for the same stage and
// target, so bursts of re-enrichment requests do not pile up.
package queue
