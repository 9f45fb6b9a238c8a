// Package workflow advances queued stage jobs through the enrichment chain.
//
// The Manager runs a fixed pool of workers that claim jobs from the queue,
// execute the registered stage handler under a per-stage deadline with a
// fresh correlation ID, record the outcome on the job, and schedule the
// successor stage (vision, register, history, summary). A failed or
// panicking stage is recorded and the chain still moves on, so one broken
// external service never strands a vehicle. A reclaim loop returns expired
// leases to the queue for at-least-once delivery.
//
// Drain runs jobs on the calling goroutine until the queue is empty and is
// what the CLI sync path and tests use.
package workflow
