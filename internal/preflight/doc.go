// Package preflight provides readiness checks for the directories and
// external services carprobe depends on.
//
// The CLI "carprobe preflight" command runs RunAll and prints one row per
// check; the daemon runs the directory checks before taking its lock so a
// read-only data directory fails fast instead of failing every job.
//
// Each service check is gated by its config toggle. Disabled features and
// offline registers pass with a detail that says so.
package preflight
