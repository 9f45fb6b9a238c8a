// Package daemon coordinates the long-running carprobe process.
//
// It wires the queue and the workflow manager into a single lifecycle with
// flock-based locking so two daemons never lease jobs from the same
// database. The daemon owns startup, shutdown and status reporting; the
// stage logic lives in the stage packages.
package daemon
