// Package main hosts the carprobe CLI entrypoint and command graph.
//
// The Cobra command tree opens the local store directly: ingest listing
// documents, inspect vehicles and the job queue, re-enqueue stages, export
// workbooks, and run the worker pool as a long-lived daemon. Configuration is
// resolved once per invocation after an optional .env file is loaded.
//
// Keep this package lean: new behaviour belongs in the internal packages and
// is surfaced here through commands or flags.
package main
