// Package services defines shared utilities consumed by the pipeline stage
// handlers and the external service clients.
//
// Key responsibilities:
//   - Context helpers that stamp listing, vehicle and job identifiers, stage
//     names, and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so stage failures are
//     classified consistently in logs and job records.
//
// Use these helpers when wiring new stage logic so operational behaviour stays
// uniform across the pipeline.
package services
