// Package services defines shared utilities consumed by the per-file task
// pipeline and the remote API integration.
//
// Key responsibilities:
//   - Context helpers that stamp task numbers, stage names, batch ids, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify a
//     failure with errors.Is and turn it into a skip reason.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
