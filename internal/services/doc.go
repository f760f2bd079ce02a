// Package services defines shared utilities consumed by the annotation
// pipeline and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp clip IDs and run identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the reason codes persisted on failed clip records (transient vs
//     permanent vs extraction).
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
