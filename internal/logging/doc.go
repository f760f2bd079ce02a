// Package logging wires log/slog with the handlers and attribute helpers used
// across matchlens: a console handler for interactive runs, a JSON handler for
// machine-consumed logs, and typed attr constructors with the standardized
// field names (component, clip_id, run_id).
package logging
