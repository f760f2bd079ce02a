// Package pipeline wires enumeration, annotation, and synthesis into the
// operator-facing run lifecycle. It owns the per-run lock and the run id that
// tags every log line of a run.
package pipeline
