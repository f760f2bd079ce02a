// Package annotate turns clip artifacts into persisted per-clip records. It
// owns the mode-specific prompts, the strict response schema extraction, and
// the bounded worker pool that drives the external inference capability with
// per-clip retry. The capability itself is an interface so the pool can be
// exercised without network access.
package annotate
