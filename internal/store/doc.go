// Package store persists one durable record per clip in SQLite. Records are
// the source of truth for the pipeline: the annotation pool consults them to
// skip completed clips across restarts, and the synthesizer reads only
// records in the done state. Writes are single-statement upserts, so a
// record is either fully present or absent, never half-written.
package store
