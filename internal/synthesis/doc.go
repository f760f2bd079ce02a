// Package synthesis reduces persisted per-clip records into a single ordered
// match timeline. Both modes are pure functions of their inputs and
// thresholds: boundary mode resolves the four phase boundaries under strict
// ordering and duration constraints, recurring mode collapses repeated
// restart detections by time proximity. Failed and pending records never
// contribute.
package synthesis
