// Package gemini implements the external inference capability boundary: it
// uploads clip artifacts to the generative language files API, polls their
// processing state, runs model inference against them, and releases the
// remote resources. Requests are single-shot; failures come back tagged with
// the services error markers so the annotation pool's retry state machine
// can decide what to do.
package gemini
