// Package report renders synthesized timelines into the machine-readable
// JSON artifact and human-readable tables. It branches on presentation only,
// never on domain semantics.
package report
