package synthesis

import (
	"matchlens/internal/clips"
	"matchlens/internal/store"
)

// Timeline modes.
const (
	ModeBoundary  = "boundary"
	ModeRecurring = "recurring"
)

// Boundary slots resolved in boundary mode, in timeline order.
const (
	SlotFirstHalfStart  = "first_half_start"
	SlotFirstHalfEnd    = "first_half_end"
	SlotSecondHalfStart = "second_half_start"
	SlotMatchEnd        = "match_end"
)

// BoundarySlots returns the ordered slot names.
func BoundarySlots() []string {
	return []string{SlotFirstHalfStart, SlotFirstHalfEnd, SlotSecondHalfStart, SlotMatchEnd}
}

// Entry is one resolved occurrence on the timeline.
type Entry struct {
	Slot        string               `json:"slot,omitempty"`
	Category    string               `json:"category"`
	TimeSeconds float64              `json:"time_seconds"`
	Clock       string               `json:"clock"`
	Half        int                  `json:"half,omitempty"`
	Team        string               `json:"team,omitempty"`
	Confidence  int                  `json:"confidence"`
	Evidence    string               `json:"evidence,omitempty"`
	ClipID      string               `json:"clip_id"`
	Kickout     *store.KickoutFields `json:"kickout,omitempty"`
}

// Unresolved names a boundary slot that could not be populated without
// violating a constraint, together with the reason.
type Unresolved struct {
	Slot   string `json:"slot"`
	Reason string `json:"reason"`
}

// Statistics aggregates the final entry set. Counts are computed from the
// entries actually emitted, never from raw candidates.
type Statistics struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category,omitempty"`
	ByHalf     map[string]int `json:"by_half,omitempty"`
	ByTeam     map[string]int `json:"by_team,omitempty"`
}

// Timeline is the deduplicated, constraint-satisfying ordered result of one
// synthesis pass.
type Timeline struct {
	Mode       string       `json:"mode"`
	Entries    []Entry      `json:"entries"`
	Unresolved []Unresolved `json:"unresolved,omitempty"`
	Stats      Statistics   `json:"statistics"`
}

func halfLabel(half int) string {
	if half == 2 {
		return "second_half"
	}
	return "first_half"
}

func entryFromEvent(event AnnotationEvent) Entry {
	return Entry{
		Category:    event.Category,
		TimeSeconds: event.AbsoluteSeconds,
		Clock:       clips.FormatOffset(int(event.AbsoluteSeconds)),
		Half:        event.Half,
		Confidence:  event.Confidence,
		Evidence:    event.Evidence,
		ClipID:      event.ClipID,
		Kickout:     event.Kickout,
	}
}

func computeStats(entries []Entry) Statistics {
	stats := Statistics{Total: len(entries)}
	if len(entries) == 0 {
		return stats
	}
	stats.ByCategory = make(map[string]int)
	stats.ByHalf = make(map[string]int)
	for _, entry := range entries {
		stats.ByCategory[entry.Category]++
		stats.ByHalf[halfLabel(entry.Half)]++
		if entry.Team != "" {
			if stats.ByTeam == nil {
				stats.ByTeam = make(map[string]int)
			}
			stats.ByTeam[entry.Team]++
		}
	}
	return stats
}
