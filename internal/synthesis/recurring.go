package synthesis

import (
	"sort"

	"matchlens/internal/config"
	"matchlens/internal/store"
)

// SynthesizeRecurring builds the timeline of repeated restart events. All
// events at or above the confidence threshold are retained; events whose
// absolute times fall within the dedup window are collapsed into a single
// entry because adjacent clips independently observe the same occurrence.
func SynthesizeRecurring(events []AnnotationEvent, thresholds config.Synthesis) Timeline {
	var candidates []AnnotationEvent
	for _, event := range events {
		if event.Category != store.CategoryKickout {
			continue
		}
		if event.Confidence < thresholds.ConfidenceThreshold {
			continue
		}
		candidates = append(candidates, event)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].AbsoluteSeconds != candidates[j].AbsoluteSeconds {
			return candidates[i].AbsoluteSeconds < candidates[j].AbsoluteSeconds
		}
		return candidates[i].ClipID < candidates[j].ClipID
	})

	deduped := dedupByWindow(candidates, thresholds.DedupWindowSeconds)

	timeline := Timeline{Mode: ModeRecurring, Entries: make([]Entry, 0, len(deduped))}
	for _, event := range deduped {
		entry := entryFromEvent(event)
		if event.Kickout != nil {
			entry.Team = event.Kickout.KickingTeam
		}
		timeline.Entries = append(timeline.Entries, entry)
	}
	timeline.Stats = computeStats(timeline.Entries)
	return timeline
}

// dedupByWindow collapses time-sorted events that fall within the window of
// the current group's representative, keeping the higher-confidence source.
// Confidence ties keep the earlier event; equal times fall back to clip id.
func dedupByWindow(sorted []AnnotationEvent, windowSeconds int) []AnnotationEvent {
	if windowSeconds <= 0 || len(sorted) == 0 {
		return sorted
	}
	window := float64(windowSeconds)

	var kept []AnnotationEvent
	for _, event := range sorted {
		if len(kept) == 0 {
			kept = append(kept, event)
			continue
		}
		last := &kept[len(kept)-1]
		if event.AbsoluteSeconds-last.AbsoluteSeconds > window {
			kept = append(kept, event)
			continue
		}
		if betterDuplicate(event, *last) {
			*last = event
		}
	}
	return kept
}

func betterDuplicate(challenger, incumbent AnnotationEvent) bool {
	if challenger.Confidence != incumbent.Confidence {
		return challenger.Confidence > incumbent.Confidence
	}
	if challenger.AbsoluteSeconds != incumbent.AbsoluteSeconds {
		return challenger.AbsoluteSeconds < incumbent.AbsoluteSeconds
	}
	return challenger.ClipID < incumbent.ClipID
}
