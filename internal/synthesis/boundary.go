package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"matchlens/internal/config"
	"matchlens/internal/store"
)

// Hedged evidence is rejected outright, never weighted down. A candidate that
// only "appears to be" a boundary is no candidate at all.
var hedgePhrases = []string{
	"appears to be",
	"appears",
	"possibly",
	"might be",
	"may be",
	"unclear",
	"seems",
	"perhaps",
	"unsure",
	"difficult to tell",
	"hard to tell",
}

func isHedged(evidence string) bool {
	lowered := strings.ToLower(evidence)
	for _, phrase := range hedgePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// SynthesizeBoundary resolves the four match boundaries from boundary-mode
// events. It is pure and deterministic: the same events and thresholds always
// produce the same timeline. A slot is reported unresolved rather than
// populated with a constraint-violating guess.
func SynthesizeBoundary(events []AnnotationEvent, thresholds config.Synthesis) Timeline {
	starts := rankCandidates(events, store.CategoryGameStart, thresholds)
	halftimes := rankCandidates(events, store.CategoryHalftime, thresholds)
	ends := rankCandidates(events, store.CategoryGameEnd, thresholds)

	if picks, ok := searchValidCombination(starts, halftimes, ends, thresholds); ok {
		return boundaryTimeline(picks, nil)
	}
	picks, unresolved := fallbackPicks(starts, halftimes, ends, thresholds)
	return boundaryTimeline(picks, unresolved)
}

// rankCandidates filters events of one category by confidence threshold,
// hedge rejection, and minimum evidence length, then orders them best-first:
// highest confidence, then longer evidence, then earlier time, then clip id.
func rankCandidates(events []AnnotationEvent, category string, thresholds config.Synthesis) []AnnotationEvent {
	var candidates []AnnotationEvent
	for _, event := range events {
		if event.Category != category {
			continue
		}
		if event.Confidence < thresholds.ConfidenceThreshold {
			continue
		}
		if isHedged(event.Evidence) {
			continue
		}
		if len(event.Evidence) < thresholds.EvidenceMinLength {
			continue
		}
		candidates = append(candidates, event)
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if len(a.Evidence) != len(b.Evidence) {
			return len(a.Evidence) > len(b.Evidence)
		}
		if a.AbsoluteSeconds != b.AbsoluteSeconds {
			return a.AbsoluteSeconds < b.AbsoluteSeconds
		}
		return a.ClipID < b.ClipID
	})
	return candidates
}

type boundaryPicks struct {
	firstStart  *AnnotationEvent
	firstEnd    *AnnotationEvent
	secondStart *AnnotationEvent
	matchEnd    *AnnotationEvent
}

// searchValidCombination walks candidate combinations best-first and returns
// the first one satisfying ordering and duration constraints. The iteration
// order is fixed, so the result is deterministic.
func searchValidCombination(starts, halftimes, ends []AnnotationEvent, thresholds config.Synthesis) (boundaryPicks, bool) {
	for h := range halftimes {
		halftime := halftimes[h]
		for s1 := range starts {
			firstStart := starts[s1]
			if firstStart.AbsoluteSeconds >= halftime.AbsoluteSeconds {
				continue
			}
			if !withinHalfWindow(halftime.AbsoluteSeconds-firstStart.AbsoluteSeconds, thresholds) {
				continue
			}
			for s2 := range starts {
				secondStart := starts[s2]
				if secondStart.AbsoluteSeconds <= halftime.AbsoluteSeconds {
					continue
				}
				if !withinBreakWindow(secondStart.AbsoluteSeconds-halftime.AbsoluteSeconds, thresholds) {
					continue
				}
				for e := range ends {
					matchEnd := ends[e]
					if matchEnd.AbsoluteSeconds <= secondStart.AbsoluteSeconds {
						continue
					}
					if !withinHalfWindow(matchEnd.AbsoluteSeconds-secondStart.AbsoluteSeconds, thresholds) {
						continue
					}
					return boundaryPicks{
						firstStart:  &firstStart,
						firstEnd:    &halftime,
						secondStart: &secondStart,
						matchEnd:    &matchEnd,
					}, true
				}
			}
		}
	}
	return boundaryPicks{}, false
}

func withinHalfWindow(seconds float64, thresholds config.Synthesis) bool {
	return seconds >= float64(thresholds.HalfMinMinutes*60) &&
		seconds <= float64(thresholds.HalfMaxMinutes*60)
}

// withinBreakWindow bounds the observed gap between the break record and the
// next phase start. Clips sample the break, so the observed gap undershoots
// the real break length; only the maximum is enforceable.
func withinBreakWindow(seconds float64, thresholds config.Synthesis) bool {
	return seconds > 0 && seconds <= float64(thresholds.BreakMaxMinutes*60)
}

// fallbackPicks is used when no combination satisfies every constraint. Each
// slot gets its top-ranked candidate only when that candidate is consistent
// with the slots already placed; anything else is reported unresolved.
func fallbackPicks(starts, halftimes, ends []AnnotationEvent, thresholds config.Synthesis) (boundaryPicks, []Unresolved) {
	var picks boundaryPicks
	var unresolved []Unresolved

	miss := func(slot, reason string) {
		unresolved = append(unresolved, Unresolved{Slot: slot, Reason: reason})
	}

	if len(starts) > 0 {
		picks.firstStart = &starts[0]
	} else {
		miss(SlotFirstHalfStart, "no qualifying phase start candidate")
	}

	for i := range halftimes {
		candidate := halftimes[i]
		if picks.firstStart != nil {
			duration := candidate.AbsoluteSeconds - picks.firstStart.AbsoluteSeconds
			if duration <= 0 || !withinHalfWindow(duration, thresholds) {
				continue
			}
		}
		picks.firstEnd = &candidate
		break
	}
	if picks.firstEnd == nil {
		if len(halftimes) == 0 {
			miss(SlotFirstHalfEnd, "no qualifying break candidate")
		} else {
			miss(SlotFirstHalfEnd, fmt.Sprintf("no break candidate yields a first half of %d-%d minutes",
				thresholds.HalfMinMinutes, thresholds.HalfMaxMinutes))
		}
	}

	for i := range starts {
		candidate := starts[i]
		if picks.firstEnd == nil {
			break
		}
		gap := candidate.AbsoluteSeconds - picks.firstEnd.AbsoluteSeconds
		if !withinBreakWindow(gap, thresholds) {
			continue
		}
		picks.secondStart = &candidate
		break
	}
	if picks.secondStart == nil {
		miss(SlotSecondHalfStart, "no phase start candidate follows the break within the allowed window")
	}

	for i := range ends {
		candidate := ends[i]
		if picks.secondStart == nil {
			break
		}
		duration := candidate.AbsoluteSeconds - picks.secondStart.AbsoluteSeconds
		if duration <= 0 || !withinHalfWindow(duration, thresholds) {
			continue
		}
		picks.matchEnd = &candidate
		break
	}
	if picks.matchEnd == nil {
		if len(ends) == 0 {
			miss(SlotMatchEnd, "no qualifying match end candidate")
		} else {
			miss(SlotMatchEnd, fmt.Sprintf("no match end candidate yields a second half of %d-%d minutes",
				thresholds.HalfMinMinutes, thresholds.HalfMaxMinutes))
		}
	}

	return picks, unresolved
}

func boundaryTimeline(picks boundaryPicks, unresolved []Unresolved) Timeline {
	timeline := Timeline{Mode: ModeBoundary, Unresolved: unresolved}

	add := func(slot string, event *AnnotationEvent) {
		if event == nil {
			return
		}
		entry := entryFromEvent(*event)
		entry.Slot = slot
		timeline.Entries = append(timeline.Entries, entry)
	}
	add(SlotFirstHalfStart, picks.firstStart)
	add(SlotFirstHalfEnd, picks.firstEnd)
	add(SlotSecondHalfStart, picks.secondStart)
	add(SlotMatchEnd, picks.matchEnd)

	timeline.Stats = computeStats(timeline.Entries)
	return timeline
}
