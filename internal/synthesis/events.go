package synthesis

import (
	"sort"

	"matchlens/internal/store"
)

// AnnotationEvent is a candidate real-world occurrence derived from one done
// record. Synthesis operates on events, never on raw records.
type AnnotationEvent struct {
	ClipID          string
	Category        string
	Confidence      int
	Evidence        string
	Indicators      []string
	OffsetSeconds   int
	AbsoluteSeconds float64
	Half            int
	Kickout         *store.KickoutFields
}

// EventsFromRecords projects done records into annotation events. Failed and
// pending records contribute nothing; they are not evidence of absence. The
// absolute time of a kickout event is the clip offset plus the in-clip ball
// contact offset. Records without a segment label are assigned a half by the
// configured boundary offset.
func EventsFromRecords(records []*store.Record, halfBoundarySeconds int) []AnnotationEvent {
	if halfBoundarySeconds <= 0 {
		halfBoundarySeconds = 35 * 60
	}
	events := make([]AnnotationEvent, 0, len(records))
	for _, record := range records {
		if record == nil || record.Status != store.StatusDone || record.Extraction == nil {
			continue
		}
		extraction := record.Extraction
		event := AnnotationEvent{
			ClipID:          record.ClipID,
			Category:        extraction.Category,
			Confidence:      extraction.Confidence,
			Evidence:        extraction.Evidence,
			Indicators:      extraction.Indicators,
			OffsetSeconds:   record.OffsetSeconds,
			AbsoluteSeconds: float64(record.OffsetSeconds),
			Kickout:         extraction.Kickout,
		}
		if extraction.Kickout != nil {
			event.AbsoluteSeconds += extraction.Kickout.ContactOffsetSecs
		}
		switch record.Segment {
		case "first_half":
			event.Half = 1
		case "second_half":
			event.Half = 2
		default:
			if record.OffsetSeconds < halfBoundarySeconds {
				event.Half = 1
			} else {
				event.Half = 2
			}
		}
		events = append(events, event)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].AbsoluteSeconds != events[j].AbsoluteSeconds {
			return events[i].AbsoluteSeconds < events[j].AbsoluteSeconds
		}
		return events[i].ClipID < events[j].ClipID
	})
	return events
}
