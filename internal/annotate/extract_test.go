package annotate_test

import (
	"errors"
	"testing"

	"matchlens/internal/annotate"
	"matchlens/internal/services"
	"matchlens/internal/store"
)

const boundaryResponse = `TIMESTAMP: 00:00
CATEGORY: GAME_START
CONFIDENCE: 9

KEY_INDICATORS:
- Referee throwing ball up at center circle
- Two players contesting the throw-in
- Teams in kickoff formation

TIMELINE_RELEVANCE:
Throw-in ceremony marks the start of the first half.`

func TestExtractBoundary(t *testing.T) {
	extraction, err := annotate.Extract(annotate.ModeBoundary, boundaryResponse)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if extraction.Category != store.CategoryGameStart {
		t.Fatalf("unexpected category %q", extraction.Category)
	}
	if extraction.Confidence != 9 {
		t.Fatalf("unexpected confidence %d", extraction.Confidence)
	}
	if len(extraction.Indicators) != 3 {
		t.Fatalf("expected 3 indicators, got %v", extraction.Indicators)
	}
	if extraction.Evidence != "Throw-in ceremony marks the start of the first half." {
		t.Fatalf("unexpected evidence %q", extraction.Evidence)
	}
}

func TestExtractBoundaryToleratesBracketsAndRatios(t *testing.T) {
	raw := "CATEGORY: [HALFTIME]\nCONFIDENCE: [7/10]\nTIMELINE_RELEVANCE: players practicing casually"
	extraction, err := annotate.Extract(annotate.ModeBoundary, raw)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if extraction.Category != store.CategoryHalftime || extraction.Confidence != 7 {
		t.Fatalf("unexpected extraction: %+v", extraction)
	}
}

func TestExtractBoundaryRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing category", "CONFIDENCE: 8"},
		{"unknown category", "CATEGORY: PENALTY\nCONFIDENCE: 8"},
		{"missing confidence", "CATEGORY: ACTIVE_PLAY"},
		{"confidence out of range", "CATEGORY: ACTIVE_PLAY\nCONFIDENCE: 11"},
		{"confidence zero", "CATEGORY: ACTIVE_PLAY\nCONFIDENCE: 0"},
		{"confidence not numeric", "CATEGORY: ACTIVE_PLAY\nCONFIDENCE: high"},
		{"empty response", ""},
		{"prose response", "This clip shows an exciting passage of play."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := annotate.Extract(annotate.ModeBoundary, tc.raw)
			if !errors.Is(err, services.ErrExtraction) {
				t.Fatalf("expected extraction error, got %v", err)
			}
			if services.IsRetryable(err) {
				t.Fatal("extraction failures must not be retryable")
			}
		})
	}
}

const kickoutResponse = `KICKOUT: YES
CONFIDENCE: 8
HALF: first half
CLIP_TIME: 12:03
TRIGGER_EVENT: Shot went wide of the posts
EXACT_CONTACT_TIME: 4.5 seconds
KICKING_TEAM: Team A
KICK_DISTANCE: Long
KICK_DIRECTION: Center
POSSESSION_WON_BY: Team B
POSSESSION_LOCATION: Midfield
NEXT_ACTION: Quick counter attack up the left wing
GOALKEEPER_JERSEY: Yellow
TACTICAL_CONTEXT: Full stoppage, players cleared and spread before the kick.`

func TestExtractKickoutYes(t *testing.T) {
	extraction, err := annotate.Extract(annotate.ModeKickout, kickoutResponse)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if extraction.Category != store.CategoryKickout {
		t.Fatalf("unexpected category %q", extraction.Category)
	}
	if extraction.Kickout == nil {
		t.Fatal("expected kickout fields")
	}
	if extraction.Kickout.ContactOffsetSecs != 4.5 {
		t.Fatalf("unexpected contact offset %v", extraction.Kickout.ContactOffsetSecs)
	}
	if extraction.Kickout.KickingTeam != "Team A" || extraction.Kickout.PossessionWonBy != "Team B" {
		t.Fatalf("unexpected kickout fields: %+v", extraction.Kickout)
	}
}

func TestExtractKickoutNo(t *testing.T) {
	raw := "KICKOUT: NO\nCONFIDENCE: 6\nREASONING: Goalkeeper cleared from hands during active play."
	extraction, err := annotate.Extract(annotate.ModeKickout, raw)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if extraction.Category != store.CategoryNoKickout {
		t.Fatalf("unexpected category %q", extraction.Category)
	}
	if extraction.Kickout != nil {
		t.Fatalf("negative detection must not carry kickout fields: %+v", extraction.Kickout)
	}
	if extraction.Evidence == "" {
		t.Fatal("expected reasoning carried as evidence")
	}
}

func TestExtractKickoutRejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"missing verdict", "CONFIDENCE: 8"},
		{"ambiguous verdict", "KICKOUT: MAYBE\nCONFIDENCE: 8"},
		{"yes without contact time", "KICKOUT: YES\nCONFIDENCE: 8\nKICKING_TEAM: Team A"},
		{"yes without team", "KICKOUT: YES\nCONFIDENCE: 8\nEXACT_CONTACT_TIME: 3.0"},
		{"contact time not numeric", "KICKOUT: YES\nCONFIDENCE: 8\nEXACT_CONTACT_TIME: early\nKICKING_TEAM: Team A"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := annotate.Extract(annotate.ModeKickout, tc.raw)
			if !errors.Is(err, services.ErrExtraction) {
				t.Fatalf("expected extraction error, got %v", err)
			}
		})
	}
}
