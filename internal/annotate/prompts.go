package annotate

import (
	"fmt"
	"strings"

	"matchlens/internal/clips"
)

// Mode selects which analysis question is asked of every clip in a run.
type Mode string

const (
	// ModeBoundary classifies clips into match phase categories for
	// timeline boundary detection.
	ModeBoundary Mode = "boundary"
	// ModeKickout detects structured kickout restarts with tactical detail.
	ModeKickout Mode = "kickout"
)

// ParseMode converts a string into a known Mode.
func ParseMode(value string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeBoundary:
		return ModeBoundary, true
	case ModeKickout:
		return ModeKickout, true
	default:
		return "", false
	}
}

// Prompt renders the mode-specific prompt for one clip.
func Prompt(mode Mode, clip clips.Clip) (string, error) {
	switch mode {
	case ModeBoundary:
		return boundaryPrompt(clip), nil
	case ModeKickout:
		return kickoutPrompt(clip), nil
	default:
		return "", fmt.Errorf("unknown analysis mode %q", mode)
	}
}

func halfLabel(clip clips.Clip) string {
	if clip.Segment == clips.SegmentSecondHalf {
		return "second half"
	}
	return "first half"
}

func boundaryPrompt(clip clips.Clip) string {
	timestamp := clips.FormatOffset(clip.OffsetSeconds)
	return fmt.Sprintf(`You are analyzing a short GAA match clip recorded at %s.

Classify the clip into ONE of these categories with supporting evidence.

CATEGORIES:
1. GAME_START - Throw-in ceremony marking start of first/second half
2. HALFTIME - Warm-up, practice, casual play during break period
3. ACTIVE_PLAY - Competitive match action with organized teams
4. GAME_END - Final whistle, players permanently leaving field

RESPOND IN THIS EXACT FORMAT:

TIMESTAMP: %s
CATEGORY: [GAME_START/HALFTIME/ACTIVE_PLAY/GAME_END]
CONFIDENCE: [1-10]

KEY_INDICATORS:
- [Specific detail 1 that led to classification]
- [Specific detail 2 that led to classification]
- [Specific detail 3 that led to classification]

TIMELINE_RELEVANCE:
[One sentence explaining why this matters for half-time detection]

REQUIREMENTS:
- Be precise and specific
- Quote exact phrases describing what you observe
- If you see throw-in ceremony language, mark as GAME_START
- If you see players leaving field permanently, mark as GAME_END
- If you see casual/practice activity, mark as HALFTIME
- If you see competitive organized play, mark as ACTIVE_PLAY`, timestamp, timestamp)
}

func kickoutPrompt(clip clips.Clip) string {
	timestamp := clips.FormatOffset(clip.OffsetSeconds)
	half := halfLabel(clip)
	return fmt.Sprintf(`You are an expert GAA analyst watching a short clip from the %s at %s.

GOAL: Detect OFFICIAL GAA KICKOUTS with precise timing and tactical analysis.

GAA KICKOUT SEQUENCE:
1. TRIGGER: Ball goes out of play (wide/over/save)
2. SETUP: Players clear goal area and spread across field
3. KICKOUT: Goalkeeper places ball on ground, kicks from stationary position
4. CONTEST: Players run toward ball to contest possession
5. OUTCOME: Who wins possession and what happens next

STRICT OFFICIAL KICKOUT CRITERIA (ALL MUST BE PRESENT):
- Complete play stoppage after ball goes out of play
- Players deliberately CLEAR the goal area
- Goalkeeper places ball on GROUND (never from hands during active play)
- Clear PAUSE before kick (not immediate clearance)
- Players contest for possession after the kick

DO NOT DETECT goalkeeper clearances during active play, kicks from hands
without play stoppage, free kicks, or any other restart. If you cannot see
the complete sequence, it is NOT a kickout. Be extremely conservative.

OUTPUT FORMAT:
KICKOUT: [YES/NO]
CONFIDENCE: [1-10]
HALF: %s
CLIP_TIME: %s

IF KICKOUT = YES:
TRIGGER_EVENT: [What caused it]
EXACT_CONTACT_TIME: [X.X seconds when foot touches ball]
KICKING_TEAM: [Team A/Team B based on goalkeeper jersey]
KICK_DISTANCE: [Short/Medium/Long]
KICK_DIRECTION: [Left/Center/Right]
POSSESSION_WON_BY: [Team A/Team B/Contested/Unclear]
POSSESSION_LOCATION: [Field position where caught]
NEXT_ACTION: [What happened after possession]
GOALKEEPER_JERSEY: [Color of kicking goalkeeper]
TACTICAL_CONTEXT: [Full sequence description]

IF KICKOUT = NO:
REASONING: [Why not an official kickout]`, half, timestamp, half, timestamp)
}
