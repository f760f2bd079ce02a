package annotate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"matchlens/internal/services"
	"matchlens/internal/store"
)

var (
	keyLinePattern = regexp.MustCompile(`^([A-Z][A-Z0-9_]*):\s*(.*)$`)
	floatPattern   = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

var boundaryCategories = map[string]struct{}{
	store.CategoryGameStart:  {},
	store.CategoryHalftime:   {},
	store.CategoryActivePlay: {},
	store.CategoryGameEnd:    {},
}

// Extract parses a raw capability response into a typed extraction using the
// strict mode-specific schema. Any nonconforming response is rejected with
// an extraction error; partial responses are never silently repaired.
func Extract(mode Mode, raw string) (*store.Extraction, error) {
	parsed := parseResponse(raw)
	switch mode {
	case ModeBoundary:
		return extractBoundary(parsed)
	case ModeKickout:
		return extractKickout(parsed)
	default:
		return nil, extractErr(fmt.Sprintf("unknown analysis mode %q", mode))
	}
}

type response struct {
	fields map[string]string
	blocks map[string][]string
}

// parseResponse splits a KEY: VALUE response into inline fields and block
// sections. A key line with no inline value opens a block that collects the
// following lines (bullet markers stripped) until the next key line.
func parseResponse(raw string) response {
	parsed := response{
		fields: make(map[string]string),
		blocks: make(map[string][]string),
	}
	current := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if match := keyLinePattern.FindStringSubmatch(line); match != nil {
			key := match[1]
			value := cleanValue(match[2])
			if value != "" {
				if _, seen := parsed.fields[key]; !seen {
					parsed.fields[key] = value
				}
				current = ""
			} else {
				current = key
			}
			continue
		}
		if current == "" {
			continue
		}
		entry := cleanValue(strings.TrimPrefix(line, "- "))
		if entry != "" {
			parsed.blocks[current] = append(parsed.blocks[current], entry)
		}
	}
	return parsed
}

func cleanValue(value string) string {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, "[")
	value = strings.TrimSuffix(value, "]")
	value = strings.Trim(value, `"`)
	return strings.TrimSpace(value)
}

// section returns the inline field when present, otherwise the joined block.
func (r response) section(key string) string {
	if value, ok := r.fields[key]; ok {
		return value
	}
	return strings.Join(r.blocks[key], " ")
}

func extractBoundary(parsed response) (*store.Extraction, error) {
	category := strings.ToUpper(parsed.fields["CATEGORY"])
	if category == "" {
		return nil, extractErr("missing CATEGORY field")
	}
	if _, ok := boundaryCategories[category]; !ok {
		return nil, extractErr(fmt.Sprintf("unknown category %q", category))
	}
	confidence, err := parseConfidence(parsed.fields["CONFIDENCE"])
	if err != nil {
		return nil, err
	}
	return &store.Extraction{
		Category:   category,
		Confidence: confidence,
		Evidence:   parsed.section("TIMELINE_RELEVANCE"),
		Indicators: parsed.blocks["KEY_INDICATORS"],
	}, nil
}

func extractKickout(parsed response) (*store.Extraction, error) {
	verdict := strings.ToUpper(parsed.fields["KICKOUT"])
	if verdict != "YES" && verdict != "NO" {
		return nil, extractErr(fmt.Sprintf("KICKOUT verdict must be YES or NO, got %q", parsed.fields["KICKOUT"]))
	}
	confidence, err := parseConfidence(parsed.fields["CONFIDENCE"])
	if err != nil {
		return nil, err
	}

	if verdict == "NO" {
		return &store.Extraction{
			Category:   store.CategoryNoKickout,
			Confidence: confidence,
			Evidence:   parsed.section("REASONING"),
		}, nil
	}

	contact, err := parseSeconds(parsed.fields["EXACT_CONTACT_TIME"])
	if err != nil {
		return nil, err
	}
	team := parsed.fields["KICKING_TEAM"]
	if team == "" {
		return nil, extractErr("confirmed kickout missing KICKING_TEAM field")
	}
	return &store.Extraction{
		Category:   store.CategoryKickout,
		Confidence: confidence,
		Evidence:   parsed.section("TACTICAL_CONTEXT"),
		Kickout: &store.KickoutFields{
			Trigger:            parsed.fields["TRIGGER_EVENT"],
			ContactOffsetSecs:  contact,
			KickingTeam:        team,
			KickDistance:       parsed.fields["KICK_DISTANCE"],
			KickDirection:      parsed.fields["KICK_DIRECTION"],
			PossessionWonBy:    parsed.fields["POSSESSION_WON_BY"],
			PossessionLocation: parsed.fields["POSSESSION_LOCATION"],
			NextAction:         parsed.fields["NEXT_ACTION"],
			GoalkeeperJersey:   parsed.fields["GOALKEEPER_JERSEY"],
		},
	}, nil
}

func parseConfidence(value string) (int, error) {
	if value == "" {
		return 0, extractErr("missing CONFIDENCE field")
	}
	// Tolerate "9/10" style answers; everything else must be a bare integer.
	if idx := strings.IndexByte(value, '/'); idx >= 0 {
		value = value[:idx]
	}
	confidence, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, extractErr(fmt.Sprintf("confidence %q is not an integer", value))
	}
	if confidence < 1 || confidence > 10 {
		return 0, extractErr(fmt.Sprintf("confidence %d outside 1-10", confidence))
	}
	return confidence, nil
}

// parseSeconds reads the first decimal number out of answers like
// "4.5 seconds" or "[3.2]".
func parseSeconds(value string) (float64, error) {
	if value == "" {
		return 0, extractErr("confirmed kickout missing EXACT_CONTACT_TIME field")
	}
	match := floatPattern.FindString(value)
	if match == "" {
		return 0, extractErr(fmt.Sprintf("contact time %q has no numeric value", value))
	}
	seconds, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, extractErr(fmt.Sprintf("contact time %q is not a number", value))
	}
	return seconds, nil
}

func extractErr(message string) error {
	return services.Wrap(services.ErrExtraction, "annotate", "extract", message, nil)
}
