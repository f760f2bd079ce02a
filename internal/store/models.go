package store

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a clip record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusInFlight Status = "in_flight"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusInFlight,
	StatusDone,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Categories the inference capability classifies a clip into.
const (
	CategoryGameStart  = "GAME_START"
	CategoryHalftime   = "HALFTIME"
	CategoryActivePlay = "ACTIVE_PLAY"
	CategoryGameEnd    = "GAME_END"
	CategoryKickout    = "KICKOUT"
	CategoryNoKickout  = "NO_KICKOUT"
)

// KickoutFields carries the tactical attributes extracted from a confirmed
// kickout detection.
type KickoutFields struct {
	Trigger            string  `json:"trigger,omitempty"`
	ContactOffsetSecs  float64 `json:"contact_offset_seconds,omitempty"`
	KickingTeam        string  `json:"kicking_team,omitempty"`
	KickDistance       string  `json:"kick_distance,omitempty"`
	KickDirection      string  `json:"kick_direction,omitempty"`
	PossessionWonBy    string  `json:"possession_won_by,omitempty"`
	PossessionLocation string  `json:"possession_location,omitempty"`
	NextAction         string  `json:"next_action,omitempty"`
	GoalkeeperJersey   string  `json:"goalkeeper_jersey,omitempty"`
}

// Extraction is the typed projection of a raw capability response. It is only
// present on records whose strict schema extraction succeeded.
type Extraction struct {
	Category   string         `json:"category"`
	Confidence int            `json:"confidence"`
	Evidence   string         `json:"evidence"`
	Indicators []string       `json:"indicators,omitempty"`
	Kickout    *KickoutFields `json:"kickout,omitempty"`
}

// Record is the persisted outcome of analyzing one clip. Exactly one record
// exists per clip artifact; offset_seconds is decoded once at enumeration time
// and never recomputed after it has been persisted.
type Record struct {
	ClipID        string
	OffsetSeconds int
	Segment       string
	Status        Status
	RawResponse   string
	Extraction    *Extraction
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// MarkDone transitions the record to done with its raw response and the
// extraction parsed from it.
func (r *Record) MarkDone(raw string, extraction *Extraction) {
	r.Status = StatusDone
	r.RawResponse = raw
	r.Extraction = extraction
	r.FailureReason = ""
}

// MarkFailed transitions the record to failed. The raw response, when one was
// received, is retained for diagnosis.
func (r *Record) MarkFailed(reason, raw string) {
	r.Status = StatusFailed
	r.FailureReason = reason
	r.RawResponse = raw
	r.Extraction = nil
}

// IsTerminal reports whether the record has reached done or failed.
func (r *Record) IsTerminal() bool {
	return r.Status == StatusDone || r.Status == StatusFailed
}

// StatsSummary aggregates record counts per lifecycle state.
type StatsSummary struct {
	Total    int
	Pending  int
	InFlight int
	Done     int
	Failed   int
}
