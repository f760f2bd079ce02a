package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"matchlens/internal/synthesis"
)

// MatchInfo describes how the timeline was produced.
type MatchInfo struct {
	AnalysisMethod string   `json:"analysis_method"`
	Mode           string   `json:"mode"`
	Categories     []string `json:"categories,omitempty"`
	TotalEvents    int      `json:"total_events"`
}

// Document is the single structured timeline artifact consumed by downstream
// tooling. Building it from the same timeline always yields identical bytes.
type Document struct {
	MatchInfo  MatchInfo              `json:"match_info"`
	Events     []synthesis.Entry      `json:"events"`
	Unresolved []synthesis.Unresolved `json:"unresolved,omitempty"`
	Statistics synthesis.Statistics   `json:"statistics"`
}

const analysisMethod = "clip_annotation_with_constraint_synthesis"

// Build assembles the output document from a synthesized timeline.
func Build(timeline synthesis.Timeline) Document {
	categories := make([]string, 0, len(timeline.Stats.ByCategory))
	for category := range timeline.Stats.ByCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	events := timeline.Entries
	if events == nil {
		events = []synthesis.Entry{}
	}
	return Document{
		MatchInfo: MatchInfo{
			AnalysisMethod: analysisMethod,
			Mode:           timeline.Mode,
			Categories:     categories,
			TotalEvents:    len(timeline.Entries),
		},
		Events:     events,
		Unresolved: timeline.Unresolved,
		Statistics: timeline.Stats,
	}
}

// WriteJSON persists the document atomically: the file is complete or absent,
// never half-written.
func WriteJSON(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode timeline document: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write timeline document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize timeline document: %w", err)
	}
	return nil
}
