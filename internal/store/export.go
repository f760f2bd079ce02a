package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExportedRecord is the self-describing per-clip document written by Export,
// one file per clip_id.
type ExportedRecord struct {
	ClipID        string      `json:"clip_id"`
	OffsetSeconds int         `json:"offset_seconds"`
	Segment       string      `json:"segment,omitempty"`
	Status        Status      `json:"status"`
	FailureReason string      `json:"failure_reason,omitempty"`
	Extraction    *Extraction `json:"extraction,omitempty"`
	RawResponse   string      `json:"raw_response,omitempty"`
	UpdatedAt     string      `json:"updated_at"`
}

// Export writes one JSON document per persisted record into dir. Each file is
// written to a temporary name and renamed into place so readers never observe
// a partial document.
func (s *Store) Export(ctx context.Context, dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export directory %q: %w", dir, err)
	}
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	for _, record := range records {
		doc := ExportedRecord{
			ClipID:        record.ClipID,
			OffsetSeconds: record.OffsetSeconds,
			Segment:       record.Segment,
			Status:        record.Status,
			FailureReason: record.FailureReason,
			Extraction:    record.Extraction,
			RawResponse:   record.RawResponse,
			UpdatedAt:     record.UpdatedAt.UTC().Format(time.RFC3339),
		}
		encoded, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return 0, fmt.Errorf("encode record %s: %w", record.ClipID, err)
		}
		target := filepath.Join(dir, record.ClipID+".json")
		tmp := target + ".tmp"
		if err := os.WriteFile(tmp, append(encoded, '\n'), 0o644); err != nil {
			return 0, fmt.Errorf("write record %s: %w", record.ClipID, err)
		}
		if err := os.Rename(tmp, target); err != nil {
			return 0, fmt.Errorf("finalize record %s: %w", record.ClipID, err)
		}
	}
	return len(records), nil
}
