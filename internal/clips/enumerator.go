package clips

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"matchlens/internal/logging"
)

// Clip describes one fixed-duration segment artifact discovered on disk.
type Clip struct {
	ID            string
	Path          string
	OffsetSeconds int
	Segment       string
}

// Filter restricts enumeration for partial or test runs. MaxOffset of zero
// means no upper bound. Limit of zero means no cap.
type Filter struct {
	MinOffset int
	MaxOffset int
	Segment   string
	Limit     int
}

// Segment labels recognized from the clip directory layout.
const (
	SegmentFirstHalf  = "first_half"
	SegmentSecondHalf = "second_half"
)

var clipNamePattern = regexp.MustCompile(`^clip_(\d{2})m(\d{2})s$`)

// ParseClipName decodes the nominal time offset from a clip_<MM>m<SS>s name.
// The extension, if any, is ignored. The offset is minutes*60 + seconds.
func ParseClipName(name string) (int, error) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	match := clipNamePattern.FindStringSubmatch(stem)
	if match == nil {
		return 0, fmt.Errorf("clip name %q does not match clip_<MM>m<SS>s", name)
	}
	minutes, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("clip name %q: parse minutes: %w", name, err)
	}
	seconds, err := strconv.Atoi(match[2])
	if err != nil {
		return 0, fmt.Errorf("clip name %q: parse seconds: %w", name, err)
	}
	if seconds > 59 {
		return 0, fmt.Errorf("clip name %q: seconds component %d out of range", name, seconds)
	}
	return minutes*60 + seconds, nil
}

// FormatOffset renders an offset in the MM:SS form used throughout reports.
func FormatOffset(offsetSeconds int) string {
	if offsetSeconds < 0 {
		offsetSeconds = 0
	}
	return fmt.Sprintf("%02d:%02d", offsetSeconds/60, offsetSeconds%60)
}

// Enumerate discovers clip artifacts under root, ordered by offset ascending.
// Artifacts whose names do not match the encoding are logged and skipped, as
// are duplicate offsets within a segment; neither aborts the run. A clip in a
// first_half/ or second_half/ subdirectory carries that segment label.
func Enumerate(root string, filter Filter, logger *slog.Logger) ([]Clip, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("inspect clips dir %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("clips path %q is not a directory", root)
	}

	var found []Clip
	seen := make(map[string]string)
	walkErr := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), ".mp4") {
			return nil
		}
		offset, err := ParseClipName(entry.Name())
		if err != nil {
			logger.Warn("skipping malformed clip name",
				logging.String("artifact", entry.Name()),
				logging.Error(err),
			)
			return nil
		}
		segment := segmentForPath(root, path)
		clip := Clip{
			ID:            strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Path:          path,
			OffsetSeconds: offset,
			Segment:       segment,
		}
		if prior, ok := seen[clip.ID]; ok {
			logger.Warn("skipping duplicate clip offset",
				logging.String("artifact", path),
				logging.String("duplicate_of", prior),
				logging.Int(logging.FieldOffset, offset),
			)
			return nil
		}
		seen[clip.ID] = path
		found = append(found, clip)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("enumerate clips: %w", walkErr)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].OffsetSeconds != found[j].OffsetSeconds {
			return found[i].OffsetSeconds < found[j].OffsetSeconds
		}
		return found[i].Segment < found[j].Segment
	})

	filtered := found[:0]
	for _, clip := range found {
		if clip.OffsetSeconds < filter.MinOffset {
			continue
		}
		if filter.MaxOffset > 0 && clip.OffsetSeconds > filter.MaxOffset {
			continue
		}
		if filter.Segment != "" && clip.Segment != filter.Segment {
			continue
		}
		filtered = append(filtered, clip)
		if filter.Limit > 0 && len(filtered) >= filter.Limit {
			break
		}
	}
	return filtered, nil
}

func segmentForPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return ""
	}
	switch parts[0] {
	case SegmentFirstHalf, SegmentSecondHalf:
		return parts[0]
	default:
		return ""
	}
}
