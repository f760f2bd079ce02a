package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"matchlens/internal/synthesis"
)

var titleCaser = cases.Title(language.English)

// Label turns an enum-style identifier like GAME_START or first_half into a
// human heading like "Game Start".
func Label(identifier string) string {
	return titleCaser.String(strings.ReplaceAll(strings.ToLower(identifier), "_", " "))
}

// RenderTimeline writes the human-readable timeline table followed by
// unresolved slots and aggregate statistics.
func RenderTimeline(w io.Writer, doc Document) {
	fmt.Fprintf(w, "Timeline (%s mode, %d events)\n\n", doc.MatchInfo.Mode, doc.MatchInfo.TotalEvents)

	if len(doc.Events) > 0 {
		headers := []string{"Time", "Category", "Half", "Confidence", "Detail"}
		rows := make([][]string, 0, len(doc.Events))
		for _, event := range doc.Events {
			rows = append(rows, []string{
				event.Clock,
				eventLabel(event),
				Label(halfName(event.Half)),
				fmt.Sprintf("%d", event.Confidence),
				eventDetail(event),
			})
		}
		fmt.Fprintln(w, Table(headers, rows, []ColumnAlignment{AlignRight, AlignLeft, AlignLeft, AlignRight, AlignLeft}))
	} else {
		fmt.Fprintln(w, "No events resolved.")
	}

	if len(doc.Unresolved) > 0 {
		fmt.Fprintln(w, "\nUnresolved:")
		for _, item := range doc.Unresolved {
			fmt.Fprintf(w, "  %-20s %s\n", Label(item.Slot)+":", item.Reason)
		}
	}

	renderStatistics(w, doc.Statistics)
}

func eventLabel(event synthesis.Entry) string {
	if event.Slot != "" {
		return Label(event.Slot)
	}
	return Label(event.Category)
}

func eventDetail(event synthesis.Entry) string {
	if event.Team != "" {
		detail := event.Team
		if event.Kickout != nil && event.Kickout.PossessionWonBy != "" {
			detail += " -> possession " + event.Kickout.PossessionWonBy
		}
		return detail
	}
	return truncate(event.Evidence, 60)
}

func halfName(half int) string {
	if half == 2 {
		return "second_half"
	}
	return "first_half"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func renderStatistics(w io.Writer, stats synthesis.Statistics) {
	if stats.Total == 0 {
		return
	}
	fmt.Fprintf(w, "\nStatistics (%d total)\n", stats.Total)
	writeCounts(w, "by category", stats.ByCategory)
	writeCounts(w, "by half", stats.ByHalf)
	writeCounts(w, "by team", stats.ByTeam)
}

func writeCounts(w io.Writer, heading string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "  %s:\n", heading)
	for _, key := range keys {
		fmt.Fprintf(w, "    %-20s %d\n", Label(key)+":", counts[key])
	}
}

// ColumnAlignment selects per-column alignment for Table.
type ColumnAlignment int

const (
	AlignLeft ColumnAlignment = iota
	AlignRight
)

// Table renders a rounded-style table for terminal output.
func Table(headers []string, rows [][]string, aligns []ColumnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
