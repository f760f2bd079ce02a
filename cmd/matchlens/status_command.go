package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"matchlens/internal/report"
	"matchlens/internal/store"
)

const timePrecision = 100 * time.Millisecond

const failedPreviewLimit = 10

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts and recent failures",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			fmt.Fprintln(out, renderSectionHeader("Record store", colorize))
			rows := [][]string{
				{"Pending", fmt.Sprintf("%d", stats.Pending)},
				{"In flight", fmt.Sprintf("%d", stats.InFlight)},
				{"Done", fmt.Sprintf("%d", stats.Done)},
				{"Failed", fmt.Sprintf("%d", stats.Failed)},
				{"Total", fmt.Sprintf("%d", stats.Total)},
			}
			fmt.Fprintln(out, report.Table([]string{"Status", "Count"}, rows,
				[]report.ColumnAlignment{report.AlignLeft, report.AlignRight}))

			if stats.Failed == 0 {
				fmt.Fprintln(out, renderStatusLine("Failures", "none", false, colorize))
				return nil
			}

			failed, err := st.List(cmd.Context(), store.StatusFailed)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderStatusLine("Failures",
				fmt.Sprintf("%d records", len(failed)), true, colorize))

			preview := failed
			if len(preview) > failedPreviewLimit {
				preview = preview[:failedPreviewLimit]
			}
			failedRows := make([][]string, 0, len(preview))
			for _, record := range preview {
				failedRows = append(failedRows, []string{record.ClipID, record.FailureReason})
			}
			fmt.Fprintln(out, report.Table([]string{"Clip", "Reason"}, failedRows,
				[]report.ColumnAlignment{report.AlignLeft, report.AlignLeft}))
			if len(failed) > failedPreviewLimit {
				fmt.Fprintf(out, "  ... and %d more\n", len(failed)-failedPreviewLimit)
			}
			return nil
		},
	}
}
