package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"matchlens/internal/annotate"
	"matchlens/internal/pipeline"
	"matchlens/internal/report"
)

func newSynthesizeCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string

	cmd := &cobra.Command{
		Use:   "synthesize",
		Short: "Reduce persisted records into the match timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := annotate.ParseMode(modeFlag)
			if !ok {
				return fmt.Errorf("unknown mode %q (expected boundary or kickout)", modeFlag)
			}

			st, cfg, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			// Synthesis reads the store only; no capability is needed.
			p := pipeline.New(cfg, st, nil, logger)
			timeline, artifact, err := p.Synthesize(cmd.Context(), mode)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report.RenderTimeline(out, report.Build(timeline))
			fmt.Fprintf(out, "\nTimeline written to %s\n", artifact)
			return nil
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(annotate.ModeBoundary), "Analysis mode: boundary or kickout")
	return cmd
}
