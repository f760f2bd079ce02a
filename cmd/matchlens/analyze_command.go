package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"matchlens/internal/annotate"
	"matchlens/internal/clips"
	"matchlens/internal/pipeline"
	"matchlens/internal/services/gemini"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var modeFlag string
	var limitFlag int
	var minOffsetFlag int
	var maxOffsetFlag int
	var segmentFlag string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Annotate every clip through the inference service",
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

			filter := clips.Filter{
				MinOffset: minOffsetFlag,
				MaxOffset: maxOffsetFlag,
				Segment:   segmentFlag,
				Limit:     limitFlag,
			}
			if filter.Limit == 0 {
				filter.Limit = cfg.Pool.Limit
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			capability := gemini.NewClient(gemini.FromAppConfig(cfg))
			p := pipeline.New(cfg, st, capability, logger)

			result, err := p.Analyze(runCtx, mode, filter)
			out := cmd.OutOrStdout()
			if result.Enumerated > 0 || err == nil {
				fmt.Fprintf(out, "Clips:    %d\n", result.Enumerated)
				fmt.Fprintf(out, "Done:     %d\n", result.Summary.Done)
				fmt.Fprintf(out, "Failed:   %d\n", result.Summary.Failed)
				fmt.Fprintf(out, "Skipped:  %d\n", result.Summary.Skipped)
				fmt.Fprintf(out, "Elapsed:  %s\n", result.Summary.Elapsed.Round(timePrecision))
			}
			if err != nil {
				return err
			}
			if result.Summary.Failed > 0 {
				fmt.Fprintln(out, "Some clips failed; inspect `matchlens status` and rerun with `matchlens retry`.")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&modeFlag, "mode", "m", string(annotate.ModeBoundary), "Analysis mode: boundary or kickout")
	cmd.Flags().IntVar(&limitFlag, "limit", 0, "Maximum number of clips to process (0 = all)")
	cmd.Flags().IntVar(&minOffsetFlag, "min-offset", 0, "Skip clips before this offset in seconds")
	cmd.Flags().IntVar(&maxOffsetFlag, "max-offset", 0, "Skip clips after this offset in seconds (0 = unbounded)")
	cmd.Flags().StringVar(&segmentFlag, "segment", "", "Restrict to one segment: first_half or second_half")
	return cmd
}
