package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"matchlens/internal/config"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var dirFlag string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one JSON record file per analyzed clip",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cfg, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			dir := strings.TrimSpace(dirFlag)
			if dir == "" {
				dir = filepath.Join(cfg.Paths.ResultsDir, "records")
			} else {
				expanded, err := config.ExpandPath(dir)
				if err != nil {
					return fmt.Errorf("resolve export directory: %w", err)
				}
				dir = expanded
			}

			count, err := st.Export(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", count, dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dirFlag, "dir", "d", "", "Destination directory (default <results>/records)")
	return cmd
}
