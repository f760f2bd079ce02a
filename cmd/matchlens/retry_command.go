package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Reset failed records to pending for the next run",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, _, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			count, err := st.RetryFailed(cmd.Context())
			if err != nil {
				return err
			}
			if count == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No failed records to retry")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset %d failed records to pending; rerun `matchlens analyze`\n", count)
			return nil
		},
	}
}
