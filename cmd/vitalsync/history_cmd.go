package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent export runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			store, err := openStore()
			if err != nil {
				return err
			}
			entries, err := store.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No exports recorded yet.")
				return nil
			}

			for _, e := range entries {
				status := green("ok")
				if e.FailureReason != "" {
					status = red(e.FailureReason)
				}
				fmt.Printf("%s  %-9s %s to %s  %d/%d days  %s\n",
					humanize.Time(e.RanAt),
					e.Source,
					e.RangeStart, e.RangeEnd,
					e.SuccessCount, e.TotalCount,
					status)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum runs to show")
	return cmd
}
