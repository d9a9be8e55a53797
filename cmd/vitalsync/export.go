package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vitalsync/vitalsync/internal/export"
	"github.com/vitalsync/vitalsync/internal/health"
)

func init() {
	rootCmd.AddCommand(newExportCmd())
}

func newExportCmd() *cobra.Command {
	var (
		from   string
		to     string
		dest   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export cached health data to files, one per day",
		Long: "Exports the selected date range from the local cache into the " +
			"destination directory. Ctrl-C stops cleanly between days.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			yesterday := health.Day(time.Now()).AddDate(0, 0, -1)
			start, err := parseDay(from, yesterday)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			end, err := parseDay(to, yesterday)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			if dest == "" {
				dest = viper.GetString("destination")
			}
			if format == "" {
				format = viper.GetString("format")
			}

			store, err := openStore()
			if err != nil {
				return err
			}

			orch := &export.Orchestrator{
				Fetch: store,
				Write: export.FileWriter{Format: format},
				Progress: func(processed, total int, dateLabel string) {
					fmt.Printf("%s %s (%d/%d)\n", cyan("exported"), dateLabel, processed, total)
				},
			}

			dates := export.DateRange(start, end)
			res := orch.ExportDates(cmd.Context(), dates, dest)

			if err := export.RecordResult(cmd.Context(), store, res, export.SourceManual, start, end); err != nil {
				fmt.Println(red("history not recorded:"), err)
			}

			switch {
			case res.IsFullSuccess():
				fmt.Println(green(res.Summary()))
			case res.IsFailure():
				fmt.Println(red(res.Summary()))
				return fmt.Errorf("export failed")
			default:
				fmt.Println(res.Summary())
				for _, f := range res.FailedDates {
					fmt.Printf("  %s %s: %s\n", red("failed"), f.Date.Format(health.DayLayout), f.Reason.Description())
				}
			}
			return nil
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVar(&from, "from", "", "First day to export (2006-01-02, default yesterday)")
	cmd.Flags().StringVar(&to, "to", "", "Last day to export (2006-01-02, default yesterday)")
	cmd.Flags().StringVarP(&dest, "dest", "o", "", "Destination directory")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: markdown or json")
	return cmd
}

func parseDay(s string, fallback time.Time) (time.Time, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseInLocation(health.DayLayout, s, time.Local)
}
