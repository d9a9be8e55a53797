package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vitalsync/vitalsync/internal/schedule"
)

func init() {
	rootCmd.AddCommand(newScheduleCmd())
}

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show or change the automatic export schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showSchedule()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Turn scheduled exports on",
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateSchedule(func(s *schedule.Schedule) { s.IsEnabled = true })
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Turn scheduled exports off",
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateSchedule(func(s *schedule.Schedule) { s.IsEnabled = false })
		},
	})
	cmd.AddCommand(newScheduleSetCmd())
	return cmd
}

func newScheduleSetCmd() *cobra.Command {
	var (
		frequency string
		hour      int
		minute    int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set export frequency and preferred time",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return updateSchedule(func(s *schedule.Schedule) {
				if cmd.Flags().Changed("frequency") {
					s.Frequency = schedule.Frequency(frequency)
				}
				if cmd.Flags().Changed("hour") {
					s.PreferredHour = hour
				}
				if cmd.Flags().Changed("minute") {
					s.PreferredMinute = minute
				}
			})
		},
	}

	cmd.Flags().StringVar(&frequency, "frequency", "", "daily or weekly")
	cmd.Flags().IntVar(&hour, "hour", 9, "Preferred hour of day (0-23)")
	cmd.Flags().IntVar(&minute, "minute", 0, "Preferred minute (0-59)")
	return cmd
}

func updateSchedule(mutate func(*schedule.Schedule)) error {
	store := schedule.NewStore(schedulePath())
	sched, err := store.Load()
	if err != nil {
		return err
	}
	mutate(&sched)
	if sched.Frequency != schedule.FrequencyDaily && sched.Frequency != schedule.FrequencyWeekly {
		return fmt.Errorf("unknown frequency %q", sched.Frequency)
	}
	if sched.PreferredHour < 0 || sched.PreferredHour > 23 ||
		sched.PreferredMinute < 0 || sched.PreferredMinute > 59 {
		return fmt.Errorf("invalid preferred time %02d:%02d", sched.PreferredHour, sched.PreferredMinute)
	}
	if err := store.Save(sched); err != nil {
		return err
	}
	return showSchedule()
}

func showSchedule() error {
	sched, err := schedule.NewStore(schedulePath()).Load()
	if err != nil {
		return err
	}

	state := red("disabled")
	if sched.IsEnabled {
		state = green("enabled")
	}
	fmt.Printf("Scheduled exports: %s\n", state)
	fmt.Printf("Frequency:         %s\n", sched.Frequency)
	fmt.Printf("Preferred time:    %02d:%02d\n", sched.PreferredHour, sched.PreferredMinute)
	if sched.LastExportDate != nil {
		fmt.Printf("Last export:       %s (%s)\n",
			sched.LastExportDate.Format("2006-01-02 15:04"),
			humanize.Time(*sched.LastExportDate))
	} else {
		fmt.Println("Last export:       never")
	}
	return nil
}
