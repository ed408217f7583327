package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the time spent per category on a day",
	Long: `Print the time spent per category on a day.

Examples:
  timeslots summary
  timeslots summary --date 2026-04-14`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dateStr, _ := cmd.Flags().GetString("date")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		date := a.clock.Now()
		if dateStr != "" {
			date, err = time.ParseInLocation("2006-01-02", dateStr, a.cfg.Timezone)
			if err != nil {
				return fmt.Errorf("invalid --date %q: %w", dateStr, err)
			}
		}

		summary := a.slots.GetCategorySummary(date)
		out := cmd.OutOrStdout()
		if len(summary) == 0 {
			fmt.Fprintf(out, "no categorized time on %s\n", date.Format("2006-01-02"))
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "CATEGORY\tDURATION\n")
		for _, s := range summary {
			fmt.Fprintf(w, "%s\t%s\n", s.Category, time.Duration(s.DurationSeconds)*time.Second)
		}
		return w.Flush()
	},
}

func init() {
	summaryCmd.Flags().String("date", "", "day to summarize (YYYY-MM-DD, default today)")
}
