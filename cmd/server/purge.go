package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete smart guesses that have not been used recently",
	Long: `Delete smart guesses whose last use is older than the configured maximum age.

Examples:
  timeslots purge
  timeslots purge --max-age 168h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAge, _ := cmd.Flags().GetDuration("max-age")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if maxAge <= 0 {
			maxAge = a.cfg.SmartGuess.MaxAge
		}
		before := len(a.guesses.All())
		a.guesses.PurgeEntries(a.clock.Now().Add(-maxAge))
		after := len(a.guesses.All())

		fmt.Fprintf(cmd.OutOrStdout(), "purged %d smart guesses unused for %s (%d remain)\n", before-after, maxAge, after)
		return nil
	},
}

func init() {
	purgeCmd.Flags().Duration("max-age", 0, "override the configured maximum age")
}
