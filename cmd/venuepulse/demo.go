package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/venuepulse/internal/demo"
	"github.com/rewired-gh/venuepulse/internal/logger"
)

func demoCommand(c *cli) *cobra.Command {
	var (
		venueID  string
		days     int
		seed     int64
		interval time.Duration
		analyze  bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Seed the local reading store with synthetic history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			repo, err := a.requireReadings()
			if err != nil {
				return err
			}

			capacity := 0
			loc := time.UTC
			if v, ok := c.cfg.Venue(venueID); ok {
				capacity = v.Capacity
				if loc, err = v.Location(); err != nil {
					return err
				}
			}

			generated, err := demo.Generate(demo.Config{
				VenueID:  venueID,
				Days:     days,
				Interval: interval,
				Capacity: capacity,
				Seed:     seed,
				Location: loc,
			}, time.Now())
			if err != nil {
				return err
			}
			if err := repo.SaveReadings(cmd.Context(), generated); err != nil {
				return err
			}
			logger.Info("Generated %d readings for %s over %d days", len(generated), venueID, days)

			if !analyze {
				return nil
			}
			snap, err := a.monitor.Refresh(cmd.Context(), venueID)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout)
			printSummary(os.Stdout, snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&venueID, "venue", "demo-venue", "Venue ID for the generated readings")
	cmd.Flags().IntVar(&days, "days", 56, "Days of history to generate")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Minute, "Time between readings")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Analyze the venue after seeding")
	return cmd
}
