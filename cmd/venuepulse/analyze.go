package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/venuepulse/internal/models"
)

func analyzeCommand(c *cli) *cobra.Command {
	var (
		venueID string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a full analysis for one venue and store the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.monitor.Refresh(cmd.Context(), venueID)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			printSummary(os.Stdout, snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&venueID, "venue", "", "Venue ID to analyze")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full snapshot as JSON")
	_ = cmd.MarkFlagRequired("venue")
	return cmd
}

func printSummary(w io.Writer, snap *models.LearningSnapshot) {
	fmt.Fprintf(w, "Venue:     %s\n", snap.VenueID)
	fmt.Fprintf(w, "Status:    %s (%d%%)\n", snap.Status, snap.Progress)
	fmt.Fprintf(w, "Readings:  %d over %.1f weeks\n", snap.TotalReadings, snap.WeeksOfData)
	if snap.TotalReadings == 0 {
		return
	}
	fmt.Fprintf(w, "Busiest:   %s around %02d:00\n", snap.Profile.PeakDay, snap.Profile.PeakHour)
	fmt.Fprintf(w, "Dwell:     avg %.0f min (best %.0f, worst %.0f)\n",
		snap.Profile.AvgDwellMinutes, snap.Profile.BestDwellMinutes, snap.Profile.WorstDwellMinutes)

	fmt.Fprintln(w, "\nBest nights:")
	for _, win := range models.AllWindows() {
		best, ok := snap.BestOccurrences[win]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "  %-20s %s %s: %d guests, peak %d, %.0f min dwell (%d%% confidence)\n",
			win.Label(), best.DayOfWeek, best.Date, best.TotalGuests, best.PeakOccupancy, best.AvgDwellMinutes, best.Confidence)
	}

	if len(snap.Patterns) > 0 {
		fmt.Fprintln(w, "\nPatterns:")
		for _, p := range snap.Patterns {
			fmt.Fprintf(w, "  - %s (%d%% confidence)\n", p.Statement, p.Confidence)
		}
	}
}
