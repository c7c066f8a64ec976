package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/models"
)

func scoreCommand(c *cli) *cobra.Command {
	var venueID, file string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one reading (JSON) against the venue's learned patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := stdinOrFile(file)
			if err != nil {
				return fmt.Errorf("failed to open reading: %w", err)
			}
			defer f.Close()

			var r models.Reading
			if err := json.NewDecoder(f).Decode(&r); err != nil {
				return fmt.Errorf("failed to decode reading: %w", err)
			}

			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			// Score only reads stored snapshots; a one-shot run computes a
			// missing one first.
			if _, err := a.monitor.Snapshot(cmd.Context(), venueID); err != nil {
				logger.Warn("Scoring against baseline: %v", err)
			}
			result, err := a.monitor.Score(cmd.Context(), venueID, r)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().StringVar(&venueID, "venue", "", "Venue ID to score against")
	cmd.Flags().StringVarP(&file, "file", "f", "-", `Reading JSON file, "-" for stdin`)
	_ = cmd.MarkFlagRequired("venue")
	return cmd
}

// stdinOrFile opens path, or stdin for "-".
func stdinOrFile(path string) (*os.File, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	return os.Open(path)
}
