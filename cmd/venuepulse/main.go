// Command venuepulse learns, per venue and time-of-week window, which
// conditions keep guests the longest and scores live conditions against
// that history.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/venuepulse/internal/config"
	"github.com/rewired-gh/venuepulse/internal/logger"
)

// cli carries state shared by all subcommands.
type cli struct {
	configPath string
	cfg        *config.Config
}

func main() {
	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "venuepulse",
		Short:         "Venue pattern learning and live scoring engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger.Init(cfg.Logging.Level, cfg.Logging.Format)
			if c.configPath != "" {
				logger.Debug("Configuration loaded from %s", c.configPath)
			}
			c.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "Path to configuration file (defaults plus VENUEPULSE_* environment when empty)")

	rootCmd.AddCommand(
		serveCommand(c),
		analyzeCommand(c),
		scoreCommand(c),
		demoCommand(c),
		exportCommand(c),
		importCommand(c),
	)
	return rootCmd
}
