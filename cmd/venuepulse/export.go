package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/venuepulse/internal/logger"
)

const exportFilePermissions = 0o644

func exportCommand(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all stored snapshots to a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if out == "" {
				out = filepath.Join(c.cfg.Storage.DataDir, "snapshots.json")
			}
			n, err := a.snapshots.Export(cmd.Context(), out, exportFilePermissions, dirPermissions)
			if err != nil {
				return err
			}
			logger.Info("Exported %d snapshots to %s", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default <storage.data_dir>/snapshots.json)")
	return cmd
}

func importCommand(c *cli) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load snapshots from a file written by export",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.snapshots.Import(cmd.Context(), in)
			if err != nil {
				return err
			}
			logger.Info("Imported %d snapshots from %s", n, in)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "Input file")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
