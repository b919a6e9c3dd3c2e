// Package cli wires the calibration workflow into a command-line tool.
package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	LogLevel string
}

// NewRootCommand creates the root command for the oscal CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "oscal",
		Short: "Marker placement calibration for musculoskeletal models",
		Long: `oscal calibrates marker placements and prosthetic joint location on a
generically scaled musculoskeletal model so that inverse kinematics
reproduces a subject's recorded static and walking trials.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.LogLevel != "" {
				logger.SetDefault(logger.NewText(opts.LogLevel, os.Stderr))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override the configured log level (debug|info|warn|error)")

	cmd.AddCommand(NewCalibrateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}
