package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/runner"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/config"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/logger"
)

// NewCalibrateCommand creates the calibrate command.
func NewCalibrateCommand(rootOpts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Run a marker placement calibration",
		Long: `Run the full calibration described by a configuration file: sweep the
free marker offsets and joint placement, scoring each candidate with an
inverse-kinematics solve, until the placement stops moving.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if rootOpts.LogLevel == "" {
				logger.SetDefault(logger.NewText(cfg.LogLevel, cmd.ErrOrStderr()))
			}

			summary, err := runner.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			printSummary(cmd, summary)
			if !summary.Converged {
				return fmt.Errorf("calibration did not converge")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "calibration.yaml", "calibration configuration file")

	return cmd
}

func printSummary(cmd *cobra.Command, s *runner.Summary) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run %s for subject %s (%.1f kg)\n", s.RunID, s.Subject, s.SubjectMass)
	for _, p := range s.Phases {
		status := "converged"
		if !p.Converged {
			status = p.Reason
		}
		fmt.Fprintf(out, "  phase %-12s %3d passes over %d parameters: %s (cost %.6f)\n",
			p.Name, p.Passes, p.FreeParams, status, p.FinalCost)
	}
	fmt.Fprintf(out, "finished in %s, final marker RMS %s\n",
		s.Duration.Round(time.Millisecond), humanize.SI(s.FinalRMSM, "m"))
	fmt.Fprintf(out, "calibrated model written to %s\n", s.OutputModel)
	fmt.Fprintf(out, "final motion written to %s\n", s.OutputMotion)
	fmt.Fprintf(out, "audit log at %s\n", s.LogFile)
}
