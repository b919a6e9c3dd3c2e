package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/ik"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/osim"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/paramspace"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a calibration configuration without running it",
		Long: `Load the configuration, the model, the IK setup and the trajectory, and
resolve every phase's parameter space. Catches unknown markers, unknown
joints and malformed inputs before committing to a long run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			model, err := osim.Load(cfg.Model)
			if err != nil {
				return err
			}
			setup, err := ik.LoadSetup(cfg.IKSetup)
			if err != nil {
				return err
			}
			traj, err := osim.LoadTRC(setup.MarkerPath(cfg.IKSetup))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, phase := range cfg.EffectivePhases() {
				resolved := cfg.ResolvePhase(phase)
				space, err := paramspace.Build(resolved, cfg.FixedCoordinates, model)
				if err != nil {
					return fmt.Errorf("phase %s: %w", resolved.Name, err)
				}
				fmt.Fprintf(out, "phase %s: %d free parameters\n", resolved.Name, len(space.Free()))
			}

			for name := range setup.WeightMap() {
				if !model.HasMarker(name) {
					return fmt.Errorf("ik setup tracks marker %s not present in the model", name)
				}
			}

			fmt.Fprintf(out, "ok: %d markers, %d joints, %d trajectory frames\n",
				len(model.Markers), len(model.Joints), len(traj.Frames))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "calibration.yaml", "calibration configuration file")

	return cmd
}
