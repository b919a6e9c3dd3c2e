package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied when a field is left unset.
const (
	DefaultMaxPasses    = 100
	DefaultConvThreshMM = 1.0
	DefaultStepMM       = 8.0
	DefaultStepDeg      = 4.0
	DefaultStepShrink   = 0.5
	DefaultMinStepMM    = 0.25
	DefaultMinStepDeg   = 0.125
	DefaultMaxTrials    = 24
)

// Load reads, parses and validates a calibration configuration file.
func Load(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse parses and validates a calibration configuration from YAML bytes.
func Parse(data []byte) (*Calibration, error) {
	var cfg Calibration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Calibration) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.MaxPasses <= 0 {
		c.MaxPasses = DefaultMaxPasses
	}
	if c.ConvThreshMM <= 0 {
		c.ConvThreshMM = DefaultConvThreshMM
	}
	if c.Step.InitialMM <= 0 {
		c.Step.InitialMM = DefaultStepMM
	}
	if c.Step.InitialDeg <= 0 {
		c.Step.InitialDeg = DefaultStepDeg
	}
	if c.Step.Shrink <= 0 {
		c.Step.Shrink = DefaultStepShrink
	}
	if c.Step.MinMM <= 0 {
		c.Step.MinMM = DefaultMinStepMM
	}
	if c.Step.MinDeg <= 0 {
		c.Step.MinDeg = DefaultMinStepDeg
	}
	if c.Step.MaxTrials <= 0 {
		c.Step.MaxTrials = DefaultMaxTrials
	}
	if c.LogDir == "" {
		c.LogDir = "."
	}
}

// Validate performs structural validation on the configuration. Entity
// names are checked against the model later, when the parameter space is
// built; this only catches errors visible without the model.
func (c *Calibration) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Model == "" {
		return fmt.Errorf("model path cannot be empty")
	}
	if c.IKSetup == "" {
		return fmt.Errorf("ik_setup path cannot be empty")
	}
	if c.WorkerModel == "" {
		return fmt.Errorf("worker_model path cannot be empty")
	}
	if c.WorkerMotion == "" {
		return fmt.Errorf("worker_motion path cannot be empty")
	}
	if c.OutputModel == "" {
		return fmt.Errorf("output_model path cannot be empty")
	}
	if c.SubjectMass <= 0 {
		return fmt.Errorf("subject_mass must be positive, got %f", c.SubjectMass)
	}
	if c.ReferenceFrame < 0 {
		return fmt.Errorf("reference_frame cannot be negative, got %d", c.ReferenceFrame)
	}
	if c.Step.Shrink >= 1 {
		return fmt.Errorf("step shrink factor must be below 1, got %f", c.Step.Shrink)
	}

	seenMarkers := make(map[string]bool)
	for _, m := range c.FreeMarkers {
		if m == "" {
			return fmt.Errorf("free marker name cannot be empty")
		}
		if seenMarkers[m] {
			return fmt.Errorf("duplicate free marker: %s", m)
		}
		seenMarkers[m] = true
	}
	seenJoints := make(map[string]bool)
	for _, j := range c.FreeJoints {
		if j == "" {
			return fmt.Errorf("free joint name cannot be empty")
		}
		if seenJoints[j] {
			return fmt.Errorf("duplicate free joint: %s", j)
		}
		seenJoints[j] = true
	}

	for _, tok := range c.FixedCoordinates {
		if err := validateFixedToken(tok); err != nil {
			return err
		}
	}

	if c.Auxiliary.Enabled {
		if c.Auxiliary.FlexionWeight < 0 || c.Auxiliary.PistoningWeight < 0 {
			return fmt.Errorf("auxiliary weights cannot be negative")
		}
		if c.Auxiliary.FlexionCoordinate == "" && c.Auxiliary.PistoningCoordinate == "" {
			return fmt.Errorf("auxiliary objectives enabled but no flexion or pistoning coordinate named")
		}
	}

	phaseNames := make(map[string]bool)
	for i, p := range c.Phases {
		if p.Name == "" {
			return fmt.Errorf("phase %d: name cannot be empty", i)
		}
		if phaseNames[p.Name] {
			return fmt.Errorf("duplicate phase name: %s", p.Name)
		}
		phaseNames[p.Name] = true
		for _, tok := range p.FreeMarkers {
			if tok == "" {
				return fmt.Errorf("phase %s: free marker name cannot be empty", p.Name)
			}
		}
	}

	return nil
}

// validateFixedToken checks a fixed-coordinate token of the form
// "<entity> <axis>", e.g. "RASI Z" or "socket.location Y".
func validateFixedToken(tok string) error {
	fields := strings.Fields(tok)
	if len(fields) != 2 {
		return fmt.Errorf("invalid fixed coordinate %q: want \"<entity> <axis>\"", tok)
	}
	switch strings.ToUpper(fields[1]) {
	case "X", "Y", "Z":
		return nil
	default:
		return fmt.Errorf("invalid fixed coordinate %q: axis must be X, Y or Z", tok)
	}
}
