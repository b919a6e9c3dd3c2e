package config

// Calibration is the top-level configuration for one subject's
// marker-placement calibration run.
type Calibration struct {
	LogLevel    string  `yaml:"log_level"`
	Subject     string  `yaml:"subject"`
	SubjectMass float64 `yaml:"subject_mass"`

	// Input artifacts
	Model   string `yaml:"model"`    // generically scaled model (.osim)
	IKSetup string `yaml:"ik_setup"` // IK setup descriptor (.xml)

	// Scratch artifacts, overwritten once per trial
	WorkerModel  string `yaml:"worker_model"`
	WorkerMotion string `yaml:"worker_motion"`

	// Output artifacts
	OutputModel  string `yaml:"output_model"`
	OutputMotion string `yaml:"output_motion"`
	LogDir       string `yaml:"log_dir"`
	HistoryDB    string `yaml:"history_db,omitempty"`

	FreeMarkers      []string   `yaml:"free_markers"`
	FreeJoints       []string   `yaml:"free_joints"`
	JointLocks       JointLocks `yaml:"joint_locks"`
	FixedCoordinates []string   `yaml:"fixed_coordinates"` // "<entity> <axis>" tokens

	ReferenceFrame int       `yaml:"reference_frame"`
	Auxiliary      Auxiliary `yaml:"auxiliary"`

	ConvThreshMM float64 `yaml:"convergence_threshold_mm"`
	MaxPasses    int     `yaml:"max_passes"`
	Step         Step    `yaml:"step"`

	Phases []Phase `yaml:"phases,omitempty"`
}

// JointLocks holds the six per-axis lock flags for a free joint.
// Translation flags lock the joint location axes; flexion, adduction and
// rotation lock the orientation axes (Z, X and Y respectively).
type JointLocks struct {
	TX        bool `yaml:"tx"`
	TY        bool `yaml:"ty"`
	TZ        bool `yaml:"tz"`
	Flexion   bool `yaml:"flexion"`
	Adduction bool `yaml:"adduction"`
	Rotation  bool `yaml:"rotation"`
}

// Auxiliary configures the optional flexion/pistoning objective terms.
// The weights are deliberately part of the configuration surface rather
// than baked-in constants.
type Auxiliary struct {
	Enabled             bool    `yaml:"enabled"`
	FlexionCoordinate   string  `yaml:"flexion_coordinate,omitempty"`
	PistoningCoordinate string  `yaml:"pistoning_coordinate,omitempty"`
	FlexionWeight       float64 `yaml:"flexion_weight"`
	PistoningWeight     float64 `yaml:"pistoning_weight"`
}

// Step configures the shrinking-step line search along each parameter axis.
// Translational parameters step in millimeters, orientation parameters in
// degrees.
type Step struct {
	InitialMM  float64 `yaml:"initial_mm"`
	InitialDeg float64 `yaml:"initial_deg"`
	Shrink     float64 `yaml:"shrink"`
	MinMM      float64 `yaml:"min_mm"`
	MinDeg     float64 `yaml:"min_deg"`
	MaxTrials  int     `yaml:"max_trials"`
}

// Phase overrides parts of the calibration for one stage of a multi-stage
// run (e.g. markers first, socket joint after). Nil slices and pointers
// inherit from the top-level configuration.
type Phase struct {
	Name        string      `yaml:"name"`
	FreeMarkers []string    `yaml:"free_markers,omitempty"`
	FreeJoints  []string    `yaml:"free_joints,omitempty"`
	JointLocks  *JointLocks `yaml:"joint_locks,omitempty"`
	MaxPasses   int         `yaml:"max_passes,omitempty"`
}

// EffectivePhases returns the ordered phase list for a run. A configuration
// without explicit phases behaves as a single phase using the top-level
// free sets and locks.
func (c *Calibration) EffectivePhases() []Phase {
	if len(c.Phases) > 0 {
		return c.Phases
	}
	return []Phase{{Name: "default"}}
}

// ResolvePhase merges a phase's overrides onto the top-level configuration.
func (c *Calibration) ResolvePhase(p Phase) Phase {
	out := p
	if out.FreeMarkers == nil {
		out.FreeMarkers = c.FreeMarkers
	}
	if out.FreeJoints == nil {
		out.FreeJoints = c.FreeJoints
	}
	if out.JointLocks == nil {
		locks := c.JointLocks
		out.JointLocks = &locks
	}
	if out.MaxPasses <= 0 {
		out.MaxPasses = c.MaxPasses
	}
	return out
}
