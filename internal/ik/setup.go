// Package ik runs the inverse-kinematics solve that scores every candidate
// model perturbation: per frame it finds the joint coordinates that best
// reproduce the recorded marker positions, and reports per-marker residuals.
package ik

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
)

// Setup is the IK setup descriptor consumed from orchestration. Marker
// weights are consumed by the solve, never optimized.
type Setup struct {
	XMLName          xml.Name     `xml:"InverseKinematicsTool"`
	Name             string       `xml:"name,attr"`
	ModelFile        string       `xml:"model_file"`
	MarkerFile       string       `xml:"marker_file"`
	OutputMotionFile string       `xml:"output_motion_file"`
	Tasks            []MarkerTask `xml:"IKTaskSet>IKMarkerTask"`
}

// MarkerTask weights one tracked marker in the solve.
type MarkerTask struct {
	Name   string  `xml:"name,attr"`
	Apply  bool    `xml:"apply"`
	Weight float64 `xml:"weight"`
}

// LoadSetup reads and validates an IK setup file.
func LoadSetup(path string) (*Setup, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ik setup file %s: %w", path, err)
	}
	s, err := ParseSetup(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ik setup file %s: %w", path, err)
	}
	return s, nil
}

// ParseSetup parses and validates an IK setup from XML bytes.
func ParseSetup(data []byte) (*Setup, error) {
	var s Setup
	if err := xml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ik setup xml: %w", err)
	}
	if s.MarkerFile == "" {
		return nil, fmt.Errorf("ik setup: marker_file cannot be empty")
	}
	seen := make(map[string]bool)
	for _, task := range s.Tasks {
		if task.Name == "" {
			return nil, fmt.Errorf("ik setup: marker task name cannot be empty")
		}
		if seen[task.Name] {
			return nil, fmt.Errorf("ik setup: duplicate marker task: %s", task.Name)
		}
		seen[task.Name] = true
		if task.Weight < 0 {
			return nil, fmt.Errorf("ik setup: marker task %s has negative weight", task.Name)
		}
	}
	return &s, nil
}

// MarkerPath resolves the marker_file relative to the setup file it was
// loaded from, matching how setup files are authored.
func (s *Setup) MarkerPath(setupPath string) string {
	if filepath.IsAbs(s.MarkerFile) {
		return s.MarkerFile
	}
	return filepath.Join(filepath.Dir(setupPath), s.MarkerFile)
}

// WeightMap returns the solve weight per tracked marker. An empty map means
// every model marker is tracked with unit weight.
func (s *Setup) WeightMap() map[string]float64 {
	out := make(map[string]float64)
	for _, task := range s.Tasks {
		if task.Apply && task.Weight > 0 {
			out[task.Name] = task.Weight
		}
	}
	return out
}
