// Package scenario scripts agents with a list of steps: gaze shifts,
// waits and parameter changes. A Runner polls the list once per tick.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/skeleton"
)

// Action names a step.
type Action string

const (
	GazeAt      Action = "gaze_at"       // Look at a named target
	GazeAtPoint Action = "gaze_at_point" // Look at a world position
	GazeFront   Action = "gaze_front"    // Look straight ahead
	WaitIdle    Action = "wait_idle"     // Wait for the shift to end; Seconds is an optional timeout
	Wait        Action = "wait"          // Wait Seconds
	StopGaze    Action = "stop_gaze"     // Interrupt the running shift
	Set         Action = "set"           // Apply Params
	SetViewer   Action = "set_viewer"    // Make Target the viewer
)

// Step is one scenario instruction.
type Step struct {
	Action  Action           `yaml:"action" json:"action"`
	Target  string           `yaml:"target,omitempty" json:"target,omitempty"`
	Point   []float64        `yaml:"point,omitempty" json:"point,omitempty"`
	Seconds float64          `yaml:"seconds,omitempty" json:"seconds,omitempty"`
	Params  *gaze.ParamPatch `yaml:"params,omitempty" json:"params,omitempty"`
}

// Validate checks that the step carries what its action needs.
func (s Step) Validate() error {
	switch s.Action {
	case GazeAt, SetViewer:
		if s.Target == "" {
			return fmt.Errorf("%w: %s needs a target", ErrInvalidStep, s.Action)
		}
	case GazeAtPoint:
		if _, err := skeleton.Vec3(s.Point); err != nil || len(s.Point) == 0 {
			return fmt.Errorf("%w: %s needs a point [x, y, z]", ErrInvalidStep, s.Action)
		}
	case Wait:
		if s.Seconds <= 0 {
			return fmt.Errorf("%w: wait needs positive seconds", ErrInvalidStep)
		}
	case Set:
		if s.Params == nil {
			return fmt.Errorf("%w: set needs params", ErrInvalidStep)
		}
	case GazeFront, WaitIdle, StopGaze:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStep, s.Action)
	}
	return nil
}

// Scenario is a named list of steps, optionally bound to one agent.
type Scenario struct {
	Name  string `yaml:"name" json:"name"`
	Agent string `yaml:"agent,omitempty" json:"agent,omitempty"`
	Steps []Step `yaml:"steps" json:"steps"`
}

// Validate checks every step.
func (s *Scenario) Validate() error {
	for i, st := range s.Steps {
		if err := st.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates a YAML scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Save writes the scenario as YAML.
func Save(path string, s *Scenario) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scenario: %w", err)
	}
	return nil
}
