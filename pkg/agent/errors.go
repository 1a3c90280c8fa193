package agent

import "errors"

var (
	// ErrAgentNotFound is returned when no agent has the requested ID or name.
	ErrAgentNotFound = errors.New("agent: not found")

	// ErrTargetNotFound is returned when gazing at an unknown named target.
	ErrTargetNotFound = errors.New("agent: target not found")

	// ErrNoGaze is returned when an agent is built without a gaze controller.
	ErrNoGaze = errors.New("agent: no gaze controller")

	// ErrInvalidRig is returned when a rig file is incomplete.
	ErrInvalidRig = errors.New("agent: invalid rig")
)
