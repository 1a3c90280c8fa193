package gaze

import "errors"

var (
	// ErrEmptyChain is returned when a controller is built without joints.
	ErrEmptyChain = errors.New("gaze: empty joint chain")

	// ErrChainOrder is returned when joints are not ordered eyes, head, torso.
	ErrChainOrder = errors.New("gaze: joints must be ordered eyes, head, torso")

	// ErrNilBone is returned when a joint has no bone to drive.
	ErrNilBone = errors.New("gaze: joint has no bone")

	// ErrUnknownJointType is returned when parsing an unrecognized joint type.
	ErrUnknownJointType = errors.New("gaze: unknown joint type")

	// ErrInvalidConfig is returned when a configuration value is out of range.
	ErrInvalidConfig = errors.New("gaze: invalid config")
)
