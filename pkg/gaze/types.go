package gaze

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// JointType identifies the role of a joint in the gaze chain.
type JointType int

const (
	LeftEye JointType = iota
	RightEye
	Head
	Torso
)

// String returns the type name used in rig files.
func (t JointType) String() string {
	switch t {
	case LeftEye:
		return "left_eye"
	case RightEye:
		return "right_eye"
	case Head:
		return "head"
	case Torso:
		return "torso"
	default:
		return "unknown"
	}
}

// IsEye reports whether the type is one of the eyes.
func (t JointType) IsEye() bool {
	return t == LeftEye || t == RightEye
}

// rank orders types along the chain: eyes first, torso last.
func (t JointType) rank() int {
	switch t {
	case Head:
		return 1
	case Torso:
		return 2
	default:
		return 0
	}
}

// ParseJointType parses a type name such as "left_eye" or "torso".
func ParseJointType(s string) (JointType, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "left_eye", "leye", "l_eye":
		return LeftEye, nil
	case "right_eye", "reye", "r_eye":
		return RightEye, nil
	case "head", "neck":
		return Head, nil
	case "torso", "spine", "chest":
		return Torso, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownJointType, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t JointType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *JointType) UnmarshalText(b []byte) error {
	v, err := ParseJointType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// State is the gaze controller state.
type State int

const (
	// NoGaze: idle, optionally holding fixation through VOR.
	NoGaze State = iota
	// Shifting: a gaze shift is in progress.
	Shifting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NoGaze:
		return "NoGaze"
	case Shifting:
		return "Shifting"
	default:
		return "Unknown"
	}
}

// Bone is the skeletal transform a joint drives. Rotations are unit
// quaternions; Position, Rotation and ParentRotation are in world space.
type Bone interface {
	Name() string
	LocalRotation() mgl64.Quat
	SetLocalRotation(q mgl64.Quat)
	InitRotation() mgl64.Quat
	Position() mgl64.Vec3
	Rotation() mgl64.Quat
	ParentRotation() mgl64.Quat
}

// Target is anything that can be looked at. Its position is sampled once
// when a shift starts.
type Target interface {
	Position() mgl64.Vec3
}

// Point is a fixed world-space target.
type Point mgl64.Vec3

// Position implements Target.
func (p Point) Position() mgl64.Vec3 { return mgl64.Vec3(p) }

// Blinker schedules eye blinks on behalf of the gaze controller.
type Blinker interface {
	// Blink requests a blink startOffset seconds from now. It reports
	// whether the blink was accepted after the probability draw.
	Blink(startOffset, intensity, probability float64) bool
	BlinkRate() float64
	BlinkLength() float64
}

// FaceMotion is the facial-animation collaborator whose gestures and
// idle motion are suppressed while the gaze shifts.
type FaceMotion interface {
	StopGesture()
	MotionEnabled() (random, speech bool)
	SetMotionEnabled(random, speech bool)
}

// JointPose is a snapshot of one joint for tracing and dashboards.
type JointPose struct {
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Yaw           float64 `json:"yaw"`
	Pitch         float64 `json:"pitch"`
	TargetReached bool    `json:"target_reached"`
	MRReached     bool    `json:"mr_reached"`
	LatencyTime   float64 `json:"latency_time"`
	Velocity      float64 `json:"velocity"`
}
