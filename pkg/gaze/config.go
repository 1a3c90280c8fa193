package gaze

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-gaze/pkg/geom"
)

// Config holds the agent-level gaze parameters. Values are read when a
// shift starts; changes made mid-shift apply to the next shift.
type Config struct {
	// Idle behavior
	HoldGaze bool `yaml:"hold_gaze" json:"hold_gaze"` // Keep fixation through VOR while idle

	// Target timing
	Predictability  float64 `yaml:"predictability" json:"predictability"`       // 0-1, shortens torso latency
	EnableAutoTorso bool    `yaml:"enable_auto_torso" json:"enable_auto_torso"` // Torso amplitude from the gaze amplitude

	// Stylization
	StylizeGaze      bool    `yaml:"stylize_gaze" json:"stylize_gaze"`
	Quickness        float64 `yaml:"quickness" json:"quickness"`                   // Velocity multiplier
	EyeSize          float64 `yaml:"eye_size" json:"eye_size"`                     // 1 (human) to 5.8
	EyeTorque        float64 `yaml:"eye_torque" json:"eye_torque"`                 // >= 1
	EyeAlign         float64 `yaml:"eye_align" json:"eye_align"`                   // 0-1, eye contact pull
	EnableED         bool    `yaml:"enable_ed" json:"enable_ed"`                   // Eye divergence overshoot
	EnableAEM        bool    `yaml:"enable_aem" json:"enable_aem"`                 // Asymmetric eye movement
	EnableEAH        bool    `yaml:"enable_eah" json:"enable_eah"`                 // Eyes ahead of head
	MaxCrossEyedness float64 `yaml:"max_cross_eyedness" json:"max_cross_eyedness"` // Degrees
	StageGazeBlinks  bool    `yaml:"stage_gaze_blinks" json:"stage_gaze_blinks"`

	// Integration
	EulerTimeStep float64 `yaml:"euler_time_step" json:"euler_time_step"` // Seconds per sub-step

	// Logging
	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns human-like, non-stylized gaze settings.
func DefaultConfig() Config {
	return Config{
		HoldGaze:         true,
		Predictability:   1,
		EnableAutoTorso:  true,
		StylizeGaze:      false,
		Quickness:        1,
		EyeSize:          1,
		EyeTorque:        1,
		EyeAlign:         1,
		EnableED:         true,
		EnableAEM:        true,
		EnableEAH:        true,
		MaxCrossEyedness: 2,
		StageGazeBlinks:  true,
		EulerTimeStep:    0.015,
	}
}

// Validate checks the values that cannot be silently clamped.
func (c Config) Validate() error {
	if c.EulerTimeStep <= 0 {
		return fmt.Errorf("%w: euler time step must be positive, got %g", ErrInvalidConfig, c.EulerTimeStep)
	}
	if c.Quickness <= 0 {
		return fmt.Errorf("%w: quickness must be positive, got %g", ErrInvalidConfig, c.Quickness)
	}
	if c.MaxCrossEyedness < 0 {
		return fmt.Errorf("%w: max cross-eyedness must not be negative", ErrInvalidConfig)
	}
	return nil
}

// normalized returns a copy with the soft ranges clamped.
func (c Config) normalized() Config {
	c.EyeSize = geom.Clamp(c.EyeSize, 1, 5.8)
	if c.EyeTorque < 1 {
		c.EyeTorque = 1
	}
	c.EyeAlign = geom.Clamp01(c.EyeAlign)
	c.Predictability = geom.Clamp01(c.Predictability)
	return c
}

// ParamPatch is a partial update of Config. Nil fields are left unchanged.
type ParamPatch struct {
	HoldGaze         *bool    `yaml:"hold_gaze,omitempty" json:"hold_gaze,omitempty"`
	Predictability   *float64 `yaml:"predictability,omitempty" json:"predictability,omitempty"`
	EnableAutoTorso  *bool    `yaml:"enable_auto_torso,omitempty" json:"enable_auto_torso,omitempty"`
	StylizeGaze      *bool    `yaml:"stylize_gaze,omitempty" json:"stylize_gaze,omitempty"`
	Quickness        *float64 `yaml:"quickness,omitempty" json:"quickness,omitempty"`
	EyeSize          *float64 `yaml:"eye_size,omitempty" json:"eye_size,omitempty"`
	EyeTorque        *float64 `yaml:"eye_torque,omitempty" json:"eye_torque,omitempty"`
	EyeAlign         *float64 `yaml:"eye_align,omitempty" json:"eye_align,omitempty"`
	EnableED         *bool    `yaml:"enable_ed,omitempty" json:"enable_ed,omitempty"`
	EnableAEM        *bool    `yaml:"enable_aem,omitempty" json:"enable_aem,omitempty"`
	EnableEAH        *bool    `yaml:"enable_eah,omitempty" json:"enable_eah,omitempty"`
	MaxCrossEyedness *float64 `yaml:"max_cross_eyedness,omitempty" json:"max_cross_eyedness,omitempty"`
	StageGazeBlinks  *bool    `yaml:"stage_gaze_blinks,omitempty" json:"stage_gaze_blinks,omitempty"`
}

// Apply returns c with the patch applied and validated.
func (c Config) Apply(p ParamPatch) (Config, error) {
	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setFloat := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	setBool(&c.HoldGaze, p.HoldGaze)
	setFloat(&c.Predictability, p.Predictability)
	setBool(&c.EnableAutoTorso, p.EnableAutoTorso)
	setBool(&c.StylizeGaze, p.StylizeGaze)
	setFloat(&c.Quickness, p.Quickness)
	setFloat(&c.EyeSize, p.EyeSize)
	setFloat(&c.EyeTorque, p.EyeTorque)
	setFloat(&c.EyeAlign, p.EyeAlign)
	setBool(&c.EnableED, p.EnableED)
	setBool(&c.EnableAEM, p.EnableAEM)
	setBool(&c.EnableEAH, p.EnableEAH)
	setFloat(&c.MaxCrossEyedness, p.MaxCrossEyedness)
	setBool(&c.StageGazeBlinks, p.StageGazeBlinks)
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// JointConfig describes one joint of the chain.
type JointConfig struct {
	Name     string    `yaml:"name" json:"name"`
	Bone     string    `yaml:"bone" json:"bone"`
	Type     JointType `yaml:"type" json:"type"`
	Velocity float64   `yaml:"velocity" json:"velocity"` // Base peak velocity, deg/s
	UpMR     float64   `yaml:"up_mr" json:"up_mr"`       // Motor range limits, degrees
	DownMR   float64   `yaml:"down_mr" json:"down_mr"`
	InMR     float64   `yaml:"in_mr" json:"in_mr"`
	OutMR    float64   `yaml:"out_mr" json:"out_mr"`
	Align    float64   `yaml:"align" json:"align"`     // 0-1 share of the full target rotation
	Latency  float64   `yaml:"latency" json:"latency"` // ms relative to the previous joint
}

// DefaultJointConfig returns typical human values for a joint type.
func DefaultJointConfig(name string, t JointType) JointConfig {
	jc := JointConfig{
		Name:     name,
		Bone:     name,
		Type:     t,
		Velocity: 50,
		UpMR:     90,
		DownMR:   90,
		InMR:     180,
		OutMR:    180,
		Align:    1,
	}
	switch t {
	case LeftEye, RightEye:
		jc.Velocity = 150
		jc.UpMR, jc.DownMR = 40, 40
		jc.InMR, jc.OutMR = 55, 55
	case Torso:
		jc.Velocity = 15
		jc.Align = 0
	}
	return jc
}

// Validate checks a joint configuration.
func (jc JointConfig) Validate() error {
	if jc.Velocity < 0 {
		return fmt.Errorf("%w: joint %s velocity must not be negative", ErrInvalidConfig, jc.Name)
	}
	if jc.Type.IsEye() && (jc.UpMR <= 0 || jc.DownMR <= 0 || jc.InMR <= 0 || jc.OutMR <= 0) {
		return fmt.Errorf("%w: eye %s motor ranges must be positive", ErrInvalidConfig, jc.Name)
	}
	return nil
}
