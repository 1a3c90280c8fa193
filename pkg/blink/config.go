package blink

import (
	"fmt"
	"log/slog"
)

// Config holds the blink timing and eyelid parameters
type Config struct {
	// Timing
	Rate      float64 `yaml:"rate" json:"rate"`             // Spontaneous blinks per second
	MaxPeriod float64 `yaml:"max_period" json:"max_period"` // Longest gap between blinks (seconds)
	Length    float64 `yaml:"length" json:"length"`         // Mean blink length (seconds)
	EyeOffset float64 `yaml:"eye_offset" json:"eye_offset"` // Right eye lag behind the left (seconds)

	// Blink curve, as shares of the blink length. Renormalized to sum to 1.
	EaseIn  float64 `yaml:"ease_in" json:"ease_in"`
	Sustain float64 `yaml:"sustain" json:"sustain"`
	EaseOut float64 `yaml:"ease_out" json:"ease_out"`

	// Eyelid weights (0-1)
	BaseWeight  float64 `yaml:"base_weight" json:"base_weight"`   // Droop between blinks
	MaxWeight   float64 `yaml:"max_weight" json:"max_weight"`     // Closure at the blink apex
	DecayWeight float64 `yaml:"decay_weight" json:"decay_weight"` // Share of the apex left after a blink
	DecayLength float64 `yaml:"decay_length" json:"decay_length"` // Seconds for the leftover to fade
	DroopFactor float64 `yaml:"droop_factor" json:"droop_factor"` // Lid droop per 35 degrees of eye pitch

	GazeEvoked bool `yaml:"gaze_evoked" json:"gaze_evoked"` // Blink on large gaze shifts

	// Seed for the random source; 0 seeds from the clock.
	Seed uint64 `yaml:"seed" json:"seed"`

	Logger *slog.Logger `yaml:"-" json:"-"`
}

// DefaultConfig returns natural human blink settings
func DefaultConfig() Config {
	return Config{
		Rate:        0.2,
		MaxPeriod:   10,
		Length:      0.19,
		EaseIn:      0.35,
		Sustain:     0.25,
		EaseOut:     0.65,
		MaxWeight:   1,
		DecayWeight: 0.05,
		DecayLength: 6,
		DroopFactor: 0.32,
		GazeEvoked:  true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("%w: rate must be positive, got %g", ErrInvalidConfig, c.Rate)
	}
	if c.Length <= 0 {
		return fmt.Errorf("%w: length must be positive, got %g", ErrInvalidConfig, c.Length)
	}
	if c.MaxPeriod <= 0 {
		return fmt.Errorf("%w: max period must be positive, got %g", ErrInvalidConfig, c.MaxPeriod)
	}
	if c.EaseIn < 0 || c.Sustain < 0 || c.EaseOut < 0 || c.EaseIn+c.Sustain+c.EaseOut <= 0 {
		return fmt.Errorf("%w: blink phases must be non-negative with a positive sum", ErrInvalidConfig)
	}
	return nil
}

// normalized scales the blink phases to sum to 1.
func (c Config) normalized() Config {
	s := 1 / (c.EaseIn + c.Sustain + c.EaseOut)
	c.EaseIn *= s
	c.Sustain *= s
	c.EaseOut *= s
	return c
}
