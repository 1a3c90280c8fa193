// Package blink animates eyelids: spontaneous blinks at a random rate,
// explicit blinks requested by other controllers, blinks evoked by large
// gaze shifts and a slight lid droop that follows the eyes.
package blink

import (
	"log/slog"
	"math"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/teslashibe/go-gaze/pkg/fsm"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// State is the blink controller state.
type State int

const (
	NoBlink State = iota
	WaitForStart
	Blinking
	GazeBlink
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NoBlink:
		return "NoBlink"
	case WaitForStart:
		return "WaitForStart"
	case Blinking:
		return "Blinking"
	case GazeBlink:
		return "GazeBlink"
	default:
		return "Unknown"
	}
}

// lengthSigma is the spread of generated blink lengths (seconds).
const lengthSigma = 0.04

// Gaze is the part of the gaze controller the blink controller watches.
type Gaze interface {
	OnStateChange(fn func(from, to gaze.State))
	State() gaze.State
	HeadShiftAmplitude() float64
	EyePitch() float64
	Stylized() bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithGaze enables gaze-evoked blinks and eyelid droop driven by g.
func WithGaze(g Gaze) Option {
	return func(c *Controller) { c.gaze = g }
}

// Controller drives the eyelid weights.
type Controller struct {
	cfg  Config
	log  *slog.Logger
	fsm  *fsm.Machine[State]
	gaze Gaze

	uniform distuv.Uniform
	normal  distuv.Normal
	expo    distuv.Exponential

	lWeight, rWeight float64

	nextTime, curTime, curLength float64
	decayTime, decayLength       float64
	curMaxWeight, curDecayWeight float64

	explicit       bool
	explStart      float64
	explLength     float64
	explMaxWeight  float64
	gazeShiftBegan bool
	prevEyePitch   float64
}

// New creates a blink controller.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{cfg: cfg.normalized(), log: cfg.Logger}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "blink")

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	src := rand.NewSource(seed)
	c.uniform = distuv.Uniform{Min: 0, Max: 1, Src: src}
	c.normal = distuv.Normal{Mu: c.cfg.Length, Sigma: lengthSigma, Src: src}
	c.expo = distuv.Exponential{Rate: c.cfg.Rate, Src: src}

	c.fsm = fsm.New(NoBlink)
	c.fsm.AddState(NoBlink, fsm.State{Update: c.updateNoBlink})
	c.fsm.AddState(WaitForStart, fsm.State{Update: c.updateWaitForStart})
	c.fsm.AddState(Blinking, fsm.State{Update: c.updateBlinking})
	c.fsm.AddState(GazeBlink, fsm.State{Update: c.updateGazeBlink})
	c.fsm.AddTransition(NoBlink, WaitForStart, c.scheduleNext)
	c.fsm.AddTransition(WaitForStart, Blinking, c.startBlink)
	c.fsm.AddTransition(WaitForStart, GazeBlink, func() { c.gazeShiftBegan = false })
	c.fsm.AddTransition(Blinking, NoBlink, func() { c.lWeight, c.rWeight = 0, 0 })
	c.fsm.AddTransition(GazeBlink, NoBlink, nil)
	c.fsm.AddTransition(GazeBlink, WaitForStart, nil)

	if c.gaze != nil {
		c.gaze.OnStateChange(func(_, to gaze.State) {
			if to == gaze.Shifting {
				c.gazeShiftBegan = true
			}
		})
	}
	return c, nil
}

// Name identifies the controller to the agent driver.
func (c *Controller) Name() string { return "blink" }

// Init resets the eyelids.
func (c *Controller) Init() error {
	c.lWeight, c.rWeight = 0, 0
	c.explicit = false
	c.gazeShiftBegan = false
	return nil
}

// Tick advances the blink animation by dt seconds.
func (c *Controller) Tick(dt float64) {
	c.fsm.Update(dt)
}

// LateTick records the eye pitch the next frame's lid droop follows.
func (c *Controller) LateTick(dt float64) {
	if c.gaze != nil {
		c.prevEyePitch = c.gaze.EyePitch()
	}
	c.fsm.LateUpdate(dt)
}

// State returns the current state.
func (c *Controller) State() State { return c.fsm.Current() }

// StateName returns the current state name.
func (c *Controller) StateName() string { return c.fsm.Current().String() }

// Weights returns the left and right eyelid closure (0-1).
func (c *Controller) Weights() (left, right float64) {
	return c.lWeight, c.rWeight
}

// BlinkRate returns the spontaneous blink rate (blinks per second).
func (c *Controller) BlinkRate() float64 { return c.cfg.Rate }

// BlinkLength returns the mean blink length (seconds).
func (c *Controller) BlinkLength() float64 { return c.cfg.Length }

// Blink requests a blink of the given closure startOffset seconds from now.
// The request is dropped with probability 1-probability; Blink reports
// whether it was accepted.
func (c *Controller) Blink(startOffset, weight, probability float64) bool {
	if c.uniform.Rand() >= probability {
		return false
	}
	c.explicit = true
	c.explStart = startOffset
	c.explLength = c.generateLength()
	c.explMaxWeight = weight
	if c.fsm.Current() == WaitForStart {
		c.initExplicit()
	}
	c.log.Debug("blink requested", "start", startOffset, "weight", weight)
	return true
}

// State handlers

func (c *Controller) updateNoBlink(dt float64) {
	c.resetLids()
	c.droopLids(dt)
	idle := c.gaze == nil || c.gaze.State() == gaze.NoGaze
	if idle || c.cfg.GazeEvoked && c.gazeShiftBegan || c.explicit {
		c.goTo(WaitForStart)
	}
}

func (c *Controller) updateWaitForStart(dt float64) {
	c.resetLids()
	c.droopLids(dt)
	if !c.explicit && c.gazeShiftBegan {
		c.goTo(GazeBlink)
		return
	}
	c.curTime += dt
	if c.curTime >= c.nextTime {
		c.goTo(Blinking)
	}
}

func (c *Controller) updateBlinking(dt float64) {
	c.resetLids()
	c.curTime += dt
	var done bool
	c.lWeight, done = c.curveWeight(c.curTime)
	r, rdone := c.curveWeight(c.curTime - c.cfg.EyeOffset)
	c.rWeight = r
	done = done && rdone
	c.droopLids(dt)
	if done {
		c.goTo(NoBlink)
	}
}

func (c *Controller) updateGazeBlink(float64) {
	c.resetLids()
	hrotd := 0.0
	stylized := false
	if c.gaze != nil {
		hrotd = c.gaze.HeadShiftAmplitude()
		stylized = c.gaze.Stylized()
	}
	pb := 0.4*(c.cfg.Rate/0.3)*hrotd/30 - 0.067
	if c.explicit || !c.cfg.GazeEvoked || c.uniform.Rand() >= pb {
		// No blink until the shift is over.
		c.goTo(NoBlink)
		return
	}
	c.curLength = c.generateLength()
	c.curTime = 0
	c.curMaxWeight = 0.3*hrotd/16 + 0.35125
	if c.curMaxWeight > 1 || stylized {
		c.curMaxWeight = 1
	}
	c.nextTime = 0
	c.log.Debug("gaze-evoked blink", "head_amplitude", hrotd, "weight", c.curMaxWeight)
	c.goTo(WaitForStart)
}

// Transitions

func (c *Controller) scheduleNext() {
	if c.explicit {
		c.initExplicit()
		return
	}
	c.curTime = 0
	c.curLength = c.generateLength()
	c.curMaxWeight = c.cfg.MaxWeight
	c.nextTime = math.Min(c.expo.Rand(), c.cfg.MaxPeriod)
}

func (c *Controller) startBlink() {
	c.curTime = 0
	c.explicit = false
	c.decayLength = c.cfg.DecayLength * c.curLength / c.cfg.Length
	c.decayTime = c.decayLength
	c.curDecayWeight = c.cfg.BaseWeight + c.cfg.DecayWeight*(c.curMaxWeight-c.cfg.BaseWeight)
}

func (c *Controller) initExplicit() {
	c.curTime = 0
	c.nextTime = c.explStart
	c.curLength = c.explLength
	c.curMaxWeight = c.explMaxWeight
}

func (c *Controller) goTo(s State) {
	if err := c.fsm.GoTo(s); err != nil {
		c.log.Error("state transition failed", "error", err)
	}
}

// Eyelids

// curveWeight evaluates the blink curve at time t into the blink. It
// reports whether the blink is over.
func (c *Controller) curveWeight(t float64) (float64, bool) {
	if t < 0 {
		return 0, false
	}
	nbt := t / c.curLength
	easeIn := c.cfg.EaseIn
	beist := easeIn + c.cfg.Sustain
	switch {
	case nbt < easeIn:
		u := nbt / easeIn
		return c.curMaxWeight * (3*u*u - 2*u*u*u), false
	case nbt <= beist:
		return c.curMaxWeight, false
	case nbt <= 1:
		u := (nbt - beist) / (1 - beist)
		return c.curDecayWeight + (c.curMaxWeight-c.curDecayWeight)*(1+2*u*u*u-3*u*u), false
	default:
		return c.curDecayWeight, true
	}
}

func (c *Controller) resetLids() {
	c.lWeight, c.rWeight = 0, 0
}

// droopLids adds the resting droop, the fading leftover of the last blink
// and the droop that follows downward eye pitch.
func (c *Controller) droopLids(dt float64) {
	droop := c.cfg.BaseWeight
	if c.fsm.Current() != Blinking {
		c.decayTime -= dt
		if c.decayTime > 0 && c.decayLength > 0 {
			droop += c.decayTime / c.decayLength * (c.curDecayWeight - c.cfg.BaseWeight)
		}
	}
	droop += c.cfg.DroopFactor * c.prevEyePitch / 35
	droop = math.Max(droop, 0)
	c.lWeight += droop
	c.rWeight += droop
}

func (c *Controller) generateLength() float64 {
	return math.Max(c.normal.Rand(), 0.001)
}
