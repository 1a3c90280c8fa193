package gaze

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/geom"
)

const (
	// simFrameTime is the frame time used by the forward simulation.
	simFrameTime = 1.0 / 30.0
	// maxSimulatedShift caps the forward simulation (seconds).
	maxSimulatedShift = 10.0
)

// Estimate is the outcome of a forward simulation.
type Estimate struct {
	// Duration is the simulated shift time in seconds.
	Duration float64 `json:"duration"`
	// Time and TimeMR hold, per joint, when the joint reached its target
	// and when it first hit its motor-range limit. Zero means never.
	Time   []float64 `json:"time"`
	TimeMR []float64 `json:"time_mr"`
	// Capped is set when the simulation hit its time cap.
	Capped bool `json:"capped"`
}

// EyeConvergence returns the earliest time any eye reached its target.
func (e Estimate) EyeConvergence(eyes int) (float64, bool) {
	tb := math.Inf(1)
	for i := 0; i < eyes && i < len(e.Time); i++ {
		if e.Time[i] > 0 && e.Time[i] < tb {
			tb = e.Time[i]
		}
	}
	return tb, !math.IsInf(tb, 1)
}

type jointSnapshot struct {
	rot   mgl64.Quat
	state jointState
}

// storeState snapshots every joint's rotation and shift state.
func (c *Controller) storeState() []jointSnapshot {
	snap := make([]jointSnapshot, len(c.joints))
	for i, j := range c.joints {
		snap[i] = jointSnapshot{rot: j.Bone.LocalRotation(), state: j.s}
	}
	return snap
}

// restoreState puts back a snapshot taken by storeState.
func (c *Controller) restoreState(snap []jointSnapshot) {
	for i, j := range c.joints {
		if i >= len(snap) {
			return
		}
		j.Bone.SetLocalRotation(snap[i].rot)
		j.s = snap[i].state
	}
}

// SimulateGazeShift runs the prepared shift forward at a fixed frame rate
// and records when each joint arrives. Unless persist is set the pose and
// shift state are restored afterwards.
func (c *Controller) SimulateGazeShift(persist bool) Estimate {
	var snap []jointSnapshot
	if !persist {
		snap = c.storeState()
	}

	n := len(c.joints)
	est := Estimate{Time: make([]float64, n), TimeMR: make([]float64, n)}
	for _, j := range c.joints {
		j.s.estTime = 0
		j.s.estTimeMR = 0
	}

	step := c.params.EulerTimeStep
	tt := 0.0
	finished := false
	for !finished {
		if tt >= maxSimulatedShift {
			est.Capped = true
			c.log.Warn("gaze shift simulation hit time cap", "cap", maxSimulatedShift, "target", c.curTrgPos)
			break
		}
		for ft := 0.0; ft < simFrameTime-1e-9 && !finished; ft += step {
			dt := math.Min(step, simFrameTime-ft)
			tt += dt
			finished = c.AdvanceGazeShift(dt)
			for i, j := range c.joints {
				if j.s.estTime == 0 && j.s.trgReached {
					j.s.estTime = tt
					est.Time[i] = tt
				}
				if j.s.estTimeMR == 0 && j.s.mrReached {
					j.s.estTimeMR = tt
					est.TimeMR[i] = tt
				}
			}
		}
	}
	est.Duration = tt

	if !persist {
		c.restoreState(snap)
	}
	return est
}

// initGazeBlink schedules a blink that covers the eyes' catch-up while a
// stylized head shift completes.
func (c *Controller) initGazeBlink() {
	head := c.Head()
	if !c.params.StylizeGaze || !c.params.StageGazeBlinks || head == nil || c.blinker == nil {
		return
	}
	rate := c.blinker.BlinkRate()
	length := c.blinker.BlinkLength()
	hrotd := geom.Angle(head.s.srcRot, head.s.trgRotAlign)
	pb := 0.4*(rate/0.2)*hrotd/30 - 0.067

	c.estimate = c.SimulateGazeShift(false)
	tb, ok := c.estimate.EyeConvergence(len(c.eyes))
	if !ok || tb > c.estimate.Duration-0.35*length {
		// Only worth it with a long enough convergence phase.
		return
	}
	tb -= 0.5 * length
	if c.blinker.Blink(tb, 1, geom.Clamp01(pb)) {
		c.log.Debug("gaze blink scheduled", "start", tb, "probability", pb)
	}
}
