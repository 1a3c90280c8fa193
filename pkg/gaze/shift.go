package gaze

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/geom"
)

// startShift runs once on NoGaze -> Shifting and prepares the whole shift.
func (c *Controller) startShift() {
	c.doGazeShift = false
	c.params = c.cfg.normalized()
	c.frontShift = c.frontRequest
	c.frontRequest = false
	c.curGazeTarget = c.gazeTarget
	c.curTrgPos = c.curGazeTarget.Position()
	c.curGazeHoldTime = 0
	c.shiftTime = 0
	c.subSteps = 0
	c.estimate = Estimate{}

	c.InitVOR()
	c.initGazeParams()
	c.viewAlignTarget()
	c.viewAdjustOMR()
	for _, eye := range c.eyes {
		eye.captureBaseMR()
	}

	c.initTargetRotations()
	if c.params.StylizeGaze {
		c.removeCrossEyedness()
		c.initTargetRotations()
	}
	c.initLatencies()
	c.calculateMaxVelocities()
	c.initGazeBlink()

	c.log.Debug("gaze shift started",
		"target", c.curTrgPos,
		"effective", c.EffGazeTargetPosition(),
		"amplitude", c.distRot,
		"stylized", c.params.StylizeGaze)
}

func (c *Controller) initGazeParams() {
	c.effGazeTrgPos = c.curTrgPos
	c.adjEyeAlign = 1
	c.maxCrEyedView = 0
	c.distRot = 0
	c.headVelocity = 0

	overshoot := c.params.StylizeGaze && c.params.EnableED
	for _, j := range c.joints {
		j.initGazeParams(c.effGazeTrgPos, overshoot)
	}
	if c.frontShift {
		for _, j := range c.headNeck {
			j.s.curAlign = 1
		}
	}
}

// initTargetRotations computes the pursued rotation of every joint, body
// joints first.
func (c *Controller) initTargetRotations() {
	eff := c.EffGazeTargetPosition()
	center, dir := c.gazeOrigin()
	c.distRot = geom.VecAngle(dir, eff.Sub(center))

	for _, j := range c.headNeck {
		j.InitTargetRotation(eff)
	}
	for _, j := range c.torso {
		j.InitTargetRotation(eff)
	}

	if t := c.Torso(); t != nil {
		s := &t.s
		dr := c.ComputeTorsoRotDistance(c.distRot, s.curAlign)
		fdr := geom.DistanceToRotate(s.srcRot, s.trgRot)
		amin := 0.0
		if fdr > 0 {
			amin = dr / fdr
		}
		rot := geom.Slerp(s.srcRot, s.trgRot, amin)
		rot = geom.Slerp(rot, s.trgRot, s.curAlign)
		t.setAlignedTarget(rot)
		c.distributeGroup(c.torso)
	}

	// The head starts from the minimum rotation the eyes need.
	for _, j := range c.headNeck {
		j.setAlignedTarget(j.s.srcRot)
	}

	for _, eye := range c.eyes {
		eye.InitTargetRotation(eff)
	}
	c.adjustOMRByIEP()
	for _, eye := range c.eyes {
		eye.relaxMR(eye.s.srcRot)
		eye.InitTargetRotationMR()
	}

	if h := c.Head(); h != nil {
		c.initMinHeadTargetRotations()
		s := &h.s
		h.setAlignedTarget(geom.Slerp(s.trgRotAlign, s.trgRot, s.curAlign))
		c.distributeGroup(c.headNeck)
	}

	for _, j := range c.joints {
		if !j.IsEye() {
			j.s.trgRotMR = j.s.trgRotAlign
			j.s.distRotMR = j.s.distRotAlign
		}
	}
}

// distributeGroup spreads the leader's rotation evenly over a multi-joint
// group along each joint's own source-to-target arc.
func (c *Controller) distributeGroup(group []*Joint) {
	if len(group) < 2 {
		return
	}
	share := group[0].s.distRotAlign / float64(len(group))
	for _, j := range group {
		s := &j.s
		fdr := geom.DistanceToRotate(s.srcRot, s.trgRot)
		if fdr == 0 {
			j.setAlignedTarget(s.srcRot)
			continue
		}
		j.setAlignedTarget(geom.Slerp(s.srcRot, s.trgRot, share/fdr))
	}
}

// ComputeTorsoRotDistance returns how far (degrees) the torso turns for a
// gaze shift of distRot degrees. Without auto-torso the torso only moves
// by its alignment.
func (c *Controller) ComputeTorsoRotDistance(distRot, align float64) float64 {
	if !c.params.EnableAutoTorso {
		return 0
	}
	dreff := (1-align)*distRot + 120*align
	switch {
	case dreff >= 40:
		return 0.43*math.Exp(0.029*dreff) + 0.186
	case dreff >= 20:
		return 0.078*dreff - 1.558
	default:
		return 0
	}
}

// adjustOMRByIEP scales the eye range by how contralateral the eyes start:
// centered eyes get 75% of their range, eyes starting away from the
// target a little more.
func (c *Controller) adjustOMRByIEP() {
	if len(c.eyes) == 0 {
		return
	}
	var contraYaw, contraPitch float64
	for _, eye := range c.eyes {
		yaw, pitch := eye.relYawPitch(eye.s.srcRot)
		tyaw, tpitch := eye.relYawPitch(eye.s.trgRot)
		if yaw*tyaw < 0 {
			contraYaw += math.Abs(yaw)
		}
		if pitch*tpitch < 0 {
			contraPitch += math.Abs(pitch)
		}
	}
	n := float64(len(c.eyes))
	fp := contraPitch/n/360 + 0.75
	fy := contraYaw/n/360 + 0.75
	for _, eye := range c.eyes {
		s := &eye.s
		s.adjUp = s.baseUp * fp
		s.adjDown = s.baseDown * fp
		s.adjIn = s.baseIn * fy
		s.adjOut = s.baseOut * fy
		eye.initCurMR()
	}
}

// initMinHeadTargetRotations sets the head target to the smallest rotation
// that lets the most limited eye reach the target.
func (c *Controller) initMinHeadTargetRotations() {
	head := c.Head()
	if head == nil || len(c.eyes) == 0 {
		return
	}
	c.storeCurrentPose()
	c.applyTargetPose()

	maxdl := 0.0
	deficit := mgl64.QuatIdent()
	for _, eye := range c.eyes {
		trg := eye.Bone.LocalRotation()
		mr := eye.limitMR(trg)
		dl := geom.DistanceToRotate(eye.s.srcRot, trg) - geom.DistanceToRotate(eye.s.srcRot, mr)
		if dl > maxdl {
			maxdl = dl
			parent := eye.Bone.ParentRotation()
			deficit = parent.Mul(trg).Mul(parent.Mul(mr).Inverse())
		}
	}
	if maxdl > geom.Epsilon {
		head.setAlignedTarget(head.rotationFacing(deficit.Rotate(head.Direction())))
	}
	c.reapplyCurrentPose()
}

// applyTargetPose poses the chain as it will be at the end of the shift:
// torso at its share of the rotation, head at its source, eyes on target.
// Callers save and restore the current pose around it.
func (c *Controller) applyTargetPose() {
	eff := c.EffGazeTargetPosition()
	var share float64
	if t := c.Torso(); t != nil {
		share = t.s.distRotAlign / float64(len(c.torso))
	}
	for ji := len(c.joints) - 1; ji >= 0; ji-- {
		j := c.joints[ji]
		s := &j.s
		switch j.Type {
		case Torso:
			trg := j.ComputeTargetRotation(eff)
			fdr := geom.DistanceToRotate(s.srcRot, trg)
			if fdr > 0 {
				j.Bone.SetLocalRotation(geom.Slerp(s.srcRot, trg, share/fdr))
			} else {
				j.Bone.SetLocalRotation(trg)
			}
		case Head:
			j.Bone.SetLocalRotation(s.srcRot)
		default:
			j.apply(j.ComputeTargetRotation(eff))
		}
	}
}

// TorsoLatency returns the torso latency (ms) for a gaze shift of distRot
// degrees toward a target of the given predictability (0-1).
func TorsoLatency(distRot, predictability float64) float64 {
	p := geom.Clamp01(predictability)
	return -0.25*distRot*p + 0.5*distRot - 57.5*p + 105
}

// initLatencies turns per-joint latencies into start times. Times accumulate
// from the eyes outward; a negative minimum shifts every joint so the
// earliest starts at zero.
func (c *Controller) initLatencies() {
	for _, j := range c.torso {
		j.s.latency = TorsoLatency(c.distRot, c.params.Predictability)
	}
	st := 0.0
	stmin := math.Inf(1)
	for _, j := range c.joints {
		st += j.s.latency / 1000
		j.s.latencyTime = st
		stmin = math.Min(stmin, st)
	}
	if stmin < 0 {
		for _, j := range c.joints {
			j.s.latencyTime += -stmin
		}
	}
}

// AdvanceGazeShift integrates the shift by one sub-step of deltaTime
// seconds, outermost joint first. It reports whether the shift finished.
func (c *Controller) AdvanceGazeShift(deltaTime float64) bool {
	var bodyAligned, eyesAligned, eyesBlocked int
	var torsoReady, headReady, eyesReady bool
	eff := c.EffGazeTargetPosition()
	c.headVelocity = 0

	for ji := len(c.joints) - 1; ji >= 0; ji-- {
		j := c.joints[ji]
		s := &j.s
		if s.latencyTime > 0 {
			if j.IsEye() {
				j.ApplyVOR()
			}
			s.latencyTime -= deltaTime
			continue
		}

		switch j.Type {
		case Torso:
			if !torsoReady {
				c.recalculateGroupVelocity(c.torso)
				torsoReady = true
			}
		case Head:
			if !headReady {
				c.headVelocity = c.recalculateGroupVelocity(c.headNeck)
				headReady = true
			}
		default:
			if !eyesReady {
				c.recalculateEyeVelocities()
				eyesReady = true
			}
		}

		if j.IsEye() {
			j.UpdateOMR(c.headVelocity)
			j.AdvanceRotation(deltaTime)
			if s.trgReached {
				eyesAligned++
			} else if s.mrReached {
				eyesBlocked++
			}
			continue
		}

		j.AdvanceRotation(deltaTime)
		if s.trgReached {
			c.markGroupReached(j)
			bodyAligned++
		}
		for k := ji - 1; k >= 0; k-- {
			c.joints[k].UpdateTargetRotation(eff)
		}
	}

	nEyes := len(c.eyes)
	if c.params.StylizeGaze && nEyes > 0 && eyesAligned >= nEyes {
		for _, eye := range c.eyes {
			eye.s.stopOvershoot = true
		}
	}
	eyesDone := eyesAligned+eyesBlocked >= nEyes || c.params.StylizeGaze && eyesAligned > 0
	return eyesDone && bodyAligned == len(c.joints)-nEyes
}

// markGroupReached stops every joint of a group once its leader arrives.
func (c *Controller) markGroupReached(j *Joint) {
	var group []*Joint
	switch j.Type {
	case Torso:
		group = c.torso
	case Head:
		group = c.headNeck
	}
	if len(group) == 0 || group[0] != j {
		return
	}
	for _, m := range group {
		m.s.trgReached = true
	}
}
