package gaze

import (
	"math"

	"github.com/teslashibe/go-gaze/pkg/geom"
)

// calculateMaxVelocities sets the peak velocity of every joint for the
// shift from its amplitude and the stylization settings.
func (c *Controller) calculateMaxVelocities() {
	p := c.params

	omr := 0.0
	for _, eye := range c.eyes {
		s := &eye.s
		omr = math.Max(omr, math.Max(math.Max(s.curUp, s.curDown), math.Max(s.curIn, s.curOut)))
	}

	for _, group := range [][]*Joint{c.torso, c.headNeck} {
		total := 0.0
		for _, j := range group {
			total += j.s.distRotAlign
		}
		for _, j := range group {
			v := j.Velocity
			if j.Type == Torso {
				j.s.maxVelocity = (4.0/3.0)*(v/15)*total + v/0.5
			} else {
				j.s.maxVelocity = (4.0/3.0)*(v/50)*total + v/2.5
			}
		}
	}

	opc := c.oppositionCompensation()
	head := c.Head()

	if p.StylizeGaze {
		amax := 0.0
		for _, eye := range c.eyes {
			amax = math.Max(amax, eye.s.distRotMR)
		}
		es3 := p.EyeSize * p.EyeSize * p.EyeSize
		for ei, eye := range c.eyes {
			s := &eye.s
			// Large eyes are slower.
			s.maxVelocity = eye.Velocity / es3
			if head != nil && p.EnableEAH {
				// The less the head contributes, the faster the eyes.
				ha := 0.0
				if fdr := geom.DistanceToRotate(head.s.srcRot, head.s.trgRot); fdr > 0 {
					ha = head.s.distRotAlign / fdr
				}
				s.maxVelocity *= (1-ha)*es3 + ha*p.EyeTorque
			}
			s.maxVelocity *= (2.0/75.0)*amax + 1.0/6.0
			if p.EnableAEM && amax > geom.Epsilon {
				s.maxVelocity *= s.distRotMR / amax
			}
			if head != nil {
				s.maxVelocity += 3 * opc[ei] * head.s.maxVelocity
			}
		}

		q := p.Quickness
		if head != nil {
			q *= 1 + 0.2*geom.Clamp01(head.s.distRotAlign/90)
		}
		for _, j := range c.joints {
			j.s.maxVelocity *= q
		}
		return
	}

	amin := math.Inf(1)
	for _, eye := range c.eyes {
		amin = math.Min(amin, eye.s.distRotMR)
	}
	amin = math.Min(amin, omr)
	for _, eye := range c.eyes {
		eye.s.maxVelocity = 4*(eye.Velocity/150)*amin + eye.Velocity/6
	}
}

// oppositionCompensation measures (0-1) how much each eye moves against
// the head direction of motion.
func (c *Controller) oppositionCompensation() []float64 {
	opc := make([]float64, len(c.eyes))
	head := c.Head()
	if head == nil || geom.Same(head.s.srcRot, head.s.trgRotAlign) {
		return opc
	}
	eff := c.EffGazeTargetPosition()

	cur := head.Bone.LocalRotation()
	vh1 := head.Direction()
	head.Bone.SetLocalRotation(head.s.trgRotAlign)
	vh := head.Direction().Sub(vh1)
	head.Bone.SetLocalRotation(cur)

	for ei, eye := range c.eyes {
		ecur := eye.Bone.LocalRotation()
		ve1 := eye.Direction()
		trg := eye.ComputeTargetRotation(eff)
		if geom.Same(eye.s.srcRot, trg) {
			continue
		}
		eye.Bone.SetLocalRotation(trg)
		ve := eye.Direction().Sub(ve1)
		eye.Bone.SetLocalRotation(ecur)
		opc[ei] = geom.Clamp01(geom.VecAngle(ve, vh) / 180)
	}
	return opc
}

// recalculateGroupVelocity applies the leader's velocity profile to a body
// group and splits it in proportion to each joint's distance, so the
// whole group progresses in lockstep. It returns the group velocity.
func (c *Controller) recalculateGroupVelocity(group []*Joint) float64 {
	if len(group) == 0 {
		return 0
	}
	lead := group[0]
	lead.RecalculateVelocity(lead.s.rotParamAlign)
	v := lead.s.curVelocity
	if len(group) == 1 {
		return v
	}
	total := 0.0
	for _, j := range group {
		total += j.s.distRotAlign
	}
	for _, j := range group {
		if total > 0 {
			j.s.curVelocity = v * j.s.distRotAlign / total
		} else {
			j.s.curVelocity = v
		}
	}
	return v
}

// recalculateEyeVelocities drives all eyes by the progress of the eye with
// the farthest to go.
func (c *Controller) recalculateEyeVelocities() {
	var far *Joint
	for _, eye := range c.eyes {
		if far == nil || eye.s.distRotMR > far.s.distRotMR {
			far = eye
		}
	}
	if far == nil {
		return
	}
	erp := 1.0
	if far.s.distRotMR > 0 {
		erp = far.s.rotParamMR
	}
	for _, eye := range c.eyes {
		eye.RecalculateVelocity(erp)
	}
}
