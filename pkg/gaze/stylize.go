package gaze

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/geom"
)

// noViewAngle is the view angle assumed when there is no viewer.
const noViewAngle = 180

// highAccuracyViewAngle is the angle around the viewer within which gaze
// direction is judged precisely. It grows with the eye size.
func (c *Controller) highAccuracyViewAngle() float64 {
	return c.params.EyeSize * 3.2
}

// viewAngles returns the angle between the current gaze and the viewer
// (vas) and between the target and the viewer (vat), seen from the eyes.
func (c *Controller) viewAngles() (vas, vat float64) {
	if c.viewer == nil {
		return noViewAngle, noViewAngle
	}
	center, dir := c.gazeOrigin()
	toTarget := c.effGazeTrgPos.Sub(center)
	toViewer := c.viewer.Position().Sub(center)
	if toViewer.Len() < geom.Epsilon {
		return noViewAngle, noViewAngle
	}
	return geom.VecAngle(dir, toViewer), geom.VecAngle(toTarget, toViewer)
}

// viewAlignTarget pulls the effective target toward the viewer when the
// target is close to the line of sight, favouring eye contact over
// literal accuracy.
func (c *Controller) viewAlignTarget() {
	if !c.params.StylizeGaze || c.viewer == nil || len(c.eyes) == 0 {
		return
	}
	_, vat := c.viewAngles()
	hava := c.highAccuracyViewAngle()
	eap := geom.Clamp01(vat / (3 * hava))
	c.adjEyeAlign = 1 - (1-c.params.EyeAlign)*eap
	if c.adjEyeAlign >= 0.99999 {
		return
	}

	viewer := c.viewer.Position()
	v := viewer.Sub(c.curTrgPos)
	if v.Len() < geom.Epsilon {
		return
	}
	maxt := math.Inf(-1)
	for _, eye := range c.eyes {
		cur := eye.Bone.LocalRotation()
		src := eye.ComputeTargetRotation(viewer)
		trg := eye.ComputeTargetRotation(c.curTrgPos)
		eye.apply(geom.Slerp(src, trg, c.adjEyeAlign))

		e1 := eye.Bone.Position()
		e2 := e1.Add(eye.Direction())
		_, t := geom.ClosestPoints(e1, e2, c.curTrgPos, viewer)
		if t > maxt {
			c.effGazeTrgPos = c.curTrgPos.Add(v.Mul(t))
			maxt = t
		}
		eye.Bone.SetLocalRotation(cur)
	}
}

// viewAdjustOMR narrows the outward eye range for targets near the viewer
// so the eyes do not diverge visibly.
func (c *Controller) viewAdjustOMR() {
	if c.viewer == nil {
		return
	}
	_, vat := c.viewAngles()
	hava := c.highAccuracyViewAngle()
	for _, eye := range c.eyes {
		s := &eye.s
		switch {
		case vat < hava:
			s.adjOut = s.adjIn
		case vat <= 3*hava:
			eap := geom.Clamp01((vat - hava) / (3 * hava))
			s.adjOut = s.adjIn + eap*(s.adjOut-s.adjIn)
		}
		eye.initCurMR()
	}
}

// maxCrossEyednessForView returns the vergence allowed for the current view:
// generous when the target is far from the viewer, strict near it.
func (c *Controller) maxCrossEyednessForView() float64 {
	_, vat := c.viewAngles()
	eap := geom.Clamp01(vat / (3 * c.highAccuracyViewAngle()))
	return (1-eap)*110 + eap*c.params.MaxCrossEyedness
}

// removeCrossEyedness pushes the effective target away from the eyes until
// the vergence of the target pose is within the allowed maximum.
func (c *Controller) removeCrossEyedness() {
	if !c.params.StylizeGaze || len(c.eyes) != 2 {
		return
	}
	leye, reye := c.LEye(), c.REye()
	if leye == nil || reye == nil {
		return
	}
	c.maxCrEyedView = c.maxCrossEyednessForView()
	maxce := math.Max(c.maxCrEyedView, 1e-5)

	c.storeCurrentPose()
	defer c.reapplyCurrentPose()
	c.applyTargetPose()

	if c.CrossEyedness() <= maxce {
		return
	}
	lpos, rpos := leye.Bone.Position(), reye.Bone.Position()
	hpt := lpos.Add(rpos).Mul(0.5)
	lrv := lpos.Sub(rpos)
	if lrv.Len() <= geom.Epsilon {
		return
	}
	tlv := c.effGazeTrgPos.Sub(lpos)
	trv := c.effGazeTrgPos.Sub(rpos)
	h := trv.Cross(tlv).Len() / lrv.Len()
	d := math.Max(hpt.Sub(c.effGazeTrgPos).Len(), 1e-5)
	ratio := 1.0
	if d > h {
		ratio = h / d
	}
	alpha := mgl64.RadToDeg(math.Asin(ratio))
	drh := rpos.Sub(hpt).Len()
	half := mgl64.DegToRad(maxce / 2)
	dnew := drh * math.Sin(mgl64.DegToRad(alpha)+half) / math.Sin(half)

	dir := c.effGazeTrgPos.Sub(hpt)
	if dir.Len() <= geom.Epsilon {
		dir = leye.Direction().Add(reye.Direction())
	}
	c.effGazeTrgPos = hpt.Add(dir.Normalize().Mul(dnew))
}

// eyeRays returns the vergence angle between the eye rays and whether the
// rays meet in front of the eyes.
func (c *Controller) eyeRays() (angle float64, converge bool, ok bool) {
	leye, reye := c.LEye(), c.REye()
	if leye == nil || reye == nil {
		return 0, false, false
	}
	ld, rd := leye.Direction(), reye.Direction()
	angle = geom.VecAngle(ld, rd)
	if angle <= 1e-5 {
		return angle, false, true
	}
	lp, rp := leye.Bone.Position(), reye.Bone.Position()
	_, rt := geom.ClosestPoints(lp, lp.Add(ld), rp, rp.Add(rd))
	return angle, rt > 0, true
}

// CrossEyedness returns the vergence angle (degrees) of converging eyes,
// 0 when the eyes diverge or an eye is missing.
func (c *Controller) CrossEyedness() float64 {
	angle, converge, ok := c.eyeRays()
	if !ok || angle <= 1e-5 || !converge {
		return 0
	}
	return angle
}

// EyeDivergence returns the angle (degrees) between diverging eye rays,
// 0 when the eyes converge or an eye is missing.
func (c *Controller) EyeDivergence() float64 {
	angle, converge, ok := c.eyeRays()
	if !ok || angle <= 1e-5 || converge {
		return 0
	}
	return angle
}

// MaxCrossEyedView returns the vergence allowed for the current shift.
func (c *Controller) MaxCrossEyedView() float64 { return c.maxCrEyedView }
