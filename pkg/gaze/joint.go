package gaze

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/geom"
)

// mrBisectSteps bounds the search for the motor-range boundary.
const mrBisectSteps = 24

// jointState is the per-shift state of a joint. It is copied wholesale when
// the controller stores and restores state around a forward simulation.
type jointState struct {
	srcRot, trgRot, trgRotAlign, trgRotMR mgl64.Quat
	distRotAlign, distRotMR               float64
	rotParamAlign, rotParamMR             float64

	curAlign    float64
	latency     float64 // ms, effective for the current shift
	latencyTime float64 // seconds until the joint starts moving

	maxVelocity, curVelocity float64

	// Motor range: adjusted for view and eye position, then scaled by
	// head velocity into the current limits.
	baseUp, baseDown, baseIn, baseOut float64
	adjUp, adjDown, adjIn, adjOut     float64
	curUp, curDown, curIn, curOut     float64

	mrReached, trgReached bool
	// atTarget is set when the joint arrived on its own rather than being
	// stopped by its group leader.
	atTarget bool

	allowOvershoot, stopOvershoot bool
	overshootRot                  mgl64.Quat

	estTime, estTimeMR float64

	// VOR fixation
	fixPoint                             mgl64.Vec3
	fixSrcRot, fixTrgRot, fixTrgRotAlign mgl64.Quat
	fixRotParam                          float64
}

// Joint is one rotatable link of the gaze chain.
type Joint struct {
	JointConfig
	Bone Bone

	// nasalSign converts rest-frame yaw into inward (toward the nose) yaw.
	nasalSign float64
	// eyeCenter reports the midpoint of the eyes for pitch correction of
	// body joints.
	eyeCenter func() (mgl64.Vec3, bool)

	s jointState
}

// NewJoint binds a joint configuration to a bone.
func NewJoint(cfg JointConfig, bone Bone) (*Joint, error) {
	if bone == nil {
		return nil, ErrNilBone
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = bone.Name()
	}
	j := &Joint{JointConfig: cfg, Bone: bone}
	j.nasalSign = 1
	if cfg.Type == LeftEye {
		j.nasalSign = -1
	}
	j.reset()
	return j, nil
}

func (j *Joint) reset() {
	rot := j.Bone.LocalRotation()
	j.s = jointState{
		srcRot:         rot,
		trgRot:         rot,
		trgRotAlign:    rot,
		trgRotMR:       rot,
		curAlign:       geom.Clamp01(j.Align),
		maxVelocity:    j.Velocity,
		overshootRot:   mgl64.QuatIdent(),
		fixSrcRot:      rot,
		fixTrgRot:      rot,
		fixTrgRotAlign: rot,
	}
	j.resetAdjMR()
	j.initCurMR()
}

// IsEye reports whether the joint is an eye.
func (j *Joint) IsEye() bool { return j.Type.IsEye() }

// SourceRotation returns the local rotation at shift start.
func (j *Joint) SourceRotation() mgl64.Quat { return j.s.srcRot }

// TargetRotation returns the raw target rotation.
func (j *Joint) TargetRotation() mgl64.Quat { return j.s.trgRot }

// AlignedTargetRotation returns the rotation the joint actually pursues.
func (j *Joint) AlignedTargetRotation() mgl64.Quat { return j.s.trgRotAlign }

// DistRotAlign returns the distance in degrees from source to aligned target.
func (j *Joint) DistRotAlign() float64 { return j.s.distRotAlign }

// DistRotMR returns the distance from source to the motor-range clamped target.
func (j *Joint) DistRotMR() float64 { return j.s.distRotMR }

// LatencyTime returns the seconds left before the joint starts moving.
func (j *Joint) LatencyTime() float64 { return j.s.latencyTime }

// MaxVelocity returns the peak velocity of the current shift.
func (j *Joint) MaxVelocity() float64 { return j.s.maxVelocity }

// CurVelocity returns the velocity used by the last advance step.
func (j *Joint) CurVelocity() float64 { return j.s.curVelocity }

// TargetReached reports whether the joint reached its aligned target.
func (j *Joint) TargetReached() bool { return j.s.trgReached }

// MRReached reports whether an eye is held at its motor-range limit.
func (j *Joint) MRReached() bool { return j.s.mrReached }

// YawPitch returns the current yaw and pitch relative to the rest pose.
// For eyes, positive yaw is toward the nose.
func (j *Joint) YawPitch() (yaw, pitch float64) {
	yaw, pitch = j.relYawPitch(j.Bone.LocalRotation())
	if j.IsEye() {
		yaw *= j.nasalSign
	}
	return yaw, pitch
}

// Direction returns the world facing direction.
func (j *Joint) Direction() mgl64.Vec3 {
	return j.Bone.Rotation().Rotate(geom.Forward)
}

func (j *Joint) relYawPitch(q mgl64.Quat) (yaw, pitch float64) {
	u := j.Bone.InitRotation().Inverse().Mul(q).Rotate(geom.Forward)
	return geom.YawPitch(u)
}

// Motor range

func (j *Joint) resetAdjMR() {
	s := &j.s
	s.adjUp, s.adjDown, s.adjIn, s.adjOut = j.UpMR, j.DownMR, j.InMR, j.OutMR
	s.baseUp, s.baseDown, s.baseIn, s.baseOut = s.adjUp, s.adjDown, s.adjIn, s.adjOut
}

func (j *Joint) initCurMR() {
	s := &j.s
	s.curUp, s.curDown, s.curIn, s.curOut = s.adjUp, s.adjDown, s.adjIn, s.adjOut
}

// captureBaseMR records the view-adjusted limits that eye-position
// adjustment scales from.
func (j *Joint) captureBaseMR() {
	s := &j.s
	s.baseUp, s.baseDown, s.baseIn, s.baseOut = s.adjUp, s.adjDown, s.adjIn, s.adjOut
}

// mrRatio evaluates the elliptic motor-range test for q; values >= 1 are
// outside the range.
func (j *Joint) mrRatio(q mgl64.Quat) float64 {
	s := &j.s
	yaw, pitch := j.relYawPitch(q)
	yaw *= j.nasalSign
	ym := s.curOut
	if yaw >= 0 {
		ym = s.curIn
	}
	pm := s.curUp
	if pitch >= 0 {
		pm = s.curDown
	}
	if ym <= 0 || pm <= 0 {
		return math.Inf(1)
	}
	return (yaw*yaw)/(ym*ym) + (pitch*pitch)/(pm*pm)
}

func (j *Joint) violatesMR(q mgl64.Quat) bool {
	return j.mrRatio(q) >= 1
}

// clampMR returns the rotation farthest along the arc from -> to that stays
// within the motor range. from must be inside the range.
func (j *Joint) clampMR(from, to mgl64.Quat) mgl64.Quat {
	if !j.violatesMR(to) {
		return to
	}
	if j.violatesMR(from) {
		return from
	}
	lo, hi := 0.0, 1.0
	for i := 0; i < mrBisectSteps; i++ {
		mid := 0.5 * (lo + hi)
		if j.violatesMR(geom.Slerp(from, to, mid)) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return geom.Slerp(from, to, lo)
}

// limitMR clamps rot to the motor range, searching from the shift source
// when it is inside the current limits and from the rest pose otherwise.
func (j *Joint) limitMR(rot mgl64.Quat) mgl64.Quat {
	origin := j.s.srcRot
	if j.violatesMR(origin) {
		origin = j.Bone.InitRotation()
	}
	return j.clampMR(origin, rot)
}

// relaxMR widens the limits so q lies just inside them. A shift must not
// start outside the motor range.
func (j *Joint) relaxMR(q mgl64.Quat) {
	r := j.mrRatio(q)
	if r < 1 || math.IsInf(r, 0) {
		return
	}
	f := math.Sqrt(r) * 1.02
	s := &j.s
	s.adjUp *= f
	s.adjDown *= f
	s.adjIn *= f
	s.adjOut *= f
	s.baseUp *= f
	s.baseDown *= f
	s.baseIn *= f
	s.baseOut *= f
	j.initCurMR()
}

// UpdateOMR shrinks the current eye motor range as the head speeds up.
func (j *Joint) UpdateOMR(headVelocity float64) {
	if !j.IsEye() {
		return
	}
	f := math.Max(1-headVelocity/600, 0.1)
	s := &j.s
	s.curUp = s.adjUp * f
	s.curDown = s.adjDown * f
	s.curIn = s.adjIn * f
	s.curOut = s.adjOut * f
}

// Target rotations

// rotationFacing returns the roll-free local rotation that points the
// joint's forward axis along the world direction dir.
func (j *Joint) rotationFacing(dir mgl64.Vec3) mgl64.Quat {
	init := j.Bone.InitRotation()
	rest := j.Bone.ParentRotation().Mul(init)
	u := rest.Inverse().Rotate(dir)
	return init.Mul(geom.LookRotation(u))
}

// ComputeTargetRotation returns the local rotation that points the joint at
// target. Body joints aim so that a ray leaving at eye height parallel to
// their forward axis meets the target. The bone is not modified.
func (j *Joint) ComputeTargetRotation(target mgl64.Vec3) mgl64.Quat {
	pos := j.Bone.Position()
	dir := target.Sub(pos)
	if dir.Len() < geom.Epsilon {
		return j.Bone.LocalRotation()
	}
	trg := j.rotationFacing(dir)
	if j.IsEye() || j.eyeCenter == nil {
		return trg
	}
	center, ok := j.eyeCenter()
	if !ok {
		return trg
	}
	h := j.Bone.Rotation().Inverse().Rotate(center.Sub(pos)).Y()
	if math.Abs(h) < geom.Epsilon {
		return trg
	}
	frame := j.Bone.ParentRotation().Mul(trg)
	local := frame.Inverse().Rotate(dir).Sub(mgl64.Vec3{0, h, 0})
	if local.Len() < geom.Epsilon {
		return trg
	}
	return trg.Mul(geom.LookRotation(local))
}

// InitTargetRotation sets the raw target from the effective gaze target.
func (j *Joint) InitTargetRotation(target mgl64.Vec3) {
	s := &j.s
	s.trgRot = j.ComputeTargetRotation(target)
	s.trgRotAlign = s.trgRot
	s.trgRotMR = s.trgRot
	s.distRotAlign = geom.DistanceToRotate(s.srcRot, s.trgRot)
	s.distRotMR = s.distRotAlign
}

// InitTargetRotationMR clamps the pursued rotation to the current motor
// range and records the distance to the clamped rotation.
func (j *Joint) InitTargetRotationMR() {
	s := &j.s
	if !j.IsEye() {
		s.trgRotMR = s.trgRotAlign
		s.distRotMR = s.distRotAlign
		return
	}
	s.trgRotMR = j.limitMR(s.trgRotAlign)
	s.distRotMR = geom.DistanceToRotate(s.srcRot, s.trgRotMR)
}

// UpdateTargetRotation recomputes the target after an ancestor moved and
// renormalizes progress so the distance already covered is preserved. A
// joint that already arrived stays locked on the moved target.
func (j *Joint) UpdateTargetRotation(target mgl64.Vec3) {
	s := &j.s
	prevDRA := s.distRotAlign
	prevDRMR := s.distRotMR
	prevFDR := geom.DistanceToRotate(s.srcRot, s.trgRot)

	s.trgRot = j.ComputeTargetRotation(target)
	if j.IsEye() {
		s.trgRotAlign = s.trgRot
		j.InitTargetRotationMR()
	} else {
		arp := 1.0
		if prevFDR > geom.Epsilon {
			arp = prevDRA / prevFDR
		}
		s.trgRotAlign = geom.Slerp(s.srcRot, s.trgRot, arp)
	}
	s.distRotAlign = geom.DistanceToRotate(s.srcRot, s.trgRotAlign)

	if s.atTarget {
		s.rotParamAlign = 1
	} else if s.distRotAlign > geom.Epsilon {
		s.rotParamAlign = geom.Clamp01(s.rotParamAlign * prevDRA / s.distRotAlign)
	}
	if j.IsEye() && s.distRotMR > geom.Epsilon {
		s.rotParamMR = geom.Clamp01(s.rotParamMR * prevDRMR / s.distRotMR)
	}
}

// setAlignedTarget replaces the pursued rotation.
func (j *Joint) setAlignedTarget(q mgl64.Quat) {
	s := &j.s
	s.trgRotAlign = q
	s.distRotAlign = geom.DistanceToRotate(s.srcRot, q)
}

// Integration

// initGazeParams resets the per-shift state at shift start.
func (j *Joint) initGazeParams(target mgl64.Vec3, allowOvershoot bool) {
	s := &j.s
	s.mrReached = false
	s.trgReached = false
	s.atTarget = false
	j.resetAdjMR()
	j.initCurMR()

	s.curAlign = geom.Clamp01(j.Align)
	if j.IsEye() {
		s.curAlign = 1
	}
	s.latency = j.Latency
	s.latencyTime = 0
	s.maxVelocity = j.Velocity
	s.curVelocity = 0

	s.srcRot = j.Bone.LocalRotation()
	s.rotParamAlign = 0
	s.rotParamMR = 0
	j.InitTargetRotation(target)

	s.allowOvershoot = allowOvershoot && j.IsEye() && j.OutMR > j.InMR+geom.Epsilon
	s.overshootRot = mgl64.QuatIdent()
	s.stopOvershoot = false
}

// RecalculateVelocity sets the current velocity from the peak velocity and
// the shift progress (0-1) using a bell-shaped profile.
func (j *Joint) RecalculateVelocity(progress float64) {
	s := &j.s
	rp := geom.Clamp01(progress)
	rp2 := rp * rp
	if j.IsEye() {
		if rp < 0.5 {
			s.curVelocity = (rp + 0.5) * s.maxVelocity
		} else {
			s.curVelocity = (8*rp2*rp - 18*rp2 + 12*rp - 1.5) * s.maxVelocity
		}
		return
	}
	if rp < 0.5 {
		s.curVelocity = rp*s.maxVelocity*1.5 + 0.25*s.maxVelocity
	} else {
		s.curVelocity = (12*rp2*rp - 27*rp2 + 18*rp - 2.75) * s.maxVelocity
	}
}

// AdvanceRotation moves the joint toward its aligned target by
// curVelocity*deltaTime degrees along the shortest arc, never past the
// target. Eyes stop at their motor-range boundary. It reports whether the
// target has been reached.
func (j *Joint) AdvanceRotation(deltaTime float64) bool {
	s := &j.s
	if !s.trgReached {
		if deltaTime <= 0 {
			return false
		}
		if s.distRotAlign > 0 && s.maxVelocity > geom.Epsilon {
			step := deltaTime * s.curVelocity
			s.rotParamAlign = geom.Clamp01(s.rotParamAlign + step/s.distRotAlign)
			if s.distRotMR > 0 {
				s.rotParamMR = geom.Clamp01(s.rotParamMR + step/s.distRotMR)
			} else {
				s.rotParamMR = 1
			}
			if s.rotParamAlign < 1 {
				rot := geom.Slerp(s.srcRot, s.trgRotAlign, s.rotParamAlign)
				if j.IsEye() {
					s.mrReached = j.violatesMR(rot)
					if s.mrReached {
						rot = j.limitMR(rot)
						s.rotParamAlign = geom.DistanceToRotate(s.srcRot, rot) / s.distRotAlign
						s.rotParamMR = 1
					}
				}
				j.apply(rot)
				return false
			}
		}
		s.trgReached = true
		if s.distRotAlign == 0 {
			s.rotParamAlign = 1
		}
		s.atTarget = s.rotParamAlign >= 1
	}
	j.hold()
	return true
}

// hold keeps a joint that stopped on its (possibly moving) target. Joints
// stopped early by their group leader stay at their current progress.
func (j *Joint) hold() {
	s := &j.s
	rot := geom.Slerp(s.srcRot, s.trgRotAlign, s.rotParamAlign)
	if s.allowOvershoot {
		if !s.stopOvershoot {
			// The eye keeps its rotation and overshoots with the head.
			s.overshootRot = s.trgRotAlign.Inverse().Mul(j.Bone.LocalRotation())
			rot = j.Bone.LocalRotation()
		} else {
			rot = s.trgRotAlign.Mul(s.overshootRot)
		}
	}
	if j.IsEye() {
		s.mrReached = j.violatesMR(rot)
		if s.mrReached {
			rot = j.limitMR(rot)
		}
	}
	j.apply(rot)
}

// apply sets the bone rotation. Eye rotations never carry roll.
func (j *Joint) apply(q mgl64.Quat) {
	if j.IsEye() {
		q = j.deroll(q)
	}
	j.Bone.SetLocalRotation(q)
}

func (j *Joint) deroll(q mgl64.Quat) mgl64.Quat {
	init := j.Bone.InitRotation()
	u := init.Inverse().Mul(q).Rotate(geom.Forward)
	return init.Mul(geom.LookRotation(u))
}

// VOR

// InitVOR captures the fixation point the joint should keep looking at
// while it is not being driven by a shift.
func (j *Joint) InitVOR(fixPoint mgl64.Vec3) {
	s := &j.s
	s.fixPoint = fixPoint
	s.fixSrcRot = s.srcRot
	s.fixTrgRot = j.ComputeTargetRotation(fixPoint)
	if j.IsEye() {
		s.fixRotParam = s.rotParamAlign
		s.fixTrgRotAlign = s.fixTrgRot
		return
	}
	cur := geom.Slerp(s.srcRot, s.trgRotAlign, s.rotParamAlign)
	fixDist := geom.DistanceToRotate(s.fixSrcRot, s.fixTrgRot)
	s.fixRotParam = 0
	if fixDist > geom.Epsilon {
		s.fixRotParam = geom.DistanceToRotate(s.fixSrcRot, cur) / fixDist
	}
	s.fixTrgRotAlign = geom.Slerp(s.fixSrcRot, s.fixTrgRot, s.fixRotParam)
}

// ApplyVOR counter-rotates the joint so it keeps fixating its fixation
// point under the current parent pose. The rotation is recomputed from
// scratch each call.
func (j *Joint) ApplyVOR() {
	s := &j.s
	s.fixTrgRot = j.ComputeTargetRotation(s.fixPoint)
	if j.IsEye() {
		s.fixTrgRotAlign = s.fixTrgRot
	} else {
		s.fixTrgRotAlign = geom.Slerp(s.fixSrcRot, s.fixTrgRot, s.fixRotParam)
	}
	rot := s.fixTrgRotAlign
	if j.IsEye() {
		s.mrReached = j.violatesMR(rot)
		if s.mrReached {
			rot = j.clampMR(j.Bone.InitRotation(), rot)
		}
	}
	j.apply(rot)
}

// Pose returns a snapshot of the joint.
func (j *Joint) Pose() JointPose {
	yaw, pitch := j.YawPitch()
	return JointPose{
		Name:          j.Name,
		Type:          j.Type.String(),
		Yaw:           yaw,
		Pitch:         pitch,
		TargetReached: j.s.trgReached,
		MRReached:     j.s.mrReached,
		LatencyTime:   j.s.latencyTime,
		Velocity:      j.s.curVelocity,
	}
}
