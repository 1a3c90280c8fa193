package gaze

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/geom"
	"github.com/teslashibe/go-gaze/pkg/skeleton"
)

const frame = 1.0 / 30.0

// eyeHeight is the world height of both eyes in the test rig.
const eyeHeight = 1.6

type chainKind int

const (
	eyesOnly chainKind = iota
	headAndEyes
	fullChain
)

type testRig struct {
	skel *skeleton.Skeleton
	ctrl *Controller
}

func newRig(t *testing.T, kind chainKind, cfg Config, opts ...Option) *testRig {
	t.Helper()
	skel, err := skeleton.Build([]skeleton.BoneSpec{
		{Name: "root"},
		{Name: "spine", Parent: "root", Position: []float64{0, 1, 0}},
		{Name: "head", Parent: "spine", Position: []float64{0, 0.5, 0}},
		{Name: "eye_l", Parent: "head", Position: []float64{0.032, 0.1, 0.08}},
		{Name: "eye_r", Parent: "head", Position: []float64{-0.032, 0.1, 0.08}},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	joint := func(bone string, typ JointType) *Joint {
		j, err := NewJoint(DefaultJointConfig(bone, typ), skel.Bone(bone))
		if err != nil {
			t.Fatalf("NewJoint(%s) failed: %v", bone, err)
		}
		return j
	}
	joints := []*Joint{joint("eye_l", LeftEye), joint("eye_r", RightEye)}
	if kind >= headAndEyes {
		joints = append(joints, joint("head", Head))
	}
	if kind >= fullChain {
		joints = append(joints, joint("spine", Torso))
	}

	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	c, err := New(cfg, joints, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return &testRig{skel: skel, ctrl: c}
}

// eyeCenter returns the midpoint between the eyes in the rest pose.
func (r *testRig) eyeCenter() mgl64.Vec3 {
	c, _ := r.ctrl.eyeCenter()
	return c
}

// targetAt returns a point at eye height, yaw degrees off the forward
// axis and dist metres from the eyes.
func (r *testRig) targetAt(yaw, dist float64) mgl64.Vec3 {
	dir := geom.FromYawPitch(yaw, 0).Rotate(geom.Forward)
	return r.eyeCenter().Add(dir.Mul(dist))
}

// run ticks the controller until it goes idle or maxFrames pass. It
// reports the frames used.
func (r *testRig) run(t *testing.T, maxFrames int) int {
	t.Helper()
	for i := 1; i <= maxFrames; i++ {
		r.ctrl.Tick(frame)
		r.ctrl.LateTick(frame)
		if r.ctrl.IsIdle() {
			return i
		}
	}
	t.Fatalf("gaze shift did not finish within %d frames", maxFrames)
	return maxFrames
}

// aimError returns the angle between a joint's facing and the direction
// to p.
func aimError(j *Joint, p mgl64.Vec3) float64 {
	return geom.VecAngle(j.Direction(), p.Sub(j.Bone.Position()))
}

func rotations(c *Controller) []mgl64.Quat {
	out := make([]mgl64.Quat, len(c.joints))
	for i, j := range c.joints {
		out[i] = j.Bone.LocalRotation()
	}
	return out
}

func maxRotationChange(a, b []mgl64.Quat) float64 {
	m := 0.0
	for i := range a {
		m = math.Max(m, geom.Angle(a[i], b[i]))
	}
	return m
}

type stubBlinker struct {
	calls  int
	offset float64
	prob   float64
}

func (b *stubBlinker) Blink(startOffset, intensity, probability float64) bool {
	b.calls++
	b.offset = startOffset
	b.prob = probability
	return true
}

func (b *stubBlinker) BlinkRate() float64   { return 0.2 }
func (b *stubBlinker) BlinkLength() float64 { return 0.19 }

type stubFace struct {
	random, speech bool
	stops          int
	sets           int
}

func (f *stubFace) StopGesture()                { f.stops++ }
func (f *stubFace) MotionEnabled() (bool, bool) { return f.random, f.speech }
func (f *stubFace) SetMotionEnabled(r, s bool) {
	f.random, f.speech = r, s
	f.sets++
}
