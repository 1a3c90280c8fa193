package gaze

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/geom"
	"github.com/teslashibe/go-gaze/pkg/skeleton"
)

func newEye(t *testing.T, typ JointType) *Joint {
	t.Helper()
	skel := skeleton.New()
	bone, err := skel.Add("eye", "", mgl64.Vec3{0, 1.6, 0}, mgl64.QuatIdent())
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	j, err := NewJoint(DefaultJointConfig("eye", typ), bone)
	if err != nil {
		t.Fatalf("NewJoint failed: %v", err)
	}
	return j
}

func TestNewJointValidates(t *testing.T) {
	if _, err := NewJoint(DefaultJointConfig("x", Head), nil); !errors.Is(err, ErrNilBone) {
		t.Errorf("Expected ErrNilBone, got %v", err)
	}
	skel := skeleton.New()
	bone, _ := skel.Add("eye", "", mgl64.Vec3{}, mgl64.QuatIdent())
	cfg := DefaultJointConfig("", LeftEye)
	cfg.InMR = 0
	if _, err := NewJoint(cfg, bone); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	cfg = DefaultJointConfig("", LeftEye)
	j, err := NewJoint(cfg, bone)
	if err != nil {
		t.Fatalf("NewJoint failed: %v", err)
	}
	if j.Name != "eye" {
		t.Errorf("Expected name from bone, got %q", j.Name)
	}
}

func TestVelocityProfiles(t *testing.T) {
	eye := newEye(t, LeftEye)
	eye.s.maxVelocity = 100
	cases := map[float64]float64{0: 50, 0.5: 100, 1: 50}
	for rp, want := range cases {
		eye.RecalculateVelocity(rp)
		if math.Abs(eye.CurVelocity()-want) > 1e-9 {
			t.Errorf("Expected eye velocity %f at %f, got %f", want, rp, eye.CurVelocity())
		}
	}

	body := newEye(t, LeftEye)
	body.Type = Head
	body.s.maxVelocity = 100
	cases = map[float64]float64{0: 25, 0.5: 100, 1: 25}
	for rp, want := range cases {
		body.RecalculateVelocity(rp)
		if math.Abs(body.CurVelocity()-want) > 1e-9 {
			t.Errorf("Expected body velocity %f at %f, got %f", want, rp, body.CurVelocity())
		}
	}
}

func TestMotorRangeEllipse(t *testing.T) {
	eye := newEye(t, RightEye) // nasal toward +yaw
	in := geom.FromYawPitch(30, 0)
	if r := eye.mrRatio(in); math.Abs(r-(30.0*30)/(55*55)) > 1e-6 {
		t.Errorf("Expected ratio %f, got %f", (30.0*30)/(55*55), r)
	}
	if eye.violatesMR(in) {
		t.Error("Expected 30 degrees inward to be allowed")
	}
	diag := geom.FromYawPitch(45, 35)
	if !eye.violatesMR(diag) {
		t.Error("Expected the diagonal to fall outside the ellipse")
	}

	clamped := eye.clampMR(mgl64.QuatIdent(), geom.FromYawPitch(80, 0))
	yaw, _ := geom.YawPitch(clamped.Rotate(geom.Forward))
	if math.Abs(yaw-55) > 0.01 {
		t.Errorf("Expected clamp at the 55 degree boundary, got %f", yaw)
	}
	if eye.violatesMR(clamped) {
		t.Error("Expected the clamped rotation to be inside the range")
	}
}

func TestUpdateOMRShrinksWithHeadVelocity(t *testing.T) {
	eye := newEye(t, LeftEye)
	eye.UpdateOMR(300)
	if math.Abs(eye.s.curIn-27.5) > 1e-9 {
		t.Errorf("Expected half the range at 300 deg/s, got %f", eye.s.curIn)
	}
	eye.UpdateOMR(6000)
	if math.Abs(eye.s.curIn-5.5) > 1e-9 {
		t.Errorf("Expected the range floor, got %f", eye.s.curIn)
	}
}

func TestRelaxMRContainsSource(t *testing.T) {
	eye := newEye(t, LeftEye)
	far := geom.FromYawPitch(70, 0)
	eye.relaxMR(far)
	if eye.violatesMR(far) {
		t.Error("Expected the relaxed range to contain the source")
	}
}

func TestAdvanceRotationStopsOnTarget(t *testing.T) {
	skel := skeleton.New()
	bone, _ := skel.Add("head", "", mgl64.Vec3{0, 1.5, 0}, mgl64.QuatIdent())
	j, err := NewJoint(DefaultJointConfig("head", Head), bone)
	if err != nil {
		t.Fatalf("NewJoint failed: %v", err)
	}
	target := mgl64.Vec3{1, 1.5, 1}
	j.initGazeParams(target, false)
	j.s.maxVelocity = 90

	reached := false
	prev := j.DistRotAlign()
	for i := 0; i < 200 && !reached; i++ {
		j.RecalculateVelocity(j.s.rotParamAlign)
		reached = j.AdvanceRotation(0.015)
		d := geom.Angle(bone.LocalRotation(), j.AlignedTargetRotation())
		if d > prev+1e-6 {
			t.Fatalf("Expected monotonic approach, went %f -> %f", prev, d)
		}
		prev = d
	}
	if !reached || !j.TargetReached() {
		t.Fatal("Expected the joint to reach its target")
	}
	if e := geom.VecAngle(j.Direction(), target.Sub(bone.Position())); e > 1e-3 {
		t.Errorf("Expected the joint to face the target, off by %f", e)
	}
}

func TestZeroVelocityJointHolds(t *testing.T) {
	skel := skeleton.New()
	bone, _ := skel.Add("head", "", mgl64.Vec3{0, 1.5, 0}, mgl64.QuatIdent())
	cfg := DefaultJointConfig("head", Head)
	cfg.Velocity = 0
	j, err := NewJoint(cfg, bone)
	if err != nil {
		t.Fatalf("NewJoint failed: %v", err)
	}
	j.initGazeParams(mgl64.Vec3{1, 1.5, 1}, false)
	if !j.AdvanceRotation(0.015) {
		t.Error("Expected a frozen joint to count as done")
	}
	if !geom.Same(bone.LocalRotation(), mgl64.QuatIdent()) {
		t.Error("Expected a frozen joint to stay put")
	}
}

func TestEyeRotationHasNoRoll(t *testing.T) {
	eye := newEye(t, LeftEye)
	eye.apply(mgl64.QuatRotate(0.4, mgl64.Vec3{1, 1, 1}.Normalize()))
	right := eye.Bone.Rotation().Rotate(geom.Right)
	if math.Abs(right.Y()) > 1e-9 {
		t.Errorf("Expected a roll-free eye, right axis is %v", right)
	}
}

func TestEyeYawIsNasalPositive(t *testing.T) {
	left := newEye(t, LeftEye)
	left.Bone.SetLocalRotation(geom.FromYawPitch(-20, 0))
	if yaw, _ := left.YawPitch(); math.Abs(yaw-20) > 1e-9 {
		t.Errorf("Expected inward yaw 20 for the left eye, got %f", yaw)
	}
	pose := left.Pose()
	if pose.Type != "left_eye" || math.Abs(pose.Yaw-20) > 1e-9 {
		t.Errorf("Expected left_eye at yaw 20, got %+v", pose)
	}
}
