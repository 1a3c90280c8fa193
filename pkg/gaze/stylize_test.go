package gaze

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/geom"
)

// distanceToLine returns how far p lies from the line through a and b.
func distanceToLine(p, a, b mgl64.Vec3) float64 {
	d := b.Sub(a)
	return p.Sub(a).Cross(d).Len() / d.Len()
}

func TestViewAlignPullsTargetTowardViewer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StylizeGaze = true
	cfg.EyeAlign = 0
	ref := newRig(t, headAndEyes, cfg)
	viewer := ref.targetAt(0, 2)

	r := newRig(t, headAndEyes, cfg, WithViewer(Point(viewer)))
	c := r.ctrl
	target := r.targetAt(5, 2)
	c.GazeAt(target)
	c.LateTick(frame)

	eff := c.EffGazeTargetPosition()
	if d := distanceToLine(eff, target, viewer); d > 1e-6 {
		t.Errorf("Expected the effective target on the target-viewer line, off by %g", d)
	}
	moved := eff.Sub(target).Len()
	if moved < 1e-3 {
		t.Errorf("Expected the effective target to move toward the viewer, got %v", eff)
	}
	if moved >= viewer.Sub(target).Len() {
		t.Errorf("Expected the effective target between target and viewer, got %v", eff)
	}
	r.run(t, 300)

	cfg.EyeAlign = 1
	r = newRig(t, headAndEyes, cfg, WithViewer(Point(viewer)))
	r.ctrl.GazeAt(target)
	r.ctrl.LateTick(frame)
	if d := r.ctrl.EffGazeTargetPosition().Sub(target).Len(); d > 1e-9 {
		t.Errorf("Expected full eye alignment to keep the raw target, moved %g", d)
	}
}

func TestViewAdjustNarrowsOuterRange(t *testing.T) {
	cases := []struct {
		name      string
		viewerYaw float64
		narrowed  bool
	}{
		{"target beside viewer", 20, true},
		{"target far from viewer", -40, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, eyesOnly, DefaultConfig())
			c := r.ctrl
			for _, eye := range c.Eyes() {
				eye.InMR, eye.OutMR = 40, 55
			}
			c.SetViewer(Point(r.targetAt(tc.viewerYaw, 3)))
			c.GazeAt(r.targetAt(21, 2))
			c.LateTick(frame)

			for _, eye := range c.Eyes() {
				s := eye.s
				ratio := s.adjOut / s.adjIn
				if tc.narrowed && math.Abs(ratio-1) > 1e-9 {
					t.Errorf("Expected %s outer range to collapse to the inner range, got %f/%f", eye.Name, s.adjOut, s.adjIn)
				}
				if !tc.narrowed && math.Abs(ratio-55.0/40.0) > 1e-9 {
					t.Errorf("Expected %s ranges untouched, got %f/%f", eye.Name, s.adjOut, s.adjIn)
				}
			}
		})
	}
}

func TestAsymmetricEyeMotion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StylizeGaze = true
	cfg.EnableAEM = true
	r := newRig(t, eyesOnly, cfg)
	c := r.ctrl
	c.GazeAt(r.targetAt(30, 2))
	c.LateTick(frame)

	lead, trail := c.LEye(), c.REye()
	if trail.DistRotMR() > lead.DistRotMR() {
		lead, trail = trail, lead
	}
	if trail.DistRotMR() >= lead.DistRotMR() {
		t.Fatalf("Expected the eyes to rotate by different amounts, both %f", lead.DistRotMR())
	}
	if trail.MaxVelocity() >= lead.MaxVelocity() {
		t.Errorf("Expected the trailing eye to be slower, got %f vs %f", trail.MaxVelocity(), lead.MaxVelocity())
	}
	want := trail.DistRotMR() / lead.DistRotMR()
	if got := trail.MaxVelocity() / lead.MaxVelocity(); math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected velocity ratio %f, got %f", want, got)
	}

	cfg.EnableAEM = false
	r = newRig(t, eyesOnly, cfg)
	r.ctrl.GazeAt(r.targetAt(30, 2))
	r.ctrl.LateTick(frame)
	if l, rv := r.ctrl.LEye().MaxVelocity(), r.ctrl.REye().MaxVelocity(); math.Abs(l-rv) > 1e-9 {
		t.Errorf("Expected equal eye velocities without AEM, got %f and %f", l, rv)
	}
}

func TestEyesAheadOfHead(t *testing.T) {
	velocities := func(eah bool) []float64 {
		cfg := DefaultConfig()
		cfg.StylizeGaze = true
		cfg.EyeTorque = 3
		cfg.EnableEAH = eah
		r := newRig(t, headAndEyes, cfg)
		r.ctrl.GazeAt(r.targetAt(50, 2))
		r.ctrl.LateTick(frame)
		var out []float64
		for _, eye := range r.ctrl.Eyes() {
			out = append(out, eye.MaxVelocity())
		}
		return out
	}
	on, off := velocities(true), velocities(false)
	for i := range on {
		if on[i] <= off[i] {
			t.Errorf("Expected eye %d faster when the head does the work, got %f vs %f", i, on[i], off[i])
		}
	}
}

func TestOvershootHoldsThenFreezes(t *testing.T) {
	r := newRig(t, headAndEyes, DefaultConfig())
	eye := r.ctrl.LEye()
	eye.InMR, eye.OutMR = 45, 60
	eye.initGazeParams(r.targetAt(10, 2), true)
	if !eye.s.allowOvershoot {
		t.Fatal("Expected an eye with a wider outer range to allow overshoot")
	}

	held := geom.FromYawPitch(8, 0)
	eye.Bone.SetLocalRotation(held)
	eye.s.trgRotAlign = geom.FromYawPitch(5, 0)
	eye.hold()
	if d := geom.Angle(eye.Bone.LocalRotation(), held); d > 1e-6 {
		t.Errorf("Expected the eye to keep its rotation while overshooting, moved %f degrees", d)
	}

	eye.s.stopOvershoot = true
	eye.s.trgRotAlign = geom.FromYawPitch(2, 0)
	eye.hold()
	want := geom.FromYawPitch(5, 0)
	if d := geom.Angle(eye.Bone.LocalRotation(), want); d > 1e-6 {
		t.Errorf("Expected the overshoot offset to follow the target, off by %f degrees", d)
	}

	eye.initGazeParams(r.targetAt(10, 2), false)
	if eye.s.allowOvershoot {
		t.Error("Expected overshoot to stay off when not requested")
	}
}

func TestStylizedShiftEndsWithFirstEye(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StylizeGaze = true
	r := newRig(t, eyesOnly, cfg)
	c := r.ctrl
	c.REye().Velocity = 1
	target := r.targetAt(20, 2)
	c.GazeAt(target)
	r.run(t, 300)

	if !c.LEye().TargetReached() {
		t.Error("Expected the fast eye on target")
	}
	if c.REye().TargetReached() || c.REye().MRReached() {
		t.Error("Expected the slow eye still on its way")
	}
	if e := aimError(c.REye(), c.EffGazeTargetPosition()); e < 1 {
		t.Errorf("Expected the slow eye short of the target, off by only %f degrees", e)
	}
	if c.ShiftTime() > 2 {
		t.Errorf("Expected the shift to end with the fast eye, took %f s", c.ShiftTime())
	}
}
