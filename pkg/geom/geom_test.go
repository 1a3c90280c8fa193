package geom

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestLookRotationFacesDirection(t *testing.T) {
	dirs := []mgl64.Vec3{
		{0, 0, 1},
		{1, 0, 0},
		{0, 0.5, 1},
		{-1, -1, 0.2},
	}
	for _, d := range dirs {
		q := LookRotation(d)
		got := q.Rotate(Forward)
		if VecAngle(got, d) > 1e-6 {
			t.Errorf("Expected LookRotation(%v) to face %v, got %v", d, d, got)
		}
	}
}

func TestLookRotationIsRollFree(t *testing.T) {
	q := LookRotation(mgl64.Vec3{1, 0.3, 0.5})
	right := q.Rotate(Right)
	if !approx(right.Y(), 0, 1e-9) {
		t.Errorf("Expected right axis to stay horizontal, got %v", right)
	}
}

func TestYawPitchSigns(t *testing.T) {
	yaw, pitch := YawPitch(mgl64.Vec3{1, 0, 1})
	if !approx(yaw, 45, 1e-9) || !approx(pitch, 0, 1e-9) {
		t.Errorf("Expected yaw 45 pitch 0, got %f %f", yaw, pitch)
	}
	_, pitch = YawPitch(mgl64.Vec3{0, -1, 1})
	if !approx(pitch, 45, 1e-9) {
		t.Errorf("Expected downward pitch 45, got %f", pitch)
	}
}

func TestFromYawPitchRoundTrip(t *testing.T) {
	q := FromYawPitch(30, -20)
	yaw, pitch := YawPitch(q.Rotate(Forward))
	if !approx(yaw, 30, 1e-9) || !approx(pitch, -20, 1e-9) {
		t.Errorf("Expected 30/-20, got %f/%f", yaw, pitch)
	}
}

func TestSlerpShortestArc(t *testing.T) {
	a := mgl64.QuatIdent()
	b := FromYawPitch(90, 0).Scale(-1)
	mid := Slerp(a, b, 0.5)
	if d := Angle(a, mid); !approx(d, 45, 1e-6) {
		t.Errorf("Expected 45 degrees to midpoint, got %f", d)
	}
	if !Same(Slerp(a, b, 2), b) {
		t.Error("Expected t > 1 to clamp to the target")
	}
}

func TestDistanceToRotateSnapsToZero(t *testing.T) {
	a := mgl64.QuatIdent()
	b := FromYawPitch(1e-6, 0)
	if d := DistanceToRotate(a, b); d != 0 {
		t.Errorf("Expected 0, got %g", d)
	}
	if d := DistanceToRotate(a, FromYawPitch(10, 0)); !approx(d, 10, 1e-6) {
		t.Errorf("Expected 10, got %f", d)
	}
}

func TestFromTo(t *testing.T) {
	a := mgl64.Vec3{1, 0, 0}
	b := mgl64.Vec3{0, 0, 1}
	got := FromTo(a, b).Rotate(a)
	if VecAngle(got, b) > 1e-6 {
		t.Errorf("Expected %v, got %v", b, got)
	}
	got = FromTo(a, a.Mul(-1)).Rotate(a)
	if VecAngle(got, a.Mul(-1)) > 1e-6 {
		t.Errorf("Expected opposite vector, got %v", got)
	}
}

func TestClosestPoints(t *testing.T) {
	s, u := ClosestPoints(
		mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0},
		mgl64.Vec3{2, 1, -1}, mgl64.Vec3{2, 1, 1},
	)
	if !approx(s, 2, 1e-9) || !approx(u, 0.5, 1e-9) {
		t.Errorf("Expected s=2 t=0.5, got s=%f t=%f", s, u)
	}
}

func TestClampAngle(t *testing.T) {
	cases := map[float64]float64{190: -170, -190: 170, 45: 45, 720: 0}
	for in, want := range cases {
		if got := ClampAngle(in); !approx(got, want, 1e-9) {
			t.Errorf("Expected ClampAngle(%f) = %f, got %f", in, want, got)
		}
	}
}
