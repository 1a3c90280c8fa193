package agent

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/skeleton"
)

const dt = 1.0 / 30.0

func loadToon(t *testing.T) *Agent {
	t.Helper()
	rig, err := LoadRig(filepath.Join("testdata", "toon.yaml"))
	if err != nil {
		t.Fatalf("LoadRig failed: %v", err)
	}
	a, err := FromRig(rig, log.Discard())
	if err != nil {
		t.Fatalf("FromRig failed: %v", err)
	}
	return a
}

func runUntilIdle(t *testing.T, a *Agent, maxTicks int) {
	t.Helper()
	for i := 0; i < maxTicks; i++ {
		a.Tick(dt)
		if a.IsGazeIdle() {
			return
		}
	}
	t.Fatalf("gaze did not settle within %d ticks", maxTicks)
}

func TestParseRigDefaults(t *testing.T) {
	rig, err := LoadRig(filepath.Join("testdata", "toon.yaml"))
	if err != nil {
		t.Fatalf("LoadRig failed: %v", err)
	}
	if rig.Name != "toon" || len(rig.Bones) != 5 {
		t.Errorf("Expected toon with 5 bones, got %s with %d", rig.Name, len(rig.Bones))
	}
	p := rig.Gaze.Params
	if !p.StylizeGaze || p.EyeSize != 2 {
		t.Errorf("Expected stylized params, got %+v", p)
	}
	if p.EulerTimeStep != 0.015 || !p.HoldGaze {
		t.Errorf("Expected unset params to keep defaults, got step %f hold %v", p.EulerTimeStep, p.HoldGaze)
	}

	chain := rig.Gaze.Chain
	if len(chain) != 4 {
		t.Fatalf("Expected 4 joints, got %d", len(chain))
	}
	if chain[0].OutMR != 60 || chain[0].InMR != 55 || chain[0].Velocity != 150 {
		t.Errorf("Expected eye overrides over eye defaults, got %+v", chain[0])
	}
	if chain[2].Velocity != 70 || chain[2].Name != "head" {
		t.Errorf("Expected head velocity 70, got %+v", chain[2])
	}
	if chain[3].Type != gaze.Torso || chain[3].Align != 0 {
		t.Errorf("Expected torso defaults, got %+v", chain[3])
	}
	if !rig.Blink.Enabled || rig.Blink.Seed != 42 || rig.Blink.Rate != 0.2 {
		t.Errorf("Expected blink enabled with defaults, got %+v", rig.Blink)
	}
}

func TestParseRigErrors(t *testing.T) {
	cases := map[string]string{
		"no bones":     "name: x\ngaze:\n  chain:\n    - bone: a\n      type: head\n",
		"no chain":     "bones:\n  - name: a\n",
		"bad type":     "bones:\n  - name: a\ngaze:\n  chain:\n    - bone: a\n      type: tail\n",
		"chain as map": "bones:\n  - name: a\ngaze:\n  chain:\n    bone: a\n",
	}
	for name, src := range cases {
		if _, err := ParseRig([]byte(src)); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
	if _, err := LoadRig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestFromRigMissingBone(t *testing.T) {
	rig, err := ParseRig([]byte("bones:\n  - name: a\ngaze:\n  chain:\n    - bone: b\n      type: head\n"))
	if err != nil {
		t.Fatalf("ParseRig failed: %v", err)
	}
	if _, err := FromRig(rig, log.Discard()); !errors.Is(err, skeleton.ErrBoneNotFound) {
		t.Errorf("Expected ErrBoneNotFound, got %v", err)
	}
}

func TestFromRigUnknownViewer(t *testing.T) {
	src, err := os.ReadFile(filepath.Join("testdata", "toon.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	rig, err := ParseRig(src)
	if err != nil {
		t.Fatalf("ParseRig failed: %v", err)
	}
	rig.Viewer = "nobody"
	if _, err := FromRig(rig, log.Discard()); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Expected ErrTargetNotFound, got %v", err)
	}
}

func TestNewRequiresGaze(t *testing.T) {
	if _, err := New("x", skeleton.New()); !errors.Is(err, ErrNoGaze) {
		t.Errorf("Expected ErrNoGaze, got %v", err)
	}
}

func TestAgentGazesAtNamedTarget(t *testing.T) {
	a := loadToon(t)
	if a.Blink() == nil {
		t.Fatal("Expected a blink controller")
	}
	if err := a.GazeAtNamed("left"); err != nil {
		t.Fatalf("GazeAtNamed failed: %v", err)
	}
	if a.IsGazeIdle() {
		t.Error("Expected a pending shift")
	}
	runUntilIdle(t, a, 600)

	st := a.Status()
	if st.Target != "left" || !st.Idle {
		t.Errorf("Expected idle on left, got %+v", st)
	}
	if st.States["gaze"] != "NoGaze" {
		t.Errorf("Expected gaze state NoGaze, got %q", st.States["gaze"])
	}
	if _, ok := st.States["blink"]; !ok {
		t.Error("Expected the blink state in the status")
	}
	if len(st.Joints) != 4 {
		t.Errorf("Expected 4 joint poses, got %d", len(st.Joints))
	}
	want := mgl64.Vec3{2, 1.6, 1}
	if st.TargetPosition.Sub(want).Len() > 1e-9 {
		t.Errorf("Expected target %v, got %v", want, st.TargetPosition)
	}
	if a.Time() <= 0 {
		t.Error("Expected simulated time to advance")
	}
}

func TestAgentUnknownTarget(t *testing.T) {
	a := loadToon(t)
	if err := a.GazeAtNamed("moon"); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Expected ErrTargetNotFound, got %v", err)
	}
	if !a.IsGazeIdle() {
		t.Error("Expected an unknown target to be ignored")
	}
}

func TestAgentStopAndFront(t *testing.T) {
	a := loadToon(t)
	a.GazeAtPoint(mgl64.Vec3{-2, 1.6, 0.5})
	for i := 0; i < 5; i++ {
		a.Tick(dt)
	}
	a.StopGaze()
	a.Tick(dt)
	if !a.IsGazeIdle() {
		t.Fatal("Expected StopGaze to end the shift")
	}
	a.GazeAtFront()
	runUntilIdle(t, a, 600)
	if a.Status().Target != "front" {
		t.Errorf("Expected front target, got %q", a.Status().Target)
	}
}

func TestAgentUpdateGaze(t *testing.T) {
	a := loadToon(t)
	off := false
	if err := a.UpdateGaze(gaze.ParamPatch{StylizeGaze: &off}); err != nil {
		t.Fatalf("UpdateGaze failed: %v", err)
	}
	if a.Gaze().Config().StylizeGaze {
		t.Error("Expected stylization to be off")
	}
	if err := a.SetViewer("shelf"); err != nil {
		t.Errorf("SetViewer failed: %v", err)
	}
	if err := a.SetViewer("moon"); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("Expected ErrTargetNotFound, got %v", err)
	}
	names := a.Targets()
	if len(names) != 3 || names[0] != "camera" {
		t.Errorf("Expected sorted targets, got %v", names)
	}
}
