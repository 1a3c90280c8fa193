package sim

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/agent"
	"github.com/teslashibe/go-gaze/pkg/scenario"
)

var (
	toonRig = filepath.Join("testdata", "toon.yaml")
	glance  = filepath.Join("testdata", "glance.yaml")
)

func TestRunScenario(t *testing.T) {
	dir := t.TempDir()
	res, err := Run(context.Background(), Job{RigPath: toonRig, ScenarioPath: glance, TraceDir: dir}, log.Discard())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !res.Finished {
		t.Fatalf("Expected scenario to finish, stopped after %d frames", res.Frames)
	}
	if res.Agent != "toon" || res.Scenario != "glance" {
		t.Errorf("Expected toon/glance, got %s/%s", res.Agent, res.Scenario)
	}
	if len(res.Shifts) != 3 {
		t.Fatalf("Expected 3 shifts, got %v", res.Shifts)
	}
	if res.Shifts[0] <= 0 {
		t.Errorf("Expected a positive first shift duration, got %f", res.Shifts[0])
	}
	if res.Failed != 1 {
		t.Errorf("Expected the unknown target to fail once, got %d", res.Failed)
	}
	if res.MeanShift <= 0 || res.StdShift < 0 {
		t.Errorf("Expected shift statistics, got mean %f std %f", res.MeanShift, res.StdShift)
	}

	if res.Trace != filepath.Join(dir, "toon_glance.csv") {
		t.Errorf("Expected trace path in %s, got %s", dir, res.Trace)
	}
	f, err := os.Open(res.Trace)
	if err != nil {
		t.Fatalf("Expected trace file, got %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("Expected valid CSV, got %v", err)
	}
	if len(rows) != res.Frames+1 {
		t.Errorf("Expected %d rows, got %d", res.Frames+1, len(rows))
	}
	if got := len(rows[0]); got != 4+2*4 {
		t.Errorf("Expected 12 columns, got %d", got)
	}
	if rows[0][4] != "eye_l_yaw" {
		t.Errorf("Expected eye_l_yaw column, got %s", rows[0][4])
	}
}

func TestRunTimeCap(t *testing.T) {
	res, err := Run(context.Background(), Job{RigPath: toonRig, ScenarioPath: glance, MaxTime: 0.1}, log.Discard())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if res.Finished {
		t.Error("Expected the time cap to stop the run")
	}
	if res.Time < 0.1-1e-9 || res.Time > 0.1+2.0/30.0 {
		t.Errorf("Expected about 0.1 s simulated, got %f", res.Time)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, Job{RigPath: toonRig, ScenarioPath: glance}, log.Discard()); err == nil {
		t.Error("Expected cancelled context error")
	}
}

func TestRunAll(t *testing.T) {
	jobs := []Job{
		{RigPath: toonRig, ScenarioPath: glance},
		{RigPath: toonRig, ScenarioPath: glance, DT: 1.0 / 60.0},
	}
	res, err := RunAll(context.Background(), jobs, log.Discard())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(res))
	}
	for i, r := range res {
		if !r.Finished || len(r.Shifts) != 3 {
			t.Errorf("Expected job %d to finish with 3 shifts, got %+v", i, r)
		}
	}

	jobs = append(jobs, Job{RigPath: toonRig, ScenarioPath: "missing.yaml"})
	if _, err := RunAll(context.Background(), jobs, log.Discard()); err == nil {
		t.Error("Expected missing scenario to fail")
	}
}

func TestSummarize(t *testing.T) {
	if m, s := summarize(nil); m != 0 || s != 0 {
		t.Errorf("Expected zeros, got %f %f", m, s)
	}
	if m, s := summarize([]float64{0.5}); m != 0.5 || s != 0 {
		t.Errorf("Expected 0.5 and 0, got %f %f", m, s)
	}
	m, s := summarize([]float64{1, 2, 3})
	if m != 2 || math.Abs(s-1) > 1e-12 {
		t.Errorf("Expected mean 2 std 1, got %f %f", m, s)
	}
}

func TestAttachDrivesWorldAgent(t *testing.T) {
	rig, err := agent.LoadRig(toonRig)
	if err != nil {
		t.Fatal(err)
	}
	a, err := agent.FromRig(rig, log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	sc, err := scenario.Load(glance)
	if err != nil {
		t.Fatal(err)
	}
	w := agent.NewWorld(33*time.Millisecond, log.Discard())
	id := w.Add(a)
	if err := Attach(w, id, sc, false, log.Discard()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if err := Attach(w, "nobody", sc, false, log.Discard()); err == nil {
		t.Error("Expected unknown agent to fail")
	}

	var st agent.Status
	for i := 0; i < 3000; i++ {
		w.Step(w.Rate().Seconds())
		st, _ = w.Status(id)
		if st.Target == "front" && st.Idle {
			return
		}
	}
	t.Errorf("Expected the scenario to end looking front, got target %q idle %v", st.Target, st.Idle)
}

func TestAttachDetachesRemovedAgent(t *testing.T) {
	rig, err := agent.LoadRig(toonRig)
	if err != nil {
		t.Fatal(err)
	}
	a, err := agent.FromRig(rig, log.Discard())
	if err != nil {
		t.Fatal(err)
	}
	sc, err := scenario.Load(glance)
	if err != nil {
		t.Fatal(err)
	}
	w := agent.NewWorld(33*time.Millisecond, log.Discard())
	id := w.Add(a)

	var buf bytes.Buffer
	if err := Attach(w, id, sc, true, log.New("info", &buf)); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	w.Step(w.Rate().Seconds())
	if err := w.Remove(id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		w.Step(w.Rate().Seconds())
	}
	if n := strings.Count(buf.String(), "scenario detached"); n != 1 {
		t.Errorf("Expected one detach warning, got %d:\n%s", n, buf.String())
	}
}

func TestSampleFiles(t *testing.T) {
	rigs, _ := filepath.Glob(filepath.Join("..", "..", "rigs", "*.yaml"))
	scenarios, _ := filepath.Glob(filepath.Join("..", "..", "scenarios", "*.yaml"))
	if len(rigs) == 0 || len(scenarios) == 0 {
		t.Skip("no sample files")
	}
	for _, rig := range rigs {
		for _, sc := range scenarios {
			res, err := Run(context.Background(), Job{RigPath: rig, ScenarioPath: sc, MaxTime: 30}, log.Discard())
			if err != nil {
				t.Errorf("Expected %s on %s to run, got %v", sc, rig, err)
				continue
			}
			if res.Frames == 0 || res.Failed != 0 {
				t.Errorf("Expected %s on %s to run every step, got %+v", sc, rig, res)
			}
		}
	}
}
