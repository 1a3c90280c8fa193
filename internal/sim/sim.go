// Package sim drives agents through scenarios without a wall clock. It
// backs the gazesim and gazeserve commands.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/teslashibe/go-gaze/pkg/agent"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/scenario"
)

// Job is one simulation: a rig driven by a scenario.
type Job struct {
	RigPath      string
	ScenarioPath string

	DT       float64 // Seconds per tick
	MaxTime  float64 // Simulated seconds before giving up
	TraceDir string  // Directory for the CSV trace; empty disables tracing
}

// Result summarizes a finished job.
type Result struct {
	Agent    string    `json:"agent"`
	Scenario string    `json:"scenario"`
	Frames   int       `json:"frames"`
	Time     float64   `json:"time"`
	Shifts   []float64 `json:"shifts"` // Duration of every completed shift
	Failed   int       `json:"failed"` // Steps the agent rejected
	Finished bool      `json:"finished"`
	Trace    string    `json:"trace,omitempty"`

	MeanShift float64 `json:"mean_shift"`
	StdShift  float64 `json:"std_shift"`
}

func (j Job) withDefaults() Job {
	if j.DT <= 0 {
		j.DT = 1.0 / 30.0
	}
	if j.MaxTime <= 0 {
		j.MaxTime = 120
	}
	return j
}

// Run executes a job until the scenario ends and the agent is idle, the
// time cap is hit or ctx is cancelled.
func Run(ctx context.Context, job Job, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = slog.Default()
	}
	job = job.withDefaults()

	rig, err := agent.LoadRig(job.RigPath)
	if err != nil {
		return Result{}, err
	}
	sc, err := scenario.Load(job.ScenarioPath)
	if err != nil {
		return Result{}, err
	}
	a, err := agent.FromRig(rig, logger)
	if err != nil {
		return Result{}, err
	}

	res := Result{Agent: a.Name, Scenario: sc.Name}
	a.Gaze().OnStateChange(func(from, to gaze.State) {
		if from == gaze.Shifting && to == gaze.NoGaze {
			res.Shifts = append(res.Shifts, a.Gaze().ShiftTime())
		}
	})

	var tw *TraceWriter
	if job.TraceDir != "" {
		res.Trace = filepath.Join(job.TraceDir, traceName(job))
		tw, err = CreateTrace(res.Trace, a.Gaze())
		if err != nil {
			return Result{}, err
		}
		defer tw.Close()
	}

	run := scenario.NewRunner(sc, a, logger)
	log := logger.With("agent", a.Name, "scenario", sc.Name)
	log.Info("simulation started", "steps", len(sc.Steps), "dt", job.DT)

	for a.Time() < job.MaxTime {
		if res.Frames%64 == 0 {
			if err := ctx.Err(); err != nil {
				return res, err
			}
		}
		run.Tick(job.DT)
		a.Tick(job.DT)
		res.Frames++
		if tw != nil {
			if err := tw.Write(a); err != nil {
				return res, err
			}
		}
		if run.Done() && a.IsGazeIdle() {
			res.Finished = true
			break
		}
	}
	res.Time = a.Time()
	res.Failed = run.Failed()
	res.MeanShift, res.StdShift = summarize(res.Shifts)

	if tw != nil {
		if err := tw.Close(); err != nil {
			return res, err
		}
	}
	if !res.Finished {
		log.Warn("simulation hit time cap", "max_time", job.MaxTime, "step", run.Step())
	}
	log.Info("simulation finished",
		"frames", res.Frames,
		"time", res.Time,
		"shifts", len(res.Shifts),
		"mean_shift", res.MeanShift)
	return res, nil
}

// RunAll executes jobs concurrently. Agents share nothing, so each job
// gets its own goroutine. The first error cancels the rest.
func RunAll(ctx context.Context, jobs []Job, logger *slog.Logger) ([]Result, error) {
	results := make([]Result, len(jobs))
	g, ctx := errgroup.WithContext(ctx)
	for i, job := range jobs {
		g.Go(func() error {
			r, err := Run(ctx, job, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", job.ScenarioPath, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// summarize returns the mean and standard deviation of shift durations.
func summarize(xs []float64) (mean, std float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	mean, std = stat.MeanStdDev(xs, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return mean, std
}

func traceName(job Job) string {
	rig := strings.TrimSuffix(filepath.Base(job.RigPath), filepath.Ext(job.RigPath))
	sc := strings.TrimSuffix(filepath.Base(job.ScenarioPath), filepath.Ext(job.ScenarioPath))
	return rig + "_" + sc + ".csv"
}
