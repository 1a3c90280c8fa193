package scenario

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/skeleton"
)

// Actor is the agent surface a scenario drives.
type Actor interface {
	GazeAtNamed(name string) error
	GazeAtPoint(p mgl64.Vec3)
	GazeAtFront()
	StopGaze()
	IsGazeIdle() bool
	UpdateGaze(p gaze.ParamPatch) error
	SetViewer(name string) error
}

// Runner executes a scenario against an actor. Tick it once per frame
// before the actor's own tick.
type Runner struct {
	steps []Step
	actor Actor
	log   *slog.Logger

	idx     int
	elapsed float64 // time spent in the current blocking step
	failed  int
}

// NewRunner creates a runner. A nil logger uses slog.Default().
func NewRunner(s *Scenario, actor Actor, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		steps: s.Steps,
		actor: actor,
		log:   logger.With("component", "scenario", "scenario", s.Name),
	}
}

// Done reports whether every step has run.
func (r *Runner) Done() bool { return r.idx >= len(r.steps) }

// Step returns the index of the current step.
func (r *Runner) Step() int { return r.idx }

// Failed returns how many steps were skipped because the actor rejected
// them.
func (r *Runner) Failed() int { return r.failed }

// Tick runs instantaneous steps until one blocks or the list ends.
func (r *Runner) Tick(dt float64) {
	for !r.Done() {
		st := r.steps[r.idx]
		switch st.Action {
		case Wait:
			r.elapsed += dt
			if r.elapsed < st.Seconds {
				return
			}
		case WaitIdle:
			if !r.actor.IsGazeIdle() {
				r.elapsed += dt
				if st.Seconds <= 0 || r.elapsed < st.Seconds {
					return
				}
				r.log.Warn("wait_idle timed out", "step", r.idx+1, "seconds", st.Seconds)
			}
		default:
			r.run(st)
		}
		r.idx++
		r.elapsed = 0
	}
}

func (r *Runner) run(st Step) {
	var err error
	switch st.Action {
	case GazeAt:
		err = r.actor.GazeAtNamed(st.Target)
	case GazeAtPoint:
		var p mgl64.Vec3
		if p, err = skeleton.Vec3(st.Point); err == nil {
			r.actor.GazeAtPoint(p)
		}
	case GazeFront:
		r.actor.GazeAtFront()
	case StopGaze:
		r.actor.StopGaze()
	case Set:
		if st.Params != nil {
			err = r.actor.UpdateGaze(*st.Params)
		}
	case SetViewer:
		err = r.actor.SetViewer(st.Target)
	default:
		err = ErrUnknownStep
	}
	if err != nil {
		r.failed++
		r.log.Warn("scenario step skipped", "step", r.idx+1, "action", st.Action, "error", err)
		return
	}
	r.log.Debug("scenario step", "step", r.idx+1, "action", st.Action, "target", st.Target)
}
