// Package agent drives virtual characters. An Agent owns a skeleton and the
// controllers animating it; a World steps many agents at a fixed rate.
package agent

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/teslashibe/go-gaze/pkg/blink"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/skeleton"
)

// Controller animates part of an agent. Tick runs for every controller
// before any LateTick, so late work sees the pose of the whole frame.
type Controller interface {
	Name() string
	Init() error
	Tick(dt float64)
	LateTick(dt float64)
	StateName() string
}

// Agent is one character. It is not safe for concurrent use; World
// serializes access.
type Agent struct {
	ID   string
	Name string

	skel        *skeleton.Skeleton
	gaze        *gaze.Controller
	blink       *blink.Controller
	controllers []Controller
	targets     map[string]gaze.Target
	target      string
	time        float64
	log         *slog.Logger
}

// New builds an agent over skel. Exactly one of the controllers must be a
// gaze controller. Controllers tick in the order given.
func New(name string, skel *skeleton.Skeleton, controllers ...Controller) (*Agent, error) {
	a := &Agent{
		ID:          uuid.New().String(),
		Name:        name,
		skel:        skel,
		controllers: controllers,
		targets:     make(map[string]gaze.Target),
	}
	a.log = slog.Default().With("agent", name)
	for _, c := range controllers {
		switch v := c.(type) {
		case *gaze.Controller:
			a.gaze = v
		case *blink.Controller:
			a.blink = v
		}
	}
	if a.gaze == nil {
		return nil, ErrNoGaze
	}
	for _, c := range controllers {
		if err := c.Init(); err != nil {
			return nil, fmt.Errorf("init %s: %w", c.Name(), err)
		}
	}
	return a, nil
}

// Tick advances every controller by dt seconds.
func (a *Agent) Tick(dt float64) {
	a.skel.Snapshot()
	for _, c := range a.controllers {
		c.Tick(dt)
	}
	for _, c := range a.controllers {
		c.LateTick(dt)
	}
	a.time += dt
}

// Skeleton returns the agent's skeleton.
func (a *Agent) Skeleton() *skeleton.Skeleton { return a.skel }

// Gaze returns the gaze controller.
func (a *Agent) Gaze() *gaze.Controller { return a.gaze }

// Blink returns the blink controller, or nil.
func (a *Agent) Blink() *blink.Controller { return a.blink }

// Time returns the seconds simulated so far.
func (a *Agent) Time() float64 { return a.time }

// SetTarget registers or replaces a named gaze target.
func (a *Agent) SetTarget(name string, t gaze.Target) {
	a.targets[name] = t
}

// Targets returns the sorted names of the registered targets.
func (a *Agent) Targets() []string {
	names := make([]string, 0, len(a.targets))
	for n := range a.targets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Target returns a named target.
func (a *Agent) Target(name string) (gaze.Target, error) {
	t, ok := a.targets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, name)
	}
	return t, nil
}

// GazeAtNamed starts a shift toward a registered target. Unknown names
// are logged and ignored.
func (a *Agent) GazeAtNamed(name string) error {
	t, err := a.Target(name)
	if err != nil {
		a.log.Warn("gaze request dropped", "target", name)
		return err
	}
	a.target = name
	a.gaze.GazeAtTarget(t)
	return nil
}

// GazeAtPoint starts a shift toward a world position.
func (a *Agent) GazeAtPoint(p mgl64.Vec3) {
	a.target = ""
	a.gaze.GazeAt(p)
}

// GazeAtFront starts a shift to straight ahead.
func (a *Agent) GazeAtFront() {
	a.target = "front"
	a.gaze.GazeAtFront()
}

// StopGaze interrupts the running shift.
func (a *Agent) StopGaze() { a.gaze.StopGaze() }

// IsGazeIdle reports whether no shift is running or pending.
func (a *Agent) IsGazeIdle() bool { return a.gaze.IsIdle() }

// UpdateGaze applies a partial gaze configuration update.
func (a *Agent) UpdateGaze(p gaze.ParamPatch) error {
	return a.gaze.UpdateConfig(p)
}

// SetViewer makes a named target the viewer for stylized shifts.
func (a *Agent) SetViewer(name string) error {
	t, err := a.Target(name)
	if err != nil {
		return err
	}
	a.gaze.SetViewer(t)
	return nil
}

// Status is a JSON snapshot of an agent.
type Status struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Time           float64           `json:"time"`
	States         map[string]string `json:"states"`
	Idle           bool              `json:"idle"`
	Target         string            `json:"target,omitempty"`
	TargetPosition mgl64.Vec3        `json:"target_position"`
	EffTarget      mgl64.Vec3        `json:"effective_target"`
	CrossEyedness  float64           `json:"cross_eyedness"`
	Joints         []gaze.JointPose  `json:"joints"`
	Blink          [2]float64        `json:"blink"`
	Targets        []string          `json:"targets"`
}

// Status returns a snapshot of the agent.
func (a *Agent) Status() Status {
	st := Status{
		ID:             a.ID,
		Name:           a.Name,
		Time:           a.time,
		States:         make(map[string]string, len(a.controllers)),
		Idle:           a.gaze.IsIdle(),
		Target:         a.target,
		TargetPosition: a.gaze.TargetPosition(),
		EffTarget:      a.gaze.EffGazeTargetPosition(),
		CrossEyedness:  a.gaze.CrossEyedness(),
		Joints:         a.gaze.Pose(),
		Targets:        a.Targets(),
	}
	for _, c := range a.controllers {
		st.States[c.Name()] = c.StateName()
	}
	if a.blink != nil {
		st.Blink[0], st.Blink[1] = a.blink.Weights()
	}
	return st
}
