// Package gaze implements a procedural gaze-shift controller. A chain of
// joints (eyes, head, torso) is driven toward a target with human-like
// latencies, velocity profiles and oculomotor range limits. Optional
// stylization adapts the motion for cartoon characters with large eyes.
//
// The controller is a plain state machine polled once per frame: GazeAt
// records a request, LateTick advances the shift in fixed sub-steps.
// It is not safe for concurrent use.
package gaze

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/fsm"
	"github.com/teslashibe/go-gaze/pkg/geom"
)

const (
	// defaultFixDistance is how far along the current facing direction the
	// initial fixation point lies (metres).
	defaultFixDistance = 2.0
	// frontDistance places the GazeAtFront target (metres).
	frontDistance = 10.0
	// minFixDistance keeps fixation points of interrupted shifts off the eye.
	minFixDistance = 0.1
)

// Option configures a Controller.
type Option func(*Controller)

// WithViewer sets the viewer (camera) used for view-based stylization.
func WithViewer(t Target) Option {
	return func(c *Controller) { c.viewer = t }
}

// WithBlinker sets the blink collaborator used to mask stylized shifts.
func WithBlinker(b Blinker) Option {
	return func(c *Controller) { c.blinker = b }
}

// WithFaceMotion sets the facial-motion collaborator suppressed during shifts.
func WithFaceMotion(f FaceMotion) Option {
	return func(c *Controller) { c.face = f }
}

// WithLogger sets the logger. It overrides Config.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// Controller orchestrates a gaze chain.
type Controller struct {
	cfg    Config
	params Config // snapshot taken at shift start
	log    *slog.Logger

	joints   []*Joint
	eyes     []*Joint
	headNeck []*Joint
	torso    []*Joint

	fsm *fsm.Machine[State]

	viewer  Target
	blinker Blinker
	face    FaceMotion

	faceSuppressed bool
	faceRandom     bool
	faceSpeech     bool

	gazeTarget    Target
	doGazeShift   bool
	stopGazeShift bool
	frontRequest  bool
	frontShift    bool

	curGazeTarget   Target
	curTrgPos       mgl64.Vec3
	effGazeTrgPos   mgl64.Vec3
	curGazeHoldTime float64
	shiftTime       float64
	subSteps        int

	distRot       float64
	adjEyeAlign   float64
	maxCrEyedView float64
	headVelocity  float64

	curRots  []mgl64.Quat
	estimate Estimate
}

// New builds a controller over joints ordered eyes first, then head/neck
// joints, then torso joints, each group innermost first. Groups may be
// missing; the chain must not be empty.
func New(cfg Config, joints []*Joint, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(joints) == 0 {
		return nil, ErrEmptyChain
	}
	prev := 0
	for i, j := range joints {
		if j == nil || j.Bone == nil {
			return nil, fmt.Errorf("%w: joint %d", ErrNilBone, i)
		}
		r := j.Type.rank()
		if r < prev {
			return nil, fmt.Errorf("%w: %s (%s) at index %d", ErrChainOrder, j.Name, j.Type, i)
		}
		prev = r
	}

	c := &Controller{
		cfg:     cfg,
		params:  cfg.normalized(),
		log:     cfg.Logger,
		joints:  joints,
		curRots: make([]mgl64.Quat, len(joints)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "gaze")

	for _, j := range joints {
		switch j.Type {
		case Head:
			c.headNeck = append(c.headNeck, j)
		case Torso:
			c.torso = append(c.torso, j)
		default:
			c.eyes = append(c.eyes, j)
		}
	}
	for _, j := range c.headNeck {
		j.eyeCenter = c.eyeCenter
	}
	for _, j := range c.torso {
		j.eyeCenter = c.eyeCenter
	}
	c.initNasalSigns()
	c.resetFixation()

	c.fsm = fsm.New(NoGaze)
	c.fsm.AddState(NoGaze, fsm.State{LateUpdate: c.lateUpdateNoGaze})
	c.fsm.AddState(Shifting, fsm.State{LateUpdate: c.lateUpdateShifting})
	c.fsm.AddTransition(NoGaze, Shifting, c.startShift)
	c.fsm.AddTransition(Shifting, NoGaze, c.endShift)
	return c, nil
}

// initNasalSigns derives which yaw direction points toward the nose from
// the eye positions. Single eyes keep the type default.
func (c *Controller) initNasalSigns() {
	center, ok := c.eyeCenter()
	if !ok || len(c.eyes) < 2 {
		return
	}
	for _, eye := range c.eyes {
		rest := eye.Bone.ParentRotation().Mul(eye.Bone.InitRotation())
		v := rest.Inverse().Rotate(center.Sub(eye.Bone.Position()))
		if math.Abs(v.X()) > geom.Epsilon {
			eye.nasalSign = math.Copysign(1, v.X())
		}
	}
}

// resetFixation makes every joint fixate a point straight ahead of it.
func (c *Controller) resetFixation() {
	for _, j := range c.joints {
		j.reset()
		j.InitVOR(j.Bone.Position().Add(j.Direction().Mul(defaultFixDistance)))
	}
}

// Name identifies the controller to the agent driver.
func (c *Controller) Name() string { return "gaze" }

// Init resets the per-shift state and fixation from the current pose.
func (c *Controller) Init() error {
	c.resetFixation()
	c.doGazeShift = false
	c.stopGazeShift = false
	return nil
}

// Tick runs the per-frame update. Gaze work happens in LateTick, after
// other controllers have posed the body.
func (c *Controller) Tick(dt float64) {
	c.fsm.Update(dt)
}

// LateTick advances the state machine by dt seconds.
func (c *Controller) LateTick(dt float64) {
	c.fsm.LateUpdate(dt)
}

// State returns the current state.
func (c *Controller) State() State { return c.fsm.Current() }

// StateName returns the current state name.
func (c *Controller) StateName() string { return c.fsm.Current().String() }

// IsIdle reports whether no shift is running or pending.
func (c *Controller) IsIdle() bool {
	return c.fsm.Current() == NoGaze && !c.doGazeShift
}

// OnStateChange registers a listener for state transitions.
func (c *Controller) OnStateChange(fn func(from, to State)) {
	c.fsm.OnChange(fn)
}

// GazeAt requests a shift toward a world position.
func (c *Controller) GazeAt(p mgl64.Vec3) {
	c.GazeAtTarget(Point(p))
}

// GazeAtTarget requests a shift toward t. The position is sampled when the
// shift starts. A nil target is ignored.
func (c *Controller) GazeAtTarget(t Target) {
	if t == nil {
		return
	}
	c.gazeTarget = t
	c.doGazeShift = true
	c.frontRequest = false
}

// GazeAtFront requests a shift to a point straight ahead of the rest pose
// at head height, with the head fully aligned.
func (c *Controller) GazeAtFront() {
	ref := c.joints[0]
	if h := c.Head(); h != nil {
		ref = h
	}
	dir := ref.Bone.ParentRotation().Mul(ref.Bone.InitRotation()).Rotate(geom.Forward)
	dir = mgl64.Vec3{dir.X(), 0, dir.Z()}
	if dir.Len() < geom.Epsilon {
		dir = geom.Forward
	}
	c.GazeAtTarget(Point(ref.Bone.Position().Add(dir.Normalize().Mul(frontDistance))))
	c.frontRequest = true
}

// StopGaze interrupts the running shift on the next tick and drops any
// pending request. The pose is kept where it is.
func (c *Controller) StopGaze() {
	c.stopGazeShift = true
	c.doGazeShift = false
}

// Config returns the live configuration.
func (c *Controller) Config() Config { return c.cfg }

// SetConfig replaces the configuration. It applies from the next shift.
func (c *Controller) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Logger == nil {
		cfg.Logger = c.cfg.Logger
	}
	c.cfg = cfg
	return nil
}

// UpdateConfig applies a partial configuration update.
func (c *Controller) UpdateConfig(p ParamPatch) error {
	cfg, err := c.cfg.Apply(p)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// SetViewer changes the viewer used by the next shift.
func (c *Controller) SetViewer(t Target) { c.viewer = t }

// SetBlinker changes the blink collaborator used by the next shift.
func (c *Controller) SetBlinker(b Blinker) { c.blinker = b }

// Accessors. Missing joints yield nil.

// Joints returns the whole chain.
func (c *Controller) Joints() []*Joint { return c.joints }

// Eyes returns the eye joints.
func (c *Controller) Eyes() []*Joint { return c.eyes }

// HeadNeck returns the head and neck joints, innermost first.
func (c *Controller) HeadNeck() []*Joint { return c.headNeck }

// TorsoJoints returns the torso joints, innermost first.
func (c *Controller) TorsoJoints() []*Joint { return c.torso }

// LEye returns the left eye.
func (c *Controller) LEye() *Joint { return c.firstOf(LeftEye) }

// REye returns the right eye.
func (c *Controller) REye() *Joint { return c.firstOf(RightEye) }

// Head returns the innermost head joint.
func (c *Controller) Head() *Joint {
	if len(c.headNeck) == 0 {
		return nil
	}
	return c.headNeck[0]
}

// Torso returns the innermost torso joint.
func (c *Controller) Torso() *Joint {
	if len(c.torso) == 0 {
		return nil
	}
	return c.torso[0]
}

func (c *Controller) firstOf(t JointType) *Joint {
	for _, j := range c.joints {
		if j.Type == t {
			return j
		}
	}
	return nil
}

// TargetPosition returns the sampled position of the current target.
func (c *Controller) TargetPosition() mgl64.Vec3 { return c.curTrgPos }

// EffGazeTargetPosition returns the position the chain actually aims at:
// the stylization-corrected position for stylized shifts, the raw target
// otherwise.
func (c *Controller) EffGazeTargetPosition() mgl64.Vec3 {
	if c.params.StylizeGaze {
		return c.effGazeTrgPos
	}
	return c.curTrgPos
}

// ShiftTime returns the seconds spent in the current or last shift.
func (c *Controller) ShiftTime() float64 { return c.shiftTime }

// SubSteps returns the integration steps taken by the current or last shift.
func (c *Controller) SubSteps() int { return c.subSteps }

// HoldTime returns the seconds spent idle since the last shift started.
func (c *Controller) HoldTime() float64 { return c.curGazeHoldTime }

// HeadShiftAmplitude returns how far (degrees) the head turns in the current
// or last shift, 0 without a head.
func (c *Controller) HeadShiftAmplitude() float64 {
	h := c.Head()
	if h == nil {
		return 0
	}
	return geom.Angle(h.s.srcRot, h.s.trgRotAlign)
}

// EyePitch returns the downward pitch (degrees) of the first eye.
func (c *Controller) EyePitch() float64 {
	if len(c.eyes) == 0 {
		return 0
	}
	_, pitch := c.eyes[0].YawPitch()
	return pitch
}

// Stylized reports whether the current or last shift was stylized.
func (c *Controller) Stylized() bool { return c.params.StylizeGaze }

// LastEstimate returns the forward-simulation estimate of the last shift.
func (c *Controller) LastEstimate() Estimate { return c.estimate }

// Pose returns a snapshot of every joint.
func (c *Controller) Pose() []JointPose {
	out := make([]JointPose, len(c.joints))
	for i, j := range c.joints {
		out[i] = j.Pose()
	}
	return out
}

// State handlers

func (c *Controller) lateUpdateNoGaze(dt float64) {
	c.stopGazeShift = false
	if c.cfg.HoldGaze {
		c.ApplyVORForEyes()
	}
	c.curGazeHoldTime += dt
	if c.doGazeShift && c.gazeTarget != nil {
		c.suppressFace()
		c.goTo(Shifting)
	}
}

func (c *Controller) lateUpdateShifting(dt float64) {
	if c.stopGazeShift {
		c.goTo(NoGaze)
		return
	}
	c.suppressFace()
	if c.advanceFrame(dt) {
		c.goTo(NoGaze)
	}
}

func (c *Controller) goTo(s State) {
	if err := c.fsm.GoTo(s); err != nil {
		c.log.Error("state transition failed", "error", err)
	}
}

// advanceFrame consumes dt in fixed sub-steps plus one partial step. Time
// left over after the shift finishes is dropped.
func (c *Controller) advanceFrame(dt float64) bool {
	step := c.params.EulerTimeStep
	n := int(dt / step)
	rem := dt - float64(n)*step
	for i := 0; i <= n; i++ {
		sdt := step
		if i == n {
			if rem <= 1e-9 {
				break
			}
			sdt = rem
		}
		c.shiftTime += sdt
		c.subSteps++
		if c.AdvanceGazeShift(sdt) {
			return true
		}
	}
	return false
}

// endShift runs on Shifting -> NoGaze.
func (c *Controller) endShift() {
	interrupted := c.stopGazeShift
	if interrupted {
		// Keep looking exactly where each joint points now.
		for _, j := range c.joints {
			pos := j.Bone.Position()
			d := math.Max(c.curTrgPos.Sub(pos).Len(), minFixDistance)
			j.s.fixPoint = pos.Add(j.Direction().Mul(d))
		}
	} else {
		eff := c.EffGazeTargetPosition()
		for _, j := range c.joints {
			j.s.fixPoint = eff
		}
	}
	c.InitVOR()
	c.restoreFace()
	c.frontShift = false

	if interrupted {
		c.log.Debug("gaze shift interrupted", "time", c.shiftTime, "steps", c.subSteps)
	} else {
		c.log.Debug("gaze shift finished", "time", c.shiftTime, "steps", c.subSteps)
	}
}

// Face motion

func (c *Controller) suppressFace() {
	if c.face == nil {
		return
	}
	c.face.StopGesture()
	if !c.faceSuppressed {
		c.faceRandom, c.faceSpeech = c.face.MotionEnabled()
		c.faceSuppressed = true
	}
	c.face.SetMotionEnabled(false, false)
}

func (c *Controller) restoreFace() {
	if c.face == nil || !c.faceSuppressed {
		return
	}
	c.face.SetMotionEnabled(c.faceRandom, c.faceSpeech)
	c.faceSuppressed = false
}

// VOR

// InitVOR captures fixation for every joint at its current fixation point.
func (c *Controller) InitVOR() {
	for _, j := range c.joints {
		j.InitVOR(j.s.fixPoint)
	}
}

// ApplyVOR counter-rotates every joint, outermost first.
func (c *Controller) ApplyVOR() {
	for ji := len(c.joints) - 1; ji >= 0; ji-- {
		c.joints[ji].ApplyVOR()
	}
}

// ApplyVORForEyes counter-rotates the eyes only.
func (c *Controller) ApplyVORForEyes() {
	for _, eye := range c.eyes {
		eye.ApplyVOR()
	}
}

// Geometry helpers

// eyeCenter returns the midpoint of the eyes.
func (c *Controller) eyeCenter() (mgl64.Vec3, bool) {
	if len(c.eyes) == 0 {
		return mgl64.Vec3{}, false
	}
	var sum mgl64.Vec3
	for _, eye := range c.eyes {
		sum = sum.Add(eye.Bone.Position())
	}
	return sum.Mul(1 / float64(len(c.eyes))), true
}

// gazeOrigin returns the eye midpoint and mean eye direction, falling back
// to the innermost joint for eyeless chains.
func (c *Controller) gazeOrigin() (center, dir mgl64.Vec3) {
	if len(c.eyes) == 0 {
		j := c.joints[0]
		return j.Bone.Position(), j.Direction()
	}
	for _, eye := range c.eyes {
		center = center.Add(eye.Bone.Position())
		dir = dir.Add(eye.Direction())
	}
	n := 1 / float64(len(c.eyes))
	center = center.Mul(n)
	dir = dir.Mul(n)
	if dir.Len() > geom.Epsilon {
		dir = dir.Normalize()
	}
	return center, dir
}

// storeCurrentPose remembers the local rotation of every joint.
func (c *Controller) storeCurrentPose() {
	for i, j := range c.joints {
		c.curRots[i] = j.Bone.LocalRotation()
	}
}

// reapplyCurrentPose restores the pose saved by storeCurrentPose.
func (c *Controller) reapplyCurrentPose() {
	for i, j := range c.joints {
		j.Bone.SetLocalRotation(c.curRots[i])
	}
}
