package agent

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-gaze/pkg/blink"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/skeleton"
)

// Rig describes an agent: its skeleton, gaze chain and parameters, blink
// settings and the named targets it can look at.
type Rig struct {
	Name    string               `yaml:"name" json:"name"`
	Bones   []skeleton.BoneSpec  `yaml:"bones" json:"bones"`
	Gaze    GazeSpec             `yaml:"gaze" json:"gaze"`
	Blink   BlinkSpec            `yaml:"blink" json:"blink"`
	Targets map[string][]float64 `yaml:"targets,omitempty" json:"targets,omitempty"`
	Viewer  string               `yaml:"viewer,omitempty" json:"viewer,omitempty"`
}

// GazeSpec holds the gaze parameters and the joint chain.
type GazeSpec struct {
	Params gaze.Config `yaml:"params" json:"params"`
	Chain  Chain       `yaml:"chain" json:"chain"`
}

// BlinkSpec enables and tunes the blink controller.
type BlinkSpec struct {
	Enabled      bool `yaml:"enabled" json:"enabled"`
	blink.Config `yaml:",inline"`
}

// Chain is the gaze joint list. Fields missing from a rig entry take the
// defaults for the joint's type.
type Chain []gaze.JointConfig

// UnmarshalYAML decodes each joint over the defaults for its type.
func (c *Chain) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("%w: gaze chain must be a list", ErrInvalidRig)
	}
	out := make(Chain, 0, len(n.Content))
	for _, item := range n.Content {
		var head struct {
			Bone string `yaml:"bone"`
			Type string `yaml:"type"`
		}
		if err := item.Decode(&head); err != nil {
			return err
		}
		typ, err := gaze.ParseJointType(head.Type)
		if err != nil {
			return fmt.Errorf("joint %s: %w", head.Bone, err)
		}
		jc := gaze.DefaultJointConfig(head.Bone, typ)
		if err := item.Decode(&jc); err != nil {
			return err
		}
		if jc.Name == "" {
			jc.Name = jc.Bone
		}
		out = append(out, jc)
	}
	*c = out
	return nil
}

// LoadRig reads and parses a rig file.
func LoadRig(path string) (*Rig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rig: %w", err)
	}
	rig, err := ParseRig(data)
	if err != nil {
		return nil, fmt.Errorf("rig %s: %w", path, err)
	}
	return rig, nil
}

// ParseRig decodes a YAML rig over the default parameters.
func ParseRig(data []byte) (*Rig, error) {
	rig := &Rig{
		Gaze:  GazeSpec{Params: gaze.DefaultConfig()},
		Blink: BlinkSpec{Config: blink.DefaultConfig()},
	}
	if err := yaml.Unmarshal(data, rig); err != nil {
		return nil, fmt.Errorf("parse rig: %w", err)
	}
	if len(rig.Bones) == 0 {
		return nil, fmt.Errorf("%w: no bones", ErrInvalidRig)
	}
	if len(rig.Gaze.Chain) == 0 {
		return nil, fmt.Errorf("%w: empty gaze chain", ErrInvalidRig)
	}
	if rig.Name == "" {
		rig.Name = "agent"
	}
	return rig, nil
}

// FromRig builds an agent from a rig.
func FromRig(rig *Rig, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	skel, err := skeleton.Build(rig.Bones)
	if err != nil {
		return nil, fmt.Errorf("build skeleton: %w", err)
	}

	joints := make([]*gaze.Joint, 0, len(rig.Gaze.Chain))
	for _, jc := range rig.Gaze.Chain {
		bone, err := skel.Find(jc.Bone)
		if err != nil {
			return nil, fmt.Errorf("joint %s: %w", jc.Name, err)
		}
		j, err := gaze.NewJoint(jc, bone)
		if err != nil {
			return nil, fmt.Errorf("joint %s: %w", jc.Name, err)
		}
		joints = append(joints, j)
	}

	targets := make(map[string]gaze.Target, len(rig.Targets))
	for name, v := range rig.Targets {
		p, err := skeleton.Vec3(v)
		if err != nil {
			return nil, fmt.Errorf("target %s: %w", name, err)
		}
		targets[name] = gaze.Point(p)
	}

	log := logger.With("agent", rig.Name)
	params := rig.Gaze.Params
	params.Logger = log
	var opts []gaze.Option
	if rig.Viewer != "" {
		v, ok := targets[rig.Viewer]
		if !ok {
			return nil, fmt.Errorf("viewer: %w: %s", ErrTargetNotFound, rig.Viewer)
		}
		opts = append(opts, gaze.WithViewer(v))
	}

	gc, err := gaze.New(params, joints, opts...)
	if err != nil {
		return nil, fmt.Errorf("gaze: %w", err)
	}
	controllers := []Controller{gc}
	if rig.Blink.Enabled {
		bcfg := rig.Blink.Config
		bcfg.Logger = log
		b, err := blink.New(bcfg, blink.WithGaze(gc))
		if err != nil {
			return nil, fmt.Errorf("blink: %w", err)
		}
		gc.SetBlinker(b)
		controllers = append(controllers, b)
	}

	a, err := New(rig.Name, skel, controllers...)
	if err != nil {
		return nil, err
	}
	a.log = log
	for name, t := range targets {
		a.SetTarget(name, t)
	}
	return a, nil
}
