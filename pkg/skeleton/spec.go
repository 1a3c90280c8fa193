package skeleton

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/geom"
)

// BoneSpec describes one bone in a rig file. Position is in metres relative
// to the parent. Rotation is [yaw, pitch] or [yaw, pitch, roll] in degrees.
type BoneSpec struct {
	Name     string    `yaml:"name" json:"name"`
	Parent   string    `yaml:"parent,omitempty" json:"parent,omitempty"`
	Position []float64 `yaml:"position,omitempty" json:"position,omitempty"`
	Rotation []float64 `yaml:"rotation,omitempty" json:"rotation,omitempty"`
}

// Build creates a skeleton from bone specs. Parents must appear before
// their children.
func Build(specs []BoneSpec) (*Skeleton, error) {
	s := New()
	for _, bs := range specs {
		pos, err := Vec3(bs.Position)
		if err != nil {
			return nil, fmt.Errorf("bone %s position: %w", bs.Name, err)
		}
		rot, err := rotation(bs.Rotation)
		if err != nil {
			return nil, fmt.Errorf("bone %s rotation: %w", bs.Name, err)
		}
		if _, err := s.Add(bs.Name, bs.Parent, pos, rot); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Vec3 converts an optional three-element list to a vector.
func Vec3(v []float64) (mgl64.Vec3, error) {
	switch len(v) {
	case 0:
		return mgl64.Vec3{}, nil
	case 3:
		return mgl64.Vec3{v[0], v[1], v[2]}, nil
	default:
		return mgl64.Vec3{}, fmt.Errorf("%w: want 3 values, got %d", ErrInvalidVector, len(v))
	}
}

func rotation(r []float64) (mgl64.Quat, error) {
	switch len(r) {
	case 0:
		return mgl64.QuatIdent(), nil
	case 2:
		return geom.FromYawPitch(r[0], r[1]), nil
	case 3:
		roll := mgl64.QuatRotate(mgl64.DegToRad(r[2]), geom.Forward)
		return geom.FromYawPitch(r[0], r[1]).Mul(roll), nil
	default:
		return mgl64.Quat{}, fmt.Errorf("%w: want 2 or 3 angles, got %d", ErrInvalidVector, len(r))
	}
}
