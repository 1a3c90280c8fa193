package skeleton

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-gaze/pkg/geom"
)

// Bone is one node of a transform hierarchy. Its position and rotation are
// stored relative to the parent; root bones are expressed in world space.
type Bone struct {
	name   string
	parent *Bone

	localPos mgl64.Vec3
	localRot mgl64.Quat
	initRot  mgl64.Quat
	prevRot  mgl64.Quat
}

func newBone(name string, parent *Bone, pos mgl64.Vec3, rot mgl64.Quat) *Bone {
	rot = rot.Normalize()
	return &Bone{
		name:     name,
		parent:   parent,
		localPos: pos,
		localRot: rot,
		initRot:  rot,
		prevRot:  rot,
	}
}

// Name returns the bone name.
func (b *Bone) Name() string { return b.name }

// Parent returns the parent bone, or nil for a root.
func (b *Bone) Parent() *Bone { return b.parent }

// LocalPosition returns the offset from the parent.
func (b *Bone) LocalPosition() mgl64.Vec3 { return b.localPos }

// LocalRotation returns the rotation relative to the parent.
func (b *Bone) LocalRotation() mgl64.Quat { return b.localRot }

// SetLocalRotation sets the rotation relative to the parent.
func (b *Bone) SetLocalRotation(q mgl64.Quat) { b.localRot = q.Normalize() }

// InitRotation returns the rest (bind) local rotation.
func (b *Bone) InitRotation() mgl64.Quat { return b.initRot }

// PrevRotation returns the local rotation captured by the last Snapshot.
func (b *Bone) PrevRotation() mgl64.Quat { return b.prevRot }

// Rotation returns the world rotation.
func (b *Bone) Rotation() mgl64.Quat {
	if b.parent == nil {
		return b.localRot
	}
	return b.parent.Rotation().Mul(b.localRot)
}

// ParentRotation returns the parent's world rotation, identity for roots.
func (b *Bone) ParentRotation() mgl64.Quat {
	if b.parent == nil {
		return mgl64.QuatIdent()
	}
	return b.parent.Rotation()
}

// Position returns the world position.
func (b *Bone) Position() mgl64.Vec3 {
	if b.parent == nil {
		return b.localPos
	}
	return b.parent.Position().Add(b.parent.Rotation().Rotate(b.localPos))
}

// Forward returns the world facing direction.
func (b *Bone) Forward() mgl64.Vec3 {
	return b.Rotation().Rotate(geom.Forward)
}
