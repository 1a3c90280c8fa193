// Package skeleton holds a minimal transform hierarchy: named bones with
// local position and rotation, world-space queries and rest-pose tracking.
package skeleton

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Skeleton is an ordered set of bones. Bones are stored in insertion order,
// which is always parent-before-child.
type Skeleton struct {
	bones  []*Bone
	byName map[string]*Bone
}

// New creates an empty skeleton.
func New() *Skeleton {
	return &Skeleton{byName: make(map[string]*Bone)}
}

// Add registers a bone under parent ("" for a root).
func (s *Skeleton) Add(name, parent string, pos mgl64.Vec3, rot mgl64.Quat) (*Bone, error) {
	if _, ok := s.byName[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateBone, name)
	}
	var p *Bone
	if parent != "" {
		p = s.byName[parent]
		if p == nil {
			return nil, fmt.Errorf("%w: parent %q of %q", ErrBoneNotFound, parent, name)
		}
	}
	b := newBone(name, p, pos, rot)
	s.bones = append(s.bones, b)
	s.byName[name] = b
	return b, nil
}

// Bone returns the bone with the given name, or nil.
func (s *Skeleton) Bone(name string) *Bone {
	return s.byName[name]
}

// Find is like Bone but returns ErrBoneNotFound for missing names.
func (s *Skeleton) Find(name string) (*Bone, error) {
	if b := s.byName[name]; b != nil {
		return b, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrBoneNotFound, name)
}

// Bones returns all bones in insertion order.
func (s *Skeleton) Bones() []*Bone {
	return s.bones
}

// Names returns the sorted bone names.
func (s *Skeleton) Names() []string {
	names := make([]string, 0, len(s.bones))
	for _, b := range s.bones {
		names = append(names, b.name)
	}
	sort.Strings(names)
	return names
}

// Snapshot records the current local rotation of every bone as its
// previous-frame rotation.
func (s *Skeleton) Snapshot() {
	for _, b := range s.bones {
		b.prevRot = b.localRot
	}
}

// ResetPose puts every bone back to its rest rotation.
func (s *Skeleton) ResetPose() {
	for _, b := range s.bones {
		b.localRot = b.initRot
	}
}

// SetRestPose makes the current pose the rest pose.
func (s *Skeleton) SetRestPose() {
	for _, b := range s.bones {
		b.initRot = b.localRot
	}
}
