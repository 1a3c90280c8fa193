package skeleton

import "errors"

var (
	// ErrBoneNotFound is returned when a bone or its parent is not in the skeleton.
	ErrBoneNotFound = errors.New("skeleton: bone not found")

	// ErrDuplicateBone is returned when a bone name is registered twice.
	ErrDuplicateBone = errors.New("skeleton: duplicate bone")

	// ErrInvalidVector is returned when a position or rotation list has the wrong length.
	ErrInvalidVector = errors.New("skeleton: invalid vector")
)
