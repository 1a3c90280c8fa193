package scenario

import "errors"

var (
	// ErrUnknownStep is returned for step actions the runner cannot perform.
	ErrUnknownStep = errors.New("scenario: unknown step")

	// ErrInvalidStep is returned for steps missing a required field.
	ErrInvalidStep = errors.New("scenario: invalid step")
)
