package blink

import "errors"

// ErrInvalidConfig is returned when a blink parameter is out of range.
var ErrInvalidConfig = errors.New("blink: invalid config")
