package graphics

import "errors"

// Initialization error taxonomy. Backends wrap these so callers can test
// with errors.Is regardless of the underlying API.
var (
	// ErrUnsupported means the platform lacks the required GPU capability.
	ErrUnsupported = errors.New("graphics: platform does not support GPU rendering")

	// ErrNoDevice means no adapter/device could be obtained.
	ErrNoDevice = errors.New("graphics: no GPU device available")

	// ErrSurface means the target surface could not be bound.
	ErrSurface = errors.New("graphics: target surface cannot be bound")
)
