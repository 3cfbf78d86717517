package tools

import "errors"

// Tool registry errors.
var (
	// ErrCapabilityNotFound is returned by Execute for an unregistered tool.
	ErrCapabilityNotFound = errors.New("Capability not found")

	// ErrToolNotFound is returned by Schema for an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyRegistered is returned when registering a duplicate.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrInvalidTool is returned when a tool has no name or no handler.
	ErrInvalidTool = errors.New("tool requires a name and a handler")

	// ErrMissingRequiredArg is returned when a required argument is missing.
	ErrMissingRequiredArg = errors.New("missing required argument")

	// ErrInvalidArgType is returned when an argument has the wrong type.
	ErrInvalidArgType = errors.New("invalid argument type")
)
