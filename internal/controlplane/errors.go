package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrDecisionNotFound = errors.New("decision not found")
	ErrInvalidEvent     = errors.New("invalid event")
)
