package domain

import "errors"

// Sentinel errors shared by all layers. The HTTP adapter maps them to
// status codes (400/404/503); everything else is an internal failure.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
	ErrUnavailable     = errors.New("unavailable")
)
