package domain

import "errors"

var (
	// ErrInvalidCoordinate is returned for non-finite or out-of-range lon/lat.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	// ErrDegenerateGrid is returned when an interval yields zero rows or columns.
	ErrDegenerateGrid = errors.New("degenerate grid")
	// ErrGridTooLarge is returned when a grid would exceed the allowed cell count.
	ErrGridTooLarge = errors.New("grid too large")
	// ErrIndexOutOfRange is returned for positional access outside [0, len).
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrEmptyPointSet is returned when an operation needs the bounds of an empty set.
	ErrEmptyPointSet = errors.New("point set is empty")
	// ErrNotFound is returned by repositories for unknown identifiers.
	ErrNotFound = errors.New("not found")
)

// ErrTooManyPoints is returned when a point set exceeds the configured size.
var ErrTooManyPoints = errors.New("too many points")
