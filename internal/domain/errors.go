package domain

import "errors"

// ErrNotFound indicates an expected absence. It is not a failure and lets
// re-runs stay idempotent.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates an unexpected filesystem object blocks a link or copy.
// It is never resolved by deleting real content.
var ErrConflict = errors.New("conflicting path")

// ErrIO covers permission, disk-full and hardware failures. A level that hits
// one is reported as Broken.
var ErrIO = errors.New("i/o failure")

// ErrPartialProgress indicates a multi-step operation stopped partway. The
// filesystem is left as-is for the next run to pick up.
var ErrPartialProgress = errors.New("partial progress")

// ErrInvalidDescriptor is returned when a descriptor fails validation
var ErrInvalidDescriptor = errors.New("invalid descriptor")
