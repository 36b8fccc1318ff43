package store

import "errors"

// ErrNotFound is returned when a record does not exist. For messages it
// also covers records owned by someone else; the two cases are not
// distinguished.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert violates a uniqueness constraint.
var ErrConflict = errors.New("already exists")
