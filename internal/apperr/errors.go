// Package apperr holds sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidLocation = errors.New("invalid location")
	// ErrEnumeration marks a failure to list the corpus; a rebuild that hits
	// it leaves the previous graph in place.
	ErrEnumeration = errors.New("corpus enumeration failed")
)
