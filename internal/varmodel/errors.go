package varmodel

import "errors"

// Contract violations surfaced by the model types. These indicate a caller
// or registry mismatch, never a data-quality issue, so they are distinct
// sentinel errors that callers can test with errors.Is.
var (
	// ErrInvalidShape is returned when an array is built with no dimensions
	// or a non-positive dimension.
	ErrInvalidShape = errors.New("invalid array shape")

	// ErrShapeMismatch is returned when an index tuple arity does not match
	// the array rank.
	ErrShapeMismatch = errors.New("index tuple does not match array rank")

	// ErrIndexOutOfBounds is returned when an index component is negative or
	// exceeds its dimension.
	ErrIndexOutOfBounds = errors.New("array index out of bounds")

	// ErrDuplicateMember is returned when a struct member name is added twice.
	ErrDuplicateMember = errors.New("duplicate struct member")

	// ErrArrayCountMismatch is returned when the indexed segments of a path
	// do not line up with the array nodes registered for the variable.
	ErrArrayCountMismatch = errors.New("array node count does not match path")

	// ErrNotASubpath is returned when an array node is registered at a path
	// that is not a prefix of the factory access name.
	ErrNotASubpath = errors.New("path is not a subpath of the access name")

	// ErrDuplicateNode is returned when an array node is registered twice at
	// the same path.
	ErrDuplicateNode = errors.New("duplicate array node")

	// ErrUnsupportedIndirection is returned when resolving a variable would
	// require following more than one pointer.
	ErrUnsupportedIndirection = errors.New("double pointer indirection is not supported")
)
