package varmap

import "errors"

var (
	// ErrMalformedVarMap is returned when a file misses one of the required
	// top-level keys or holds values of the wrong shape.
	ErrMalformedVarMap = errors.New("malformed variable map")

	// ErrTypeConflict is returned when a binary type name is registered a
	// second time with a different data type.
	ErrTypeConflict = errors.New("conflicting type registration")

	// ErrUnknownType is returned when a variable is added before its type
	// has been registered.
	ErrUnknownType = errors.New("type not registered")

	// ErrNullAddress is returned when a variable is added at address zero.
	ErrNullAddress = errors.New("variable at null address")

	// ErrUnknownVariable is returned when a path does not name an entry.
	ErrUnknownVariable = errors.New("variable not in map")

	// ErrUnknownEnum is returned when an entry refers to an enum id that is
	// not in the map.
	ErrUnknownEnum = errors.New("enum not in map")
)
