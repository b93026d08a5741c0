package varmodel

import (
	"fmt"
	"strings"
)

// Factory instantiates Variables following a pattern. Array elements share
// one registry entry; the factory holds that entry's layout, its base
// location and the array definitions along its path, and stamps out one
// Variable per concrete set of indices.
type Factory struct {
	accessName string
	base       Location // *AbsoluteLocation or *UnresolvedPointerLocation
	layout     Layout
	arrayNodes map[string]*Array
}

// NewFactory creates a factory. The access name is the raw path the factory
// is registered under, indices stripped. A resolved pointer base is accepted
// and downgraded to unresolved form; an unresolved base whose pointer path
// itself crosses a dereference describes a pointer reached through a
// pointer, which cannot be instantiated.
func NewFactory(accessName string, base Location, layout Layout) (*Factory, error) {
	switch b := base.(type) {
	case *AbsoluteLocation:
	case *ResolvedPointerLocation:
		base = &UnresolvedPointerLocation{
			PointerPath:   b.PointerPath,
			PointerOffset: b.PointerOffset,
		}
	case *UnresolvedPointerLocation:
		if b.PointerPath.HasDeref() {
			return nil, fmt.Errorf("%w: pointer path %q crosses a dereference", ErrUnsupportedIndirection, b.PointerPath)
		}
	default:
		return nil, fmt.Errorf("unsupported base location %T", base)
	}
	return &Factory{
		accessName: accessName,
		base:       base,
		layout:     layout,
		arrayNodes: make(map[string]*Array),
	}, nil
}

// AccessName returns the raw path the factory is registered under.
func (f *Factory) AccessName() string {
	return f.accessName
}

// Layout returns the layout applied to every instantiated variable.
func (f *Factory) Layout() Layout {
	return f.layout
}

// BaseLocation returns the base location new variables derive from.
func (f *Factory) BaseLocation() Location {
	return f.base
}

// HasAbsoluteAddress reports whether instantiated variables get a fixed
// address rather than a pointed one.
func (f *Factory) HasAbsoluteAddress() bool {
	_, ok := f.base.(*AbsoluteLocation)
	return ok
}

// ArrayNodes returns the array definitions of the dereferenced part of the
// path, after the pointer if there is one.
func (f *Factory) ArrayNodes() map[string]*Array {
	return f.arrayNodes
}

// PointerArrayNodes returns the array definitions of the pointer part of
// the path. Empty for absolute locations.
func (f *Factory) PointerArrayNodes() map[string]*Array {
	ptr, ok := f.base.(*UnresolvedPointerLocation)
	if !ok {
		return nil
	}
	return ptr.ArraySegments
}

// AddArrayNode registers an array definition in the non-pointer part of the
// path. The node path must lead to the access name.
func (f *Factory) AddArrayNode(path string, arr *Array) error {
	if _, exists := f.arrayNodes[path]; exists {
		return fmt.Errorf("%w: array node at %q", ErrDuplicateNode, path)
	}
	if !isSubpath(path, f.accessName) {
		return fmt.Errorf("%w: array node %q for %q", ErrNotASubpath, path, f.accessName)
	}
	f.arrayNodes[path] = arr
	return nil
}

// AddPointerArrayNode registers an array definition in the pointer part of
// the path. Only valid on a pointed base location. Pointer-side node paths
// carry no dereference marker, so they are checked against the access name
// with the marker stripped.
func (f *Factory) AddPointerArrayNode(path string, arr *Array) error {
	ptr, ok := f.base.(*UnresolvedPointerLocation)
	if !ok {
		return fmt.Errorf("array node %q: base location of %q is not pointed", path, f.accessName)
	}
	if !isSubpath(path, strings.ReplaceAll(f.accessName, "/*", "/")) {
		return fmt.Errorf("%w: pointer array node %q for %q", ErrNotASubpath, path, f.accessName)
	}
	if ptr.ArraySegments == nil {
		ptr.ArraySegments = make(map[string]*Array)
	}
	if _, exists := ptr.ArraySegments[path]; exists {
		return fmt.Errorf("%w: pointer array node at %q", ErrDuplicateNode, path)
	}
	ptr.ArraySegments[path] = arr
	return nil
}

// Instantiate creates the Variable named by a concrete path: the indices
// past the pointer part select the element within the factory's arrays, and
// those on the pointer part resolve the pointer path.
func (f *Factory) Instantiate(path *Path) (*Variable, error) {
	var location Location
	switch base := f.base.(type) {
	case *AbsoluteLocation:
		offset, err := path.ComputeAddressOffset(f.arrayNodes, 0)
		if err != nil {
			return nil, fmt.Errorf("cannot instantiate %q: %w", path, err)
		}
		abs := base.Copy()
		abs.AddOffset(offset)
		location = abs
	case *UnresolvedPointerLocation:
		offset, err := path.ComputeAddressOffset(f.arrayNodes, base.PointerPath.NumSegments())
		if err != nil {
			return nil, fmt.Errorf("cannot instantiate %q: %w", path, err)
		}
		resolved, err := base.Resolve(path)
		if err != nil {
			return nil, fmt.Errorf("cannot instantiate %q: %w", path, err)
		}
		resolved.PointerOffset += offset
		location = resolved
	default:
		return nil, fmt.Errorf("unsupported base location %T", f.base)
	}

	return NewVariable(path, location, f.layout)
}

// isSubpath reports whether sub is path itself or one of its ancestors,
// segment aligned.
func isSubpath(sub, path string) bool {
	if sub == path {
		return true
	}
	return strings.HasPrefix(path, strings.TrimRight(sub, "/")+"/")
}
