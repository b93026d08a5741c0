package varmodel

import (
	"encoding/binary"
	"fmt"

	"github.com/muurk/probemap/internal/embedded"
)

// Location is the sum type of the ways a variable can be located in target
// memory. AbsoluteLocation is a fixed address; the pointer variants describe
// memory reached through a pointer variable and carry the path of that
// pointer plus a fixed offset past the dereference point.
type Location interface {
	// Copy returns an independent copy of the location.
	Copy() Location
	// AddOffset shifts the location by a byte delta.
	AddOffset(delta int)

	location()
}

// AbsoluteLocation is a fixed target address.
type AbsoluteLocation struct {
	addr uint64
}

// NewAbsoluteLocation creates a location at a fixed address.
func NewAbsoluteLocation(addr uint64) *AbsoluteLocation {
	return &AbsoluteLocation{addr: addr}
}

// AbsoluteLocationFromBytes decodes a target-endian address from raw bytes,
// as found in a DWARF location expression operand.
func AbsoluteLocationFromBytes(data []byte, e embedded.Endianness) (*AbsoluteLocation, error) {
	if len(data) == 0 || len(data) > 8 {
		return nil, fmt.Errorf("cannot decode address from %d bytes", len(data))
	}
	buf := make([]byte, 8)
	var order binary.ByteOrder = binary.LittleEndian
	if e == embedded.BigEndian {
		order = binary.BigEndian
		copy(buf[8-len(data):], data)
	} else {
		copy(buf, data)
	}
	return &AbsoluteLocation{addr: order.Uint64(buf)}, nil
}

// Address returns the target address.
func (l *AbsoluteLocation) Address() uint64 {
	return l.addr
}

// IsNull reports whether the address is zero. Optimized-out and
// non-allocated variables end up at address zero in some toolchains.
func (l *AbsoluteLocation) IsNull() bool {
	return l.addr == 0
}

// Copy returns an independent copy.
func (l *AbsoluteLocation) Copy() Location {
	c := *l
	return &c
}

// AddOffset shifts the address by a byte delta.
func (l *AbsoluteLocation) AddOffset(delta int) {
	l.addr = uint64(int64(l.addr) + int64(delta))
}

func (l *AbsoluteLocation) location() {}

func (l *AbsoluteLocation) String() string {
	return fmt.Sprintf("0x%08x", l.addr)
}

// UnresolvedPointerLocation is memory reached through a pointer variable
// whose value is not known yet. PointerPath names the pointer variable,
// PointerOffset is the byte offset to add past the dereference point, and
// ArraySegments carries the array definitions needed to turn indexed path
// segments into offsets once the pointer is read.
type UnresolvedPointerLocation struct {
	PointerPath   *Path
	PointerOffset int
	ArraySegments map[string]*Array
}

// NewUnresolvedPointerLocation creates a pointer-relative location with a
// zero offset and no array segments.
func NewUnresolvedPointerLocation(pointerPath *Path) *UnresolvedPointerLocation {
	return &UnresolvedPointerLocation{PointerPath: pointerPath}
}

// Copy returns an independent copy. Array definitions are immutable and
// shared; the map holding them is copied.
func (l *UnresolvedPointerLocation) Copy() Location {
	c := &UnresolvedPointerLocation{
		PointerPath:   l.PointerPath,
		PointerOffset: l.PointerOffset,
	}
	if l.ArraySegments != nil {
		c.ArraySegments = make(map[string]*Array, len(l.ArraySegments))
		for k, v := range l.ArraySegments {
			c.ArraySegments[k] = v
		}
	}
	return c
}

// AddOffset shifts the post-dereference offset by a byte delta.
func (l *UnresolvedPointerLocation) AddOffset(delta int) {
	l.PointerOffset += delta
}

func (l *UnresolvedPointerLocation) location() {}

func (l *UnresolvedPointerLocation) String() string {
	return fmt.Sprintf("*(%s)+%d (unresolved)", l.PointerPath, l.PointerOffset)
}

// Resolve fixes the concrete indices of the pointer path from the leading
// segments of a concrete variable path. The pointer-side array definitions
// stay embedded as indices in the resolved path; the post-dereference
// offset carries over unchanged.
func (l *UnresolvedPointerLocation) Resolve(concrete *Path) (*ResolvedPointerLocation, error) {
	resolved, err := l.PointerPath.ResolvePointerPath(concrete, l.ArraySegments)
	if err != nil {
		return nil, err
	}
	return &ResolvedPointerLocation{
		PointerPath:   resolved,
		PointerOffset: l.PointerOffset,
	}, nil
}

// ResolvedPointerLocation is memory reached through a pointer variable with
// all indexed segments of the pointer path fixed to concrete indices.
type ResolvedPointerLocation struct {
	PointerPath   *Path
	PointerOffset int
}

// Copy returns an independent copy.
func (l *ResolvedPointerLocation) Copy() Location {
	c := *l
	return &c
}

// AddOffset shifts the post-dereference offset by a byte delta.
func (l *ResolvedPointerLocation) AddOffset(delta int) {
	l.PointerOffset += delta
}

func (l *ResolvedPointerLocation) location() {}

func (l *ResolvedPointerLocation) String() string {
	return fmt.Sprintf("*(%s)+%d", l.PointerPath, l.PointerOffset)
}
