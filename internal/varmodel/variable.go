package varmodel

import (
	"fmt"

	"github.com/muurk/probemap/internal/embedded"
)

// Layout is everything needed to decode a variable's memory image: its
// binary type, target endianness, an optional bitfield window and an
// optional enum interpreting integer values.
type Layout struct {
	Type       embedded.DataType
	Endianness embedded.Endianness
	BitOffset  int // -1 when not a bitfield
	BitSize    int // -1 when not a bitfield
	Enum       *embedded.Enum
}

// NewLayout creates a non-bitfield layout.
func NewLayout(t embedded.DataType, e embedded.Endianness) Layout {
	return Layout{Type: t, Endianness: e, BitOffset: -1, BitSize: -1}
}

// IsBitfield reports whether the layout selects a bit window.
func (l Layout) IsBitfield() bool {
	return l.BitOffset >= 0 && l.BitSize > 0
}

// Decode turns a raw memory image into a Go value. For a bitfield the
// selected window is extracted before the type conversion.
func (l Layout) Decode(data []byte) (any, error) {
	codec, err := embedded.NewCodec(l.Type, l.Endianness)
	if err != nil {
		return nil, err
	}
	if l.IsBitfield() {
		data, err = embedded.ExtractBits(data, l.BitOffset, l.BitSize, l.Type, l.Endianness)
		if err != nil {
			return nil, err
		}
	}
	return codec.Decode(data)
}

// Encode turns a Go value into a raw memory image of the variable's type
// size. Bitfield encoding also returns the write mask selecting the bits
// the value occupies, so callers can read-modify-write the storage unit; a
// nil mask means every byte is owned by the variable.
func (l Layout) Encode(value any) (data []byte, mask []byte, err error) {
	codec, err := embedded.NewCodec(l.Type, l.Endianness)
	if err != nil {
		return nil, nil, err
	}
	data, err = codec.Encode(value)
	if err != nil {
		return nil, nil, err
	}
	if !l.IsBitfield() {
		return data, nil, nil
	}
	data, err = embedded.InsertBits(data, l.BitOffset, l.BitSize, l.Type, l.Endianness)
	if err != nil {
		return nil, nil, err
	}
	return data, l.BitfieldMask(), nil
}

// BitfieldMask returns the byte mask selecting the layout's bit window, in
// target byte order. Nil for non-bitfield layouts.
func (l Layout) BitfieldMask() []byte {
	if !l.IsBitfield() {
		return nil
	}
	return embedded.MaskBytes(l.Type.Size(), l.BitOffset, l.BitSize, l.Endianness)
}

// Variable is one readable cell of target memory: a full path, a location
// and a decode layout. Its location is either absolute or a resolved
// pointer indirection; an unresolved indirection cannot name a concrete
// cell and is rejected at construction.
type Variable struct {
	path     *Path
	location Location
	layout   Layout
}

// NewVariable creates a variable. The location must be absolute or a
// resolved pointer indirection.
func NewVariable(path *Path, loc Location, layout Layout) (*Variable, error) {
	if _, unresolved := loc.(*UnresolvedPointerLocation); unresolved {
		return nil, fmt.Errorf("variable %q: location must be resolved", path)
	}
	return &Variable{path: path, location: loc, layout: layout}, nil
}

// Path returns the variable's full path.
func (v *Variable) Path() *Path {
	return v.path
}

// FullName returns the canonical path string.
func (v *Variable) FullName() string {
	return v.path.String()
}

// Name returns the last path segment, indices included.
func (v *Variable) Name() string {
	return v.path.Segment(v.path.NumSegments() - 1).String()
}

// Layout returns the decode layout.
func (v *Variable) Layout() Layout {
	return v.layout
}

// Type returns the binary type.
func (v *Variable) Type() embedded.DataType {
	return v.layout.Type
}

// Enum returns the enum interpreting the variable's values, or nil.
func (v *Variable) Enum() *embedded.Enum {
	return v.layout.Enum
}

// Location returns the variable's location.
func (v *Variable) Location() Location {
	return v.location
}

// Address returns the absolute address, when the variable has one.
func (v *Variable) Address() (uint64, bool) {
	abs, ok := v.location.(*AbsoluteLocation)
	if !ok {
		return 0, false
	}
	return abs.Address(), true
}

// PointerLocation returns the resolved indirection, when the variable
// lives behind a pointer.
func (v *Variable) PointerLocation() (*ResolvedPointerLocation, bool) {
	ptr, ok := v.location.(*ResolvedPointerLocation)
	return ptr, ok
}

func (v *Variable) String() string {
	return fmt.Sprintf("<%s %s @ %s>", v.layout.Type, v.FullName(), v.location)
}
