package varmodel

import (
	"fmt"

	"github.com/muurk/probemap/internal/embedded"
)

// MemberKind discriminates the variants of a struct member.
type MemberKind int

const (
	// MemberBaseType is a scalar leaf carrying its original binary type name.
	MemberBaseType MemberKind = iota
	// MemberSubStruct is a nested composite type.
	MemberSubStruct
	// MemberSubArray is a nested array.
	MemberSubArray
	// MemberPointer is a pointer cell, possibly with a known pointee.
	MemberPointer
)

func (k MemberKind) String() string {
	switch k {
	case MemberBaseType:
		return "BaseType"
	case MemberSubStruct:
		return "SubStruct"
	case MemberSubArray:
		return "SubArray"
	case MemberPointer:
		return "Pointer"
	default:
		return fmt.Sprintf("MemberKind(%d)", int(k))
	}
}

// Bitfield locates a member inside its storage unit. Offset counts from the
// lowest-addressed bit of the unit, after endianness normalization.
type Bitfield struct {
	Offset int
	Size   int
}

// Pointer describes a pointer cell and what it points to. An opaque pointer
// (void, function, or a pointee deliberately not followed to break cycles)
// has no pointee struct and TypeNA as pointee type.
type Pointer struct {
	// Size is the size of the pointer cell itself in bytes.
	Size int
	// PointeeType is the scalar type pointed to. TypeNA when the pointee is
	// opaque or composite.
	PointeeType embedded.DataType
	// PointeeTypeName is the binary name of the scalar pointee, when known.
	PointeeTypeName string
	// PointeeStruct is the composite pointee, when known.
	PointeeStruct *Struct
	// Enum interprets a scalar pointee's values, when one applies.
	Enum *embedded.Enum
}

// IsOpaque reports whether nothing is known about the pointee.
func (p *Pointer) IsOpaque() bool {
	return p.PointeeStruct == nil && p.PointeeType == embedded.TypeNA
}

// Member is one named field of a composite type.
type Member struct {
	Name       string
	Kind       MemberKind
	TypeName   string // binary type name, base-type members only
	ByteOffset int    // offset from the parent struct base
	Bitfield   *Bitfield
	SubStruct  *Struct
	SubArray   *TypedArray
	Pointer    *Pointer
	Enum       *embedded.Enum
	// Unnamed marks anonymous nested composites; their members get flattened
	// into the parent instead of nesting.
	Unnamed bool
}

func (m *Member) validate() error {
	switch m.Kind {
	case MemberBaseType:
		if m.TypeName == "" {
			return fmt.Errorf("base type member %q has no type name", m.Name)
		}
		if m.SubStruct != nil || m.SubArray != nil || m.Pointer != nil {
			return fmt.Errorf("base type member %q cannot carry a nested type", m.Name)
		}
	case MemberSubStruct:
		if m.SubStruct == nil {
			return fmt.Errorf("substruct member %q has no struct", m.Name)
		}
	case MemberSubArray:
		if m.SubArray == nil {
			return fmt.Errorf("subarray member %q has no array", m.Name)
		}
	case MemberPointer:
		if m.Pointer == nil {
			return fmt.Errorf("pointer member %q has no pointer definition", m.Name)
		}
	default:
		return fmt.Errorf("member %q has invalid kind %v", m.Name, m.Kind)
	}
	if m.ByteOffset < 0 {
		return fmt.Errorf("member %q has negative byte offset", m.Name)
	}
	if m.Bitfield != nil && (m.Bitfield.Offset < 0 || m.Bitfield.Size <= 0) {
		return fmt.Errorf("member %q has a bad bitfield definition", m.Name)
	}
	if m.Unnamed && m.Kind != MemberSubStruct {
		return fmt.Errorf("only substruct members can be unnamed, %q is %v", m.Name, m.Kind)
	}
	return nil
}

// copy returns a structural copy of the member; nested structs are deep
// copied so that offset-biased flattening never aliases the source type.
func (m *Member) copy() *Member {
	out := *m
	if m.Bitfield != nil {
		bf := *m.Bitfield
		out.Bitfield = &bf
	}
	if m.SubStruct != nil {
		out.SubStruct = m.SubStruct.Copy()
	}
	return &out
}

// Struct is the structural definition of a struct, class or union: an
// ordered list of named members. Insertion order is declaration order.
type Struct struct {
	name     string
	byteSize int // -1 when unknown
	members  []*Member
	index    map[string]int
}

// NewStruct creates a composite type of unknown size.
func NewStruct(name string) *Struct {
	return &Struct{name: name, byteSize: -1, index: make(map[string]int)}
}

// NewSizedStruct creates a composite type with a known byte size.
func NewSizedStruct(name string, byteSize int) *Struct {
	s := NewStruct(name)
	s.byteSize = byteSize
	return s
}

// Name returns the type name.
func (s *Struct) Name() string {
	return s.name
}

// ByteSize returns the total size in bytes, and whether it is known.
func (s *Struct) ByteSize() (int, bool) {
	if s.byteSize < 0 {
		return 0, false
	}
	return s.byteSize, true
}

// Members returns the members in declaration order. The slice is shared;
// callers must not modify it.
func (s *Struct) Members() []*Member {
	return s.members
}

// Member returns the member with the given name.
func (s *Struct) Member(name string) (*Member, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.members[i], true
}

// AddMember adds a member to the struct. An unnamed substruct member is not
// inserted itself: every member of the nested type is copied into this
// struct with its offset biased by the unnamed member's own offset, making
// anonymous composites addressable as flat fields of the parent.
func (s *Struct) AddMember(m *Member) error {
	if err := m.validate(); err != nil {
		return err
	}

	if m.Unnamed {
		for _, sub := range m.SubStruct.members {
			flattened := sub.copy()
			flattened.ByteOffset += m.ByteOffset
			if err := s.AddMember(flattened); err != nil {
				return err
			}
		}
		return nil
	}

	if _, exists := s.index[m.Name]; exists {
		return fmt.Errorf("%w: %q in %q", ErrDuplicateMember, m.Name, s.name)
	}
	s.index[m.Name] = len(s.members)
	s.members = append(s.members, m)
	return nil
}

// Inherit copies every member of a parent type into this struct, biasing
// offsets by the location of the base subobject. Called once per base class
// in declaration order, it linearizes inheritance chains into one flat
// member list.
func (s *Struct) Inherit(parent *Struct, offset int) error {
	for _, m := range parent.members {
		inherited := m.copy()
		inherited.ByteOffset += offset
		if err := s.AddMember(inherited); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a deep copy of the struct definition.
func (s *Struct) Copy() *Struct {
	out := &Struct{
		name:     s.name,
		byteSize: s.byteSize,
		index:    make(map[string]int, len(s.index)),
	}
	for _, m := range s.members {
		out.index[m.Name] = len(out.members)
		out.members = append(out.members, m.copy())
	}
	return out
}

// NormalizeBitOffset converts a recorded bit offset into the canonical
// "counted from the lowest-addressed bit" form. Little-endian targets
// record it that way already; big-endian targets count from the opposite
// end of the storage unit.
func NormalizeBitOffset(e embedded.Endianness, storageBits, recorded, bitSize int) int {
	if e == embedded.LittleEndian {
		return recorded
	}
	return storageBits - recorded - bitSize
}
