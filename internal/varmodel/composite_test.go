package varmodel

import (
	"errors"
	"testing"

	"github.com/muurk/probemap/internal/embedded"
)

func baseMember(name, typeName string, offset int) *Member {
	return &Member{Name: name, Kind: MemberBaseType, TypeName: typeName, ByteOffset: offset}
}

func TestStructAddMember(t *testing.T) {
	s := NewSizedStruct("motor_state", 12)
	if err := s.AddMember(baseMember("speed", "float", 0)); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := s.AddMember(baseMember("current", "float", 4)); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	if err := s.AddMember(baseMember("speed", "float", 8)); !errors.Is(err, ErrDuplicateMember) {
		t.Errorf("duplicate AddMember error = %v, want ErrDuplicateMember", err)
	}

	m, ok := s.Member("current")
	if !ok {
		t.Fatal("member current not found")
	}
	if m.ByteOffset != 4 {
		t.Errorf("current offset = %d, want 4", m.ByteOffset)
	}
	if size, known := s.ByteSize(); !known || size != 12 {
		t.Errorf("ByteSize = (%d, %v), want (12, true)", size, known)
	}
}

func TestStructUnnamedFlattening(t *testing.T) {
	inner := NewStruct("")
	if err := inner.AddMember(baseMember("raw", "uint32_t", 0)); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := inner.AddMember(baseMember("flags", "uint32_t", 4)); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	outer := NewStruct("reg_block")
	if err := outer.AddMember(baseMember("id", "uint16_t", 0)); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	anon := &Member{Name: "", Kind: MemberSubStruct, SubStruct: inner, ByteOffset: 8, Unnamed: true}
	if err := outer.AddMember(anon); err != nil {
		t.Fatalf("AddMember(unnamed): %v", err)
	}

	// The anonymous struct's members land directly on the parent, offsets
	// biased by the anonymous member's position.
	raw, ok := outer.Member("raw")
	if !ok {
		t.Fatal("flattened member raw not found")
	}
	if raw.ByteOffset != 8 {
		t.Errorf("raw offset = %d, want 8", raw.ByteOffset)
	}
	flags, ok := outer.Member("flags")
	if !ok {
		t.Fatal("flattened member flags not found")
	}
	if flags.ByteOffset != 12 {
		t.Errorf("flags offset = %d, want 12", flags.ByteOffset)
	}
	if len(outer.Members()) != 3 {
		t.Errorf("member count = %d, want 3", len(outer.Members()))
	}
}

func TestStructInherit(t *testing.T) {
	parent := NewSizedStruct("base", 8)
	if err := parent.AddMember(baseMember("vptr", "uint32_t", 0)); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if err := parent.AddMember(baseMember("refcount", "int32_t", 4)); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	child := NewSizedStruct("derived", 16)
	if err := child.Inherit(parent, 4); err != nil {
		t.Fatalf("Inherit: %v", err)
	}
	if err := child.AddMember(baseMember("own", "int32_t", 12)); err != nil {
		t.Fatalf("AddMember: %v", err)
	}

	refcount, ok := child.Member("refcount")
	if !ok {
		t.Fatal("inherited member refcount not found")
	}
	if refcount.ByteOffset != 8 {
		t.Errorf("inherited refcount offset = %d, want 8", refcount.ByteOffset)
	}

	// Inherited members are copies; mutating the child must not touch the
	// parent definition.
	refcount.ByteOffset = 99
	orig, _ := parent.Member("refcount")
	if orig.ByteOffset != 4 {
		t.Error("Inherit aliased the parent member")
	}
}

func TestMemberValidate(t *testing.T) {
	tests := []struct {
		name   string
		member *Member
	}{
		{name: "base type without type name", member: &Member{Name: "x", Kind: MemberBaseType}},
		{name: "substruct without struct", member: &Member{Name: "x", Kind: MemberSubStruct}},
		{name: "subarray without array", member: &Member{Name: "x", Kind: MemberSubArray}},
		{name: "pointer without definition", member: &Member{Name: "x", Kind: MemberPointer}},
		{name: "negative offset", member: &Member{Name: "x", Kind: MemberBaseType, TypeName: "int", ByteOffset: -1}},
		{name: "zero width bitfield", member: &Member{Name: "x", Kind: MemberBaseType, TypeName: "int", Bitfield: &Bitfield{Offset: 0, Size: 0}}},
		{name: "unnamed scalar", member: &Member{Name: "x", Kind: MemberBaseType, TypeName: "int", Unnamed: true}},
	}
	s := NewStruct("s")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.AddMember(tt.member); err == nil {
				t.Error("AddMember accepted an invalid member")
			}
		})
	}
}

func TestNormalizeBitOffset(t *testing.T) {
	tests := []struct {
		name        string
		endianness  embedded.Endianness
		storageBits int
		recorded    int
		bitSize     int
		want        int
	}{
		{name: "little endian keeps raw", endianness: embedded.LittleEndian, storageBits: 32, recorded: 5, bitSize: 3, want: 5},
		{name: "big endian counts from high end", endianness: embedded.BigEndian, storageBits: 32, recorded: 5, bitSize: 3, want: 24},
		{name: "big endian full width", endianness: embedded.BigEndian, storageBits: 8, recorded: 0, bitSize: 8, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeBitOffset(tt.endianness, tt.storageBits, tt.recorded, tt.bitSize)
			if got != tt.want {
				t.Errorf("NormalizeBitOffset = %d, want %d", got, tt.want)
			}
		})
	}
}
