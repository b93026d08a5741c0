package embedded

import (
	"errors"
	"fmt"
)

// Endianness represents the byte ordering of the target device.
type Endianness int

const (
	// LittleEndian stores 0x12345678 as 78 56 34 12
	LittleEndian Endianness = iota
	// BigEndian stores 0x12345678 as 12 34 56 78
	BigEndian
)

// String returns the wire-format name used in serialized varmaps.
func (e Endianness) String() string {
	switch e {
	case LittleEndian:
		return "little"
	case BigEndian:
		return "big"
	default:
		return fmt.Sprintf("Endianness(%d)", int(e))
	}
}

// ParseEndianness converts a wire-format name back to an Endianness.
func ParseEndianness(s string) (Endianness, error) {
	switch s {
	case "little":
		return LittleEndian, nil
	case "big":
		return BigEndian, nil
	default:
		return LittleEndian, fmt.Errorf("unknown endianness %q", s)
	}
}

// DataType is a scalar type readable from a target device. The numeric value
// packs the type family in the high nibble and a log2 size code in the low
// nibble, matching the encoding the device-side library uses. The family and
// size must agree between host and device, so the constants below are wire
// values, not arbitrary enum tags.
type DataType uint8

// Type family nibbles.
const (
	familySInt    = 0x0 << 4
	familyUInt    = 0x1 << 4
	familyFloat   = 0x2 << 4
	familyBoolean = 0x3 << 4
	familyCFloat  = 0x4 << 4
	familyPtr     = 0x5 << 4
	familyNA      = 0xF << 4
)

// Size codes (low nibble): 1<<code bytes, 0xF = no size.
const (
	size8   = 0x0
	size16  = 0x1
	size32  = 0x2
	size64  = 0x3
	size128 = 0x4
	size256 = 0x5
	sizeNA  = 0xF
)

const (
	TypeSInt8   DataType = familySInt | size8
	TypeSInt16  DataType = familySInt | size16
	TypeSInt32  DataType = familySInt | size32
	TypeSInt64  DataType = familySInt | size64
	TypeSInt128 DataType = familySInt | size128
	TypeSInt256 DataType = familySInt | size256

	TypeUInt8   DataType = familyUInt | size8
	TypeUInt16  DataType = familyUInt | size16
	TypeUInt32  DataType = familyUInt | size32
	TypeUInt64  DataType = familyUInt | size64
	TypeUInt128 DataType = familyUInt | size128
	TypeUInt256 DataType = familyUInt | size256

	TypeFloat8   DataType = familyFloat | size8
	TypeFloat16  DataType = familyFloat | size16
	TypeFloat32  DataType = familyFloat | size32
	TypeFloat64  DataType = familyFloat | size64
	TypeFloat128 DataType = familyFloat | size128
	TypeFloat256 DataType = familyFloat | size256

	TypeCFloat8   DataType = familyCFloat | size8
	TypeCFloat16  DataType = familyCFloat | size16
	TypeCFloat32  DataType = familyCFloat | size32
	TypeCFloat64  DataType = familyCFloat | size64
	TypeCFloat128 DataType = familyCFloat | size128
	TypeCFloat256 DataType = familyCFloat | size256

	TypeBoolean DataType = familyBoolean | size8

	TypePtr8   DataType = familyPtr | size8
	TypePtr16  DataType = familyPtr | size16
	TypePtr32  DataType = familyPtr | size32
	TypePtr64  DataType = familyPtr | size64
	TypePtr128 DataType = familyPtr | size128
	TypePtr256 DataType = familyPtr | size256

	TypeNA DataType = familyNA | sizeNA
)

var typeNames = map[DataType]string{
	TypeSInt8: "sint8", TypeSInt16: "sint16", TypeSInt32: "sint32",
	TypeSInt64: "sint64", TypeSInt128: "sint128", TypeSInt256: "sint256",
	TypeUInt8: "uint8", TypeUInt16: "uint16", TypeUInt32: "uint32",
	TypeUInt64: "uint64", TypeUInt128: "uint128", TypeUInt256: "uint256",
	TypeFloat8: "float8", TypeFloat16: "float16", TypeFloat32: "float32",
	TypeFloat64: "float64", TypeFloat128: "float128", TypeFloat256: "float256",
	TypeCFloat8: "cfloat8", TypeCFloat16: "cfloat16", TypeCFloat32: "cfloat32",
	TypeCFloat64: "cfloat64", TypeCFloat128: "cfloat128", TypeCFloat256: "cfloat256",
	TypeBoolean: "boolean",
	TypePtr8:    "ptr8", TypePtr16: "ptr16", TypePtr32: "ptr32",
	TypePtr64: "ptr64", TypePtr128: "ptr128", TypePtr256: "ptr256",
	TypeNA: "NA",
}

var typesByName = func() map[string]DataType {
	m := make(map[string]DataType, len(typeNames))
	for t, name := range typeNames {
		m[name] = t
	}
	return m
}()

// String returns the canonical name ("sint32", "float64", ...) used in
// serialized varmaps.
func (t DataType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("DataType(0x%02x)", uint8(t))
}

// ParseDataType converts a canonical type name back to a DataType.
func ParseDataType(name string) (DataType, error) {
	t, ok := typesByName[name]
	if !ok {
		return TypeNA, fmt.Errorf("unknown data type %q", name)
	}
	return t, nil
}

// Size returns the size of the type in bytes. Returns 0 for TypeNA.
func (t DataType) Size() int {
	code := uint8(t) & 0x0F
	if code == sizeNA {
		return 0
	}
	return 1 << code
}

// BitSize returns the size of the type in bits. Returns 0 for TypeNA.
func (t DataType) BitSize() int {
	return t.Size() * 8
}

func (t DataType) family() uint8 { return uint8(t) & 0xF0 }

// IsInteger reports whether the type is a signed or unsigned integer.
func (t DataType) IsInteger() bool {
	return t.family() == familySInt || t.family() == familyUInt
}

// IsFloat reports whether the type is a floating point type,
// complex included.
func (t DataType) IsFloat() bool {
	return t.family() == familyFloat || t.family() == familyCFloat
}

// IsSigned reports whether the type carries a sign.
func (t DataType) IsSigned() bool {
	switch t.family() {
	case familySInt, familyFloat, familyCFloat:
		return true
	}
	return false
}

// IsPointer reports whether the type is a raw pointer cell.
func (t DataType) IsPointer() bool {
	return t.family() == familyPtr
}

// TypeFamily identifies a scalar family when constructing a DataType from
// debug-info properties.
type TypeFamily int

const (
	FamilySInt TypeFamily = iota
	FamilyUInt
	FamilyFloat
	FamilyBoolean
	FamilyCFloat
	FamilyPtr
)

var familyNibbles = map[TypeFamily]uint8{
	FamilySInt: familySInt, FamilyUInt: familyUInt, FamilyFloat: familyFloat,
	FamilyBoolean: familyBoolean, FamilyCFloat: familyCFloat, FamilyPtr: familyPtr,
}

// MakeDataType builds a DataType from a family and a byte size.
func MakeDataType(family TypeFamily, byteSize int) (DataType, error) {
	nibble, ok := familyNibbles[family]
	if !ok {
		return TypeNA, errors.New("invalid type family")
	}
	var code uint8
	switch byteSize {
	case 1:
		code = size8
	case 2:
		code = size16
	case 4:
		code = size32
	case 8:
		code = size64
	case 16:
		code = size128
	case 32:
		code = size256
	default:
		return TypeNA, fmt.Errorf("no %d-byte representation for scalar types", byteSize)
	}
	return DataType(nibble | code), nil
}

// PointerType returns the raw pointer type for a given address size.
func PointerType(byteSize int) (DataType, error) {
	return MakeDataType(FamilyPtr, byteSize)
}
