package extract

import (
	"debug/dwarf"
	"fmt"

	"github.com/muurk/probemap/internal/embedded"
)

// DW_ATE_* base type encodings. The standard library resolves attribute
// values but leaves encoding constants to the consumer.
const (
	encAddress      int64 = 0x01
	encBoolean      int64 = 0x02
	encComplexFloat int64 = 0x03
	encFloat        int64 = 0x04
	encSigned       int64 = 0x05
	encSignedChar   int64 = 0x06
	encUnsigned     int64 = 0x07
	encUnsignedChar int64 = 0x08
	encUTF          int64 = 0x10
)

var encodingTypeMap = map[int64]map[int64]embedded.DataType{
	encAddress: {
		1: embedded.TypePtr8, 2: embedded.TypePtr16, 4: embedded.TypePtr32,
		8: embedded.TypePtr64, 16: embedded.TypePtr128, 32: embedded.TypePtr256,
	},
	encBoolean: {
		// Only the single byte form is a true boolean; wider storage reads
		// as an unsigned integer.
		1: embedded.TypeBoolean, 2: embedded.TypeUInt16, 4: embedded.TypeUInt32, 8: embedded.TypeUInt64,
	},
	encComplexFloat: {
		1: embedded.TypeCFloat8, 2: embedded.TypeCFloat16, 4: embedded.TypeCFloat32,
		8: embedded.TypeCFloat64, 16: embedded.TypeCFloat128, 32: embedded.TypeCFloat256,
	},
	encFloat: {
		1: embedded.TypeFloat8, 2: embedded.TypeFloat16, 4: embedded.TypeFloat32,
		8: embedded.TypeFloat64, 16: embedded.TypeFloat128, 32: embedded.TypeFloat256,
	},
	encSigned: {
		1: embedded.TypeSInt8, 2: embedded.TypeSInt16, 4: embedded.TypeSInt32,
		8: embedded.TypeSInt64, 16: embedded.TypeSInt128, 32: embedded.TypeSInt256,
	},
	encSignedChar: {
		1: embedded.TypeSInt8, 2: embedded.TypeSInt16, 4: embedded.TypeSInt32,
		8: embedded.TypeSInt64, 16: embedded.TypeSInt128, 32: embedded.TypeSInt256,
	},
	encUnsigned: {
		1: embedded.TypeUInt8, 2: embedded.TypeUInt16, 4: embedded.TypeUInt32,
		8: embedded.TypeUInt64, 16: embedded.TypeUInt128, 32: embedded.TypeUInt256,
	},
	encUnsignedChar: {
		1: embedded.TypeUInt8, 2: embedded.TypeUInt16, 4: embedded.TypeUInt32,
		8: embedded.TypeUInt64, 16: embedded.TypeUInt128, 32: embedded.TypeUInt256,
	},
	encUTF: {
		1: embedded.TypeSInt8, 2: embedded.TypeSInt16, 4: embedded.TypeSInt32,
	},
}

// coreBaseType converts a DWARF base type encoding and byte size into a
// scalar data type.
func coreBaseType(encoding, byteSize int64) (embedded.DataType, error) {
	sizes, ok := encodingTypeMap[encoding]
	if !ok {
		return embedded.TypeNA, fmt.Errorf("unknown encoding 0x%x", encoding)
	}
	t, ok := sizes[byteSize]
	if !ok {
		return embedded.TypeNA, fmt.Errorf("encoding 0x%x with %d bytes", encoding, byteSize)
	}
	return t, nil
}

// varKind classifies the resolved type of a variable after stripping
// qualifiers and typedefs.
type varKind int

const (
	kindBaseType varKind = iota
	kindStruct
	kindClass
	kindUnion
	kindPointer
	kindArray
	// kindEnumOnly is an enum with no underlying type reference, as clang
	// emits under DWARF v2. The enum DIE itself stands in for the type.
	kindEnumOnly
	kindSubroutine
	kindVoid
)

func (k varKind) String() string {
	switch k {
	case kindBaseType:
		return "base type"
	case kindStruct:
		return "struct"
	case kindClass:
		return "class"
	case kindUnion:
		return "union"
	case kindPointer:
		return "pointer"
	case kindArray:
		return "array"
	case kindEnumOnly:
		return "enum"
	case kindSubroutine:
		return "subroutine"
	case kindVoid:
		return "void"
	default:
		return fmt.Sprintf("varKind(%d)", int(k))
	}
}

func (k varKind) isComposite() bool {
	return k == kindStruct || k == kindClass || k == kindUnion
}

func (k varKind) isScalar() bool {
	return k == kindBaseType || k == kindEnumOnly
}

// typeDescriptor is the outcome of resolving a variable's type chain: the
// concrete type node, an enum crossed on the way if any, and for pointers
// the pointee's own descriptor.
type typeDescriptor struct {
	kind     varKind
	typeNode *node
	enumNode *node
	pointee  *typeDescriptor
}

// resolveType walks the DW_AT_type chain of a variable or member until a
// concrete type is found, discarding qualifiers and typedefs:
//
//	var -> const -> typedef -> volatile -> uint32 keeps only the uint32.
//
// Enumeration types pass through and are remembered so the value can be
// displayed symbolically.
func resolveType(t *tree, die *node) (*typeDescriptor, error) {
	prev := die
	var enumNode *node
	seen := make(map[*node]struct{})

	for {
		next, ok := t.ref(prev, dwarf.AttrType)
		if !ok {
			return nil, fmt.Errorf("entry at 0x%x has no type attribute", prev.offset())
		}
		if _, circular := seen[next]; circular {
			return nil, fmt.Errorf("circular type reference from entry at 0x%x", die.offset())
		}
		seen[next] = struct{}{}

		switch next.tag() {
		case dwarf.TagStructType:
			return &typeDescriptor{kind: kindStruct, typeNode: next, enumNode: enumNode}, nil
		case dwarf.TagClassType:
			return &typeDescriptor{kind: kindClass, typeNode: next, enumNode: enumNode}, nil
		case dwarf.TagUnionType:
			return &typeDescriptor{kind: kindUnion, typeNode: next, enumNode: enumNode}, nil
		case dwarf.TagArrayType:
			return &typeDescriptor{kind: kindArray, typeNode: next, enumNode: enumNode}, nil
		case dwarf.TagBaseType:
			return &typeDescriptor{kind: kindBaseType, typeNode: next, enumNode: enumNode}, nil
		case dwarf.TagPointerType:
			pointee, err := resolvePointeeType(t, next)
			if err != nil {
				return nil, err
			}
			return &typeDescriptor{kind: kindPointer, typeNode: next, enumNode: enumNode, pointee: pointee}, nil
		case dwarf.TagSubroutineType:
			return &typeDescriptor{kind: kindSubroutine, typeNode: next, enumNode: enumNode}, nil
		case dwarf.TagUnspecifiedType:
			// Tasking uses this for void pointers.
			return &typeDescriptor{kind: kindVoid, typeNode: next, enumNode: enumNode}, nil
		case dwarf.TagEnumerationType:
			enumNode = next
			if !next.hasAttr(dwarf.AttrType) {
				// Clang DWARF v2: no underlying type, but a byte size lets
				// us synthesize one.
				if next.hasAttr(dwarf.AttrByteSize) {
					return &typeDescriptor{kind: kindEnumOnly, typeNode: next, enumNode: next}, nil
				}
				return nil, fmt.Errorf("cannot find the underlying type of enum at 0x%x", next.offset())
			}
		}

		prev = next
	}
}

// resolvePointeeType resolves what a pointer type points to. A pointer
// with no type attribute is a void pointer.
func resolvePointeeType(t *tree, ptr *node) (*typeDescriptor, error) {
	if !ptr.hasAttr(dwarf.AttrType) {
		return &typeDescriptor{kind: kindVoid}, nil
	}
	return resolveType(t, ptr)
}
