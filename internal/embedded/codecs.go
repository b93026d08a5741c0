package embedded

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedType is returned when a codec is requested for a type that
// has no host-side representation (complex floats, >64 bit scalars, NA).
var ErrUnsupportedType = errors.New("unsupported data type")

// Codec converts between a scalar's device memory representation and a Go
// value. Decoded values are one of int64, uint64, float64 or bool.
type Codec struct {
	typ   DataType
	order binary.ByteOrder
}

// NewCodec builds a codec for the given type and target endianness.
func NewCodec(t DataType, e Endianness) (Codec, error) {
	size := t.Size()
	if size == 0 || size > 8 {
		return Codec{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}
	switch {
	case t.IsInteger(), t.IsPointer(), t == TypeBoolean:
		// Handled below.
	case t == TypeFloat32, t == TypeFloat64:
		// IEEE 754 only.
	default:
		return Codec{}, fmt.Errorf("%w: %s", ErrUnsupportedType, t)
	}

	var order binary.ByteOrder = binary.LittleEndian
	if e == BigEndian {
		order = binary.BigEndian
	}
	return Codec{typ: t, order: order}, nil
}

// Decode converts raw device memory bytes into a Go value. The data length
// must match the type size exactly.
func (c Codec) Decode(data []byte) (any, error) {
	size := c.typ.Size()
	if len(data) != size {
		return nil, fmt.Errorf("expected %d bytes for %s, got %d", size, c.typ, len(data))
	}

	raw := c.readUint(data)

	switch {
	case c.typ == TypeBoolean:
		return raw != 0, nil
	case c.typ == TypeFloat32:
		return float64(math.Float32frombits(uint32(raw))), nil
	case c.typ == TypeFloat64:
		return math.Float64frombits(raw), nil
	case c.typ.IsSigned():
		return signExtend(raw, size), nil
	default: // unsigned integers and pointers
		return raw, nil
	}
}

// Encode converts a Go value into device memory bytes. Integer values may be
// given as any Go integer type; floats as float32/float64; booleans as bool.
func (c Codec) Encode(value any) ([]byte, error) {
	size := c.typ.Size()

	var raw uint64
	switch {
	case c.typ == TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot encode %T as %s", value, c.typ)
		}
		if b {
			raw = 1
		}
	case c.typ == TypeFloat32:
		f, err := asFloat(value)
		if err != nil {
			return nil, fmt.Errorf("cannot encode as %s: %w", c.typ, err)
		}
		raw = uint64(math.Float32bits(float32(f)))
	case c.typ == TypeFloat64:
		f, err := asFloat(value)
		if err != nil {
			return nil, fmt.Errorf("cannot encode as %s: %w", c.typ, err)
		}
		raw = math.Float64bits(f)
	default:
		i, err := asInt(value)
		if err != nil {
			return nil, fmt.Errorf("cannot encode as %s: %w", c.typ, err)
		}
		raw = uint64(i)
	}

	out := make([]byte, 8)
	c.order.PutUint64(out, maskLow(raw, size))
	if c.bigEndian() {
		return out[8-size:], nil
	}
	return out[:size], nil
}

func (c Codec) bigEndian() bool {
	return c.order == binary.ByteOrder(binary.BigEndian)
}

func (c Codec) readUint(data []byte) uint64 {
	padded := make([]byte, 8)
	if c.bigEndian() {
		copy(padded[8-len(data):], data)
	} else {
		copy(padded, data)
	}
	return c.order.Uint64(padded)
}

func signExtend(raw uint64, size int) int64 {
	shift := uint(64 - size*8)
	return int64(raw<<shift) >> shift
}

func maskLow(v uint64, byteSize int) uint64 {
	if byteSize >= 8 {
		return v
	}
	return v & ((uint64(1) << uint(byteSize*8)) - 1)
}

func asInt(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("value %T is not an integer", value)
	}
}

func asFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("value %T is not a float", value)
	}
}

// MaskBytes returns a byte mask covering bits [bitOffset, bitOffset+bitSize)
// of a storage unit of byteSize bytes, in the target byte order. The device
// uses it to perform masked writes of bitfield members.
func MaskBytes(byteSize, bitOffset, bitSize int, e Endianness) []byte {
	var mask uint64
	for i := bitOffset; i < bitOffset+bitSize && i < 64; i++ {
		mask |= uint64(1) << uint(i)
	}

	out := make([]byte, 8)
	if e == BigEndian {
		binary.BigEndian.PutUint64(out, mask)
		return out[8-byteSize:]
	}
	binary.LittleEndian.PutUint64(out, mask)
	return out[:byteSize]
}
