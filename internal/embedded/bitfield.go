package embedded

import (
	"encoding/binary"
	"fmt"
)

func checkWindow(bitOffset, bitSize int, t DataType) error {
	if bitOffset < 0 || bitSize <= 0 {
		return fmt.Errorf("invalid bitfield window offset=%d size=%d", bitOffset, bitSize)
	}
	if bitOffset+bitSize > t.BitSize() {
		return fmt.Errorf("bitfield window [%d,%d) does not fit in %s", bitOffset, bitOffset+bitSize, t)
	}
	return nil
}

func unitOrder(e Endianness) binary.ByteOrder {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func readUnit(data []byte, e Endianness) uint64 {
	padded := make([]byte, 8)
	if e == BigEndian {
		copy(padded[8-len(data):], data)
	} else {
		copy(padded, data)
	}
	return unitOrder(e).Uint64(padded)
}

func writeUnit(raw uint64, byteSize int, e Endianness) []byte {
	out := make([]byte, 8)
	unitOrder(e).PutUint64(out, raw)
	if e == BigEndian {
		return out[8-byteSize:]
	}
	return out[:byteSize]
}

// ExtractBits pulls the window [bitOffset, bitOffset+bitSize) out of a
// storage unit image and returns it as a full-width image of the same type,
// ready for Codec.Decode. Signed types are sign extended from the window's
// top bit.
func ExtractBits(data []byte, bitOffset, bitSize int, t DataType, e Endianness) ([]byte, error) {
	if err := checkWindow(bitOffset, bitSize, t); err != nil {
		return nil, err
	}
	size := t.Size()
	if len(data) != size {
		return nil, fmt.Errorf("expected %d bytes for %s, got %d", size, t, len(data))
	}

	raw := readUnit(data, e) >> uint(bitOffset)
	raw = maskLow64(raw, bitSize)
	if t.IsSigned() && raw&(uint64(1)<<uint(bitSize-1)) != 0 {
		raw |= ^maskLow64(^uint64(0), bitSize)
		raw = maskLow(raw, size)
	}
	return writeUnit(raw, size, e), nil
}

// InsertBits places an encoded value into the window
// [bitOffset, bitOffset+bitSize) of an otherwise zero storage unit image.
// Combined with the matching MaskBytes mask, the result supports a masked
// read-modify-write of the unit.
func InsertBits(data []byte, bitOffset, bitSize int, t DataType, e Endianness) ([]byte, error) {
	if err := checkWindow(bitOffset, bitSize, t); err != nil {
		return nil, err
	}
	size := t.Size()
	if len(data) != size {
		return nil, fmt.Errorf("expected %d bytes for %s, got %d", size, t, len(data))
	}

	raw := maskLow64(readUnit(data, e), bitSize) << uint(bitOffset)
	raw = maskLow(raw, size)
	return writeUnit(raw, size, e), nil
}

func maskLow64(v uint64, bits int) uint64 {
	if bits >= 64 {
		return v
	}
	return v & ((uint64(1) << uint(bits)) - 1)
}
