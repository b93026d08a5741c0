package embedded

import (
	"bytes"
	"testing"
)

func TestCodecDecode(t *testing.T) {
	tests := []struct {
		name string
		typ  DataType
		e    Endianness
		data []byte
		want any
	}{
		{"uint32 little", TypeUInt32, LittleEndian, []byte{0x78, 0x56, 0x34, 0x12}, uint64(0x12345678)},
		{"uint32 big", TypeUInt32, BigEndian, []byte{0x12, 0x34, 0x56, 0x78}, uint64(0x12345678)},
		{"sint8 negative", TypeSInt8, LittleEndian, []byte{0xfe}, int64(-2)},
		{"sint16 big negative", TypeSInt16, BigEndian, []byte{0xff, 0x9c}, int64(-100)},
		{"float32", TypeFloat32, LittleEndian, []byte{0x00, 0x00, 0x20, 0x41}, float64(10.0)},
		{"float64 big", TypeFloat64, BigEndian, []byte{0x40, 0x24, 0, 0, 0, 0, 0, 0}, float64(10.0)},
		{"bool true", TypeBoolean, LittleEndian, []byte{0x02}, true},
		{"bool false", TypeBoolean, LittleEndian, []byte{0x00}, false},
		{"ptr16", TypePtr16, BigEndian, []byte{0x80, 0x00}, uint64(0x8000)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(tt.typ, tt.e)
			if err != nil {
				t.Fatalf("NewCodec() error: %v", err)
			}
			got, err := c.Decode(tt.data)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %v (%T), want %v (%T)", got, got, tt.want, tt.want)
			}
		})
	}

	t.Run("length mismatch", func(t *testing.T) {
		c, _ := NewCodec(TypeUInt32, LittleEndian)
		if _, err := c.Decode([]byte{1, 2}); err == nil {
			t.Error("Decode() should reject short data")
		}
	})
}

func TestCodecEncode(t *testing.T) {
	tests := []struct {
		name  string
		typ   DataType
		e     Endianness
		value any
		want  []byte
	}{
		{"uint32 little", TypeUInt32, LittleEndian, uint64(0x12345678), []byte{0x78, 0x56, 0x34, 0x12}},
		{"sint16 big negative", TypeSInt16, BigEndian, -100, []byte{0xff, 0x9c}},
		{"float32", TypeFloat32, LittleEndian, 10.0, []byte{0x00, 0x00, 0x20, 0x41}},
		{"bool", TypeBoolean, LittleEndian, true, []byte{0x01}},
		{"int literal for float", TypeFloat64, BigEndian, 10, []byte{0x40, 0x24, 0, 0, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCodec(tt.typ, tt.e)
			if err != nil {
				t.Fatalf("NewCodec() error: %v", err)
			}
			got, err := c.Encode(tt.value)
			if err != nil {
				t.Fatalf("Encode() error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Encode() = % x, want % x", got, tt.want)
			}
		})
	}

	t.Run("type mismatch", func(t *testing.T) {
		c, _ := NewCodec(TypeBoolean, LittleEndian)
		if _, err := c.Encode("yes"); err == nil {
			t.Error("Encode() should reject a string value")
		}
	})
}

func TestCodecUnsupportedTypes(t *testing.T) {
	for _, typ := range []DataType{TypeNA, TypeUInt128, TypeCFloat32, TypeFloat16} {
		if _, err := NewCodec(typ, LittleEndian); err == nil {
			t.Errorf("NewCodec(%s) should fail", typ)
		}
	}
}

func TestExtractBits(t *testing.T) {
	// 0x0750 = 0000 0111 0101 0000: window [4,7) holds 0b101.
	data := []byte{0x50, 0x07}

	got, err := ExtractBits(data, 4, 3, TypeUInt16, LittleEndian)
	if err != nil {
		t.Fatalf("ExtractBits() error: %v", err)
	}
	if !bytes.Equal(got, []byte{0x05, 0x00}) {
		t.Errorf("ExtractBits() = % x, want 05 00", got)
	}

	// The same window on a signed type sign extends: 0b101 = -3.
	got, err = ExtractBits(data, 4, 3, TypeSInt16, LittleEndian)
	if err != nil {
		t.Fatalf("ExtractBits() error: %v", err)
	}
	if !bytes.Equal(got, []byte{0xfd, 0xff}) {
		t.Errorf("signed ExtractBits() = % x, want fd ff", got)
	}

	if _, err := ExtractBits(data, 14, 4, TypeUInt16, LittleEndian); err == nil {
		t.Error("a window past the storage unit should be rejected")
	}
}

func TestInsertBits(t *testing.T) {
	// Value 0b101 placed at bit 4 of a 16-bit unit.
	encoded := []byte{0x05, 0x00}
	got, err := InsertBits(encoded, 4, 3, TypeUInt16, LittleEndian)
	if err != nil {
		t.Fatalf("InsertBits() error: %v", err)
	}
	if !bytes.Equal(got, []byte{0x50, 0x00}) {
		t.Errorf("InsertBits() = % x, want 50 00", got)
	}
}

func TestMaskBytes(t *testing.T) {
	got := MaskBytes(2, 4, 3, LittleEndian)
	if !bytes.Equal(got, []byte{0x70, 0x00}) {
		t.Errorf("MaskBytes little = % x, want 70 00", got)
	}
	got = MaskBytes(2, 4, 3, BigEndian)
	if !bytes.Equal(got, []byte{0x00, 0x70}) {
		t.Errorf("MaskBytes big = % x, want 00 70", got)
	}
}
