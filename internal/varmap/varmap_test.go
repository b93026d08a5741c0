package varmap

import (
	"errors"
	"testing"

	"github.com/muurk/probemap/internal/embedded"
	"github.com/muurk/probemap/internal/varmodel"
)

func registerCommonTypes(t *testing.T, vm *VarMap) {
	t.Helper()
	types := map[string]embedded.DataType{
		"unsigned int":  embedded.TypeUInt32,
		"int":           embedded.TypeSInt32,
		"float":         embedded.TypeFloat32,
		"unsigned char": embedded.TypeUInt8,
	}
	for name, dt := range types {
		if err := vm.RegisterBaseType(name, dt); err != nil {
			t.Fatalf("RegisterBaseType(%q): %v", name, err)
		}
	}
}

func TestRegisterBaseType(t *testing.T) {
	vm := New()
	if err := vm.RegisterBaseType("unsigned int", embedded.TypeUInt32); err != nil {
		t.Fatalf("RegisterBaseType: %v", err)
	}
	// Same registration again is a no-op.
	if err := vm.RegisterBaseType("unsigned int", embedded.TypeUInt32); err != nil {
		t.Errorf("idempotent registration failed: %v", err)
	}
	// A different type for the same name is a conflict.
	if err := vm.RegisterBaseType("unsigned int", embedded.TypeSInt32); !errors.Is(err, ErrTypeConflict) {
		t.Errorf("conflict error = %v, want ErrTypeConflict", err)
	}

	dt, ok := vm.TypeForName("unsigned int")
	if !ok || dt != embedded.TypeUInt32 {
		t.Errorf("TypeForName = (%v, %v), want (uint32, true)", dt, ok)
	}
	if vm.IsKnownType("double") {
		t.Error("IsKnownType reported an unregistered type")
	}
}

func TestAddVariableValidation(t *testing.T) {
	vm := New()
	registerCommonTypes(t, vm)

	t.Run("unknown type", func(t *testing.T) {
		err := vm.AddVariable(VariableSpec{
			PathSegments: []string{"global", "x"},
			TypeName:     "double",
			Location:     varmodel.NewAbsoluteLocation(0x1000),
			BitOffset:    -1,
			BitSize:      -1,
		})
		if !errors.Is(err, ErrUnknownType) {
			t.Errorf("error = %v, want ErrUnknownType", err)
		}
	})

	t.Run("null address", func(t *testing.T) {
		err := vm.AddVariable(VariableSpec{
			PathSegments: []string{"global", "x"},
			TypeName:     "int",
			Location:     varmodel.NewAbsoluteLocation(0),
			BitOffset:    -1,
			BitSize:      -1,
		})
		if !errors.Is(err, ErrNullAddress) {
			t.Errorf("error = %v, want ErrNullAddress", err)
		}
	})
}

func TestGetVarAbsolute(t *testing.T) {
	vm := New()
	registerCommonTypes(t, vm)

	err := vm.AddVariable(VariableSpec{
		PathSegments: []string{"global", "main.cpp", "counter"},
		TypeName:     "unsigned int",
		Location:     varmodel.NewAbsoluteLocation(0x20000100),
		BitOffset:    -1,
		BitSize:      -1,
	})
	if err != nil {
		t.Fatalf("AddVariable: %v", err)
	}

	if !vm.HasVar("/global/main.cpp/counter") {
		t.Fatal("HasVar = false after AddVariable")
	}
	v, err := vm.GetVar("/global/main.cpp/counter")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	addr, ok := v.Address()
	if !ok || addr != 0x20000100 {
		t.Errorf("address = (0x%x, %v), want (0x20000100, true)", addr, ok)
	}
	if v.Type() != embedded.TypeUInt32 {
		t.Errorf("type = %v, want uint32", v.Type())
	}
}

func TestGetVarArrayElement(t *testing.T) {
	vm := New()
	registerCommonTypes(t, vm)

	arr, err := varmodel.NewArray([]int{4, 8}, 4, "float")
	if err != nil {
		t.Fatalf("NewArray: %v", err)
	}
	err = vm.AddVariable(VariableSpec{
		PathSegments: []string{"global", "main.cpp", "gains"},
		TypeName:     "float",
		Location:     varmodel.NewAbsoluteLocation(0x1000),
		BitOffset:    -1,
		BitSize:      -1,
		ArraySegments: map[string]*varmodel.Array{
			"/global/main.cpp/gains": arr,
		},
	})
	if err != nil {
		t.Fatalf("AddVariable: %v", err)
	}

	v, err := vm.GetVar("/global/main.cpp/gains[2][5]")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	addr, _ := v.Address()
	if want := uint64(0x1000 + (2*8+5)*4); addr != want {
		t.Errorf("address = 0x%x, want 0x%x", addr, want)
	}
}

func TestBitfieldAndEnumRoundTrip(t *testing.T) {
	vm := New()
	registerCommonTypes(t, vm)
	vm.SetEndianness(embedded.BigEndian)

	mode := embedded.NewEnum("mode_t")
	if err := mode.AddValue("IDLE", 0); err != nil {
		t.Fatal(err)
	}
	if err := mode.AddValue("RUNNING", 1); err != nil {
		t.Fatal(err)
	}

	err := vm.AddVariable(VariableSpec{
		PathSegments: []string{"global", "io.c", "status", "mode"},
		TypeName:     "unsigned int",
		Location:     varmodel.NewAbsoluteLocation(0x2000),
		BitOffset:    3,
		BitSize:      2,
		Enum:         mode,
	})
	if err != nil {
		t.Fatalf("AddVariable: %v", err)
	}
	// A second variable sharing the enum must reuse the table entry.
	err = vm.AddVariable(VariableSpec{
		PathSegments: []string{"global", "io.c", "last_mode"},
		TypeName:     "unsigned int",
		Location:     varmodel.NewAbsoluteLocation(0x2004),
		BitOffset:    -1,
		BitSize:      -1,
		Enum:         mode,
	})
	if err != nil {
		t.Fatalf("AddVariable: %v", err)
	}
	if len(vm.enums) != 1 {
		t.Errorf("enum table has %d entries, want 1", len(vm.enums))
	}

	data, err := vm.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Endianness() != embedded.BigEndian {
		t.Errorf("endianness = %v, want big", loaded.Endianness())
	}

	v, err := loaded.GetVar("/global/io.c/status/mode")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	layout := v.Layout()
	if layout.BitOffset != 3 || layout.BitSize != 2 {
		t.Errorf("bitfield = (%d, %d), want (3, 2)", layout.BitOffset, layout.BitSize)
	}
	if v.Enum() == nil {
		t.Fatal("enum lost in round trip")
	}
	if val, err := v.Enum().Value("RUNNING"); err != nil || val != 1 {
		t.Errorf("enum value RUNNING = (%d, %v), want (1, nil)", val, err)
	}

	enums := loaded.EnumsByName("mode_t")
	if len(enums) != 1 {
		t.Errorf("EnumsByName returned %d enums, want 1", len(enums))
	}
}

func TestPointedEntryRoundTrip(t *testing.T) {
	vm := New()
	registerCommonTypes(t, vm)

	base := varmodel.NewUnresolvedPointerLocation(mustPath(t, "/global/io.c/head"))
	base.PointerOffset = 8
	arr, err := varmodel.NewArray([]int{16}, 4, "int")
	if err != nil {
		t.Fatal(err)
	}

	err = vm.AddVariable(VariableSpec{
		PathSegments: []string{"global", "io.c", "*head", "samples"},
		TypeName:     "int",
		Location:     base,
		BitOffset:    -1,
		BitSize:      -1,
		ArraySegments: map[string]*varmodel.Array{
			"/global/io.c/*head/samples": arr,
		},
	})
	if err != nil {
		t.Fatalf("AddVariable: %v", err)
	}

	data, err := vm.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	v, err := loaded.GetVar("/global/io.c/*head/samples[5]")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	loc, ok := v.PointerLocation()
	if !ok {
		t.Fatal("variable is not pointed after round trip")
	}
	if got := loc.PointerPath.String(); got != "/global/io.c/head" {
		t.Errorf("pointer path = %q, want /global/io.c/head", got)
	}
	if want := 8 + 5*4; loc.PointerOffset != want {
		t.Errorf("pointer offset = %d, want %d", loc.PointerOffset, want)
	}
}

func TestPointedEntryWithPointerSideArray(t *testing.T) {
	vm := New()
	registerCommonTypes(t, vm)

	base := varmodel.NewUnresolvedPointerLocation(mustPath(t, "/global/io.c/channels"))
	ptrArr, err := varmodel.NewArray([]int{4}, 4, "")
	if err != nil {
		t.Fatal(err)
	}
	base.ArraySegments = map[string]*varmodel.Array{
		"/global/io.c/channels": ptrArr,
	}

	err = vm.AddVariable(VariableSpec{
		PathSegments: []string{"global", "io.c", "*channels"},
		TypeName:     "unsigned char",
		Location:     base,
		BitOffset:    -1,
		BitSize:      -1,
	})
	if err != nil {
		t.Fatalf("AddVariable: %v", err)
	}

	data, err := vm.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	// The index on the pointer segment selects which pointer to follow.
	v, err := loaded.GetVar("/global/io.c/*channels[2]")
	if err != nil {
		t.Fatalf("GetVar: %v", err)
	}
	loc, ok := v.PointerLocation()
	if !ok {
		t.Fatal("variable is not pointed after round trip")
	}
	if got := loc.PointerPath.String(); got != "/global/io.c/channels[2]" {
		t.Errorf("pointer path = %q, want /global/io.c/channels[2]", got)
	}
}

func TestLoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "not json at all"},
		{name: "missing endianness", data: `{"type_map":{},"variables":{},"enums":{}}`},
		{name: "missing variables", data: `{"endianness":"little","type_map":{},"enums":{}}`},
		{name: "bad endianness", data: `{"endianness":"middle","type_map":{},"variables":{},"enums":{}}`},
		{
			name: "entry without type id",
			data: `{"endianness":"little","type_map":{},"variables":{"/global/x":{"addr":4096}},"enums":{}}`,
		},
		{
			name: "entry with unknown type id",
			data: `{"endianness":"little","type_map":{"0":{"name":"int","type":"sint32"}},"variables":{"/global/x":{"type_id":"7","addr":4096}},"enums":{}}`,
		},
		{
			name: "entry with unknown enum id",
			data: `{"endianness":"little","type_map":{"0":{"name":"int","type":"sint32"}},"variables":{"/global/x":{"type_id":"0","addr":4096,"enum":3}},"enums":{}}`,
		},
		{
			name: "entry with two dereferences in its key",
			data: `{"endianness":"little","type_map":{"0":{"name":"int","type":"sint32"}},"variables":{"/global/*a/*b":{"type_id":"0","addr":0}},"enums":{}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load([]byte(tt.data)); !errors.Is(err, ErrMalformedVarMap) {
				t.Errorf("Load error = %v, want ErrMalformedVarMap", err)
			}
		})
	}

	t.Run("version field tolerated", func(t *testing.T) {
		data := `{"version":1,"endianness":"little","type_map":{},"variables":{},"enums":{}}`
		if _, err := Load([]byte(data)); err != nil {
			t.Errorf("Load with version field: %v", err)
		}
	})
}

func TestGetVarUnknown(t *testing.T) {
	vm := New()
	if _, err := vm.GetVar("/global/missing"); !errors.Is(err, ErrUnknownVariable) {
		t.Errorf("error = %v, want ErrUnknownVariable", err)
	}
}

func mustPath(t *testing.T, s string) *varmodel.Path {
	t.Helper()
	p, err := varmodel.ParsePath(s)
	if err != nil {
		t.Fatalf("ParsePath(%q): %v", s, err)
	}
	return p
}
