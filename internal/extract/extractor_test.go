package extract

import (
	"debug/dwarf"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/muurk/probemap/internal/embedded"
	"github.com/muurk/probemap/internal/varmap"
	"github.com/muurk/probemap/internal/varmodel"
)

func TestULEB128(t *testing.T) {
	tests := []struct {
		in   []byte
		want int
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
	}
	for _, tt := range tests {
		if got := uleb128(tt.in); got != tt.want {
			t.Errorf("uleb128(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCoreBaseType(t *testing.T) {
	tests := []struct {
		name     string
		encoding int64
		byteSize int64
		want     embedded.DataType
		wantErr  bool
	}{
		{"signed 4", encSigned, 4, embedded.TypeSInt32, false},
		{"unsigned 8", encUnsigned, 8, embedded.TypeUInt64, false},
		{"float 4", encFloat, 4, embedded.TypeFloat32, false},
		{"bool 1", encBoolean, 1, embedded.TypeBoolean, false},
		{"wide bool reads unsigned", encBoolean, 4, embedded.TypeUInt32, false},
		{"utf16 char", encUTF, 2, embedded.TypeSInt16, false},
		{"unknown encoding", 0x42, 4, embedded.TypeNA, true},
		{"odd size", encSigned, 3, embedded.TypeNA, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := coreBaseType(tt.encoding, tt.byteSize)
			if (err != nil) != tt.wantErr {
				t.Fatalf("coreBaseType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("coreBaseType() = %v, want %v", got, tt.want)
			}
		})
	}
}

// mkEntry fabricates a DIE the way the dwarf reader would yield it.
func mkEntry(off dwarf.Offset, tag dwarf.Tag, fields ...dwarf.Field) *dwarf.Entry {
	return &dwarf.Entry{Offset: off, Tag: tag, Field: fields}
}

func attr(a dwarf.Attr, v any) dwarf.Field {
	return dwarf.Field{Attr: a, Val: v}
}

// testTree assembles a synthetic single-unit DIE tree without going
// through an ELF file.
type testTree struct {
	t  *tree
	cu *node
}

func newTestTree(producer string) *testTree {
	cuEntry := mkEntry(0x0b, dwarf.TagCompileUnit,
		attr(dwarf.AttrName, "main.c"),
		attr(dwarf.AttrProducer, producer),
	)
	cu := &node{entry: cuEntry, addrSize: 4}
	cu.cu = cu
	return &testTree{
		t:  &tree{units: []*node{cu}, byOffset: map[dwarf.Offset]*node{cuEntry.Offset: cu}},
		cu: cu,
	}
}

// add attaches an entry under parent, or under the compile unit when
// parent is nil.
func (tt *testTree) add(parent *node, e *dwarf.Entry) *node {
	if parent == nil {
		parent = tt.cu
	}
	n := &node{entry: e, parent: parent, cu: tt.cu}
	parent.children = append(parent.children, n)
	tt.t.byOffset[e.Offset] = n
	return n
}

func newTestExtractor(tt *testTree) *extractor {
	e := &extractor{
		logger:       zap.NewNop(),
		filters:      &filters{},
		dem:          BuiltinDemangler{},
		t:            tt.t,
		vm:           varmap.New(),
		errs:         &ParseErrors{},
		endianness:   embedded.LittleEndian,
		cuNames:      make(map[*node]string),
		cuCompilers:  make(map[*node]compilerKind),
		dieTypes:     make(map[*node]embedded.DataType),
		enumCache:    make(map[*node]*embedded.Enum),
		structCache:  make(map[structKey]*varmodel.Struct),
		arrayCache:   make(map[structKey]*varmodel.TypedArray),
		anonTypedefs: make(map[*node]*node),
	}
	e.makeCUNameMap()
	for _, cu := range tt.t.units {
		e.cuCompilers[cu] = identifyCompiler(cu)
	}
	return e
}

func TestResolveType(t *testing.T) {
	tt := newTestTree("GNU C17 12.2.0")
	base := tt.add(nil, mkEntry(0x100, dwarf.TagBaseType,
		attr(dwarf.AttrName, "unsigned int"),
		attr(dwarf.AttrEncoding, encUnsigned),
		attr(dwarf.AttrByteSize, int64(4)),
	))
	tt.add(nil, mkEntry(0x110, dwarf.TagVolatileType, attr(dwarf.AttrType, dwarf.Offset(0x100))))
	tt.add(nil, mkEntry(0x111, dwarf.TagTypedef,
		attr(dwarf.AttrName, "counter_t"),
		attr(dwarf.AttrType, dwarf.Offset(0x110)),
	))
	tt.add(nil, mkEntry(0x112, dwarf.TagConstType, attr(dwarf.AttrType, dwarf.Offset(0x111))))

	enumTyped := tt.add(nil, mkEntry(0x120, dwarf.TagEnumerationType,
		attr(dwarf.AttrName, "Color"),
		attr(dwarf.AttrType, dwarf.Offset(0x100)),
	))
	enumOnly := tt.add(nil, mkEntry(0x130, dwarf.TagEnumerationType,
		attr(dwarf.AttrName, "Mode"),
		attr(dwarf.AttrByteSize, int64(4)),
	))
	tt.add(nil, mkEntry(0x140, dwarf.TagPointerType))

	// Two const dies referring to each other.
	tt.add(nil, mkEntry(0x150, dwarf.TagConstType, attr(dwarf.AttrType, dwarf.Offset(0x151))))
	tt.add(nil, mkEntry(0x151, dwarf.TagConstType, attr(dwarf.AttrType, dwarf.Offset(0x150))))

	mkVar := func(off, typeOff dwarf.Offset) *node {
		return tt.add(nil, mkEntry(off, dwarf.TagVariable, attr(dwarf.AttrType, typeOff)))
	}

	t.Run("qualifier chain", func(t *testing.T) {
		desc, err := resolveType(tt.t, mkVar(0x200, 0x112))
		if err != nil {
			t.Fatalf("resolveType() error: %v", err)
		}
		if desc.kind != kindBaseType || desc.typeNode != base {
			t.Errorf("resolved to %s at 0x%x, want the base type", desc.kind, desc.typeNode.offset())
		}
		if desc.enumNode != nil {
			t.Error("no enum was on the chain")
		}
	})

	t.Run("enum passes through", func(t *testing.T) {
		desc, err := resolveType(tt.t, mkVar(0x201, 0x120))
		if err != nil {
			t.Fatalf("resolveType() error: %v", err)
		}
		if desc.kind != kindBaseType || desc.typeNode != base {
			t.Errorf("resolved to %s, want the underlying base type", desc.kind)
		}
		if desc.enumNode != enumTyped {
			t.Error("enum die was not remembered")
		}
	})

	t.Run("enum without underlying type", func(t *testing.T) {
		desc, err := resolveType(tt.t, mkVar(0x202, 0x130))
		if err != nil {
			t.Fatalf("resolveType() error: %v", err)
		}
		if desc.kind != kindEnumOnly || desc.typeNode != enumOnly || desc.enumNode != enumOnly {
			t.Errorf("resolved to %s, want the enum die standing in for the type", desc.kind)
		}
	})

	t.Run("pointer to void", func(t *testing.T) {
		desc, err := resolveType(tt.t, mkVar(0x203, 0x140))
		if err != nil {
			t.Fatalf("resolveType() error: %v", err)
		}
		if desc.kind != kindPointer {
			t.Fatalf("resolved to %s, want pointer", desc.kind)
		}
		if desc.pointee == nil || desc.pointee.kind != kindVoid {
			t.Error("typeless pointer should have a void pointee")
		}
	})

	t.Run("circular reference", func(t *testing.T) {
		if _, err := resolveType(tt.t, mkVar(0x204, 0x150)); err == nil {
			t.Error("resolveType() should fail on a type cycle")
		}
	})

	t.Run("missing type attribute", func(t *testing.T) {
		n := tt.add(nil, mkEntry(0x205, dwarf.TagVariable))
		if _, err := resolveType(tt.t, n); err == nil {
			t.Error("resolveType() should fail without a type attribute")
		}
	})
}

func TestMemberByteOffset(t *testing.T) {
	tt := newTestTree("GNU C17 12.2.0")
	e := newTestExtractor(tt)

	tests := []struct {
		name    string
		fields  []dwarf.Field
		want    int
		wantErr bool
	}{
		{"plain constant", []dwarf.Field{attr(dwarf.AttrDataMemberLoc, int64(8))}, 8, false},
		{"plus_uconst expression", []dwarf.Field{attr(dwarf.AttrDataMemberLoc, []byte{0x23, 0x90, 0x03})}, 400, false},
		{"absent means zero", nil, 0, false},
		{"other operator", []dwarf.Field{attr(dwarf.AttrDataMemberLoc, []byte{0x03, 0x10})}, 0, true},
	}
	for i, tt2 := range tests {
		t.Run(tt2.name, func(t *testing.T) {
			n := tt.add(nil, mkEntry(dwarf.Offset(0x300+i), dwarf.TagMember, tt2.fields...))
			got, err := e.memberByteOffset(n)
			if (err != nil) != tt2.wantErr {
				t.Fatalf("memberByteOffset() error = %v, wantErr %v", err, tt2.wantErr)
			}
			if err == nil && got != tt2.want {
				t.Errorf("memberByteOffset() = %d, want %d", got, tt2.want)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	tt := newTestTree("GNU C17 12.2.0")
	e := newTestExtractor(tt)

	n := tt.add(nil, mkEntry(0x300, dwarf.TagVariable,
		attr(dwarf.AttrLocation, []byte{0x03, 0x00, 0x20, 0x00, 0x08}),
	))
	loc := e.location(n)
	if loc == nil {
		t.Fatal("location() = nil for a DW_OP_addr expression")
	}
	if loc.Address() != 0x08002000 {
		t.Errorf("address = 0x%x, want 0x08002000", loc.Address())
	}

	// Frame-relative locals have no static address.
	local := tt.add(nil, mkEntry(0x301, dwarf.TagVariable,
		attr(dwarf.AttrLocation, []byte{0x91, 0x6c}),
	))
	if e.location(local) != nil {
		t.Error("location() should reject a DW_OP_fbreg expression")
	}

	if e.location(tt.add(nil, mkEntry(0x302, dwarf.TagVariable))) != nil {
		t.Error("location() should be nil without a location attribute")
	}
}

func TestIdentifyCompiler(t *testing.T) {
	tests := []struct {
		producer string
		want     compilerKind
	}{
		{"TI TMS320C2000 C/C++ Compiler v22.6.0", compilerTIC28},
		{"clang version 14.0.6", compilerClang},
		{"GNU C17 12.2.0 -mcpu=cortex-m4", compilerGCC},
		{"TASKING VX-toolset for TriCore: C compiler", compilerTasking},
		{"MSVC 19.29", compilerUnknown},
	}
	for _, tt2 := range tests {
		t.Run(tt2.producer, func(t *testing.T) {
			tt := newTestTree(tt2.producer)
			if got := identifyCompiler(tt.cu); got != tt2.want {
				t.Errorf("identifyCompiler() = %v, want %v", got, tt2.want)
			}
		})
	}

	t.Run("no producer", func(t *testing.T) {
		cu := &node{entry: mkEntry(0x0b, dwarf.TagCompileUnit)}
		if got := identifyCompiler(cu); got != compilerUnknown {
			t.Errorf("identifyCompiler() = %v, want unknown", got)
		}
	})
}

func TestProcessEnumDemanglesNames(t *testing.T) {
	tt := newTestTree("TI TMS320C2000 C/C++ Compiler v22.6.0")
	e := newTestExtractor(tt)

	enum := tt.add(nil, mkEntry(0x400, dwarf.TagEnumerationType,
		attr(dwarf.AttrName, "_ZN2Ns5ColorE"),
		attr(dwarf.AttrByteSize, int64(2)),
	))
	tt.add(enum, mkEntry(0x410, dwarf.TagEnumerator,
		attr(dwarf.AttrName, "_ZN2Ns3RedE"),
		attr(dwarf.AttrConstValue, int64(0)),
	))
	tt.add(enum, mkEntry(0x411, dwarf.TagEnumerator,
		attr(dwarf.AttrName, "_ZN2Ns5GreenE"),
		attr(dwarf.AttrConstValue, int64(1)),
	))

	if err := e.processEnum(enum); err != nil {
		t.Fatalf("processEnum() error: %v", err)
	}
	got := e.enumCache[enum]
	if got.Name() != "Color" {
		t.Errorf("enum name = %q, want %q", got.Name(), "Color")
	}
	for name, want := range map[string]int64{"Red": 0, "Green": 1} {
		v, err := got.Value(name)
		if err != nil {
			t.Fatalf("enumerator %q missing: %v", name, err)
		}
		if v != want {
			t.Errorf("%s = %d, want %d", name, v, want)
		}
	}
}

// TestScanVariables runs the registration pipeline over a synthetic
// compile unit and checks the resulting registry entries.
func TestScanVariables(t *testing.T) {
	tt := newTestTree("GNU C17 12.2.0")

	tt.add(nil, mkEntry(0x100, dwarf.TagBaseType,
		attr(dwarf.AttrName, "unsigned int"),
		attr(dwarf.AttrEncoding, encUnsigned),
		attr(dwarf.AttrByteSize, int64(4)),
	))
	coords := tt.add(nil, mkEntry(0x200, dwarf.TagStructType,
		attr(dwarf.AttrName, "Coords"),
		attr(dwarf.AttrByteSize, int64(8)),
	))
	tt.add(coords, mkEntry(0x210, dwarf.TagMember,
		attr(dwarf.AttrName, "x"),
		attr(dwarf.AttrType, dwarf.Offset(0x100)),
		attr(dwarf.AttrDataMemberLoc, int64(0)),
	))
	tt.add(coords, mkEntry(0x211, dwarf.TagMember,
		attr(dwarf.AttrName, "y"),
		attr(dwarf.AttrType, dwarf.Offset(0x100)),
		attr(dwarf.AttrDataMemberLoc, int64(4)),
	))
	arrayType := tt.add(nil, mkEntry(0x300, dwarf.TagArrayType,
		attr(dwarf.AttrType, dwarf.Offset(0x100)),
	))
	tt.add(arrayType, mkEntry(0x310, dwarf.TagSubrangeType,
		attr(dwarf.AttrUpperBound, int64(9)),
	))

	tt.add(nil, mkEntry(0x500, dwarf.TagVariable,
		attr(dwarf.AttrName, "position"),
		attr(dwarf.AttrType, dwarf.Offset(0x200)),
		attr(dwarf.AttrExternal, true),
		attr(dwarf.AttrLocation, []byte{0x03, 0x00, 0x10, 0x00, 0x20}),
	))
	tt.add(nil, mkEntry(0x501, dwarf.TagVariable,
		attr(dwarf.AttrName, "samples"),
		attr(dwarf.AttrType, dwarf.Offset(0x300)),
		attr(dwarf.AttrExternal, true),
		attr(dwarf.AttrLocation, []byte{0x03, 0x00, 0x20, 0x00, 0x20}),
	))
	tt.add(nil, mkEntry(0x502, dwarf.TagVariable,
		attr(dwarf.AttrName, "counter"),
		attr(dwarf.AttrType, dwarf.Offset(0x100)),
		attr(dwarf.AttrLocation, []byte{0x03, 0x00, 0x30, 0x00, 0x20}),
	))

	e := newTestExtractor(tt)
	e.scanTypedefs(tt.cu)
	e.scanVariables(tt.cu)
	if e.errs.Count() != 0 {
		t.Fatalf("extraction reported %d errors, first: %v", e.errs.Count(), e.errs.First())
	}

	wantAddrs := map[string]uint64{
		"/global/position/x":      0x20001000,
		"/global/position/y":      0x20001004,
		"/global/samples/samples[2]": 0x20002008,
		"/static/main.c/counter":  0x20003000,
	}
	for path, want := range wantAddrs {
		v, err := e.vm.GetVar(path)
		if err != nil {
			t.Fatalf("GetVar(%q) error: %v", path, err)
		}
		addr, ok := v.Address()
		if !ok {
			t.Fatalf("%s has no absolute address", path)
		}
		if addr != want {
			t.Errorf("%s at 0x%x, want 0x%x", path, addr, want)
		}
		if v.Type() != embedded.TypeUInt32 {
			t.Errorf("%s type = %v, want uint32", path, v.Type())
		}
	}

	factory, err := e.vm.GetFactory("/global/samples/samples")
	if err != nil {
		t.Fatalf("GetFactory() error: %v", err)
	}
	arr, ok := factory.ArrayNodes()["/global/samples/samples"]
	if !ok {
		t.Fatal("the array definition is not attached to the entry path")
	}
	if !reflect.DeepEqual(arr.Dims(), []int{10}) {
		t.Errorf("dims = %v, want [10]", arr.Dims())
	}
}

func TestTIC28xSizeDoubling(t *testing.T) {
	tt := newTestTree("TI TMS320C2000 C/C++ Compiler v22.6.0")
	e := newTestExtractor(tt)
	e.arch = archTIC28x
	e.endianness = embedded.BigEndian

	n := tt.add(nil, mkEntry(0x100, dwarf.TagBaseType,
		attr(dwarf.AttrName, "int"),
		attr(dwarf.AttrEncoding, encSigned),
		attr(dwarf.AttrByteSize, int64(1)),
	))
	// One C28x char is 16 bits.
	size, err := e.typeByteSize(n)
	if err != nil {
		t.Fatalf("typeByteSize() error: %v", err)
	}
	if size != 2 {
		t.Errorf("typeByteSize() = %d, want 2", size)
	}
	if err := e.processBaseType(n); err != nil {
		t.Fatalf("processBaseType() error: %v", err)
	}
	got, ok := e.vm.TypeForName("int")
	if !ok || got != embedded.TypeSInt16 {
		t.Errorf("registered type = %v, want sint16", got)
	}
}
