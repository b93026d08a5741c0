package extract

import (
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/probemap/internal/embedded"
	"github.com/muurk/probemap/internal/logging"
	"github.com/muurk/probemap/internal/varmap"
	"github.com/muurk/probemap/internal/varmodel"
)

// DWARF expression opcodes the extractor understands.
const (
	opAddr       = 0x03
	opPlusUconst = 0x23
)

type archKind int

const (
	archUnknown archKind = iota
	// archTIC28x is the TI C2000 DSP family. Chars are 16 bits wide there,
	// so DWARF byte sizes count 16-bit units.
	archTIC28x
)

type compilerKind int

const (
	compilerUnknown compilerKind = iota
	compilerGCC
	compilerClang
	compilerTIC28
	compilerTasking
)

// structKey caches composite and array definitions per DIE. Dereferencing
// state is part of the key: the same type reads differently when pointer
// chasing is disabled to break a cycle.
type structKey struct {
	n     *node
	deref bool
}

type extractor struct {
	logger  *zap.Logger
	opts    Options
	filters *filters
	dem     Demangler

	t    *tree
	vm   *varmap.VarMap
	errs *ParseErrors

	arch       archKind
	endianness embedded.Endianness

	cuNames     map[*node]string
	cuCompilers map[*node]compilerKind

	dieTypes     map[*node]embedded.DataType
	enumCache    map[*node]*embedded.Enum
	structCache  map[structKey]*varmodel.Struct
	arrayCache   map[structKey]*varmodel.TypedArray
	anonTypedefs map[*node]*node
}

// ExtractFile reads an ELF file and builds an address registry from its
// debug info. Recoverable problems with individual entries are collected
// in the returned ParseErrors; the error return is for problems that stop
// the whole extraction.
func ExtractFile(path string, opts Options) (*varmap.VarMap, *ParseErrors, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	defer f.Close()
	return Extract(f, opts)
}

// Extract builds an address registry from an open ELF file.
func Extract(f *elf.File, opts Options) (*varmap.VarMap, *ParseErrors, error) {
	flt, err := opts.compileFilters()
	if err != nil {
		return nil, nil, err
	}
	dem := opts.demangler()
	if err := dem.Available(); err != nil {
		return nil, nil, err
	}

	d, err := f.DWARF()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoDWARF, err)
	}
	t, err := buildTree(d)
	if err != nil {
		return nil, nil, err
	}

	e := &extractor{
		logger:       logging.GetLogger().Named("extract"),
		opts:         opts,
		filters:      flt,
		dem:          dem,
		t:            t,
		vm:           varmap.New(),
		errs:         &ParseErrors{},
		arch:         identifyArch(f),
		cuNames:      make(map[*node]string),
		cuCompilers:  make(map[*node]compilerKind),
		dieTypes:     make(map[*node]embedded.DataType),
		enumCache:    make(map[*node]*embedded.Enum),
		structCache:  make(map[structKey]*varmodel.Struct),
		arrayCache:   make(map[structKey]*varmodel.TypedArray),
		anonTypedefs: make(map[*node]*node),
	}
	e.endianness = identifyEndianness(e.arch, f)
	e.vm.SetEndianness(e.endianness)
	e.makeCUNameMap()

	for _, cu := range t.units {
		rawName, _ := cu.name()
		if rawName != "" && e.filters.skipCompileUnit(rawName, filepath.Base(rawName)) {
			e.logger.Debug("skipping compile unit", zap.String("name", rawName))
			continue
		}
		e.cuCompilers[cu] = identifyCompiler(cu)

		// Each compile unit is scanned twice: typedefs first, then the
		// variables. Tasking sometimes links a struct straight to an
		// anonymous type die without passing by the typedef that names it,
		// so the reverse map must exist before any type is read.
		e.scanTypedefs(cu)
		e.scanVariables(cu)
	}
	return e.vm, e.errs, nil
}

func identifyArch(f *elf.File) archKind {
	if f.Machine == elf.EM_TI_C2000 {
		return archTIC28x
	}
	return archUnknown
}

// identifyEndianness assumes the data endianness matches the binary level.
// DW_AT_endianity exists since DWARF 4 but compilers do not emit it.
func identifyEndianness(arch archKind, f *elf.File) embedded.Endianness {
	if arch == archTIC28x {
		return embedded.BigEndian
	}
	if f.ByteOrder == binary.BigEndian {
		return embedded.BigEndian
	}
	return embedded.LittleEndian
}

func identifyCompiler(cu *node) compilerKind {
	producer, ok := cu.strAttr(dwarf.AttrProducer)
	if !ok {
		return compilerUnknown
	}
	producer = strings.ToLower(strings.TrimSpace(producer))
	switch {
	case strings.Contains(producer, "ti") && strings.Contains(producer, "c2000"):
		return compilerTIC28
	case strings.Contains(producer, "clang"):
		return compilerClang
	case strings.Contains(producer, "gnu"):
		return compilerGCC
	case strings.Contains(producer, "tasking"):
		return compilerTasking
	}
	return compilerUnknown
}

func (e *extractor) compilerOf(n *node) compilerKind {
	return e.cuCompilers[n.cu]
}

// makeCUNameMap assigns every compile unit a short unique display name,
// used as the path root of its static variables.
func (e *extractor) makeCUNameMap() {
	byFullpath := make(map[string][]*node)
	var fullpaths []string
	for _, cu := range e.t.units {
		name, ok := cu.name()
		if !ok {
			name = "unnamed_cu"
		}
		fullpath := filepath.Clean(name)
		if compDir, ok := cu.strAttr(dwarf.AttrCompDir); ok && !filepath.IsAbs(name) {
			fullpath = filepath.Clean(filepath.Join(compDir, name))
		}
		if _, seen := byFullpath[fullpath]; !seen {
			fullpaths = append(fullpaths, fullpath)
		}
		byFullpath[fullpath] = append(byFullpath[fullpath], cu)
	}

	displayNames := MakeUniqueDisplayNames(fullpaths)
	for fullpath, units := range byFullpath {
		for _, cu := range units {
			e.cuNames[cu] = displayNames[fullpath]
		}
	}
}

func (e *extractor) scanTypedefs(n *node) {
	if n.tag() == dwarf.TagTypedef {
		e.processTypedef(n)
	}
	for _, child := range n.children {
		e.scanTypedefs(child)
	}
}

func (e *extractor) scanVariables(n *node) {
	if n.tag() == dwarf.TagVariable {
		if err := e.processVariable(n, nil); err != nil {
			e.errs.Add(err)
			e.logger.Warn("failed to extract variable", zap.Error(err))
		}
	}
	for _, child := range n.children {
		e.scanVariables(child)
	}
}

// processTypedef records which typedef names an anonymous composite, so
// that "typedef struct {...} MyStruct" shows up as MyStruct.
func (e *extractor) processTypedef(n *node) {
	typeDie, ok := e.t.ref(n, dwarf.AttrType)
	if !ok {
		return
	}
	switch typeDie.tag() {
	case dwarf.TagClassType, dwarf.TagStructType, dwarf.TagUnionType, dwarf.TagEnumerationType:
		if _, named := typeDie.name(); !named {
			e.anonTypedefs[typeDie] = n
		}
	}
}

func (e *extractor) dieErr(n *node, err error) error {
	name, _ := n.name()
	return &DIEError{Offset: n.offset(), Tag: n.tag(), Name: name, Err: err}
}

// dieName resolves the display name of a DIE: its own name attribute, the
// typedef naming it when anonymous, or a tag placeholder for composites.
func (e *extractor) dieName(n *node) (string, bool) {
	if s, ok := n.name(); ok {
		return s, true
	}
	if td, ok := e.anonTypedefs[n]; ok {
		if s, ok := td.name(); ok {
			return s, true
		}
	}
	switch n.tag() {
	case dwarf.TagStructType:
		return "<struct>", true
	case dwarf.TagEnumerationType:
		return "<enum>", true
	case dwarf.TagUnionType:
		return "<union>", true
	}
	return "", false
}

func (e *extractor) isExternal(n *node) bool {
	return n.flagAttr(dwarf.AttrExternal)
}

// mangledLinkageName returns the mangled linkage name of a DIE if one is
// present. TI's cl2000 stores it in DW_AT_MIPS_fde, older GCC in
// DW_AT_MIPS_linkage_name, and Tasking mangles DW_AT_name itself.
func (e *extractor) mangledLinkageName(n *node) (string, bool) {
	s, ok := n.strAttr(dwarf.AttrLinkageName)
	if e.compilerOf(n) == compilerTIC28 {
		if v, found := n.strAttr(attrMIPSFDE); found {
			s, ok = v, true
		}
	} else if v, found := n.strAttr(attrMIPSLinkageName); found {
		s, ok = v, true
	}
	if !ok && e.compilerOf(n) == compilerTasking {
		if v, found := n.name(); found && strings.HasPrefix(v, "_Z") {
			return v, true
		}
	}
	return s, ok
}

// scopedParts splits a demangled C++ name into path segments, dropping the
// synthetic scopes some compilers insert.
func (e *extractor) scopedParts(n *node, demangled string) []string {
	parts := SplitScopedName(demangled)
	if e.compilerOf(n) == compilerTasking {
		parts = stripInternalSegments(parts)
	}
	return parts
}

// location reads the address of a DIE. Only statically allocated variables
// carry a DW_OP_addr expression; anything else (frame-relative locals,
// location lists) yields nil.
func (e *extractor) location(n *node) *varmodel.AbsoluteLocation {
	b, ok := n.bytesAttr(dwarf.AttrLocation)
	if !ok || len(b) < 2 || b[0] != opAddr {
		return nil
	}
	loc, err := varmodel.AbsoluteLocationFromBytes(b[1:], e.endianness)
	if err != nil {
		e.logger.Warn("unreadable location expression", zap.Error(e.dieErr(n, err)))
		return nil
	}
	return loc
}

// memberByteOffset reads the offset of a member relative to the struct
// base. It is encoded either as a plain constant or as a one-operator
// DW_OP_plus_uconst expression. Absent means zero per DWARF 4 5.5.6.
func (e *extractor) memberByteOffset(n *node) (int, error) {
	if v, ok := n.intAttr(dwarf.AttrDataMemberLoc); ok {
		return int(v), nil
	}
	b, ok := n.bytesAttr(dwarf.AttrDataMemberLoc)
	if !ok {
		return 0, nil
	}
	if len(b) < 2 || b[0] != opPlusUconst {
		return 0, e.dieErr(n, errors.New("unsupported member location expression"))
	}
	return uleb128(b[1:]), nil
}

func uleb128(b []byte) int {
	var out uint64
	shift := 0
	for _, x := range b {
		out |= uint64(x&0x7f) << shift
		if x&0x80 == 0 {
			break
		}
		shift += 7
	}
	return int(out)
}

// typeByteSize returns the size of a type die in 8-bit bytes. The C28x
// counts in 16-bit chars, so its sizes double.
func (e *extractor) typeByteSize(n *node) (int, error) {
	v, ok := n.intAttr(dwarf.AttrByteSize)
	if !ok {
		return 0, e.dieErr(n, errors.New("missing byte size"))
	}
	if e.arch == archTIC28x {
		return int(v) * 2, nil
	}
	return int(v), nil
}

// pointerSize returns the size of a pointer cell, preferring the address
// size declared at the compile unit level.
func (e *extractor) pointerSize(n *node) (int, error) {
	if n.cu != nil && n.cu.addrSize > 0 {
		return n.cu.addrSize, nil
	}
	if v, ok := n.intAttr(dwarf.AttrByteSize); ok {
		return int(v), nil
	}
	return 0, e.dieErr(n, errors.New("cannot find the pointer size"))
}

func ptrTypeName(byteSize int) string {
	return fmt.Sprintf("ptr%d", byteSize*8)
}

func (e *extractor) isForwardDeclaration(n *node) bool {
	return n.flagAttr(dwarf.AttrDeclaration)
}

// processBaseType registers a base type die in the registry's type map.
func (e *extractor) processBaseType(n *node) error {
	if _, done := e.dieTypes[n]; done {
		return nil
	}
	name, ok := n.strAttr(dwarf.AttrName)
	if !ok {
		return e.dieErr(n, errors.New("base type has no name"))
	}
	encoding, ok := n.intAttr(dwarf.AttrEncoding)
	if !ok {
		return e.dieErr(n, errors.New("base type has no encoding"))
	}
	byteSize, err := e.typeByteSize(n)
	if err != nil {
		return err
	}
	t, err := coreBaseType(encoding, int64(byteSize))
	if err != nil {
		return e.dieErr(n, err)
	}
	if logging.DebugEnabled() {
		e.logger.Debug("registering base type", zap.String("name", name), zap.Stringer("type", t))
	}
	if err := e.vm.RegisterBaseType(name, t); err != nil {
		return e.dieErr(n, err)
	}
	e.dieTypes[n] = t
	return nil
}

// processPtrType registers the synthetic type of a pointer die. All
// pointers of a given width merge to the same "ptrN" type.
func (e *extractor) processPtrType(n *node) error {
	if _, done := e.dieTypes[n]; done {
		return nil
	}
	size, err := e.pointerSize(n)
	if err != nil {
		return err
	}
	t, err := embedded.PointerType(size)
	if err != nil {
		return e.dieErr(n, err)
	}
	if err := e.vm.RegisterBaseType(ptrTypeName(size), t); err != nil {
		return e.dieErr(n, err)
	}
	e.dieTypes[n] = t
	return nil
}

// enumDieName reads the name of an enum die. TI and Tasking embed the full
// mangled scope in DW_AT_name; other compilers may put it in the linkage
// name when the enum itself is anonymous.
func (e *extractor) enumDieName(n *node) string {
	name, named := n.name()
	if !named {
		if td, ok := e.anonTypedefs[n]; ok {
			if s, ok := td.name(); ok {
				name, named = s, true
			}
		}
	}

	var mangled string
	if named {
		if e.compilerOf(n) == compilerTIC28 || e.compilerOf(n) == compilerTasking {
			if s, ok := n.name(); ok {
				mangled = s
			}
		}
	} else if s, ok := n.strAttr(dwarf.AttrLinkageName); ok {
		mangled = s
	}

	if mangled != "" {
		parts := e.scopedParts(n, e.dem.Demangle(mangled))
		return parts[len(parts)-1]
	}
	if named {
		return name
	}
	return "<enum>"
}

// processEnum builds the value table of an enumeration die.
func (e *extractor) processEnum(n *node) error {
	if _, done := e.enumCache[n]; done {
		return nil
	}
	enum := embedded.NewEnum(e.enumDieName(n))
	for _, child := range n.children {
		if child.tag() != dwarf.TagEnumerator {
			continue
		}
		name, ok := child.name()
		if !ok {
			return e.dieErr(child, errors.New("enumerator has no name"))
		}
		if e.compilerOf(n) == compilerTIC28 || e.compilerOf(n) == compilerTasking {
			parts := e.scopedParts(n, e.dem.Demangle(name))
			name = parts[len(parts)-1]
		}
		value, ok := child.intAttr(dwarf.AttrConstValue)
		if !ok {
			e.logger.Error("enumerator without value", zap.Error(e.dieErr(child, errors.New("missing const value"))))
			continue
		}
		if err := enum.AddValue(name, value); err != nil {
			e.logger.Warn("dropping enumerator", zap.Error(e.dieErr(child, err)))
		}
	}
	e.enumCache[n] = enum
	return nil
}

// enumOnlyTypeName synthesizes a type for an enum with no underlying type
// reference, deducing signedness and width from the enum itself.
func (e *extractor) enumOnlyTypeName(n *node) (string, error) {
	enum, ok := e.enumCache[n]
	if !ok {
		return "", e.dieErr(n, errors.New("enum was not processed"))
	}
	byteSize, err := e.typeByteSize(n)
	if err != nil {
		return "", err
	}
	encoding, ok := n.intAttr(dwarf.AttrEncoding)
	if !ok {
		encoding = encUnsigned
		if enum.HasSignedValue() {
			encoding = encSigned
		}
	}
	t, err := coreBaseType(encoding, int64(byteSize))
	if err != nil {
		return "", e.dieErr(n, err)
	}
	prefix := "enum_default_u"
	if t.IsSigned() {
		prefix = "enum_default_s"
	}
	name := fmt.Sprintf("%s%d", prefix, t.BitSize())
	if err := e.vm.RegisterBaseType(name, t); err != nil {
		return "", e.dieErr(n, err)
	}
	return name, nil
}

// baseTypeName registers a scalar type descriptor and returns the binary
// type name to file variables under.
func (e *extractor) baseTypeName(desc *typeDescriptor) (string, error) {
	switch desc.kind {
	case kindBaseType:
		if err := e.processBaseType(desc.typeNode); err != nil {
			return "", err
		}
		name, _ := desc.typeNode.strAttr(dwarf.AttrName)
		return name, nil
	case kindEnumOnly:
		if err := e.processEnum(desc.enumNode); err != nil {
			return "", err
		}
		return e.enumOnlyTypeName(desc.enumNode)
	}
	return "", fmt.Errorf("cannot name a %s as a base type", desc.kind)
}

// enumOf returns the enum attached to a type descriptor, resolving array
// descriptors down to their element.
func (e *extractor) enumOf(desc *typeDescriptor) *embedded.Enum {
	if desc.kind == kindArray {
		element, err := resolveType(e.t, desc.typeNode)
		if err != nil {
			return nil
		}
		desc = element
	}
	if desc.enumNode != nil {
		return e.enumCache[desc.enumNode]
	}
	return nil
}

// structDef reads a struct, class or union die into a composite type
// definition. Inheritance is linearized into the flat member list.
func (e *extractor) structDef(n *node, allowDeref bool) (*varmodel.Struct, error) {
	key := structKey{n: n, deref: allowDeref}
	if st, ok := e.structCache[key]; ok {
		return st, nil
	}
	switch n.tag() {
	case dwarf.TagStructType, dwarf.TagClassType, dwarf.TagUnionType:
	default:
		return nil, e.dieErr(n, errors.New("die is not a structure, class or union"))
	}

	name, _ := e.dieName(n)
	var st *varmodel.Struct
	if v, ok := n.intAttr(dwarf.AttrByteSize); ok {
		size := int(v)
		if e.arch == archTIC28x {
			size *= 2
		}
		st = varmodel.NewSizedStruct(name, size)
	} else {
		// Possible on a class with no data members.
		st = varmodel.NewStruct(name)
	}
	inUnion := n.tag() == dwarf.TagUnionType

	for _, child := range n.children {
		switch child.tag() {
		case dwarf.TagMember:
			m, err := e.member(child, inUnion, allowDeref)
			if err != nil {
				return nil, err
			}
			if m == nil {
				continue
			}
			if err := st.AddMember(m); err != nil {
				return nil, e.dieErr(child, err)
			}
		case dwarf.TagInheritance:
			offset, err := e.memberByteOffset(child)
			if err != nil {
				return nil, err
			}
			typeDie, ok := e.t.ref(child, dwarf.AttrType)
			if !ok {
				return nil, e.dieErr(child, errors.New("inheritance without a type"))
			}
			if typeDie.tag() != dwarf.TagStructType && typeDie.tag() != dwarf.TagClassType {
				e.logger.Warn("unsupported inheritance", zap.Stringer("tag", typeDie.tag()))
				continue
			}
			parent, err := e.structDef(typeDie, allowDeref)
			if err != nil {
				return nil, err
			}
			if err := st.Inherit(parent, offset); err != nil {
				return nil, e.dieErr(child, err)
			}
		}
	}

	e.structCache[key] = st
	return st, nil
}

// member reads one member die. A nil member with no error means the member
// is skipped: forward declarations, incomplete arrays, unsupported types.
func (e *extractor) member(n *node, inUnion, allowDeref bool) (*varmodel.Member, error) {
	name, _ := n.name()

	desc, err := resolveType(e.t, n)
	if err != nil {
		return nil, e.dieErr(n, err)
	}

	m := &varmodel.Member{Name: name, Unnamed: name == ""}
	switch {
	case desc.kind.isComposite():
		sub, err := e.structDef(desc.typeNode, allowDeref)
		if err != nil {
			return nil, err
		}
		m.Kind = varmodel.MemberSubStruct
		m.SubStruct = sub
	case desc.kind.isScalar():
		if desc.enumNode != nil {
			if err := e.processEnum(desc.enumNode); err != nil {
				return nil, err
			}
			m.Enum = e.enumCache[desc.enumNode]
		}
		typename, err := e.baseTypeName(desc)
		if err != nil {
			return nil, err
		}
		m.Kind = varmodel.MemberBaseType
		m.TypeName = typename
	case desc.kind == kindArray:
		arr, err := e.arrayDef(desc.typeNode, allowDeref)
		if err != nil {
			return nil, err
		}
		if arr == nil {
			return nil, nil
		}
		m.Kind = varmodel.MemberSubArray
		m.SubArray = arr
	case desc.kind == kindPointer:
		ptr, err := e.pointerDef(desc.typeNode, allowDeref)
		if err != nil {
			return nil, err
		}
		m.Kind = varmodel.MemberPointer
		m.Pointer = ptr
		m.TypeName = ptrTypeName(ptr.Size)
		m.Enum = ptr.Enum
	default:
		e.logger.Warn("unsupported member type",
			zap.String("member", name), zap.Stringer("kind", desc.kind))
		return nil, nil
	}

	if e.isForwardDeclaration(n) {
		return nil, nil
	}
	if m.Unnamed && m.Kind != varmodel.MemberSubStruct {
		e.logger.Debug("skipping unnamed member", zap.Stringer("offset", offsetField(n.offset())))
		return nil, nil
	}

	if inUnion {
		offset, err := e.memberByteOffset(n)
		if err != nil {
			return nil, err
		}
		if offset != 0 {
			return nil, e.dieErr(n, errors.New("union member with a non-zero location"))
		}
	} else {
		m.ByteOffset, err = e.memberByteOffset(n)
		if err != nil {
			return nil, err
		}
	}

	if n.hasAttr(dwarf.AttrBitOffset) || n.hasAttr(dwarf.AttrBitSize) {
		bf, err := e.memberBitfield(n, desc, name)
		if err != nil {
			return nil, err
		}
		m.Bitfield = bf
	}
	return m, nil
}

func (e *extractor) memberBitfield(n *node, desc *typeDescriptor, name string) (*varmodel.Bitfield, error) {
	var storageBytes int
	if v, ok := n.intAttr(dwarf.AttrByteSize); ok {
		storageBytes = int(v)
	} else if desc.kind.isScalar() {
		size, err := e.typeByteSize(desc.typeNode)
		if err != nil {
			return nil, err
		}
		storageBytes = size
	} else {
		return nil, e.dieErr(n, fmt.Errorf("cannot get byte size for bitfield %q", name))
	}

	bitSize, ok := n.intAttr(dwarf.AttrBitSize)
	if !ok {
		return nil, e.dieErr(n, fmt.Errorf("missing bit size for bitfield %q", name))
	}

	var recorded int64
	if v, ok := n.intAttr(dwarf.AttrBitOffset); ok {
		recorded = v
	} else if v, ok := n.intAttr(dwarf.AttrDataBitOffset); ok {
		recorded = v
	}

	return &varmodel.Bitfield{
		Offset: varmodel.NormalizeBitOffset(e.endianness, storageBytes*8, int(recorded), int(bitSize)),
		Size:   int(bitSize),
	}, nil
}

// arrayDef reads an array die into a typed array definition. Nested array
// types flatten into one definition of higher rank. Returns nil without an
// error when the array is incomplete.
func (e *extractor) arrayDef(n *node, allowDeref bool) (*varmodel.TypedArray, error) {
	if n.tag() != dwarf.TagArrayType {
		return nil, e.dieErr(n, errors.New("die is not an array"))
	}
	key := structKey{n: n, deref: allowDeref}
	if arr, ok := e.arrayCache[key]; ok {
		return arr, nil
	}

	var dims []int
	found := false
	for _, child := range n.children {
		if child.tag() != dwarf.TagSubrangeType {
			continue
		}
		found = true
		var count int64
		if v, ok := child.intAttr(dwarf.AttrCount); ok {
			count = v
		} else if v, ok := child.intAttr(dwarf.AttrUpperBound); ok {
			count = v + 1
		} else {
			// Incomplete array, extern declarations do that.
			e.logger.Debug("array with no dimension, skipping")
			return nil, nil
		}
		if v, ok := child.intAttr(dwarf.AttrLowerBound); ok && v != 0 {
			return nil, e.dieErr(child, fmt.Errorf("array lower bound %d is not supported", v))
		}
		dims = append(dims, int(count))
	}
	if !found {
		return nil, e.dieErr(n, errors.New("found no subrange under array"))
	}

	elemDesc, err := resolveType(e.t, n)
	if err != nil {
		return nil, e.dieErr(n, err)
	}
	if elemDesc.enumNode != nil {
		if err := e.processEnum(elemDesc.enumNode); err != nil {
			return nil, err
		}
	}

	var element varmodel.ArrayElement
	var elemName string
	var elemSize int
	switch {
	case elemDesc.kind.isComposite():
		st, err := e.structDef(elemDesc.typeNode, allowDeref)
		if err != nil {
			return nil, err
		}
		size, known := st.ByteSize()
		if !known {
			return nil, e.dieErr(n, errors.New("array of elements of unknown size"))
		}
		elemName, _ = e.dieName(elemDesc.typeNode)
		elemSize = size
		element = varmodel.StructElement{Struct: st}
	case elemDesc.kind.isScalar():
		typename, err := e.baseTypeName(elemDesc)
		if err != nil {
			return nil, err
		}
		t, ok := e.vm.TypeForName(typename)
		if !ok {
			return nil, e.dieErr(n, fmt.Errorf("element type %q is not registered", typename))
		}
		elemName = typename
		elemSize = t.Size()
		element = varmodel.ScalarElement{Type: t, Enum: e.enumOf(elemDesc)}
	case elemDesc.kind == kindArray:
		sub, err := e.arrayDef(elemDesc.typeNode, allowDeref)
		if err != nil || sub == nil {
			return sub, err
		}
		dims = append(dims, sub.Dims()...)
		elemName = sub.ElementTypeName()
		elemSize = sub.ElementByteSize()
		element = sub.Element
	case elemDesc.kind == kindPointer:
		ptr, err := e.pointerDef(elemDesc.typeNode, allowDeref)
		if err != nil {
			return nil, err
		}
		elemName = ptrTypeName(ptr.Size)
		elemSize = ptr.Size
		element = varmodel.PointerElement{Pointer: ptr}
	default:
		e.logger.Warn("unsupported array element type", zap.Stringer("kind", elemDesc.kind))
		return nil, nil
	}

	shape, err := varmodel.NewArray(dims, elemSize, elemName)
	if err != nil {
		return nil, e.dieErr(n, err)
	}
	arr := &varmodel.TypedArray{Array: shape, Element: element}
	e.arrayCache[key] = arr
	return arr, nil
}

// pointerDef reads a pointer die. With dereferencing disallowed the result
// behaves like a void pointer, which also breaks circular references.
func (e *extractor) pointerDef(n *node, allowDeref bool) (*varmodel.Pointer, error) {
	if n.tag() != dwarf.TagPointerType {
		return nil, e.dieErr(n, errors.New("die is not a pointer"))
	}
	if err := e.processPtrType(n); err != nil {
		return nil, err
	}
	size, err := e.pointerSize(n)
	if err != nil {
		return nil, err
	}
	opaque := &varmodel.Pointer{Size: size, PointeeType: embedded.TypeNA}
	if !allowDeref {
		return opaque, nil
	}

	pointee, err := resolvePointeeType(e.t, n)
	if err != nil {
		return nil, e.dieErr(n, err)
	}
	switch {
	case pointee.kind == kindVoid:
		return opaque, nil
	case pointee.kind.isScalar():
		typename, err := e.baseTypeName(pointee)
		if err != nil {
			return nil, err
		}
		var enum *embedded.Enum
		if pointee.enumNode != nil {
			if err := e.processEnum(pointee.enumNode); err != nil {
				return nil, err
			}
			enum = e.enumCache[pointee.enumNode]
		}
		t, ok := e.vm.TypeForName(typename)
		if !ok {
			return nil, e.dieErr(n, fmt.Errorf("pointee type %q is not registered", typename))
		}
		return &varmodel.Pointer{Size: size, PointeeType: t, PointeeTypeName: typename, Enum: enum}, nil
	case pointee.kind.isComposite():
		// One level of indirection only, the pointee's own pointers stay
		// opaque.
		st, err := e.structDef(pointee.typeNode, false)
		if err != nil {
			return nil, err
		}
		return &varmodel.Pointer{Size: size, PointeeType: embedded.TypeNA, PointeeStruct: st}, nil
	case pointee.kind == kindSubroutine, pointee.kind == kindPointer:
		return opaque, nil
	}
	e.logger.Warn("cannot dereference pointee", zap.Stringer("kind", pointee.kind))
	return opaque, nil
}

// offsetField makes a dwarf offset loggable.
type offsetField dwarf.Offset

func (o offsetField) String() string {
	return fmt.Sprintf("0x%x", uint64(o))
}
