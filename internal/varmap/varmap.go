package varmap

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/muurk/probemap/internal/embedded"
	"github.com/muurk/probemap/internal/logging"
	"github.com/muurk/probemap/internal/varmodel"
)

const fileFormatVersion = 1

// typeEntry maps a numeric type id back to the binary's original type name
// and the scalar type it resolves to.
type typeEntry struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type arrayDef struct {
	Dims     []int `json:"dims"`
	ByteSize int   `json:"byte_size"`
}

// variableEntry is one serialized variable. For a pointed variable the path
// key carries a * marker on the pointer segment and Addr holds the byte
// offset past the dereference point instead of an address.
type variableEntry struct {
	TypeID        string              `json:"type_id"`
	Addr          uint64              `json:"addr"`
	BitOffset     *int                `json:"bitoffset,omitempty"`
	BitSize       *int                `json:"bitsize,omitempty"`
	Enum          *int                `json:"enum,omitempty"`
	ArraySegments map[string]arrayDef `json:"array_segments,omitempty"`
}

type enumDef struct {
	Name   string           `json:"name"`
	Values map[string]int64 `json:"values"`
}

type fileContent struct {
	Version    int                      `json:"version"`
	Endianness string                   `json:"endianness"`
	TypeMap    map[string]typeEntry     `json:"type_map"`
	Variables  map[string]variableEntry `json:"variables"`
	Enums      map[string]enumDef       `json:"enums"`
}

// VarMap is the address registry of a firmware image: every extracted
// variable keyed by its full path, with a type map and an enum table shared
// across entries. It is the simplified, serializable form of the DWARF
// debug info.
type VarMap struct {
	endianness embedded.Endianness
	typeMap    map[string]typeEntry
	variables  map[string]variableEntry
	enums      map[string]enumDef

	nextTypeID   int
	nextEnumID   int
	typeIDByName map[string]string
	enumIDs      map[*embedded.Enum]int

	logger *zap.Logger
}

// New creates an empty little-endian map.
func New() *VarMap {
	return &VarMap{
		endianness:   embedded.LittleEndian,
		typeMap:      make(map[string]typeEntry),
		variables:    make(map[string]variableEntry),
		enums:        make(map[string]enumDef),
		typeIDByName: make(map[string]string),
		enumIDs:      make(map[*embedded.Enum]int),
		logger:       logging.GetLogger().Named("varmap"),
	}
}

// Load parses a serialized map. All four top-level keys must be present;
// a version field is accepted and ignored so newer writers stay readable.
func Load(data []byte) (*VarMap, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVarMap, err)
	}
	for _, key := range []string{"endianness", "type_map", "variables", "enums"} {
		if _, ok := raw[key]; !ok {
			return nil, fmt.Errorf("%w: missing key %q", ErrMalformedVarMap, key)
		}
	}

	var content fileContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVarMap, err)
	}
	endianness, err := embedded.ParseEndianness(content.Endianness)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVarMap, err)
	}

	vm := New()
	vm.endianness = endianness
	vm.typeMap = content.TypeMap
	vm.variables = content.Variables
	vm.enums = content.Enums
	vm.rebuildIndexes()
	if err := vm.validateEntries(); err != nil {
		return nil, err
	}
	return vm, nil
}

// validateEntries checks the cross-references of every loaded variable
// entry, so a malformed file fails at load time rather than on the first
// lookup.
func (vm *VarMap) validateEntries() error {
	for path, entry := range vm.variables {
		if _, err := varmodel.ParsePath(path); err != nil {
			return fmt.Errorf("%w: bad entry key %q: %v", ErrMalformedVarMap, path, err)
		}
		if _, ok := vm.typeMap[entry.TypeID]; !ok {
			return fmt.Errorf("%w: entry %s refers to type id %q, not in the type map", ErrMalformedVarMap, path, entry.TypeID)
		}
		if entry.Enum != nil {
			if _, ok := vm.enums[strconv.Itoa(*entry.Enum)]; !ok {
				return fmt.Errorf("%w: entry %s refers to enum id %d, not in the enum table", ErrMalformedVarMap, path, *entry.Enum)
			}
		}
	}
	return nil
}

// LoadFile reads and parses a serialized map from disk.
func LoadFile(path string) (*VarMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(data)
}

func (vm *VarMap) rebuildIndexes() {
	vm.nextTypeID = 0
	vm.nextEnumID = 0
	vm.typeIDByName = make(map[string]string, len(vm.typeMap))
	vm.enumIDs = make(map[*embedded.Enum]int)

	for id, entry := range vm.typeMap {
		if n, err := strconv.Atoi(id); err == nil && n >= vm.nextTypeID {
			vm.nextTypeID = n + 1
		}
		vm.typeIDByName[entry.Name] = id
	}
	for id := range vm.enums {
		if n, err := strconv.Atoi(id); err == nil && n >= vm.nextEnumID {
			vm.nextEnumID = n + 1
		}
	}
}

// SetEndianness sets the target byte order recorded in the map.
func (vm *VarMap) SetEndianness(e embedded.Endianness) {
	vm.endianness = e
}

// Endianness returns the target byte order.
func (vm *VarMap) Endianness() embedded.Endianness {
	return vm.endianness
}

// JSON serializes the map.
func (vm *VarMap) JSON() ([]byte, error) {
	content := fileContent{
		Version:    fileFormatVersion,
		Endianness: vm.endianness.String(),
		TypeMap:    vm.typeMap,
		Variables:  vm.variables,
		Enums:      vm.enums,
	}
	return json.MarshalIndent(content, "", "    ")
}

// WriteFile serializes the map to disk.
func (vm *VarMap) WriteFile(path string) error {
	data, err := vm.JSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RegisterBaseType maps a binary type name to a scalar type. Registering
// the same name with the same type again is a no-op; a different type is a
// conflict.
func (vm *VarMap) RegisterBaseType(originalName string, t embedded.DataType) error {
	if id, ok := vm.typeIDByName[originalName]; ok {
		if vm.typeMap[id].Type != t.String() {
			return fmt.Errorf("%w: %q is %s, cannot become %s",
				ErrTypeConflict, originalName, vm.typeMap[id].Type, t)
		}
		return nil
	}
	id := strconv.Itoa(vm.nextTypeID)
	vm.nextTypeID++
	vm.typeIDByName[originalName] = id
	vm.typeMap[id] = typeEntry{Name: originalName, Type: t.String()}
	return nil
}

// IsKnownType reports whether the binary type name has been registered.
func (vm *VarMap) IsKnownType(binaryTypeName string) bool {
	_, ok := vm.typeIDByName[binaryTypeName]
	return ok
}

// TypeForName returns the scalar type registered for a binary type name.
func (vm *VarMap) TypeForName(binaryTypeName string) (embedded.DataType, bool) {
	id, ok := vm.typeIDByName[binaryTypeName]
	if !ok {
		return embedded.TypeNA, false
	}
	t, err := embedded.ParseDataType(vm.typeMap[id].Type)
	if err != nil {
		return embedded.TypeNA, false
	}
	return t, true
}

// VariableSpec is everything needed to add one variable entry.
type VariableSpec struct {
	// PathSegments are the raw path segments, dereference marker included
	// on pointed variables.
	PathSegments []string
	// TypeName is the binary type name; it must be registered already.
	TypeName string
	// Location is either absolute or an unresolved pointer indirection.
	Location varmodel.Location
	// BitOffset and BitSize describe a bitfield window; -1 when not one.
	BitOffset int
	BitSize   int
	// Enum interprets the variable's integer values, optional.
	Enum *embedded.Enum
	// ArraySegments holds the array definitions of the path, keyed by raw
	// subpath. For pointed variables this is the part past the pointer; the
	// pointer part rides inside the location.
	ArraySegments map[string]*varmodel.Array
}

// AddVariable registers one variable. A duplicate path overwrites the
// previous entry with a warning, matching how linkers keep the last of two
// identically named symbols.
func (vm *VarMap) AddVariable(spec VariableSpec) error {
	fullname := varmodel.JoinSegments(spec.PathSegments)
	if logging.DebugEnabled() {
		vm.logger.Debug("adding variable", zap.String("path", fullname))
	}

	typeID, ok := vm.typeIDByName[spec.TypeName]
	if !ok {
		return fmt.Errorf("%w: %q for %s", ErrUnknownType, spec.TypeName, fullname)
	}

	entry := variableEntry{TypeID: typeID}
	arrays := make(map[string]*varmodel.Array, len(spec.ArraySegments))
	for k, v := range spec.ArraySegments {
		arrays[k] = v
	}

	switch loc := spec.Location.(type) {
	case *varmodel.AbsoluteLocation:
		if loc.IsNull() {
			return fmt.Errorf("%w: %s", ErrNullAddress, fullname)
		}
		entry.Addr = loc.Address()
	case *varmodel.UnresolvedPointerLocation:
		entry.Addr = uint64(loc.PointerOffset)
		for k, v := range loc.ArraySegments {
			arrays[k] = v
		}
	default:
		return fmt.Errorf("cannot serialize location %T for %s", spec.Location, fullname)
	}

	if spec.BitOffset >= 0 && spec.BitSize > 0 {
		bitOffset, bitSize := spec.BitOffset, spec.BitSize
		entry.BitOffset = &bitOffset
		entry.BitSize = &bitSize
	}

	if spec.Enum != nil {
		id, ok := vm.enumIDs[spec.Enum]
		if !ok {
			id = vm.nextEnumID
			vm.nextEnumID++
			vm.enumIDs[spec.Enum] = id
			vm.enums[strconv.Itoa(id)] = enumDef{
				Name:   spec.Enum.Name(),
				Values: spec.Enum.Values(),
			}
		}
		entry.Enum = &id
	}

	if len(arrays) > 0 {
		entry.ArraySegments = make(map[string]arrayDef, len(arrays))
		for path, arr := range arrays {
			entry.ArraySegments[path] = arrayDef{
				Dims:     arr.Dims(),
				ByteSize: arr.ElementByteSize(),
			}
		}
	}

	if _, exists := vm.variables[fullname]; exists {
		vm.logger.Warn("duplicate entry", zap.String("path", fullname))
	}
	vm.variables[fullname] = entry
	return nil
}

// HasVar reports whether a raw path names an entry.
func (vm *VarMap) HasVar(rawPath string) bool {
	_, ok := vm.variables[rawPath]
	return ok
}

// Names returns every entry path in sorted order.
func (vm *VarMap) Names() []string {
	out := make([]string, 0, len(vm.variables))
	for name := range vm.variables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetFactory builds the variable factory registered under a raw path. The
// factory carries the entry's layout, base location and array definitions;
// Instantiate turns a concrete indexed path into a Variable.
func (vm *VarMap) GetFactory(rawPath string) (*varmodel.Factory, error) {
	entry, ok := vm.variables[rawPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVariable, rawPath)
	}
	path, err := varmodel.ParsePath(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: bad entry key %q: %v", ErrMalformedVarMap, rawPath, err)
	}

	layout, err := vm.layoutOf(entry)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", rawPath, err)
	}

	var base varmodel.Location
	derefIndex := path.DerefIndex()
	if derefIndex < 0 {
		base = varmodel.NewAbsoluteLocation(entry.Addr)
	} else {
		// The pointer variable is named by the segments up to the marker,
		// marker stripped. Addr holds the post-dereference offset.
		base = &varmodel.UnresolvedPointerLocation{
			PointerPath:   varmodel.MakePath(path.Segments()[:derefIndex+1]...),
			PointerOffset: int(entry.Addr),
		}
	}

	factory, err := varmodel.NewFactory(rawPath, base, layout)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", rawPath, err)
	}

	for nodePath, def := range entry.ArraySegments {
		arr, err := varmodel.NewArray(def.Dims, def.ByteSize, "")
		if err != nil {
			return nil, fmt.Errorf("%w: array node %q of %s: %v", ErrMalformedVarMap, nodePath, rawPath, err)
		}
		// Array nodes on the pointer side of the dereference belong to the
		// base location, the rest to the factory.
		if derefIndex >= 0 && !pathHasDeref(nodePath) {
			err = factory.AddPointerArrayNode(nodePath, arr)
		} else {
			err = factory.AddArrayNode(nodePath, arr)
		}
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", rawPath, err)
		}
	}
	return factory, nil
}

// GetVar resolves a concrete, possibly indexed path into a Variable.
func (vm *VarMap) GetVar(pathStr string) (*varmodel.Variable, error) {
	path, err := varmodel.ParsePath(pathStr)
	if err != nil {
		return nil, err
	}
	factory, err := vm.GetFactory(path.RawString())
	if err != nil {
		return nil, err
	}
	return factory.Instantiate(path)
}

// GetEnum returns the enum registered under a numeric id.
func (vm *VarMap) GetEnum(id int) (*embedded.Enum, error) {
	def, ok := vm.enums[strconv.Itoa(id)]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownEnum, id)
	}
	return enumFromDef(def), nil
}

// EnumsByName returns every enum carrying the given name. Distinct enums
// may share a name across compile units.
func (vm *VarMap) EnumsByName(name string) []*embedded.Enum {
	var out []*embedded.Enum
	for _, id := range sortedKeys(vm.enums) {
		if def := vm.enums[id]; def.Name == name {
			out = append(out, enumFromDef(def))
		}
	}
	return out
}

func (vm *VarMap) layoutOf(entry variableEntry) (varmodel.Layout, error) {
	typeDef, ok := vm.typeMap[entry.TypeID]
	if !ok {
		return varmodel.Layout{}, fmt.Errorf("%w: type id %q not in type map", ErrMalformedVarMap, entry.TypeID)
	}
	t, err := embedded.ParseDataType(typeDef.Type)
	if err != nil {
		return varmodel.Layout{}, fmt.Errorf("%w: %v", ErrMalformedVarMap, err)
	}

	layout := varmodel.NewLayout(t, vm.endianness)
	if entry.BitOffset != nil {
		layout.BitOffset = *entry.BitOffset
	}
	if entry.BitSize != nil {
		layout.BitSize = *entry.BitSize
	}
	if entry.Enum != nil {
		enum, err := vm.GetEnum(*entry.Enum)
		if err != nil {
			return varmodel.Layout{}, err
		}
		layout.Enum = enum
	}
	return layout, nil
}

func enumFromDef(def enumDef) *embedded.Enum {
	enum := embedded.NewEnum(def.Name)
	names := make([]string, 0, len(def.Values))
	for name := range def.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		// Values loaded from JSON cannot conflict, the map is keyed by name.
		_ = enum.AddValue(name, def.Values[name])
	}
	return enum
}

func pathHasDeref(rawPath string) bool {
	p, err := varmodel.ParsePath(rawPath)
	if err != nil {
		return false
	}
	return p.HasDeref()
}

func sortedKeys(m map[string]enumDef) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
