package extract

import (
	"debug/dwarf"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/probemap/internal/embedded"
	"github.com/muurk/probemap/internal/varmap"
	"github.com/muurk/probemap/internal/varmodel"
)

// Path roots. External symbols live under global, compile unit locals
// under static followed by the unit's display name.
const (
	rootGlobal = "global"
	rootStatic = "static"
)

// varPathSegment is one level of a variable path under construction. An
// array definition attached to a segment marks it as indexable.
type varPathSegment struct {
	name  string
	array *varmodel.TypedArray
}

type varPath struct {
	segments []varPathSegment
}

func (p *varPath) prepend(name string, arr *varmodel.TypedArray) {
	p.segments = append([]varPathSegment{{name: name, array: arr}}, p.segments...)
}

func (p *varPath) names() []string {
	out := make([]string, len(p.segments))
	for i, seg := range p.segments {
		out[i] = seg.name
	}
	return out
}

// arraySegments returns the array definitions found on the path, keyed by
// the subpath leading to them.
func (p *varPath) arraySegments() map[string]*varmodel.Array {
	out := make(map[string]*varmodel.Array)
	names := p.names()
	for i, seg := range p.segments {
		if seg.array != nil {
			out[varmodel.JoinSegments(names[:i+1])] = seg.array.Array
		}
	}
	return out
}

// makeVarPath builds the display path of a variable die, either from its
// scope hierarchy or from its linkage name.
func (e *extractor) makeVarPath(n *node) (*varPath, error) {
	vp := &varPath{}
	if err := e.buildVarPath(n, vp); err != nil {
		return nil, err
	}
	if e.isExternal(n) {
		vp.prepend(rootGlobal, nil)
	} else {
		vp.prepend(e.cuNames[n.cu], nil)
		vp.prepend(rootStatic, nil)
	}
	return vp, nil
}

func (e *extractor) buildVarPath(n *node, vp *varPath) error {
	if n.tag() == dwarf.TagCompileUnit {
		return nil
	}

	// Array variables get an extra level so the elements group together:
	// /aaa/bbb/ccc/ccc[0].
	var arr *varmodel.TypedArray
	if n.tag() == dwarf.TagVariable {
		desc, err := resolveType(e.t, n)
		if err != nil {
			return e.dieErr(n, err)
		}
		if desc.kind == kindArray {
			arr, err = e.arrayDef(desc.typeNode, e.opts.dereferencePointers())
			if err != nil {
				return err
			}
		}
	}

	// A linkage name carries the full scope, no hierarchy walk needed.
	if mangled, ok := e.mangledLinkageName(n); ok {
		parts := e.scopedParts(n, e.dem.Demangle(mangled))
		for i := len(parts) - 1; i >= 0; i-- {
			if arr != nil && i == len(parts)-1 {
				vp.prepend(parts[i], arr)
			}
			vp.prepend(parts[i], nil)
		}
		return nil
	}

	name, ok := n.name()
	if !ok {
		if spec, found := e.t.ref(n, dwarf.AttrSpecification); found {
			name, ok = spec.name()
		}
	}
	if !ok {
		// Unnamed scope, nothing more to add.
		return nil
	}
	vp.prepend(name, arr)
	if arr != nil {
		vp.prepend(name, nil)
	}
	if n.parent != nil {
		return e.buildVarPath(n.parent, vp)
	}
	return nil
}

// addVar files one entry in the registry, unless its address is null or
// its path matches an ignore pattern. Reports whether the entry was added.
func (e *extractor) addVar(segs []string, typeName string, loc varmodel.Location, bitOffset, bitSize int, enum *embedded.Enum, arrays map[string]*varmodel.Array) (bool, error) {
	fullname := varmodel.JoinSegments(segs)
	if abs, ok := loc.(*varmodel.AbsoluteLocation); ok && abs.IsNull() {
		e.logger.Warn("skipping variable at null address", zap.String("path", fullname))
		return false, nil
	}
	if pattern, matched := e.filters.matchedPathPattern(fullname); matched {
		e.logger.Debug("path matches ignore pattern",
			zap.String("path", fullname), zap.String("pattern", pattern))
		return false, nil
	}
	err := e.vm.AddVariable(varmap.VariableSpec{
		PathSegments:  append([]string(nil), segs...),
		TypeName:      typeName,
		Location:      loc,
		BitOffset:     bitOffset,
		BitSize:       bitSize,
		Enum:          enum,
		ArraySegments: arrays,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// processVariable turns a variable die into registry entries if it has an
// absolute address.
func (e *extractor) processVariable(n *node, loc *varmodel.AbsoluteLocation) error {
	if loc == nil {
		loc = e.location(n)
	}

	// The address can sit on a declaration that refers to the defining die.
	if spec, ok := e.t.ref(n, dwarf.AttrSpecification); ok {
		return e.processVariable(spec, loc)
	}
	if origin, ok := e.t.ref(n, dwarf.AttrAbstractOrigin); ok {
		return e.processVariable(origin, loc)
	}
	if loc == nil {
		return nil
	}

	desc, err := resolveType(e.t, n)
	if err != nil {
		return e.dieErr(n, err)
	}
	if desc.enumNode != nil {
		if err := e.processEnum(desc.enumNode); err != nil {
			return err
		}
	}

	switch {
	case desc.kind.isComposite():
		st, err := e.structDef(desc.typeNode, e.opts.dereferencePointers())
		if err != nil {
			return err
		}
		return e.registerStructVar(n, st, loc)
	case desc.kind == kindArray:
		arr, err := e.arrayDef(desc.typeNode, e.opts.dereferencePointers())
		if err != nil || arr == nil {
			return err
		}
		return e.registerArrayVar(n, arr, desc, loc)
	case desc.kind == kindPointer:
		return e.processPointerVariable(n, desc, loc)
	case desc.kind.isScalar():
		vp, err := e.makeVarPath(n)
		if err != nil {
			return err
		}
		typename, err := e.baseTypeName(desc)
		if err != nil {
			return err
		}
		_, err = e.addVar(vp.names(), typename, loc, -1, -1, e.enumOf(desc), nil)
		return err
	case desc.kind == kindSubroutine:
		e.logger.Debug("ignoring subroutine variable")
		return nil
	}
	e.logger.Warn("unsupported variable type", zap.Stringer("kind", desc.kind))
	return nil
}

// processPointerVariable registers the pointer cell itself, then at most
// one level of what it points to.
func (e *extractor) processPointerVariable(n *node, desc *typeDescriptor, loc *varmodel.AbsoluteLocation) error {
	if err := e.processPtrType(desc.typeNode); err != nil {
		return err
	}
	size, err := e.pointerSize(desc.typeNode)
	if err != nil {
		return err
	}
	vp, err := e.makeVarPath(n)
	if err != nil {
		return err
	}
	segs := vp.names()

	added, err := e.addVar(segs, ptrTypeName(size), loc, -1, -1, nil, nil)
	if err != nil {
		return err
	}

	pointee := desc.pointee
	if !added || !e.opts.dereferencePointers() || pointee == nil || pointee.kind == kindVoid {
		return nil
	}

	ptrLoc := varmodel.NewUnresolvedPointerLocation(varmodel.MakePath(segs...))
	switch {
	case pointee.kind.isScalar():
		typename, err := e.baseTypeName(pointee)
		if err != nil {
			return err
		}
		_, err = e.addVar(markLast(segs), typename, ptrLoc, -1, -1, e.enumOf(pointee), nil)
		return err
	case pointee.kind.isComposite():
		st, err := e.structDef(pointee.typeNode, false)
		if err != nil {
			return err
		}
		return e.registerStructVar(n, st, ptrLoc)
	case pointee.kind == kindSubroutine, pointee.kind == kindPointer:
		return nil
	}
	e.logger.Warn("unsupported pointee type", zap.Stringer("kind", pointee.kind))
	return nil
}

// registerStructVar registers every member of a struct instance. The base
// location may be absolute or sit behind a pointer variable; in the latter
// case the last path segment carries the dereference marker.
func (e *extractor) registerStructVar(n *node, st *varmodel.Struct, loc varmodel.Location) error {
	if abs, ok := loc.(*varmodel.AbsoluteLocation); ok && abs.IsNull() {
		e.logger.Warn("skipping structure at null address", zap.String("struct", st.Name()))
		return nil
	}
	vp, err := e.makeVarPath(n)
	if err != nil {
		return err
	}
	segs := vp.names()
	if _, pointed := loc.(*varmodel.UnresolvedPointerLocation); pointed {
		segs = markLast(segs)
	}
	return e.registerMembers(segs, st, loc, map[string]*varmodel.Array{})
}

// registerArrayVar registers a variable whose type is an array.
func (e *extractor) registerArrayVar(n *node, arr *varmodel.TypedArray, desc *typeDescriptor, loc *varmodel.AbsoluteLocation) error {
	if loc.IsNull() {
		name, _ := e.dieName(n)
		e.logger.Warn("skipping array at null address", zap.String("name", name))
		return nil
	}

	vp, err := e.makeVarPath(n)
	if err != nil {
		return err
	}
	segs := vp.names()
	arrays := vp.arraySegments()

	switch el := arr.Element.(type) {
	case varmodel.ScalarElement:
		_, err := e.addVar(segs, arr.ElementTypeName(), loc, -1, -1, e.enumOf(desc), arrays)
		return err
	case varmodel.StructElement:
		return e.registerMembers(segs, el.Struct, loc, arrays)
	case varmodel.PointerElement:
		added, err := e.addVar(segs, arr.ElementTypeName(), loc, -1, -1, nil, arrays)
		if err != nil || !added || !e.opts.dereferencePointers() {
			return err
		}
		ptr := el.Pointer
		// Pointed composites are not expanded through arrays of pointers,
		// only scalar pointees are.
		if ptr.IsOpaque() || ptr.PointeeStruct != nil {
			return nil
		}
		ptrLoc := &varmodel.UnresolvedPointerLocation{
			PointerPath:   varmodel.MakePath(segs...),
			ArraySegments: cloneArrays(arrays),
		}
		_, err = e.addVar(markLast(segs), ptr.PointeeTypeName, ptrLoc, -1, -1, ptr.Enum, nil)
		return err
	}
	return nil
}

// registerMembers walks a composite definition and files one entry per
// reachable leaf, accumulating byte offsets along the way.
func (e *extractor) registerMembers(segs []string, st *varmodel.Struct, base varmodel.Location, arrays map[string]*varmodel.Array) error {
	for _, m := range st.Members() {
		memberSegs := appendSeg(segs, m.Name)
		loc := base.Copy()
		loc.AddOffset(m.ByteOffset)

		bitOffset, bitSize := -1, -1
		if m.Bitfield != nil {
			bitOffset, bitSize = m.Bitfield.Offset, m.Bitfield.Size
		}

		switch m.Kind {
		case varmodel.MemberSubStruct:
			if err := e.registerMembers(memberSegs, m.SubStruct, loc, arrays); err != nil {
				return err
			}
		case varmodel.MemberSubArray:
			if err := e.registerArrayMember(memberSegs, m.SubArray, loc, arrays); err != nil {
				return err
			}
		case varmodel.MemberPointer:
			added, err := e.addVar(memberSegs, ptrTypeName(m.Pointer.Size), loc, bitOffset, bitSize, nil, arrays)
			if err != nil {
				return err
			}
			// One level of indirection only: members of a pointed struct
			// have no absolute address to dereference from.
			if added && e.opts.dereferencePointers() {
				if _, abs := loc.(*varmodel.AbsoluteLocation); abs {
					if err := e.derefPointer(m.Pointer, memberSegs, arrays); err != nil {
						return err
					}
				}
			}
		case varmodel.MemberBaseType:
			if _, err := e.addVar(memberSegs, m.TypeName, loc, bitOffset, bitSize, m.Enum, arrays); err != nil {
				return err
			}
		}
	}
	return nil
}

// registerArrayMember handles a struct member of array type. The member
// name doubles as an extra path level grouping the elements.
func (e *extractor) registerArrayMember(segs []string, arr *varmodel.TypedArray, loc varmodel.Location, arrays map[string]*varmodel.Array) error {
	segs = appendSeg(segs, segs[len(segs)-1])
	key := varmodel.JoinSegments(segs)
	newArrays := cloneArrays(arrays)
	if _, dup := newArrays[key]; dup {
		return fmt.Errorf("duplicate array definition for %s", key)
	}
	newArrays[key] = arr.Array

	switch el := arr.Element.(type) {
	case varmodel.ScalarElement:
		_, err := e.addVar(segs, arr.ElementTypeName(), loc, -1, -1, el.Enum, newArrays)
		return err
	case varmodel.StructElement:
		return e.registerMembers(segs, el.Struct, loc, newArrays)
	case varmodel.PointerElement:
		added, err := e.addVar(segs, arr.ElementTypeName(), loc, -1, -1, nil, newArrays)
		if err != nil || !added || !e.opts.dereferencePointers() {
			return err
		}
		if _, abs := loc.(*varmodel.AbsoluteLocation); abs {
			return e.derefPointer(el.Pointer, segs, newArrays)
		}
	}
	return nil
}

// derefPointer registers what a pointer member points to. The pointed side
// starts a path of its own, marked with the dereference prefix, anchored on
// the pointer's path and array definitions.
func (e *extractor) derefPointer(ptr *varmodel.Pointer, segs []string, ptrArrays map[string]*varmodel.Array) error {
	if ptr.IsOpaque() {
		return nil
	}
	loc := &varmodel.UnresolvedPointerLocation{
		PointerPath:   varmodel.MakePath(segs...),
		ArraySegments: cloneArrays(ptrArrays),
	}
	derefSegs := markLast(segs)
	if ptr.PointeeStruct != nil {
		return e.registerMembers(derefSegs, ptr.PointeeStruct, loc, map[string]*varmodel.Array{})
	}
	_, err := e.addVar(derefSegs, ptr.PointeeTypeName, loc, -1, -1, ptr.Enum, nil)
	return err
}

func appendSeg(segs []string, name string) []string {
	out := make([]string, 0, len(segs)+1)
	out = append(out, segs...)
	return append(out, name)
}

func markLast(segs []string) []string {
	out := append([]string(nil), segs...)
	out[len(out)-1] = "*" + out[len(out)-1]
	return out
}

func cloneArrays(in map[string]*varmodel.Array) map[string]*varmodel.Array {
	out := make(map[string]*varmodel.Array, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
