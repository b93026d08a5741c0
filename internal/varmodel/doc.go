// Package varmodel holds the data model describing variables extracted from
// firmware debug information: array shapes, composite type definitions,
// variable paths, memory locations and decode layouts.
//
// A variable is identified by a slash-separated path such as
//
//	/global/main.cpp/controller/gains[2]
//
// where trailing [N] groups select array elements and a leading * on a
// segment marks a pointer dereference. Paths carry the information needed
// to derive a concrete memory location from a registered base: Factory
// turns a base location, a layout and a set of array definitions into
// concrete Variable instances, one per index combination.
//
// Locations form a small sum type: AbsoluteLocation is a fixed address,
// UnresolvedPointerLocation names a pointer variable whose value must be
// read first, and ResolvedPointerLocation is the same with every index of
// the pointer path fixed. Only absolute and resolved locations can back a
// Variable.
//
// The types in this package are plain data with no I/O; the extract package
// produces them from DWARF and the varmap package serializes them.
package varmodel
