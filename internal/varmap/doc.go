// Package varmap implements the serialized address registry of a firmware
// image. The extract package fills a VarMap while walking DWARF debug info;
// the result is written as JSON and later reloaded without the firmware
// file at hand.
//
// The format has four top-level keys. "endianness" records the target byte
// order, "type_map" assigns a compact numeric id to every binary type name,
// "enums" is a shared enumeration table, and "variables" maps full variable
// paths to entries holding the type id, the address, an optional bitfield
// window, an optional enum reference and the array definitions along the
// path. Variables that live behind a pointer carry a * marker on the
// pointer segment of their key; their addr field holds the byte offset past
// the dereference point and the pointer's own path is recovered from the
// key itself.
package varmap
