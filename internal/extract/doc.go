// Package extract reads the DWARF debug info of an ELF firmware image and
// builds a varmap address registry from it.
//
// The extractor walks every compile unit twice: once to map typedefs to the
// anonymous types they name, once to find variable entries. Types, structs,
// arrays and enums are only read when a variable uses them. Statically
// allocated variables become registry entries addressed by a display path:
//
//	/global/counter                  external symbol
//	/static/main.c/state             compile unit local
//	/global/matrix/matrix            array, elements grouped one level down
//	/global/*head/payload            reached through the pointer "head"
//
// Compiler quirks of GCC, Clang, TI cl2000 and Tasking are handled per
// compile unit: linkage name attributes, 16-bit chars on the C28x, mangled
// enumerator names, and synthetic scope segments.
//
// Problems with individual debug entries do not stop a scan; they are
// collected in a ParseErrors and the entry is skipped.
package extract
