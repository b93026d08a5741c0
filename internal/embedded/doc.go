// Package embedded models the scalar world of the target device: data
// types, byte ordering, enumerations and the codecs that convert between
// device memory bytes and host values.
//
// DataType values are wire-compatible with the device-side library: the
// high nibble carries the type family (signed/unsigned integer, float,
// boolean, complex float, pointer) and the low nibble a log2 size code.
// Canonical names ("sint32", "float64", "ptr32", ...) are what the varmap
// registry serializes.
//
// Codecs support integers, booleans, pointers and IEEE 754 float32/float64
// up to 64 bits wide, in both endiannesses. Wider scalars (sint128 and up)
// and complex floats can be described and registered but not decoded.
package embedded
