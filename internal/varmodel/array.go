package varmodel

import (
	"fmt"

	"github.com/muurk/probemap/internal/embedded"
)

// Array is the shape of an N-dimensional firmware array: dimensions plus the
// byte size of one element. It is immutable once built; all methods are pure
// functions over that state.
type Array struct {
	dims            []int
	multipliers     []int
	elementByteSize int
	elementTypeName string
}

// NewArray builds an array shape. Every dimension must be positive and at
// least one dimension must be given.
func NewArray(dims []int, elementByteSize int, elementTypeName string) (*Array, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: no dimensions set", ErrInvalidShape)
	}
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("%w: dimension %d", ErrInvalidShape, d)
		}
	}

	a := &Array{
		dims:            append([]int(nil), dims...),
		multipliers:     make([]int, len(dims)),
		elementByteSize: elementByteSize,
		elementTypeName: elementTypeName,
	}
	// Row-major strides: multiplier[i] = product of all trailing dims.
	stride := 1
	for i := len(dims) - 1; i >= 0; i-- {
		a.multipliers[i] = stride
		stride *= dims[i]
	}
	return a, nil
}

// Dims returns a copy of the dimensions.
func (a *Array) Dims() []int {
	return append([]int(nil), a.dims...)
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int {
	return len(a.dims)
}

// ElementByteSize returns the size of a single element in bytes.
func (a *Array) ElementByteSize() int {
	return a.elementByteSize
}

// ElementTypeName returns the binary name of the element type, if known.
func (a *Array) ElementTypeName() string {
	return a.elementTypeName
}

// ElementCount returns the total number of elements in the array.
func (a *Array) ElementCount() int {
	n := 1
	for _, d := range a.dims {
		n *= d
	}
	return n
}

// TotalByteSize returns the total size of the array in bytes.
func (a *Array) TotalByteSize() int {
	return a.ElementCount() * a.elementByteSize
}

// PositionOf returns the row-major linear index addressing the element at
// the given N-dimensional position.
func (a *Array) PositionOf(pos []int) (int, error) {
	if len(pos) != len(a.dims) {
		return 0, fmt.Errorf("%w: got %d indices for rank %d", ErrShapeMismatch, len(pos), len(a.dims))
	}
	index := 0
	for i, p := range pos {
		if p < 0 || p >= a.dims[i] {
			return 0, fmt.Errorf("%w: index %d at dimension %d (size %d)", ErrIndexOutOfBounds, p, i, a.dims[i])
		}
		index += p * a.multipliers[i]
	}
	return index, nil
}

// BytePositionOf returns the byte offset of the element at the given
// N-dimensional position, relative to the start of the array.
func (a *Array) BytePositionOf(pos []int) (int, error) {
	index, err := a.PositionOf(pos)
	if err != nil {
		return 0, err
	}
	return index * a.elementByteSize, nil
}

// Copy returns an independent copy of the shape.
func (a *Array) Copy() *Array {
	out := *a
	out.dims = append([]int(nil), a.dims...)
	out.multipliers = append([]int(nil), a.multipliers...)
	return &out
}

// ArrayElement is the element type of a TypedArray: a scalar, a composite,
// or a pointer.
type ArrayElement interface {
	arrayElement()
}

// ScalarElement is an array element of a base data type.
type ScalarElement struct {
	Type embedded.DataType
	Enum *embedded.Enum
}

// StructElement is an array element of composite type.
type StructElement struct {
	Struct *Struct
}

// PointerElement is an array element that is itself a pointer cell.
type PointerElement struct {
	Pointer *Pointer
}

func (ScalarElement) arrayElement()  {}
func (StructElement) arrayElement()  {}
func (PointerElement) arrayElement() {}

// TypedArray couples an array shape with its element type. The extractor
// builds these while walking debug info; the registry only ever stores the
// untyped shape.
type TypedArray struct {
	*Array
	Element ArrayElement
}
