// Package ndarray provides a small n-dimensional float64 array used to carry
// volumes, point sets and mesh vertices through the combination engine.
//
// Arrays are stored as a flat row-major buffer in natural axis order: axis 0
// is the slowest-varying axis and the last axis is the fastest-varying one.
// This matches the flat volume layout used throughout volmath, where the voxel
// at (z, y, x) lives at z*height*width + y*width + x.
package ndarray

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape is returned when a shape is invalid or two shapes disagree.
	ErrShape = errors.New("ndarray: shape mismatch")

	// ErrDataLength is returned when a buffer does not match the product of its shape.
	ErrDataLength = errors.New("ndarray: data length does not match shape")

	// ErrAxis is returned for an axis outside [0, NDim).
	ErrAxis = errors.New("ndarray: axis out of range")

	// ErrRegion is returned when a clip region does not fit the array.
	ErrRegion = errors.New("ndarray: invalid clip region")
)

// Array is an immutable-by-convention n-dimensional array of float64.
// Operations never modify their receiver; they return new arrays.
type Array struct {
	shape   []int
	strides []int
	data    []float64
}

// Range is a half-open interval [Start, Stop) along one axis.
type Range struct {
	Start, Stop int
}

// Len returns the number of indices covered by r.
func (r Range) Len() int { return r.Stop - r.Start }

// New creates an array over data with the given shape. The buffer is used as
// is; callers must not modify it afterwards.
func New(shape []int, data []float64) (*Array, error) {
	n, err := sizeOf(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrDataLength, shape, n, len(data))
	}
	s := append([]int(nil), shape...)
	return &Array{shape: s, strides: stridesOf(s), data: data}, nil
}

// Zeros creates a zero-filled array of the given shape.
func Zeros(shape ...int) (*Array, error) {
	n, err := sizeOf(shape)
	if err != nil {
		return nil, err
	}
	return New(shape, make([]float64, n))
}

// FromDense copies a gonum matrix into a 2-D array of shape (rows, cols).
func FromDense(m mat.Matrix) *Array {
	r, c := m.Dims()
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data[i*c+j] = m.At(i, j)
		}
	}
	return &Array{shape: []int{r, c}, strides: []int{c, 1}, data: data}
}

// Dense copies a 2-D array into a new gonum dense matrix.
func (a *Array) Dense() (*mat.Dense, error) {
	if len(a.shape) != 2 {
		return nil, fmt.Errorf("%w: dense matrix needs 2 axes, got %d", ErrShape, len(a.shape))
	}
	if a.shape[0] == 0 || a.shape[1] == 0 {
		return nil, fmt.Errorf("%w: dense matrix cannot be empty, got %v", ErrShape, a.shape)
	}
	return mat.NewDense(a.shape[0], a.shape[1], append([]float64(nil), a.data...)), nil
}

// Shape returns a copy of the array's shape.
func (a *Array) Shape() []int { return append([]int(nil), a.shape...) }

// NDim returns the number of axes.
func (a *Array) NDim() int { return len(a.shape) }

// Dim returns the extent of axis i.
func (a *Array) Dim(i int) int { return a.shape[i] }

// Size returns the number of elements.
func (a *Array) Size() int { return len(a.data) }

// Data returns the backing buffer in row-major order. It is shared with the
// array and must be treated as read-only.
func (a *Array) Data() []float64 { return a.data }

// At returns the element at the given index.
func (a *Array) At(idx ...int) float64 {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: index %v has %d axes, array has %d", idx, len(idx), len(a.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %v out of range for shape %v", idx, a.shape))
		}
		off += v * a.strides[i]
	}
	return a.data[off]
}

// Clone returns a deep copy of a.
func (a *Array) Clone() *Array {
	return &Array{
		shape:   append([]int(nil), a.shape...),
		strides: append([]int(nil), a.strides...),
		data:    append([]float64(nil), a.data...),
	}
}

// SameShape reports whether a and b have identical shapes, rank included.
func SameShape(a, b *Array) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}

// Scale returns s*a.
func (a *Array) Scale(s float64) *Array {
	out := make([]float64, len(a.data))
	floats.ScaleTo(out, s, a.data)
	return a.withData(out)
}

// Map applies fn to every element.
func (a *Array) Map(fn func(float64) float64) *Array {
	out := make([]float64, len(a.data))
	for i, v := range a.data {
		out[i] = fn(v)
	}
	return a.withData(out)
}

// ZipWith applies fn elementwise to two arrays of identical shape.
func ZipWith(a, b *Array, fn func(x, y float64) float64) (*Array, error) {
	if !SameShape(a, b) {
		return nil, fmt.Errorf("%w: %v vs %v", ErrShape, a.shape, b.shape)
	}
	out := make([]float64, len(a.data))
	for i := range a.data {
		out[i] = fn(a.data[i], b.data[i])
	}
	return a.withData(out), nil
}

// Clip copies the sub-array selected by one range per axis.
func (a *Array) Clip(region []Range) (*Array, error) {
	if len(region) != len(a.shape) {
		return nil, fmt.Errorf("%w: %d ranges for %d axes", ErrRegion, len(region), len(a.shape))
	}
	shape := make([]int, len(region))
	for i, r := range region {
		if r.Start < 0 || r.Stop > a.shape[i] || r.Start > r.Stop {
			return nil, fmt.Errorf("%w: range [%d, %d) on axis %d of extent %d", ErrRegion, r.Start, r.Stop, i, a.shape[i])
		}
		shape[i] = r.Len()
	}

	out, err := Zeros(shape...)
	if err != nil {
		return nil, err
	}
	if out.Size() == 0 {
		return out, nil
	}

	// Walk every output index with an odometer and copy from the source offset.
	idx := make([]int, len(shape))
	for k := range out.data {
		off := 0
		for i, v := range idx {
			off += (region[i].Start + v) * a.strides[i]
		}
		out.data[k] = a.data[off]
		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < shape[i] {
				break
			}
			idx[i] = 0
		}
	}
	return out, nil
}

// Squeeze removes every axis of length 1. The buffer is shared since the
// element order does not change.
func (a *Array) Squeeze() *Array {
	shape := make([]int, 0, len(a.shape))
	for _, d := range a.shape {
		if d != 1 {
			shape = append(shape, d)
		}
	}
	return &Array{shape: shape, strides: stridesOf(shape), data: a.data}
}

// Reduce collapses axis by applying fn to every fiber along it.
// The result has one axis fewer than a.
func (a *Array) Reduce(axis int, fn func(fiber []float64) float64) (*Array, error) {
	if axis < 0 || axis >= len(a.shape) {
		return nil, fmt.Errorf("%w: axis %d for %d axes", ErrAxis, axis, len(a.shape))
	}
	outShape := make([]int, 0, len(a.shape)-1)
	outShape = append(outShape, a.shape[:axis]...)
	outShape = append(outShape, a.shape[axis+1:]...)

	outer := 1
	for _, d := range a.shape[:axis] {
		outer *= d
	}
	n := a.shape[axis]
	inner := a.strides[axis]

	out := make([]float64, outer*inner)
	fiber := make([]float64, n)
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*n*inner + in
			for k := 0; k < n; k++ {
				fiber[k] = a.data[base+k*inner]
			}
			out[o*inner+in] = fn(fiber)
		}
	}
	return &Array{shape: outShape, strides: stridesOf(outShape), data: out}, nil
}

func (a *Array) String() string {
	return fmt.Sprintf("ndarray%v", a.shape)
}

func (a *Array) withData(data []float64) *Array {
	return &Array{
		shape:   append([]int(nil), a.shape...),
		strides: append([]int(nil), a.strides...),
		data:    data,
	}
}

func sizeOf(shape []int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative extent in %v", ErrShape, shape)
		}
		n *= d
	}
	return n, nil
}

func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}
