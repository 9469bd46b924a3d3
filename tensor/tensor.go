// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types consumed and produced by graph execution.
//
// The package defines:
//   - RawTensor: dense, row-major tensor with reference-counted storage
//   - Shape, DataType: core type definitions
//   - Creation helpers: NewRaw, FromSlice, Scalar, Int64Vector
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	data := x.AsFloat32()
package tensor

import (
	"github.com/born-ml/graphrt/internal/tensor"
)

// Type aliases for public API

// DType is a constraint for tensor element types.
// Supported types: float32, float64, float16, int32, int64, int8, uint8, bool.
type DType = tensor.DType

// DataType represents the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32   DataType = tensor.Float32
	Float64   DataType = tensor.Float64
	Float16   DataType = tensor.Float16
	Int32     DataType = tensor.Int32
	Int64     DataType = tensor.Int64
	Int8      DataType = tensor.Int8
	Uint8     DataType = tensor.Uint8
	Bool      DataType = tensor.Bool
	Undefined DataType = tensor.Undefined
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Summary holds the shape, type and value range of a tensor.
type Summary = tensor.Summary

// Creation functions

// NewRaw creates a zero-filled tensor with the given shape and dtype.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// FromSlice creates a tensor holding a copy of data.
//
// Example:
//
//	x, err := tensor.FromSlice([]int64{1, 2, 3}, tensor.Shape{3})
func FromSlice[T DType](data []T, shape Shape) (*RawTensor, error) {
	return tensor.FromSlice(data, shape)
}

// Scalar creates a rank-0 tensor.
func Scalar[T DType](v T) *RawTensor {
	return tensor.Scalar(v)
}

// Int64Vector creates a 1D int64 tensor, the form used for shapes and axes.
func Int64Vector(values []int64) *RawTensor {
	return tensor.Int64Vector(values)
}

// Full creates a tensor of the given dtype with every element set to value.
func Full(shape Shape, value float64, dtype DataType) (*RawTensor, error) {
	return tensor.FullRaw(shape, value, dtype)
}

// Values returns the elements of r as a typed slice sharing its storage.
func Values[T DType](r *RawTensor) []T {
	return tensor.Values[T](r)
}

// Utility functions

// Cast converts a tensor to another element type.
func Cast(x *RawTensor, dtype DataType) (*RawTensor, error) {
	return tensor.Cast(x, dtype)
}

// Float64s returns the elements of any numeric tensor converted to float64.
func Float64s(x *RawTensor) []float64 {
	return tensor.Float64s(x)
}

// BroadcastShapes computes the broadcast shape for two shapes following NumPy broadcasting rules.
// Returns the resulting shape and whether the shapes differ.
//
// Example:
//
//	resultShape, _, err := tensor.BroadcastShapes(
//	    tensor.Shape{3, 1},
//	    tensor.Shape{3, 4},
//	)
//	// resultShape = [3, 4]
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}

// Summarize computes the shape, dtype, minimum and maximum of x.
func Summarize(x *RawTensor) Summary {
	return tensor.Summarize(x)
}

// Preview renders at most limit elements of x.
func Preview(x *RawTensor, limit int) string {
	return tensor.Preview(x, limit)
}
