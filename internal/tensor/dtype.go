// Package tensor provides the dense CPU tensor used by the graph runtime.
package tensor

import "github.com/x448/float16"

// DType is a constraint for supported tensor element types.
type DType interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~int8 | ~uint8 | ~bool | float16.Float16
}

// Numeric is the subset of DType that supports arithmetic.
type Numeric interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~int8 | ~uint8
}

// Signed is the subset of Numeric that supports negation.
type Signed interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~int8
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
	Int8
	Float16
)

// Undefined marks an element type that is not known yet.
const Undefined DataType = -1

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16:
		return 2
	case Uint8, Bool, Int8:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	case Int8:
		return "int8"
	case Float16:
		return "float16"
	case Undefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// IsFloat reports whether dt is a floating point type.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64 || dt == Float16
}

// IsNumeric reports whether arithmetic kernels accept dt.
func (dt DataType) IsNumeric() bool {
	switch dt {
	case Float32, Float64, Int32, Int64, Int8, Uint8:
		return true
	}
	return false
}

// inferDataType infers DataType from a generic type T.
func inferDataType[T DType](dummy T) DataType {
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case bool:
		return Bool
	case int8:
		return Int8
	case float16.Float16:
		return Float16
	default:
		panic("unsupported type")
	}
}

// DataTypeOf returns the DataType matching T.
func DataTypeOf[T DType]() DataType {
	var zero T
	return inferDataType(zero)
}
