package tensor

import (
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

func fill[T DType](data []T, v T) {
	for i := range data {
		data[i] = v
	}
}

// FullRaw creates a RawTensor filled with a constant value.
func FullRaw(shape Shape, value float64, dtype DataType) (*RawTensor, error) {
	result, err := NewRaw(shape, dtype)
	if err != nil {
		return nil, errors.WithMessage(err, "Full")
	}

	switch dtype {
	case Float32:
		fill(result.AsFloat32(), float32(value))
	case Float64:
		fill(result.AsFloat64(), value)
	case Float16:
		fill(result.AsFloat16(), float16.Fromfloat32(float32(value)))
	case Int32:
		fill(result.AsInt32(), int32(value))
	case Int64:
		fill(result.AsInt64(), int64(value))
	case Int8:
		fill(result.AsInt8(), int8(value))
	case Uint8:
		fill(result.AsUint8(), uint8(value))
	case Bool:
		fill(result.AsBool(), value != 0)
	default:
		return nil, errors.Errorf("Full: unsupported dtype %v", dtype)
	}
	return result, nil
}

// FromFloat64s builds a tensor of the given dtype from float64 values.
func FromFloat64s(values []float64, shape Shape, dtype DataType) (*RawTensor, error) {
	f, err := FromSlice(values, shape)
	if err != nil {
		return nil, err
	}
	if dtype == Float64 {
		return f, nil
	}
	return Cast(f, dtype)
}

// Int64Vector creates a rank-1 int64 tensor.
func Int64Vector(values []int64) *RawTensor {
	r := MustNewRaw(Shape{len(values)}, Int64)
	copy(r.AsInt64(), values)
	return r
}
