package tensor

import (
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

func convertSlice[S, D Numeric](in []S, out []D) {
	for i, v := range in {
		out[i] = D(v)
	}
}

func nonZero[S Numeric](in []S, out []bool) {
	for i, v := range in {
		out[i] = v != 0
	}
}

// castInto converts every element of src into out.
// src must not be Float16.
func castInto[D Numeric](src *RawTensor, out []D) {
	switch src.dtype {
	case Float32:
		convertSlice(src.AsFloat32(), out)
	case Float64:
		convertSlice(src.AsFloat64(), out)
	case Int32:
		convertSlice(src.AsInt32(), out)
	case Int64:
		convertSlice(src.AsInt64(), out)
	case Int8:
		convertSlice(src.AsInt8(), out)
	case Uint8:
		convertSlice(src.AsUint8(), out)
	case Bool:
		for i, v := range src.AsBool() {
			if v {
				out[i] = 1
			} else {
				out[i] = 0
			}
		}
	}
}

func boolFrom(src *RawTensor, out []bool) {
	switch src.dtype {
	case Float32:
		nonZero(src.AsFloat32(), out)
	case Float64:
		nonZero(src.AsFloat64(), out)
	case Int32:
		nonZero(src.AsInt32(), out)
	case Int64:
		nonZero(src.AsInt64(), out)
	case Int8:
		nonZero(src.AsInt8(), out)
	case Uint8:
		nonZero(src.AsUint8(), out)
	case Bool:
		copy(out, src.AsBool())
	}
}

func float16ToFloat32(x *RawTensor) *RawTensor {
	out := MustNewRaw(x.shape, Float32)
	dst := out.AsFloat32()
	for i, v := range x.AsFloat16() {
		dst[i] = v.Float32()
	}
	return out
}

func float32ToFloat16(x *RawTensor) *RawTensor {
	out := MustNewRaw(x.shape, Float16)
	dst := out.AsFloat16()
	for i, v := range x.AsFloat32() {
		dst[i] = float16.Fromfloat32(v)
	}
	return out
}

// Cast converts x to dtype. Casting to the same dtype returns a copy.
func Cast(x *RawTensor, dtype DataType) (*RawTensor, error) {
	if x == nil {
		return nil, errors.New("Cast: input tensor is nil")
	}
	if x.dtype == dtype {
		return x.Copy(), nil
	}
	src := x
	if src.dtype == Float16 {
		src = float16ToFloat32(x)
		if dtype == Float32 {
			return src, nil
		}
	}
	if dtype == Float16 {
		f32, err := Cast(src, Float32)
		if err != nil {
			return nil, err
		}
		return float32ToFloat16(f32), nil
	}

	result, err := NewRaw(x.shape, dtype)
	if err != nil {
		return nil, errors.WithMessage(err, "Cast")
	}
	switch dtype {
	case Float32:
		castInto(src, result.AsFloat32())
	case Float64:
		castInto(src, result.AsFloat64())
	case Int32:
		castInto(src, result.AsInt32())
	case Int64:
		castInto(src, result.AsInt64())
	case Int8:
		castInto(src, result.AsInt8())
	case Uint8:
		castInto(src, result.AsUint8())
	case Bool:
		boolFrom(src, result.AsBool())
	default:
		return nil, errors.Errorf("Cast: unsupported target dtype %v", dtype)
	}
	return result, nil
}

// Float64s returns a converted copy of the tensor data.
func Float64s(x *RawTensor) []float64 {
	src := x
	if src.dtype == Float16 {
		src = float16ToFloat32(x)
	}
	out := make([]float64, x.NumElements())
	castInto(src, out)
	return out
}

// Int64s returns a converted copy of the tensor data.
func Int64s(x *RawTensor) []int64 {
	src := x
	if src.dtype == Float16 {
		src = float16ToFloat32(x)
	}
	out := make([]int64, x.NumElements())
	castInto(src, out)
	return out
}
