package tensor

import (
	"strings"

	"github.com/pkg/errors"
)

// ReduceOp enumerates reductions over axes.
type ReduceOp int

// Supported reductions.
const (
	ReduceSum ReduceOp = iota
	ReduceMean
	ReduceMax
	ReduceMin
	ReduceProd
)

var reduceNames = [...]string{"ReduceSum", "ReduceMean", "ReduceMax", "ReduceMin", "ReduceProd"}

// String returns the ONNX operator name of the reduction.
func (op ReduceOp) String() string {
	if op < 0 || int(op) >= len(reduceNames) {
		return "Reduce"
	}
	return reduceNames[op]
}

// ParseReduceOp maps an ONNX operator name to a ReduceOp.
func ParseReduceOp(name string) (ReduceOp, bool) {
	for i, n := range reduceNames {
		if strings.EqualFold(n, name) {
			return ReduceOp(i), true
		}
	}
	return 0, false
}

// ReduceShape computes the output shape of a reduction.
// Empty axes reduce every dimension.
func ReduceShape(shape Shape, axes []int, keepDims bool) (Shape, []bool, error) {
	reduced := make([]bool, len(shape))
	if len(axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	} else {
		norm, err := NormalizeAxes(axes, len(shape))
		if err != nil {
			return nil, nil, err
		}
		for _, a := range norm {
			reduced[a] = true
		}
	}
	out := make(Shape, 0, len(shape))
	for i, d := range shape {
		switch {
		case !reduced[i]:
			out = append(out, d)
		case keepDims:
			out = append(out, 1)
		}
	}
	return out, reduced, nil
}

func reduceLoop[T Numeric](in, out []T, inShape Shape, reduced []bool, op ReduceOp) {
	keptShape := make(Shape, len(inShape))
	for i, d := range inShape {
		keptShape[i] = d
		if reduced[i] {
			keptShape[i] = 1
		}
	}
	inStrides := inShape.ComputeStrides()
	outStrides := keptShape.ComputeStrides()
	for i := range outStrides {
		if reduced[i] {
			outStrides[i] = 0
		}
	}

	seen := make([]bool, len(out))
	if op == ReduceProd {
		fill(out, 1)
	}
	for i, v := range in {
		o := flatIndex(i, inStrides, outStrides)
		switch op {
		case ReduceSum, ReduceMean:
			out[o] += v
		case ReduceProd:
			out[o] *= v
		case ReduceMax:
			if !seen[o] || v > out[o] {
				out[o] = v
			}
		case ReduceMin:
			if !seen[o] || v < out[o] {
				out[o] = v
			}
		}
		seen[o] = true
	}
	if op == ReduceMean && len(out) > 0 {
		count := len(in) / len(out)
		if count > 0 {
			for i := range out {
				out[i] /= T(count)
			}
		}
	}
}

// Reduce applies op over axes of x.
func Reduce(op ReduceOp, x *RawTensor, axes []int, keepDims bool) (*RawTensor, error) {
	if x == nil {
		return nil, errors.Errorf("%s: input tensor is nil", op)
	}
	outShape, reduced, err := ReduceShape(x.shape, axes, keepDims)
	if err != nil {
		return nil, errors.WithMessage(err, op.String())
	}
	result, err := NewRaw(outShape, x.dtype)
	if err != nil {
		return nil, errors.WithMessage(err, op.String())
	}
	switch x.dtype {
	case Float32:
		reduceLoop(x.AsFloat32(), result.AsFloat32(), x.shape, reduced, op)
	case Float64:
		reduceLoop(x.AsFloat64(), result.AsFloat64(), x.shape, reduced, op)
	case Int32:
		reduceLoop(x.AsInt32(), result.AsInt32(), x.shape, reduced, op)
	case Int64:
		reduceLoop(x.AsInt64(), result.AsInt64(), x.shape, reduced, op)
	case Int8:
		reduceLoop(x.AsInt8(), result.AsInt8(), x.shape, reduced, op)
	case Uint8:
		reduceLoop(x.AsUint8(), result.AsUint8(), x.shape, reduced, op)
	default:
		return nil, errors.Errorf("%s: unsupported dtype %v", op, x.dtype)
	}
	return result, nil
}
