package tensor

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// BinaryOp enumerates broadcasting element-wise arithmetic.
type BinaryOp int

// Supported binary operations.
const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpPow
)

// String returns the operation name.
func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpMul:
		return "Mul"
	case OpDiv:
		return "Div"
	case OpPow:
		return "Pow"
	}
	return "Binary"
}

func arith[T Numeric](op BinaryOp) func(x, y T) T {
	switch op {
	case OpAdd:
		return func(x, y T) T { return x + y }
	case OpSub:
		return func(x, y T) T { return x - y }
	case OpMul:
		return func(x, y T) T { return x * y }
	case OpDiv:
		return func(x, y T) T { return x / y }
	default:
		return func(x, y T) T { return T(math.Pow(float64(x), float64(y))) }
	}
}

func binaryLoop[T Numeric](out, a, b []T, aShape, bShape, outShape Shape, fn func(x, y T) T) {
	if aShape.Equal(outShape) && bShape.Equal(outShape) {
		for i := range out {
			out[i] = fn(a[i], b[i])
		}
		return
	}
	if len(b) == 1 && aShape.Equal(outShape) {
		y := b[0]
		for i := range out {
			out[i] = fn(a[i], y)
		}
		return
	}
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)
	for i := range out {
		out[i] = fn(a[flatIndex(i, outStrides, aStrides)], b[flatIndex(i, outStrides, bStrides)])
	}
}

// Binary applies op with NumPy broadcasting.
// When dst is a unique tensor whose shape and dtype match the result,
// the result is written into dst.
func Binary(op BinaryOp, a, b, dst *RawTensor) (*RawTensor, error) {
	if a == nil || b == nil {
		return nil, errors.Errorf("%s: input tensor is nil", op)
	}
	if a.dtype != b.dtype {
		return nil, errors.Errorf("%s: dtype mismatch %s vs %s", op, a.dtype, b.dtype)
	}
	outShape, _, err := BroadcastShapes(a.shape, b.shape)
	if err != nil {
		return nil, errors.WithMessage(err, op.String())
	}
	result, err := outputFor(dst, outShape, a.dtype)
	if err != nil {
		return nil, errors.WithMessage(err, op.String())
	}

	switch a.dtype {
	case Float32:
		fn := arith[float32](op)
		if op == OpPow {
			fn = math32.Pow
		}
		binaryLoop(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.shape, b.shape, outShape, fn)
	case Float64:
		binaryLoop(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.shape, b.shape, outShape, arith[float64](op))
	case Int32:
		binaryLoop(result.AsInt32(), a.AsInt32(), b.AsInt32(), a.shape, b.shape, outShape, arith[int32](op))
	case Int64:
		binaryLoop(result.AsInt64(), a.AsInt64(), b.AsInt64(), a.shape, b.shape, outShape, arith[int64](op))
	case Int8:
		binaryLoop(result.AsInt8(), a.AsInt8(), b.AsInt8(), a.shape, b.shape, outShape, arith[int8](op))
	case Uint8:
		binaryLoop(result.AsUint8(), a.AsUint8(), b.AsUint8(), a.shape, b.shape, outShape, arith[uint8](op))
	default:
		return nil, errors.Errorf("%s: unsupported dtype %v", op, a.dtype)
	}
	return result, nil
}

// UnaryOp enumerates element-wise functions of one tensor.
type UnaryOp int

// Supported unary operations.
const (
	OpNeg UnaryOp = iota
	OpAbs
	OpSqrt
	OpExp
	OpLog
	OpRelu
	OpSigmoid
	OpTanh
)

// String returns the operation name.
func (op UnaryOp) String() string {
	switch op {
	case OpNeg:
		return "Neg"
	case OpAbs:
		return "Abs"
	case OpSqrt:
		return "Sqrt"
	case OpExp:
		return "Exp"
	case OpLog:
		return "Log"
	case OpRelu:
		return "Relu"
	case OpSigmoid:
		return "Sigmoid"
	case OpTanh:
		return "Tanh"
	}
	return "Unary"
}

func unaryFloat32(op UnaryOp) func(float32) float32 {
	switch op {
	case OpNeg:
		return func(v float32) float32 { return -v }
	case OpAbs:
		return math32.Abs
	case OpSqrt:
		return math32.Sqrt
	case OpExp:
		return math32.Exp
	case OpLog:
		return math32.Log
	case OpRelu:
		return func(v float32) float32 {
			if v > 0 {
				return v
			}
			return 0
		}
	case OpSigmoid:
		return func(v float32) float32 { return 1 / (1 + math32.Exp(-v)) }
	case OpTanh:
		return math32.Tanh
	}
	return nil
}

func unaryFloat64(op UnaryOp) func(float64) float64 {
	switch op {
	case OpNeg:
		return func(v float64) float64 { return -v }
	case OpAbs:
		return math.Abs
	case OpSqrt:
		return math.Sqrt
	case OpExp:
		return math.Exp
	case OpLog:
		return math.Log
	case OpRelu:
		return func(v float64) float64 {
			if v > 0 {
				return v
			}
			return 0
		}
	case OpSigmoid:
		return func(v float64) float64 { return 1 / (1 + math.Exp(-v)) }
	case OpTanh:
		return math.Tanh
	}
	return nil
}

// unarySigned covers the operations that are closed over signed integers.
func unarySigned[T Signed](op UnaryOp) func(T) T {
	switch op {
	case OpNeg:
		return func(v T) T { return -v }
	case OpAbs:
		return func(v T) T {
			if v < 0 {
				return -v
			}
			return v
		}
	case OpRelu:
		return func(v T) T {
			if v > 0 {
				return v
			}
			return 0
		}
	}
	return nil
}

func mapLoop[T DType](out, in []T, fn func(T) T) {
	for i, v := range in {
		out[i] = fn(v)
	}
}

// Unary applies op element-wise, writing into dst when possible.
func Unary(op UnaryOp, x, dst *RawTensor) (*RawTensor, error) {
	if x == nil {
		return nil, errors.Errorf("%s: input tensor is nil", op)
	}
	result, err := outputFor(dst, x.shape, x.dtype)
	if err != nil {
		return nil, errors.WithMessage(err, op.String())
	}

	unsupported := func() error { return errors.Errorf("%s: unsupported dtype %v", op, x.dtype) }
	switch x.dtype {
	case Float32:
		mapLoop(result.AsFloat32(), x.AsFloat32(), unaryFloat32(op))
	case Float64:
		mapLoop(result.AsFloat64(), x.AsFloat64(), unaryFloat64(op))
	case Int32:
		fn := unarySigned[int32](op)
		if fn == nil {
			return nil, unsupported()
		}
		mapLoop(result.AsInt32(), x.AsInt32(), fn)
	case Int64:
		fn := unarySigned[int64](op)
		if fn == nil {
			return nil, unsupported()
		}
		mapLoop(result.AsInt64(), x.AsInt64(), fn)
	case Int8:
		fn := unarySigned[int8](op)
		if fn == nil {
			return nil, unsupported()
		}
		mapLoop(result.AsInt8(), x.AsInt8(), fn)
	default:
		return nil, unsupported()
	}
	return result, nil
}

// LeakyReLU applies max(x, alpha*x) element-wise.
func LeakyReLU(x *RawTensor, alpha float64, dst *RawTensor) (*RawTensor, error) {
	if x == nil {
		return nil, errors.New("LeakyRelu: input tensor is nil")
	}
	result, err := outputFor(dst, x.shape, x.dtype)
	if err != nil {
		return nil, errors.WithMessage(err, "LeakyRelu")
	}
	switch x.dtype {
	case Float32:
		a := float32(alpha)
		mapLoop(result.AsFloat32(), x.AsFloat32(), func(v float32) float32 {
			if v < 0 {
				return a * v
			}
			return v
		})
	case Float64:
		mapLoop(result.AsFloat64(), x.AsFloat64(), func(v float64) float64 {
			if v < 0 {
				return alpha * v
			}
			return v
		})
	default:
		return nil, errors.Errorf("LeakyRelu: unsupported dtype %v", x.dtype)
	}
	return result, nil
}

func clipLoop[T Numeric](out, in []T, lo, hi float64) {
	for i, v := range in {
		f := float64(v)
		switch {
		case f < lo:
			out[i] = T(lo)
		case f > hi:
			out[i] = T(hi)
		default:
			out[i] = v
		}
	}
}

// Clip limits values to [lo, hi]. Use math.Inf for an open bound.
func Clip(x *RawTensor, lo, hi float64, dst *RawTensor) (*RawTensor, error) {
	if x == nil {
		return nil, errors.New("Clip: input tensor is nil")
	}
	result, err := outputFor(dst, x.shape, x.dtype)
	if err != nil {
		return nil, errors.WithMessage(err, "Clip")
	}
	switch x.dtype {
	case Float32:
		clipLoop(result.AsFloat32(), x.AsFloat32(), lo, hi)
	case Float64:
		clipLoop(result.AsFloat64(), x.AsFloat64(), lo, hi)
	case Int32:
		clipLoop(result.AsInt32(), x.AsInt32(), lo, hi)
	case Int64:
		clipLoop(result.AsInt64(), x.AsInt64(), lo, hi)
	case Int8:
		clipLoop(result.AsInt8(), x.AsInt8(), lo, hi)
	case Uint8:
		clipLoop(result.AsUint8(), x.AsUint8(), lo, hi)
	default:
		return nil, errors.Errorf("Clip: unsupported dtype %v", x.dtype)
	}
	return result, nil
}
