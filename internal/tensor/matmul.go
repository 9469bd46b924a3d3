package tensor

import (
	"github.com/pkg/errors"

	"github.com/born-ml/graphrt/internal/parallel"
)

// matmulRow computes one row of C = A @ B for a single (M, K) @ (K, N) pair.
func matmulRow[T Numeric](c, a, b []T, row, k, n int) {
	out := c[row*n : (row+1)*n]
	for j := range out {
		out[j] = 0
	}
	aRow := a[row*k : (row+1)*k]
	for p, av := range aRow {
		if av == 0 {
			continue
		}
		bRow := b[p*n : (p+1)*n]
		for j, bv := range bRow {
			out[j] += av * bv
		}
	}
}

type batchedMatMul struct {
	m, k, n    int
	batches    int
	outStrides []int
	aStrides   []int
	bStrides   []int
}

func matmulLoop[T Numeric](c, a, b []T, plan batchedMatMul, cfg parallel.Config) {
	mk, kn, mn := plan.m*plan.k, plan.k*plan.n, plan.m*plan.n
	parallel.For(plan.batches*plan.m, func(r int) {
		batch, row := r/plan.m, r%plan.m
		aOff, bOff := batch, batch
		if len(plan.outStrides) > 0 {
			aOff = flatIndex(batch, plan.outStrides, plan.aStrides)
			bOff = flatIndex(batch, plan.outStrides, plan.bStrides)
		}
		matmulRow(c[batch*mn:(batch+1)*mn], a[aOff*mk:(aOff+1)*mk], b[bOff*kn:(bOff+1)*kn], row, plan.k, plan.n)
	}, cfg)
}

// MatMul computes the NumPy matrix product of a and b.
// Rank-1 operands are promoted and the added axis removed from the result.
// Leading batch dimensions broadcast.
func MatMul(a, b *RawTensor, cfg parallel.Config) (*RawTensor, error) {
	if a == nil || b == nil {
		return nil, errors.New("MatMul: input tensor is nil")
	}
	if a.dtype != b.dtype {
		return nil, errors.Errorf("MatMul: dtype mismatch %s vs %s", a.dtype, b.dtype)
	}
	outShape, err := MatMulShape(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	aShape, bShape := a.shape, b.shape
	if len(aShape) == 1 {
		aShape = Shape{1, aShape[0]}
	}
	if len(bShape) == 1 {
		bShape = Shape{bShape[0], 1}
	}
	aBatch, bBatch := aShape[:len(aShape)-2], bShape[:len(bShape)-2]
	batchShape, _, err := BroadcastShapes(aBatch, bBatch)
	if err != nil {
		return nil, errors.WithMessage(err, "MatMul")
	}
	plan := batchedMatMul{
		m:       aShape[len(aShape)-2],
		k:       aShape[len(aShape)-1],
		n:       bShape[len(bShape)-1],
		batches: batchShape.NumElements(),
	}
	if len(batchShape) > 0 && !(aBatch.Equal(batchShape) && bBatch.Equal(batchShape)) {
		plan.outStrides = batchShape.ComputeStrides()
		plan.aStrides = broadcastStrides(aBatch, batchShape)
		plan.bStrides = broadcastStrides(bBatch, batchShape)
	}

	result, err := NewRaw(outShape, a.dtype)
	if err != nil {
		return nil, errors.WithMessage(err, "MatMul")
	}
	if result.NumElements() == 0 {
		return result, nil
	}
	switch a.dtype {
	case Float32:
		matmulLoop(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), plan, cfg)
	case Float64:
		matmulLoop(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), plan, cfg)
	case Int32:
		matmulLoop(result.AsInt32(), a.AsInt32(), b.AsInt32(), plan, cfg)
	case Int64:
		matmulLoop(result.AsInt64(), a.AsInt64(), b.AsInt64(), plan, cfg)
	default:
		return nil, errors.Errorf("MatMul: unsupported dtype %s", a.dtype)
	}
	return result, nil
}

// MatMulShape computes the output shape of MatMul without evaluating it.
func MatMulShape(a, b Shape) (Shape, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, errors.Errorf("MatMul: scalar operands are not allowed, got %v @ %v", a, b)
	}
	aShape, bShape := a, b
	if len(a) == 1 {
		aShape = Shape{1, a[0]}
	}
	if len(b) == 1 {
		bShape = Shape{b[0], 1}
	}
	k, kAlt := aShape[len(aShape)-1], bShape[len(bShape)-2]
	if k != kAlt {
		return nil, errors.Errorf("MatMul: shape mismatch %v @ %v", a, b)
	}
	batch, _, err := BroadcastShapes(aShape[:len(aShape)-2], bShape[:len(bShape)-2])
	if err != nil {
		return nil, errors.WithMessage(err, "MatMul")
	}
	out := batch.Clone()
	if len(a) > 1 {
		out = append(out, aShape[len(aShape)-2])
	}
	if len(b) > 1 {
		out = append(out, bShape[len(bShape)-1])
	}
	return out, nil
}

// Gemm computes alpha * A' @ B' + beta * C for 2D A and B,
// where ' is an optional transpose. c may be nil.
func Gemm(a, b, c *RawTensor, alpha, beta float64, transA, transB bool, cfg parallel.Config) (*RawTensor, error) {
	if len(a.shape) != 2 || len(b.shape) != 2 {
		return nil, errors.Errorf("Gemm: A and B must be 2D, got %v and %v", a.shape, b.shape)
	}
	var err error
	if transA {
		if a, err = Transpose(a, nil); err != nil {
			return nil, err
		}
	}
	if transB {
		if b, err = Transpose(b, nil); err != nil {
			return nil, err
		}
	}
	y, err := MatMul(a, b, cfg)
	if err != nil {
		return nil, errors.WithMessage(err, "Gemm")
	}
	if alpha != 1 {
		s, err := FullRaw(Shape{}, alpha, y.dtype)
		if err != nil {
			return nil, err
		}
		if y, err = Binary(OpMul, y, s, y); err != nil {
			return nil, err
		}
	}
	if c == nil || beta == 0 {
		return y, nil
	}
	if beta != 1 {
		s, err := FullRaw(Shape{}, beta, c.dtype)
		if err != nil {
			return nil, err
		}
		if c, err = Binary(OpMul, c, s, nil); err != nil {
			return nil, err
		}
	}
	out, err := Binary(OpAdd, y, c, y)
	if err != nil {
		return nil, errors.WithMessage(err, "Gemm")
	}
	if !out.shape.Equal(y.shape) {
		return nil, errors.Errorf("Gemm: C of shape %v does not broadcast to %v", c.shape, y.shape)
	}
	return out, nil
}
