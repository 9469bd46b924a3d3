//go:build !wasm

package operators

import (
	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/tensor"
)

// registerMathOps adds math operators to the registry.
func (r *Registry) registerMathOps() {
	for _, op := range []tensor.BinaryOp{tensor.OpAdd, tensor.OpSub, tensor.OpMul, tensor.OpDiv, tensor.OpPow} {
		r.mustRegister(binarySchema(op, 7))
	}
	for _, op := range []tensor.UnaryOp{tensor.OpNeg, tensor.OpAbs, tensor.OpSqrt, tensor.OpExp, tensor.OpLog} {
		r.mustRegister(unarySchema(op, 6))
	}
	r.mustRegister(
		Schema{OpType: "Sum", SinceVersion: 8, MinInputs: 1, MaxInputs: -1, Construct: newSum},
		Schema{OpType: "MatMul", SinceVersion: 1, MinInputs: 2, MaxInputs: 2, Construct: newMatMul},
		gemmSchema(7, 3),
		gemmSchema(11, 2),
	)
}

func binarySchema(op tensor.BinaryOp, since int64) Schema {
	return Schema{
		OpType:       op.String(),
		SinceVersion: since,
		MinInputs:    2,
		MaxInputs:    2,
		Construct: func(node *Node, _ Attrs) (Kernel, error) {
			return &FuncKernel{
				RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
					a, b := inputs[0], inputs[1]
					outShape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
					if err != nil {
						return nil, err
					}
					return one(tensor.Binary(op, a, b, reuseFor(ctx, inputs, outShape, 0, 1)))
				},
				ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
					return single(shapeinfer.Broadcast(in[0], in[1], node.Outputs[0]))
				},
				TypeFunc: sameTypes,
			}, nil
		},
	}
}

func unarySchema(op tensor.UnaryOp, since int64) Schema {
	return Schema{
		OpType:       op.String(),
		SinceVersion: since,
		MinInputs:    1,
		MaxInputs:    1,
		Construct: func(node *Node, _ Attrs) (Kernel, error) {
			return &FuncKernel{
				RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
					return one(tensor.Unary(op, inputs[0], ctx.Reusable(inputs, 0)))
				},
				ShapeFunc: sameShapeAs(node, 0),
				TypeFunc:  sameTypeAs(0, 1),
			}, nil
		},
	}
}

func newSum(node *Node, _ Attrs) (Kernel, error) {
	return &FuncKernel{
		RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			acc := inputs[0]
			if len(inputs) == 1 {
				return []*tensor.RawTensor{acc.Clone()}, nil
			}
			var err error
			for i, in := range inputs[1:] {
				var dst *tensor.RawTensor
				if i == 0 {
					outShape, _, err := tensor.BroadcastShapes(acc.Shape(), in.Shape())
					if err != nil {
						return nil, err
					}
					dst = reuseFor(ctx, inputs, outShape, 0, 1)
				} else {
					// acc is a fresh intermediate owned by this kernel.
					dst = acc
				}
				if acc, err = tensor.Binary(tensor.OpAdd, acc, in, dst); err != nil {
					return nil, err
				}
			}
			return []*tensor.RawTensor{acc}, nil
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			return single(shapeinfer.BroadcastAll(node.Outputs[0], in...))
		},
		TypeFunc: sameTypes,
	}, nil
}

func newMatMul(node *Node, _ Attrs) (Kernel, error) {
	return &FuncKernel{
		RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.MatMul(inputs[0], inputs[1], ctx.Parallel))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			return single(matmulShape(in[0], in[1], node.Outputs[0]))
		},
		TypeFunc: sameTypes,
	}, nil
}

// unifyDims checks that two dimensions can denote the same size.
func unifyDims(res *shapeinfer.ShapeResult, a, b shapeinfer.Dim) error {
	switch {
	case a == b:
		return nil
	case !a.IsVariable() && !b.IsVariable():
		return shapeErrorf("dimension %s does not match %s", a, b)
	case a.IsVariable() && !b.IsVariable():
		_, err := res.Constraints.Add(a.Name(), b.Value())
		return err
	case !a.IsVariable() && b.IsVariable():
		_, err := res.Constraints.Add(b.Name(), a.Value())
		return err
	}
	return nil
}

func matmulShape(a, b *shapeinfer.ShapeResult, name string) (*shapeinfer.ShapeResult, error) {
	if a.DType != b.DType && a.DType != tensor.Undefined && b.DType != tensor.Undefined {
		return nil, shapeErrorf("MatMul: dtype mismatch %s vs %s", a, b)
	}
	dtype := a.DType
	if dtype == tensor.Undefined {
		dtype = b.DType
	}
	if a.UnknownRank || b.UnknownRank {
		return shapeinfer.NewUnknownRank(name, dtype), nil
	}
	ad, bd := a.Dims, b.Dims
	if len(ad) == 0 || len(bd) == 0 {
		return nil, shapeErrorf("MatMul: scalar operands %s and %s", a, b)
	}
	if len(ad) == 1 {
		ad = []shapeinfer.Dim{shapeinfer.Concrete(1), ad[0]}
	}
	if len(bd) == 1 {
		bd = []shapeinfer.Dim{bd[0], shapeinfer.Concrete(1)}
	}

	res := shapeinfer.New(name, dtype)
	for _, src := range []*shapeinfer.ShapeResult{a, b} {
		if _, err := res.Constraints.Merge(src.Constraints); err != nil {
			return nil, err
		}
	}
	if err := unifyDims(res, ad[len(ad)-1], bd[len(bd)-2]); err != nil {
		return nil, shapeErrorf("MatMul %s @ %s: %v", a, b, err)
	}

	aBatch, bBatch := ad[:len(ad)-2], bd[:len(bd)-2]
	for len(aBatch) < len(bBatch) {
		aBatch = append([]shapeinfer.Dim{shapeinfer.Concrete(1)}, aBatch...)
	}
	for len(bBatch) < len(aBatch) {
		bBatch = append([]shapeinfer.Dim{shapeinfer.Concrete(1)}, bBatch...)
	}
	var dims []shapeinfer.Dim
	if len(aBatch) > 0 {
		batch, err := shapeinfer.Broadcast(
			shapeinfer.New("a", dtype, aBatch...), shapeinfer.New("b", dtype, bBatch...), name)
		if err != nil {
			return nil, err
		}
		if _, err := res.Constraints.Merge(batch.Constraints); err != nil {
			return nil, err
		}
		dims = append(dims, batch.Dims...)
	}
	if len(a.Dims) > 1 {
		dims = append(dims, ad[len(ad)-2])
	}
	if len(b.Dims) > 1 {
		dims = append(dims, bd[len(bd)-1])
	}
	res.Dims = dims
	return res, nil
}

func gemmSchema(since int64, minInputs int) Schema {
	return Schema{
		OpType:       "Gemm",
		SinceVersion: since,
		MinInputs:    minInputs,
		MaxInputs:    3,
		Attributes: []AttrSpec{
			Optional(FloatAttr("alpha", 1)),
			Optional(FloatAttr("beta", 1)),
			Optional(IntAttr("transA", 0)),
			Optional(IntAttr("transB", 0)),
		},
		Construct: newGemm,
	}
}

func newGemm(node *Node, attrs Attrs) (Kernel, error) {
	transA, err := attrs.Flag("transA")
	if err != nil {
		return nil, err
	}
	transB, err := attrs.Flag("transB")
	if err != nil {
		return nil, err
	}
	alpha, beta := float64(attrs.Float("alpha")), float64(attrs.Float("beta"))
	return &FuncKernel{
		RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.Gemm(inputs[0], inputs[1], optionalInput(inputs, 2), alpha, beta, transA, transB, ctx.Parallel))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			a, b := in[0], in[1]
			if a.UnknownRank || b.UnknownRank {
				return single(shapeinfer.NewUnknownRank(node.Outputs[0], a.DType), nil)
			}
			if len(a.Dims) != 2 || len(b.Dims) != 2 {
				return nil, shapeErrorf("Gemm: A and B must be 2D, got %s and %s", a, b)
			}
			m, k := a.Dims[0], a.Dims[1]
			if transA {
				m, k = k, m
			}
			kb, n := b.Dims[0], b.Dims[1]
			if transB {
				kb, n = n, kb
			}
			res := shapeinfer.New(node.Outputs[0], a.DType, m, n)
			if err := unifyDims(res, k, kb); err != nil {
				return nil, shapeErrorf("Gemm: %v", err)
			}
			return single(res, nil)
		},
		TypeFunc: sameTypes,
	}, nil
}
