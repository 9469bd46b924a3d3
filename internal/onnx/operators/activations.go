//go:build !wasm

package operators

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/tensor"
)

// registerActivations adds activation functions to the registry.
func (r *Registry) registerActivations() {
	for _, op := range []tensor.UnaryOp{tensor.OpRelu, tensor.OpSigmoid, tensor.OpTanh} {
		r.mustRegister(unarySchema(op, 6))
	}
	r.mustRegister(
		Schema{
			OpType: "LeakyRelu", SinceVersion: 6, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Optional(FloatAttr("alpha", 0.01))},
			Construct:  newLeakyRelu,
		},
		Schema{
			OpType: "Softmax", SinceVersion: 1, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Optional(IntAttr("axis", 1))},
			Construct:  newSoftmaxCoerced,
		},
		Schema{
			OpType: "Softmax", SinceVersion: 13, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Optional(IntAttr("axis", -1))},
			Construct:  newSoftmax,
		},
		Schema{
			OpType: "Clip", SinceVersion: 6, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{
				Optional(FloatAttr("min", -math.MaxFloat32)),
				Optional(FloatAttr("max", math.MaxFloat32)),
			},
			Construct: newClipAttrs,
		},
		Schema{OpType: "Clip", SinceVersion: 11, MinInputs: 1, MaxInputs: 3, Construct: newClipInputs},
	)
}

func newLeakyRelu(node *Node, attrs Attrs) (Kernel, error) {
	alpha := float64(attrs.Float("alpha"))
	return &FuncKernel{
		RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.LeakyReLU(inputs[0], alpha, ctx.Reusable(inputs, 0)))
		},
		ShapeFunc: sameShapeAs(node, 0),
		TypeFunc:  sameTypeAs(0, 1),
	}, nil
}

func newSoftmax(node *Node, attrs Attrs) (Kernel, error) {
	axis := int(attrs.Int("axis"))
	return &FuncKernel{
		RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.Softmax(inputs[0], axis, ctx.Reusable(inputs, 0)))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, v []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			if rank, err := in[0].NDims(); err == nil {
				if _, err := tensor.NormalizeAxis(axis, rank); err != nil {
					return nil, shapeErrorf("Softmax: %v", err)
				}
			}
			return sameShapeAs(node, 0)(in, v)
		},
		TypeFunc: sameTypeAs(0, 1),
	}, nil
}

// newSoftmaxCoerced implements Softmax before opset 13, which normalizes over
// every dimension from axis onwards.
func newSoftmaxCoerced(node *Node, attrs Attrs) (Kernel, error) {
	axis := int(attrs.Int("axis"))
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			x := inputs[0]
			flat, err := tensor.Flatten(x, axis)
			if err != nil {
				return nil, err
			}
			y, err := tensor.Softmax(flat, 1, nil)
			if err != nil {
				return nil, err
			}
			return one(y.WithShape(x.Shape()))
		},
		ShapeFunc: sameShapeAs(node, 0),
		TypeFunc:  sameTypeAs(0, 1),
	}, nil
}

func newClipAttrs(node *Node, attrs Attrs) (Kernel, error) {
	lo, hi := float64(attrs.Float("min")), float64(attrs.Float("max"))
	if lo > hi {
		return nil, invalidAttr("min", "%g is greater than max %g", lo, hi)
	}
	return &FuncKernel{
		RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.Clip(inputs[0], lo, hi, ctx.Reusable(inputs, 0)))
		},
		ShapeFunc: sameShapeAs(node, 0),
		TypeFunc:  sameTypeAs(0, 1),
	}, nil
}

func newClipInputs(node *Node, _ Attrs) (Kernel, error) {
	return &FuncKernel{
		RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			lo, err := scalarBound(inputs, 1, math.Inf(-1))
			if err != nil {
				return nil, err
			}
			hi, err := scalarBound(inputs, 2, math.Inf(1))
			if err != nil {
				return nil, err
			}
			return one(tensor.Clip(inputs[0], lo, hi, ctx.Reusable(inputs, 0)))
		},
		ShapeFunc: sameShapeAs(node, 0),
		TypeFunc:  sameTypeAs(0, 1),
	}, nil
}

func scalarBound(inputs []*tensor.RawTensor, i int, def float64) (float64, error) {
	t := optionalInput(inputs, i)
	if t == nil {
		return def, nil
	}
	if t.NumElements() != 1 {
		return 0, errors.Errorf("Clip: bound %d must be a scalar, got shape %v", i, t.Shape())
	}
	return tensor.Float64s(t)[0], nil
}
