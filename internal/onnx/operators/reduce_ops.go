//go:build !wasm

package operators

import (
	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/tensor"
)

// registerReduceOps adds reductions. ReduceSum takes its axes as an input
// from opset 13; the other reductions keep the attribute.
func (r *Registry) registerReduceOps() {
	for _, op := range []tensor.ReduceOp{tensor.ReduceSum, tensor.ReduceMean, tensor.ReduceMax, tensor.ReduceMin, tensor.ReduceProd} {
		r.mustRegister(Schema{
			OpType: op.String(), SinceVersion: 1, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Absent("axes", AttrInts), Optional(IntAttr("keepdims", 1))},
			Construct:  reduceConstructor(op),
		})
	}
	r.mustRegister(Schema{
		OpType: tensor.ReduceSum.String(), SinceVersion: 13, MinInputs: 1, MaxInputs: 2,
		Attributes: []AttrSpec{
			Optional(IntAttr("keepdims", 1)),
			Optional(IntAttr("noop_with_empty_axes", 0)),
		},
		Construct: reduceConstructor(tensor.ReduceSum),
	})
}

func reduceConstructor(op tensor.ReduceOp) func(*Node, Attrs) (Kernel, error) {
	return func(node *Node, attrs Attrs) (Kernel, error) {
		keepDims, err := attrs.Flag("keepdims")
		if err != nil {
			return nil, err
		}
		noop, err := attrs.Flag("noop_with_empty_axes")
		if err != nil {
			return nil, err
		}
		runtimeAxes, staticAxes := axesSource(attrs)
		return &FuncKernel{
			RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
				axes := runtimeAxes(inputs)
				if len(axes) == 0 && noop {
					return []*tensor.RawTensor{inputs[0].Clone()}, nil
				}
				return one(tensor.Reduce(op, inputs[0], axes, keepDims))
			},
			ShapeFunc: func(in []*shapeinfer.ShapeResult, values []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
				x := in[0]
				out := node.Outputs[0]
				axes, ok := staticAxes(values)
				if x.UnknownRank || (!ok && !keepDims) {
					return single(shapeinfer.NewUnknownRank(out, x.DType), nil)
				}
				if !ok {
					// keepdims preserves the rank even when the axes are unknown.
					res := shapeinfer.New(out, x.DType)
					for i := range x.Dims {
						res.Dims = append(res.Dims, freshDim(out, i))
					}
					return single(res, nil)
				}
				if len(axes) == 0 && noop {
					return single(x.Rename(out), nil)
				}
				return single(reduceDims(op, x, axes, keepDims, out))
			},
			TypeFunc: sameTypeAs(0, 1),
		}, nil
	}
}

func reduceDims(op tensor.ReduceOp, x *shapeinfer.ShapeResult, axes []int, keepDims bool, out string) (*shapeinfer.ShapeResult, error) {
	reduced := make([]bool, len(x.Dims))
	if len(axes) == 0 {
		for i := range reduced {
			reduced[i] = true
		}
	} else {
		norm, err := tensor.NormalizeAxes(axes, len(x.Dims))
		if err != nil {
			return nil, shapeErrorf("%s: %v", op, err)
		}
		for _, a := range norm {
			reduced[a] = true
		}
	}
	res := shapeinfer.New(out, x.DType)
	res.Constraints = x.Constraints.Copy()
	for i, d := range x.Dims {
		switch {
		case !reduced[i]:
			res.Dims = append(res.Dims, d)
		case keepDims:
			res.Dims = append(res.Dims, shapeinfer.Concrete(1))
		}
	}
	return res, nil
}
