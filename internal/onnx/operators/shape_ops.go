//go:build !wasm

package operators

import (
	"github.com/pkg/errors"

	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/tensor"
)

// registerShapeOps adds shape manipulation operators to the registry.
func (r *Registry) registerShapeOps() {
	r.mustRegister(
		Schema{
			OpType: "Reshape", SinceVersion: 1, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Required("shape", AttrInts)},
			Construct:  newReshapeAttr,
		},
		Schema{OpType: "Reshape", SinceVersion: 5, MinInputs: 2, MaxInputs: 2, Construct: newReshape},
		Schema{
			OpType: "Reshape", SinceVersion: 14, MinInputs: 2, MaxInputs: 2,
			Attributes: []AttrSpec{Optional(IntAttr("allowzero", 0))},
			Construct:  newReshape,
		},
		Schema{
			OpType: "Transpose", SinceVersion: 1, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Absent("perm", AttrInts)},
			Construct:  newTranspose,
		},
		Schema{
			OpType: "Flatten", SinceVersion: 1, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Optional(IntAttr("axis", 1))},
			Construct:  newFlatten,
		},
		Schema{
			OpType: "Squeeze", SinceVersion: 1, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Absent("axes", AttrInts)},
			Construct:  newSqueeze,
		},
		Schema{OpType: "Squeeze", SinceVersion: 13, MinInputs: 1, MaxInputs: 2, Construct: newSqueeze},
		Schema{
			OpType: "Unsqueeze", SinceVersion: 1, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Required("axes", AttrInts)},
			Construct:  newUnsqueeze,
		},
		Schema{OpType: "Unsqueeze", SinceVersion: 13, MinInputs: 2, MaxInputs: 2, Construct: newUnsqueeze},
		Schema{
			OpType: "Concat", SinceVersion: 4, MinInputs: 1, MaxInputs: -1,
			Attributes: []AttrSpec{Required("axis", AttrInt)},
			Construct:  newConcat,
		},
		Schema{OpType: "Shape", SinceVersion: 1, MinInputs: 1, MaxInputs: 1, Construct: newShape},
	)
}

func newReshapeAttr(node *Node, attrs Attrs) (Kernel, error) {
	target := attrs.Ints("shape")
	if err := checkReshapeTarget(target); err != nil {
		return nil, invalidAttr("shape", "%v", err)
	}
	return reshapeKernel(node, func([]*tensor.RawTensor) ([]int64, error) { return target, nil },
		func([]*tensor.RawTensor) ([]int64, bool) { return target, true }, false), nil
}

func newReshape(node *Node, attrs Attrs) (Kernel, error) {
	allowZero, err := attrs.Flag("allowzero")
	if err != nil {
		return nil, err
	}
	runtimeTarget := func(inputs []*tensor.RawTensor) ([]int64, error) {
		s := inputs[1]
		if s.Rank() != 1 {
			return nil, errors.Errorf("Reshape: shape input must be 1D, got %v", s.Shape())
		}
		return tensor.Int64s(s), nil
	}
	staticTarget := func(values []*tensor.RawTensor) ([]int64, bool) { return knownInts(values, 1) }
	return reshapeKernel(node, runtimeTarget, staticTarget, allowZero), nil
}

func checkReshapeTarget(target []int64) error {
	inferred := 0
	for _, d := range target {
		switch {
		case d == -1:
			inferred++
		case d < -1:
			return errors.Errorf("invalid dimension %d", d)
		}
	}
	if inferred > 1 {
		return errors.Errorf("more than one -1 in %v", target)
	}
	return nil
}

func reshapeKernel(node *Node, runtimeTarget func([]*tensor.RawTensor) ([]int64, error),
	staticTarget func([]*tensor.RawTensor) ([]int64, bool), allowZero bool) Kernel {
	out := node.Outputs[0]
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			target, err := runtimeTarget(inputs)
			if err != nil {
				return nil, err
			}
			return one(tensor.Reshape(inputs[0], target, allowZero))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, values []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			x := in[0]
			target, ok := staticTarget(values)
			if !ok {
				if len(in) > 1 && in[1] != nil && len(in[1].Dims) == 1 && !in[1].Dims[0].IsVariable() {
					dims := make([]shapeinfer.Dim, in[1].Dims[0].Value())
					for i := range dims {
						dims[i] = freshDim(out, i)
					}
					return single(shapeinfer.New(out, x.DType, dims...), nil)
				}
				return single(shapeinfer.NewUnknownRank(out, x.DType), nil)
			}
			if err := checkReshapeTarget(target); err != nil {
				return nil, shapeErrorf("Reshape: %v", err)
			}
			dims := make([]shapeinfer.Dim, len(target))
			inferred := -1
			for i, d := range target {
				switch {
				case d == -1:
					inferred = i
				case d == 0 && !allowZero:
					if x.UnknownRank || i >= len(x.Dims) {
						dims[i] = freshDim(out, i)
					} else {
						dims[i] = x.Dims[i]
					}
				default:
					dims[i] = shapeinfer.Concrete(int(d))
				}
			}
			if inferred >= 0 {
				dims[inferred] = freshDim(out, inferred)
				if shape, ok := x.ConcreteShape(); ok {
					known := 1
					concrete := true
					for i, d := range dims {
						if i == inferred {
							continue
						}
						if d.IsVariable() {
							concrete = false
							break
						}
						known *= d.Value()
					}
					if concrete && known > 0 {
						if shape.NumElements()%known != 0 {
							return nil, shapeErrorf("Reshape: cannot reshape %s into %v", x, target)
						}
						dims[inferred] = shapeinfer.Concrete(shape.NumElements() / known)
					}
				}
			}
			res := shapeinfer.New(out, x.DType, dims...)
			res.Constraints = x.Constraints.Copy()
			return single(res, nil)
		},
		TypeFunc: sameTypeAs(0, 1),
	}
}

func newTranspose(node *Node, attrs Attrs) (Kernel, error) {
	perm := attrs.AxesInts("perm")
	seen := make(map[int]bool, len(perm))
	for _, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, invalidAttr("perm", "%v is not a permutation", perm)
		}
		seen[p] = true
	}
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.Transpose(inputs[0], perm))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			x := in[0]
			if x.UnknownRank {
				return single(shapeinfer.NewUnknownRank(node.Outputs[0], x.DType), nil)
			}
			p := perm
			if len(p) == 0 {
				p = make([]int, len(x.Dims))
				for i := range p {
					p[i] = len(x.Dims) - 1 - i
				}
			}
			if len(p) != len(x.Dims) {
				return nil, shapeErrorf("Transpose: perm %v does not match %s", p, x)
			}
			res := x.Rename(node.Outputs[0])
			for i, axis := range p {
				res.Dims[i] = x.Dims[axis]
			}
			return single(res, nil)
		},
		TypeFunc: sameTypeAs(0, 1),
	}, nil
}

func newFlatten(node *Node, attrs Attrs) (Kernel, error) {
	axis := int(attrs.Int("axis"))
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.Flatten(inputs[0], axis))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			x := in[0]
			out := node.Outputs[0]
			if x.UnknownRank {
				return single(shapeinfer.New(out, x.DType, freshDim(out, 0), freshDim(out, 1)), nil)
			}
			a := axis
			if a < 0 {
				a += len(x.Dims)
			}
			if a < 0 || a > len(x.Dims) {
				return nil, shapeErrorf("Flatten: axis %d out of range for %s", axis, x)
			}
			res := shapeinfer.New(out, x.DType, product(x.Dims[:a], out, 0), product(x.Dims[a:], out, 1))
			res.Constraints = x.Constraints.Copy()
			return single(res, nil)
		},
		TypeFunc: sameTypeAs(0, 1),
	}, nil
}

// axesSource returns the axes from the attribute (opset < 13) or the second input.
func axesSource(attrs Attrs) (func([]*tensor.RawTensor) []int, func([]*tensor.RawTensor) ([]int, bool)) {
	if attrs.Has("axes") {
		axes := attrs.AxesInts("axes")
		return func([]*tensor.RawTensor) []int { return axes },
			func([]*tensor.RawTensor) ([]int, bool) { return axes, true }
	}
	return func(inputs []*tensor.RawTensor) []int {
			if t := optionalInput(inputs, 1); t != nil {
				return toInts(tensor.Int64s(t))
			}
			return nil
		},
		func(values []*tensor.RawTensor) ([]int, bool) {
			if len(values) < 2 {
				return nil, true
			}
			v, ok := knownInts(values, 1)
			return toInts(v), ok
		}
}

func newSqueeze(node *Node, attrs Attrs) (Kernel, error) {
	runtimeAxes, staticAxes := axesSource(attrs)
	out := node.Outputs[0]
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.Squeeze(inputs[0], runtimeAxes(inputs)))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, values []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			x := in[0]
			axes, ok := staticAxes(values)
			if !ok || x.UnknownRank {
				return single(shapeinfer.NewUnknownRank(out, x.DType), nil)
			}
			drop := make(map[int]bool)
			if len(axes) == 0 {
				for i, d := range x.Dims {
					if !d.IsVariable() && d.Value() == 1 {
						drop[i] = true
					}
				}
			} else {
				norm, err := tensor.NormalizeAxes(axes, len(x.Dims))
				if err != nil {
					return nil, shapeErrorf("Squeeze: %v", err)
				}
				res := x.Copy()
				for _, a := range norm {
					d := x.Dims[a]
					if d.IsVariable() {
						if _, err := res.Constraints.Add(d.Name(), 1); err != nil {
							return nil, err
						}
					} else if d.Value() != 1 {
						return nil, shapeErrorf("Squeeze: axis %d of %s is not 1", a, x)
					}
					drop[a] = true
				}
				x = res
			}
			res := shapeinfer.New(out, x.DType)
			res.Constraints = x.Constraints.Copy()
			for i, d := range x.Dims {
				if !drop[i] {
					res.Dims = append(res.Dims, d)
				}
			}
			return single(res, nil)
		},
		TypeFunc: sameTypeAs(0, 1),
	}, nil
}

func newUnsqueeze(node *Node, attrs Attrs) (Kernel, error) {
	runtimeAxes, staticAxes := axesSource(attrs)
	out := node.Outputs[0]
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.Unsqueeze(inputs[0], runtimeAxes(inputs)))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, values []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			x := in[0]
			axes, ok := staticAxes(values)
			if !ok || x.UnknownRank {
				return single(shapeinfer.NewUnknownRank(out, x.DType), nil)
			}
			rank := len(x.Dims) + len(axes)
			norm, err := tensor.NormalizeAxes(axes, rank)
			if err != nil || len(axes) == 0 {
				return nil, shapeErrorf("Unsqueeze: invalid axes %v for %s", axes, x)
			}
			insert := make(map[int]bool, len(norm))
			for _, a := range norm {
				insert[a] = true
			}
			res := shapeinfer.New(out, x.DType)
			res.Constraints = x.Constraints.Copy()
			j := 0
			for i := 0; i < rank; i++ {
				if insert[i] {
					res.Dims = append(res.Dims, shapeinfer.Concrete(1))
					continue
				}
				res.Dims = append(res.Dims, x.Dims[j])
				j++
			}
			return single(res, nil)
		},
		TypeFunc: sameTypeAs(0, 1),
	}, nil
}

func newConcat(node *Node, attrs Attrs) (Kernel, error) {
	axis := int(attrs.Int("axis"))
	out := node.Outputs[0]
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.Concat(inputs, axis))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			first := in[0]
			for _, x := range in {
				if x.UnknownRank {
					return single(shapeinfer.NewUnknownRank(out, first.DType), nil)
				}
			}
			a, err := tensor.NormalizeAxis(axis, len(first.Dims))
			if err != nil {
				return nil, shapeErrorf("Concat: %v", err)
			}
			res := first.Rename(out)
			sum := 0
			concrete := true
			for _, x := range in {
				if len(x.Dims) != len(first.Dims) || (x.DType != first.DType && x.DType != tensor.Undefined) {
					return nil, shapeErrorf("Concat: %s does not match %s", x, first)
				}
				for i, d := range x.Dims {
					if i == a {
						continue
					}
					if err := unifyDims(res, res.Dims[i], d); err != nil {
						return nil, shapeErrorf("Concat: %v", err)
					}
				}
				if _, err := res.Constraints.Merge(x.Constraints); err != nil {
					return nil, err
				}
				if x.Dims[a].IsVariable() {
					concrete = false
				} else {
					sum += x.Dims[a].Value()
				}
			}
			if concrete {
				res.Dims[a] = shapeinfer.Concrete(sum)
			} else {
				res.Dims[a] = freshDim(out, a)
			}
			return single(res, nil)
		},
		TypeFunc: sameTypes,
	}, nil
}

func newShape(node *Node, _ Attrs) (Kernel, error) {
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return []*tensor.RawTensor{tensor.ShapeTensor(inputs[0])}, nil
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			out := node.Outputs[0]
			if in[0].UnknownRank {
				return single(shapeinfer.New(out, tensor.Int64, freshDim(out, 0)), nil)
			}
			return single(shapeinfer.New(out, tensor.Int64, shapeinfer.Concrete(len(in[0].Dims))), nil)
		},
		TypeFunc: fixedType(tensor.Int64),
		ValueFunc: func(in []*shapeinfer.ShapeResult) []*tensor.RawTensor {
			shape, ok := in[0].ConcreteShape()
			if !ok {
				return nil
			}
			dims := make([]int64, len(shape))
			for i, d := range shape {
				dims[i] = int64(d)
			}
			return []*tensor.RawTensor{tensor.Int64Vector(dims)}
		},
	}, nil
}
