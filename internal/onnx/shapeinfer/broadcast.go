//go:build !wasm

package shapeinfer

import "github.com/born-ml/graphrt/internal/tensor"

// isScalarLike matches rank-0 scalars and the single-element shape [1].
func isScalarLike(r *ShapeResult) bool {
	if len(r.Dims) == 0 {
		return true
	}
	return len(r.Dims) == 1 && !r.Dims[0].IsVariable() && r.Dims[0].Value() == 1
}

func unifyDType(a, b *ShapeResult) (tensor.DataType, error) {
	switch {
	case a.DType == b.DType:
		return a.DType, nil
	case a.DType == tensor.Undefined:
		return b.DType, nil
	case b.DType == tensor.Undefined:
		return a.DType, nil
	}
	return tensor.Undefined, inferenceErrorf("cannot broadcast %s and %s: dtype mismatch", a, b)
}

// Broadcast infers the result of an element-wise binary operator.
//
// Dimensions are compared from the trailing end. Concrete sizes must be equal
// or one of them 1. A concrete size against a variable keeps the concrete size
// and restricts the variable to {1, size}, unless the size is 1. Two variables
// must have the same name. Ranks may differ only when one side is [1] or a scalar.
func Broadcast(a, b *ShapeResult, name string) (*ShapeResult, error) {
	if a.Kind != KindTensor || b.Kind != KindTensor {
		return nil, inferenceErrorf("cannot broadcast %s and %s: both must be tensors", a, b)
	}
	dtype, err := unifyDType(a, b)
	if err != nil {
		return nil, err
	}
	if a.UnknownRank || b.UnknownRank {
		res := NewUnknownRank(name, dtype)
		res.Sparse = a.Sparse || b.Sparse
		return res, nil
	}
	if len(a.Dims) != len(b.Dims) {
		switch {
		case isScalarLike(a):
			res := b.Rename(name)
			res.DType = dtype
			return res, nil
		case isScalarLike(b):
			res := a.Rename(name)
			res.DType = dtype
			return res, nil
		}
		return nil, inferenceErrorf("cannot broadcast %s and %s: rank mismatch", a, b)
	}

	res := New(name, dtype)
	res.Sparse = a.Sparse || b.Sparse
	res.Dims = make([]Dim, len(a.Dims))
	for i := len(a.Dims) - 1; i >= 0; i-- {
		da, db := a.Dims[i], b.Dims[i]
		var d Dim
		switch {
		case !da.IsVariable() && !db.IsVariable():
			switch {
			case da.Value() == db.Value():
				d = da
			case min(da.Value(), db.Value()) == 1:
				d = Concrete(max(da.Value(), db.Value()))
			default:
				return nil, inferenceErrorf("cannot broadcast %s and %s: dimension %d", a, b, i)
			}
		case !da.IsVariable():
			d, err = concreteAgainstVariable(res, da, db)
		case !db.IsVariable():
			d, err = concreteAgainstVariable(res, db, da)
		case da == db:
			d = da
		default:
			return nil, inferenceErrorf("cannot broadcast %s and %s: variables %s and %s differ",
				a, b, da.Name(), db.Name())
		}
		if err != nil {
			return nil, err
		}
		res.Dims[i] = d
	}
	for _, src := range []*ShapeResult{a, b} {
		if _, err := res.Constraints.Merge(src.Constraints); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func concreteAgainstVariable(res *ShapeResult, c, v Dim) (Dim, error) {
	if c.Value() == 1 {
		return v, nil
	}
	if _, err := res.Constraints.Add(v.Name(), 1, c.Value()); err != nil {
		return Dim{}, err
	}
	return c, nil
}

// BroadcastAll folds Broadcast over inputs for variadic element-wise operators.
func BroadcastAll(name string, inputs ...*ShapeResult) (*ShapeResult, error) {
	if len(inputs) == 0 {
		return nil, inferenceErrorf("%s: no inputs to broadcast", name)
	}
	res := inputs[0].Rename(name)
	for _, in := range inputs[1:] {
		var err error
		if res, err = Broadcast(res, in, name); err != nil {
			return nil, err
		}
	}
	return res, nil
}
