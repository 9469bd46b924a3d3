//go:build !wasm

package operators

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/tensor"
)

func shapeErrorf(format string, args ...any) error {
	return errors.Wrapf(shapeinfer.ErrShapeInference, format, args...)
}

func single(r *shapeinfer.ShapeResult, err error) ([]*shapeinfer.ShapeResult, error) {
	if err != nil {
		return nil, err
	}
	return []*shapeinfer.ShapeResult{r}, nil
}

func one(t *tensor.RawTensor, err error) ([]*tensor.RawTensor, error) {
	if err != nil {
		return nil, err
	}
	return []*tensor.RawTensor{t}, nil
}

// sameShapeAs forwards the shape of input i to the single output.
func sameShapeAs(node *Node, i int) func([]*shapeinfer.ShapeResult, []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
	return func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
		if i >= len(in) || in[i] == nil {
			return nil, shapeErrorf("%s: input %d has no shape", node.OpType, i)
		}
		return single(in[i].Rename(node.Outputs[0]), nil)
	}
}

// sameTypeAs forwards the dtype of input i to every output.
func sameTypeAs(i, outputs int) func([]tensor.DataType) ([]tensor.DataType, error) {
	return func(in []tensor.DataType) ([]tensor.DataType, error) {
		if i >= len(in) {
			return nil, shapeErrorf("input %d has no type", i)
		}
		out := make([]tensor.DataType, outputs)
		for j := range out {
			out[j] = in[i]
		}
		return out, nil
	}
}

// sameTypes requires every known input dtype to agree and forwards it.
func sameTypes(in []tensor.DataType) ([]tensor.DataType, error) {
	dt := tensor.Undefined
	for _, t := range in {
		if t == tensor.Undefined {
			continue
		}
		if dt != tensor.Undefined && t != dt {
			return nil, shapeErrorf("input types %v disagree", in)
		}
		dt = t
	}
	return []tensor.DataType{dt}, nil
}

func fixedType(dts ...tensor.DataType) func([]tensor.DataType) ([]tensor.DataType, error) {
	return func([]tensor.DataType) ([]tensor.DataType, error) {
		return append([]tensor.DataType(nil), dts...), nil
	}
}

// freshDim names an unknown dimension of an output after the output itself.
func freshDim(output string, axis int) shapeinfer.Dim {
	return shapeinfer.Variable(fmt.Sprintf("%s_d%d", output, axis))
}

// knownInts returns the constant value of input i as []int64.
func knownInts(values []*tensor.RawTensor, i int) ([]int64, bool) {
	if i >= len(values) || values[i] == nil {
		return nil, false
	}
	return tensor.Int64s(values[i]), true
}

// product multiplies dims. A single variable times ones stays that variable;
// any other symbolic product becomes a fresh variable.
func product(dims []shapeinfer.Dim, output string, axis int) shapeinfer.Dim {
	n := 1
	var variables []shapeinfer.Dim
	for _, d := range dims {
		if d.IsVariable() {
			variables = append(variables, d)
			continue
		}
		n *= d.Value()
	}
	switch {
	case len(variables) == 0:
		return shapeinfer.Concrete(n)
	case len(variables) == 1 && n == 1:
		return variables[0]
	}
	return freshDim(output, axis)
}

// optionalInput returns inputs[i], or nil when omitted.
func optionalInput(inputs []*tensor.RawTensor, i int) *tensor.RawTensor {
	if i < len(inputs) {
		return inputs[i]
	}
	return nil
}

// reuseFor returns the first overwritable candidate input that can hold a result of shape.
func reuseFor(ctx *Context, inputs []*tensor.RawTensor, shape tensor.Shape, candidates ...int) *tensor.RawTensor {
	for _, i := range candidates {
		if t := ctx.Reusable(inputs, i); t != nil && t.IsUnique() && t.Shape().Equal(shape) {
			return t
		}
	}
	return nil
}

func requireInput(inputs []*tensor.RawTensor, i int, op string) (*tensor.RawTensor, error) {
	if i >= len(inputs) || inputs[i] == nil {
		return nil, errors.Errorf("%s: input %d is missing", op, i)
	}
	return inputs[i], nil
}
