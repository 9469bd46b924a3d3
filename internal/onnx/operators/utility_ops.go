//go:build !wasm

package operators

import (
	"github.com/pkg/errors"

	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/tensor"
)

// registerUtilityOps adds pass-through, constant and conversion operators.
func (r *Registry) registerUtilityOps() {
	r.mustRegister(
		Schema{OpType: "Identity", SinceVersion: 1, MinInputs: 1, MaxInputs: 1, Construct: newIdentity},
		Schema{
			OpType: "Dropout", SinceVersion: 7, MinInputs: 1, MaxInputs: 1, MinOutputs: 1, MaxOutputs: 2,
			Attributes: []AttrSpec{Optional(FloatAttr("ratio", 0.5))},
			Construct:  newDropout,
		},
		Schema{
			OpType: "Dropout", SinceVersion: 12, MinInputs: 1, MaxInputs: 3, MinOutputs: 1, MaxOutputs: 2,
			Attributes: []AttrSpec{Absent("seed", AttrInt)},
			Construct:  newDropout,
		},
		Schema{
			OpType: "Constant", SinceVersion: 1, MinInputs: 0, MaxInputs: 0, NoCopy: true,
			Attributes: []AttrSpec{Required("value", AttrTensor)},
			Construct:  newConstant,
		},
		Schema{
			OpType: "Constant", SinceVersion: 12, MinInputs: 0, MaxInputs: 0, NoCopy: true,
			Attributes: []AttrSpec{
				Absent("value", AttrTensor),
				Absent("value_float", AttrFloat),
				Absent("value_floats", AttrFloats),
				Absent("value_int", AttrInt),
				Absent("value_ints", AttrInts),
			},
			Construct: newConstant,
		},
		Schema{
			OpType: "Cast", SinceVersion: 6, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Required("to", AttrInt)},
			Construct:  newCast,
		},
		Schema{
			OpType: "Cast", SinceVersion: 13, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{Required("to", AttrInt)},
			Construct:  newCast,
		},
	)
}

// newIdentity returns a view of its input.
func newIdentity(node *Node, _ Attrs) (Kernel, error) {
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return []*tensor.RawTensor{inputs[0].Clone()}, nil
		},
		ShapeFunc: sameShapeAs(node, 0),
		TypeFunc:  sameTypeAs(0, 1),
	}, nil
}

// newDropout runs Dropout in inference mode, where it is the identity and
// the optional mask keeps every element.
func newDropout(node *Node, _ Attrs) (Kernel, error) {
	withMask := len(node.Outputs) > 1 && node.Outputs[1] != ""
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			if mode := optionalInput(inputs, 2); mode != nil && mode.NumElements() == 1 && tensor.Float64s(mode)[0] != 0 {
				return nil, errors.New("Dropout: training mode is not supported")
			}
			x := inputs[0]
			outputs := []*tensor.RawTensor{x.Clone()}
			if withMask {
				mask, err := tensor.FullRaw(x.Shape(), 1, tensor.Bool)
				if err != nil {
					return nil, err
				}
				outputs = append(outputs, mask)
			}
			return outputs, nil
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			out := []*shapeinfer.ShapeResult{in[0].Rename(node.Outputs[0])}
			if withMask {
				mask := in[0].Rename(node.Outputs[1])
				mask.DType = tensor.Bool
				out = append(out, mask)
			}
			return out, nil
		},
		TypeFunc: func(in []tensor.DataType) ([]tensor.DataType, error) {
			if withMask {
				return []tensor.DataType{in[0], tensor.Bool}, nil
			}
			return []tensor.DataType{in[0]}, nil
		},
	}, nil
}

// constantValue picks the single value attribute a Constant node sets.
func constantValue(attrs Attrs) (*tensor.RawTensor, error) {
	var (
		value *tensor.RawTensor
		set   []string
	)
	if attrs.Has("value") {
		value = attrs.Tensor("value")
		set = append(set, "value")
	}
	if attrs.Has("value_float") {
		value = tensor.Scalar(attrs.Float("value_float"))
		set = append(set, "value_float")
	}
	if attrs.Has("value_floats") {
		f := attrs.Floats("value_floats")
		value = tensor.MustNewRaw(tensor.Shape{len(f)}, tensor.Float32)
		copy(value.AsFloat32(), f)
		set = append(set, "value_floats")
	}
	if attrs.Has("value_int") {
		value = tensor.Scalar(attrs.Int("value_int"))
		set = append(set, "value_int")
	}
	if attrs.Has("value_ints") {
		value = tensor.Int64Vector(attrs.Ints("value_ints"))
		set = append(set, "value_ints")
	}
	switch len(set) {
	case 0:
		return nil, invalidAttr("value", "Constant needs exactly one value attribute")
	case 1:
		return value, nil
	}
	return nil, invalidAttr(set[1], "Constant sets %v, only one value attribute is allowed", set)
}

func newConstant(node *Node, attrs Attrs) (Kernel, error) {
	value, err := constantValue(attrs)
	if err != nil {
		return nil, err
	}
	return &FuncKernel{
		RunFunc: func(_ *Context, _ []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return []*tensor.RawTensor{value.Clone()}, nil
		},
		ShapeFunc: func(_ []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			return single(shapeinfer.FromTensor(node.Outputs[0], value), nil)
		},
		TypeFunc: fixedType(value.DType()),
		ValueFunc: func([]*shapeinfer.ShapeResult) []*tensor.RawTensor {
			return []*tensor.RawTensor{value.Clone()}
		},
	}, nil
}

func newCast(node *Node, attrs Attrs) (Kernel, error) {
	to, ok := DataTypeFromProto(int32(attrs.Int("to")))
	if !ok {
		return nil, invalidAttr("to", "unsupported data type %d", attrs.Int("to"))
	}
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			return one(tensor.Cast(inputs[0], to))
		},
		ShapeFunc: func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
			res := in[0].Rename(node.Outputs[0])
			res.DType = to
			return single(res, nil)
		},
		TypeFunc: fixedType(to),
	}, nil
}
