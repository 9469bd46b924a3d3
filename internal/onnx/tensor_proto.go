//go:build !wasm

package onnx

import (
	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/born-ml/graphrt/internal/onnx/operators"
	"github.com/born-ml/graphrt/internal/tensor"
)

// tensorFromProto materializes a TensorProto.
// Raw data is little-endian; typed fields follow the ONNX storage rules.
func tensorFromProto(proto *TensorProto) (*tensor.RawTensor, error) {
	shape := make(tensor.Shape, len(proto.Dims))
	for i, dim := range proto.Dims {
		shape[i] = int(dim)
	}

	dtype, ok := operators.DataTypeFromProto(proto.DataType)
	if !ok {
		return nil, errors.Errorf("tensor %q: unsupported data type %d", proto.Name, proto.DataType)
	}

	t, err := tensor.NewRaw(shape, dtype)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", proto.Name)
	}
	n := t.NumElements()

	checkLen := func(field string, got int) error {
		if got != n {
			return errors.Errorf("tensor %q: %s has %d values, shape %v needs %d", proto.Name, field, got, shape, n)
		}
		return nil
	}

	switch {
	case len(proto.RawData) > 0:
		if len(proto.RawData) != t.ByteSize() {
			return nil, errors.Errorf("tensor %q: raw data has %d bytes, expected %d",
				proto.Name, len(proto.RawData), t.ByteSize())
		}
		copy(t.Data(), proto.RawData)
	case len(proto.FloatData) > 0:
		if err := checkLen("float_data", len(proto.FloatData)); err != nil {
			return nil, err
		}
		if dtype != tensor.Float32 {
			return nil, errors.Errorf("tensor %q: float_data used for %s", proto.Name, dtype)
		}
		copy(t.AsFloat32(), proto.FloatData)
	case len(proto.DoubleData) > 0:
		if err := checkLen("double_data", len(proto.DoubleData)); err != nil {
			return nil, err
		}
		if dtype != tensor.Float64 {
			return nil, errors.Errorf("tensor %q: double_data used for %s", proto.Name, dtype)
		}
		copy(t.AsFloat64(), proto.DoubleData)
	case len(proto.Int64Data) > 0:
		if err := checkLen("int64_data", len(proto.Int64Data)); err != nil {
			return nil, err
		}
		if dtype != tensor.Int64 {
			return nil, errors.Errorf("tensor %q: int64_data used for %s", proto.Name, dtype)
		}
		copy(t.AsInt64(), proto.Int64Data)
	case len(proto.Int32Data) > 0:
		if err := checkLen("int32_data", len(proto.Int32Data)); err != nil {
			return nil, err
		}
		if err := fromInt32Data(t, proto.Int32Data); err != nil {
			return nil, errors.WithMessagef(err, "tensor %q", proto.Name)
		}
	}
	return t, nil
}

// fromInt32Data decodes the int32_data field, which also carries the narrow
// integer types, bools and float16 bit patterns.
func fromInt32Data(t *tensor.RawTensor, data []int32) error {
	switch t.DType() {
	case tensor.Int32:
		copy(t.AsInt32(), data)
	case tensor.Int8:
		out := t.AsInt8()
		for i, v := range data {
			out[i] = int8(v)
		}
	case tensor.Uint8:
		out := t.AsUint8()
		for i, v := range data {
			out[i] = uint8(v)
		}
	case tensor.Bool:
		out := t.AsBool()
		for i, v := range data {
			out[i] = v != 0
		}
	case tensor.Float16:
		out := t.AsFloat16()
		for i, v := range data {
			out[i] = float16.Frombits(uint16(v))
		}
	default:
		return errors.Errorf("int32_data used for %s", t.DType())
	}
	return nil
}

// attributeFromProto converts an AttributeProto into the operators form.
func attributeFromProto(proto *AttributeProto) (operators.Attribute, error) {
	attr := operators.Attribute{
		Name:   proto.Name,
		Type:   operators.AttrType(proto.Type),
		F:      proto.F,
		I:      proto.I,
		S:      string(proto.S),
		Floats: proto.Floats,
		Ints:   proto.Ints,
	}
	for _, s := range proto.Strings {
		attr.Strings = append(attr.Strings, string(s))
	}
	if proto.T != nil {
		t, err := tensorFromProto(proto.T)
		if err != nil {
			return attr, errors.WithMessagef(err, "attribute %q", proto.Name)
		}
		attr.T = t
	}
	for i := range proto.Tensors {
		t, err := tensorFromProto(&proto.Tensors[i])
		if err != nil {
			return attr, errors.WithMessagef(err, "attribute %q", proto.Name)
		}
		attr.Tensors = append(attr.Tensors, t)
	}
	return attr, nil
}

// nodeFromProto converts a NodeProto into an operators.Node.
func nodeFromProto(proto *NodeProto, name string) (*operators.Node, error) {
	node := &operators.Node{
		Name:    name,
		OpType:  proto.OpType,
		Domain:  operators.NormalizeDomain(proto.Domain),
		Inputs:  proto.Inputs,
		Outputs: proto.Outputs,
	}
	for i := range proto.Attributes {
		attr, err := attributeFromProto(&proto.Attributes[i])
		if err != nil {
			return nil, err
		}
		node.Attributes = append(node.Attributes, attr)
	}
	return node, nil
}
