//go:build !wasm

package onnx

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/graphrt/internal/onnx/operators"
	"github.com/born-ml/graphrt/internal/tensor"
)

func TestTensorFromProto(t *testing.T) {
	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw[0:], math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-2))

	for _, tc := range []struct {
		name  string
		proto TensorProto
		dtype tensor.DataType
		shape tensor.Shape
		check func(t *testing.T, x *tensor.RawTensor)
	}{
		{
			name:  "raw float",
			proto: TensorProto{DataType: operators.TensorProtoFloat, Dims: []int64{2}, RawData: raw},
			dtype: tensor.Float32, shape: tensor.Shape{2},
			check: func(t *testing.T, x *tensor.RawTensor) { assert.Equal(t, []float32{1.5, -2}, x.AsFloat32()) },
		},
		{
			name:  "double data",
			proto: TensorProto{DataType: operators.TensorProtoDouble, Dims: []int64{1, 2}, DoubleData: []float64{0.25, 4}},
			dtype: tensor.Float64, shape: tensor.Shape{1, 2},
			check: func(t *testing.T, x *tensor.RawTensor) { assert.Equal(t, []float64{0.25, 4}, x.AsFloat64()) },
		},
		{
			name:  "int64 scalar",
			proto: TensorProto{DataType: operators.TensorProtoInt64, Int64Data: []int64{-7}},
			dtype: tensor.Int64, shape: tensor.Shape{},
			check: func(t *testing.T, x *tensor.RawTensor) { assert.Equal(t, []int64{-7}, x.AsInt64()) },
		},
		{
			name:  "bool from int32 data",
			proto: TensorProto{DataType: operators.TensorProtoBool, Dims: []int64{3}, Int32Data: []int32{1, 0, 2}},
			dtype: tensor.Bool, shape: tensor.Shape{3},
			check: func(t *testing.T, x *tensor.RawTensor) { assert.Equal(t, []bool{true, false, true}, x.AsBool()) },
		},
		{
			name:  "int8 from int32 data",
			proto: TensorProto{DataType: operators.TensorProtoInt8, Dims: []int64{2}, Int32Data: []int32{-3, 100}},
			dtype: tensor.Int8, shape: tensor.Shape{2},
			check: func(t *testing.T, x *tensor.RawTensor) { assert.Equal(t, []int8{-3, 100}, x.AsInt8()) },
		},
		{
			name: "float16 bits",
			proto: TensorProto{DataType: operators.TensorProtoFloat16, Dims: []int64{2},
				Int32Data: []int32{int32(float16.Fromfloat32(0.5).Bits()), int32(float16.Fromfloat32(-1).Bits())}},
			dtype: tensor.Float16, shape: tensor.Shape{2},
			check: func(t *testing.T, x *tensor.RawTensor) {
				got := x.AsFloat16()
				assert.Equal(t, float32(0.5), got[0].Float32())
				assert.Equal(t, float32(-1), got[1].Float32())
			},
		},
		{
			name:  "empty",
			proto: TensorProto{DataType: operators.TensorProtoFloat, Dims: []int64{0, 3}},
			dtype: tensor.Float32, shape: tensor.Shape{0, 3},
			check: func(t *testing.T, x *tensor.RawTensor) { assert.Equal(t, 0, x.NumElements()) },
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			x, err := tensorFromProto(&tc.proto)
			require.NoError(t, err)
			assert.Equal(t, tc.dtype, x.DType())
			assert.Equal(t, tc.shape, x.Shape())
			tc.check(t, x)
		})
	}
}

func TestTensorFromProtoErrors(t *testing.T) {
	for name, proto := range map[string]TensorProto{
		"unsupported type": {DataType: operators.TensorProtoString, Dims: []int64{1}},
		"raw size":         {DataType: operators.TensorProtoFloat, Dims: []int64{2}, RawData: []byte{1, 2, 3}},
		"float count":      {DataType: operators.TensorProtoFloat, Dims: []int64{2}, FloatData: []float32{1}},
		"float for int":    {DataType: operators.TensorProtoInt64, Dims: []int64{1}, FloatData: []float32{1}},
		"int32 for float":  {DataType: operators.TensorProtoFloat, Dims: []int64{1}, Int32Data: []int32{1}},
		"negative dim":     {DataType: operators.TensorProtoFloat, Dims: []int64{-1}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tensorFromProto(&proto)
			assert.Error(t, err)
		})
	}
}

func TestNodeFromProto(t *testing.T) {
	proto := NodeProto{
		OpType: "Gemm",
		Domain: "ai.onnx",
		Inputs: []string{"a", "b", ""},
		Attributes: []AttributeProto{
			{Name: "alpha", Type: AttributeProtoFloat, F: 0.5},
			{Name: "mode", Type: AttributeProtoString, S: []byte("fast")},
			{Name: "names", Type: AttributeProtoStrings, Strings: [][]byte{[]byte("x"), []byte("y")}},
		},
	}
	n, err := nodeFromProto(&proto, "gemm")
	require.NoError(t, err)
	assert.Equal(t, "gemm", n.Name)
	assert.Equal(t, operators.DefaultDomain, n.Domain)
	require.Len(t, n.Attributes, 3)
	assert.Equal(t, operators.AttrFloat, n.Attributes[0].Type)
	assert.Equal(t, float32(0.5), n.Attributes[0].F)
	assert.Equal(t, "fast", n.Attributes[1].S)
	assert.Equal(t, []string{"x", "y"}, n.Attributes[2].Strings)

	proto.Attributes = []AttributeProto{{Name: "value", Type: AttributeProtoTensor, T: &TensorProto{DataType: 999}}}
	_, err = nodeFromProto(&proto, "bad")
	assert.Error(t, err)
}
