//go:build !wasm

package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphrt/internal/tensor"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	ops := r.SupportedOps()

	essentialOps := []string{
		"Add", "Sub", "Mul", "Div", "MatMul", "Gemm",
		"Relu", "Sigmoid", "Tanh", "Softmax",
		"Reshape", "Transpose", "Concat", "Shape",
		"Identity", "Dropout", "Constant", "Cast",
		"ReduceSum", "ReduceMean",
		"ai.onnx.ml:LinearRegressor", "ai.onnx.ml:TreeEnsembleRegressor",
	}
	for _, op := range essentialOps {
		assert.Contains(t, ops, op)
	}
	assert.IsNonDecreasing(t, ops)
}

func TestLookupVersionDispatch(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []int64{1, 5, 14}, r.Versions("", "Reshape"))

	tests := []struct {
		version int64
		want    int64
	}{
		{1, 1},
		{4, 1},
		{5, 5},
		{13, 5},
		{14, 14},
		{21, 14},
		{0, 14},
	}
	for _, tt := range tests {
		s, err := r.Lookup("", "Reshape", tt.version)
		require.NoError(t, err)
		assert.Equal(t, tt.want, s.SinceVersion, "opset %d", tt.version)
	}

	s, err := r.Lookup("ai.onnx", "Reshape", 13)
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.SinceVersion)
}

func TestLookupUnsupported(t *testing.T) {
	r := NewRegistry()

	_, err := r.Lookup("", "NoSuchOp", 13)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)

	_, err = r.Lookup("", "Concat", 3)
	assert.ErrorIs(t, err, ErrUnsupportedOperator)

	_, err = r.Lookup("", "LinearRegressor", 1)
	assert.ErrorIs(t, err, ErrUnsupportedOperator, "ML operators live in their own domain")

	_, err = r.Lookup(MLDomain, "LinearRegressor", 1)
	assert.NoError(t, err)
}

func TestRegisterCustomOp(t *testing.T) {
	r := NewEmptyRegistry()
	custom := Schema{
		Domain: "custom", OpType: "Twice", MinInputs: 1, MaxInputs: 1,
		Construct: func(node *Node, _ Attrs) (Kernel, error) {
			return &FuncKernel{RunFunc: func(_ *Context, in []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
				return one(tensor.Binary(tensor.OpAdd, in[0], in[0], nil))
			}}, nil
		},
	}
	require.NoError(t, r.Register(custom))
	assert.Error(t, r.Register(custom), "duplicate version")
	assert.Equal(t, []string{"custom:Twice"}, r.SupportedOps())

	k, s, err := r.New(&Node{OpType: "Twice", Domain: "custom", Inputs: []string{"x"}, Outputs: []string{"y"}}, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.SinceVersion)
	out, err := k.Run(nil, []*tensor.RawTensor{tensor.Scalar(float32(2))})
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, out[0].AsFloat32())

	clone := r.Clone()
	require.NoError(t, clone.Register(Schema{OpType: "Other", Construct: custom.Construct}))
	assert.Len(t, r.SupportedOps(), 1)
	assert.Len(t, clone.SupportedOps(), 2)
}

func TestInvalidAttributes(t *testing.T) {
	r := NewRegistry()
	tests := []struct {
		name string
		node *Node
	}{
		{"flag out of range", &Node{OpType: "Gemm", Inputs: []string{"a", "b"}, Outputs: []string{"y"},
			Attributes: []Attribute{IntAttr("transA", 2)}}},
		{"missing required", &Node{OpType: "Concat", Inputs: []string{"a"}, Outputs: []string{"y"}}},
		{"wrong type", &Node{OpType: "LeakyRelu", Inputs: []string{"x"}, Outputs: []string{"y"},
			Attributes: []Attribute{IntAttr("alpha", 1)}}},
		{"set twice", &Node{OpType: "LeakyRelu", Inputs: []string{"x"}, Outputs: []string{"y"},
			Attributes: []Attribute{FloatAttr("alpha", 1), FloatAttr("alpha", 2)}}},
		{"bad permutation", &Node{OpType: "Transpose", Inputs: []string{"x"}, Outputs: []string{"y"},
			Attributes: []Attribute{IntsAttr("perm", 0, 0)}}},
		{"cast target", &Node{OpType: "Cast", Inputs: []string{"x"}, Outputs: []string{"y"},
			Attributes: []Attribute{IntAttr("to", TensorProtoString)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.New(tt.node, 0)
			assert.ErrorIs(t, err, ErrInvalidAttribute)
		})
	}

	// Clip-6 takes its bounds as attributes; Clip-11 would ignore them.
	_, _, err := r.New(&Node{OpType: "Clip", Inputs: []string{"x"}, Outputs: []string{"y"},
		Attributes: []Attribute{FloatAttr("min", 2), FloatAttr("max", 1)}}, 6)
	assert.ErrorIs(t, err, ErrInvalidAttribute)
}

func TestUnknownAttributesIgnored(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.New(&Node{OpType: "Relu", Inputs: []string{"x"}, Outputs: []string{"y"},
		Attributes: []Attribute{StringAttr("comment", "from a newer exporter")}}, 0)
	assert.NoError(t, err)
}

func TestArity(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.New(&Node{OpType: "Add", Inputs: []string{"a"}, Outputs: []string{"y"}}, 0)
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, _, err = r.New(&Node{OpType: "Relu", Inputs: []string{"x"}, Outputs: []string{"y", "z"}}, 0)
	assert.ErrorIs(t, err, ErrInvalidNode)

	_, _, err = r.New(&Node{OpType: "Sum", Inputs: []string{"a", "b", "c", "d"}, Outputs: []string{"y"}}, 0)
	assert.NoError(t, err)
}

func TestDataTypeProtoRoundTrip(t *testing.T) {
	for _, dt := range []tensor.DataType{tensor.Float32, tensor.Float64, tensor.Float16, tensor.Int32,
		tensor.Int64, tensor.Int8, tensor.Uint8, tensor.Bool} {
		got, ok := DataTypeFromProto(ProtoDataType(dt))
		require.True(t, ok)
		assert.Equal(t, dt, got)
	}
	_, ok := DataTypeFromProto(TensorProtoString)
	assert.False(t, ok)
}
