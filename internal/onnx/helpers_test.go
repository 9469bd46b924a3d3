//go:build !wasm

package onnx

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphrt/internal/onnx/operators"
	"github.com/born-ml/graphrt/internal/tensor"
)

// tensorInfo declares a tensor value; an int dim is static, a string dim symbolic.
func tensorInfo(name string, elem int32, dims ...any) ValueInfoProto {
	shape := &TensorShapeProto{}
	for _, d := range dims {
		switch v := d.(type) {
		case int:
			shape.Dims = append(shape.Dims, DimensionProto{DimValue: int64(v)})
		case string:
			shape.Dims = append(shape.Dims, DimensionProto{DimParam: v})
		}
	}
	return ValueInfoProto{Name: name, Type: &TypeProto{TensorType: &TensorTypeProto{ElemType: elem, Shape: shape}}}
}

func floatInit(name string, data []float32, dims ...int64) TensorProto {
	return TensorProto{Name: name, DataType: operators.TensorProtoFloat, Dims: dims, FloatData: data}
}

func intsInit(name string, data []int64, dims ...int64) TensorProto {
	return TensorProto{Name: name, DataType: operators.TensorProtoInt64, Dims: dims, Int64Data: data}
}

func node(op string, inputs, outputs []string, attrs ...AttributeProto) NodeProto {
	return NodeProto{OpType: op, Inputs: inputs, Outputs: outputs, Attributes: attrs}
}

func intAttr(name string, v int64) AttributeProto {
	return AttributeProto{Name: name, Type: AttributeProtoInt, I: v}
}

// affineGraph computes Y = X*W + B for X of shape [N,3].
func affineGraph() *GraphProto {
	return &GraphProto{
		Name:   "affine",
		Inputs: []ValueInfoProto{tensorInfo("X", operators.TensorProtoFloat, "N", 3)},
		Outputs: []ValueInfoProto{
			tensorInfo("Y", operators.TensorProtoFloat, "N", 3),
		},
		Initializers: []TensorProto{
			floatInit("W", []float32{1, 2, 3}, 1, 3),
			floatInit("B", []float32{0.5, 0.5, 0.5}, 1, 3),
		},
		Nodes: []NodeProto{
			node("Mul", []string{"X", "W"}, []string{"XW"}),
			node("Add", []string{"XW", "B"}, []string{"Y"}),
		},
	}
}

func f32(data []float32, shape ...int) *tensor.RawTensor {
	return must.M1(tensor.FromSlice(data, tensor.Shape(shape)))
}

func mustCompile(t *testing.T, graph *GraphProto, opts ...CompileOptions) *CompiledGraph {
	t.Helper()
	g, err := CompileGraph(graph, opts...)
	require.NoError(t, err)
	return g
}

// customOps returns operators in the "test" domain.
func customOps(run func(inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)) []operators.Schema {
	return []operators.Schema{{
		Domain:       "test",
		OpType:       "Custom",
		SinceVersion: 1,
		MinInputs:    1,
		MaxInputs:    1,
		Construct: func(_ *operators.Node, _ operators.Attrs) (operators.Kernel, error) {
			return &operators.FuncKernel{
				RunFunc: func(_ *operators.Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
					return run(inputs)
				},
			}, nil
		},
	}}
}
