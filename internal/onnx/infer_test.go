//go:build !wasm

package onnx

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphrt/internal/onnx/operators"
	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/tensor"
)

func TestInferShapesDeclared(t *testing.T) {
	g := mustCompile(t, affineGraph())
	shapes, err := g.InferShapes(nil)
	require.NoError(t, err)
	assert.Equal(t, "X:float32[N,3]", shapes["X"].String())
	assert.Equal(t, "W:float32[1,3]", shapes["W"].String())
	assert.Equal(t, "XW:float32[N,3]", shapes["XW"].String())
	assert.Equal(t, "Y:float32[N,3]", shapes["Y"].String())
}

func TestInferShapesGiven(t *testing.T) {
	g := mustCompile(t, affineGraph())
	given := map[string]*shapeinfer.ShapeResult{
		"X": shapeinfer.New("input", tensor.Float32, shapeinfer.Dims(4, 3)...),
	}
	shapes, constraints, err := g.InferShapesWithConstraints(given)
	require.NoError(t, err)
	y, ok := shapes["Y"].ConcreteShape()
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{4, 3}, y)
	assert.Equal(t, "X", shapes["X"].Name)
	values, ok := constraints.Values("N")
	require.True(t, ok)
	assert.Equal(t, []int{4}, values)

	_, err = g.InferShapes(map[string]*shapeinfer.ShapeResult{
		"X": shapeinfer.New("X", tensor.Float32, shapeinfer.Dims(4, 5)...),
	})
	assert.ErrorIs(t, err, shapeinfer.ErrShapeInference)

	_, err = g.InferShapes(map[string]*shapeinfer.ShapeResult{"W": given["X"]})
	assert.ErrorIs(t, err, ErrUnknownInput)
}

func TestInferShapesNodeError(t *testing.T) {
	graph := affineGraph()
	graph.Inputs[0] = tensorInfo("X", operators.TensorProtoFloat, "N", 4)
	graph.Outputs[0] = tensorInfo("Y", operators.TensorProtoFloat, "N", 4)
	g := mustCompile(t, graph)
	_, err := g.InferShapes(nil)
	require.ErrorIs(t, err, shapeinfer.ErrShapeInference)
	var nodeErr *NodeError
	require.True(t, errors.As(err, &nodeErr))
	assert.Equal(t, "Mul_0", nodeErr.Node)
}

func TestInferShapesConstantValues(t *testing.T) {
	g, err := Compile(reshapeModel(14))
	require.NoError(t, err)
	shapes, err := g.InferShapes(nil)
	require.NoError(t, err)
	assert.Equal(t, "Y:float32[3,2]", shapes["Y"].String())

	// The target passes through a node evaluated during inference.
	model := reshapeModel(14)
	model.Graph.Nodes = []NodeProto{
		node("Identity", []string{"shape"}, []string{"target"}),
		node("Reshape", []string{"X", "target"}, []string{"Y"}),
	}
	g, err = Compile(model)
	require.NoError(t, err)
	shapes, err = g.InferShapes(nil)
	require.NoError(t, err)
	assert.Equal(t, "Y:float32[3,2]", shapes["Y"].String())
	assert.Equal(t, "target:int64[2]", shapes["target"].String())

	// Shape values derived from a symbolic input stay unknown.
	graph := &GraphProto{
		Inputs: []ValueInfoProto{
			tensorInfo("X", operators.TensorProtoFloat, "N", 2),
			tensorInfo("T", operators.TensorProtoFloat, 6),
		},
		Outputs: []ValueInfoProto{{Name: "Y"}},
		Nodes: []NodeProto{
			node("Shape", []string{"X"}, []string{"s"}),
			node("Reshape", []string{"T", "s"}, []string{"Y"}),
		},
	}
	g = mustCompile(t, graph)
	shapes, err = g.InferShapes(nil)
	require.NoError(t, err)
	assert.Equal(t, "Y:float32[Y_d0,Y_d1]", shapes["Y"].String())

	shapes, err = g.InferShapes(map[string]*shapeinfer.ShapeResult{
		"X": shapeinfer.New("X", tensor.Float32, shapeinfer.Dims(3, 2)...),
	})
	require.NoError(t, err)
	assert.Equal(t, "Y:float32[3,2]", shapes["Y"].String())
}

func TestDeclaredShapes(t *testing.T) {
	q := &shapeQuery{}
	vi := ValueInfoProto{Name: "x", Type: &TypeProto{TensorType: &TensorTypeProto{
		ElemType: operators.TensorProtoInt64,
		Shape: &TensorShapeProto{Dims: []DimensionProto{
			{DimParam: "batch"}, {DimValue: 8}, {DimParam: "?"}, {},
		}},
	}}}
	assert.Equal(t, "x:int64[batch,8,unk__1,unk__2]", q.declared(&vi).String())

	assert.Equal(t, "y:undefined[?]", q.declared(&ValueInfoProto{Name: "y"}).String())

	seq := q.declared(&ValueInfoProto{Name: "s", Type: &TypeProto{SequenceType: &SequenceTypeProto{}}})
	assert.Equal(t, shapeinfer.KindSequence, seq.Kind)
	m := q.declared(&ValueInfoProto{Name: "m", Type: &TypeProto{MapType: &MapTypeProto{}}})
	assert.Equal(t, shapeinfer.KindMap, m.Kind)

	noShape := q.declared(&ValueInfoProto{Name: "z", Type: &TypeProto{TensorType: &TensorTypeProto{
		ElemType: operators.TensorProtoDouble,
	}}})
	assert.True(t, noShape.UnknownRank)
	assert.Equal(t, tensor.Float64, noShape.DType)
}

func TestInferTypes(t *testing.T) {
	g := mustCompile(t, affineGraph())
	types, err := g.InferTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, types["XW"])
	assert.Equal(t, tensor.Float32, types["Y"])

	_, err = g.InferTypes(map[string]tensor.DataType{"X": tensor.Float64})
	require.ErrorIs(t, err, shapeinfer.ErrShapeInference)
	var nodeErr *NodeError
	assert.True(t, errors.As(err, &nodeErr))

	_, err = g.InferTypes(map[string]tensor.DataType{"XW": tensor.Float32})
	assert.ErrorIs(t, err, ErrUnknownInput)

	graph := affineGraph()
	graph.Nodes = append(graph.Nodes,
		node("Cast", []string{"Y"}, []string{"Z"}, intAttr("to", operators.TensorProtoInt64)),
		node("Shape", []string{"Z"}, []string{"S"}))
	graph.Outputs = append(graph.Outputs, ValueInfoProto{Name: "S"})
	g = mustCompile(t, graph)
	types, err = g.InferTypes(nil)
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, types["Z"])
	assert.Equal(t, tensor.Int64, types["S"])
}
