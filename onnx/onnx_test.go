package onnx_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/born-ml/graphrt/internal/tensor"
	"github.com/born-ml/graphrt/onnx"
)

// mockModel implements the onnx.Model interface for testing.
type mockModel struct {
	inputNames  []string
	outputNames []string
	metadata    map[string]string
	forwardFunc func(*tensor.RawTensor) (*tensor.RawTensor, error)
}

func (m *mockModel) Run(_ context.Context, inputs map[string]*tensor.RawTensor, _ ...onnx.RunOptions) (*onnx.RunResult, error) {
	outputs, err := m.ForwardNamed(inputs)
	if err != nil {
		return nil, err
	}
	return &onnx.RunResult{Outputs: outputs}, nil
}

func (m *mockModel) RunBatch(ctx context.Context, batch []map[string]*tensor.RawTensor, _ onnx.BatchOptions,
	opts ...onnx.RunOptions) ([]*onnx.RunResult, error) {
	results := make([]*onnx.RunResult, len(batch))
	for i, inputs := range batch {
		res, err := m.Run(ctx, inputs, opts...)
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (m *mockModel) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if m.forwardFunc != nil {
		return m.forwardFunc(input)
	}
	// Default: return input as-is.
	return input, nil
}

func (m *mockModel) ForwardNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	// Simple mock: return first input as output.
	outputs := make(map[string]*tensor.RawTensor)
	for name, t := range inputs {
		outputs[name+"_out"] = t
		break
	}
	return outputs, nil
}

func (m *mockModel) InferShapes(map[string]*onnx.ShapeResult) (map[string]*onnx.ShapeResult, error) {
	return nil, nil
}

func (m *mockModel) InferTypes(map[string]tensor.DataType) (map[string]tensor.DataType, error) {
	return nil, nil
}

func (m *mockModel) InputNames() []string         { return m.inputNames }
func (m *mockModel) OptionalInputNames() []string { return nil }
func (m *mockModel) OutputNames() []string        { return m.outputNames }
func (m *mockModel) OpsetVersion(string) int64    { return 0 }
func (m *mockModel) Metadata() map[string]string  { return m.metadata }
func (m *mockModel) DisplaySequence() string      { return "" }

// TestModelInterface verifies that mockModel implements onnx.Model.
func TestModelInterface(_ *testing.T) {
	var _ onnx.Model = &mockModel{}
}

// TestModelInterfaceUsage demonstrates typical Model usage patterns.
func TestModelInterfaceUsage(t *testing.T) {
	runInference := func(model onnx.Model, input *tensor.RawTensor) (*tensor.RawTensor, error) {
		if len(model.InputNames()) == 0 {
			t.Error("Model has no inputs")
		}
		return model.Forward(input)
	}

	mock := &mockModel{inputNames: []string{"data"}}
	dummyInput, _ := tensor.NewRaw(tensor.Shape{1, 3}, tensor.Float32)
	result, err := runInference(mock, dummyInput)
	if err != nil {
		t.Errorf("runInference() error = %v", err)
	}
	if result != dummyInput {
		t.Error("Forward() should return input tensor")
	}
}

// affine returns Y = X*W + B for X of shape [N,2].
func affine() *onnx.GraphProto {
	float := func(name string, data ...float32) onnx.TensorProto {
		return onnx.TensorProto{Name: name, DataType: 1, Dims: []int64{1, 2}, FloatData: data}
	}
	return &onnx.GraphProto{
		Name: "affine",
		Inputs: []onnx.ValueInfoProto{{Name: "X", Type: &onnx.TypeProto{TensorType: &onnx.TensorTypeProto{
			ElemType: 1,
			Shape:    &onnx.TensorShapeProto{Dims: []onnx.DimensionProto{{DimParam: "N"}, {DimValue: 2}}},
		}}}},
		Outputs:      []onnx.ValueInfoProto{{Name: "Y"}},
		Initializers: []onnx.TensorProto{float("W", 2, 3), float("B", 1, 1)},
		Nodes: []onnx.NodeProto{
			{OpType: "Mul", Inputs: []string{"X", "W"}, Outputs: []string{"XW"}},
			{OpType: "Add", Inputs: []string{"XW", "B"}, Outputs: []string{"Y"}},
		},
	}
}

func TestCompileGraph(t *testing.T) {
	model, err := onnx.CompileGraph(affine())
	if err != nil {
		t.Fatalf("CompileGraph() error = %v", err)
	}
	if got := model.InputNames(); len(got) != 1 || got[0] != "X" {
		t.Errorf("InputNames() = %v, want [X]", got)
	}

	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	res, err := model.Run(context.Background(), map[string]*tensor.RawTensor{"X": x}, onnx.RunOptions{Timing: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := []float32{3, 7, 7, 13}
	for i, v := range res.Outputs["Y"].AsFloat32() {
		if v != want[i] {
			t.Errorf("Y[%d] = %v, want %v", i, v, want[i])
		}
	}
	if len(res.Timings) != 2 {
		t.Errorf("got %d timings, want 2", len(res.Timings))
	}

	if !strings.Contains(model.DisplaySequence(), "Mul(Mul_0) X, W -> XW") {
		t.Errorf("DisplaySequence() = %q", model.DisplaySequence())
	}

	shapes, err := model.InferShapes(map[string]*onnx.ShapeResult{"X": onnx.NewShape("X", 5, 2)})
	if err != nil {
		t.Fatalf("InferShapes() error = %v", err)
	}
	if shape, ok := shapes["Y"].ConcreteShape(); !ok || !shape.Equal(tensor.Shape{5, 2}) {
		t.Errorf("Y shape = %s, want [5,2]", shapes["Y"])
	}
}

func TestCompileErrors(t *testing.T) {
	graph := affine()
	graph.Nodes[1].OpType = "NoSuchOp"
	model, err := onnx.CompileGraph(graph)
	if !errors.Is(err, onnx.ErrUnsupportedOperator) {
		t.Errorf("CompileGraph() error = %v, want ErrUnsupportedOperator", err)
	}
	if model != nil {
		t.Error("CompileGraph() should return a nil Model on error")
	}
	var nodeErr *onnx.NodeError
	if !errors.As(err, &nodeErr) || nodeErr.Node != "NoSuchOp_1" {
		t.Errorf("CompileGraph() error = %v, want a NodeError for NoSuchOp_1", err)
	}

	model, err = onnx.Compile(&onnx.ModelProto{Graph: affine()})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	_, err = model.Run(context.Background(), nil)
	if !errors.Is(err, onnx.ErrMissingInput) {
		t.Errorf("Run() error = %v, want ErrMissingInput", err)
	}
}

func TestListSupportedOps(t *testing.T) {
	ops := onnx.ListSupportedOps()
	found := map[string]bool{}
	for _, op := range ops {
		found[op] = true
	}
	for _, op := range []string{"Add", "MatMul", "Reshape", "ai.onnx.ml:TreeEnsembleRegressor"} {
		if !found[op] {
			t.Errorf("ListSupportedOps() is missing %s", op)
		}
	}
	if versions := onnx.NewRegistry().Versions("", "Gemm"); len(versions) == 0 {
		t.Error("NewRegistry() should hold Gemm")
	}
}
