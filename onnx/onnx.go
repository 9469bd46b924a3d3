// Package onnx compiles and executes ONNX-style dataflow graphs.
//
// A graph is described in memory with GraphProto (optionally wrapped in a
// ModelProto that carries opset imports and metadata). Compile resolves every
// node to a versioned kernel, orders the nodes and plans buffer reuse; the
// resulting Model evaluates the graph on named tensors.
//
// # Supported Features
//
//   - Opset-versioned operator dispatch, per domain
//   - In-place buffer reuse for values with a single consumer
//   - Intermediate-value capture, per-node timing and leveled tracing
//   - Concurrent batch execution
//   - Symbolic shape and type inference
//   - Custom operators registered at compile time
//
// # Example Usage
//
//	import (
//	    "github.com/born-ml/graphrt/onnx"
//	    "github.com/born-ml/graphrt/tensor"
//	)
//
//	model, err := onnx.CompileGraph(&onnx.GraphProto{
//	    Inputs:  []onnx.ValueInfoProto{{Name: "X"}, {Name: "W"}},
//	    Outputs: []onnx.ValueInfoProto{{Name: "Y"}},
//	    Nodes:   []onnx.NodeProto{{OpType: "MatMul", Inputs: []string{"X", "W"}, Outputs: []string{"Y"}}},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := model.Run(ctx, map[string]*tensor.RawTensor{"X": x, "W": w})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	y := res.Outputs["Y"]
//
// # Supported Operators
//
// The following operators are supported:
//
//   - Arithmetic: Add, Sub, Mul, Div, Pow, Neg, Abs, Sqrt, Exp, Log, Sum
//   - Activation: Relu, Sigmoid, Tanh, Softmax, LeakyRelu, Clip
//   - Matrix: MatMul, Gemm
//   - Shape: Reshape, Transpose, Flatten, Squeeze, Unsqueeze, Concat, Shape
//   - Reduction: ReduceSum, ReduceMean, ReduceMax, ReduceMin, ReduceProd
//   - Other: Constant, Identity, Cast, Dropout
//   - ai.onnx.ml: LinearRegressor, TreeEnsembleRegressor
//
// Use [ListSupportedOps] to get the complete list of supported operators.
package onnx

import (
	internalonnx "github.com/born-ml/graphrt/internal/onnx"
	"github.com/born-ml/graphrt/internal/onnx/operators"
	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/tensor"
)

// Graph description types.
type (
	ModelProto        = internalonnx.ModelProto
	GraphProto        = internalonnx.GraphProto
	NodeProto         = internalonnx.NodeProto
	TensorProto       = internalonnx.TensorProto
	ValueInfoProto    = internalonnx.ValueInfoProto
	TypeProto         = internalonnx.TypeProto
	TensorTypeProto   = internalonnx.TensorTypeProto
	TensorShapeProto  = internalonnx.TensorShapeProto
	DimensionProto    = internalonnx.DimensionProto
	AttributeProto    = internalonnx.AttributeProto
	OperatorSetID     = internalonnx.OperatorSetID
	StringStringEntry = internalonnx.StringStringEntry
)

// Options and results.
type (
	CompileOptions = internalonnx.CompileOptions
	RunOptions     = internalonnx.RunOptions
	BatchOptions   = internalonnx.BatchOptions
	RunResult      = internalonnx.RunResult
	NodeTiming     = internalonnx.NodeTiming
	NodeError      = internalonnx.NodeError
	ModelInfo      = internalonnx.ModelInfo
)

// Custom operator types.
type (
	Schema        = operators.Schema
	Kernel        = operators.Kernel
	FuncKernel    = operators.FuncKernel
	KernelContext = operators.Context
	Node          = operators.Node
	Attrs         = operators.Attrs
	Registry      = operators.Registry
)

// Shape inference types.
type (
	ShapeResult = shapeinfer.ShapeResult
	Dim         = shapeinfer.Dim
	Constraints = shapeinfer.Constraints
)

// Errors reported by compilation and execution. Match them with errors.Is.
var (
	ErrGraphCycleOrMissingInput = internalonnx.ErrGraphCycleOrMissingInput
	ErrDuplicateOutput          = internalonnx.ErrDuplicateOutput
	ErrMissingInput             = internalonnx.ErrMissingInput
	ErrUnknownInput             = internalonnx.ErrUnknownInput
	ErrMissingOutput            = internalonnx.ErrMissingOutput
	ErrKernelExecution          = internalonnx.ErrKernelExecution
	ErrUnsupportedOperator      = operators.ErrUnsupportedOperator
	ErrInvalidAttribute         = operators.ErrInvalidAttribute
	ErrInvalidNode              = operators.ErrInvalidNode
	ErrShapeInference           = shapeinfer.ErrShapeInference
)

// DefaultCompileOptions returns the default compilation options.
//
// Default configuration:
//   - In-place reuse: enabled for intermediates, disabled for inputs
//   - Parallel kernels: enabled, one worker per CPU
//   - Operators: the built-in registry at the model's opset
func DefaultCompileOptions() CompileOptions {
	return internalonnx.DefaultCompileOptions()
}

// DefaultRunOptions returns options for a plain run.
func DefaultRunOptions() RunOptions {
	return internalonnx.DefaultRunOptions()
}

// DefaultBatchOptions returns the default batch options.
func DefaultBatchOptions() BatchOptions {
	return internalonnx.DefaultBatchOptions()
}

// Compile compiles the graph of a model.
//
// Operators resolve to the highest version not newer than the model's opset
// import for their domain. Errors attributable to one node are *NodeError values.
//
// Example:
//
//	model, err := onnx.Compile(proto)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println("Inputs:", model.InputNames())
//	fmt.Println("Outputs:", model.OutputNames())
//	fmt.Print(model.DisplaySequence())
func Compile(model *ModelProto, opts ...CompileOptions) (Model, error) {
	g, err := internalonnx.Compile(model, opts...)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// CompileGraph compiles a bare graph. Operators resolve to CompileOptions.Opset,
// or to their latest version.
func CompileGraph(graph *GraphProto, opts ...CompileOptions) (Model, error) {
	g, err := internalonnx.CompileGraph(graph, opts...)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// GetModelInfo extracts basic information from a model without compiling it.
//
// Example:
//
//	info := onnx.GetModelInfo(proto)
//	fmt.Printf("Producer: %s\n", info.ProducerName)
//	fmt.Printf("Opset: %d\n", info.OpsetVersion)
//	fmt.Printf("Inputs: %v\n", info.InputNames)
func GetModelInfo(model *ModelProto) *ModelInfo {
	return internalonnx.GetModelInfo(model)
}

// NewRegistry returns a registry holding every built-in operator.
// Pass it, extended with Register, as CompileOptions.Registry.
func NewRegistry() *Registry {
	return operators.NewRegistry()
}

// NewShape describes a tensor value for InferShapes; an int dim is static,
// a string dim symbolic.
func NewShape(name string, dims ...any) *ShapeResult {
	return shapeinfer.New(name, tensor.Undefined, shapeinfer.Dims(dims...)...)
}

// ListSupportedOps returns all built-in operators, prefixed by their domain
// outside the standard one.
//
// Example:
//
//	ops := onnx.ListSupportedOps()
//	for _, op := range ops {
//	    fmt.Println(op)
//	}
func ListSupportedOps() []string {
	return internalonnx.ListSupportedOps()
}
