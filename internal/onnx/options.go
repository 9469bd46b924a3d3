//go:build !wasm

package onnx

import (
	"runtime"

	"github.com/born-ml/graphrt/internal/onnx/operators"
	"github.com/born-ml/graphrt/internal/parallel"
)

// CompileOptions configures graph compilation.
// Start from DefaultCompileOptions: the zero value disables in-place reuse.
type CompileOptions struct {
	// Inplace lets kernels overwrite dead intermediate buffers (default: true).
	Inplace bool

	// InputInplace also lets kernels overwrite caller-supplied input buffers
	// consumed exactly once (default: false).
	InputInplace bool

	// Registry resolves operators (default: operators.NewRegistry()).
	Registry *operators.Registry

	// CustomOps are registered on a copy of Registry before compilation.
	CustomOps []operators.Schema

	// Opset overrides the model's opset imports per domain.
	// A domain without a version resolves to the latest registered operator.
	Opset map[string]int64

	// Parallel configures data-parallel loops inside heavy kernels.
	Parallel parallel.Config
}

// DefaultCompileOptions returns default compilation options.
func DefaultCompileOptions() CompileOptions {
	return CompileOptions{
		Inplace:  true,
		Parallel: parallel.DefaultConfig(),
	}
}

// RunOptions configures one execution.
type RunOptions struct {
	// Intermediate returns every slot value and disables buffer reuse for the run.
	Intermediate bool

	// Timing records the wall time of every instruction.
	Timing bool

	// Verbose sets the trace level written to the context logger:
	// 1 lists the instructions, 2 adds value summaries, 3 adds value previews.
	Verbose int

	// ReleaseIntermediates drops intermediate values after their last use.
	// Ignored in intermediate mode.
	ReleaseIntermediates bool
}

// DefaultRunOptions returns options for a plain run.
func DefaultRunOptions() RunOptions {
	return RunOptions{}
}

// BatchOptions configures RunBatch.
type BatchOptions struct {
	// Workers bounds the number of concurrent runs (default: runtime.NumCPU()).
	Workers int
}

// DefaultBatchOptions returns default batch options.
func DefaultBatchOptions() BatchOptions {
	return BatchOptions{Workers: runtime.NumCPU()}
}

func firstOr[T any](opts []T, def func() T) T {
	if len(opts) > 0 {
		return opts[0]
	}
	return def()
}

// ModelInfo contains basic information about a model without compiling it.
type ModelInfo struct {
	IRVersion       int64
	OpsetVersion    int64
	ProducerName    string
	ProducerVersion string
	InputNames      []string
	OutputNames     []string
	NodeCount       int
	WeightCount     int
}

// GetModelInfo extracts basic info from a model description.
func GetModelInfo(proto *ModelProto) *ModelInfo {
	info := &ModelInfo{
		IRVersion:       proto.IRVersion,
		OpsetVersion:    opsetVersions(proto)[operators.DefaultDomain],
		ProducerName:    proto.ProducerName,
		ProducerVersion: proto.ProducerVersion,
	}

	if proto.Graph != nil {
		info.InputNames, _ = graphInputs(proto.Graph)
		for _, output := range proto.Graph.Outputs {
			info.OutputNames = append(info.OutputNames, output.Name)
		}
		info.NodeCount = len(proto.Graph.Nodes)
		info.WeightCount = len(proto.Graph.Initializers)
	}

	return info
}

// opsetVersions maps each imported domain to its version.
func opsetVersions(proto *ModelProto) map[string]int64 {
	versions := make(map[string]int64)
	if proto == nil {
		return versions
	}
	for _, opset := range proto.OpsetImport {
		versions[operators.NormalizeDomain(opset.Domain)] = opset.Version
	}
	return versions
}

// graphInputs splits graph inputs into required ones and those backed by an initializer.
func graphInputs(graph *GraphProto) (required, optional []string) {
	initNames := make(map[string]bool, len(graph.Initializers))
	for i := range graph.Initializers {
		initNames[graph.Initializers[i].Name] = true
	}
	for i := range graph.Inputs {
		name := graph.Inputs[i].Name
		if initNames[name] {
			optional = append(optional, name)
		} else {
			required = append(required, name)
		}
	}
	return required, optional
}

// ListSupportedOps returns all built-in operators.
func ListSupportedOps() []string {
	return operators.NewRegistry().SupportedOps()
}
