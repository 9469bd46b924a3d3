package onnx

import (
	"context"

	"github.com/born-ml/graphrt/internal/tensor"
)

// Model is a compiled graph ready for execution.
//
// This interface hides the internal implementation and allows for:
//   - Easy mocking in tests
//   - Multiple implementations (e.g., optimized versions)
//   - Decoupling from internal package structure
//
// A Model is immutable after Compile and safe for concurrent use.
type Model interface {
	// Run evaluates the graph on named inputs.
	//
	// Every name in InputNames must be supplied; names in OptionalInputNames
	// override their initializer. Any other name fails with ErrUnknownInput.
	// The logger is taken from ctx (klog.FromContext) and used only when
	// RunOptions.Verbose is set.
	Run(ctx context.Context, inputs map[string]*tensor.RawTensor, opts ...RunOptions) (*RunResult, error)

	// RunBatch runs the graph once per input set, concurrently.
	RunBatch(ctx context.Context, batch []map[string]*tensor.RawTensor, opts BatchOptions, runOpts ...RunOptions) ([]*RunResult, error)

	// Forward runs inference with a single input tensor.
	// For models with multiple inputs, use ForwardNamed.
	//
	// Returns an error if the model does not have exactly one input
	// or one output. In such cases, use ForwardNamed instead.
	Forward(input *tensor.RawTensor) (*tensor.RawTensor, error)

	// ForwardNamed runs inference with named inputs.
	// Returns a map of output name to tensor.
	//
	// Example:
	//
	//	inputs := map[string]*tensor.RawTensor{
	//	    "input_ids": inputIDs,
	//	    "attention_mask": attentionMask,
	//	}
	//	outputs, err := model.ForwardNamed(inputs)
	//	if err != nil {
	//	    log.Fatal(err)
	//	}
	//	logits := outputs["logits"]
	ForwardNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error)

	// InferShapes propagates symbolic shapes from the inputs to every value.
	// Inputs missing from inputShapes use their declared types.
	InferShapes(inputShapes map[string]*ShapeResult) (map[string]*ShapeResult, error)

	// InferTypes propagates element types from the inputs to every value.
	InferTypes(inputTypes map[string]tensor.DataType) (map[string]tensor.DataType, error)

	// InputNames returns the inputs a caller must supply.
	InputNames() []string

	// OptionalInputNames returns the inputs backed by an initializer.
	OptionalInputNames() []string

	// OutputNames returns the names of model outputs.
	OutputNames() []string

	// OpsetVersion returns the opset resolved for a domain ("" for the
	// standard operators), 0 when operators resolve to their latest version.
	OpsetVersion(domain string) int64

	// Metadata returns model metadata as key-value pairs.
	//
	// Common metadata keys:
	//   - "producer_name": Framework that exported the model (e.g., "pytorch")
	//   - "producer_version": Version of the exporter
	//   - "domain": Domain of the model (usually "")
	//   - Custom keys from model.metadata_props
	Metadata() map[string]string

	// DisplaySequence renders the execution order, one instruction per line.
	DisplaySequence() string
}
