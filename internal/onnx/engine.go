//go:build !wasm

package onnx

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/graphrt/internal/onnx/operators"
	"github.com/born-ml/graphrt/internal/tensor"
)

// NodeTiming is the wall time of one instruction.
type NodeTiming struct {
	Order    int
	Name     string
	OpType   string
	Duration time.Duration
}

// RunResult holds the values produced by one run.
type RunResult struct {
	// Outputs maps every graph output to its value. Callers own these tensors.
	Outputs map[string]*tensor.RawTensor

	// Intermediates maps every slot holding a value at the end of the run.
	// Set only in intermediate mode; the tensors may share buffers with the graph.
	Intermediates map[string]*tensor.RawTensor

	// Timings is set when RunOptions.Timing is.
	Timings []NodeTiming
}

// previewLimit bounds the values printed at verbose level 3.
const previewLimit = 8

// Run executes the graph on named inputs.
//
// The logger comes from ctx (klog.FromContext); ctx is not checked for cancellation.
func (g *CompiledGraph) Run(ctx context.Context, inputs map[string]*tensor.RawTensor, opts ...RunOptions) (*RunResult, error) {
	opt := firstOr(opts, DefaultRunOptions)
	if err := g.checkInputs(inputs); err != nil {
		return nil, err
	}

	logger := klog.FromContext(ctx)
	if opt.Verbose >= 1 {
		logger.Info("run", "graph", g.graph.Name, "instructions", len(g.instructions))
	}

	values := slices.Clone(g.seeded)
	if opt.Verbose >= 2 {
		for s, v := range values {
			if v != nil {
				traceValue(logger, opt.Verbose, "+ki", g.slots[s].Name, v)
			}
		}
	}
	for _, name := range g.sortedInputNames(inputs) {
		s := g.index[name]
		values[s] = inputs[name]
		if opt.Verbose >= 2 {
			traceValue(logger, opt.Verbose, "-kv", name, values[s])
		}
	}

	result := &RunResult{}
	release := opt.ReleaseIntermediates && !opt.Intermediate
	for _, inst := range g.instructions {
		if opt.Verbose >= 1 {
			logger.Info("node", "order", inst.Order, "name", inst.Name, "op", inst.OpType)
		}
		kctx := inst.inplace
		if opt.Intermediate {
			kctx = inst.plain
		}

		ins := make([]*tensor.RawTensor, len(inst.Inputs))
		for i, s := range inst.Inputs {
			if s >= 0 {
				ins[i] = values[s]
			}
		}

		start := time.Now()
		outs, err := runKernel(inst, kctx, ins)
		if opt.Timing {
			result.Timings = append(result.Timings, NodeTiming{
				Order: inst.Order, Name: inst.Name, OpType: inst.OpType, Duration: time.Since(start),
			})
		}
		if err != nil {
			return nil, err
		}

		for i, s := range inst.Outputs {
			if s < 0 {
				continue
			}
			values[s] = outs[i]
			if opt.Verbose >= 2 {
				traceValue(logger, opt.Verbose, "+kr", g.slots[s].Name, outs[i])
			}
		}

		if release {
			for _, s := range inst.release {
				values[s] = nil
				if opt.Verbose >= 2 {
					logger.Info("-kc", "name", g.slots[s].Name)
				}
			}
		}
	}

	result.Outputs = make(map[string]*tensor.RawTensor, len(g.outputNames))
	for _, name := range g.outputNames {
		v := values[g.index[name]]
		if v == nil {
			return nil, errors.Wrapf(ErrMissingOutput, "%q", name)
		}
		if !v.IsUnique() {
			// Shared with an initializer, a constant kernel or another slot.
			v = v.Copy()
		}
		result.Outputs[name] = v
	}
	if opt.Intermediate {
		result.Intermediates = make(map[string]*tensor.RawTensor, len(values))
		for s, v := range values {
			if v != nil {
				result.Intermediates[g.slots[s].Name] = v
			}
		}
		for name, v := range result.Outputs {
			result.Intermediates[name] = v
		}
	}
	return result, nil
}

// runKernel invokes a kernel, turning errors and panics into ErrKernelExecution.
func runKernel(inst *instruction, kctx *operators.Context, ins []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	var (
		outs   []*tensor.RawTensor
		runErr error
	)
	if err := exceptions.TryCatch[error](func() { outs, runErr = inst.kernel.Run(kctx, ins) }); err != nil {
		runErr = errors.WithMessage(err, "panic")
	}
	if runErr != nil {
		return nil, nodeError(inst, errors.Wrapf(ErrKernelExecution, "%v", runErr))
	}
	want := 0
	for i, s := range inst.Outputs {
		if s >= 0 {
			want = i + 1
		}
	}
	if len(outs) < want {
		return nil, nodeError(inst, errors.Wrapf(ErrKernelExecution,
			"kernel returned %d outputs, node declares %d", len(outs), want))
	}
	for i, s := range inst.Outputs {
		if s >= 0 && outs[i] == nil {
			return nil, nodeError(inst, errors.Wrapf(ErrKernelExecution, "output %d is nil", i))
		}
	}
	return outs, nil
}

func traceValue(logger logr.Logger, verbose int, key, name string, v *tensor.RawTensor) {
	s := tensor.Summarize(v)
	kv := []any{"name", name, "shape", []int(s.Shape), "dtype", s.DType.String(), "min", s.Min, "max", s.Max}
	if verbose >= 3 {
		kv = append(kv, "values", tensor.Preview(v, previewLimit))
	}
	logger.Info(key, kv...)
}

// checkInputs rejects unknown names and reports every missing required input.
func (g *CompiledGraph) checkInputs(inputs map[string]*tensor.RawTensor) error {
	var unknown []string
	for name := range inputs {
		if !g.isGraphInput(name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return errors.Wrapf(ErrUnknownInput, "%q", unknown)
	}

	var missing []string
	for _, name := range g.inputNames {
		if inputs[name] == nil {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(ErrMissingInput, "%q", missing)
	}
	return nil
}

// sortedInputNames returns the supplied names with a value, in slot order.
func (g *CompiledGraph) sortedInputNames(inputs map[string]*tensor.RawTensor) []string {
	names := make([]string, 0, len(inputs))
	for name, v := range inputs {
		if v != nil {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return g.index[names[i]] < g.index[names[j]] })
	return names
}

// ForwardNamed runs inference with named inputs.
// Returns a map of output name to tensor.
func (g *CompiledGraph) ForwardNamed(inputs map[string]*tensor.RawTensor) (map[string]*tensor.RawTensor, error) {
	res, err := g.Run(context.Background(), inputs)
	if err != nil {
		return nil, err
	}
	return res.Outputs, nil
}

// Forward runs inference with a single input tensor.
// For graphs with several inputs or outputs, use ForwardNamed.
func (g *CompiledGraph) Forward(input *tensor.RawTensor) (*tensor.RawTensor, error) {
	if len(g.inputNames) != 1 {
		return nil, errors.Errorf("graph has %d inputs, use ForwardNamed", len(g.inputNames))
	}
	if len(g.outputNames) != 1 {
		return nil, errors.Errorf("graph has %d outputs, use ForwardNamed", len(g.outputNames))
	}
	outputs, err := g.ForwardNamed(map[string]*tensor.RawTensor{g.inputNames[0]: input})
	if err != nil {
		return nil, err
	}
	return outputs[g.outputNames[0]], nil
}
