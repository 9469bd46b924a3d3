//go:build !wasm

package onnx

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"

	"github.com/born-ml/graphrt/internal/onnx/operators"
	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/tensor"
)

// foldLimit bounds the input size of nodes evaluated during shape inference
// to learn constant values, such as the target of a Reshape.
const foldLimit = 4096

// shapeQuery is the state of one InferShapes call.
type shapeQuery struct {
	g           *CompiledGraph
	shapes      map[string]*shapeinfer.ShapeResult
	values      map[string]*tensor.RawTensor
	seeds       map[string]*shapeinfer.ShapeResult
	constraints shapeinfer.Constraints
	unknown     int
}

// InferShapes propagates symbolic shapes through the graph.
// Inputs missing from inputShapes use their declared types.
func (g *CompiledGraph) InferShapes(inputShapes map[string]*shapeinfer.ShapeResult) (map[string]*shapeinfer.ShapeResult, error) {
	shapes, _, err := g.InferShapesWithConstraints(inputShapes)
	return shapes, err
}

// InferShapesWithConstraints is InferShapes that also returns the constraints
// collected on every shape variable.
func (g *CompiledGraph) InferShapesWithConstraints(inputShapes map[string]*shapeinfer.ShapeResult) (
	map[string]*shapeinfer.ShapeResult, shapeinfer.Constraints, error) {
	q := &shapeQuery{
		g:           g,
		shapes:      make(map[string]*shapeinfer.ShapeResult, len(g.slots)),
		values:      make(map[string]*tensor.RawTensor),
		seeds:       make(map[string]*shapeinfer.ShapeResult),
		constraints: shapeinfer.NewConstraints(),
	}
	if err := q.seedInputs(inputShapes); err != nil {
		return nil, nil, err
	}
	for _, inst := range g.instructions {
		if err := q.visit(inst); err != nil {
			return nil, nil, nodeError(inst, err)
		}
	}
	return q.shapes, q.constraints, nil
}

func (q *shapeQuery) fresh() shapeinfer.Dim {
	q.unknown++
	return shapeinfer.Variable(fmt.Sprintf("unk__%d", q.unknown))
}

// declared converts a ValueInfoProto into a ShapeResult; unset dimensions become fresh variables.
func (q *shapeQuery) declared(vi *ValueInfoProto) *shapeinfer.ShapeResult {
	if vi.Type == nil {
		return shapeinfer.NewUnknownRank(vi.Name, tensor.Undefined)
	}
	switch {
	case vi.Type.SequenceType != nil:
		r := shapeinfer.NewUnknownRank(vi.Name, tensor.Undefined)
		r.Kind = shapeinfer.KindSequence
		return r
	case vi.Type.MapType != nil:
		r := shapeinfer.NewUnknownRank(vi.Name, tensor.Undefined)
		r.Kind = shapeinfer.KindMap
		return r
	case vi.Type.TensorType == nil:
		return shapeinfer.NewUnknownRank(vi.Name, tensor.Undefined)
	}
	tt := vi.Type.TensorType
	dtype, ok := operators.DataTypeFromProto(tt.ElemType)
	if !ok {
		dtype = tensor.Undefined
	}
	if tt.Shape == nil {
		return shapeinfer.NewUnknownRank(vi.Name, dtype)
	}
	dims := make([]shapeinfer.Dim, len(tt.Shape.Dims))
	for i, d := range tt.Shape.Dims {
		switch {
		case d.DimParam != "" && d.DimParam != "?":
			dims[i] = shapeinfer.Variable(d.DimParam)
		case d.DimParam == "" && d.DimValue > 0:
			dims[i] = shapeinfer.Concrete(int(d.DimValue))
		default:
			dims[i] = q.fresh()
		}
	}
	return shapeinfer.New(vi.Name, dtype, dims...)
}

func (q *shapeQuery) seedInputs(inputShapes map[string]*shapeinfer.ShapeResult) error {
	g := q.g
	for name := range inputShapes {
		if !g.isGraphInput(name) {
			return errors.Wrapf(ErrUnknownInput, "%q has a shape but is not a graph input", name)
		}
	}
	for i := range g.graph.Initializers {
		name := g.graph.Initializers[i].Name
		v := g.seeded[g.index[name]]
		q.shapes[name] = shapeinfer.FromTensor(name, v)
		q.values[name] = v
	}
	for i := range g.graph.Inputs {
		vi := &g.graph.Inputs[i]
		res := q.declared(vi)
		if given, ok := inputShapes[vi.Name]; ok && given != nil {
			merged := given.Rename(vi.Name)
			if _, err := merged.Merge(res); err != nil {
				return errors.WithMessagef(err, "input %q", vi.Name)
			}
			res = merged
			// A caller shape replaces the initializer value of an optional input.
			delete(q.values, vi.Name)
		} else if _, isInit := q.shapes[vi.Name]; isInit {
			continue
		}
		q.shapes[vi.Name] = res
		if _, err := q.constraints.Merge(res.Constraints); err != nil {
			return errors.WithMessagef(err, "input %q", vi.Name)
		}
	}
	for _, list := range [][]ValueInfoProto{g.graph.Outputs, g.graph.ValueInfo} {
		for i := range list {
			if _, known := q.shapes[list[i].Name]; !known {
				q.seeds[list[i].Name] = q.declared(&list[i])
			}
		}
	}
	return nil
}

func (q *shapeQuery) visit(inst *instruction) error {
	inferer, ok := inst.kernel.(operators.ShapeInferer)
	if !ok {
		return errors.Wrap(shapeinfer.ErrShapeInference, "operator has no shape rule")
	}
	in := make([]*shapeinfer.ShapeResult, len(inst.node.Inputs))
	vals := make([]*tensor.RawTensor, len(inst.node.Inputs))
	for i, name := range inst.node.Inputs {
		if name == "" {
			continue
		}
		in[i] = q.shapes[name]
		vals[i] = q.values[name]
	}

	var (
		outs []*shapeinfer.ShapeResult
		err  error
	)
	if caught := exceptions.TryCatch[error](func() { outs, err = inferer.InferShape(in, vals) }); caught != nil {
		err = errors.Wrapf(shapeinfer.ErrShapeInference, "shape rule panicked: %v", caught)
	}
	if err != nil {
		return err
	}
	if len(outs) < len(inst.node.Outputs) {
		for _, name := range inst.node.Outputs[len(outs):] {
			if name != "" {
				return errors.Wrapf(shapeinfer.ErrShapeInference, "no shape for output %q", name)
			}
		}
	}

	for i, name := range inst.node.Outputs {
		if name == "" {
			continue
		}
		if outs[i] == nil {
			return errors.Wrapf(shapeinfer.ErrShapeInference, "no shape for output %q", name)
		}
		res := outs[i].Rename(name)
		if seed, ok := q.seeds[name]; ok {
			if _, err := res.Merge(seed); err != nil {
				return errors.WithMessagef(err, "output %q", name)
			}
		}
		if _, err := q.constraints.Merge(res.Constraints); err != nil {
			return errors.WithMessagef(err, "output %q", name)
		}
		q.shapes[name] = res
	}
	q.inferValues(inst, in, vals)
	return nil
}

// inferValues records output values known before run time: those a kernel
// derives from shapes, and small nodes whose inputs are all known.
func (q *shapeQuery) inferValues(inst *instruction, in []*shapeinfer.ShapeResult, vals []*tensor.RawTensor) {
	var outs []*tensor.RawTensor
	if vi, ok := inst.kernel.(operators.ValueInferer); ok {
		outs = vi.InferValue(in)
	}
	if outs == nil && len(vals) > 0 {
		size := 0
		for i, v := range vals {
			if v == nil {
				if inst.node.Inputs[i] != "" {
					return
				}
				continue
			}
			size += v.NumElements()
		}
		if size > foldLimit {
			return
		}
		if caught := exceptions.TryCatch[error](func() {
			var err error
			if outs, err = inst.kernel.Run(inst.plain, vals); err != nil {
				outs = nil
			}
		}); caught != nil {
			outs = nil
		}
	}
	for i, name := range inst.node.Outputs {
		if name != "" && i < len(outs) && outs[i] != nil {
			q.values[name] = outs[i]
		}
	}
}

// InferTypes propagates element types through the graph.
// Inputs missing from inputTypes use their declared element types.
func (g *CompiledGraph) InferTypes(inputTypes map[string]tensor.DataType) (map[string]tensor.DataType, error) {
	types := make(map[string]tensor.DataType, len(g.slots))
	for name := range inputTypes {
		if !g.isGraphInput(name) {
			return nil, errors.Wrapf(ErrUnknownInput, "%q has a type but is not a graph input", name)
		}
	}
	for i := range g.graph.Initializers {
		name := g.graph.Initializers[i].Name
		types[name] = g.seeded[g.index[name]].DType()
	}
	for i := range g.graph.Inputs {
		vi := &g.graph.Inputs[i]
		if dt, ok := inputTypes[vi.Name]; ok {
			types[vi.Name] = dt
			continue
		}
		if _, isInit := types[vi.Name]; isInit {
			continue
		}
		types[vi.Name] = tensor.Undefined
		if vi.Type != nil && vi.Type.TensorType != nil {
			if dt, ok := operators.DataTypeFromProto(vi.Type.TensorType.ElemType); ok {
				types[vi.Name] = dt
			}
		}
	}

	for _, inst := range g.instructions {
		in := make([]tensor.DataType, len(inst.node.Inputs))
		for i, name := range inst.node.Inputs {
			in[i] = tensor.Undefined
			if name != "" {
				in[i] = types[name]
			}
		}
		outs, err := inferTypes(inst, in)
		if err != nil {
			return nil, nodeError(inst, err)
		}
		for i, name := range inst.node.Outputs {
			if name == "" {
				continue
			}
			if i >= len(outs) {
				return nil, nodeError(inst, errors.Wrapf(shapeinfer.ErrShapeInference, "no type for output %q", name))
			}
			types[name] = outs[i]
		}
	}
	return types, nil
}

// inferTypes uses the type rule of a kernel, or the dtypes of its shape rule.
func inferTypes(inst *instruction, in []tensor.DataType) ([]tensor.DataType, error) {
	if ti, ok := inst.kernel.(operators.TypeInferer); ok {
		return ti.InferType(in)
	}
	si, ok := inst.kernel.(operators.ShapeInferer)
	if !ok {
		return nil, errors.Wrap(shapeinfer.ErrShapeInference, "operator has neither a type nor a shape rule")
	}
	shapes := make([]*shapeinfer.ShapeResult, len(in))
	for i, dt := range in {
		shapes[i] = shapeinfer.NewUnknownRank(fmt.Sprintf("in%d", i), dt)
	}
	res, err := si.InferShape(shapes, make([]*tensor.RawTensor, len(in)))
	if err != nil {
		return nil, err
	}
	out := make([]tensor.DataType, len(res))
	for i, r := range res {
		out[i] = r.DType
	}
	return out, nil
}
