//go:build !wasm

package operators

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/parallel"
	"github.com/born-ml/graphrt/internal/tensor"
)

// treeRowChunk is the row count below which tree evaluation stays sequential.
const treeRowChunk = 32

// registerMLOps adds the ai.onnx.ml regressors.
func (r *Registry) registerMLOps() {
	r.mustRegister(
		Schema{
			Domain: MLDomain, OpType: "LinearRegressor", SinceVersion: 1, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{
				Absent("coefficients", AttrFloats),
				Absent("intercepts", AttrFloats),
				Optional(IntAttr("targets", 1)),
				Optional(StringAttr("post_transform", "NONE")),
			},
			Construct: newLinearRegressor,
		},
		Schema{
			Domain: MLDomain, OpType: "TreeEnsembleRegressor", SinceVersion: 1, MinInputs: 1, MaxInputs: 1,
			Attributes: []AttrSpec{
				Optional(StringAttr("aggregate_function", "SUM")),
				Absent("base_values", AttrFloats),
				Optional(IntAttr("n_targets", 1)),
				Required("nodes_falsenodeids", AttrInts),
				Required("nodes_featureids", AttrInts),
				Absent("nodes_hitrates", AttrFloats),
				Absent("nodes_missing_value_tracks_true", AttrInts),
				Required("nodes_modes", AttrStrings),
				Required("nodes_nodeids", AttrInts),
				Required("nodes_treeids", AttrInts),
				Required("nodes_truenodeids", AttrInts),
				Required("nodes_values", AttrFloats),
				Optional(StringAttr("post_transform", "NONE")),
				Required("target_ids", AttrInts),
				Required("target_nodeids", AttrInts),
				Required("target_treeids", AttrInts),
				Required("target_weights", AttrFloats),
			},
			Construct: newTreeEnsembleRegressor,
		},
	)
}

// regressorShape is the (N, targets) float32 output of the ML regressors.
func regressorShape(node *Node, targets int) func([]*shapeinfer.ShapeResult, []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
	return func(in []*shapeinfer.ShapeResult, _ []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
		out := node.Outputs[0]
		x := in[0]
		rows := freshDim(out, 0)
		if !x.UnknownRank {
			if len(x.Dims) != 2 {
				return nil, shapeErrorf("%s: input must be 2D, got %s", node.OpType, x)
			}
			rows = x.Dims[0]
		}
		res := shapeinfer.New(out, tensor.Float32, rows, shapeinfer.Concrete(targets))
		res.Constraints = x.Constraints.Copy()
		return single(res, nil)
	}
}

// features returns the rows of a 2D input as float64 values.
func features(op string, x *tensor.RawTensor) ([]float64, int, int, error) {
	switch x.Rank() {
	case 1:
		return tensor.Float64s(x), 1, x.Shape()[0], nil
	case 2:
		return tensor.Float64s(x), x.Shape()[0], x.Shape()[1], nil
	}
	return nil, 0, 0, errors.Errorf("%s: input must be 2D, got shape %v", op, x.Shape())
}

func newLinearRegressor(node *Node, attrs Attrs) (Kernel, error) {
	if _, err := attrs.OneOf("post_transform", "NONE"); err != nil {
		return nil, err
	}
	targets := int(attrs.Int("targets"))
	if targets < 1 {
		return nil, invalidAttr("targets", "must be positive, got %d", targets)
	}
	coef := attrs.Floats("coefficients")
	if len(coef)%targets != 0 {
		return nil, invalidAttr("coefficients", "%d values do not split into %d targets", len(coef), targets)
	}
	intercepts := attrs.Floats("intercepts")
	if len(intercepts) != 0 && len(intercepts) != targets {
		return nil, invalidAttr("intercepts", "expected %d values, got %d", targets, len(intercepts))
	}
	nFeatures := len(coef) / targets
	return &FuncKernel{
		RunFunc: func(_ *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			x, rows, cols, err := features(node.OpType, inputs[0])
			if err != nil {
				return nil, err
			}
			if cols != nFeatures {
				return nil, errors.Errorf("LinearRegressor: expected %d features, got %d", nFeatures, cols)
			}
			y := tensor.MustNewRaw(tensor.Shape{rows, targets}, tensor.Float32)
			out := y.AsFloat32()
			for i := 0; i < rows; i++ {
				row := x[i*cols : (i+1)*cols]
				for t := 0; t < targets; t++ {
					var acc float64
					if len(intercepts) > 0 {
						acc = float64(intercepts[t])
					}
					w := coef[t*nFeatures : (t+1)*nFeatures]
					for j, v := range row {
						acc += float64(w[j]) * v
					}
					out[i*targets+t] = float32(acc)
				}
			}
			return []*tensor.RawTensor{y}, nil
		},
		ShapeFunc: regressorShape(node, targets),
		TypeFunc:  fixedType(tensor.Float32),
	}, nil
}

type branchMode int

const (
	modeLeaf branchMode = iota
	modeLEQ
	modeLT
	modeGTE
	modeGT
	modeEQ
	modeNEQ
)

var branchModes = map[string]branchMode{
	"LEAF":       modeLeaf,
	"BRANCH_LEQ": modeLEQ,
	"BRANCH_LT":  modeLT,
	"BRANCH_GTE": modeGTE,
	"BRANCH_GT":  modeGT,
	"BRANCH_EQ":  modeEQ,
	"BRANCH_NEQ": modeNEQ,
}

type treeNode struct {
	mode         branchMode
	feature      int
	value        float64
	trueNext     int // index into treeEnsemble.nodes
	falseNext    int
	missingTrue  bool
	contribution []leafWeight
}

type leafWeight struct {
	target int
	weight float64
}

type treeAggregate int

const (
	aggSum treeAggregate = iota
	aggAverage
	aggMin
	aggMax
)

// treeEnsemble is the pre-linked form of the flattened nodes_* and target_* arrays.
type treeEnsemble struct {
	nodes     []treeNode
	roots     []int
	targets   int
	aggregate treeAggregate
	base      []float64
	nFeatures int // 1 + the largest feature id
}

type nodeID struct{ tree, node int64 }

func buildTreeEnsemble(attrs Attrs) (*treeEnsemble, error) {
	treeIDs := attrs.Ints("nodes_treeids")
	nodeIDs := attrs.Ints("nodes_nodeids")
	featureIDs := attrs.Ints("nodes_featureids")
	values := attrs.Floats("nodes_values")
	modes := attrs.Strings("nodes_modes")
	trueIDs := attrs.Ints("nodes_truenodeids")
	falseIDs := attrs.Ints("nodes_falsenodeids")
	missing := attrs.Ints("nodes_missing_value_tracks_true")

	n := len(nodeIDs)
	for name, l := range map[string]int{
		"nodes_treeids": len(treeIDs), "nodes_featureids": len(featureIDs), "nodes_values": len(values),
		"nodes_modes": len(modes), "nodes_truenodeids": len(trueIDs), "nodes_falsenodeids": len(falseIDs),
	} {
		if l != n {
			return nil, invalidAttr(name, "has %d entries, nodes_nodeids has %d", l, n)
		}
	}
	if len(missing) != 0 && len(missing) != n {
		return nil, invalidAttr("nodes_missing_value_tracks_true", "has %d entries, expected %d", len(missing), n)
	}

	e := &treeEnsemble{targets: int(attrs.Int("n_targets"))}
	if e.targets < 1 {
		return nil, invalidAttr("n_targets", "must be positive, got %d", e.targets)
	}
	agg, err := attrs.OneOf("aggregate_function", "SUM", "AVERAGE", "MIN", "MAX")
	if err != nil {
		return nil, err
	}
	e.aggregate = map[string]treeAggregate{"SUM": aggSum, "AVERAGE": aggAverage, "MIN": aggMin, "MAX": aggMax}[agg]
	if _, err := attrs.OneOf("post_transform", "NONE"); err != nil {
		return nil, err
	}
	if base := attrs.Floats("base_values"); len(base) > 0 {
		if len(base) != e.targets {
			return nil, invalidAttr("base_values", "expected %d values, got %d", e.targets, len(base))
		}
		for _, b := range base {
			e.base = append(e.base, float64(b))
		}
	}

	index := make(map[nodeID]int, n)
	e.nodes = make([]treeNode, n)
	seenTree := make(map[int64]bool)
	for i := 0; i < n; i++ {
		id := nodeID{treeIDs[i], nodeIDs[i]}
		if _, dup := index[id]; dup {
			return nil, invalidAttr("nodes_nodeids", "node %d of tree %d is defined twice", id.node, id.tree)
		}
		index[id] = i
		mode, ok := branchModes[modes[i]]
		if !ok {
			return nil, invalidAttr("nodes_modes", "unknown mode %q", modes[i])
		}
		e.nodes[i] = treeNode{
			mode:        mode,
			feature:     int(featureIDs[i]),
			value:       float64(values[i]),
			missingTrue: len(missing) > 0 && missing[i] != 0,
		}
		if mode != modeLeaf && featureIDs[i] < 0 {
			return nil, invalidAttr("nodes_featureids", "negative feature %d", featureIDs[i])
		}
		if mode != modeLeaf {
			e.nFeatures = max(e.nFeatures, int(featureIDs[i])+1)
		}
		if !seenTree[id.tree] {
			seenTree[id.tree] = true
			e.roots = append(e.roots, i)
		}
	}
	for i := 0; i < n; i++ {
		if e.nodes[i].mode == modeLeaf {
			continue
		}
		t, ok := index[nodeID{treeIDs[i], trueIDs[i]}]
		if !ok {
			return nil, invalidAttr("nodes_truenodeids", "tree %d has no node %d", treeIDs[i], trueIDs[i])
		}
		f, ok := index[nodeID{treeIDs[i], falseIDs[i]}]
		if !ok {
			return nil, invalidAttr("nodes_falsenodeids", "tree %d has no node %d", treeIDs[i], falseIDs[i])
		}
		e.nodes[i].trueNext, e.nodes[i].falseNext = t, f
	}

	tTrees := attrs.Ints("target_treeids")
	tNodes := attrs.Ints("target_nodeids")
	tIDs := attrs.Ints("target_ids")
	tWeights := attrs.Floats("target_weights")
	if len(tNodes) != len(tTrees) || len(tIDs) != len(tTrees) || len(tWeights) != len(tTrees) {
		return nil, invalidAttr("target_nodeids", "target_* arrays differ in length")
	}
	for i := range tTrees {
		leaf, ok := index[nodeID{tTrees[i], tNodes[i]}]
		if !ok || e.nodes[leaf].mode != modeLeaf {
			return nil, invalidAttr("target_nodeids", "tree %d has no leaf %d", tTrees[i], tNodes[i])
		}
		if tIDs[i] < 0 || int(tIDs[i]) >= e.targets {
			return nil, invalidAttr("target_ids", "target %d out of range [0, %d)", tIDs[i], e.targets)
		}
		e.nodes[leaf].contribution = append(e.nodes[leaf].contribution,
			leafWeight{target: int(tIDs[i]), weight: float64(tWeights[i])})
	}
	return e, nil
}

func (n *treeNode) goesTrue(x float64) bool {
	if math.IsNaN(x) {
		return n.missingTrue
	}
	switch n.mode {
	case modeLEQ:
		return x <= n.value
	case modeLT:
		return x < n.value
	case modeGTE:
		return x >= n.value
	case modeGT:
		return x > n.value
	case modeEQ:
		return x == n.value
	case modeNEQ:
		return x != n.value
	}
	return false
}

// leaf walks one tree from root for a feature row.
func (e *treeEnsemble) leaf(root int, row []float64) *treeNode {
	i := root
	// A malformed tree could loop; no path is longer than the node count.
	for steps := 0; steps <= len(e.nodes); steps++ {
		n := &e.nodes[i]
		if n.mode == modeLeaf {
			return n
		}
		if n.goesTrue(row[n.feature]) {
			i = n.trueNext
		} else {
			i = n.falseNext
		}
	}
	return nil
}

// predict writes the aggregated scores of one row into out.
func (e *treeEnsemble) predict(row []float64, out []float32, scores []float64, hit []bool) error {
	for t := range scores {
		scores[t] = 0
		hit[t] = false
	}
	for _, root := range e.roots {
		leaf := e.leaf(root, row)
		if leaf == nil {
			return errors.New("TreeEnsembleRegressor: tree contains a cycle")
		}
		for _, c := range leaf.contribution {
			switch {
			case !hit[c.target]:
				scores[c.target] = c.weight
			case e.aggregate == aggMin:
				scores[c.target] = math.Min(scores[c.target], c.weight)
			case e.aggregate == aggMax:
				scores[c.target] = math.Max(scores[c.target], c.weight)
			default:
				scores[c.target] += c.weight
			}
			hit[c.target] = true
		}
	}
	for t, s := range scores {
		if e.aggregate == aggAverage {
			s /= float64(len(e.roots))
		}
		if e.base != nil {
			s += e.base[t]
		}
		out[t] = float32(s)
	}
	return nil
}

func newTreeEnsembleRegressor(node *Node, attrs Attrs) (Kernel, error) {
	ensemble, err := buildTreeEnsemble(attrs)
	if err != nil {
		return nil, err
	}
	return &FuncKernel{
		RunFunc: func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
			x, rows, cols, err := features(node.OpType, inputs[0])
			if err != nil {
				return nil, err
			}
			if cols < ensemble.nFeatures {
				return nil, errors.Errorf("TreeEnsembleRegressor: trees read feature %d, input has %d",
					ensemble.nFeatures-1, cols)
			}
			y := tensor.MustNewRaw(tensor.Shape{rows, ensemble.targets}, tensor.Float32)
			out := y.AsFloat32()
			cfg := parallel.DefaultConfig()
			if ctx != nil {
				cfg = ctx.Parallel
			}
			errs := make([]error, rows)
			parallel.ForChunks(rows, func(start, end int) {
				scores := make([]float64, ensemble.targets)
				hit := make([]bool, ensemble.targets)
				for i := start; i < end; i++ {
					errs[i] = ensemble.predict(x[i*cols:(i+1)*cols], out[i*ensemble.targets:(i+1)*ensemble.targets], scores, hit)
				}
			}, cfg.WithMinChunk(treeRowChunk))
			for _, err := range errs {
				if err != nil {
					return nil, err
				}
			}
			return []*tensor.RawTensor{y}, nil
		},
		ShapeFunc: regressorShape(node, ensemble.targets),
		TypeFunc:  fixedType(tensor.Float32),
	}, nil
}
