//go:build !wasm

package onnx

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/graphrt/internal/onnx/operators"
	"github.com/born-ml/graphrt/internal/tensor"
)

// SlotKind tells where the value of a slot comes from.
type SlotKind int

// Slot kinds.
const (
	SlotInput SlotKind = iota
	SlotConstant
	SlotIntermediate
)

// String returns the kind name.
func (k SlotKind) String() string {
	switch k {
	case SlotInput:
		return "input"
	case SlotConstant:
		return "constant"
	case SlotIntermediate:
		return "intermediate"
	}
	return "unknown"
}

// SlotInfo describes one named value of a compiled graph.
//
// Inplace marks a value owned by its producer and borrowed by
// Consumers[0], which may overwrite its buffer.
type SlotInfo struct {
	Name      string
	Kind      SlotKind
	IsOutput  bool
	Producer  int   // instruction order, -1 for inputs and constants
	Consumers []int // instruction orders, one entry per use
	Inplace   bool
	LastUse   int // last consuming instruction, -1 when unused
}

// Instruction is one compiled node.
type Instruction struct {
	Order   int
	Name    string
	OpType  string
	Domain  string
	Version int64 // SinceVersion of the resolved operator schema
	Inputs  []int // slot indices, -1 for an omitted optional input
	Outputs []int // slot indices, -1 for an unused optional output

	// OverwritableInputs[i] is set when the kernel may reuse the buffer of input i.
	OverwritableInputs []bool
}

// instruction carries the bound kernel with its precomputed contexts.
type instruction struct {
	Instruction
	node    *operators.Node
	schema  *operators.Schema
	kernel  operators.Kernel
	inplace *operators.Context
	plain   *operators.Context
	release []int // intermediate slots whose last use is this instruction
}

// CompiledGraph is an immutable, executable form of a graph.
// It is safe for concurrent use by multiple goroutines.
type CompiledGraph struct {
	model *ModelProto
	graph *GraphProto
	opts  CompileOptions
	opset map[string]int64

	slots        []SlotInfo
	index        map[string]int
	seeded       []*tensor.RawTensor // initializer values, nil elsewhere
	instructions []*instruction

	inputNames     []string // required graph inputs
	optionalInputs []string // graph inputs backed by an initializer
	outputNames    []string
}

// Compile compiles the graph of a model, resolving operator versions from its opset imports.
func Compile(model *ModelProto, opts ...CompileOptions) (*CompiledGraph, error) {
	if model == nil || model.Graph == nil {
		return nil, errors.New("model has no graph")
	}
	return compile(model, model.Graph, firstOr(opts, DefaultCompileOptions))
}

// CompileGraph compiles a bare graph. Operators resolve to CompileOptions.Opset,
// or to their latest version.
func CompileGraph(graph *GraphProto, opts ...CompileOptions) (*CompiledGraph, error) {
	if graph == nil {
		return nil, errors.New("graph is nil")
	}
	return compile(nil, graph, firstOr(opts, DefaultCompileOptions))
}

func compile(model *ModelProto, graph *GraphProto, opts CompileOptions) (*CompiledGraph, error) {
	registry, err := buildRegistry(opts)
	if err != nil {
		return nil, err
	}
	g := &CompiledGraph{
		model: model,
		graph: graph,
		opts:  opts,
		opset: opsetVersions(model),
		index: make(map[string]int),
	}
	for domain, v := range opts.Opset {
		g.opset[operators.NormalizeDomain(domain)] = v
	}
	g.inputNames, g.optionalInputs = graphInputs(graph)
	for _, out := range graph.Outputs {
		g.outputNames = append(g.outputNames, out.Name)
	}

	if err := g.assignSlots(); err != nil {
		return nil, err
	}
	if err := g.seedInitializers(); err != nil {
		return nil, err
	}
	order, err := g.orderNodes()
	if err != nil {
		return nil, err
	}
	if err := g.buildInstructions(registry, order); err != nil {
		return nil, err
	}
	g.analyzeUses()
	if opts.Inplace {
		g.analyzeInplace()
	}
	g.buildContexts()

	klog.V(4).InfoS("compiled graph", "graph", graph.Name, "slots", len(g.slots),
		"instructions", len(g.instructions), "inplace", g.InplaceNames())
	return g, nil
}

func buildRegistry(opts CompileOptions) (*operators.Registry, error) {
	registry := opts.Registry
	if registry == nil {
		registry = operators.NewRegistry()
	}
	if len(opts.CustomOps) == 0 {
		return registry, nil
	}
	registry = registry.Clone()
	for _, s := range opts.CustomOps {
		if err := registry.Register(s); err != nil {
			return nil, errors.WithMessage(err, "custom operator")
		}
	}
	return registry, nil
}

func (g *CompiledGraph) addSlot(name string, kind SlotKind) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	g.index[name] = len(g.slots)
	g.slots = append(g.slots, SlotInfo{Name: name, Kind: kind, Producer: -1, LastUse: -1})
	return len(g.slots) - 1
}

// assignSlots numbers every value: inputs, outputs, initializers, then node outputs.
func (g *CompiledGraph) assignSlots() error {
	for _, in := range g.graph.Inputs {
		g.addSlot(in.Name, SlotInput)
	}
	for _, out := range g.graph.Outputs {
		i := g.addSlot(out.Name, SlotIntermediate)
		g.slots[i].IsOutput = true
	}
	for i := range g.graph.Initializers {
		s := g.addSlot(g.graph.Initializers[i].Name, SlotConstant)
		g.slots[s].Kind = SlotConstant
	}

	produced := make(map[string]int)
	for n := range g.graph.Nodes {
		node := &g.graph.Nodes[n]
		for _, out := range node.Outputs {
			if out == "" {
				continue
			}
			if prev, dup := produced[out]; dup {
				return errors.Wrapf(ErrDuplicateOutput, "%q is produced by nodes %q and %q",
					out, g.nodeName(prev), g.nodeName(n))
			}
			if s, ok := g.index[out]; ok && g.slots[s].Kind != SlotIntermediate {
				return errors.Wrapf(ErrDuplicateOutput, "node %q overwrites %s %q",
					g.nodeName(n), g.slots[s].Kind, out)
			}
			produced[out] = n
			g.addSlot(out, SlotIntermediate)
		}
	}
	return nil
}

// nodeName returns the node name, or a synthetic "<op_type>_<index>" when unset.
func (g *CompiledGraph) nodeName(n int) string {
	node := &g.graph.Nodes[n]
	if node.Name != "" {
		return node.Name
	}
	return fmt.Sprintf("%s_%d", node.OpType, n)
}

func (g *CompiledGraph) seedInitializers() error {
	g.seeded = make([]*tensor.RawTensor, len(g.slots))
	for i := range g.graph.Initializers {
		init := &g.graph.Initializers[i]
		t, err := tensorFromProto(init)
		if err != nil {
			return errors.WithMessagef(err, "failed to load initializer %q", init.Name)
		}
		g.seeded[g.index[init.Name]] = t
	}
	return nil
}

// orderNodes repeatedly schedules, in source order, every node whose inputs
// are all available, until no node makes progress.
func (g *CompiledGraph) orderNodes() ([]int, error) {
	nodes := g.graph.Nodes
	available := make(map[string]bool, len(g.slots))
	for _, in := range g.graph.Inputs {
		available[in.Name] = true
	}
	for i := range g.graph.Initializers {
		available[g.graph.Initializers[i].Name] = true
	}

	ready := func(node *NodeProto) bool {
		for _, in := range node.Inputs {
			if in != "" && !available[in] {
				return false
			}
		}
		return true
	}

	order := make([]int, 0, len(nodes))
	done := make([]bool, len(nodes))
	for progress := true; progress; {
		progress = false
		for n := range nodes {
			if done[n] || !ready(&nodes[n]) {
				continue
			}
			done[n] = true
			progress = true
			order = append(order, n)
			for _, out := range nodes[n].Outputs {
				if out != "" {
					available[out] = true
				}
			}
		}
	}

	for n := range nodes {
		if done[n] {
			continue
		}
		var missing []string
		for _, in := range nodes[n].Inputs {
			if in != "" && !available[in] {
				missing = append(missing, in)
			}
		}
		return nil, &NodeError{
			Node:   g.nodeName(n),
			OpType: nodes[n].OpType,
			Err:    errors.Wrapf(ErrGraphCycleOrMissingInput, "inputs %q are never produced", missing),
		}
	}
	for _, out := range g.outputNames {
		if !available[out] {
			return nil, errors.Wrapf(ErrGraphCycleOrMissingInput, "output %q is never produced", out)
		}
	}
	return order, nil
}

func (g *CompiledGraph) slotList(names []string) []int {
	out := make([]int, len(names))
	for i, name := range names {
		if name == "" {
			out[i] = -1
			continue
		}
		out[i] = g.index[name]
	}
	return out
}

func (g *CompiledGraph) buildInstructions(registry *operators.Registry, order []int) error {
	for pos, n := range order {
		proto := &g.graph.Nodes[n]
		inst := &instruction{Instruction: Instruction{
			Order:   pos,
			Name:    g.nodeName(n),
			OpType:  proto.OpType,
			Domain:  operators.NormalizeDomain(proto.Domain),
			Inputs:  g.slotList(proto.Inputs),
			Outputs: g.slotList(proto.Outputs),
		}}
		node, err := nodeFromProto(proto, inst.Name)
		if err != nil {
			return nodeError(inst, err)
		}
		kernel, schema, err := registry.New(node, g.opset[inst.Domain])
		if err != nil {
			return nodeError(inst, err)
		}
		inst.node, inst.kernel, inst.schema = node, kernel, schema
		inst.Version = schema.SinceVersion
		inst.OverwritableInputs = make([]bool, len(inst.Inputs))
		for _, s := range inst.Outputs {
			if s >= 0 {
				g.slots[s].Producer = pos
			}
		}
		g.instructions = append(g.instructions, inst)
	}
	return nil
}

func (g *CompiledGraph) analyzeUses() {
	for _, inst := range g.instructions {
		for _, s := range inst.Inputs {
			if s < 0 {
				continue
			}
			g.slots[s].Consumers = append(g.slots[s].Consumers, inst.Order)
			g.slots[s].LastUse = inst.Order
		}
	}
	for s, info := range g.slots {
		if info.Kind == SlotIntermediate && !info.IsOutput && info.LastUse >= 0 {
			inst := g.instructions[info.LastUse]
			inst.release = append(inst.release, s)
		}
	}
}

// analyzeInplace marks values consumed exactly once that nobody else can observe.
func (g *CompiledGraph) analyzeInplace() {
	for s := range g.slots {
		info := &g.slots[s]
		if len(info.Consumers) != 1 || info.IsOutput || !g.canOverwrite(s) {
			continue
		}
		info.Inplace = true
		inst := g.instructions[info.Consumers[0]]
		for i, in := range inst.Inputs {
			if in == s {
				inst.OverwritableInputs[i] = true
			}
		}
	}
}

func (g *CompiledGraph) canOverwrite(s int) bool {
	info := &g.slots[s]
	switch info.Kind {
	case SlotConstant:
		return false
	case SlotInput:
		return g.opts.InputInplace
	}
	if info.Producer < 0 {
		return false
	}
	return !g.instructions[info.Producer].schema.NoCopy
}

func (g *CompiledGraph) buildContexts() {
	for _, inst := range g.instructions {
		inst.inplace = &operators.Context{Overwritable: inst.OverwritableInputs, Parallel: g.opts.Parallel}
		inst.plain = &operators.Context{Parallel: g.opts.Parallel}
	}
}

// Sequence returns copies of the instructions in execution order.
func (g *CompiledGraph) Sequence() []Instruction {
	out := make([]Instruction, len(g.instructions))
	for i, inst := range g.instructions {
		c := inst.Instruction
		c.Inputs = append([]int(nil), inst.Inputs...)
		c.Outputs = append([]int(nil), inst.Outputs...)
		c.OverwritableInputs = append([]bool(nil), inst.OverwritableInputs...)
		out[i] = c
	}
	return out
}

// Slots returns copies of the slot table, indexed by slot.
func (g *CompiledGraph) Slots() []SlotInfo {
	out := make([]SlotInfo, len(g.slots))
	for i, s := range g.slots {
		s.Consumers = append([]int(nil), s.Consumers...)
		out[i] = s
	}
	return out
}

// SlotIndex returns the slot of a named value.
func (g *CompiledGraph) SlotIndex(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

// InplaceNames returns the values whose buffers may be overwritten, in slot order.
func (g *CompiledGraph) InplaceNames() []string {
	var names []string
	for _, s := range g.slots {
		if s.Inplace {
			names = append(names, s.Name)
		}
	}
	return names
}

// DisplaySequence renders one line per instruction: "order: op_type(name) in -> out".
func (g *CompiledGraph) DisplaySequence() string {
	var sb strings.Builder
	names := func(slots []int) string {
		parts := make([]string, len(slots))
		for i, s := range slots {
			if s >= 0 {
				parts[i] = g.slots[s].Name
			}
		}
		return strings.Join(parts, ", ")
	}
	for _, inst := range g.instructions {
		fmt.Fprintf(&sb, "%d: %s(%s) %s -> %s\n", inst.Order, inst.OpType, inst.Name,
			names(inst.Inputs), names(inst.Outputs))
	}
	return sb.String()
}
