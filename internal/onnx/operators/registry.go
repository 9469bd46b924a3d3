//go:build !wasm

package operators

import (
	"slices"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/born-ml/graphrt/internal/onnx/shapeinfer"
	"github.com/born-ml/graphrt/internal/parallel"
	"github.com/born-ml/graphrt/internal/tensor"
)

// DefaultDomain is the canonical name of the standard ONNX operator set.
const DefaultDomain = ""

// MLDomain is the ONNX-ML operator set.
const MLDomain = "ai.onnx.ml"

// NormalizeDomain maps "ai.onnx" to the default domain.
func NormalizeDomain(domain string) string {
	if domain == "ai.onnx" {
		return DefaultDomain
	}
	return domain
}

// Context carries per-instruction execution settings into a kernel.
type Context struct {
	// Overwritable[i] is set when input i is dead after this kernel and its
	// buffer may hold an output.
	Overwritable []bool

	// Parallel configures data-parallel loops inside heavy kernels.
	Parallel parallel.Config
}

// Reusable returns inputs[i] when the kernel may write its result there.
func (c *Context) Reusable(inputs []*tensor.RawTensor, i int) *tensor.RawTensor {
	if c == nil || i >= len(c.Overwritable) || i >= len(inputs) || !c.Overwritable[i] {
		return nil
	}
	return inputs[i]
}

// Kernel is an operator bound to the attributes of one node.
type Kernel interface {
	Run(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)
}

// ShapeInferer is implemented by kernels that can infer symbolic output shapes.
// values holds the constant value of an input when known, nil otherwise.
type ShapeInferer interface {
	InferShape(inputs []*shapeinfer.ShapeResult, values []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error)
}

// TypeInferer is implemented by kernels that can infer output element types.
type TypeInferer interface {
	InferType(inputs []tensor.DataType) ([]tensor.DataType, error)
}

// ValueInferer is implemented by kernels whose outputs can be known from
// input shapes alone, such as Shape.
type ValueInferer interface {
	InferValue(inputs []*shapeinfer.ShapeResult) []*tensor.RawTensor
}

// FuncKernel assembles a Kernel from functions.
type FuncKernel struct {
	RunFunc   func(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error)
	ShapeFunc func(inputs []*shapeinfer.ShapeResult, values []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error)
	TypeFunc  func(inputs []tensor.DataType) ([]tensor.DataType, error)
	ValueFunc func(inputs []*shapeinfer.ShapeResult) []*tensor.RawTensor
}

// Run implements Kernel.
func (k *FuncKernel) Run(ctx *Context, inputs []*tensor.RawTensor) ([]*tensor.RawTensor, error) {
	return k.RunFunc(ctx, inputs)
}

// InferShape implements ShapeInferer.
func (k *FuncKernel) InferShape(inputs []*shapeinfer.ShapeResult, values []*tensor.RawTensor) ([]*shapeinfer.ShapeResult, error) {
	if k.ShapeFunc == nil {
		return nil, errors.Wrap(shapeinfer.ErrShapeInference, "no shape rule")
	}
	return k.ShapeFunc(inputs, values)
}

// InferType implements TypeInferer.
func (k *FuncKernel) InferType(inputs []tensor.DataType) ([]tensor.DataType, error) {
	if k.TypeFunc == nil {
		return nil, errors.Wrap(shapeinfer.ErrShapeInference, "no type rule")
	}
	return k.TypeFunc(inputs)
}

// InferValue implements ValueInferer. It returns nil when no value is known.
func (k *FuncKernel) InferValue(inputs []*shapeinfer.ShapeResult) []*tensor.RawTensor {
	if k.ValueFunc == nil {
		return nil
	}
	return k.ValueFunc(inputs)
}

// Schema describes one version of an operator.
type Schema struct {
	Domain       string
	OpType       string
	SinceVersion int64

	// MinInputs and MaxInputs bound the input count; MaxInputs < 0 means variadic.
	MinInputs, MaxInputs int
	// MinOutputs and MaxOutputs bound the output count.
	MinOutputs, MaxOutputs int

	Attributes []AttrSpec

	// NoCopy marks operators whose outputs alias kernel state, such as Constant.
	// Their outputs are never overwritten in place.
	NoCopy bool

	// Construct binds validated attributes into a kernel.
	Construct func(node *Node, attrs Attrs) (Kernel, error)
}

func (s *Schema) checkArity(node *Node) error {
	n := len(node.Inputs)
	if n < s.MinInputs || (s.MaxInputs >= 0 && n > s.MaxInputs) {
		return errors.Wrapf(ErrInvalidNode, "%s-%d takes %s inputs, got %d",
			s.OpType, s.SinceVersion, arity(s.MinInputs, s.MaxInputs), n)
	}
	n = len(node.Outputs)
	if n < s.MinOutputs || (s.MaxOutputs >= 0 && n > s.MaxOutputs) {
		return errors.Wrapf(ErrInvalidNode, "%s-%d produces %s outputs, got %d",
			s.OpType, s.SinceVersion, arity(s.MinOutputs, s.MaxOutputs), n)
	}
	return nil
}

func arity(lo, hi int) string {
	switch {
	case hi < 0:
		return strconv.Itoa(lo) + " or more"
	case lo == hi:
		return strconv.Itoa(lo)
	}
	return strconv.Itoa(lo) + " to " + strconv.Itoa(hi)
}

type opKey struct {
	domain string
	opType string
}

// Registry maps operator (domain, type) pairs to their versioned schemas.
// A Registry is not safe for concurrent registration; lookups are read-only.
type Registry struct {
	schemas map[opKey][]*Schema // sorted by SinceVersion
}

// NewRegistry creates a new operator registry with all supported operators.
func NewRegistry() *Registry {
	r := NewEmptyRegistry()

	r.registerMathOps()
	r.registerActivations()
	r.registerShapeOps()
	r.registerUtilityOps()
	r.registerReduceOps()
	r.registerMLOps()

	return r
}

// NewEmptyRegistry creates a registry without built-in operators.
func NewEmptyRegistry() *Registry {
	return &Registry{schemas: make(map[opKey][]*Schema)}
}

// Register adds an operator version. Registering the same version twice fails.
func (r *Registry) Register(s Schema) error {
	if s.OpType == "" || s.Construct == nil {
		return errors.Errorf("schema for %q needs an op type and a Construct function", s.OpType)
	}
	if s.SinceVersion < 1 {
		s.SinceVersion = 1
	}
	if s.MaxOutputs == 0 && s.MinOutputs == 0 {
		s.MinOutputs, s.MaxOutputs = 1, 1
	}
	s.Domain = NormalizeDomain(s.Domain)
	key := opKey{s.Domain, s.OpType}
	versions := r.schemas[key]
	for _, v := range versions {
		if v.SinceVersion == s.SinceVersion {
			return errors.Errorf("operator %s-%d already registered in domain %q", s.OpType, s.SinceVersion, s.Domain)
		}
	}
	versions = append(versions, &s)
	sort.Slice(versions, func(i, j int) bool { return versions[i].SinceVersion < versions[j].SinceVersion })
	r.schemas[key] = versions
	return nil
}

// mustRegister is used for built-ins, whose schemas are known to be valid.
func (r *Registry) mustRegister(schemas ...Schema) {
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
}

// Lookup returns the schema with the highest SinceVersion <= version.
// A version <= 0 selects the latest registered version.
func (r *Registry) Lookup(domain, opType string, version int64) (*Schema, error) {
	domain = NormalizeDomain(domain)
	versions := r.schemas[opKey{domain, opType}]
	if len(versions) == 0 {
		return nil, errors.Wrapf(ErrUnsupportedOperator, "%s in domain %q", opType, domain)
	}
	if version <= 0 {
		return versions[len(versions)-1], nil
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].SinceVersion <= version {
			return versions[i], nil
		}
	}
	return nil, errors.Wrapf(ErrUnsupportedOperator, "%s in domain %q: opset %d predates version %d",
		opType, domain, version, versions[0].SinceVersion)
}

// New resolves the schema for node at the given opset version and constructs its kernel.
func (r *Registry) New(node *Node, version int64) (Kernel, *Schema, error) {
	schema, err := r.Lookup(node.Domain, node.OpType, version)
	if err != nil {
		return nil, nil, err
	}
	if err := schema.checkArity(node); err != nil {
		return nil, nil, err
	}
	attrs, err := BindAttributes(node, schema.Attributes)
	if err != nil {
		return nil, nil, err
	}
	kernel, err := schema.Construct(node, attrs)
	if err != nil {
		return nil, nil, err
	}
	return kernel, schema, nil
}

// Clone returns a registry sharing the schemas of r that can be extended independently.
func (r *Registry) Clone() *Registry {
	c := NewEmptyRegistry()
	for k, v := range r.schemas {
		c.schemas[k] = slices.Clone(v)
	}
	return c
}

// SupportedOps returns the sorted operator types; other domains are prefixed as "domain:Op".
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.schemas))
	for k := range r.schemas {
		if k.domain == DefaultDomain {
			ops = append(ops, k.opType)
		} else {
			ops = append(ops, k.domain+":"+k.opType)
		}
	}
	sort.Strings(ops)
	return ops
}

// Versions returns the registered SinceVersion values for an operator.
func (r *Registry) Versions(domain, opType string) []int64 {
	versions := r.schemas[opKey{NormalizeDomain(domain), opType}]
	out := make([]int64, len(versions))
	for i, v := range versions {
		out[i] = v.SinceVersion
	}
	return out
}
