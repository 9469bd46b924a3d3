//go:build !wasm

package shapeinfer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/born-ml/graphrt/internal/tensor"
)

// Kind tells what a value holds.
type Kind int

// Value kinds.
const (
	KindTensor Kind = iota
	KindSequence
	KindMap
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindTensor:
		return "Tensor"
	case KindSequence:
		return "Sequence"
	case KindMap:
		return "Map"
	}
	return "Unknown"
}

// ShapeResult is the symbolic shape and type of one graph value.
type ShapeResult struct {
	Name   string
	Dims   []Dim
	DType  tensor.DataType
	Sparse bool
	Kind   Kind

	// UnknownRank marks a value whose rank is not known yet; Dims is empty.
	UnknownRank bool

	Constraints Constraints
}

// New creates a dense tensor ShapeResult.
func New(name string, dtype tensor.DataType, dims ...Dim) *ShapeResult {
	return &ShapeResult{
		Name:        name,
		Dims:        append([]Dim(nil), dims...),
		DType:       dtype,
		Kind:        KindTensor,
		Constraints: NewConstraints(),
	}
}

// NewUnknownRank creates a tensor ShapeResult whose rank is not known.
func NewUnknownRank(name string, dtype tensor.DataType) *ShapeResult {
	r := New(name, dtype)
	r.UnknownRank = true
	return r
}

// FromTensor describes a concrete tensor value.
func FromTensor(name string, t *tensor.RawTensor) *ShapeResult {
	return New(name, t.DType(), ConcreteDims(t.Shape())...)
}

// NDims returns the rank, or an error for non-tensor kinds and unknown ranks.
func (r *ShapeResult) NDims() (int, error) {
	if r.Kind != KindTensor {
		return 0, inferenceErrorf("%q is a %s, not a tensor", r.Name, r.Kind)
	}
	if r.UnknownRank {
		return 0, inferenceErrorf("%q has an unknown rank", r.Name)
	}
	return len(r.Dims), nil
}

// Copy returns a deep copy.
func (r *ShapeResult) Copy() *ShapeResult {
	c := *r
	c.Dims = append([]Dim(nil), r.Dims...)
	c.Constraints = r.Constraints.Copy()
	return &c
}

// Rename returns a copy carrying a new name.
func (r *ShapeResult) Rename(name string) *ShapeResult {
	c := r.Copy()
	c.Name = name
	return c
}

// Equal compares kind, dims, dtype and sparsity. Names and constraints are ignored.
func (r *ShapeResult) Equal(o *ShapeResult) bool {
	if r.Kind != o.Kind || r.DType != o.DType || r.Sparse != o.Sparse || r.UnknownRank != o.UnknownRank {
		return false
	}
	if len(r.Dims) != len(o.Dims) {
		return false
	}
	for i := range r.Dims {
		if r.Dims[i] != o.Dims[i] {
			return false
		}
	}
	return true
}

// IsConcrete reports whether every dimension has a fixed size.
func (r *ShapeResult) IsConcrete() bool {
	if r.UnknownRank || r.Kind != KindTensor {
		return false
	}
	for _, d := range r.Dims {
		if d.IsVariable() {
			return false
		}
	}
	return true
}

// ConcreteShape returns the sizes when IsConcrete.
func (r *ShapeResult) ConcreteShape() (tensor.Shape, bool) {
	if !r.IsConcrete() {
		return nil, false
	}
	out := make(tensor.Shape, len(r.Dims))
	for i, d := range r.Dims {
		out[i] = d.Value()
	}
	return out, true
}

// IsCompatible reports whether a runtime shape matches r.
// Variables match any size admitted by the constraints.
func (r *ShapeResult) IsCompatible(shape tensor.Shape) bool {
	if r.Kind != KindTensor {
		return false
	}
	if r.UnknownRank {
		return true
	}
	if len(shape) != len(r.Dims) {
		return false
	}
	bound := make(map[string]int)
	for i, d := range r.Dims {
		if !d.IsVariable() {
			if d.Value() != shape[i] {
				return false
			}
			continue
		}
		if prev, ok := bound[d.Name()]; ok && prev != shape[i] {
			return false
		}
		bound[d.Name()] = shape[i]
		if !r.Constraints.Allows(d.Name(), shape[i]) {
			return false
		}
	}
	return true
}

// Variables returns the distinct variable names in order of appearance.
func (r *ShapeResult) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, d := range r.Dims {
		if d.IsVariable() && !seen[d.Name()] {
			seen[d.Name()] = true
			names = append(names, d.Name())
		}
	}
	return names
}

// String renders "name:float32[N,3]" plus kind, sparsity and constraints when set.
func (r *ShapeResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:%s", r.Name, r.DType)
	if r.UnknownRank {
		sb.WriteString("[?]")
	} else {
		parts := make([]string, len(r.Dims))
		for i, d := range r.Dims {
			parts[i] = d.String()
		}
		sb.WriteString("[" + strings.Join(parts, ",") + "]")
	}
	if r.Kind != KindTensor {
		fmt.Fprintf(&sb, " kind=%s", r.Kind)
	}
	if r.Sparse {
		sb.WriteString(" sparse")
	}
	if len(r.Constraints) > 0 {
		sb.WriteString(" " + r.Constraints.String())
	}
	return sb.String()
}

func (r *ShapeResult) ensureConstraints() {
	if r.Constraints == nil {
		r.Constraints = NewConstraints()
	}
}

// Merge unifies other into r and reports whether r changed.
//
// Kinds and known ranks must match. An unknown-rank side adopts the other's dims.
// Concrete sizes must agree; a concrete size against a variable restricts the
// variable to that size; two different variables stay free.
func (r *ShapeResult) Merge(other *ShapeResult) (bool, error) {
	if r.Kind != other.Kind {
		return false, inferenceErrorf("cannot merge %s and %s: kind mismatch", r, other)
	}
	if !r.UnknownRank && !other.UnknownRank && len(r.Dims) != len(other.Dims) {
		return false, inferenceErrorf("cannot merge %s and %s: rank mismatch", r, other)
	}
	if r.DType != other.DType && r.DType != tensor.Undefined && other.DType != tensor.Undefined {
		return false, inferenceErrorf("cannot merge %s and %s: dtype mismatch", r, other)
	}

	r.ensureConstraints()
	updated, err := r.Constraints.Merge(other.Constraints)
	if err != nil {
		return updated, err
	}
	if r.DType == tensor.Undefined && other.DType != tensor.Undefined {
		r.DType = other.DType
		updated = true
	}
	if other.Sparse && !r.Sparse {
		r.Sparse = true
		updated = true
	}
	if other.UnknownRank {
		return updated, nil
	}
	if r.UnknownRank {
		r.Dims = append([]Dim(nil), other.Dims...)
		r.UnknownRank = false
		return true, nil
	}

	for i, a := range r.Dims {
		b := other.Dims[i]
		if a == b {
			continue
		}
		var changed bool
		switch {
		case !a.IsVariable() && !b.IsVariable():
			return updated, inferenceErrorf("inconsistency between %s and %s at dimension %d", r, other, i)
		case a.IsVariable() && !b.IsVariable():
			changed, err = r.Constraints.Add(a.Name(), b.Value())
		case !a.IsVariable() && b.IsVariable():
			changed, err = r.Constraints.Add(b.Name(), a.Value())
		}
		if err != nil {
			return updated, err
		}
		updated = updated || changed
	}
	return updated, nil
}

// Resolve substitutes variables using bindings, which maps a variable to its
// candidate sizes. One candidate makes the dimension concrete; several keep
// the variable and record them as a constraint; a nil slice leaves it unknown.
// Variables absent from bindings fail with ErrUnresolvedShapeVariable, and
// candidates outside the current constraints fail with ErrShapeInference.
func (r *ShapeResult) Resolve(bindings map[string][]int) (*ShapeResult, error) {
	res := &ShapeResult{
		Name:        r.Name,
		Dims:        make([]Dim, len(r.Dims)),
		DType:       r.DType,
		Sparse:      r.Sparse,
		Kind:        r.Kind,
		UnknownRank: r.UnknownRank,
		Constraints: NewConstraints(),
	}
	for i, d := range r.Dims {
		res.Dims[i] = d
		if !d.IsVariable() {
			continue
		}
		candidates, ok := bindings[d.Name()]
		if !ok {
			return nil, errors.Wrapf(ErrUnresolvedShapeVariable, "cannot resolve %s: no binding for %q", r, d.Name())
		}
		if candidates == nil {
			if values, ok := r.Constraints.Values(d.Name()); ok {
				if _, err := res.Constraints.Add(d.Name(), values...); err != nil {
					return nil, err
				}
			}
			continue
		}
		for _, c := range candidates {
			if !r.Constraints.Allows(d.Name(), c) {
				allowed, _ := r.Constraints.Values(d.Name())
				return nil, inferenceErrorf("cannot bind %s=%d in %s: admissible values are %v",
					d.Name(), c, r.Name, allowed)
			}
		}
		if len(candidates) == 1 {
			res.Dims[i] = Concrete(candidates[0])
			continue
		}
		if _, err := res.Constraints.Add(d.Name(), candidates...); err != nil {
			return nil, err
		}
	}
	return res, nil
}
