//go:build !wasm

package shapeinfer

import (
	"fmt"
	"slices"
	"strings"
)

// intSet is a small set of admissible dimension sizes.
type intSet map[int]struct{}

func newIntSet(values ...int) intSet {
	s := make(intSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

func (s intSet) has(v int) bool {
	_, ok := s[v]
	return ok
}

func (s intSet) sorted() []int {
	out := make([]int, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	slices.Sort(out)
	return out
}

func (s intSet) intersect(o intSet) intSet {
	out := make(intSet)
	for v := range s {
		if o.has(v) {
			out[v] = struct{}{}
		}
	}
	return out
}

func (s intSet) equal(o intSet) bool {
	if len(s) != len(o) {
		return false
	}
	for v := range s {
		if !o.has(v) {
			return false
		}
	}
	return true
}

// Constraints maps variable names to their admissible sizes.
// A nil Constraints is empty and read-only.
type Constraints map[string]intSet

// NewConstraints returns an empty, writable constraint set.
func NewConstraints() Constraints {
	return make(Constraints)
}

// Add restricts name to values, intersecting with any existing restriction.
// It reports whether the admissible set changed. An empty intersection
// returns ErrShapeInference and leaves c unchanged.
func (c Constraints) Add(name string, values ...int) (bool, error) {
	incoming := newIntSet(values...)
	current, ok := c[name]
	if !ok {
		if len(incoming) == 0 {
			return false, inferenceErrorf("variable %q has no admissible value", name)
		}
		c[name] = incoming
		return true, nil
	}
	next := current.intersect(incoming)
	if len(next) == 0 {
		return false, inferenceErrorf("variable %q: %v and %v have no common value",
			name, current.sorted(), incoming.sorted())
	}
	if next.equal(current) {
		return false, nil
	}
	c[name] = next
	return true, nil
}

// Merge adds every restriction of other into c.
func (c Constraints) Merge(other Constraints) (bool, error) {
	updated := false
	for _, name := range other.Names() {
		changed, err := c.Add(name, other[name].sorted()...)
		if err != nil {
			return updated, err
		}
		updated = updated || changed
	}
	return updated, nil
}

// Values returns the sorted admissible sizes of name.
func (c Constraints) Values(name string) ([]int, bool) {
	s, ok := c[name]
	if !ok {
		return nil, false
	}
	return s.sorted(), true
}

// Allows reports whether size is admissible for name. Unconstrained names allow every size.
func (c Constraints) Allows(name string, size int) bool {
	s, ok := c[name]
	return !ok || s.has(size)
}

// Names returns the constrained variable names in sorted order.
func (c Constraints) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Copy returns an independent copy.
func (c Constraints) Copy() Constraints {
	out := make(Constraints, len(c))
	for n, s := range c {
		out[n] = newIntSet(s.sorted()...)
	}
	return out
}

// Equal reports whether both sets restrict the same names identically.
func (c Constraints) Equal(other Constraints) bool {
	if len(c) != len(other) {
		return false
	}
	for n, s := range c {
		o, ok := other[n]
		if !ok || !s.equal(o) {
			return false
		}
	}
	return true
}

// String renders constraints as "{N in [1 10], M in [3]}".
func (c Constraints) String() string {
	parts := make([]string, 0, len(c))
	for _, n := range c.Names() {
		parts = append(parts, fmt.Sprintf("%s in %v", n, c[n].sorted()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
