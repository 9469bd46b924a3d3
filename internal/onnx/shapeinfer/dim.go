//go:build !wasm

package shapeinfer

import (
	"strconv"

	"github.com/gomlx/exceptions"
)

// Dim is one dimension of a ShapeResult: a concrete size or a named variable.
// The zero value is the concrete size 0.
type Dim struct {
	value int
	name  string
}

// Concrete returns a fixed-size dimension. It panics on negative sizes.
func Concrete(size int) Dim {
	if size < 0 {
		exceptions.Panicf("shapeinfer: negative dimension %d", size)
	}
	return Dim{value: size}
}

// Variable returns a symbolic dimension. It panics on "" and "?",
// which would stand for an unset dimension.
func Variable(name string) Dim {
	if name == "" || name == "?" {
		exceptions.Panicf("shapeinfer: invalid variable name %q", name)
	}
	return Dim{name: name}
}

// IsVariable reports whether d is symbolic.
func (d Dim) IsVariable() bool { return d.name != "" }

// Value returns the concrete size, or -1 for a variable.
func (d Dim) Value() int {
	if d.IsVariable() {
		return -1
	}
	return d.value
}

// Name returns the variable name, or "" for a concrete dimension.
func (d Dim) Name() string { return d.name }

// String renders a concrete size as a number and a variable as its name.
func (d Dim) String() string {
	if d.IsVariable() {
		return d.name
	}
	return strconv.Itoa(d.value)
}

// Dims builds a dimension list from ints and strings.
// Any other element type panics.
func Dims(values ...any) []Dim {
	out := make([]Dim, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case int:
			out[i] = Concrete(x)
		case int64:
			out[i] = Concrete(int(x))
		case string:
			out[i] = Variable(x)
		case Dim:
			out[i] = x
		default:
			exceptions.Panicf("shapeinfer: cannot build a dimension from %T", v)
		}
	}
	return out
}

// ConcreteDims converts sizes into concrete dimensions.
func ConcreteDims(shape []int) []Dim {
	out := make([]Dim, len(shape))
	for i, s := range shape {
		out[i] = Concrete(s)
	}
	return out
}
