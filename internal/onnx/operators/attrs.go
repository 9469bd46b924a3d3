//go:build !wasm

package operators

import (
	"github.com/born-ml/graphrt/internal/tensor"
)

// AttrSpec declares one attribute recognized by a Schema.
// Default is used when the node omits an optional attribute.
type AttrSpec struct {
	Name     string
	Type     AttrType
	Required bool
	Default  Attribute
}

// Optional declares an attribute with a default value.
func Optional(def Attribute) AttrSpec {
	return AttrSpec{Name: def.Name, Type: def.Type, Default: def}
}

// Required declares an attribute the node must set.
func Required(name string, typ AttrType) AttrSpec {
	return AttrSpec{Name: name, Type: typ, Required: true}
}

// Absent declares an optional attribute without a default.
func Absent(name string, typ AttrType) AttrSpec {
	return AttrSpec{Name: name, Type: typ}
}

// Attrs holds the attributes of a node after validation against its schema.
type Attrs struct {
	values map[string]Attribute
}

// BindAttributes validates node attributes against specs and fills defaults.
func BindAttributes(node *Node, specs []AttrSpec) (Attrs, error) {
	bound := Attrs{values: make(map[string]Attribute, len(specs))}
	known := make(map[string]AttrSpec, len(specs))
	for _, s := range specs {
		known[s.Name] = s
	}
	for _, a := range node.Attributes {
		spec, ok := known[a.Name]
		if !ok {
			// Attributes from newer opsets or other runtimes are ignored.
			continue
		}
		if a.Type != spec.Type {
			return Attrs{}, invalidAttr(a.Name, "expected %s, got %s", spec.Type, a.Type)
		}
		if _, dup := bound.values[a.Name]; dup {
			return Attrs{}, invalidAttr(a.Name, "set twice")
		}
		if a.Type == AttrTensor && a.T == nil {
			return Attrs{}, invalidAttr(a.Name, "tensor value is missing")
		}
		bound.values[a.Name] = a
	}
	for _, s := range specs {
		if _, ok := bound.values[s.Name]; ok {
			continue
		}
		if s.Required {
			return Attrs{}, invalidAttr(s.Name, "required by %s", node.OpType)
		}
		if s.Default.Type != AttrUndefined {
			bound.values[s.Name] = s.Default
		}
	}
	return bound, nil
}

// Has reports whether the attribute is set or defaulted.
func (a Attrs) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

// Get returns the raw attribute.
func (a Attrs) Get(name string) (Attribute, bool) {
	v, ok := a.values[name]
	return v, ok
}

// Int returns an INT attribute, or 0 when absent.
func (a Attrs) Int(name string) int64 { return a.values[name].I }

// Float returns a FLOAT attribute, or 0 when absent.
func (a Attrs) Float(name string) float32 { return a.values[name].F }

// String returns a STRING attribute, or "" when absent.
func (a Attrs) String(name string) string { return a.values[name].S }

// Ints returns an INTS attribute, or nil when absent.
func (a Attrs) Ints(name string) []int64 { return a.values[name].Ints }

// Floats returns a FLOATS attribute, or nil when absent.
func (a Attrs) Floats(name string) []float32 { return a.values[name].Floats }

// Strings returns a STRINGS attribute, or nil when absent.
func (a Attrs) Strings(name string) []string { return a.values[name].Strings }

// Tensor returns a TENSOR attribute, or nil when absent.
func (a Attrs) Tensor(name string) *tensor.RawTensor { return a.values[name].T }

// AxesInts returns an INTS attribute converted to []int.
func (a Attrs) AxesInts(name string) []int {
	return toInts(a.Ints(name))
}

// Bool returns an INT attribute interpreted as a flag.
func (a Attrs) Bool(name string) bool { return a.Int(name) != 0 }

// OneOf checks that a STRING attribute takes one of the allowed values.
func (a Attrs) OneOf(name string, allowed ...string) (string, error) {
	v := a.String(name)
	for _, s := range allowed {
		if v == s {
			return v, nil
		}
	}
	return "", invalidAttr(name, "%q is not one of %v", v, allowed)
}

// Flag checks that an INT attribute is 0 or 1.
func (a Attrs) Flag(name string) (bool, error) {
	v := a.Int(name)
	if v != 0 && v != 1 {
		return false, invalidAttr(name, "must be 0 or 1, got %d", v)
	}
	return v == 1, nil
}

func toInts(v []int64) []int {
	if v == nil {
		return nil
	}
	out := make([]int, len(v))
	for i, x := range v {
		out[i] = int(x)
	}
	return out
}
