//go:build !wasm

package operators

import (
	"fmt"
	"strings"

	"github.com/born-ml/graphrt/internal/tensor"
)

// ONNX data types (TensorProto.DataType).
const (
	TensorProtoUndefined = 0
	TensorProtoFloat     = 1  // float32
	TensorProtoUint8     = 2  // uint8
	TensorProtoInt8      = 3  // int8
	TensorProtoUint16    = 4  // uint16
	TensorProtoInt16     = 5  // int16
	TensorProtoInt32     = 6  // int32
	TensorProtoInt64     = 7  // int64
	TensorProtoString    = 8  // string
	TensorProtoBool      = 9  // bool
	TensorProtoFloat16   = 10 // float16
	TensorProtoDouble    = 11 // float64
	TensorProtoUint32    = 12 // uint32
	TensorProtoUint64    = 13 // uint64
)

// DataTypeFromProto maps a TensorProto data type code to a tensor dtype.
func DataTypeFromProto(code int32) (tensor.DataType, bool) {
	switch code {
	case TensorProtoFloat:
		return tensor.Float32, true
	case TensorProtoDouble:
		return tensor.Float64, true
	case TensorProtoFloat16:
		return tensor.Float16, true
	case TensorProtoInt32:
		return tensor.Int32, true
	case TensorProtoInt64:
		return tensor.Int64, true
	case TensorProtoInt8:
		return tensor.Int8, true
	case TensorProtoUint8:
		return tensor.Uint8, true
	case TensorProtoBool:
		return tensor.Bool, true
	}
	return tensor.Undefined, false
}

// ProtoDataType maps a tensor dtype to its TensorProto code.
func ProtoDataType(dt tensor.DataType) int32 {
	switch dt {
	case tensor.Float32:
		return TensorProtoFloat
	case tensor.Float64:
		return TensorProtoDouble
	case tensor.Float16:
		return TensorProtoFloat16
	case tensor.Int32:
		return TensorProtoInt32
	case tensor.Int64:
		return TensorProtoInt64
	case tensor.Int8:
		return TensorProtoInt8
	case tensor.Uint8:
		return TensorProtoUint8
	case tensor.Bool:
		return TensorProtoBool
	}
	return TensorProtoUndefined
}

// Node represents an ONNX operation node.
// This is a local copy of the relevant fields from onnx.NodeProto
// to avoid import cycles between onnx and operators packages.
type Node struct {
	Name       string      // Node name, unique within the graph
	OpType     string      // Operation type (e.g., "MatMul", "Relu")
	Domain     string      // Operator domain ("" for the default ONNX domain)
	Inputs     []string    // Input tensor names, "" for an omitted optional input
	Outputs    []string    // Output tensor names
	Attributes []Attribute // Operation attributes
}

// Attr returns the attribute with the given name.
func (n *Node) Attr(name string) (*Attribute, bool) {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			return &n.Attributes[i], true
		}
	}
	return nil, false
}

// String renders the node as `Add("y") <- ["a" "b"]`.
func (n *Node) String() string {
	return fmt.Sprintf("%s(%q) <- %q", n.OpType, n.Name, n.Inputs)
}

// AttrType is the kind of value an Attribute holds, numbered as AttributeProto.AttributeType.
type AttrType int32

// Attribute value kinds.
const (
	AttrUndefined AttrType = 0
	AttrFloat     AttrType = 1
	AttrInt       AttrType = 2
	AttrString    AttrType = 3
	AttrTensor    AttrType = 4
	AttrFloats    AttrType = 6
	AttrInts      AttrType = 7
	AttrStrings   AttrType = 8
	AttrTensors   AttrType = 9
)

// String returns the AttributeProto type name.
func (t AttrType) String() string {
	switch t {
	case AttrFloat:
		return "FLOAT"
	case AttrInt:
		return "INT"
	case AttrString:
		return "STRING"
	case AttrTensor:
		return "TENSOR"
	case AttrFloats:
		return "FLOATS"
	case AttrInts:
		return "INTS"
	case AttrStrings:
		return "STRINGS"
	case AttrTensors:
		return "TENSORS"
	}
	return "UNDEFINED"
}

// Attribute is a tagged union; Type selects which field is meaningful.
type Attribute struct {
	Name    string
	Type    AttrType
	F       float32
	I       int64
	S       string
	T       *tensor.RawTensor
	Floats  []float32
	Ints    []int64
	Strings []string
	Tensors []*tensor.RawTensor
}

// FloatAttr builds a FLOAT attribute.
func FloatAttr(name string, v float32) Attribute {
	return Attribute{Name: name, Type: AttrFloat, F: v}
}

// IntAttr builds an INT attribute.
func IntAttr(name string, v int64) Attribute {
	return Attribute{Name: name, Type: AttrInt, I: v}
}

// StringAttr builds a STRING attribute.
func StringAttr(name, v string) Attribute {
	return Attribute{Name: name, Type: AttrString, S: v}
}

// TensorAttr builds a TENSOR attribute.
func TensorAttr(name string, v *tensor.RawTensor) Attribute {
	return Attribute{Name: name, Type: AttrTensor, T: v}
}

// FloatsAttr builds a FLOATS attribute.
func FloatsAttr(name string, v ...float32) Attribute {
	return Attribute{Name: name, Type: AttrFloats, Floats: v}
}

// IntsAttr builds an INTS attribute.
func IntsAttr(name string, v ...int64) Attribute {
	return Attribute{Name: name, Type: AttrInts, Ints: v}
}

// StringsAttr builds a STRINGS attribute.
func StringsAttr(name string, v ...string) Attribute {
	return Attribute{Name: name, Type: AttrStrings, Strings: v}
}

// String renders the attribute value.
func (a Attribute) String() string {
	var v any
	switch a.Type {
	case AttrFloat:
		v = a.F
	case AttrInt:
		v = a.I
	case AttrString:
		v = a.S
	case AttrTensor:
		if a.T != nil {
			v = tensor.Summarize(a.T)
		}
	case AttrFloats:
		v = a.Floats
	case AttrInts:
		v = a.Ints
	case AttrStrings:
		v = "[" + strings.Join(a.Strings, " ") + "]"
	case AttrTensors:
		v = fmt.Sprintf("%d tensors", len(a.Tensors))
	}
	return fmt.Sprintf("%s=%v", a.Name, v)
}
