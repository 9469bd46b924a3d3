package tensor

import (
	"fmt"
	"math"
	"strings"
)

// Summary describes a tensor for trace output.
type Summary struct {
	Shape Shape
	DType DataType
	Min   float64
	Max   float64
}

// String renders the summary as "shape=[2 3] dtype=float32 min=0 max=1".
func (s Summary) String() string {
	return fmt.Sprintf("shape=%v dtype=%s min=%g max=%g", []int(s.Shape), s.DType, s.Min, s.Max)
}

// Summarize computes shape, dtype and the value range of x.
// Min and Max are NaN for empty tensors.
func Summarize(x *RawTensor) Summary {
	s := Summary{Shape: x.shape, DType: x.dtype, Min: math.NaN(), Max: math.NaN()}
	for i, v := range Float64s(x) {
		if i == 0 || v < s.Min {
			s.Min = v
		}
		if i == 0 || v > s.Max {
			s.Max = v
		}
	}
	return s
}

// Preview renders up to limit leading values of x.
func Preview(x *RawTensor, limit int) string {
	values := Float64s(x)
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range values {
		if i == limit {
			sb.WriteString(" ...")
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	sb.WriteByte(']')
	return sb.String()
}
