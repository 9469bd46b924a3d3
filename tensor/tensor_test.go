// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"strings"
	"testing"

	"github.com/born-ml/graphrt/tensor"
)

// TestRawTensorAPI verifies RawTensor type alias exposes expected API.
func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	if shape := raw.Shape(); !shape.Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", shape)
	}
	if dtype := raw.DType(); dtype != tensor.Float32 {
		t.Errorf("DType() = %v, want Float32", dtype)
	}
	if n := raw.NumElements(); n != 6 {
		t.Errorf("NumElements() = %d, want 6", n)
	}

	data := raw.AsFloat32()
	data[0] = 7
	clone := raw.Clone()
	if !clone.SameBuffer(raw) || raw.IsUnique() {
		t.Error("Clone() should share the buffer")
	}
	cp := raw.Copy()
	if cp.SameBuffer(raw) || cp.AsFloat32()[0] != 7 {
		t.Error("Copy() should duplicate the data")
	}
}

func TestCreation(t *testing.T) {
	x, err := tensor.FromSlice([]int64{1, 2, 3}, tensor.Shape{3})
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	if got := tensor.Values[int64](x); len(got) != 3 || got[2] != 3 {
		t.Errorf("Values() = %v, want [1 2 3]", got)
	}

	if _, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{3}); err == nil {
		t.Error("FromSlice should reject a length mismatch")
	}

	s := tensor.Scalar(float64(2.5))
	if s.Rank() != 0 || s.AsFloat64()[0] != 2.5 {
		t.Errorf("Scalar() = %v", s.AsFloat64())
	}

	v := tensor.Int64Vector([]int64{4, 5})
	if v.DType() != tensor.Int64 || !v.Shape().Equal(tensor.Shape{2}) {
		t.Errorf("Int64Vector() has dtype %v and shape %v", v.DType(), v.Shape())
	}

	f, err := tensor.Full(tensor.Shape{2, 2}, 3, tensor.Int32)
	if err != nil {
		t.Fatalf("Full failed: %v", err)
	}
	for _, e := range f.AsInt32() {
		if e != 3 {
			t.Errorf("Full() element = %d, want 3", e)
		}
	}
}

func TestCast(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{1.5, -2.5}, tensor.Shape{2})
	y, err := tensor.Cast(x, tensor.Int64)
	if err != nil {
		t.Fatalf("Cast failed: %v", err)
	}
	if y.DType() != tensor.Int64 {
		t.Errorf("Cast() dtype = %v, want int64", y.DType())
	}
	if got := tensor.Float64s(y); len(got) != 2 {
		t.Errorf("Float64s() = %v", got)
	}
}

func TestBroadcastShapes(t *testing.T) {
	shape, _, err := tensor.BroadcastShapes(tensor.Shape{3, 1}, tensor.Shape{3, 4})
	if err != nil {
		t.Fatalf("BroadcastShapes failed: %v", err)
	}
	if !shape.Equal(tensor.Shape{3, 4}) {
		t.Errorf("BroadcastShapes() = %v, want [3 4]", shape)
	}
	if _, _, err := tensor.BroadcastShapes(tensor.Shape{3, 4}, tensor.Shape{3, 5}); err == nil {
		t.Error("BroadcastShapes should reject [3 4] and [3 5]")
	}
}

func TestSummarize(t *testing.T) {
	x, _ := tensor.FromSlice([]float32{3, -1, 2}, tensor.Shape{3})
	s := tensor.Summarize(x)
	if s.Min != -1 || s.Max != 3 || s.DType != tensor.Float32 {
		t.Errorf("Summarize() = %+v", s)
	}
	if p := tensor.Preview(x, 2); !strings.Contains(p, "3") {
		t.Errorf("Preview() = %q", p)
	}
}
