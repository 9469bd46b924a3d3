//go:build !wasm

package shapeinfer

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphrt/internal/tensor"
)

func f32(name string, dims ...any) *ShapeResult {
	return New(name, tensor.Float32, Dims(dims...)...)
}

func TestVariableRejectsUnsetNames(t *testing.T) {
	for _, name := range []string{"", "?"} {
		err := exceptions.TryCatch[error](func() { Variable(name) })
		require.Error(t, err, "name %q", name)
	}
	assert.Equal(t, "N", Variable("N").String())
	assert.Equal(t, -1, Variable("N").Value())
	assert.Equal(t, "3", Concrete(3).String())
}

func TestBroadcast(t *testing.T) {
	tests := []struct {
		name string
		a, b *ShapeResult
		want *ShapeResult
	}{
		{"column by row", f32("a", 3, 1), f32("b", 1, 4), f32("y", 3, 4)},
		{"trailing one", f32("a", 5), f32("b", 1), f32("y", 5)},
		{"scalar-like rank mismatch", f32("a", 1), f32("b", 2, 3), f32("y", 2, 3)},
		{"same variable", f32("a", "N", 3), f32("b", "N", 3), f32("y", "N", 3)},
		{"variable against one", f32("a", "N", 3), f32("b", 1, 3), f32("y", "N", 3)},
		{"rank-0 scalar", f32("a", 2, 2), f32("b"), f32("y", 2, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Broadcast(tt.a, tt.b, "y")
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s want %s", got, tt.want)
			assert.Equal(t, "y", got.Name)
		})
	}
}

func TestBroadcastConstraint(t *testing.T) {
	got, err := Broadcast(f32("a", "N", 4), f32("b", 3, 4), "y")
	require.NoError(t, err)
	assert.True(t, f32("y", 3, 4).Equal(got))
	values, ok := got.Constraints.Values("N")
	require.True(t, ok)
	assert.Equal(t, []int{1, 3}, values)
}

func TestBroadcastErrors(t *testing.T) {
	tests := []struct {
		name string
		a, b *ShapeResult
	}{
		{"incompatible sizes", f32("a", 3), f32("b", 4)},
		{"different variables", f32("a", "N"), f32("b", "M")},
		{"rank mismatch", f32("a", 2, 3), f32("b", 3)},
		{"dtype mismatch", f32("a", 3), New("b", tensor.Int64, Concrete(3))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Broadcast(tt.a, tt.b, "y")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrShapeInference), "%v", err)
		})
	}

	seq := f32("s", 3)
	seq.Kind = KindSequence
	_, err := Broadcast(seq, f32("b", 3), "y")
	assert.True(t, errors.Is(err, ErrShapeInference))
}

func TestBroadcastConflictingConstraints(t *testing.T) {
	a := f32("a", "N")
	_, err := a.Constraints.Add("N", 10)
	require.NoError(t, err)
	_, err = Broadcast(a, f32("b", 3), "y")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeInference))
}

func TestMergeAndResolveRoundTrip(t *testing.T) {
	x := f32("x", "N", 4)
	updated, err := x.Merge(f32("x", 10, 4))
	require.NoError(t, err)
	assert.True(t, updated)
	values, ok := x.Constraints.Values("N")
	require.True(t, ok)
	assert.Equal(t, []int{10}, values)

	updated, err = x.Merge(f32("x", 10, 4))
	require.NoError(t, err)
	assert.False(t, updated, "merging the same information twice is a no-op")

	resolved, err := x.Resolve(map[string][]int{"N": {10}})
	require.NoError(t, err)
	shape, ok := resolved.ConcreteShape()
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{10, 4}, shape)

	_, err = x.Resolve(map[string][]int{"N": {7}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeInference))
}

func TestMergeErrors(t *testing.T) {
	_, err := f32("x", 3, 4).Merge(f32("x", 5, 4))
	assert.True(t, errors.Is(err, ErrShapeInference), "concrete mismatch")

	_, err = f32("x", 3).Merge(f32("x", 3, 4))
	assert.True(t, errors.Is(err, ErrShapeInference), "rank mismatch")

	seq := f32("x", 3)
	seq.Kind = KindMap
	_, err = f32("x", 3).Merge(seq)
	assert.True(t, errors.Is(err, ErrShapeInference), "kind mismatch")

	x := f32("x", "N")
	_, err = x.Merge(f32("x", 2))
	require.NoError(t, err)
	_, err = x.Merge(f32("x", 3))
	assert.True(t, errors.Is(err, ErrShapeInference), "empty intersection")
}

func TestMergeVariablesStayFree(t *testing.T) {
	x := f32("x", "N", 4)
	updated, err := x.Merge(f32("x", "M", 4))
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Empty(t, x.Constraints)
	assert.Equal(t, []string{"N"}, x.Variables())
}

func TestMergeUnknownRank(t *testing.T) {
	x := NewUnknownRank("x", tensor.Undefined)
	updated, err := x.Merge(f32("x", 2, "N"))
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, tensor.Float32, x.DType)
	assert.True(t, f32("x", 2, "N").Equal(x))
}

func TestResolve(t *testing.T) {
	x := f32("x", "N", "M", 3)

	res, err := x.Resolve(map[string][]int{"N": {2}, "M": {4, 5}})
	require.NoError(t, err)
	assert.Equal(t, Concrete(2), res.Dims[0])
	assert.Equal(t, Variable("M"), res.Dims[1])
	values, _ := res.Constraints.Values("M")
	assert.Equal(t, []int{4, 5}, values)

	res, err = x.Resolve(map[string][]int{"N": {2}, "M": nil})
	require.NoError(t, err)
	assert.True(t, res.Dims[1].IsVariable(), "nil candidates leave the size unknown")

	_, err = x.Resolve(map[string][]int{"N": {2}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedShapeVariable))
}

func TestIsCompatible(t *testing.T) {
	x := f32("x", "N", 3, "N")
	assert.True(t, x.IsCompatible(tensor.Shape{2, 3, 2}))
	assert.False(t, x.IsCompatible(tensor.Shape{2, 3, 4}), "same variable bound twice")
	assert.False(t, x.IsCompatible(tensor.Shape{2, 4, 2}))
	assert.False(t, x.IsCompatible(tensor.Shape{2, 3}))

	_, err := x.Constraints.Add("N", 5)
	require.NoError(t, err)
	assert.False(t, x.IsCompatible(tensor.Shape{2, 3, 2}))
	assert.True(t, x.IsCompatible(tensor.Shape{5, 3, 5}))
}

func TestStringAndCopy(t *testing.T) {
	x := f32("x", "N", 3)
	_, err := x.Constraints.Add("N", 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "x:float32[N,3] {N in [1 3]}", x.String())

	c := x.Copy()
	c.Dims[0] = Concrete(1)
	_, err = c.Constraints.Add("N", 1)
	require.NoError(t, err)
	values, _ := x.Constraints.Values("N")
	assert.Equal(t, []int{1, 3}, values, "copy must not alias constraints")
	assert.Equal(t, Variable("N"), x.Dims[0])
}

func TestConstraints(t *testing.T) {
	c := NewConstraints()
	changed, err := c.Add("N", 1, 2, 3)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Add("N", 2, 3, 4)
	require.NoError(t, err)
	assert.True(t, changed)
	values, _ := c.Values("N")
	assert.Equal(t, []int{2, 3}, values)

	_, err = c.Add("N", 7)
	assert.True(t, errors.Is(err, ErrShapeInference))
	values, _ = c.Values("N")
	assert.Equal(t, []int{2, 3}, values, "failed Add leaves the set unchanged")

	other := NewConstraints()
	_, _ = other.Add("M", 8)
	_, _ = other.Add("N", 3)
	changed, err = c.Merge(other)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "{M in [8], N in [3]}", c.String())
	assert.True(t, c.Equal(c.Copy()))
}
