package tensor

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
)

func TestNewRawZeroFilled(t *testing.T) {
	raw, err := NewRaw(Shape{3, 2}, Int64)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 0, 0, 0, 0, 0}, raw.AsInt64())
	assert.Equal(t, 48, raw.ByteSize())
}

func TestNewRawRejectsNegativeDim(t *testing.T) {
	_, err := NewRaw(Shape{2, -1}, Float32)
	require.Error(t, err)
}

func TestEmptyTensorAccessors(t *testing.T) {
	raw, err := NewRaw(Shape{0, 3}, Float32)
	require.NoError(t, err)
	assert.Equal(t, 0, raw.NumElements())
	assert.Empty(t, raw.AsFloat32())
}

func TestValuesZeroCopy(t *testing.T) {
	raw := MustNewRaw(Shape{4}, Uint8)
	raw.AsUint8()[0] = 255
	assert.Equal(t, uint8(255), raw.AsUint8()[0])
}

func TestValuesDTypeMismatchPanicsAsError(t *testing.T) {
	raw := MustNewRaw(Shape{2}, Int32)
	err := exceptions.TryCatch[error](func() { raw.AsFloat32() })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not float32")
}

func TestFromSlice(t *testing.T) {
	raw, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, Float32, raw.DType())
	assert.Equal(t, Shape{2, 3}, raw.Shape())

	_, err = FromSlice([]float32{1, 2}, Shape{3})
	require.Error(t, err)
}

func TestFloat16Tensor(t *testing.T) {
	raw, err := FromSlice([]float16.Float16{float16.Fromfloat32(1.5)}, Shape{1})
	require.NoError(t, err)
	assert.Equal(t, Float16, raw.DType())
	assert.Equal(t, 2, raw.ByteSize())
	assert.InDelta(t, 1.5, float64(raw.AsFloat16()[0].Float32()), 1e-6)
}

func TestCloneSharesBuffer(t *testing.T) {
	a := MustNewRaw(Shape{2}, Float32)
	assert.True(t, a.IsUnique())

	b := a.Clone()
	assert.False(t, a.IsUnique())
	assert.True(t, a.SameBuffer(b))

	b.AsFloat32()[0] = 7
	assert.Equal(t, float32(7), a.AsFloat32()[0])
}

func TestCopyIsIndependent(t *testing.T) {
	a, err := FromSlice([]int32{1, 2}, Shape{2})
	require.NoError(t, err)
	b := a.Copy()
	b.AsInt32()[0] = 9
	assert.Equal(t, int32(1), a.AsInt32()[0])
	assert.True(t, b.IsUnique())
}

func TestWithShape(t *testing.T) {
	a := MustNewRaw(Shape{2, 3}, Float64)
	v, err := a.WithShape(Shape{3, 2})
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, v.Shape())
	assert.True(t, v.SameBuffer(a))

	_, err = a.WithShape(Shape{4})
	require.Error(t, err)
}

func TestScalar(t *testing.T) {
	s := Scalar(int64(5))
	assert.Equal(t, 0, s.Rank())
	assert.Equal(t, 1, s.NumElements())
	assert.Equal(t, []int64{5}, s.AsInt64())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b Shape
		want Shape
		err  bool
	}{
		{Shape{3, 1}, Shape{1, 4}, Shape{3, 4}, false},
		{Shape{5}, Shape{1}, Shape{5}, false},
		{Shape{2, 3}, Shape{3}, Shape{2, 3}, false},
		{Shape{3}, Shape{4}, nil, true},
	}
	for _, tt := range tests {
		got, _, err := BroadcastShapes(tt.a, tt.b)
		if tt.err {
			assert.Error(t, err, "%v vs %v", tt.a, tt.b)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalizeAxes(t *testing.T) {
	got, err := NormalizeAxes([]int{-1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, got)

	_, err = NormalizeAxes([]int{1, -2}, 3)
	require.Error(t, err, "duplicate axis")
	_, err = NormalizeAxes([]int{3}, 3)
	require.Error(t, err)
}
