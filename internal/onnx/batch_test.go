//go:build !wasm

package onnx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/graphrt/internal/tensor"
)

func TestRunBatch(t *testing.T) {
	g := mustCompile(t, chainGraph())

	batch := make([]map[string]*tensor.RawTensor, 16)
	for i := range batch {
		v := float32(i)
		batch[i] = map[string]*tensor.RawTensor{"X": f32([]float32{v, -v, v / 2}, 1, 3)}
	}
	results, err := g.RunBatch(context.Background(), batch, BatchOptions{Workers: 4})
	require.NoError(t, err)
	require.Len(t, results, len(batch))

	for i, inputs := range batch {
		want, err := g.Run(context.Background(), inputs)
		require.NoError(t, err)
		assert.Equal(t, want.Outputs["Y"].AsFloat32(), results[i].Outputs["Y"].AsFloat32(), "entry %d", i)
	}

	results, err = g.RunBatch(context.Background(), nil, DefaultBatchOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunBatchError(t *testing.T) {
	g := mustCompile(t, affineGraph())
	batch := []map[string]*tensor.RawTensor{
		{"X": affineInput()},
		{"X": affineInput()},
		{},
	}
	results, err := g.RunBatch(context.Background(), batch, BatchOptions{}, RunOptions{Timing: true})
	require.ErrorIs(t, err, ErrMissingInput)
	assert.Contains(t, err.Error(), "batch entry 2")
	assert.Nil(t, results)
}
