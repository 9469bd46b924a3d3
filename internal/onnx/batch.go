//go:build !wasm

package onnx

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/graphrt/internal/tensor"
)

// RunBatch runs the graph once per entry of batch, concurrently.
// Results are in batch order. On failure the first error is returned and
// every result is discarded.
//
// With InputInplace set, entries must not share input tensors.
func (g *CompiledGraph) RunBatch(ctx context.Context, batch []map[string]*tensor.RawTensor,
	opts BatchOptions, runOpts ...RunOptions) ([]*RunResult, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultBatchOptions().Workers
	}

	results := make([]*RunResult, len(batch))
	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, inputs := range batch {
		eg.Go(func() error {
			res, err := g.Run(ctx, inputs, runOpts...)
			if err != nil {
				return errors.WithMessagef(err, "batch entry %d", i)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
