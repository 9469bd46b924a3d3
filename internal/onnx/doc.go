// Package onnx compiles ONNX-style dataflow graphs and executes them.
//
// A graph is described in memory by a GraphProto, optionally wrapped in a
// ModelProto carrying opset imports and metadata. Compile binds every node to
// a kernel from the operator registry, orders the nodes, assigns value slots
// and decides which buffers may be overwritten in place. The resulting
// CompiledGraph is immutable and can be run concurrently.
//
// Key components:
//   - Compile, CompileGraph: build a CompiledGraph
//   - CompiledGraph.Run: evaluate the graph on named inputs
//   - CompiledGraph.RunBatch: evaluate independent input sets concurrently
//   - CompiledGraph.InferShapes, InferTypes: symbolic shape and type propagation
//
// Example usage:
//
//	g, err := onnx.Compile(model)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := g.Run(ctx, map[string]*tensor.RawTensor{"X": x})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	y := res.Outputs["Y"]
package onnx
