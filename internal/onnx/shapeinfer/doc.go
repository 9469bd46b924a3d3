// Package shapeinfer implements symbolic shape and type descriptors for graph values.
//
// A ShapeResult describes one named value: its dimensions (each either a
// concrete size or a named variable), element type, sparsity and kind.
// Variables may be restricted by Constraints, sets of admissible sizes that
// are merged by intersection as more of the graph is analysed.
//
// Broadcast, Merge and Resolve implement the three operations the inference
// driver composes:
//
//	y, err := shapeinfer.Broadcast(x, w, "y")     // (N,3) * (1,3) -> (N,3)
//	updated, err := y.Merge(declared)             // (N,3) vs (10,3) -> N in {10}
//	concrete, err := y.Resolve(map[string][]int{"N": {10}})
package shapeinfer
