//go:build !wasm

// Package operators provides the versioned operator registry and CPU kernels.
//
// A Schema describes one operator version: its domain, type, the version it
// was introduced in, the attributes it recognizes, and a Construct function
// binding validated attributes into a Kernel. Construction happens once per
// node at compile time, so attribute errors surface before any run.
//
// Kernels may implement ShapeInferer and TypeInferer to take part in shape
// and type inference.
package operators
