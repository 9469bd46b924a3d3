//go:build !wasm

package onnx

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrGraphCycleOrMissingInput reports nodes that can never run: their inputs
	// form a cycle or are produced by nobody.
	ErrGraphCycleOrMissingInput = errors.New("graph cycle or missing input")

	// ErrDuplicateOutput reports a name produced twice.
	ErrDuplicateOutput = errors.New("duplicate output")

	// ErrMissingInput reports graph inputs the caller did not supply.
	ErrMissingInput = errors.New("missing input")

	// ErrUnknownInput reports supplied names that are not graph inputs.
	ErrUnknownInput = errors.New("unknown input")

	// ErrMissingOutput reports a declared output without a value after a run.
	ErrMissingOutput = errors.New("missing output")

	// ErrKernelExecution wraps every failure raised inside a kernel.
	ErrKernelExecution = errors.New("kernel execution failed")
)

// NodeError attributes an error to one graph node.
type NodeError struct {
	Node   string
	OpType string
	Err    error
}

// Error implements error.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %q (%s): %v", e.Node, e.OpType, e.Err)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *NodeError) Unwrap() error { return e.Err }

func nodeError(inst *instruction, err error) error {
	return &NodeError{Node: inst.Name, OpType: inst.OpType, Err: err}
}
