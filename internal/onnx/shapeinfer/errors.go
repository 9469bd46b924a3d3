//go:build !wasm

package shapeinfer

import "github.com/pkg/errors"

var (
	// ErrShapeInference reports inconsistent or unsupported shapes.
	ErrShapeInference = errors.New("shape inference error")

	// ErrUnresolvedShapeVariable reports a variable missing from Resolve bindings.
	ErrUnresolvedShapeVariable = errors.New("unresolved shape variable")
)

func inferenceErrorf(format string, args ...any) error {
	return errors.Wrapf(ErrShapeInference, format, args...)
}
