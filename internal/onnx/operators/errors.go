//go:build !wasm

package operators

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedOperator reports an unknown (domain, op type, version) combination.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrInvalidAttribute reports a missing, mistyped or out-of-range attribute.
	ErrInvalidAttribute = errors.New("invalid attribute")

	// ErrInvalidNode reports a node whose input or output count does not fit its schema.
	ErrInvalidNode = errors.New("invalid node")
)

func invalidAttr(name, format string, args ...any) error {
	return errors.Wrapf(ErrInvalidAttribute, "attribute %q: "+format, append([]any{name}, args...)...)
}
