// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/graphrt/internal/tensor"
)

// RawTensor is the tensor representation exchanged with compiled graphs.
//
// RawTensor provides:
//   - Shape and type information via Shape(), DType()
//   - Typed data access via AsFloat32(), AsInt64(), etc.
//   - Shared storage via Clone() and a private copy via Copy()
//   - Reference counting, so kernels can tell whether a buffer is shared
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32)
//	data := raw.AsFloat32()  // Typed access
//	clone := raw.Clone()     // Shares buffer via reference counting
type RawTensor = tensor.RawTensor
