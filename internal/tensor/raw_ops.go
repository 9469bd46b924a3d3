package tensor

import (
	"math"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// Softmax computes softmax along axis using max-subtraction for stability.
func Softmax(x *RawTensor, axis int, dst *RawTensor) (*RawTensor, error) {
	if x == nil {
		return nil, errors.New("Softmax: input tensor is nil")
	}
	axis, err := NormalizeAxis(axis, len(x.shape))
	if err != nil {
		return nil, errors.WithMessage(err, "Softmax")
	}
	result, err := outputFor(dst, x.shape, x.dtype)
	if err != nil {
		return nil, errors.WithMessage(err, "Softmax")
	}

	switch x.dtype {
	case Float32:
		softmaxLoop(x.AsFloat32(), result.AsFloat32(), x.shape, axis, math32.Exp)
	case Float64:
		softmaxLoop(x.AsFloat64(), result.AsFloat64(), x.shape, axis, math.Exp)
	default:
		return nil, errors.Errorf("Softmax: unsupported dtype %v", x.dtype)
	}
	return result, nil
}

// splitAround returns the element counts before, at and after axis.
func splitAround(shape Shape, axis int) (outer, axisSize, inner int) {
	outer = 1
	for i := 0; i < axis; i++ {
		outer *= shape[i]
	}
	axisSize = shape[axis]
	inner = 1
	for i := axis + 1; i < len(shape); i++ {
		inner *= shape[i]
	}
	return outer, axisSize, inner
}

func softmaxLoop[T float32 | float64](in, out []T, shape Shape, axis int, exp func(T) T) {
	outerSize, axisSize, innerSize := splitAround(shape, axis)
	if axisSize == 0 {
		return
	}
	for outer := 0; outer < outerSize; outer++ {
		for inner := 0; inner < innerSize; inner++ {
			base := outer*axisSize*innerSize + inner
			maxVal := in[base]
			for a := 1; a < axisSize; a++ {
				if v := in[base+a*innerSize]; v > maxVal {
					maxVal = v
				}
			}
			var sum T
			for a := 0; a < axisSize; a++ {
				idx := base + a*innerSize
				out[idx] = exp(in[idx] - maxVal)
				sum += out[idx]
			}
			for a := 0; a < axisSize; a++ {
				out[base+a*innerSize] /= sum
			}
		}
	}
}

// Reshape returns a view of x with a new shape.
// A -1 entry is inferred; a 0 entry copies the input dimension unless allowZero is set.
func Reshape(x *RawTensor, newShape []int64, allowZero bool) (*RawTensor, error) {
	if x == nil {
		return nil, errors.New("Reshape: input tensor is nil")
	}
	shape := make(Shape, len(newShape))
	inferred := -1
	known := 1
	for i, d := range newShape {
		switch {
		case d == -1:
			if inferred >= 0 {
				return nil, errors.Errorf("Reshape: more than one -1 in %v", newShape)
			}
			inferred = i
			continue
		case d == 0 && !allowZero:
			if i >= len(x.shape) {
				return nil, errors.Errorf("Reshape: 0 at position %d but input rank is %d", i, len(x.shape))
			}
			shape[i] = x.shape[i]
		case d < 0:
			return nil, errors.Errorf("Reshape: invalid dimension %d in %v", d, newShape)
		default:
			shape[i] = int(d)
		}
		known *= shape[i]
	}
	if inferred >= 0 {
		if known == 0 || x.NumElements()%known != 0 {
			return nil, errors.Errorf("Reshape: cannot infer -1 reshaping %v into %v", x.shape, newShape)
		}
		shape[inferred] = x.NumElements() / known
	}
	v, err := x.WithShape(shape)
	if err != nil {
		return nil, errors.WithMessage(err, "Reshape")
	}
	return v, nil
}

// Transpose permutes the axes of x. An empty perm reverses them.
func Transpose(x *RawTensor, perm []int) (*RawTensor, error) {
	if x == nil {
		return nil, errors.New("Transpose: input tensor is nil")
	}
	rank := len(x.shape)
	if len(perm) == 0 {
		perm = make([]int, rank)
		for i := range perm {
			perm[i] = rank - 1 - i
		}
	}
	if len(perm) != rank {
		return nil, errors.Errorf("Transpose: perm %v does not match rank %d", perm, rank)
	}
	perm, err := NormalizeAxes(perm, rank)
	if err != nil {
		return nil, errors.WithMessage(err, "Transpose")
	}

	newShape := make(Shape, rank)
	for i, p := range perm {
		newShape[i] = x.shape[p]
	}
	result, err := NewRaw(newShape, x.dtype)
	if err != nil {
		return nil, errors.WithMessage(err, "Transpose")
	}

	// Strides of the input, read in output axis order.
	inStrides := x.shape.ComputeStrides()
	permStrides := make([]int, rank)
	for i, p := range perm {
		permStrides[i] = inStrides[p]
	}
	outStrides := newShape.ComputeStrides()
	size := x.dtype.Size()
	in, out := x.buffer.data, result.buffer.data
	for o := 0; o < result.NumElements(); o++ {
		i := flatIndex(o, outStrides, permStrides)
		copy(out[o*size:(o+1)*size], in[i*size:(i+1)*size])
	}
	return result, nil
}

// Squeeze removes the given size-1 axes, or every size-1 axis when axes is empty.
func Squeeze(x *RawTensor, axes []int) (*RawTensor, error) {
	shape, err := SqueezeShape(x.shape, axes)
	if err != nil {
		return nil, err
	}
	return x.WithShape(shape)
}

// SqueezeShape computes the Squeeze output shape.
func SqueezeShape(shape Shape, axes []int) (Shape, error) {
	drop := make(map[int]bool)
	if len(axes) == 0 {
		for i, d := range shape {
			if d == 1 {
				drop[i] = true
			}
		}
	} else {
		norm, err := NormalizeAxes(axes, len(shape))
		if err != nil {
			return nil, errors.WithMessage(err, "Squeeze")
		}
		for _, a := range norm {
			if shape[a] != 1 {
				return nil, errors.Errorf("Squeeze: axis %d has size %d, not 1", a, shape[a])
			}
			drop[a] = true
		}
	}
	out := make(Shape, 0, len(shape))
	for i, d := range shape {
		if !drop[i] {
			out = append(out, d)
		}
	}
	return out, nil
}

// Unsqueeze inserts size-1 axes at the given output positions.
func Unsqueeze(x *RawTensor, axes []int) (*RawTensor, error) {
	shape, err := UnsqueezeShape(x.shape, axes)
	if err != nil {
		return nil, err
	}
	return x.WithShape(shape)
}

// UnsqueezeShape computes the Unsqueeze output shape.
func UnsqueezeShape(shape Shape, axes []int) (Shape, error) {
	if len(axes) == 0 {
		return nil, errors.New("Unsqueeze: axes must not be empty")
	}
	rank := len(shape) + len(axes)
	norm, err := NormalizeAxes(axes, rank)
	if err != nil {
		return nil, errors.WithMessage(err, "Unsqueeze")
	}
	insert := make(map[int]bool, len(norm))
	for _, a := range norm {
		insert[a] = true
	}
	out := make(Shape, rank)
	j := 0
	for i := range out {
		if insert[i] {
			out[i] = 1
			continue
		}
		out[i] = shape[j]
		j++
	}
	return out, nil
}

// Flatten reshapes x into 2D, keeping dimensions before axis in the first one.
func Flatten(x *RawTensor, axis int) (*RawTensor, error) {
	shape, err := FlattenShape(x.shape, axis)
	if err != nil {
		return nil, err
	}
	return x.WithShape(shape)
}

// FlattenShape computes the Flatten output shape. axis may equal the rank.
func FlattenShape(shape Shape, axis int) (Shape, error) {
	rank := len(shape)
	if axis < 0 {
		axis += rank
	}
	if axis < 0 || axis > rank {
		return nil, errors.Errorf("Flatten: axis %d out of range for rank %d", axis, rank)
	}
	outer := 1
	for _, d := range shape[:axis] {
		outer *= d
	}
	inner := 1
	for _, d := range shape[axis:] {
		inner *= d
	}
	return Shape{outer, inner}, nil
}

// Concat joins tensors along axis.
func Concat(tensors []*RawTensor, axis int) (*RawTensor, error) {
	if len(tensors) == 0 {
		return nil, errors.New("Concat: no tensors provided")
	}
	first := tensors[0]
	ndim := len(first.shape)
	axis, err := NormalizeAxis(axis, ndim)
	if err != nil {
		return nil, errors.WithMessage(err, "Concat")
	}

	newShape := first.shape.Clone()
	for i, t := range tensors[1:] {
		if len(t.shape) != ndim {
			return nil, errors.Errorf("Concat: tensor %d has %d dimensions, expected %d", i+1, len(t.shape), ndim)
		}
		if t.dtype != first.dtype {
			return nil, errors.Errorf("Concat: tensor %d has dtype %v, expected %v", i+1, t.dtype, first.dtype)
		}
		for j := 0; j < ndim; j++ {
			if j != axis && t.shape[j] != first.shape[j] {
				return nil, errors.Errorf("Concat: tensor %d has shape %v, incompatible with %v on axis %d",
					i+1, t.shape, first.shape, axis)
			}
		}
		newShape[axis] += t.shape[axis]
	}

	result, err := NewRaw(newShape, first.dtype)
	if err != nil {
		return nil, errors.WithMessage(err, "Concat")
	}

	outer, _, inner := splitAround(newShape, axis)
	size := first.dtype.Size()
	out := result.buffer.data
	offset := 0
	for o := 0; o < outer; o++ {
		for _, t := range tensors {
			n := t.shape[axis] * inner * size
			start := o * n
			copy(out[offset:offset+n], t.buffer.data[start:start+n])
			offset += n
		}
	}
	return result, nil
}

// ShapeTensor returns the shape of x as a rank-1 int64 tensor.
func ShapeTensor(x *RawTensor) *RawTensor {
	dims := make([]int64, len(x.shape))
	for i, d := range x.shape {
		dims[i] = int64(d)
	}
	return Int64Vector(dims)
}
