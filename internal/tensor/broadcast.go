package tensor

// broadcastStrides computes strides for broadcasting inShape to outShape.
// Dimensions of size 1 and padded leading dimensions get stride 0.
func broadcastStrides(inShape, outShape Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	inDim := len(inShape)
	offset := outDim - inDim
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}
	return strides
}

// flatIndex maps a flat output index to the flat index of a broadcast input.
func flatIndex(outIdx int, outStrides, inStrides []int) int {
	flat := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flat += coord * inStrides[i]
	}
	return flat
}

// outputFor returns dst when its buffer can hold the result in place,
// otherwise a freshly allocated tensor.
func outputFor(dst *RawTensor, shape Shape, dtype DataType) (*RawTensor, error) {
	if dst != nil && dst.IsUnique() && dst.dtype == dtype && dst.shape.Equal(shape) {
		return dst, nil
	}
	return NewRaw(shape, dtype)
}
