package utils

import (
	"fmt"
	"math"
)

// Limits applied to sizes read from untrusted file metadata.
const (
	MaxChunkSize     = 1 << 30
	MaxDatasetSize   = 4 << 30
	MaxAttributeSize = 64 << 20
)

// SafeMultiply returns a*b or an error when the product does not fit in uint64.
func SafeMultiply(a, b uint64) (uint64, error) {
	if a != 0 && b > math.MaxUint64/a {
		return 0, fmt.Errorf("multiplication overflow: %d * %d", a, b)
	}
	return a * b, nil
}

// ByteSize multiplies all dims together with the element size.
func ByteSize(dims []uint64, elemSize uint64) (uint64, error) {
	total := elemSize
	for _, d := range dims {
		var err error
		if total, err = SafeMultiply(total, d); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// ValidateBufferSize rejects zero sizes and sizes above max.
func ValidateBufferSize(size, maxSize uint64, what string) error {
	if size == 0 {
		return fmt.Errorf("%s: size cannot be zero", what)
	}
	if size > maxSize {
		return fmt.Errorf("%s: size %d exceeds maximum %d", what, size, maxSize)
	}
	return nil
}
