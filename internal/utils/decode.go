package utils

import (
	"encoding/binary"
	"fmt"
)

// ReadUint decodes an unsigned integer stored in size bytes (1, 2, 4 or 8).
func ReadUint(data []byte, size int, order binary.ByteOrder) (uint64, error) {
	if len(data) < size {
		return 0, fmt.Errorf("need %d bytes, have %d", size, len(data))
	}
	switch size {
	case 1:
		return uint64(data[0]), nil
	case 2:
		return uint64(order.Uint16(data)), nil
	case 4:
		return uint64(order.Uint32(data)), nil
	case 8:
		return order.Uint64(data), nil
	}
	return 0, fmt.Errorf("unsupported field size %d", size)
}

// IsUndefined reports whether addr is the all-ones "undefined address".
func IsUndefined(addr uint64, size int) bool {
	if size >= 8 {
		return addr == ^uint64(0)
	}
	return addr == (uint64(1)<<(8*size))-1
}
