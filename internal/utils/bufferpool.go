// Package utils holds small helpers shared by the HDF5 read path.
package utils

import "sync"

var scratch = sync.Pool{
	New: func() any {
		return make([]byte, 0, 4096)
	},
}

// GetBuffer returns a scratch slice of exactly size bytes. Callers must not
// keep it after ReleaseBuffer.
func GetBuffer(size int) []byte {
	buf := scratch.Get().([]byte)
	if cap(buf) < size {
		return make([]byte, size, size*2)
	}
	return buf[:size]
}

// ReleaseBuffer hands a slice obtained from GetBuffer back to the pool.
func ReleaseBuffer(buf []byte) {
	//nolint:staticcheck // SA6002: slice header copy is fine here
	scratch.Put(buf[:0])
}
