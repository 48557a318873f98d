// Package structures reads the on-disk structures that hold group
// membership: local heaps, symbol table nodes, group B-trees and link
// messages.
package structures

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// LocalHeap is a version 0 local heap ("HEAP"), used to store the link
// names of a symbol table group.
type LocalHeap struct {
	DataAddress uint64
	Data        []byte
}

// maxHeapSize bounds the data segment read from file metadata.
const maxHeapSize = 64 << 20

// LoadLocalHeap reads the heap header at address and its data segment.
func LoadLocalHeap(r io.ReaderAt, address uint64, sb *core.Superblock) (*LocalHeap, error) {
	off, ln := int(sb.OffsetSize), int(sb.LengthSize)
	header := utils.GetBuffer(8 + 2*ln + off)
	defer utils.ReleaseBuffer(header)

	if _, err := r.ReadAt(header, int64(address)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return nil, utils.WrapErrorf(err, "local heap header at 0x%X", address)
	}
	if string(header[:4]) != "HEAP" {
		return nil, fmt.Errorf("invalid local heap signature at 0x%X: %q", address, header[:4])
	}
	if header[4] != 0 {
		return nil, fmt.Errorf("unsupported local heap version: %d", header[4])
	}

	size, _ := utils.ReadUint(header[8:], ln, sb.Endianness)
	// free list offset sits between the size and the data address
	dataAddr, _ := utils.ReadUint(header[8+2*ln:], off, sb.Endianness)
	if size > maxHeapSize {
		return nil, fmt.Errorf("local heap data segment too large: %d", size)
	}

	h := &LocalHeap{DataAddress: dataAddr, Data: make([]byte, size)}
	if _, err := r.ReadAt(h.Data, int64(dataAddr)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return nil, utils.WrapErrorf(err, "local heap data at 0x%X", dataAddr)
	}
	return h, nil
}

// GetString returns the null terminated string starting at offset.
func (h *LocalHeap) GetString(offset uint64) (string, error) {
	if offset >= uint64(len(h.Data)) {
		return "", fmt.Errorf("heap offset %d beyond data segment (%d bytes)", offset, len(h.Data))
	}
	tail := h.Data[offset:]
	end := bytes.IndexByte(tail, 0)
	if end < 0 {
		return "", errors.New("unterminated heap string")
	}
	return string(tail[:end]), nil
}
