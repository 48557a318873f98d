package structures

import (
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// SymbolTableMessage is the body of a symbol table header message (0x0011).
type SymbolTableMessage struct {
	BTreeAddress uint64
	HeapAddress  uint64
}

// ParseSymbolTableMessage decodes the B-tree and local heap addresses.
func ParseSymbolTableMessage(data []byte, sb *core.Superblock) (*SymbolTableMessage, error) {
	off := int(sb.OffsetSize)
	if len(data) < 2*off {
		return nil, errors.New("symbol table message too short")
	}
	bt, _ := utils.ReadUint(data, off, sb.Endianness)
	heap, _ := utils.ReadUint(data[off:], off, sb.Endianness)
	return &SymbolTableMessage{BTreeAddress: bt, HeapAddress: heap}, nil
}

// Cache types of a symbol table entry.
const (
	CacheNone        = 0
	CacheSymbolTable = 1
	CacheSoftLink    = 2
)

// SymbolTableEntry is one entry of a symbol table node.
type SymbolTableEntry struct {
	LinkNameOffset uint64
	ObjectAddress  uint64
	CacheType      uint32
	// Scratch pad values when CacheType is CacheSymbolTable.
	CachedBTree uint64
	CachedHeap  uint64
}

// EntrySize is the encoded size of one symbol table entry.
func EntrySize(sb *core.Superblock) int {
	return 2*int(sb.OffsetSize) + 8 + 16
}

// ParseSymbolTableEntry decodes one entry from data.
func ParseSymbolTableEntry(data []byte, sb *core.Superblock) (SymbolTableEntry, error) {
	off := int(sb.OffsetSize)
	if len(data) < EntrySize(sb) {
		return SymbolTableEntry{}, errors.New("symbol table entry truncated")
	}
	var e SymbolTableEntry
	e.LinkNameOffset, _ = utils.ReadUint(data, off, sb.Endianness)
	e.ObjectAddress, _ = utils.ReadUint(data[off:], off, sb.Endianness)
	e.CacheType = sb.Endianness.Uint32(data[2*off:])
	if e.CacheType == CacheSymbolTable {
		scratch := data[2*off+8:]
		e.CachedBTree, _ = utils.ReadUint(scratch, off, sb.Endianness)
		e.CachedHeap, _ = utils.ReadUint(scratch[off:], off, sb.Endianness)
	}
	return e, nil
}

// ReadSymbolTableNode reads a "SNOD" node and returns its entries.
func ReadSymbolTableNode(r io.ReaderAt, address uint64, sb *core.Superblock) ([]SymbolTableEntry, error) {
	head := make([]byte, 8)
	if _, err := r.ReadAt(head, int64(address)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return nil, utils.WrapErrorf(err, "symbol table node at 0x%X", address)
	}
	if string(head[:4]) != "SNOD" {
		return nil, fmt.Errorf("invalid symbol table node signature at 0x%X: %q", address, head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("unsupported symbol table node version: %d", head[4])
	}
	count := int(sb.Endianness.Uint16(head[6:8]))
	if count == 0 {
		return nil, nil
	}

	size := EntrySize(sb)
	data := make([]byte, count*size)
	if _, err := r.ReadAt(data, int64(address)+8); err != nil { //nolint:gosec // G115: addresses fit in int64
		return nil, utils.WrapErrorf(err, "symbol table entries at 0x%X", address)
	}
	entries := make([]SymbolTableEntry, count)
	for i := range entries {
		e, err := ParseSymbolTableEntry(data[i*size:], sb)
		if err != nil {
			return nil, err
		}
		entries[i] = e
	}
	return entries, nil
}
