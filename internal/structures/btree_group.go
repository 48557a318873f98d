package structures

import (
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// maxTreeDepth guards against cycles in corrupt group B-trees.
const maxTreeDepth = 32

// ReadGroupBTreeEntries walks a version 1 group B-tree (node type 0) and
// returns the symbol table entries of all its SNOD leaves in key order.
func ReadGroupBTreeEntries(r io.ReaderAt, address uint64, sb *core.Superblock) ([]SymbolTableEntry, error) {
	var out []SymbolTableEntry
	if err := walkGroupNode(r, address, sb, maxTreeDepth, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkGroupNode(r io.ReaderAt, address uint64, sb *core.Superblock, depth int, out *[]SymbolTableEntry) error {
	if depth == 0 {
		return fmt.Errorf("group B-tree at 0x%X nested too deep", address)
	}
	off, ln := int(sb.OffsetSize), int(sb.LengthSize)
	headerSize := 8 + 2*off
	header := utils.GetBuffer(headerSize)
	defer utils.ReleaseBuffer(header)

	if _, err := r.ReadAt(header, int64(address)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return utils.WrapErrorf(err, "group B-tree node at 0x%X", address)
	}
	if string(header[:4]) != "TREE" {
		return fmt.Errorf("invalid B-tree signature at 0x%X: %q", address, header[:4])
	}
	if header[4] != 0 {
		return fmt.Errorf("expected group B-tree (type 0) at 0x%X, got type %d", address, header[4])
	}
	level := header[5]
	used := int(sb.Endianness.Uint16(header[6:8]))
	if used == 0 {
		return nil
	}

	// key, child, key, child, ..., key
	body := make([]byte, used*(ln+off)+ln)
	if _, err := r.ReadAt(body, int64(address)+int64(headerSize)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return utils.WrapErrorf(err, "group B-tree body at 0x%X", address)
	}
	for i := 0; i < used; i++ {
		child, _ := utils.ReadUint(body[ln+i*(ln+off):], off, sb.Endianness)
		if level > 0 {
			if err := walkGroupNode(r, child, sb, depth-1, out); err != nil {
				return err
			}
			continue
		}
		entries, err := ReadSymbolTableNode(r, child, sb)
		if err != nil {
			return err
		}
		*out = append(*out, entries...)
	}
	return nil
}
