package core

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// ChunkEntry locates one stored chunk of a chunked dataset.
type ChunkEntry struct {
	Address    uint64
	Size       uint32
	FilterMask uint32
	// Offset is the element coordinate of the chunk's first element.
	Offset []uint64
}

// maxChunkTreeDepth guards against cycles in corrupt chunk B-trees.
const maxChunkTreeDepth = 32

// CollectChunks walks the raw data chunk B-tree (node type 1) rooted at
// address and returns every chunk of a dataset with the given rank.
func CollectChunks(r io.ReaderAt, address uint64, rank int, sb *Superblock) ([]ChunkEntry, error) {
	var out []ChunkEntry
	if err := collectChunks(r, address, rank, sb, maxChunkTreeDepth, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectChunks(r io.ReaderAt, address uint64, rank int, sb *Superblock, depth int, out *[]ChunkEntry) error {
	if depth == 0 {
		return fmt.Errorf("chunk B-tree at 0x%X nested too deep", address)
	}
	off := int(sb.OffsetSize)
	headerSize := 8 + 2*off
	header := utils.GetBuffer(headerSize)
	defer utils.ReleaseBuffer(header)

	if _, err := r.ReadAt(header, int64(address)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return utils.WrapErrorf(err, "chunk B-tree node at 0x%X", address)
	}
	if string(header[:4]) != "TREE" {
		return fmt.Errorf("invalid B-tree signature at 0x%X: %q", address, header[:4])
	}
	if header[4] != 1 {
		return fmt.Errorf("expected chunk B-tree (type 1) at 0x%X, got type %d", address, header[4])
	}
	level := header[5]
	used := int(sb.Endianness.Uint16(header[6:8]))

	// chunk size (4), filter mask (4), rank+1 offsets of 8 bytes
	keySize := 8 + 8*(rank+1)
	body := make([]byte, used*(keySize+off)+keySize)
	if _, err := r.ReadAt(body, int64(address)+int64(headerSize)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return utils.WrapErrorf(err, "chunk B-tree body at 0x%X", address)
	}

	for i := 0; i < used; i++ {
		key := body[i*(keySize+off):]
		child, _ := utils.ReadUint(key[keySize:], off, sb.Endianness)
		if level > 0 {
			if err := collectChunks(r, child, rank, sb, depth-1, out); err != nil {
				return err
			}
			continue
		}
		entry := ChunkEntry{
			Address:    child,
			Size:       binary.LittleEndian.Uint32(key[0:4]),
			FilterMask: binary.LittleEndian.Uint32(key[4:8]),
			Offset:     make([]uint64, rank),
		}
		for d := range entry.Offset {
			entry.Offset[d] = binary.LittleEndian.Uint64(key[8+8*d:])
		}
		*out = append(*out, entry)
	}
	return nil
}
