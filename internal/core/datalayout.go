package core

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/scigolib/mat73/internal/utils"
)

// DataLayoutClass says where the raw data of a dataset lives.
type DataLayoutClass uint8

// Layout classes.
const (
	LayoutCompact    DataLayoutClass = 0
	LayoutContiguous DataLayoutClass = 1
	LayoutChunked    DataLayoutClass = 2
	LayoutVirtual    DataLayoutClass = 3
)

// DataLayoutMessage is a decoded data layout message (type 0x0008).
type DataLayoutMessage struct {
	Version     uint8
	Class       DataLayoutClass
	DataAddress uint64
	DataSize    uint64
	CompactData []byte
	// ChunkDims holds the chunk shape without the trailing element size entry.
	ChunkDims []uint64
	ElemSize  uint32
}

// ParseDataLayoutMessage decodes layout messages of version 3 and 4. Only the
// v3 field set is read for v4 chunked layouts using the B-tree v1 index.
func ParseDataLayoutMessage(data []byte, sb *Superblock) (*DataLayoutMessage, error) {
	if len(data) < 2 {
		return nil, errors.New("data layout message too short")
	}
	msg := &DataLayoutMessage{Version: data[0], Class: DataLayoutClass(data[1])}
	if msg.Version < 3 || msg.Version > 4 {
		return nil, fmt.Errorf("unsupported data layout version: %d", msg.Version)
	}

	offSize, lenSize := int(sb.OffsetSize), int(sb.LengthSize)
	switch msg.Class {
	case LayoutCompact:
		if len(data) < 4 {
			return nil, errors.New("compact layout message too short")
		}
		size := int(binary.LittleEndian.Uint16(data[2:4]))
		if len(data) < 4+size {
			return nil, errors.New("compact layout data truncated")
		}
		msg.CompactData = data[4 : 4+size]
		msg.DataSize = uint64(size)

	case LayoutContiguous:
		if len(data) < 2+offSize+lenSize {
			return nil, errors.New("contiguous layout message too short")
		}
		msg.DataAddress, _ = utils.ReadUint(data[2:], offSize, sb.Endianness)
		msg.DataSize, _ = utils.ReadUint(data[2+offSize:], lenSize, sb.Endianness)

	case LayoutChunked:
		if msg.Version == 4 {
			return nil, errors.New("chunked layout version 4 indexes are not supported")
		}
		if len(data) < 3 {
			return nil, errors.New("chunked layout message too short")
		}
		rank := int(data[2])
		need := 3 + offSize + 4*rank
		if rank < 1 || len(data) < need {
			return nil, errors.New("chunked layout message truncated")
		}
		msg.DataAddress, _ = utils.ReadUint(data[3:], offSize, sb.Endianness)
		offset := 3 + offSize
		msg.ChunkDims = make([]uint64, rank-1)
		for i := range msg.ChunkDims {
			msg.ChunkDims[i] = uint64(binary.LittleEndian.Uint32(data[offset:]))
			offset += 4
		}
		msg.ElemSize = binary.LittleEndian.Uint32(data[offset:])

	default:
		return nil, fmt.Errorf("unsupported layout class: %d", msg.Class)
	}
	return msg, nil
}

func (dl *DataLayoutMessage) String() string {
	switch dl.Class {
	case LayoutCompact:
		return fmt.Sprintf("compact (size=%d)", dl.DataSize)
	case LayoutContiguous:
		return fmt.Sprintf("contiguous (address=0x%X, size=%d)", dl.DataAddress, dl.DataSize)
	case LayoutChunked:
		return fmt.Sprintf("chunked (chunks=%v)", dl.ChunkDims)
	case LayoutVirtual:
		return "virtual"
	}
	return "unknown"
}
