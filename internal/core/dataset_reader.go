package core

import (
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// DatasetInfo bundles the messages that describe a dataset.
type DatasetInfo struct {
	Datatype  *DatatypeMessage
	Dataspace *DataspaceMessage
	Layout    *DataLayoutMessage
	Filters   *FilterPipeline
}

func (di *DatasetInfo) String() string {
	s := fmt.Sprintf("%s, %s, %s", di.Datatype, di.Dataspace, di.Layout)
	if di.Filters != nil {
		for _, f := range di.Filters.Filters {
			s += ", " + f.ID.String()
		}
	}
	return s
}

// ReadDatasetInfo decodes datatype, dataspace, layout and filter messages.
func ReadDatasetInfo(header *ObjectHeader, sb *Superblock) (*DatasetInfo, error) {
	dtMsg := header.Message(MsgDatatype)
	dsMsg := header.Message(MsgDataspace)
	layoutMsg := header.Message(MsgDataLayout)
	switch {
	case dtMsg == nil:
		return nil, errors.New("datatype message not found")
	case dsMsg == nil:
		return nil, errors.New("dataspace message not found")
	case layoutMsg == nil:
		return nil, errors.New("data layout message not found")
	}

	info := &DatasetInfo{}
	var err error
	if info.Datatype, err = ParseDatatypeMessage(dtMsg.Data); err != nil {
		return nil, utils.WrapError("datatype", err)
	}
	if info.Dataspace, err = ParseDataspaceMessage(dsMsg.Data, sb); err != nil {
		return nil, utils.WrapError("dataspace", err)
	}
	if info.Layout, err = ParseDataLayoutMessage(layoutMsg.Data, sb); err != nil {
		return nil, utils.WrapError("layout", err)
	}
	if fp := header.Message(MsgFilterPipeline); fp != nil {
		if info.Filters, err = ParseFilterPipeline(fp.Data); err != nil {
			return nil, utils.WrapError("filter pipeline", err)
		}
	}
	return info, nil
}

// ReadDatasetRaw returns the dataset's elements as raw bytes in row-major
// order, decompressed and reassembled from chunks.
func ReadDatasetRaw(r io.ReaderAt, info *DatasetInfo, sb *Superblock) ([]byte, error) {
	elemSize := uint64(info.Datatype.Size)
	total, err := utils.ByteSize(info.Dataspace.Dimensions, elemSize)
	if err != nil {
		return nil, fmt.Errorf("dataset size overflow: %w", err)
	}
	if total == 0 {
		return []byte{}, nil
	}
	if err := utils.ValidateBufferSize(total, utils.MaxDatasetSize, "dataset"); err != nil {
		return nil, err
	}

	layout := info.Layout
	switch layout.Class {
	case LayoutCompact:
		if uint64(len(layout.CompactData)) < total {
			return nil, fmt.Errorf("compact data truncated: have %d bytes, need %d", len(layout.CompactData), total)
		}
		return layout.CompactData[:total], nil

	case LayoutContiguous:
		if utils.IsUndefined(layout.DataAddress, int(sb.OffsetSize)) {
			// never written: fill value, which MATLAB leaves at zero
			return make([]byte, total), nil
		}
		raw := make([]byte, total)
		if _, err := r.ReadAt(raw, int64(layout.DataAddress)); err != nil { //nolint:gosec // G115: addresses fit in int64
			return nil, utils.WrapErrorf(err, "contiguous data at 0x%X", layout.DataAddress)
		}
		return raw, nil

	case LayoutChunked:
		return readChunked(r, info, total, sb)
	}
	return nil, fmt.Errorf("unsupported layout class: %d", layout.Class)
}

func readChunked(r io.ReaderAt, info *DatasetInfo, total uint64, sb *Superblock) ([]byte, error) {
	dims := info.Dataspace.Dimensions
	chunkDims := info.Layout.ChunkDims
	if len(chunkDims) != len(dims) {
		return nil, fmt.Errorf("chunk rank %d does not match dataset rank %d", len(chunkDims), len(dims))
	}
	elemSize := uint64(info.Datatype.Size)
	chunkBytes, err := utils.ByteSize(chunkDims, elemSize)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateBufferSize(chunkBytes, utils.MaxChunkSize, "chunk"); err != nil {
		return nil, err
	}

	raw := make([]byte, total)
	if utils.IsUndefined(info.Layout.DataAddress, int(sb.OffsetSize)) {
		return raw, nil
	}
	chunks, err := CollectChunks(r, info.Layout.DataAddress, len(dims), sb)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if err := utils.ValidateBufferSize(uint64(c.Size), utils.MaxChunkSize, "stored chunk"); err != nil {
			return nil, fmt.Errorf("chunk at 0x%X: %w", c.Address, err)
		}
		data := make([]byte, c.Size)
		if _, err := r.ReadAt(data, int64(c.Address)); err != nil { //nolint:gosec // G115: addresses fit in int64
			return nil, utils.WrapErrorf(err, "chunk at 0x%X", c.Address)
		}
		if data, err = info.Filters.Decode(data, c.FilterMask); err != nil {
			return nil, fmt.Errorf("chunk %v: %w", c.Offset, err)
		}
		if uint64(len(data)) < chunkBytes {
			return nil, fmt.Errorf("chunk %v: decoded %d bytes, want %d", c.Offset, len(data), chunkBytes)
		}
		placeChunk(raw, data, c.Offset, chunkDims, dims, elemSize)
	}
	return raw, nil
}

// placeChunk copies the part of a chunk that lies inside the dataset into
// its row-major position. Edge chunks are clipped.
func placeChunk(dst, chunk []byte, origin, chunkDims, dims []uint64, elemSize uint64) {
	rank := len(dims)
	extent := make([]uint64, rank)
	for d := range dims {
		if origin[d] >= dims[d] {
			return
		}
		extent[d] = min(chunkDims[d], dims[d]-origin[d])
	}

	rowBytes := extent[rank-1] * elemSize
	idx := make([]uint64, rank-1)
	for {
		var src, dstOff uint64
		for d := 0; d < rank; d++ {
			i := uint64(0)
			if d < rank-1 {
				i = idx[d]
			}
			src = src*chunkDims[d] + i
			dstOff = dstOff*dims[d] + origin[d] + i
		}
		copy(dst[dstOff*elemSize:dstOff*elemSize+rowBytes], chunk[src*elemSize:src*elemSize+rowBytes])

		// odometer over the leading dimensions
		d := rank - 2
		for ; d >= 0; d-- {
			idx[d]++
			if idx[d] < extent[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}
