package core

import (
	"errors"
	"fmt"

	"github.com/scigolib/mat73/internal/utils"
)

// DataspaceType distinguishes scalar, simple and null dataspaces.
type DataspaceType uint8

// Dataspace types.
const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// DataspaceMessage is a decoded dataspace message (type 0x0001).
// Scalar dataspaces report Dimensions [1], null dataspaces [0].
type DataspaceMessage struct {
	Version    uint8
	Type       DataspaceType
	Dimensions []uint64
	MaxDims    []uint64
}

// ParseDataspaceMessage decodes dataspace versions 1 and 2. Dimension sizes
// are stored in "size of lengths" bytes.
func ParseDataspaceMessage(data []byte, sb *Superblock) (*DataspaceMessage, error) {
	if len(data) < 4 {
		return nil, errors.New("dataspace message too short")
	}
	ds := &DataspaceMessage{Version: data[0]}
	rank := int(data[1])
	flags := data[2]

	var offset int
	switch ds.Version {
	case 1:
		offset = 8
		ds.Type = DataspaceSimple
		if rank == 0 {
			ds.Type = DataspaceScalar
		}
	case 2:
		offset = 4
		ds.Type = DataspaceType(data[3])
	default:
		return nil, fmt.Errorf("unsupported dataspace version: %d", ds.Version)
	}

	switch {
	case ds.Type == DataspaceNull:
		ds.Dimensions = []uint64{0}
		return ds, nil
	case rank == 0:
		ds.Type = DataspaceScalar
		ds.Dimensions = []uint64{1}
		return ds, nil
	}

	size := int(sb.LengthSize)
	read := func(n int) ([]uint64, error) {
		dims := make([]uint64, n)
		for i := range dims {
			v, err := utils.ReadUint(data[min(offset, len(data)):], size, sb.Endianness)
			if err != nil {
				return nil, utils.WrapErrorf(err, "dimension %d", i)
			}
			dims[i] = v
			offset += size
		}
		return dims, nil
	}

	var err error
	if ds.Dimensions, err = read(rank); err != nil {
		return nil, err
	}
	if flags&0x01 != 0 {
		if ds.MaxDims, err = read(rank); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// TotalElements is the product of all dimensions.
func (ds *DataspaceMessage) TotalElements() uint64 {
	total := uint64(1)
	for _, d := range ds.Dimensions {
		total *= d
	}
	return total
}

func (ds *DataspaceMessage) String() string {
	switch ds.Type {
	case DataspaceScalar:
		return "scalar"
	case DataspaceNull:
		return "null"
	}
	return fmt.Sprintf("simple %v", ds.Dimensions)
}
