package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// FilterID identifies an HDF5 filter.
type FilterID uint16

// Filters known to the reader.
const (
	FilterDeflate     FilterID = 1
	FilterShuffle     FilterID = 2
	FilterFletcher32  FilterID = 3
	FilterSZIP        FilterID = 4
	FilterNBit        FilterID = 5
	FilterScaleOffset FilterID = 6
)

func (id FilterID) String() string {
	switch id {
	case FilterDeflate:
		return "deflate"
	case FilterShuffle:
		return "shuffle"
	case FilterFletcher32:
		return "fletcher32"
	case FilterSZIP:
		return "szip"
	case FilterNBit:
		return "nbit"
	case FilterScaleOffset:
		return "scaleoffset"
	}
	return fmt.Sprintf("filter-%d", uint16(id))
}

// ErrChecksum is returned when a fletcher32 checksum does not match.
var ErrChecksum = errors.New("fletcher32 checksum mismatch")

// Filter is one stage of a filter pipeline.
type Filter struct {
	ID         FilterID
	Flags      uint16
	Name       string
	ClientData []uint32
}

// Optional reports whether the filter may be skipped on failure.
func (f Filter) Optional() bool {
	return f.Flags&0x0001 != 0
}

// FilterPipeline is a decoded filter pipeline message (type 0x000B).
type FilterPipeline struct {
	Version uint8
	Filters []Filter
}

// ParseFilterPipeline decodes pipeline message versions 1 and 2.
func ParseFilterPipeline(data []byte) (*FilterPipeline, error) {
	if len(data) < 2 {
		return nil, errors.New("filter pipeline message too short")
	}
	fp := &FilterPipeline{Version: data[0]}
	count := int(data[1])
	if fp.Version != 1 && fp.Version != 2 {
		return nil, fmt.Errorf("unsupported filter pipeline version: %d", fp.Version)
	}

	pos := 2
	if fp.Version == 1 {
		pos += 6
	}
	u16 := func() uint16 {
		v := binary.LittleEndian.Uint16(data[pos:])
		pos += 2
		return v
	}
	for i := 0; i < count; i++ {
		if pos+2 > len(data) {
			return nil, fmt.Errorf("filter pipeline truncated at filter %d", i)
		}
		f := Filter{ID: FilterID(u16())}

		var nameLen int
		// version 2 omits the name length for predefined filters
		hasName := fp.Version == 1 || f.ID >= 256
		if pos+4 > len(data) || (hasName && pos+6 > len(data)) {
			return nil, fmt.Errorf("filter pipeline truncated at filter %d", i)
		}
		if hasName {
			nameLen = int(u16())
		}
		f.Flags = u16()
		nData := int(u16())

		if nameLen > 0 {
			padded := nameLen
			if fp.Version == 1 {
				padded = (nameLen + 7) &^ 7
			}
			if pos+padded > len(data) {
				return nil, fmt.Errorf("filter name truncated at filter %d", i)
			}
			f.Name = string(bytes.TrimRight(data[pos:pos+nameLen], "\x00"))
			pos += padded
		}

		if pos+4*nData > len(data) {
			return nil, fmt.Errorf("filter client data truncated at filter %d", i)
		}
		f.ClientData = make([]uint32, nData)
		for j := range f.ClientData {
			f.ClientData[j] = binary.LittleEndian.Uint32(data[pos:])
			pos += 4
		}
		if fp.Version == 1 && nData%2 == 1 {
			pos += 4
		}
		fp.Filters = append(fp.Filters, f)
	}
	return fp, nil
}

// Decode reverses the pipeline on one chunk. Bit i of mask set means filter
// i was not applied when the chunk was written.
func (fp *FilterPipeline) Decode(data []byte, mask uint32) ([]byte, error) {
	if fp == nil {
		return data, nil
	}
	var err error
	for i := len(fp.Filters) - 1; i >= 0; i-- {
		if i < 32 && mask&(1<<i) != 0 {
			continue
		}
		f := fp.Filters[i]
		if data, err = decodeFilter(f, data); err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.ID, err)
		}
	}
	return data, nil
}

func decodeFilter(f Filter, data []byte) ([]byte, error) {
	switch f.ID {
	case FilterDeflate:
		return inflate(data)
	case FilterShuffle:
		if len(f.ClientData) == 0 {
			return nil, errors.New("shuffle filter missing element size")
		}
		return unshuffle(data, int(f.ClientData[0]))
	case FilterFletcher32:
		return verifyFletcher32(data)
	}
	return nil, fmt.Errorf("unsupported filter %s", f.ID)
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("zlib header: %w", err)
	}
	defer func() { _ = zr.Close() }()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate: %w", err)
	}
	return out, nil
}

func unshuffle(data []byte, size int) ([]byte, error) {
	if size <= 1 || len(data) < size {
		return data, nil
	}
	n := len(data) / size
	out := make([]byte, len(data))
	for b := 0; b < size; b++ {
		plane := data[b*n : (b+1)*n]
		for e, v := range plane {
			out[e*size+b] = v
		}
	}
	// bytes past the last whole element are stored as is
	copy(out[n*size:], data[n*size:])
	return out, nil
}

func verifyFletcher32(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, errors.New("data too short for fletcher32 checksum")
	}
	body := data[:len(data)-4]
	stored := binary.LittleEndian.Uint32(data[len(data)-4:])
	sum := Fletcher32(body)
	// older library versions stored the two halves byte swapped
	swapped := (sum&0x00FF00FF)<<8 | (sum&0xFF00FF00)>>8
	if stored != sum && stored != swapped {
		return nil, fmt.Errorf("%w: stored 0x%08X, computed 0x%08X", ErrChecksum, stored, sum)
	}
	return body, nil
}

// Fletcher32 computes the HDF5 flavour of the Fletcher checksum over
// big-endian 16-bit words, padding an odd trailing byte with zero.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32
	words := len(data) / 2
	for words > 0 {
		block := min(words, 360)
		words -= block
		for ; block > 0; block-- {
			sum1 += uint32(data[0])<<8 | uint32(data[1])
			sum2 += sum1
			data = data[2:]
		}
		sum1 = (sum1 & 0xFFFF) + (sum1 >> 16)
		sum2 = (sum2 & 0xFFFF) + (sum2 >> 16)
	}
	if len(data) == 1 {
		sum1 += uint32(data[0]) << 8
		sum2 += sum1
		sum1 = (sum1 & 0xFFFF) + (sum1 >> 16)
		sum2 = (sum2 & 0xFFFF) + (sum2 >> 16)
	}
	sum1 = (sum1 & 0xFFFF) + (sum1 >> 16)
	sum2 = (sum2 & 0xFFFF) + (sum2 >> 16)
	return sum2<<16 | sum1
}
