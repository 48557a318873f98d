package core

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// References holds decoded object reference addresses.
type References []uint64

// DecodeElements turns raw row-major element bytes into a typed slice:
// []int8 .. []uint64 for fixed-point, []float32 or []float64 for floats,
// References for object references and []complex128 for compounds made of
// "real" and "imag" float members.
func DecodeElements(dt *DatatypeMessage, raw []byte) (any, error) {
	size := int(dt.Size)
	if size == 0 {
		return nil, fmt.Errorf("zero sized %s datatype", dt.Class)
	}
	if len(raw)%size != 0 {
		return nil, fmt.Errorf("%d bytes is not a whole number of %d byte elements", len(raw), size)
	}
	n := len(raw) / size
	order := dt.ByteOrder()

	switch dt.Class {
	case DatatypeFixed:
		return decodeFixed(raw, n, size, dt.IsSigned(), order)
	case DatatypeFloat:
		return decodeFloat(raw, n, size, order)
	case DatatypeReference:
		if !dt.IsObjectReference() {
			return nil, fmt.Errorf("unsupported reference type %d", dt.ClassBitField&0x0F)
		}
		refs := make(References, n)
		for i := range refs {
			refs[i] = binary.LittleEndian.Uint64(pad8(raw[i*size : (i+1)*size]))
		}
		return refs, nil
	case DatatypeCompound:
		return decodeComplex(dt, raw, n)
	}
	return nil, fmt.Errorf("unsupported datatype %s", dt)
}

func pad8(b []byte) []byte {
	if len(b) >= 8 {
		return b[:8]
	}
	var buf [8]byte
	copy(buf[:], b)
	return buf[:]
}

func decodeFixed(raw []byte, n, size int, signed bool, order binary.ByteOrder) (any, error) {
	switch {
	case size == 1 && signed:
		out := make([]int8, n)
		for i := range out {
			out[i] = int8(raw[i]) //nolint:gosec // G115: two's complement reinterpretation
		}
		return out, nil
	case size == 1:
		return bytes.Clone(raw), nil
	case size == 2 && signed:
		out := make([]int16, n)
		for i := range out {
			out[i] = int16(order.Uint16(raw[2*i:])) //nolint:gosec // G115: two's complement reinterpretation
		}
		return out, nil
	case size == 2:
		out := make([]uint16, n)
		for i := range out {
			out[i] = order.Uint16(raw[2*i:])
		}
		return out, nil
	case size == 4 && signed:
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(order.Uint32(raw[4*i:])) //nolint:gosec // G115: two's complement reinterpretation
		}
		return out, nil
	case size == 4:
		out := make([]uint32, n)
		for i := range out {
			out[i] = order.Uint32(raw[4*i:])
		}
		return out, nil
	case size == 8 && signed:
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(order.Uint64(raw[8*i:])) //nolint:gosec // G115: two's complement reinterpretation
		}
		return out, nil
	case size == 8:
		out := make([]uint64, n)
		for i := range out {
			out[i] = order.Uint64(raw[8*i:])
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported integer size %d", size)
}

func decodeFloat(raw []byte, n, size int, order binary.ByteOrder) (any, error) {
	switch size {
	case 4:
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(order.Uint32(raw[4*i:]))
		}
		return out, nil
	case 8:
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(order.Uint64(raw[8*i:]))
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported float size %d", size)
}

// decodeComplex handles MATLAB complex arrays, stored as a compound of two
// floats named "real" and "imag".
func decodeComplex(dt *DatatypeMessage, raw []byte, n int) (any, error) {
	ct, err := ParseCompoundType(dt)
	if err != nil {
		return nil, err
	}
	re, im := ct.Member("real"), ct.Member("imag")
	if len(ct.Members) != 2 || re == nil || im == nil ||
		re.Type.Class != DatatypeFloat || im.Type.Class != DatatypeFloat {
		return nil, fmt.Errorf("unsupported compound datatype %s", ct)
	}
	part := func(m *CompoundMember, i int) float64 {
		at := i*int(dt.Size) + int(m.Offset)
		order := m.Type.ByteOrder()
		if m.Type.Size == 4 {
			return float64(math.Float32frombits(order.Uint32(raw[at:])))
		}
		return math.Float64frombits(order.Uint64(raw[at:]))
	}
	for _, m := range []*CompoundMember{re, im} {
		if m.Type.Size != 4 && m.Type.Size != 8 || m.Offset+m.Type.Size > dt.Size {
			return nil, fmt.Errorf("invalid complex member %s", m.Name)
		}
	}
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(part(re, i), part(im, i))
	}
	return out, nil
}

// DecodeFixedString trims a fixed-length string according to its padding
// type.
func DecodeFixedString(data []byte, padding uint8) string {
	switch padding {
	case 0:
		if i := bytes.IndexByte(data, 0); i >= 0 {
			return string(data[:i])
		}
	case 1:
		data = bytes.TrimRight(data, "\x00")
	case 2:
		data = bytes.TrimRight(data, " ")
	}
	return string(data)
}
