package core

import (
	"errors"
	"fmt"

	"github.com/scigolib/mat73/internal/utils"
)

// Attribute is a decoded attribute message (0x000C) stored compactly in an
// object header.
type Attribute struct {
	Name      string
	Datatype  *DatatypeMessage
	Dataspace *DataspaceMessage
	Data      []byte
}

// ParseAttributeMessage decodes attribute message versions 1 to 3. In
// version 1 the name, datatype and dataspace fields are padded to multiples
// of 8 bytes.
func ParseAttributeMessage(data []byte, sb *Superblock) (*Attribute, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("attribute message too short: %d bytes", len(data))
	}
	version := data[0]
	if version < 1 || version > 3 {
		return nil, fmt.Errorf("unsupported attribute message version: %d", version)
	}
	order := sb.Endianness
	nameSize := int(order.Uint16(data[2:4]))
	typeSize := int(order.Uint16(data[4:6]))
	spaceSize := int(order.Uint16(data[6:8]))
	pos := 8
	if version == 3 {
		pos++ // name character set
	}

	padded := func(n int) int {
		if version == 1 {
			return (n + 7) &^ 7
		}
		return n
	}
	field := func(n int, what string) ([]byte, error) {
		if pos+n > len(data) {
			return nil, fmt.Errorf("attribute %s extends beyond message", what)
		}
		f := data[pos : pos+n]
		pos += padded(n)
		return f, nil
	}

	name, err := field(nameSize, "name")
	if err != nil {
		return nil, err
	}
	attr := &Attribute{Name: DecodeFixedString(name, 0)}

	dtData, err := field(typeSize, "datatype")
	if err != nil {
		return nil, err
	}
	if attr.Datatype, err = ParseDatatypeMessage(dtData); err != nil {
		return nil, utils.WrapErrorf(err, "attribute %q datatype", attr.Name)
	}

	dsData, err := field(spaceSize, "dataspace")
	if err != nil {
		return nil, err
	}
	if attr.Dataspace, err = ParseDataspaceMessage(dsData, sb); err != nil {
		return nil, utils.WrapErrorf(err, "attribute %q dataspace", attr.Name)
	}

	if pos < len(data) {
		attr.Data = data[pos:]
	}
	return attr, nil
}

// ParseAttributes decodes all compact attributes of an object header.
// Dense attribute storage is reported as an error.
func ParseAttributes(h *ObjectHeader, sb *Superblock) ([]*Attribute, error) {
	var attrs []*Attribute
	for _, m := range h.MessagesOf(MsgAttribute) {
		a, err := ParseAttributeMessage(m.Data, sb)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, a)
	}
	if info := h.Message(MsgAttributeInfo); info != nil && len(attrs) == 0 && denseAttributes(info.Data, sb) {
		return nil, errors.New("dense attribute storage is not supported")
	}
	return attrs, nil
}

// denseAttributes reports whether an attribute info message points at a
// fractal heap.
func denseAttributes(data []byte, sb *Superblock) bool {
	if len(data) < 2 {
		return false
	}
	pos := 2
	if data[1]&0x01 != 0 {
		pos += 2
	}
	heap, err := utils.ReadUint(data[min(pos, len(data)):], int(sb.OffsetSize), sb.Endianness)
	return err == nil && !utils.IsUndefined(heap, int(sb.OffsetSize))
}

// Value decodes the attribute. Scalar and single element attributes yield
// a single value; strings yield string or []string.
func (a *Attribute) Value() (any, error) {
	n := a.Dataspace.TotalElements()
	size := uint64(a.Datatype.Size)
	total, err := utils.ByteSize(a.Dataspace.Dimensions, size)
	if err != nil {
		return nil, utils.WrapErrorf(err, "attribute %q", a.Name)
	}
	if total > utils.MaxAttributeSize {
		return nil, fmt.Errorf("attribute %q: %d bytes exceeds limit %d", a.Name, total, utils.MaxAttributeSize)
	}
	if uint64(len(a.Data)) < total {
		return nil, fmt.Errorf("attribute %q data truncated", a.Name)
	}
	raw := a.Data[:total]

	if a.Datatype.Class == DatatypeString {
		out := make([]string, n)
		for i := range out {
			out[i] = DecodeFixedString(raw[uint64(i)*size:uint64(i+1)*size], a.Datatype.StringPadding())
		}
		if n == 1 {
			return out[0], nil
		}
		return out, nil
	}

	v, err := DecodeElements(a.Datatype, raw)
	if err != nil {
		return nil, utils.WrapErrorf(err, "attribute %q", a.Name)
	}
	if n == 1 {
		return first(v), nil
	}
	return v, nil
}

func first(v any) any {
	switch s := v.(type) {
	case []int8:
		return s[0]
	case []uint8:
		return s[0]
	case []int16:
		return s[0]
	case []uint16:
		return s[0]
	case []int32:
		return s[0]
	case []uint32:
		return s[0]
	case []int64:
		return s[0]
	case []uint64:
		return s[0]
	case []float32:
		return s[0]
	case []float64:
		return s[0]
	case []complex128:
		return s[0]
	case References:
		return s[0]
	}
	return v
}
