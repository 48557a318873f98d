package core

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// CompoundMember is one field of a compound datatype.
type CompoundMember struct {
	Name   string
	Offset uint32
	Type   *DatatypeMessage
}

// CompoundType is a decoded compound datatype. Members must be atomic
// (integer, float or reference); nested compounds are rejected.
type CompoundType struct {
	Size    uint32
	Members []CompoundMember
}

// ParseCompoundType decodes the member list of a compound datatype,
// versions 1 to 3.
func ParseCompoundType(dt *DatatypeMessage) (*CompoundType, error) {
	if dt.Class != DatatypeCompound {
		return nil, errors.New("not a compound datatype")
	}
	count := int(dt.ClassBitField & 0xFFFF)
	ct := &CompoundType{Size: dt.Size}
	p := dt.Properties

	offsetWidth := 4
	if dt.Version == 3 {
		offsetWidth = 1
		for s := dt.Size >> 8; s > 0; s >>= 8 {
			offsetWidth++
		}
	} else if dt.Version != 1 && dt.Version != 2 {
		return nil, fmt.Errorf("unsupported compound datatype version: %d", dt.Version)
	}

	pos := 0
	for i := 0; i < count; i++ {
		end := bytes.IndexByte(p[min(pos, len(p)):], 0)
		if end < 0 {
			return nil, fmt.Errorf("member %d name not null-terminated", i)
		}
		m := CompoundMember{Name: string(p[pos : pos+end])}
		if dt.Version == 3 {
			pos += end + 1
		} else {
			pos += (end + 8) &^ 7
		}

		if pos+offsetWidth > len(p) {
			return nil, fmt.Errorf("member %d (%s): offset truncated", i, m.Name)
		}
		var buf [4]byte
		copy(buf[:], p[pos:pos+offsetWidth])
		m.Offset = binary.LittleEndian.Uint32(buf[:])
		pos += offsetWidth
		if dt.Version == 1 {
			// rank, reserved, permutation, reserved, four dimension sizes
			pos += 28
		}

		if pos+8 > len(p) {
			return nil, fmt.Errorf("member %d (%s): datatype truncated", i, m.Name)
		}
		mt, err := ParseDatatypeMessage(p[pos:])
		if err != nil {
			return nil, fmt.Errorf("member %d (%s): %w", i, m.Name, err)
		}
		switch mt.Class {
		case DatatypeFixed, DatatypeFloat, DatatypeReference, DatatypeBitfield:
		default:
			return nil, fmt.Errorf("member %d (%s): unsupported member class %s", i, m.Name, mt.Class)
		}
		m.Type = mt
		pos += mt.EncodedSize()
		ct.Members = append(ct.Members, m)
	}
	return ct, nil
}

// Member returns the member called name, or nil.
func (ct *CompoundType) Member(name string) *CompoundMember {
	for i := range ct.Members {
		if ct.Members[i].Name == name {
			return &ct.Members[i]
		}
	}
	return nil
}

func (ct *CompoundType) String() string {
	parts := make([]string, len(ct.Members))
	for i, m := range ct.Members {
		parts[i] = fmt.Sprintf("%s:%s@%d", m.Name, m.Type, m.Offset)
	}
	return fmt.Sprintf("compound{size=%d, members=[%s]}", ct.Size, strings.Join(parts, ", "))
}
