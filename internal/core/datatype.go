package core

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// DatatypeClass is the HDF5 datatype class stored in the low nibble of a
// datatype message.
type DatatypeClass uint8

// Datatype classes.
const (
	DatatypeFixed     DatatypeClass = 0
	DatatypeFloat     DatatypeClass = 1
	DatatypeTime      DatatypeClass = 2
	DatatypeString    DatatypeClass = 3
	DatatypeBitfield  DatatypeClass = 4
	DatatypeOpaque    DatatypeClass = 5
	DatatypeCompound  DatatypeClass = 6
	DatatypeReference DatatypeClass = 7
	DatatypeEnum      DatatypeClass = 8
	DatatypeVarLen    DatatypeClass = 9
	DatatypeArray     DatatypeClass = 10
)

var classNames = map[DatatypeClass]string{
	DatatypeFixed:     "integer",
	DatatypeFloat:     "float",
	DatatypeTime:      "time",
	DatatypeString:    "string",
	DatatypeBitfield:  "bitfield",
	DatatypeOpaque:    "opaque",
	DatatypeCompound:  "compound",
	DatatypeReference: "reference",
	DatatypeEnum:      "enum",
	DatatypeVarLen:    "vlen",
	DatatypeArray:     "array",
}

func (c DatatypeClass) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class_%d", uint8(c))
}

// DatatypeMessage is a decoded datatype message (type 0x0003).
type DatatypeMessage struct {
	Class         DatatypeClass
	Version       uint8
	Size          uint32
	ClassBitField uint32
	Properties    []byte
}

// ParseDatatypeMessage decodes the 8-byte datatype prefix and keeps the
// class specific properties for later use.
func ParseDatatypeMessage(data []byte) (*DatatypeMessage, error) {
	if len(data) < 8 {
		return nil, errors.New("datatype message too short")
	}
	head := binary.LittleEndian.Uint32(data[0:4])
	return &DatatypeMessage{
		Class:         DatatypeClass(head & 0x0F),
		Version:       uint8((head >> 4) & 0x0F),
		ClassBitField: head >> 8,
		Size:          binary.LittleEndian.Uint32(data[4:8]),
		Properties:    data[8:],
	}, nil
}

// ByteOrder returns the element byte order (bit 0 of the class bit field for
// fixed-point and float types).
func (dt *DatatypeMessage) ByteOrder() binary.ByteOrder {
	if dt.ClassBitField&0x01 == 0 {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// IsSigned reports whether a fixed-point type is two's complement signed.
func (dt *DatatypeMessage) IsSigned() bool {
	return dt.Class == DatatypeFixed && dt.ClassBitField&0x08 != 0
}

// IsObjectReference reports whether the type holds object references
// (reference class, type 0).
func (dt *DatatypeMessage) IsObjectReference() bool {
	return dt.Class == DatatypeReference && dt.ClassBitField&0x0F == 0
}

// StringPadding returns the padding type of a string datatype:
// 0 null terminated, 1 null padded, 2 space padded.
func (dt *DatatypeMessage) StringPadding() uint8 {
	return uint8(dt.ClassBitField & 0x0F)
}

// EncodedSize is the number of message bytes this datatype occupies when it
// is nested inside another one (compound members).
func (dt *DatatypeMessage) EncodedSize() int {
	switch dt.Class {
	case DatatypeFixed, DatatypeBitfield:
		return 12
	case DatatypeFloat:
		return 20
	case DatatypeTime:
		return 10
	case DatatypeReference:
		return 8
	default:
		return 8 + len(dt.Properties)
	}
}

func (dt *DatatypeMessage) String() string {
	switch {
	case dt.Class == DatatypeFixed && dt.IsSigned():
		return fmt.Sprintf("int%d", dt.Size*8)
	case dt.Class == DatatypeFixed:
		return fmt.Sprintf("uint%d", dt.Size*8)
	case dt.Class == DatatypeFloat:
		return fmt.Sprintf("float%d", dt.Size*8)
	}
	return fmt.Sprintf("%s (size=%d bytes)", dt.Class, dt.Size)
}
