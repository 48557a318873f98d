package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// ObjectType identifies what an object header describes.
type ObjectType uint8

// Object types.
const (
	ObjectTypeGroup ObjectType = iota
	ObjectTypeDataset
	ObjectTypeDatatype
	ObjectTypeUnknown
)

func (t ObjectType) String() string {
	switch t {
	case ObjectTypeGroup:
		return "group"
	case ObjectTypeDataset:
		return "dataset"
	case ObjectTypeDatatype:
		return "datatype"
	}
	return "unknown"
}

// MessageType identifies a header message.
type MessageType uint16

// Header message types used by the reader.
const (
	MsgNil            MessageType = 0x00
	MsgDataspace      MessageType = 0x01
	MsgLinkInfo       MessageType = 0x02
	MsgDatatype       MessageType = 0x03
	MsgFillValueOld   MessageType = 0x04
	MsgFillValue      MessageType = 0x05
	MsgLink           MessageType = 0x06
	MsgDataLayout     MessageType = 0x08
	MsgGroupInfo      MessageType = 0x0A
	MsgFilterPipeline MessageType = 0x0B
	MsgAttribute      MessageType = 0x0C
	MsgComment        MessageType = 0x0D
	MsgAttributeInfo  MessageType = 0x0F
	MsgContinuation   MessageType = 0x10
	MsgSymbolTable    MessageType = 0x11
)

// HeaderMessage is one raw message of an object header.
type HeaderMessage struct {
	Type   MessageType
	Flags  uint8
	Offset uint64
	Data   []byte
}

// ObjectHeader is a parsed object header (version 1 or 2).
type ObjectHeader struct {
	Address  uint64
	Version  uint8
	Flags    uint8
	Type     ObjectType
	Messages []*HeaderMessage
}

// maxHeaderBlock bounds a single header chunk read from file metadata.
const maxHeaderBlock = 1 << 24

// ReadObjectHeader reads the object header at address, following
// continuation messages.
func ReadObjectHeader(r io.ReaderAt, address uint64, sb *Superblock) (*ObjectHeader, error) {
	if utils.IsUndefined(address, int(sb.OffsetSize)) {
		return nil, errors.New("undefined object header address")
	}
	prefix := make([]byte, 16)
	if _, err := r.ReadAt(prefix, int64(address)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return nil, utils.WrapErrorf(err, "object header read at 0x%X", address)
	}

	h := &ObjectHeader{Address: address}
	var err error
	switch {
	case string(prefix[:4]) == "OHDR":
		h.Version = prefix[4]
		h.Flags = prefix[5]
		err = h.readV2(r, sb)
	case prefix[0] == 1 && prefix[1] == 0:
		h.Version = 1
		err = h.readV1(r, prefix, sb)
	default:
		return nil, fmt.Errorf("invalid object header signature at 0x%X: % x", address, prefix[:4])
	}
	if err != nil {
		return nil, utils.WrapErrorf(err, "v%d header at 0x%X", h.Version, address)
	}
	h.Type = classify(h.Messages)
	return h, nil
}

// Message returns the first message of type t, or nil.
func (h *ObjectHeader) Message(t MessageType) *HeaderMessage {
	for _, m := range h.Messages {
		if m.Type == t {
			return m
		}
	}
	return nil
}

// MessagesOf returns all messages of type t in header order.
func (h *ObjectHeader) MessagesOf(t MessageType) []*HeaderMessage {
	var out []*HeaderMessage
	for _, m := range h.Messages {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func classify(messages []*HeaderMessage) ObjectType {
	hasDatatype := false
	for _, m := range messages {
		switch m.Type {
		case MsgSymbolTable, MsgLinkInfo, MsgLink, MsgGroupInfo:
			return ObjectTypeGroup
		case MsgDataspace, MsgDataLayout:
			return ObjectTypeDataset
		case MsgDatatype:
			hasDatatype = true
		}
	}
	if hasDatatype {
		return ObjectTypeDatatype
	}
	return ObjectTypeUnknown
}

type block struct {
	addr, size uint64
}

func readBlock(r io.ReaderAt, b block) ([]byte, error) {
	if err := utils.ValidateBufferSize(b.size, maxHeaderBlock, "header block"); err != nil {
		return nil, err
	}
	data := make([]byte, b.size)
	if _, err := r.ReadAt(data, int64(b.addr)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return nil, utils.WrapErrorf(err, "header block at 0x%X", b.addr)
	}
	return data, nil
}

func continuation(m *HeaderMessage, sb *Superblock) (block, error) {
	off, ln := int(sb.OffsetSize), int(sb.LengthSize)
	if len(m.Data) < off+ln {
		return block{}, errors.New("continuation message too short")
	}
	addr, _ := utils.ReadUint(m.Data, off, sb.Endianness)
	size, _ := utils.ReadUint(m.Data[off:], ln, sb.Endianness)
	if size == 0 {
		return block{}, errors.New("empty continuation block")
	}
	return block{addr: addr, size: size}, nil
}

// Version 1 prefix: version, reserved, message count (2), reference count
// (4), header size (4), padding to 16. Messages: type (2), size (2),
// flags (1), reserved (3), data padded to 8 bytes.
func (h *ObjectHeader) readV1(r io.ReaderAt, prefix []byte, sb *Superblock) error {
	count := int(sb.Endianness.Uint16(prefix[2:4]))
	size := uint64(sb.Endianness.Uint32(prefix[8:12]))

	pending := []block{{addr: h.Address + 16, size: size}}
	for len(pending) > 0 && len(h.Messages) < count {
		b := pending[0]
		pending = pending[1:]
		data, err := readBlock(r, b)
		if err != nil {
			return err
		}
		for pos := 0; pos+8 <= len(data) && len(h.Messages) < count; {
			typ := MessageType(sb.Endianness.Uint16(data[pos:]))
			n := int(sb.Endianness.Uint16(data[pos+2:]))
			flags := data[pos+4]
			if pos+8+n > len(data) {
				return fmt.Errorf("message %d overruns header block", len(h.Messages))
			}
			m := &HeaderMessage{Type: typ, Flags: flags, Offset: b.addr + uint64(pos), Data: data[pos+8 : pos+8+n]}
			h.Messages = append(h.Messages, m)
			if typ == MsgContinuation {
				c, err := continuation(m, sb)
				if err != nil {
					return err
				}
				pending = append(pending, c)
			}
			pos += 8 + (n+7)&^7
		}
	}
	return nil
}

// Version 2 prefix: "OHDR", version, flags, optional times and attribute
// phase change values, chunk #0 size. Messages: type (1), size (2),
// flags (1), optional creation order (2). Each chunk ends with a checksum.
func (h *ObjectHeader) readV2(r io.ReaderAt, sb *Superblock) error {
	if h.Version != 2 {
		return fmt.Errorf("unsupported object header version: %d", h.Version)
	}
	pos := h.Address + 6
	if h.Flags&0x20 != 0 {
		pos += 16
	}
	if h.Flags&0x10 != 0 {
		pos += 4
	}
	width := 1 << (h.Flags & 0x03)
	sizeBuf := make([]byte, width)
	if _, err := r.ReadAt(sizeBuf, int64(pos)); err != nil { //nolint:gosec // G115: addresses fit in int64
		return utils.WrapError("chunk size read failed", err)
	}
	size, _ := utils.ReadUint(sizeBuf, width, binary.LittleEndian)
	pos += uint64(width)

	msgHeader := 4
	if h.Flags&0x04 != 0 {
		msgHeader = 6
	}

	pending := []block{{addr: pos, size: size}}
	for first := true; len(pending) > 0; first = false {
		b := pending[0]
		pending = pending[1:]
		data, err := readBlock(r, b)
		if err != nil {
			return err
		}
		start := 0
		if !first {
			if len(data) < 8 || string(data[:4]) != "OCHK" {
				return fmt.Errorf("invalid continuation chunk at 0x%X", b.addr)
			}
			// signature in front, checksum behind
			start, data = 4, data[:len(data)-4]
		}
		for p := start; p+msgHeader <= len(data); {
			typ := MessageType(data[p])
			n := int(binary.LittleEndian.Uint16(data[p+1:]))
			flags := data[p+3]
			if p+msgHeader+n > len(data) {
				return fmt.Errorf("message %d overruns header chunk", len(h.Messages))
			}
			body := data[p+msgHeader : p+msgHeader+n]
			m := &HeaderMessage{Type: typ, Flags: flags, Offset: b.addr + uint64(p), Data: body}
			h.Messages = append(h.Messages, m)
			if typ == MsgContinuation {
				c, err := continuation(m, sb)
				if err != nil {
					return err
				}
				pending = append(pending, c)
			}
			p += msgHeader + n
		}
	}
	return nil
}
