package structures

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// LinkType is the kind of target a link message points to.
type LinkType uint8

// Link types.
const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

func (t LinkType) String() string {
	switch t {
	case LinkTypeHard:
		return "hard"
	case LinkTypeSoft:
		return "soft"
	case LinkTypeExternal:
		return "external"
	}
	return fmt.Sprintf("link-%d", uint8(t))
}

// Link message flag bits.
const (
	flagNameSizeMask    = 0x03
	flagCreationOrder   = 0x04
	flagStoreLinkType   = 0x08
	flagStoreCharset    = 0x10
	maxLinkMessageFlags = 0x1F
)

// LinkMessage is a decoded link message (0x0006) of a compact group.
type LinkMessage struct {
	Type          LinkType
	CreationOrder int64
	Name          string
	// Address is the object header address of a hard link target.
	Address uint64
	// Target is the path of a soft link or the raw value of an external one.
	Target string
}

// ParseLinkMessage decodes a version 1 link message.
func ParseLinkMessage(data []byte, sb *core.Superblock) (*LinkMessage, error) {
	if len(data) < 3 {
		return nil, errors.New("link message too short")
	}
	if data[0] != 1 {
		return nil, fmt.Errorf("unsupported link message version: %d", data[0])
	}
	flags := data[1]
	if flags&^maxLinkMessageFlags != 0 {
		return nil, fmt.Errorf("unknown link message flags: 0x%02X", flags)
	}

	pos := 2
	need := func(n int) error {
		if pos+n > len(data) {
			return fmt.Errorf("link message truncated at byte %d", pos)
		}
		return nil
	}

	lm := &LinkMessage{}
	if flags&flagStoreLinkType != 0 {
		if err := need(1); err != nil {
			return nil, err
		}
		lm.Type = LinkType(data[pos])
		pos++
	}
	if flags&flagCreationOrder != 0 {
		if err := need(8); err != nil {
			return nil, err
		}
		lm.CreationOrder = int64(binary.LittleEndian.Uint64(data[pos:])) //nolint:gosec // G115: stored as signed
		pos += 8
	}
	if flags&flagStoreCharset != 0 {
		pos++
	}

	width := 1 << (flags & flagNameSizeMask)
	if err := need(width); err != nil {
		return nil, err
	}
	nameLen, _ := utils.ReadUint(data[pos:], width, binary.LittleEndian)
	pos += width
	if err := need(int(nameLen)); err != nil { //nolint:gosec // G115: bounded by message size
		return nil, err
	}
	lm.Name = string(data[pos : pos+int(nameLen)]) //nolint:gosec // G115: bounded by message size
	pos += int(nameLen)                             //nolint:gosec // G115: bounded by message size

	switch lm.Type {
	case LinkTypeHard:
		off := int(sb.OffsetSize)
		if err := need(off); err != nil {
			return nil, err
		}
		lm.Address, _ = utils.ReadUint(data[pos:], off, sb.Endianness)
	default:
		if err := need(2); err != nil {
			return nil, err
		}
		n := int(binary.LittleEndian.Uint16(data[pos:]))
		pos += 2
		if err := need(n); err != nil {
			return nil, err
		}
		lm.Target = string(data[pos : pos+n])
	}
	return lm, nil
}

// IsHardLink reports whether the link points at an object header.
func (lm *LinkMessage) IsHardLink() bool {
	return lm.Type == LinkTypeHard
}

func (lm *LinkMessage) String() string {
	if lm.IsHardLink() {
		return fmt.Sprintf("%s -> 0x%X", lm.Name, lm.Address)
	}
	return fmt.Sprintf("%s -> %s link %q", lm.Name, lm.Type, lm.Target)
}
