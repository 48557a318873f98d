package core

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/scigolib/mat73/internal/utils"
)

// Signature is the 8-byte HDF5 format signature.
const Signature = "\x89HDF\r\n\x1a\n"

// ErrNoSignature is returned when the HDF5 signature is missing.
var ErrNoSignature = errors.New("invalid HDF5 signature")

// Superblock holds the file-level metadata needed to walk the hierarchy.
// Addresses are relative to the superblock position.
type Superblock struct {
	Version     uint8
	OffsetSize  uint8
	LengthSize  uint8
	BaseAddress uint64
	EOFAddress  uint64
	Endianness  binary.ByteOrder

	// RootGroup is the object header address of the root group.
	RootGroup uint64
	// RootBTree and RootHeap come from the root symbol table entry scratch
	// pad (v0/v1 superblocks); zero when not cached.
	RootBTree uint64
	RootHeap  uint64
}

// ReadSuperblock decodes the superblock found at offset 0 of r.
// Versions 0 to 3 are accepted.
func ReadSuperblock(r io.ReaderAt) (*Superblock, error) {
	buf := utils.GetBuffer(128)
	defer utils.ReleaseBuffer(buf)

	n, err := r.ReadAt(buf, 0)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, utils.WrapError("superblock read failed", err)
	}
	buf = buf[:n]
	if n < 8 || string(buf[:8]) != Signature {
		return nil, ErrNoSignature
	}
	if n < 48 {
		return nil, errors.New("file too small to contain a superblock")
	}

	sb := &Superblock{Version: buf[8], Endianness: binary.LittleEndian}
	switch sb.Version {
	case 0, 1:
		err = sb.decodeLegacy(buf)
	case 2, 3:
		err = sb.decodeModern(buf)
	default:
		return nil, fmt.Errorf("unsupported superblock version: %d", sb.Version)
	}
	if err != nil {
		return nil, utils.WrapErrorf(err, "superblock v%d", sb.Version)
	}
	return sb, nil
}

func validFieldSize(s uint8) bool {
	return s == 2 || s == 4 || s == 8
}

func (sb *Superblock) decodeLegacy(buf []byte) error {
	sb.OffsetSize, sb.LengthSize = buf[13], buf[14]
	if !validFieldSize(sb.OffsetSize) || !validFieldSize(sb.LengthSize) {
		return fmt.Errorf("invalid sizes: offset=%d, length=%d", sb.OffsetSize, sb.LengthSize)
	}
	pos := 24
	if sb.Version == 1 {
		pos += 4
	}
	off := int(sb.OffsetSize)
	// base, free-space info, end of file, driver info, root symbol table entry
	entry := pos + 4*off
	if len(buf) < entry+2*off+8+16 {
		return errors.New("truncated root symbol table entry")
	}
	next := func(at int) uint64 {
		v, _ := utils.ReadUint(buf[at:], off, sb.Endianness)
		return v
	}
	sb.BaseAddress = next(pos)
	sb.EOFAddress = next(pos + 2*off)
	sb.RootGroup = next(entry + off)
	cacheType := sb.Endianness.Uint32(buf[entry+2*off:])
	if cacheType == 1 {
		scratch := entry + 2*off + 8
		sb.RootBTree = next(scratch)
		sb.RootHeap = next(scratch + off)
	}
	return nil
}

func (sb *Superblock) decodeModern(buf []byte) error {
	sb.OffsetSize, sb.LengthSize = buf[9], buf[10]
	if !validFieldSize(sb.OffsetSize) || !validFieldSize(sb.LengthSize) {
		return fmt.Errorf("invalid sizes: offset=%d, length=%d", sb.OffsetSize, sb.LengthSize)
	}
	off := int(sb.OffsetSize)
	if len(buf) < 12+4*off+4 {
		return errors.New("truncated superblock")
	}
	next := func(at int) uint64 {
		v, _ := utils.ReadUint(buf[at:], off, sb.Endianness)
		return v
	}
	// base, superblock extension, end of file, root group object header
	sb.BaseAddress = next(12)
	sb.EOFAddress = next(12 + 2*off)
	sb.RootGroup = next(12 + 3*off)
	return nil
}
