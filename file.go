// Package mat73 reads MATLAB -v7.3 MAT-files. Such files are HDF5 files
// with a 512-byte MATLAB user block in front. Variables are groups
// (structs) and datasets (arrays), cell arrays are datasets of object
// references into the hidden "#refs#" group and char arrays are uint16
// datasets.
//
// GetStruct resolves a variable into plain Go values: ordered *Struct
// mappings, strings and arrays, following references on the way.
package mat73

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/utils"
)

// File is an open MAT v7.3 file. The whole group hierarchy is loaded by
// Open; dataset contents are read on demand.
type File struct {
	osFile *os.File
	path   string
	r      *io.SectionReader
	base   int64
	sb     *core.Superblock
	root   *Group

	indexOnce sync.Once
	index     map[uint64]Object
}

// Open opens a MAT v7.3 file (or any HDF5 file) for reading.
func Open(filename string) (*File, error) {
	//nolint:gosec // G304: reading caller supplied files is the point
	f, err := os.Open(filename)
	if err != nil {
		return nil, utils.WrapError("file open failed", err)
	}
	file, err := newFile(f, filename)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return file, nil
}

func newFile(f *os.File, filename string) (*File, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, utils.WrapError("file stat failed", err)
	}
	base, err := findSuperblock(f, fi.Size())
	if err != nil {
		return nil, err
	}

	file := &File{osFile: f, path: filename, base: base}
	file.r = io.NewSectionReader(f, base, fi.Size()-base)
	if file.sb, err = core.ReadSuperblock(file.r); err != nil {
		return nil, utils.WrapError("superblock read failed", err)
	}
	//nolint:gosec // G115: file sizes are positive
	if file.sb.RootGroup >= uint64(fi.Size()-base) {
		return nil, fmt.Errorf("root group address %d beyond file size %d", file.sb.RootGroup, fi.Size())
	}

	root := file.loadObject(file.sb.RootGroup, "/", map[uint64]bool{})
	switch r := root.(type) {
	case *Group:
		file.root = r
	case *Unsupported:
		return nil, utils.WrapError("root group load failed", r.reason)
	default:
		return nil, fmt.Errorf("root object is a %T, not a group", root)
	}
	return file, nil
}

// findSuperblock looks for the HDF5 signature at offset 0 and at every
// power of two from 512 on, the places a user block may end.
func findSuperblock(r io.ReaderAt, size int64) (int64, error) {
	sig := make([]byte, len(core.Signature))
	for off := int64(0); off+int64(len(sig)) <= size; {
		if _, err := r.ReadAt(sig, off); err != nil {
			return 0, utils.WrapError("signature read failed", err)
		}
		if string(sig) == core.Signature {
			return off, nil
		}
		if off == 0 {
			off = 512
		} else {
			off *= 2
		}
	}
	return 0, ErrNotHDF5
}

// Close releases the file. It is safe to call Close more than once.
func (f *File) Close() error {
	if f.osFile == nil {
		return nil
	}
	err := f.osFile.Close()
	f.osFile = nil
	return err
}

// Path is the name the file was opened with.
func (f *File) Path() string {
	return f.path
}

// Root returns the root group.
func (f *File) Root() *Group {
	return f.root
}

// UserBlockSize is the number of bytes in front of the HDF5 superblock.
func (f *File) UserBlockSize() int64 {
	return f.base
}

// SuperblockVersion returns the HDF5 superblock version.
func (f *File) SuperblockVersion() uint8 {
	return f.sb.Version
}

// Header is the 128-byte descriptive header MATLAB writes into the user
// block.
type Header struct {
	Text            string
	SubsystemOffset uint64
	Version         uint16
	ByteOrder       binary.ByteOrder
}

// Header decodes the MATLAB header. Files without one fail with ErrNoHeader.
func (f *File) Header() (*Header, error) {
	if f.osFile == nil {
		return nil, ErrClosed
	}
	if f.base < 128 {
		return nil, ErrNoHeader
	}
	buf := make([]byte, 128)
	if _, err := f.osFile.ReadAt(buf, 0); err != nil {
		return nil, utils.WrapError("header read failed", err)
	}
	if !bytes.HasPrefix(buf, []byte("MATLAB")) {
		return nil, ErrNoHeader
	}

	h := &Header{Text: strings.TrimRight(string(buf[:116]), " \x00")}
	switch string(buf[126:128]) {
	case "IM":
		h.ByteOrder = binary.LittleEndian
	case "MI":
		h.ByteOrder = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad endian indicator %q", ErrNoHeader, buf[126:128])
	}
	h.SubsystemOffset = h.ByteOrder.Uint64(buf[116:124])
	h.Version = h.ByteOrder.Uint16(buf[124:126])
	return h, nil
}

// Walk calls fn for every object, depth first from the root. Group paths
// end with a slash.
func (f *File) Walk(fn func(path string, obj Object)) {
	walkGroup(f.root, "/", fn)
}

func walkGroup(g *Group, at string, fn func(string, Object)) {
	fn(at, g)
	for _, child := range g.children {
		p := at + child.Name()
		if cg, ok := child.(*Group); ok {
			walkGroup(cg, p+"/", fn)
			continue
		}
		fn(p, child)
	}
}

// Lookup finds an object by slash separated path from the root.
func (f *File) Lookup(path string) (Object, error) {
	var cur Object = f.root
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		g, ok := cur.(*Group)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a group", ErrLookup, cur.Name())
		}
		if cur, ok = g.Child(part); !ok {
			return nil, fmt.Errorf("%w: %q", ErrLookup, path)
		}
	}
	return cur, nil
}

// Dereference returns the object a reference points at.
func (f *File) Dereference(ref Reference) (Object, error) {
	if ref == 0 || utils.IsUndefined(uint64(ref), int(f.sb.OffsetSize)) {
		return nil, fmt.Errorf("%w: null reference", ErrDanglingReference)
	}
	f.indexOnce.Do(func() {
		f.index = map[uint64]Object{}
		f.Walk(func(_ string, obj Object) {
			a, ok := obj.(interface{ Address() uint64 })
			if !ok {
				return
			}
			if _, seen := f.index[a.Address()]; !seen {
				f.index[a.Address()] = obj
			}
		})
	})
	obj, ok := f.index[uint64(ref)]
	if !ok {
		return nil, fmt.Errorf("%w: no object at 0x%X", ErrDanglingReference, uint64(ref))
	}
	return obj, nil
}
