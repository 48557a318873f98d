// Package testing builds small MAT v7.3 style HDF5 files for tests: a MATLAB
// user block, a version 0 superblock and version 1 object headers.
package testing

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"
	"github.com/scigolib/mat73/internal/core"
)

var le = binary.LittleEndian

const undefined = ^uint64(0)

// Node is something the builder can lay out as an object header.
type Node interface {
	isNode()
}

// Link names a child of a group.
type Link struct {
	Name string
	Node Node
}

// Group is a group object. SymbolTable selects the B-tree plus local heap
// layout MATLAB writes; otherwise links are stored as link messages.
type Group struct {
	Links       []Link
	Attrs       []Attr
	SymbolTable bool
}

// Dataset is a dataset object. Data holds the row-major element bytes;
// Refs, when set, replaces Data with the addresses of the referenced nodes.
type Dataset struct {
	Type  Datatype
	Dims  []uint64
	Data  []byte
	Refs  []Node
	Attrs []Attr
	// Contiguous stores the data outside the header.
	Contiguous bool
	// Chunk enables the chunked layout with the given chunk shape.
	Chunk     []uint64
	Deflate   bool
	Fletcher  bool
	BadSum    bool
	HeaderPad int
}

// Opaque is an object whose header carries only a datatype message (a
// committed datatype).
type Opaque struct{}

func (*Group) isNode()   {}
func (*Dataset) isNode() {}
func (*Opaque) isNode()  {}

// Attr is a compact attribute.
type Attr struct {
	Name string
	Type Datatype
	Dims []uint64
	Data []byte
}

// ClassAttr returns the MATLAB_class attribute for class.
func ClassAttr(class string) Attr {
	return Attr{Name: "MATLAB_class", Type: String(len(class)), Data: []byte(class)}
}

// Datatype is an encoded datatype message.
type Datatype struct {
	enc  []byte
	size int
}

// Size is the element size in bytes.
func (d Datatype) Size() int { return d.size }

func typeHeader(class, version byte, bits uint32, size int) []byte {
	b := make([]byte, 8)
	le.PutUint32(b, uint32(class)|uint32(version)<<4|bits<<8)
	le.PutUint32(b[4:], uint32(size)) //nolint:gosec // G115: test sizes are small
	return b
}

// Int is a little-endian fixed-point type of size bytes.
func Int(size int, signed bool) Datatype {
	var bits uint32
	if signed {
		bits = 0x08
	}
	b := typeHeader(0, 1, bits, size)
	b = le.AppendUint16(b, 0)
	b = le.AppendUint16(b, uint16(size*8)) //nolint:gosec // G115: test sizes are small
	return Datatype{enc: b, size: size}
}

// BigEndianInt is a big-endian fixed-point type.
func BigEndianInt(size int, signed bool) Datatype {
	d := Int(size, signed)
	d.enc[1] |= 0x01
	return d
}

// Float is an IEEE float of 4 or 8 bytes.
func Float(size int) Datatype {
	sign, expLoc, expSize, mantSize, bias := 31, 23, 8, 23, uint32(127)
	if size == 8 {
		sign, expLoc, expSize, mantSize, bias = 63, 52, 11, 52, 1023
	}
	b := typeHeader(1, 1, 0x20|uint32(sign)<<8, size) //nolint:gosec // G115: constant
	b = le.AppendUint16(b, 0)
	b = le.AppendUint16(b, uint16(size*8)) //nolint:gosec // G115: test sizes are small
	b = append(b, byte(expLoc), byte(expSize), 0, byte(mantSize))
	b = le.AppendUint32(b, bias)
	return Datatype{enc: b, size: size}
}

// String is a null terminated fixed-length ASCII string type.
func String(size int) Datatype {
	return Datatype{enc: typeHeader(3, 1, 0, size), size: size}
}

// Reference is an object reference type.
func Reference() Datatype {
	return Datatype{enc: typeHeader(7, 1, 0, 8), size: 8}
}

// Complex is the MATLAB complex double compound {real, imag}.
func Complex() Datatype {
	b := typeHeader(6, 1, 2, 16)
	for i, name := range []string{"real", "imag"} {
		field := make([]byte, 8)
		copy(field, name)
		b = append(b, field...)
		b = le.AppendUint32(b, uint32(8*i)) //nolint:gosec // G115: constant
		b = append(b, make([]byte, 28)...)
		b = append(b, Float(8).enc...)
	}
	return Datatype{enc: b, size: 16}
}

// Builder lays out objects in a byte buffer addressed from the superblock.
type Builder struct {
	buf       []byte
	addrs     map[Node]uint64
	userBlock int
	header    string
}

// NewBuilder returns a builder that writes a 512-byte MATLAB user block.
func NewBuilder() *Builder {
	return &Builder{
		addrs:     map[Node]uint64{},
		userBlock: 512,
		header:    "MATLAB 7.3 MAT-file, Platform: GLNXA64, Created on: Mon Oct 19 10:00:00 2026 HDF5 schema 1.00 .",
	}
}

// UserBlock sets the user block size; 0 writes a plain HDF5 file.
func (b *Builder) UserBlock(size int) *Builder {
	b.userBlock = size
	return b
}

func (b *Builder) alloc(n int) uint64 {
	for len(b.buf)%8 != 0 {
		b.buf = append(b.buf, 0)
	}
	at := uint64(len(b.buf))
	b.buf = append(b.buf, make([]byte, n)...)
	return at
}

func (b *Builder) put(data []byte) uint64 {
	at := b.alloc(len(data))
	copy(b.buf[at:], data)
	return at
}

// Address returns where n was written. It panics for nodes not yet built.
func (b *Builder) Address(n Node) uint64 {
	addr, ok := b.addrs[n]
	if !ok {
		panic(fmt.Sprintf("node %p not written", n))
	}
	return addr
}

// Bytes lays out root and returns the complete file image.
func (b *Builder) Bytes(root *Group) []byte {
	b.buf = make([]byte, 96)
	rootAddr := b.write(root)

	sb := b.buf[:96]
	copy(sb, core.Signature)
	sb[13], sb[14] = 8, 8
	le.PutUint16(sb[16:], 4)
	le.PutUint16(sb[18:], 16)
	le.PutUint64(sb[24:], 0)
	le.PutUint64(sb[32:], undefined)
	le.PutUint64(sb[40:], uint64(len(b.buf)))
	le.PutUint64(sb[48:], undefined)
	le.PutUint64(sb[64:], rootAddr)

	out := make([]byte, 0, b.userBlock+len(b.buf))
	if b.userBlock > 0 {
		ub := bytes.Repeat([]byte{0}, b.userBlock)
		text := []byte(b.header)
		copy(ub, bytes.Repeat([]byte{' '}, 116))
		copy(ub, text)
		le.PutUint16(ub[124:], 0x0200)
		copy(ub[126:], "IM")
		out = append(out, ub...)
	}
	return append(out, b.buf...)
}

// WriteFile writes the file image for root into dir and returns its path.
func (b *Builder) WriteFile(dir, name string, root *Group) (string, error) {
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, b.Bytes(root), 0o600)
}

func (b *Builder) write(n Node) uint64 {
	if addr, ok := b.addrs[n]; ok {
		return addr
	}
	var addr uint64
	switch v := n.(type) {
	case *Group:
		addr = b.writeGroup(v)
	case *Dataset:
		addr = b.writeDataset(v)
	case *Opaque:
		addr = b.header1([]message{{typ: 0x03, data: Int(4, true).enc}})
	}
	b.addrs[n] = addr
	return addr
}

type message struct {
	typ  uint16
	data []byte
}

func pad8(data []byte) []byte {
	for len(data)%8 != 0 {
		data = append(data, 0)
	}
	return data
}

func (b *Builder) header1(msgs []message) uint64 {
	var body []byte
	for _, m := range msgs {
		data := pad8(append([]byte(nil), m.data...))
		h := make([]byte, 8)
		le.PutUint16(h, m.typ)
		le.PutUint16(h[2:], uint16(len(data))) //nolint:gosec // G115: test sizes are small
		body = append(body, h...)
		body = append(body, data...)
	}
	prefix := make([]byte, 16)
	prefix[0] = 1
	le.PutUint16(prefix[2:], uint16(len(msgs))) //nolint:gosec // G115: test sizes are small
	le.PutUint32(prefix[4:], 1)
	le.PutUint32(prefix[8:], uint32(len(body))) //nolint:gosec // G115: test sizes are small
	return b.put(append(prefix, body...))
}

func attrMessages(attrs []Attr) []message {
	var out []message
	for _, a := range attrs {
		name := append([]byte(a.Name), 0)
		space := dataspace(a.Dims)
		m := []byte{1, 0}
		m = le.AppendUint16(m, uint16(len(name)))       //nolint:gosec // G115: test sizes are small
		m = le.AppendUint16(m, uint16(len(a.Type.enc))) //nolint:gosec // G115: test sizes are small
		m = le.AppendUint16(m, uint16(len(space)))      //nolint:gosec // G115: test sizes are small
		m = append(m, pad8(name)...)
		m = append(m, pad8(append([]byte(nil), a.Type.enc...))...)
		m = append(m, pad8(space)...)
		m = append(m, a.Data...)
		out = append(out, message{typ: 0x0C, data: m})
	}
	return out
}

func dataspace(dims []uint64) []byte {
	d := []byte{1, byte(len(dims)), 0, 0, 0, 0, 0, 0}
	for _, v := range dims {
		d = le.AppendUint64(d, v)
	}
	return d
}

func (b *Builder) writeGroup(g *Group) uint64 {
	children := make([]uint64, len(g.Links))
	for i, l := range g.Links {
		children[i] = b.write(l.Node)
	}
	msgs := attrMessages(g.Attrs)
	if !g.SymbolTable {
		for i, l := range g.Links {
			m := []byte{1, 0, byte(len(l.Name))}
			m = append(m, l.Name...)
			m = le.AppendUint64(m, children[i])
			msgs = append(msgs, message{typ: 0x06, data: m})
		}
		if len(g.Links) == 0 {
			// link info marks an empty new-style group
			info := []byte{0, 0}
			info = le.AppendUint64(info, undefined)
			info = le.AppendUint64(info, undefined)
			msgs = append(msgs, message{typ: 0x02, data: info})
		}
		return b.header1(msgs)
	}

	seg := []byte{0}
	offsets := make([]uint64, len(g.Links))
	for i, l := range g.Links {
		offsets[i] = uint64(len(seg))
		seg = append(seg, l.Name...)
		seg = append(seg, 0)
	}
	seg = pad8(seg)
	dataAddr := b.put(seg)
	heap := []byte("HEAP\x00\x00\x00\x00")
	heap = le.AppendUint64(heap, uint64(len(seg)))
	heap = le.AppendUint64(heap, undefined)
	heap = le.AppendUint64(heap, dataAddr)
	heapAddr := b.put(heap)

	snod := []byte("SNOD\x01\x00")
	snod = le.AppendUint16(snod, uint16(len(g.Links))) //nolint:gosec // G115: test sizes are small
	for i := range g.Links {
		snod = le.AppendUint64(snod, offsets[i])
		snod = le.AppendUint64(snod, children[i])
		snod = append(snod, make([]byte, 24)...)
	}
	snodAddr := b.put(snod)

	tree := []byte("TREE\x00\x00\x01\x00")
	if len(g.Links) == 0 {
		tree[6] = 0
	}
	tree = le.AppendUint64(tree, undefined)
	tree = le.AppendUint64(tree, undefined)
	tree = le.AppendUint64(tree, 0)
	tree = le.AppendUint64(tree, snodAddr)
	last := uint64(0)
	if len(offsets) > 0 {
		last = offsets[len(offsets)-1]
	}
	tree = le.AppendUint64(tree, last)
	treeAddr := b.put(tree)

	st := le.AppendUint64(nil, treeAddr)
	st = le.AppendUint64(st, heapAddr)
	return b.header1(append(msgs, message{typ: 0x11, data: st}))
}

func (b *Builder) writeDataset(d *Dataset) uint64 {
	data := d.Data
	if d.Refs != nil {
		data = nil
		for _, n := range d.Refs {
			if n == nil {
				data = le.AppendUint64(data, undefined)
				continue
			}
			data = le.AppendUint64(data, b.write(n))
		}
	}

	msgs := []message{
		{typ: 0x01, data: dataspace(d.Dims)},
		{typ: 0x03, data: d.Type.enc},
	}
	var layout []byte
	switch {
	case d.Chunk != nil:
		var pipeline []byte
		layout, pipeline = b.chunked(d, data)
		if pipeline != nil {
			msgs = append(msgs, message{typ: 0x0B, data: pipeline})
		}
	case d.Contiguous:
		addr := b.put(data)
		layout = []byte{3, 1}
		layout = le.AppendUint64(layout, addr)
		layout = le.AppendUint64(layout, uint64(len(data)))
	default:
		layout = []byte{3, 0}
		layout = le.AppendUint16(layout, uint16(len(data))) //nolint:gosec // G115: test sizes are small
		layout = append(layout, data...)
	}
	msgs = append(msgs, message{typ: 0x08, data: layout})
	msgs = append(msgs, attrMessages(d.Attrs)...)
	if d.HeaderPad > 0 {
		msgs = append(msgs, message{typ: 0x00, data: make([]byte, d.HeaderPad)})
	}
	return b.header1(msgs)
}

// chunked splits data into chunks, filters them and writes a one-level chunk
// B-tree. It returns the layout and filter pipeline messages.
func (b *Builder) chunked(d *Dataset, data []byte) (layout, pipeline []byte) {
	rank := len(d.Dims)
	elem := d.Type.size
	grid := make([]uint64, rank)
	for i := range grid {
		grid[i] = (d.Dims[i] + d.Chunk[i] - 1) / d.Chunk[i]
	}
	chunkElems := 1
	for _, c := range d.Chunk {
		chunkElems *= int(c) //nolint:gosec // G115: test sizes are small
	}

	type stored struct {
		addr   uint64
		size   int
		origin []uint64
	}
	var chunks []stored
	idx := make([]uint64, rank)
	for {
		origin := make([]uint64, rank)
		for i := range idx {
			origin[i] = idx[i] * d.Chunk[i]
		}
		chunk := make([]byte, chunkElems*elem)
		for e := 0; e < chunkElems; e++ {
			rem, src, inside := e, uint64(0), true
			coords := make([]uint64, rank)
			for i := rank - 1; i >= 0; i-- {
				coords[i] = uint64(rem) % d.Chunk[i] //nolint:gosec // G115: test sizes are small
				rem /= int(d.Chunk[i])               //nolint:gosec // G115: test sizes are small
			}
			for i := 0; i < rank; i++ {
				c := origin[i] + coords[i]
				if c >= d.Dims[i] {
					inside = false
					break
				}
				src = src*d.Dims[i] + c
			}
			if inside {
				copy(chunk[e*elem:(e+1)*elem], data[int(src)*elem:]) //nolint:gosec // G115: test sizes are small
			}
		}
		if d.Deflate {
			var z bytes.Buffer
			w := zlib.NewWriter(&z)
			_, _ = w.Write(chunk)
			_ = w.Close()
			chunk = z.Bytes()
		}
		if d.Fletcher {
			sum := core.Fletcher32(chunk)
			if d.BadSum {
				sum++
			}
			chunk = le.AppendUint32(chunk, sum)
		}
		chunks = append(chunks, stored{addr: b.put(chunk), size: len(chunk), origin: origin})

		i := rank - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < grid[i] {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			break
		}
	}

	tree := []byte("TREE\x01\x00")
	tree = le.AppendUint16(tree, uint16(len(chunks))) //nolint:gosec // G115: test sizes are small
	tree = le.AppendUint64(tree, undefined)
	tree = le.AppendUint64(tree, undefined)
	key := func(size int, origin []uint64) {
		tree = le.AppendUint32(tree, uint32(size)) //nolint:gosec // G115: test sizes are small
		tree = le.AppendUint32(tree, 0)
		for _, o := range origin {
			tree = le.AppendUint64(tree, o)
		}
		tree = le.AppendUint64(tree, 0)
	}
	for _, c := range chunks {
		key(c.size, c.origin)
		tree = le.AppendUint64(tree, c.addr)
	}
	key(0, d.Dims)
	treeAddr := b.put(tree)

	layout = []byte{3, 2, byte(rank + 1)}
	layout = le.AppendUint64(layout, treeAddr)
	for _, c := range d.Chunk {
		layout = le.AppendUint32(layout, uint32(c)) //nolint:gosec // G115: test sizes are small
	}
	layout = le.AppendUint32(layout, uint32(elem)) //nolint:gosec // G115: test sizes are small

	var filters [][]byte
	if d.Deflate {
		f := le.AppendUint16(nil, 1)
		f = le.AppendUint16(f, 0)
		f = le.AppendUint16(f, 0)
		f = le.AppendUint16(f, 1)
		f = le.AppendUint32(f, 6)
		filters = append(filters, le.AppendUint32(f, 0))
	}
	if d.Fletcher {
		f := le.AppendUint16(nil, 3)
		f = le.AppendUint16(f, 0)
		f = le.AppendUint16(f, 0)
		filters = append(filters, le.AppendUint16(f, 0))
	}
	if len(filters) > 0 {
		pipeline = []byte{1, byte(len(filters)), 0, 0, 0, 0, 0, 0}
		for _, f := range filters {
			pipeline = append(pipeline, f...)
		}
	}
	return layout, pipeline
}

// Float64s encodes values little-endian.
func Float64s(values ...float64) []byte {
	var out []byte
	for _, v := range values {
		out, _ = binary.Append(out, le, v)
	}
	return out
}

// Uint16s encodes values little-endian, the storage of MATLAB char arrays.
func Uint16s(values ...uint16) []byte {
	var out []byte
	for _, v := range values {
		out = le.AppendUint16(out, v)
	}
	return out
}

// Chars encodes s as MATLAB char data.
func Chars(s string) []byte {
	var out []byte
	for _, r := range s {
		out = le.AppendUint16(out, uint16(r)) //nolint:gosec // G115: test strings are BMP
	}
	return out
}
