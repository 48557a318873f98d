package mat73

import (
	"errors"
	"fmt"

	"github.com/scigolib/mat73/internal/core"
	"github.com/scigolib/mat73/internal/structures"
	"github.com/scigolib/mat73/internal/utils"
)

// node holds what groups and datasets share: a name and an object header.
type node struct {
	file    *File
	name    string
	address uint64
	header  *core.ObjectHeader
}

// Name returns the link name the object was reached by.
func (n *node) Name() string {
	return n.name
}

// Address returns the object header address.
func (n *node) Address() uint64 {
	return n.address
}

// Attribute is a decoded attribute value.
type Attribute struct {
	Name  string
	Value any
}

// Attributes decodes all attributes of the object.
func (n *node) Attributes() ([]Attribute, error) {
	raw, err := core.ParseAttributes(n.header, n.file.sb)
	if err != nil {
		return nil, utils.WrapErrorf(err, "attributes of %q", n.name)
	}
	out := make([]Attribute, 0, len(raw))
	for _, a := range raw {
		v, err := a.Value()
		if err != nil {
			return nil, err
		}
		out = append(out, Attribute{Name: a.Name, Value: v})
	}
	return out, nil
}

// ReadAttribute returns the value of a single attribute.
func (n *node) ReadAttribute(name string) (any, error) {
	attrs, err := n.Attributes()
	if err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.Name == name {
			return a.Value, nil
		}
	}
	return nil, fmt.Errorf("%w: attribute %q of %q", ErrLookup, name, n.name)
}

// Class returns the MATLAB_class attribute, or "" when there is none.
func (n *node) Class() string {
	v, err := n.ReadAttribute("MATLAB_class")
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Group is an HDF5 group: a MATLAB struct or the file root.
type Group struct {
	node
	children []Object
}

// Children returns the members of the group in storage order.
func (g *Group) Children() []Object {
	return append([]Object(nil), g.children...)
}

// Child returns the member called name.
func (g *Group) Child(name string) (Object, bool) {
	for _, c := range g.children {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}

func (g *Group) String() string {
	return fmt.Sprintf("group %q", g.name)
}

// Unsupported stands for a link the reader cannot represent: soft and
// external links, named datatypes and objects whose header fails to parse.
type Unsupported struct {
	name    string
	address uint64
	reason  error
}

// Name returns the link name.
func (u *Unsupported) Name() string {
	return u.name
}

// Address returns the object header address, 0 for non-hard links.
func (u *Unsupported) Address() uint64 {
	return u.address
}

// Reason explains why the object is not supported.
func (u *Unsupported) Reason() error {
	return u.reason
}

func (u *Unsupported) String() string {
	return fmt.Sprintf("%q: %v", u.name, u.reason)
}

// loadObject reads the header at address and builds the matching object.
// ancestors holds the addresses of the groups on the current path and
// breaks hard link cycles.
func (f *File) loadObject(address uint64, name string, ancestors map[uint64]bool) Object {
	if ancestors[address] {
		return &Unsupported{name: name, address: address, reason: errors.New("hard link cycle")}
	}
	h, err := core.ReadObjectHeader(f.r, address, f.sb)
	if err != nil {
		return &Unsupported{name: name, address: address, reason: err}
	}

	n := node{file: f, name: name, address: address, header: h}
	switch h.Type {
	case core.ObjectTypeGroup:
		g := &Group{node: n}
		ancestors[address] = true
		err = g.load(ancestors)
		delete(ancestors, address)
		if err != nil {
			return &Unsupported{name: name, address: address, reason: err}
		}
		return g
	case core.ObjectTypeDataset:
		return &Dataset{node: n}
	}
	return &Unsupported{name: name, address: address, reason: fmt.Errorf("%s object", h.Type)}
}

func (g *Group) load(ancestors map[uint64]bool) error {
	if m := g.header.Message(core.MsgSymbolTable); m != nil {
		return g.loadSymbolTable(m, ancestors)
	}
	return g.loadLinks(ancestors)
}

// loadSymbolTable reads the members of an old style group from its B-tree
// and local heap.
func (g *Group) loadSymbolTable(m *core.HeaderMessage, ancestors map[uint64]bool) error {
	sb := g.file.sb
	stm, err := structures.ParseSymbolTableMessage(m.Data, sb)
	if err != nil {
		return err
	}
	heap, err := structures.LoadLocalHeap(g.file.r, stm.HeapAddress, sb)
	if err != nil {
		return utils.WrapError("local heap load failed", err)
	}
	entries, err := structures.ReadGroupBTreeEntries(g.file.r, stm.BTreeAddress, sb)
	if err != nil {
		return utils.WrapError("group B-tree read failed", err)
	}
	for _, e := range entries {
		name, err := heap.GetString(e.LinkNameOffset)
		if err != nil {
			return utils.WrapError("link name read failed", err)
		}
		if e.CacheType == structures.CacheSoftLink {
			g.children = append(g.children, &Unsupported{name: name, reason: errors.New("soft link")})
			continue
		}
		g.children = append(g.children, g.file.loadObject(e.ObjectAddress, name, ancestors))
	}
	return nil
}

// loadLinks reads the members of a compact group from its link messages.
func (g *Group) loadLinks(ancestors map[uint64]bool) error {
	sb := g.file.sb
	links := g.header.MessagesOf(core.MsgLink)
	if len(links) == 0 {
		if info := g.header.Message(core.MsgLinkInfo); info != nil && denseLinks(info.Data, sb) {
			return errors.New("dense link storage is not supported")
		}
	}
	for _, m := range links {
		lm, err := structures.ParseLinkMessage(m.Data, sb)
		if err != nil {
			return err
		}
		if !lm.IsHardLink() {
			g.children = append(g.children, &Unsupported{
				name:   lm.Name,
				reason: fmt.Errorf("%s link to %q", lm.Type, lm.Target),
			})
			continue
		}
		g.children = append(g.children, g.file.loadObject(lm.Address, lm.Name, ancestors))
	}
	return nil
}

// denseLinks reports whether a link info message points at a fractal heap.
func denseLinks(data []byte, sb *core.Superblock) bool {
	if len(data) < 2 {
		return false
	}
	pos := 2
	if data[1]&0x01 != 0 {
		pos += 8
	}
	if pos > len(data) {
		return false
	}
	heap, err := utils.ReadUint(data[pos:], int(sb.OffsetSize), sb.Endianness)
	return err == nil && !utils.IsUndefined(heap, int(sb.OffsetSize))
}
