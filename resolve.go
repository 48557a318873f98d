package mat73

import (
	"fmt"
	"path"
	"reflect"
	"strings"
)

// OutputMode selects how arrays appear in resolved values.
type OutputMode uint8

const (
	// Native keeps arrays as *Array.
	Native OutputMode = iota
	// Portable turns arrays into nested []any of plain values.
	Portable
)

func (m OutputMode) String() string {
	if m == Portable {
		return "portable"
	}
	return "native"
}

// Object is a named node of the hierarchy.
type Object interface {
	Name() string
}

// Branch is a node with ordered children (a MATLAB struct).
type Branch interface {
	Object
	Children() []Object
}

// Leaf is a node holding an array (a dataset).
type Leaf interface {
	Object
	ReadArray() (*Array, error)
}

// Container gives the resolver access to the open file. Dereference always
// works against the file root.
type Container interface {
	Lookup(path string) (Object, error)
	Dereference(ref Reference) (Object, error)
}

// GetStruct resolves the object at name (a top-level variable or a slash
// separated path) and returns the single-entry mapping {base name: value}.
func GetStruct(c Container, name string, mode OutputMode) (*Struct, error) {
	obj, err := c.Lookup(name)
	if err != nil {
		return nil, &ResolveError{Path: name, Err: err}
	}
	key := path.Base(strings.TrimSuffix(name, "/"))
	v, err := newResolver(c, mode).node(obj, key)
	if err != nil {
		return nil, err
	}
	return single(key, v), nil
}

// Resolve looks up the child name of parent and resolves it to
// {name: value}. Groups become *Struct, uint16 leaves become strings and
// other leaves become arrays; references inside 2-D leaves are followed
// through c.
func Resolve(c Container, parent Branch, name string, mode OutputMode) (*Struct, error) {
	for _, child := range parent.Children() {
		if child.Name() != name {
			continue
		}
		v, err := newResolver(c, mode).node(child, name)
		if err != nil {
			return nil, err
		}
		return single(name, v), nil
	}
	return nil, resolveErr(name, ErrLookup, "no child %q in %q", name, parent.Name())
}

// resolver tracks the objects currently being resolved, keyed by file
// address when known, so a reference back into one of them is caught.
type resolver struct {
	c      Container
	mode   OutputMode
	active map[any]string
}

func newResolver(c Container, mode OutputMode) *resolver {
	return &resolver{c: c, mode: mode, active: make(map[any]string)}
}

func identity(obj Object) any {
	if a, ok := obj.(interface{ Address() uint64 }); ok {
		return a.Address()
	}
	if reflect.TypeOf(obj).Comparable() {
		return obj
	}
	return nil
}

func (r *resolver) node(obj Object, at string) (any, error) {
	switch n := obj.(type) {
	case Branch:
		return r.branch(n, at)
	case Leaf:
		return r.leaf(n, at)
	}
	return nil, resolveErr(at, ErrUnsupportedNode, "%s", describe(obj))
}

// enter marks obj as being resolved at path at. The returned func must be
// called once obj is done.
func (r *resolver) enter(obj Object, at string) (func(), error) {
	id := identity(obj)
	if id == nil {
		return func() {}, nil
	}
	if first, ok := r.active[id]; ok {
		return nil, resolveErr(at, ErrDanglingReference, "reference cycle back to %s", first)
	}
	r.active[id] = at
	return func() { delete(r.active, id) }, nil
}

func (r *resolver) branch(b Branch, at string) (any, error) {
	leave, err := r.enter(b, at)
	if err != nil {
		return nil, err
	}
	defer leave()

	s := NewStruct()
	for _, child := range b.Children() {
		v, err := r.node(child, at+"/"+child.Name())
		if err != nil {
			return nil, err
		}
		s.Set(child.Name(), v)
	}
	return s, nil
}

func describe(obj Object) string {
	if s, ok := obj.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", obj)
}

func (r *resolver) leaf(leaf Leaf, at string) (any, error) {
	leave, err := r.enter(leaf, at)
	if err != nil {
		return nil, err
	}
	defer leave()

	arr, err := leaf.ReadArray()
	if err != nil {
		return nil, &ResolveError{Path: at, Err: err}
	}
	if len(arr.Shape) == 2 {
		if arr, err = r.flatten(arr, at); err != nil {
			return nil, err
		}
	}
	if codes, ok := arr.Data.([]uint16); ok {
		s, err := ToString(codes)
		if err != nil {
			return nil, &ResolveError{Path: at, Err: err}
		}
		return s, nil
	}
	if r.mode == Portable {
		return portable(arr), nil
	}
	return arr, nil
}

// flatten turns a 2-D array into a 1-D one in row-major order, replacing
// each reference with {target name: resolved target}.
func (r *resolver) flatten(arr *Array, at string) (*Array, error) {
	n := arr.Len()
	refs, ok := arr.Data.([]Reference)
	if !ok {
		return &Array{Kind: arr.Kind, Shape: []int{n}, Data: arr.Data}, nil
	}
	out := make([]any, n)
	for i, ref := range refs {
		elem := fmt.Sprintf("%s[%d]", at, i)
		target, err := r.c.Dereference(ref)
		if err != nil {
			return nil, &ResolveError{Path: elem, Err: err}
		}
		v, err := r.node(target, elem+"->"+target.Name())
		if err != nil {
			return nil, err
		}
		out[i] = single(target.Name(), v)
	}
	return &Array{Kind: KindValue, Shape: []int{n}, Data: out}, nil
}
