package mat73

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// In-memory hierarchy used in place of an HDF5 file.

type fakeGroup struct {
	name     string
	children []Object
}

func (g *fakeGroup) Name() string       { return g.name }
func (g *fakeGroup) Children() []Object { return g.children }

type fakeLeaf struct {
	name string
	arr  *Array
	err  error
}

func (l *fakeLeaf) Name() string { return l.name }
func (l *fakeLeaf) ReadArray() (*Array, error) {
	return l.arr, l.err
}

type fakeLink struct{ name string }

func (o *fakeLink) Name() string   { return o.name }
func (o *fakeLink) String() string { return "soft link " + o.name }

type fakeContainer struct {
	root *fakeGroup
	refs map[Reference]Object
}

func (c *fakeContainer) Lookup(path string) (Object, error) {
	var cur Object = c.root
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		b, ok := cur.(Branch)
		if !ok {
			return nil, ErrLookup
		}
		cur = nil
		for _, ch := range b.Children() {
			if ch.Name() == part {
				cur = ch
			}
		}
		if cur == nil {
			return nil, fmt.Errorf("%w: %q", ErrLookup, path)
		}
	}
	return cur, nil
}

func (c *fakeContainer) Dereference(ref Reference) (Object, error) {
	if obj, ok := c.refs[ref]; ok {
		return obj, nil
	}
	return nil, ErrDanglingReference
}

func group(name string, children ...Object) *fakeGroup {
	return &fakeGroup{name: name, children: children}
}

func leaf(name string, shape []int, data any) *fakeLeaf {
	arr, err := newArray(data, shape)
	if err != nil {
		panic(err)
	}
	return &fakeLeaf{name: name, arr: arr}
}

func chars(name, s string) *fakeLeaf {
	codes := make([]uint16, 0, len(s))
	for _, r := range s {
		codes = append(codes, uint16(r))
	}
	return leaf(name, []int{1, len(codes)}, codes)
}

func refLeaf(name string, shape []int, refs ...Reference) *fakeLeaf {
	return &fakeLeaf{name: name, arr: &Array{Kind: KindReference, Shape: shape, Data: refs}}
}

func container(children ...Object) *fakeContainer {
	return &fakeContainer{root: group("/", children...), refs: map[Reference]Object{}}
}

var structCmp = cmp.AllowUnexported(Struct{})

func TestGetStruct_String(t *testing.T) {
	c := container(chars("s", "Hello"))

	got, err := GetStruct(c, "s", Native)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(single("s", "Hello"), got, structCmp))
}

func TestGetStruct_NestedBranch(t *testing.T) {
	c := container(group("S",
		leaf("a", []int{1, 1}, []float64{1}),
		chars("b", "hi"),
		group("inner", leaf("v", []int{3}, []int32{1, 2, 3})),
	))

	got, err := GetStruct(c, "S", Native)
	require.NoError(t, err)

	inner := single("v", &Array{Kind: KindInt32, Shape: []int{3}, Data: []int32{1, 2, 3}})
	s := NewStruct()
	s.Set("a", &Array{Kind: KindFloat64, Shape: []int{1}, Data: []float64{1}})
	s.Set("b", "hi")
	s.Set("inner", inner)
	require.Empty(t, cmp.Diff(single("S", s), got, structCmp))

	// nested paths resolve to their last element
	got, err = GetStruct(c, "/S/inner", Native)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(single("inner", inner), got, structCmp))
}

func TestResolve_ReferenceFlattening(t *testing.T) {
	targets := []Object{
		leaf("a", []int{1, 1}, []float64{1}),
		chars("b", "x"),
		group("c", chars("f", "y")),
		leaf("d", []int{1, 2}, []uint8{7, 8}),
	}
	c := container(refLeaf("cell", []int{2, 2}, 10, 20, 30, 40))
	for i, obj := range targets {
		c.refs[Reference(10*(i+1))] = obj
	}

	got, err := Resolve(c, c.root, "cell", Native)
	require.NoError(t, err)

	want := &Array{Kind: KindValue, Shape: []int{4}, Data: []any{
		single("a", &Array{Kind: KindFloat64, Shape: []int{1}, Data: []float64{1}}),
		single("b", "x"),
		single("c", single("f", "y")),
		single("d", &Array{Kind: KindUint8, Shape: []int{2}, Data: []uint8{7, 8}}),
	}}
	require.Empty(t, cmp.Diff(single("cell", want), got, structCmp))
}

func TestResolve_NonMatrixPassthrough(t *testing.T) {
	refs := refLeaf("r3", []int{2, 1, 1}, 1, 2)
	vec := leaf("v", []int{3}, []float64{1, 2, 3})
	c := container(refs, vec)

	got, err := Resolve(c, c.root, "r3", Native)
	require.NoError(t, err)
	v, _ := got.Get("r3")
	require.Same(t, refs.arr, v)

	got, err = Resolve(c, c.root, "v", Native)
	require.NoError(t, err)
	v, _ = got.Get("v")
	require.Same(t, vec.arr, v)
}

func TestResolve_MatrixRowMajor(t *testing.T) {
	c := container(leaf("m", []int{2, 3}, []float64{1, 2, 3, 4, 5, 6}))

	got, err := Resolve(c, c.root, "m", Native)
	require.NoError(t, err)
	v, _ := got.Get("m")
	require.Equal(t, &Array{Kind: KindFloat64, Shape: []int{6}, Data: []float64{1, 2, 3, 4, 5, 6}}, v)
}

func TestResolve_CharVector(t *testing.T) {
	c := container(leaf("s", []int{2}, []uint16{'o', 'k'}))

	got, err := Resolve(c, c.root, "s", Portable)
	require.NoError(t, err)
	v, _ := got.Get("s")
	require.Equal(t, "ok", v)
}

func TestResolve_Idempotent(t *testing.T) {
	c := container(group("S", chars("a", "q"), refLeaf("c", []int{1, 1}, 5)))
	c.refs[5] = leaf("t", []int{1, 1}, []float64{2})

	for _, mode := range []OutputMode{Native, Portable} {
		first, err := GetStruct(c, "S", mode)
		require.NoError(t, err)
		second, err := GetStruct(c, "S", mode)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(first, second, structCmp), mode.String())
	}
}

func TestResolve_KeysFollowChildren(t *testing.T) {
	names := []string{"zeta", "alpha", "mid", "b2", "b10"}
	children := make([]Object, len(names))
	for i, n := range names {
		children[i] = chars(n, n)
	}
	c := container(group("S", children...))

	got, err := GetStruct(c, "S", Native)
	require.NoError(t, err)
	v, _ := got.Get("S")
	require.Equal(t, names, v.(*Struct).Keys())
}

func TestResolve_PortableJSON(t *testing.T) {
	c := container(group("S",
		leaf("m", []int{2, 2}, []float64{1, math.NaN(), math.Inf(1), 4}),
		leaf("z", []int{1, 1}, []complex128{complex(1, -2)}),
		leaf("k", []int{2, 1, 2}, []int16{1, 2, 3, 4}),
		chars("s", "txt"),
		refLeaf("c", []int{1, 1}, 9),
	))
	c.refs[9] = chars("t", "in")

	got, err := GetStruct(c, "S", Portable)
	require.NoError(t, err)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"S": {
		"m": [1, null, null, 4],
		"z": [{"real": 1, "imag": -2}],
		"k": [[[1, 2]], [[3, 4]]],
		"s": "txt",
		"c": [{"t": "in"}]
	}}`, string(data))

	var back map[string]any
	require.NoError(t, json.Unmarshal(data, &back))
	again, err := json.Marshal(back["S"])
	require.NoError(t, err)
	assert.JSONEq(t, string(data)[len(`{"S":`):len(data)-1], string(again))
}

func TestResolve_UnpairedSurrogate(t *testing.T) {
	c := container(leaf("s", []int{1, 3}, []uint16{'a', 0xD800, 'b'}))

	got, err := GetStruct(c, "s", Native)
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(single("s", "a\uFFFDb"), got, structCmp))
}

func TestResolve_RepeatedReference(t *testing.T) {
	target := chars("t", "hi")
	c := container(group("S",
		refLeaf("c", []int{1, 2}, 3, 3),
		refLeaf("d", []int{1, 1}, 3),
	))
	c.refs[3] = target

	got, err := GetStruct(c, "S", Portable)
	require.NoError(t, err)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"S": {"c": [{"t": "hi"}, {"t": "hi"}], "d": [{"t": "hi"}]}}`, string(data))
}

func TestResolve_Errors(t *testing.T) {
	bad := &fakeLeaf{name: "broken", err: errors.New("read failed")}
	loop := group("loop", refLeaf("self", []int{1, 1}, 7))
	selfRef := refLeaf("selfref", []int{1, 1}, 8)
	c := container(
		group("S", chars("ok", "fine"), &fakeLink{name: "soft"}),
		refLeaf("dangling", []int{1, 2}, 1, 2),
		loop,
		selfRef,
		bad,
	)
	c.refs[1] = chars("t", "x")
	c.refs[7] = loop
	c.refs[8] = selfRef

	tests := []struct {
		name     string
		path     string
		sentinel error
		at       string
	}{
		{"missing variable", "nope", ErrLookup, "nope"},
		{"missing nested", "S/nope", ErrLookup, "S/nope"},
		{"unsupported node", "S", ErrUnsupportedNode, "S/soft"},
		{"dangling reference", "dangling", ErrDanglingReference, "dangling[1]"},
		{"group reference cycle", "loop", ErrDanglingReference, "loop/self[0]->loop"},
		{"leaf reference cycle", "selfref", ErrDanglingReference, "selfref[0]->selfref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := GetStruct(c, tt.path, Native)
			require.Nil(t, got)
			require.ErrorIs(t, err, tt.sentinel)

			var re *ResolveError
			require.ErrorAs(t, err, &re)
			require.Equal(t, tt.at, re.Path)
		})
	}

	_, err := GetStruct(c, "broken", Native)
	require.ErrorContains(t, err, "read failed")

	_, err = Resolve(c, c.root, "missing", Portable)
	require.ErrorIs(t, err, ErrLookup)
}
