package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scigolib/mat73"
	fixture "github.com/scigolib/mat73/internal/testing"
)

func openFixture(t *testing.T) *mat73.File {
	t.Helper()
	value := func() *fixture.Dataset {
		return &fixture.Dataset{
			Type:  fixture.Float(8),
			Dims:  []uint64{1, 1},
			Data:  fixture.Float64s(1),
			Attrs: []fixture.Attr{fixture.ClassAttr("double")},
		}
	}
	root := &fixture.Group{Links: []fixture.Link{
		{Name: "x10", Node: value()},
		{Name: "x9", Node: &fixture.Group{
			Attrs: []fixture.Attr{fixture.ClassAttr("struct")},
			Links: []fixture.Link{{Name: "f", Node: value()}},
		}},
		{Name: "#refs#", Node: &fixture.Group{}},
		{Name: "x1", Node: &fixture.Dataset{
			Type: fixture.Int(2, false), Dims: []uint64{3, 1}, Data: fixture.Chars("abc"),
			Attrs: []fixture.Attr{fixture.ClassAttr("char")},
		}},
	}}
	path, err := fixture.NewBuilder().WriteFile(t.TempDir(), "list.mat", root)
	require.NoError(t, err)
	f, err := mat73.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func names(out string) []string {
	var res []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		res = append(res, strings.Fields(line)[0])
	}
	return res
}

func TestListVariables(t *testing.T) {
	f := openFixture(t)

	var buf bytes.Buffer
	require.NoError(t, listVariables(&buf, f.Root(), false, false))
	require.Equal(t, []string{"x10", "x9", "x1"}, names(buf.String()))
	require.Contains(t, buf.String(), "3x1")
	require.Contains(t, buf.String(), "1 fields")

	buf.Reset()
	require.NoError(t, listVariables(&buf, f.Root(), false, true))
	require.Equal(t, []string{"x1", "x9", "x10"}, names(buf.String()))

	buf.Reset()
	require.NoError(t, listVariables(&buf, f.Root(), true, false))
	require.Equal(t, []string{"x10", "x9", "#refs#", "x1"}, names(buf.String()))
}

func TestEncode(t *testing.T) {
	inner := mat73.NewStruct()
	inner.Set("b", []any{1.0, nil})
	inner.Set("a", "s")
	s := mat73.NewStruct()
	s.Set("v", inner)

	data, err := encode(s, "json", 0)
	require.NoError(t, err)
	require.Equal(t, "{\"v\":{\"b\":[1,null],\"a\":\"s\"}}\n", string(data))

	data, err = encode(s, "json", 2)
	require.NoError(t, err)
	require.Equal(t, "{\n  \"v\": {\n    \"b\": [\n      1,\n      null\n    ],\n    \"a\": \"s\"\n  }\n}\n", string(data))

	data, err = encode(s, "yaml", 2)
	require.NoError(t, err)
	out := string(data)
	require.True(t, strings.HasPrefix(out, "v:\n"), out)
	require.Less(t, strings.Index(out, "b:"), strings.Index(out, "a: s"), out)

	_, err = encode(s, "xml", 0)
	require.ErrorContains(t, err, "unknown output format")
}
