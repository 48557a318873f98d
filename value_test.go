package mat73

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/require"
)

func TestStruct_Order(t *testing.T) {
	s := NewStruct()
	s.Set("b", 1)
	s.Set("a", 2)
	s.Set("c", 3)
	s.Set("b", 4)

	require.Equal(t, []string{"b", "a", "c"}, s.Keys())
	require.Equal(t, 3, s.Len())
	v, ok := s.Get("b")
	require.True(t, ok)
	require.Equal(t, 4, v)
	_, ok = s.Get("x")
	require.False(t, ok)

	other := NewStruct()
	other.Set("d", 5)
	other.Set("a", 6)
	err := s.Merge(other)
	require.ErrorIs(t, err, ErrDuplicateName)
	require.ErrorContains(t, err, `"a"`)
	require.Equal(t, []string{"b", "a", "c", "d"}, s.Keys())
	v, _ = s.Get("a")
	require.Equal(t, 2, v)

	require.NoError(t, s.Merge(single("e", 7)))
}

func TestStruct_Map(t *testing.T) {
	s := NewStruct()
	s.Set("n", single("x", "y"))
	s.Set("l", []any{single("k", 1.0)})

	require.Equal(t, map[string]any{
		"n": map[string]any{"x": "y"},
		"l": []any{map[string]any{"k": 1.0}},
	}, s.Map())
}

func TestStruct_MarshalJSON(t *testing.T) {
	s := NewStruct()
	s.Set("z", &Array{Kind: KindFloat64, Shape: []int{2}, Data: []float64{1, math.NaN()}})
	s.Set("a", "text")
	s.Set("m", single("inner", math.Inf(1)))
	s.Set("c", complex(1, 2))

	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.Equal(t, `{"z":[1,null],"a":"text","m":{"inner":null},"c":{"real":1,"imag":2}}`, string(data))

	data, err = json.Marshal(NewStruct())
	require.NoError(t, err)
	require.Equal(t, `{}`, string(data))
}

func TestStruct_MarshalYAML(t *testing.T) {
	s := NewStruct()
	s.Set("zeta", "last")
	s.Set("alpha", single("x", int64(1)))
	s.Set("v", &Array{Kind: KindInt32, Shape: []int{2}, Data: []int32{3, 4}})

	data, err := yaml.Marshal(s)
	require.NoError(t, err)
	out := string(data)
	require.True(t, strings.HasPrefix(out, "zeta: last\n"), out)
	require.Less(t, strings.Index(out, "alpha:"), strings.Index(out, "v:"), out)
	require.Contains(t, out, "x: 1")

	var back map[string]any
	require.NoError(t, yaml.Unmarshal(data, &back))
	require.Equal(t, "last", back["zeta"])
	require.Len(t, back["v"], 2)
}
