package mat73

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestToPortable(t *testing.T) {
	tests := []struct {
		name string
		in   *Array
		want any
	}{
		{
			name: "vector",
			in:   &Array{Kind: KindFloat64, Shape: []int{3}, Data: []float64{1, 2.5, -3}},
			want: []any{1.0, 2.5, -3.0},
		},
		{
			name: "matrix",
			in:   &Array{Kind: KindInt8, Shape: []int{2, 3}, Data: []int8{1, 2, 3, 4, 5, 6}},
			want: []any{[]any{int64(1), int64(2), int64(3)}, []any{int64(4), int64(5), int64(6)}},
		},
		{
			name: "unsigned",
			in:   &Array{Kind: KindUint32, Shape: []int{2}, Data: []uint32{7, math.MaxUint32}},
			want: []any{uint64(7), uint64(math.MaxUint32)},
		},
		{
			name: "non-finite",
			in:   &Array{Kind: KindFloat32, Shape: []int{3}, Data: []float32{float32(math.NaN()), float32(math.Inf(-1)), 0.5}},
			want: []any{nil, nil, 0.5},
		},
		{
			name: "references",
			in:   &Array{Kind: KindReference, Shape: []int{2}, Data: []Reference{0x60, 0x1F8}},
			want: []any{uint64(0x60), uint64(0x1F8)},
		},
		{
			name: "bools",
			in:   &Array{Kind: KindBool, Shape: []int{1, 2}, Data: []bool{true, false}},
			want: []any{[]any{true, false}},
		},
		{
			name: "empty matrix",
			in:   &Array{Kind: KindFloat64, Shape: []int{0, 0}, Data: []float64{}},
			want: []any{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ToPortable(tt.in))
		})
	}
}

func TestToPortable_Complex(t *testing.T) {
	got := ToPortable(&Array{Kind: KindComplex128, Shape: []int{2}, Data: []complex128{complex(1, 2), complex(math.NaN(), 0)}})

	first := NewStruct()
	first.Set("real", 1.0)
	first.Set("imag", 2.0)
	second := NewStruct()
	second.Set("real", nil)
	second.Set("imag", 0.0)
	require.Empty(t, cmp.Diff([]any{first, second}, got, structCmp))
}

func TestToPortable_Values(t *testing.T) {
	inner := &Array{Kind: KindFloat64, Shape: []int{1}, Data: []float64{math.Inf(1)}}
	got := ToPortable(&Array{Kind: KindValue, Shape: []int{2}, Data: []any{"s", inner}})
	require.Equal(t, []any{"s", []any{nil}}, got)
}
