package mat73

import (
	"fmt"
	"reflect"

	"github.com/scigolib/mat73/internal/core"
)

// Kind is the element type of an Array.
type Kind uint8

// Element kinds.
const (
	KindInvalid Kind = iota
	KindInt8
	KindUint8
	KindInt16
	KindUint16
	KindInt32
	KindUint32
	KindInt64
	KindUint64
	KindFloat32
	KindFloat64
	KindComplex128
	KindBool
	KindReference
	// KindValue arrays hold resolved values: numbers, strings, *Struct or
	// *Array. They are produced when references inside a 2-D leaf are
	// dereferenced.
	KindValue
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindInt8:       "int8",
	KindUint8:      "uint8",
	KindInt16:      "int16",
	KindUint16:     "uint16",
	KindInt32:      "int32",
	KindUint32:     "uint32",
	KindInt64:      "int64",
	KindUint64:     "uint64",
	KindFloat32:    "float32",
	KindFloat64:    "float64",
	KindComplex128: "complex128",
	KindBool:       "bool",
	KindReference:  "reference",
	KindValue:      "value",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Reference is an object reference stored in a dataset: the address of the
// target's object header.
type Reference uint64

// Array is a leaf's data. Data is a slice whose element type matches Kind
// ([]int8 for KindInt8, []Reference for KindReference, []any for
// KindValue) holding the elements in row-major order.
type Array struct {
	Kind  Kind
	Shape []int
	Data  any
}

// Len is the number of elements.
func (a *Array) Len() int {
	if a == nil || a.Data == nil {
		return 0
	}
	return reflect.ValueOf(a.Data).Len()
}

// At returns element i as an interface value.
func (a *Array) At(i int) any {
	return reflect.ValueOf(a.Data).Index(i).Interface()
}

func (a *Array) String() string {
	return fmt.Sprintf("array<%s>%v", a.Kind, a.Shape)
}

func emptySlice(k Kind) any {
	switch k {
	case KindInt8:
		return []int8{}
	case KindUint8:
		return []uint8{}
	case KindInt16:
		return []int16{}
	case KindUint16:
		return []uint16{}
	case KindInt32:
		return []int32{}
	case KindUint32:
		return []uint32{}
	case KindInt64:
		return []int64{}
	case KindUint64:
		return []uint64{}
	case KindFloat32:
		return []float32{}
	case KindComplex128:
		return []complex128{}
	case KindBool:
		return []bool{}
	case KindReference:
		return []Reference{}
	case KindValue:
		return []any{}
	}
	return []float64{}
}

// newArray wraps a slice decoded by the HDF5 layer.
func newArray(data any, shape []int) (*Array, error) {
	a := &Array{Shape: shape, Data: data}
	switch d := data.(type) {
	case []int8:
		a.Kind = KindInt8
	case []uint8:
		a.Kind = KindUint8
	case []int16:
		a.Kind = KindInt16
	case []uint16:
		a.Kind = KindUint16
	case []int32:
		a.Kind = KindInt32
	case []uint32:
		a.Kind = KindUint32
	case []int64:
		a.Kind = KindInt64
	case []uint64:
		a.Kind = KindUint64
	case []float32:
		a.Kind = KindFloat32
	case []float64:
		a.Kind = KindFloat64
	case []complex128:
		a.Kind = KindComplex128
	case core.References:
		refs := make([]Reference, len(d))
		for i, r := range d {
			refs[i] = Reference(r)
		}
		a.Kind, a.Data = KindReference, refs
	default:
		return nil, fmt.Errorf("unexpected element slice %T", data)
	}
	return a, nil
}

// MATLAB classes mapped to the kind an empty array of that class gets.
var classKinds = map[string]Kind{
	"double":  KindFloat64,
	"single":  KindFloat32,
	"int8":    KindInt8,
	"uint8":   KindUint8,
	"int16":   KindInt16,
	"uint16":  KindUint16,
	"int32":   KindInt32,
	"uint32":  KindUint32,
	"int64":   KindInt64,
	"uint64":  KindUint64,
	"char":    KindUint16,
	"logical": KindBool,
	"cell":    KindReference,
}

func toBools(a *Array) *Array {
	src, ok := a.Data.([]uint8)
	if !ok {
		return a
	}
	out := make([]bool, len(src))
	for i, v := range src {
		out[i] = v != 0
	}
	return &Array{Kind: KindBool, Shape: a.Shape, Data: out}
}
