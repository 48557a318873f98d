package mat73

import (
	"math"
	"reflect"
)

// ToPortable converts a native array into nested []any following its shape,
// made only of values JSON can represent: int64, uint64, float64, bool,
// string, nil and mappings. Non-finite floats become nil, complex numbers
// become {"real", "imag"} mappings and references their numeric address.
func ToPortable(a *Array) any {
	return portable(a)
}

func portable(a *Array) any {
	flat := make([]any, a.Len())
	for i := range flat {
		flat[i] = portableScalar(a.At(i))
	}
	if len(a.Shape) <= 1 {
		return flat
	}
	return nest(flat, a.Shape)
}

// nest splits a row-major flat slice into nested slices of the given shape.
func nest(flat []any, shape []int) []any {
	if len(shape) == 1 {
		return flat
	}
	n := shape[0]
	out := make([]any, n)
	if n == 0 {
		return out
	}
	step := len(flat) / n
	for i := range out {
		out[i] = nest(flat[i*step:(i+1)*step], shape[1:])
	}
	return out
}

func portableScalar(v any) any {
	switch t := v.(type) {
	case int8, int16, int32, int64:
		return reflect.ValueOf(t).Int()
	case uint8, uint16, uint32, uint64:
		return reflect.ValueOf(t).Uint()
	case float32:
		return finite(float64(t))
	case float64:
		return finite(t)
	case complex128:
		s := NewStruct()
		s.Set("real", finite(real(t)))
		s.Set("imag", finite(imag(t)))
		return s
	case Reference:
		return uint64(t)
	case *Array:
		return portable(t)
	}
	return v
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}
