package mat73

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"
)

// Integer is any integer type that can carry character codes.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// ToString maps character codes to a string. UTF-16 surrogate pairs are
// combined into one character and unpaired surrogates become U+FFFD.
// Negative codes and codes above unicode.MaxRune fail with ErrEncoding.
func ToString[T Integer](codes []T) (string, error) {
	var b strings.Builder
	b.Grow(len(codes))
	for i := 0; i < len(codes); i++ {
		r, err := codepoint(codes, i)
		if err != nil {
			return "", err
		}
		if utf16.IsSurrogate(r) {
			high := r
			r = unicode.ReplacementChar
			if i+1 < len(codes) {
				low, err := codepoint(codes, i+1)
				if err != nil {
					return "", err
				}
				if pair := utf16.DecodeRune(high, low); pair != unicode.ReplacementChar {
					r = pair
					i++
				}
			}
		}
		b.WriteRune(r)
	}
	return b.String(), nil
}

func codepoint[T Integer](codes []T, i int) (rune, error) {
	var zero T
	c := codes[i]
	if c < zero {
		return 0, &EncodingError{Index: i, Code: int64(c)}
	}
	if uint64(c) > unicode.MaxRune {
		return 0, &EncodingError{Index: i, Code: int64(uint64(c) & (1<<63 - 1))} //nolint:gosec // G115: masked
	}
	return rune(c), nil
}

// EncodingError reports the first character code that could not be mapped.
type EncodingError struct {
	Index int
	Code  int64
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("character code %d at index %d is not a valid character", e.Code, e.Index)
}

// Unwrap makes errors.Is(err, ErrEncoding) hold.
func (e *EncodingError) Unwrap() error {
	return ErrEncoding
}
