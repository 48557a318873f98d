package utils

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapError(t *testing.T) {
	require.NoError(t, WrapError("ignored", nil))

	err := WrapError("reading superblock", io.ErrUnexpectedEOF)
	require.EqualError(t, err, "reading superblock: unexpected EOF")
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	var h5 *H5Error
	require.True(t, errors.As(err, &h5))
	require.Equal(t, "reading superblock", h5.Context)

	err = WrapErrorf(io.EOF, "object header at %d", 96)
	require.EqualError(t, err, "object header at 96: EOF")
	require.NoError(t, WrapErrorf(nil, "x"))
}

func TestGetBuffer(t *testing.T) {
	for _, size := range []int{0, 8, 4096, 10000} {
		buf := GetBuffer(size)
		require.Len(t, buf, size)
		ReleaseBuffer(buf)
	}
}

func TestSafeMultiply(t *testing.T) {
	v, err := SafeMultiply(6, 7)
	require.NoError(t, err)
	require.Equal(t, uint64(42), v)

	_, err = SafeMultiply(math.MaxUint64, 2)
	require.Error(t, err)

	v, err = SafeMultiply(0, math.MaxUint64)
	require.NoError(t, err)
	require.Zero(t, v)
}

func TestByteSize(t *testing.T) {
	v, err := ByteSize([]uint64{2, 3}, 8)
	require.NoError(t, err)
	require.Equal(t, uint64(48), v)

	_, err = ByteSize([]uint64{math.MaxUint32, math.MaxUint32, 4}, 8)
	require.Error(t, err)
}

func TestValidateBufferSize(t *testing.T) {
	require.NoError(t, ValidateBufferSize(10, 100, "chunk"))
	require.ErrorContains(t, ValidateBufferSize(0, 100, "chunk"), "cannot be zero")
	require.ErrorContains(t, ValidateBufferSize(101, 100, "chunk"), "exceeds maximum")
}

func TestReadUint(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	tests := []struct {
		size  int
		order binary.ByteOrder
		want  uint64
	}{
		{1, binary.LittleEndian, 0x01},
		{2, binary.LittleEndian, 0x0201},
		{4, binary.BigEndian, 0x01020304},
		{8, binary.LittleEndian, 0x0807060504030201},
	}
	for _, tt := range tests {
		got, err := ReadUint(data, tt.size, tt.order)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err := ReadUint(data[:2], 4, binary.LittleEndian)
	require.Error(t, err)
	_, err = ReadUint(data, 3, binary.LittleEndian)
	require.Error(t, err)
}

func TestIsUndefined(t *testing.T) {
	require.True(t, IsUndefined(math.MaxUint64, 8))
	require.True(t, IsUndefined(0xFFFFFFFF, 4))
	require.False(t, IsUndefined(0x200, 8))
}
