package structures

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/scigolib/mat73/internal/core"
	"github.com/stretchr/testify/require"
)

func testSuperblock() *core.Superblock {
	return &core.Superblock{OffsetSize: 8, LengthSize: 8, Endianness: binary.LittleEndian}
}

func putHeap(buf []byte, at int, dataAddr int, names ...string) {
	seg := []byte{0} // offset 0 is the empty name of the root
	for _, n := range names {
		seg = append(seg, n...)
		seg = append(seg, 0)
	}
	copy(buf[at:], "HEAP")
	binary.LittleEndian.PutUint64(buf[at+8:], uint64(len(seg)))
	binary.LittleEndian.PutUint64(buf[at+16:], 0xFFFFFFFFFFFFFFFF)
	binary.LittleEndian.PutUint64(buf[at+24:], uint64(dataAddr))
	copy(buf[dataAddr:], seg)
}

func putEntry(buf []byte, at int, nameOff, addr uint64) {
	binary.LittleEndian.PutUint64(buf[at:], nameOff)
	binary.LittleEndian.PutUint64(buf[at+8:], addr)
}

func putSNOD(buf []byte, at int, entries ...[2]uint64) {
	copy(buf[at:], "SNOD")
	buf[at+4] = 1
	binary.LittleEndian.PutUint16(buf[at+6:], uint16(len(entries)))
	for i, e := range entries {
		putEntry(buf, at+8+i*40, e[0], e[1])
	}
}

func putTree(buf []byte, at int, level byte, children ...uint64) {
	copy(buf[at:], "TREE")
	buf[at+4] = 0
	buf[at+5] = level
	binary.LittleEndian.PutUint16(buf[at+6:], uint16(len(children)))
	pos := at + 24
	for _, c := range children {
		pos += 8 // key
		binary.LittleEndian.PutUint64(buf[pos:], c)
		pos += 8
	}
}

func TestLoadLocalHeap(t *testing.T) {
	buf := make([]byte, 256)
	putHeap(buf, 0, 64, "alpha", "beta")

	heap, err := LoadLocalHeap(bytes.NewReader(buf), 0, testSuperblock())
	require.NoError(t, err)
	require.Equal(t, uint64(64), heap.DataAddress)

	tests := []struct {
		offset uint64
		want   string
	}{
		{0, ""},
		{1, "alpha"},
		{7, "beta"},
	}
	for _, tt := range tests {
		got, err := heap.GetString(tt.offset)
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err = heap.GetString(100)
	require.Error(t, err)
}

func TestLoadLocalHeap_BadSignature(t *testing.T) {
	buf := make([]byte, 64)
	copy(buf, "PEAH")
	_, err := LoadLocalHeap(bytes.NewReader(buf), 0, testSuperblock())
	require.ErrorContains(t, err, "invalid local heap signature")
}

func TestGetString_Unterminated(t *testing.T) {
	heap := &LocalHeap{Data: []byte("abc")}
	_, err := heap.GetString(0)
	require.ErrorContains(t, err, "unterminated")
}

func TestReadSymbolTableNode(t *testing.T) {
	buf := make([]byte, 256)
	putSNOD(buf, 0, [2]uint64{1, 0x100}, [2]uint64{7, 0x200})

	entries, err := ReadSymbolTableNode(bytes.NewReader(buf), 0, testSuperblock())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(1), entries[0].LinkNameOffset)
	require.Equal(t, uint64(0x200), entries[1].ObjectAddress)
	require.Equal(t, uint32(CacheNone), entries[1].CacheType)
}

func TestParseSymbolTableEntry_ScratchPad(t *testing.T) {
	sb := testSuperblock()
	data := make([]byte, EntrySize(sb))
	putEntry(data, 0, 3, 0x300)
	binary.LittleEndian.PutUint32(data[16:], CacheSymbolTable)
	binary.LittleEndian.PutUint64(data[24:], 0x400)
	binary.LittleEndian.PutUint64(data[32:], 0x500)

	e, err := ParseSymbolTableEntry(data, sb)
	require.NoError(t, err)
	require.Equal(t, uint64(0x400), e.CachedBTree)
	require.Equal(t, uint64(0x500), e.CachedHeap)

	_, err = ParseSymbolTableEntry(data[:10], sb)
	require.Error(t, err)
}

func TestParseSymbolTableMessage(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint64(data, 0x88)
	binary.LittleEndian.PutUint64(data[8:], 0x99)

	msg, err := ParseSymbolTableMessage(data, testSuperblock())
	require.NoError(t, err)
	require.Equal(t, uint64(0x88), msg.BTreeAddress)
	require.Equal(t, uint64(0x99), msg.HeapAddress)

	_, err = ParseSymbolTableMessage(data[:8], testSuperblock())
	require.Error(t, err)
}

func TestReadGroupBTreeEntries(t *testing.T) {
	t.Run("leaf", func(t *testing.T) {
		buf := make([]byte, 1024)
		putTree(buf, 0, 0, 0x100)
		putSNOD(buf, 0x100, [2]uint64{1, 0x10}, [2]uint64{5, 0x20})

		entries, err := ReadGroupBTreeEntries(bytes.NewReader(buf), 0, testSuperblock())
		require.NoError(t, err)
		require.Len(t, entries, 2)
		require.Equal(t, uint64(0x20), entries[1].ObjectAddress)
	})

	t.Run("two levels keep order", func(t *testing.T) {
		buf := make([]byte, 2048)
		putTree(buf, 0, 1, 0x100, 0x200)
		putTree(buf, 0x100, 0, 0x300)
		putTree(buf, 0x200, 0, 0x400)
		putSNOD(buf, 0x300, [2]uint64{1, 0xA})
		putSNOD(buf, 0x400, [2]uint64{2, 0xB}, [2]uint64{3, 0xC})

		entries, err := ReadGroupBTreeEntries(bytes.NewReader(buf), 0, testSuperblock())
		require.NoError(t, err)
		var addrs []uint64
		for _, e := range entries {
			addrs = append(addrs, e.ObjectAddress)
		}
		require.Equal(t, []uint64{0xA, 0xB, 0xC}, addrs)
	})

	t.Run("empty", func(t *testing.T) {
		buf := make([]byte, 64)
		putTree(buf, 0, 0)
		entries, err := ReadGroupBTreeEntries(bytes.NewReader(buf), 0, testSuperblock())
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("wrong node type", func(t *testing.T) {
		buf := make([]byte, 64)
		putTree(buf, 0, 0)
		buf[4] = 1
		_, err := ReadGroupBTreeEntries(bytes.NewReader(buf), 0, testSuperblock())
		require.ErrorContains(t, err, "expected group B-tree")
	})
}

func TestParseLinkMessage(t *testing.T) {
	sb := testSuperblock()
	tests := []struct {
		name    string
		data    []byte
		want    LinkMessage
		wantErr string
	}{
		{
			name: "hard link",
			data: func() []byte {
				b := []byte{1, 0, 3, 'v', 'a', 'r'}
				return binary.LittleEndian.AppendUint64(b, 0x1000)
			}(),
			want: LinkMessage{Type: LinkTypeHard, Name: "var", Address: 0x1000},
		},
		{
			name: "hard link with creation order and 2 byte name length",
			data: func() []byte {
				b := []byte{1, flagCreationOrder | 0x01}
				b = binary.LittleEndian.AppendUint64(b, 7)
				b = binary.LittleEndian.AppendUint16(b, 2)
				b = append(b, 'a', 'b')
				return binary.LittleEndian.AppendUint64(b, 0x2000)
			}(),
			want: LinkMessage{Type: LinkTypeHard, CreationOrder: 7, Name: "ab", Address: 0x2000},
		},
		{
			name: "soft link",
			data: func() []byte {
				b := []byte{1, flagStoreLinkType, byte(LinkTypeSoft), 1, 's'}
				b = binary.LittleEndian.AppendUint16(b, 4)
				return append(b, "/a/b"...)
			}(),
			want: LinkMessage{Type: LinkTypeSoft, Name: "s", Target: "/a/b"},
		},
		{
			name:    "bad version",
			data:    []byte{2, 0, 0},
			wantErr: "unsupported link message version",
		},
		{
			name:    "truncated name",
			data:    []byte{1, 0, 9, 'x'},
			wantErr: "truncated",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm, err := ParseLinkMessage(tt.data, sb)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, *lm)
		})
	}
}
