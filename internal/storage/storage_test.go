package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Key   string `json:"key"`
	Value int    `json:"value"`
}

func codecs(t *testing.T) map[string]Codec {
	zc, err := NewZstdCodec()
	require.NoError(t, err)
	t.Cleanup(zc.Close)
	return map[string]Codec{"json": JSONCodec{}, "zstd": zc}
}

// TestRecordRoundTrip writes records to a file and reads them back
func TestRecordRoundTrip(t *testing.T) {
	for name, codec := range codecs(t) {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "records")
			w, err := Create(path, codec)
			require.NoError(t, err)

			var offsets []int64
			for i := 0; i < 100; i++ {
				offsets = append(offsets, w.Offset())
				require.NoError(t, w.Write(item{Key: fmt.Sprintf("k%03d", i), Value: i}))
			}
			stats := w.Stats()
			require.NoError(t, w.Close())

			assert.Equal(t, int64(100), stats.Records)
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, stats.Bytes, info.Size())

			r, err := Open(path, codec)
			require.NoError(t, err)
			defer r.Close()

			for i := 0; i < 100; i++ {
				var got item
				require.NoError(t, r.Next(&got))
				assert.Equal(t, i, got.Value)
			}
			var extra item
			assert.Equal(t, io.EOF, r.Next(&extra))

			t.Run("seek to record boundary", func(t *testing.T) {
				require.NoError(t, r.Seek(offsets[42]))
				var got item
				require.NoError(t, r.Next(&got))
				assert.Equal(t, "k042", got.Key)
				assert.Equal(t, int64(1), r.Stats().Records)
			})
		})
	}
}

// TestReaderTruncated verifies a cut payload is reported as unexpected EOF
func TestReaderTruncated(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, JSONCodec{})
	require.NoError(t, w.Write(item{Key: "a", Value: 1}))
	require.NoError(t, w.Write(item{Key: "b", Value: 2}))
	require.NoError(t, w.Close())

	data := buf.Bytes()[:buf.Len()-3]
	r := NewReader(bytes.NewReader(data), JSONCodec{})

	var got item
	require.NoError(t, r.Next(&got))
	assert.Equal(t, io.ErrUnexpectedEOF, r.Next(&got))

	assert.Error(t, r.Seek(0), "stream readers cannot seek")
}

// TestIndex covers writing, reading and verifying a page index
func TestIndex(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "matches")

	w, err := Create(path, JSONCodec{})
	require.NoError(t, err)
	var idx Index
	const pageSize = 3
	for i := 0; i < 10; i++ {
		if i%pageSize == 0 {
			idx = append(idx, Page{Offset: w.Offset()})
		}
		require.NoError(t, w.Write(item{Key: "k", Value: i}))
		idx[len(idx)-1].Count++
	}
	require.NoError(t, w.Close())

	require.NoError(t, WriteIndex(IndexPath(path), idx))
	back, err := ReadIndex(IndexPath(path))
	require.NoError(t, err)
	assert.Equal(t, idx, back)
	assert.Equal(t, int64(10), back.Records())
	assert.Len(t, back, 4)
	assert.NoError(t, back.Verify(path))

	t.Run("gap between pages", func(t *testing.T) {
		bad := append(Index(nil), idx...)
		bad[1].Count--
		assert.ErrorIs(t, bad.Verify(path), ErrBadIndex)
	})

	t.Run("uncovered tail", func(t *testing.T) {
		assert.ErrorIs(t, idx[:3].Verify(path), ErrBadIndex)
	})

	t.Run("page count beyond file size", func(t *testing.T) {
		bad := filepath.Join(dir, "huge.idx")
		require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xff, 0xff, 0xf0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, 0o644))
		_, err := ReadIndex(bad)
		assert.ErrorIs(t, err, ErrBadIndex)
	})

	t.Run("trailing bytes", func(t *testing.T) {
		data, err := os.ReadFile(IndexPath(path))
		require.NoError(t, err)
		bad := filepath.Join(dir, "trailing.idx")
		require.NoError(t, os.WriteFile(bad, append(data, 0), 0o644))
		_, err = ReadIndex(bad)
		assert.ErrorIs(t, err, ErrBadIndex)
	})

	t.Run("offsets must increase", func(t *testing.T) {
		bad := Index{{Offset: 0, Count: 1}, {Offset: 0, Count: 1}}
		assert.ErrorIs(t, bad.Check(), ErrBadIndex)
	})

	t.Run("empty file and index", func(t *testing.T) {
		empty := filepath.Join(dir, "empty")
		w, err := Create(empty, JSONCodec{})
		require.NoError(t, err)
		require.NoError(t, w.Close())
		assert.NoError(t, Index(nil).Verify(empty))
	})
}
