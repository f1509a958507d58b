package stream

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMultiStreamWriterReaderPermutesByIndex(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		filepath.Join(dir, "s0.bin"),
		filepath.Join(dir, "s1.bin"),
		filepath.Join(dir, "s2.bin"),
	}
	w, err := NewMultiStreamWriter[uint32](paths, 2, nil)
	require.NoError(t, err)
	input := [][]uint32{
		{1, 2, 3},
		{10},
		{},
	}
	for i, vs := range input {
		for _, v := range vs {
			require.NoError(t, w.WriteTo(i, v))
		}
	}
	require.NoError(t, w.Close())

	r, err := NewMultiStreamReader[uint32](paths, 2, nil)
	require.NoError(t, err)
	for i, want := range input {
		var got []uint32
		for {
			v, ok, err := r.ReadFrom(i)
			require.NoError(t, err)
			if !ok {
				break
			}
			got = append(got, v)
		}
		if len(want) == 0 {
			assert.Empty(t, got)
		} else {
			assert.Equal(t, want, got)
		}
	}
	require.NoError(t, r.Close())
}
