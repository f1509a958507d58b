package stream

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forward.bin")
	values := []uint32{0, 1, 2, 3, 100, 1 << 20, 0xffffffff}

	w, err := NewForwardWriter[uint32](path, 2, nil)
	require.NoError(t, err)
	for _, v := range values {
		require.NoError(t, w.Write(v))
	}
	require.NoError(t, w.Close())

	r, err := NewForwardReader[uint32](path, 2, nil)
	require.NoError(t, err)
	var got []uint32
	for {
		v, ok, err := r.Read()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.NoError(t, r.Close())
	assert.Equal(t, values, got)
}

func TestForwardWriterEmptyStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	w, err := NewForwardWriter[uint16](path, 4, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := NewForwardReader[uint16](path, 4, nil)
	require.NoError(t, err)
	_, ok, err := r.Read()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, r.Close())
}
