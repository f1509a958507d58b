package stream

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackwardReaderReversesForwardWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backward.bin")
	values := []uint64{5, 4, 3, 2, 1, 0}

	w, err := NewForwardWriter[uint64](path, 3, nil)
	require.NoError(t, err)
	for _, v := range values {
		require.NoError(t, w.Write(v))
	}
	require.NoError(t, w.Close())

	r, err := NewBackwardReader[uint64](path, 3, nil)
	require.NoError(t, err)
	var got []uint64
	for {
		v, ok, err := r.Read()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.NoError(t, r.Close())

	want := make([]uint64, len(values))
	for i, v := range values {
		want[len(values)-1-i] = v
	}
	assert.Equal(t, want, got)
}
