package ioutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectWidth(t *testing.T) {
	assert.Equal(t, Width32, SelectWidth(0))
	assert.Equal(t, Width32, SelectWidth(1<<20))
	assert.Equal(t, Width32, SelectWidth(Width32.Max()))
	assert.Equal(t, Width64, SelectWidth(Width32.Max()+1))
}

func TestCheckCapacity(t *testing.T) {
	assert.NoError(t, CheckCapacity("test", Width32, Width32.Max()))
	err := CheckCapacity("test", Width8, 256)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeCapacity)
	assert.Contains(t, err.Error(), "test")
}

func TestBitWidth(t *testing.T) {
	assert.EqualValues(t, 1, BitWidth(0))
	assert.EqualValues(t, 1, BitWidth(1))
	assert.EqualValues(t, 8, BitWidth(255))
	assert.EqualValues(t, 9, BitWidth(256))
	assert.EqualValues(t, 64, BitWidth(^uint64(0)))
}

func TestWidthBytes(t *testing.T) {
	assert.Equal(t, 1, Width8.Bytes())
	assert.Equal(t, 2, Width16.Bytes())
	assert.Equal(t, 4, Width32.Bytes())
	assert.Equal(t, 8, Width64.Bytes())
}

func TestTempNamesAreDistinct(t *testing.T) {
	base := Basename(filepath.Join(t.TempDir(), "run"))
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name, err := base.TempName()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(name, string(base)+".tmp"))
		assert.False(t, seen[name], "tempname collision: %s", name)
		seen[name] = true
	}
}

func TestPartNameLayout(t *testing.T) {
	base := Basename("/work/run")
	assert.Equal(t, "/work/run.multipart_file.pos.part0", base.PartName("pos", 0))
	assert.Equal(t, "/work/run.multipart_file.pos.part12", base.PartName("pos", 12))
}

func TestBasenameDirCreatesDirectory(t *testing.T) {
	base := Basename(filepath.Join(t.TempDir(), "deep", "nested", "run"))
	dir, err := base.Dir()
	require.NoError(t, err)
	fi, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())
}

func TestRemoveToleratesMissingFile(t *testing.T) {
	assert.NoError(t, Remove(filepath.Join(t.TempDir(), "never-created")))
}

func TestIOErrorWrapsSentinel(t *testing.T) {
	cause := errors.New("disk on fire")
	err := NewIOError("stream", "write block", cause)
	assert.Contains(t, err.Error(), "stream")
	assert.Contains(t, err.Error(), "write block")
	assert.ErrorIs(t, err, cause)

	bare := NewIOError("stream", "no cause", nil)
	assert.ErrorIs(t, bare, ErrIO)
}

func TestFatalfWrapsClass(t *testing.T) {
	err := Fatalf(ErrConfig, "fsais", "block size must be positive, got %d", -1)
	assert.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "fsais")
	assert.Contains(t, err.Error(), "-1")
}

func TestCountersAccumulate(t *testing.T) {
	var c Counters
	c.AddRead(10)
	c.AddWritten(7)
	c.AddRead(5)
	assert.EqualValues(t, 15, c.BytesRead)
	assert.EqualValues(t, 7, c.BytesWritten)
	assert.EqualValues(t, 22, c.Total())
}

type recordingListener struct {
	events []Event
}

func (l *recordingListener) OnEvent(ev Event) { l.events = append(l.events, ev) }

func TestNotifyIsNilSafe(t *testing.T) {
	Notify(nil, Event{Kind: EventPassStart})
	l := &recordingListener{}
	Notify(l, Event{Kind: EventBlockDone, Component: "block", N: 3})
	require.Len(t, l.events, 1)
	assert.Equal(t, EventBlockDone, l.events[0].Kind)
	assert.EqualValues(t, 3, l.events[0].N)
}
