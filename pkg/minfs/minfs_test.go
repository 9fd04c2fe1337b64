package minfs

import (
	"bytes"
	"encoding/binary"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcavallo/minos/pkg/blockcache"
	"github.com/mcavallo/minos/pkg/blockdev"
)

// ============================================================================
// Test Helpers
// ============================================================================

const (
	testTotalBlocks       = 8192 // 4 MiB image
	testInodeBitmapBlocks = 1
)

func newTestFS(t *testing.T) (*FileSystem, *blockdev.MemDevice) {
	t.Helper()
	dev := blockdev.NewMem()
	cache := blockcache.NewManager(0)
	fs := Create(dev, cache, testTotalBlocks, testInodeBitmapBlocks)
	require.NotNil(t, fs)
	return fs, dev
}

// usedDataBits counts set bits in the data bitmap, syncing the cache first
// and then reading the device directly so resident dirty state does not
// mask it.
func usedDataBits(t *testing.T, fs *FileSystem) int {
	t.Helper()
	fs.cache.SyncAll()
	used := 0
	buf := make([]byte, BlockSize)
	for b := uint32(0); b < fs.dataBitmap.blocks; b++ {
		fs.dev.ReadBlock(fs.dataBitmap.startBlockID+b, buf)
		for w := 0; w < BlockSize/8; w++ {
			word := binary.LittleEndian.Uint64(buf[8*w:])
			for ; word != 0; word &= word - 1 {
				used++
			}
		}
	}
	return used
}

// ============================================================================
// Create / Open
// ============================================================================

func TestCreate_EmptyRoot(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)

	root := fs.RootInode()
	assert.Empty(t, root.Ls())

	var st Stat
	root.Stat(&st)
	assert.Equal(t, ModeDir, st.Mode)
	assert.Equal(t, uint32(1), st.Nlink)
}

func TestOpen_RoundTrip(t *testing.T) {
	t.Parallel()
	fs, dev := newTestFS(t)

	h := fs.RootInode().Create("hello")
	require.NotNil(t, h)

	var before Stat
	h.Stat(&before)

	// remount with a cold cache
	fs2, err := Open(dev, blockcache.NewManager(0))
	require.NoError(t, err)

	h2 := fs2.RootInode().Find("hello")
	require.NotNil(t, h2)
	var after Stat
	h2.Stat(&after)
	assert.Equal(t, before.Ino, after.Ino)
}

func TestOpen_BadMagic(t *testing.T) {
	t.Parallel()
	dev := blockdev.NewMem()
	_, err := Open(dev, blockcache.NewManager(0))
	assert.ErrorIs(t, err, ErrBadMagic)
}

// ============================================================================
// Create / Find / Ls
// ============================================================================

func TestCreateFindLs(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	root := fs.RootInode()

	require.Empty(t, root.Ls())

	h := root.Create("hello")
	require.NotNil(t, h)
	assert.Equal(t, []string{"hello"}, root.Ls())

	found := root.Find("hello")
	require.NotNil(t, found)
	var st Stat
	found.Stat(&st)
	assert.Equal(t, ModeFile, st.Mode)
	assert.Equal(t, uint32(1), st.Nlink)

	// duplicate names are refused
	assert.Nil(t, root.Create("hello"))
	assert.Nil(t, root.Find("missing"))
}

func TestLs_TracksCreateAndUnlink(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	root := fs.RootInode()

	for _, name := range []string{"a", "b", "c"} {
		require.NotNil(t, root.Create(name))
	}
	require.True(t, root.Link("a", "d"))
	require.True(t, root.Unlink("b"))

	got := root.Ls()
	sort.Strings(got)
	if diff := cmp.Diff([]string{"a", "c", "d"}, got); diff != "" {
		t.Errorf("ls mismatch (-want +got):\n%s", diff)
	}
}

// ============================================================================
// Read / Write
// ============================================================================

func TestWriteReadRoundTrip(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	root := fs.RootInode()

	h := root.Create("hello")
	require.NotNil(t, h)

	payload := []byte("abcdefgh")
	assert.Equal(t, len(payload), h.WriteAt(0, payload))

	buf := make([]byte, len(payload))
	assert.Equal(t, len(payload), h.ReadAt(0, buf))
	assert.Equal(t, payload, buf)
}

func TestWriteAt_SparseConcatenation(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	h := fs.RootInode().Create("f")
	require.NotNil(t, h)

	// cross block boundaries with offset writes
	first := bytes.Repeat([]byte{0xAA}, 700)
	second := bytes.Repeat([]byte{0xBB}, 700)
	assert.Equal(t, len(first), h.WriteAt(0, first))
	assert.Equal(t, len(second), h.WriteAt(700, second))

	got := make([]byte, 1400)
	assert.Equal(t, 1400, h.ReadAt(0, got))
	assert.Equal(t, append(append([]byte{}, first...), second...), got)
}

func TestReadAt_ClampsToSize(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	h := fs.RootInode().Create("f")
	require.NotNil(t, h)

	h.WriteAt(0, []byte("short"))
	buf := make([]byte, 64)
	assert.Equal(t, 5, h.ReadAt(0, buf))
	assert.Equal(t, 0, h.ReadAt(100, buf))
}

func TestClear_ThenRewrite(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	h := fs.RootInode().Create("f")
	require.NotNil(t, h)

	h.WriteAt(0, bytes.Repeat([]byte{1}, 3*BlockSize))
	h.Clear()
	assert.Equal(t, uint32(0), h.Size())

	payload := []byte("fresh start")
	assert.Equal(t, len(payload), h.WriteAt(0, payload))
	buf := make([]byte, len(payload))
	assert.Equal(t, len(payload), h.ReadAt(0, buf))
	assert.Equal(t, payload, buf)
}

// ============================================================================
// Link / Unlink
// ============================================================================

func TestLinkUnlink(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	root := fs.RootInode()

	h := root.Create("hello")
	require.NotNil(t, h)
	h.WriteAt(0, []byte("payload"))

	require.True(t, root.Link("hello", "hi"))
	got := root.Ls()
	sort.Strings(got)
	assert.Equal(t, []string{"hello", "hi"}, got)

	hi := root.Find("hi")
	require.NotNil(t, hi)
	var st Stat
	hi.Stat(&st)
	assert.Equal(t, uint32(2), st.Nlink)

	require.True(t, root.Unlink("hello"))
	hi.Stat(&st)
	assert.Equal(t, uint32(1), st.Nlink)

	// contents via the surviving name are unchanged
	buf := make([]byte, 7)
	assert.Equal(t, 7, hi.ReadAt(0, buf))
	assert.Equal(t, []byte("payload"), buf)

	assert.False(t, root.Unlink("hello"))
	assert.False(t, root.Link("missing", "x"))
}

func TestUnlink_LastLinkFreesBlocks(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	root := fs.RootInode()

	baseline := usedDataBits(t, fs)

	h := root.Create("victim")
	require.NotNil(t, h)
	h.WriteAt(0, bytes.Repeat([]byte{7}, 4*BlockSize))
	require.Greater(t, usedDataBits(t, fs), baseline)

	require.True(t, root.Unlink("victim"))
	// the directory, rewritten without the entry, holds at most one block;
	// the victim's four data blocks are back
	assert.LessOrEqual(t, usedDataBits(t, fs), baseline+1)
}

// ============================================================================
// Index boundaries
// ============================================================================

func TestDirectBoundary(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	root := fs.RootInode()

	h := root.Create("big")
	require.NotNil(t, h)
	afterCreate := usedDataBits(t, fs)

	// exactly 28 direct blocks, no index block
	h.WriteAt(0, bytes.Repeat([]byte{1}, 28*BlockSize))
	assert.Equal(t, afterCreate+28, usedDataBits(t, fs))

	// one more byte brings indirect1 plus one data block
	h.WriteAt(28*BlockSize, []byte{2})
	assert.Equal(t, afterCreate+30, usedDataBits(t, fs))
}

func TestIndirect1Boundary(t *testing.T) {
	t.Parallel()
	// pure index math, no device needed
	assert.Equal(t, uint32(28), TotalBlocks(28*BlockSize))
	assert.Equal(t, uint32(30), TotalBlocks(28*BlockSize+1))

	lastOneLevel := uint32((28 + 128) * BlockSize)
	assert.Equal(t, uint32(28+128+1), TotalBlocks(lastOneLevel))
	// one byte past the one-level region adds indirect2 and a first-level
	// block alongside the data block
	assert.Equal(t, uint32(28+128+1+3), TotalBlocks(lastOneLevel+1))
}

func TestIndirect2ReadWrite(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	h := fs.RootInode().Create("huge")
	require.NotNil(t, h)

	// land a write in the two-level region
	offset := (28 + 128) * BlockSize
	payload := bytes.Repeat([]byte{0xCD}, 2*BlockSize)
	// grow the file through the boundary first so every intermediate
	// region is mapped
	h.WriteAt(0, bytes.Repeat([]byte{0x11}, offset))
	assert.Equal(t, len(payload), h.WriteAt(offset, payload))

	got := make([]byte, len(payload))
	assert.Equal(t, len(payload), h.ReadAt(offset, got))
	assert.Equal(t, payload, got)

	// earlier bytes survived the growth
	head := make([]byte, BlockSize)
	assert.Equal(t, BlockSize, h.ReadAt(0, head))
	assert.Equal(t, bytes.Repeat([]byte{0x11}, BlockSize), head)

	h.Clear()
	assert.Equal(t, uint32(0), h.Size())
}

// ============================================================================
// Directory entry names
// ============================================================================

func TestDirEntry_NameTruncation(t *testing.T) {
	t.Parallel()
	fs, _ := newTestFS(t)
	root := fs.RootInode()

	long := "this-name-is-way-too-long-for-a-dirent"
	require.NotNil(t, root.Create(long))

	names := root.Ls()
	require.Len(t, names, 1)
	assert.Equal(t, long[:NameLengthLimit], names[0])
	assert.Len(t, names[0], NameLengthLimit)

	// the truncated name is the one that resolves
	assert.NotNil(t, root.Find(long[:NameLengthLimit]))
}

func TestDirEntry_Layout(t *testing.T) {
	t.Parallel()
	e := NewDirEntry("hello", 42)
	buf := make([]byte, DirentSize)
	e.encode(buf)

	// the 28th byte of the name field is always zero
	assert.Zero(t, buf[NameLengthLimit])
	assert.Equal(t, uint32(42), binary.LittleEndian.Uint32(buf[28:32]))

	decoded := decodeDirEntry(buf)
	assert.Equal(t, "hello", decoded.Name())
	assert.Equal(t, uint32(42), decoded.InodeID())
}
