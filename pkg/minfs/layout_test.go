package minfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcavallo/minos/pkg/blockcache"
	"github.com/mcavallo/minos/pkg/blockdev"
)

// ============================================================================
// On-disk codec
// ============================================================================

func TestSuperBlock_Codec(t *testing.T) {
	t.Parallel()
	sb := SuperBlock{
		Magic:             Magic,
		TotalBlocks:       8192,
		InodeBitmapBlocks: 1,
		InodeAreaBlocks:   1024,
		DataBitmapBlocks:  2,
		DataAreaBlocks:    7164,
	}
	buf := make([]byte, BlockSize)
	sb.encode(buf)

	// 24 significant bytes, little-endian, remainder zero
	assert.Equal(t, byte(0x01), buf[0])
	assert.Equal(t, byte(0x00), buf[1])
	assert.Equal(t, byte(0x80), buf[2])
	assert.Equal(t, byte(0x3b), buf[3])
	for _, b := range buf[24:] {
		require.Zero(t, b)
	}

	decoded := decodeSuperBlock(buf)
	assert.Equal(t, sb, decoded)
	assert.True(t, decoded.Valid())
}

func TestDiskInode_Codec(t *testing.T) {
	t.Parallel()
	var d DiskInode
	d.initialize(InodeDirectory)
	d.Size = 96
	d.Direct[0] = 1234
	d.Direct[27] = 5678
	d.Indirect1 = 42
	d.Indirect2 = 43
	d.Nlink = 3

	buf := make([]byte, InodeSize)
	d.encode(buf)
	decoded := decodeDiskInode(buf)
	assert.Equal(t, d, decoded)
	assert.True(t, decoded.IsDir())
	assert.False(t, decoded.IsFile())
}

func TestLayout_Sizes(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 128, InodeSize)
	assert.Equal(t, 32, DirentSize)
	assert.Equal(t, 4, BlockSize/InodeSize)
	assert.Equal(t, 128, inodeIndirect1Count)
}

func TestTotalBlocks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		size uint32
		want uint32
	}{
		{0, 0},
		{1, 1},
		{BlockSize, 1},
		{BlockSize + 1, 2},
		{28 * BlockSize, 28},
		{28*BlockSize + 1, 30},
		{(28 + 128) * BlockSize, 157},
		{(28+128)*BlockSize + 1, 160},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, TotalBlocks(tc.size), "size %d", tc.size)
	}
}

// ============================================================================
// Bitmap
// ============================================================================

func newBitmapFixture(t *testing.T, blocks uint32) (Bitmap, devCache) {
	t.Helper()
	dev := blockdev.NewMem()
	cache := blockcache.NewManager(0)
	return NewBitmap(0, blocks), devCache{cache: cache, dev: dev}
}

func TestBitmap_AllocSequence(t *testing.T) {
	t.Parallel()
	bm, dc := newBitmapFixture(t, 1)

	for want := uint32(0); want < 130; want++ {
		got, ok := bm.Alloc(dc)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestBitmap_DeallocReuse(t *testing.T) {
	t.Parallel()
	bm, dc := newBitmapFixture(t, 1)

	for i := 0; i < 10; i++ {
		_, ok := bm.Alloc(dc)
		require.True(t, ok)
	}
	bm.Dealloc(dc, 4)

	// first-fit hands back the lowest clear bit
	got, ok := bm.Alloc(dc)
	require.True(t, ok)
	assert.Equal(t, uint32(4), got)
}

func TestBitmap_Exhaustion(t *testing.T) {
	t.Parallel()
	bm, dc := newBitmapFixture(t, 1)
	require.Equal(t, uint32(4096), bm.Maximum())

	for i := uint32(0); i < bm.Maximum(); i++ {
		_, ok := bm.Alloc(dc)
		require.True(t, ok)
	}
	_, ok := bm.Alloc(dc)
	assert.False(t, ok)
}

func TestBitmap_DoubleFreePanics(t *testing.T) {
	t.Parallel()
	bm, dc := newBitmapFixture(t, 1)

	got, ok := bm.Alloc(dc)
	require.True(t, ok)
	bm.Dealloc(dc, got)
	assert.Panics(t, func() {
		bm.Dealloc(dc, got)
	})
}

func TestBitmap_CrossesBlockBoundary(t *testing.T) {
	t.Parallel()
	bm, dc := newBitmapFixture(t, 2)

	for i := uint32(0); i < 4096; i++ {
		_, ok := bm.Alloc(dc)
		require.True(t, ok)
	}
	got, ok := bm.Alloc(dc)
	require.True(t, ok)
	assert.Equal(t, uint32(4096), got)
}
